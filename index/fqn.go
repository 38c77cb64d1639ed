package index

import (
	"regexp"
	"strings"
)

// Separator joins namespace parts of a fully qualified name.
const Separator = `\`

// memberRegexp matches the member suffix of a name: `->prop`, `::CONST`,
// `->method()`, `::$static`.
var memberRegexp = regexp.MustCompile(`((?:->|::).+)$`)

// Normalize trims leading and trailing separators.
func Normalize(name string) string {
	return strings.Trim(name, Separator)
}

// NameConcat joins two names with a single separator.
//
//	NameConcat(`Foo\Bar`, `Baz`)    == `Foo\Bar\Baz`
//	NameConcat(`Foo\Bar\`, `\Baz`)  == `Foo\Bar\Baz`
//	NameConcat(``, `\Baz`)          == `Baz`
func NameConcat(a, b string) string {
	a, b = Normalize(a), Normalize(b)
	if a == "" {
		return b
	}
	return a + Separator + b
}

// NameFirstPart returns the first namespace component of name.
func NameFirstPart(name string) string {
	parts := strings.SplitN(name, Separator, 3)
	if parts[0] == "" && len(parts) > 1 {
		return parts[1]
	}
	return parts[0]
}

// IsMember reports whether name ends in a member suffix.
func IsMember(name string) bool {
	return memberRegexp.MatchString(name)
}

// SplitFQN splits a fully qualified name into its tree path. The last
// element is the member suffix, or "" for non-member symbols:
//
//	`\Psr\Log\LoggerInterface`        -> [Psr Log LoggerInterface ""]
//	`\Psr\Log\LoggerInterface->log()` -> [Psr Log LoggerInterface ->log()]
//	``                                -> []
func SplitFQN(fqn string) []string {
	var parts []string
	for _, p := range strings.Split(Normalize(fqn), Separator) {
		if p != "" {
			parts = append(parts, p)
		}
	}
	if len(parts) == 0 {
		return nil
	}

	last := parts[len(parts)-1]
	parts = parts[:len(parts)-1]
	if loc := memberRegexp.FindStringIndex(last); loc != nil {
		return append(parts, last[:loc[0]], last[loc[0]:])
	}
	return append(parts, last, "")
}

// JoinFQN is the inverse of SplitFQN for normalized names.
func JoinFQN(parts []string) string {
	if len(parts) == 0 {
		return ""
	}
	return strings.Join(parts[:len(parts)-1], Separator) + parts[len(parts)-1]
}

// unqualified returns the segment after the last separator.
func unqualified(fqn string) string {
	if i := strings.LastIndex(fqn, Separator); i >= 0 {
		return fqn[i+1:]
	}
	return fqn
}
