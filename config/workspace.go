package config

import (
	"encoding/json"
	"fmt"
)

// WorkspaceBridge feeds workspace/didChangeConfiguration into a Store.
// Settings are rebuilt from the config file, then the editor's section is
// applied on top.
type WorkspaceBridge[T any] struct {
	store    *Store[T]
	section  string
	defaults *T
	path     func() string
}

// NewWorkspaceBridge creates a bridge. path reports the current config
// file, which may change while the server runs; "" means defaults only.
func NewWorkspaceBridge[T any](store *Store[T], section string, defaults *T, path func() string) *WorkspaceBridge[T] {
	return &WorkspaceBridge[T]{store: store, section: section, defaults: defaults, path: path}
}

// Reload rereads the config file and swaps the result into the store.
func (b *WorkspaceBridge[T]) Reload() error {
	return b.HandleChange(nil)
}

// HandleChange applies the editor settings. settings is the `settings`
// member of DidChangeConfigurationParams; only the bridge's section is
// read from it.
func (b *WorkspaceBridge[T]) HandleChange(settings json.RawMessage) error {
	cfg := b.defaults
	if p := b.path(); p != "" {
		loaded, err := Load[T](p, b.defaults)
		if err != nil {
			return err
		}
		cfg = loaded
	}

	section, err := b.sectionOf(settings)
	if err != nil {
		return err
	}
	if section != nil {
		merged := new(T)
		if cfg != nil {
			*merged = *cfg
		}
		if err := json.Unmarshal(section, merged); err != nil {
			return fmt.Errorf("decoding %s settings: %w", b.section, err)
		}
		if err := validate(merged); err != nil {
			return fmt.Errorf("validating %s settings: %w", b.section, err)
		}
		cfg = merged
	}

	b.store.Swap(cfg)
	return nil
}

func (b *WorkspaceBridge[T]) sectionOf(settings json.RawMessage) (json.RawMessage, error) {
	if len(settings) == 0 || string(settings) == "null" {
		return nil, nil
	}
	var all map[string]json.RawMessage
	if err := json.Unmarshal(settings, &all); err != nil {
		return nil, fmt.Errorf("decoding settings: %w", err)
	}
	return all[b.section], nil
}
