package lexis

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/gossip-lsp/lexis/config"
	"github.com/gossip-lsp/lexis/document"
	"github.com/gossip-lsp/lexis/jsonrpc"
	"github.com/gossip-lsp/lexis/protocol"
)

// Cache backends selectable with the cache setting.
const (
	CacheFile   = "file"
	CacheSQLite = "sqlite"
	CacheClient = "client"
	CacheNone   = "none"
)

// settingsSection is the key of the server's section in
// workspace/didChangeConfiguration settings.
const settingsSection = "lexis"

// ConfigFiles are looked up in the workspace root, first match wins.
var ConfigFiles = []string{".lexis.toml", ".lexis.yaml", ".lexis.yml"}

// Settings configure indexing and document handling.
type Settings struct {
	MaxFileSize int      `toml:"max_file_size" yaml:"max_file_size" json:"maxFileSize"`
	Include     string   `toml:"include" yaml:"include" json:"include"`
	Exclude     []string `toml:"exclude" yaml:"exclude" json:"exclude"`
	VendorDir   string   `toml:"vendor_dir" yaml:"vendor_dir" json:"vendorDir"`
	Cache       string   `toml:"cache" yaml:"cache" json:"cache"`
	CacheDir    string   `toml:"cache_dir" yaml:"cache_dir" json:"cacheDir"`
	Stubs       string   `toml:"stubs" yaml:"stubs" json:"stubs"`
	Concurrency int      `toml:"concurrency" yaml:"concurrency" json:"concurrency"`
}

// DefaultSettings returns the settings used without any config file.
func DefaultSettings() Settings {
	return Settings{
		MaxFileSize: document.DefaultSizeLimit,
		Include:     "**/*.go",
		VendorDir:   "vendor",
		Cache:       CacheFile,
		Concurrency: 4,
	}
}

func (s *Settings) Validate() error {
	var errs []error
	if s.MaxFileSize <= 0 {
		errs = append(errs, fmt.Errorf("max_file_size must be positive, got %d", s.MaxFileSize))
	}
	if s.Include == "" {
		errs = append(errs, errors.New("include must not be empty"))
	}
	switch s.Cache {
	case CacheFile, CacheSQLite, CacheClient, CacheNone:
	default:
		errs = append(errs, fmt.Errorf("unknown cache %q", s.Cache))
	}
	if s.Concurrency < 0 {
		errs = append(errs, fmt.Errorf("concurrency must not be negative, got %d", s.Concurrency))
	}
	return errors.Join(errs...)
}

// Settings returns the settings currently in effect.
func (s *Server) Settings() *Settings { return s.settings.Get() }

// startConfig loads the workspace config file over the defaults and
// initialization options, and reloads it whenever it changes on disk.
func (s *Server) startConfig(rootURI string, opts *protocol.InitializationOptions) {
	defaults := s.defaults
	if opts != nil {
		if len(opts.Exclude) > 0 {
			defaults.Exclude = opts.Exclude
		}
		if opts.Include != "" {
			defaults.Include = opts.Include
		}
	}

	dir := ""
	if rootURI != "" {
		if info, err := os.Stat(document.URIToPath(rootURI)); err == nil && info.IsDir() {
			dir = document.URIToPath(rootURI)
		}
	}
	path := func() string {
		if dir == "" {
			return ""
		}
		return config.FindFile(dir, ConfigFiles...)
	}
	bridge := config.NewWorkspaceBridge(s.settings, settingsSection, &defaults, path)

	s.mu.Lock()
	s.bridge = bridge
	s.mu.Unlock()

	if err := s.reloadSettings(); err != nil {
		s.logger.Warn("failed to load settings", "error", err)
	}
	if dir == "" {
		return
	}

	watcher, err := config.NewWatcher(dir, ConfigFiles, func(path string) {
		s.logger.Info("config file changed", "path", path)
		if err := s.reloadSettings(); err != nil {
			s.logger.Warn("failed to reload settings", "path", path, "error", err)
		}
	}, config.WithWatcherLogger(s.logger))
	if err != nil {
		// File watching is best-effort; log and continue if it fails
		s.logger.Warn("failed to start config watcher", "dir", dir, "error", err)
		return
	}
	s.mu.Lock()
	s.watcher = watcher
	s.mu.Unlock()
}

// reloadSettings rebuilds the settings from the config file and the last
// settings the editor sent.
func (s *Server) reloadSettings() error {
	s.mu.RLock()
	bridge, editor := s.bridge, s.editorSettings
	s.mu.RUnlock()
	if bridge == nil {
		return nil
	}
	return bridge.HandleChange(editor)
}

func (s *Server) didChangeConfiguration(ctx *Context, p *protocol.DidChangeConfigurationParams) error {
	raw, err := json.Marshal(p.Settings)
	if err != nil {
		return jsonrpc.Errorf(jsonrpc.CodeInvalidParams, "settings: %s", err)
	}
	s.mu.Lock()
	prev := s.editorSettings
	s.editorSettings = raw
	s.mu.Unlock()

	if err := s.reloadSettings(); err != nil {
		s.mu.Lock()
		s.editorSettings = prev
		s.mu.Unlock()
		s.logger.Warn("rejected editor settings", "error", err)
		_ = ctx.Client.LogMessage(ctx, protocol.Warning, fmt.Sprintf("Invalid settings: %s", err))
	}
	return nil
}
