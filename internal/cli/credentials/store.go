// Package credentials stores sandboxctl connection contexts.
//
// A context pairs a server address with the shared secret used to open
// sessions on it. Contexts live in $XDG_CONFIG_HOME/sandboxctl/contexts.json,
// readable by the owner only.
package credentials

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"time"
)

const (
	// DefaultConfigDir is the directory holding sandboxctl state.
	DefaultConfigDir = "sandboxctl"
	// ConfigFileName is the name of the contexts file.
	ConfigFileName = "contexts.json"
	// FilePermissions for the contexts file (read/write for owner only).
	FilePermissions = 0600
	// DirPermissions for the config directory.
	DirPermissions = 0700

	// DefaultContextName is used when login is not given a name.
	DefaultContextName = "default"
)

var (
	// ErrNoCurrentContext indicates no context is currently selected.
	ErrNoCurrentContext = errors.New("no current context set")
	// ErrContextNotFound indicates the requested context doesn't exist.
	ErrContextNotFound = errors.New("context not found")
)

// Context is a saved server connection.
type Context struct {
	Addr    string    `json:"addr"`
	Token   string    `json:"token,omitempty"`
	SavedAt time.Time `json:"saved_at,omitempty"`
}

// HasToken reports whether the context carries a secret.
func (c *Context) HasToken() bool {
	return c.Token != ""
}

// Config is the on-disk layout of the contexts file.
type Config struct {
	CurrentContext string              `json:"current_context"`
	Contexts       map[string]*Context `json:"contexts"`
}

// Store manages the contexts file.
type Store struct {
	configPath string
	config     *Config
}

// NewStore opens the store at the default location.
func NewStore() (*Store, error) {
	path, err := DefaultPath()
	if err != nil {
		return nil, err
	}
	return NewStoreAt(path)
}

// NewStoreAt opens the store backed by path. A missing file is an empty store.
func NewStoreAt(path string) (*Store, error) {
	s := &Store{configPath: path}
	if err := s.load(); err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("cannot read %s: %w", path, err)
		}
		s.config = &Config{}
	}
	if s.config.Contexts == nil {
		s.config.Contexts = make(map[string]*Context)
	}
	return s, nil
}

// DefaultPath returns the contexts file path.
func DefaultPath() (string, error) {
	configHome := os.Getenv("XDG_CONFIG_HOME")
	if configHome == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("cannot determine home directory: %w", err)
		}
		configHome = filepath.Join(home, ".config")
	}

	return filepath.Join(configHome, DefaultConfigDir, ConfigFileName), nil
}

func (s *Store) load() error {
	data, err := os.ReadFile(s.configPath)
	if err != nil {
		return err
	}

	s.config = &Config{}
	return json.Unmarshal(data, s.config)
}

func (s *Store) save() error {
	if err := os.MkdirAll(filepath.Dir(s.configPath), DirPermissions); err != nil {
		return fmt.Errorf("cannot create config directory: %w", err)
	}

	data, err := json.MarshalIndent(s.config, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(s.configPath, data, FilePermissions)
}

// Current returns the selected context.
func (s *Store) Current() (*Context, error) {
	if s.config.CurrentContext == "" {
		return nil, ErrNoCurrentContext
	}
	return s.Get(s.config.CurrentContext)
}

// CurrentName returns the name of the selected context, or "".
func (s *Store) CurrentName() string {
	return s.config.CurrentContext
}

// Get returns the context called name.
func (s *Store) Get(name string) (*Context, error) {
	ctx, ok := s.config.Contexts[name]
	if !ok {
		return nil, ErrContextNotFound
	}
	return ctx, nil
}

// Names returns all context names in sorted order.
func (s *Store) Names() []string {
	names := make([]string, 0, len(s.config.Contexts))
	for name := range s.config.Contexts {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Save creates or replaces a context and selects it.
func (s *Store) Save(name string, ctx *Context) error {
	if ctx.SavedAt.IsZero() {
		ctx.SavedAt = time.Now()
	}
	s.config.Contexts[name] = ctx
	s.config.CurrentContext = name
	return s.save()
}

// Use selects an existing context.
func (s *Store) Use(name string) error {
	if _, ok := s.config.Contexts[name]; !ok {
		return ErrContextNotFound
	}
	s.config.CurrentContext = name
	return s.save()
}

// Rename renames a context, following the selection.
func (s *Store) Rename(oldName, newName string) error {
	ctx, ok := s.config.Contexts[oldName]
	if !ok {
		return ErrContextNotFound
	}

	delete(s.config.Contexts, oldName)
	s.config.Contexts[newName] = ctx

	if s.config.CurrentContext == oldName {
		s.config.CurrentContext = newName
	}
	return s.save()
}

// Delete removes a context. Deleting the selected one clears the selection.
func (s *Store) Delete(name string) error {
	if _, ok := s.config.Contexts[name]; !ok {
		return ErrContextNotFound
	}

	delete(s.config.Contexts, name)
	if s.config.CurrentContext == name {
		s.config.CurrentContext = ""
	}
	return s.save()
}

// ClearToken forgets the secret of the selected context but keeps its address.
func (s *Store) ClearToken() error {
	ctx, err := s.Current()
	if err != nil {
		return err
	}
	ctx.Token = ""
	return s.save()
}

// Path returns the contexts file path.
func (s *Store) Path() string {
	return s.configPath
}
