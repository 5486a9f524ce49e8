// Package home locates the per-user pcspecs directory, ~/.pcspecs.
package home

import (
	"fmt"
	"os"
	"path/filepath"
)

const (
	// DefaultDirName is searched for a config file after the working
	// directory.
	DefaultDirName = ".pcspecs"

	// ConfigFileName is the config file name viper looks for.
	ConfigFileName = "pcspecs.yaml"

	// InboxDirName is the default directory for `pcspecs watch`.
	InboxDirName = "inbox"
)

// Dir is the pcspecs home directory.
type Dir struct {
	path string
}

// New returns the home at path, or ~/.pcspecs when path is empty.
func New(path string) (*Dir, error) {
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get user home directory: %w", err)
		}
		path = filepath.Join(home, DefaultDirName)
	}
	return &Dir{path: path}, nil
}

// Path returns the root path of the home directory.
func (d *Dir) Path() string {
	return d.path
}

// ConfigPath returns the path of the user config file.
func (d *Dir) ConfigPath() string {
	return filepath.Join(d.path, ConfigFileName)
}

// InboxPath returns the default watched directory.
func (d *Dir) InboxPath() string {
	return filepath.Join(d.path, InboxDirName)
}

// EnsureExists creates the home and inbox directories.
func (d *Dir) EnsureExists() error {
	if err := os.MkdirAll(d.InboxPath(), 0o755); err != nil {
		return fmt.Errorf("failed to create inbox directory: %w", err)
	}
	return nil
}

// ConfigExists reports whether the user config file exists.
func (d *Dir) ConfigExists() bool {
	_, err := os.Stat(d.ConfigPath())
	return err == nil
}
