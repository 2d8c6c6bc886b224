// Package gamedirs resolves the absolute on-disk location of each Elite
// Dangerous data category.
//
// The game keeps journals under the user's "Saved Games" folder and its
// options under %LOCALAPPDATA%. Resolution is pure path computation from the
// environment and the home directory; it never stats the filesystem, so a
// resolved path may well not exist (a fresh install has no Graphics
// overrides, for example). Whether the directory holds data is the
// exporter's concern.
package gamedirs

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/paulschiretz/ed-backup/pkg/category"
	"github.com/paulschiretz/ed-backup/pkg/util"
)

// localAppDataEnv is honored on every platform, not only Windows: under
// Wine/Proton prefixes the variable is commonly exported and points into
// the prefix.
const localAppDataEnv = "LOCALAPPDATA"

// Locator resolves categories to absolute source directories.
type Locator struct {
	getenv func(string) string
	home   func() (string, error)
}

// New creates a Locator backed by the real environment.
func New() *Locator {
	return NewWithLookup(os.Getenv, os.UserHomeDir)
}

// NewWithLookup creates a Locator with injected environment and home-directory
// lookups, so tests can point categories at temporary directories.
func NewWithLookup(getenv func(string) string, home func() (string, error)) *Locator {
	return &Locator{
		getenv: getenv,
		home:   home,
	}
}

// Locate returns the absolute directory holding the category's data.
func (l *Locator) Locate(cat category.Category) (string, error) {
	base, err := l.rootDir(cat.Root)
	if err != nil {
		return "", fmt.Errorf("could not resolve %s root for category %s: %w", cat.Root, cat.Name, err)
	}
	// RelPath is stored in forward-slash form, same as every other persisted
	// path.
	return filepath.Join(base, util.DenormalizePath(cat.RelPath)), nil
}

func (l *Locator) rootDir(root category.Root) (string, error) {
	switch root {
	case category.RootSavedGames:
		home, err := l.home()
		if err != nil {
			return "", err
		}
		return filepath.Join(home, "Saved Games"), nil

	case category.RootLocalAppData:
		if dir := l.getenv(localAppDataEnv); dir != "" {
			return dir, nil
		}
		home, err := l.home()
		if err != nil {
			return "", err
		}
		return filepath.Join(home, "AppData", "Local"), nil

	default:
		return "", fmt.Errorf("unhandled root %s", root)
	}
}
