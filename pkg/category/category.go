// Package category defines the fixed set of Elite Dangerous data categories
// the exporter knows how to archive, and the registry used to look them up.
//
// A category pairs a stable, user-facing name with the location of its data
// (a platform root plus a relative path) and the basename its archive is
// written under. The set is compile-time fixed; nothing here touches the
// filesystem.
package category

import (
	"errors"
	"fmt"
	"strings"
)

// Root identifies the platform base directory a category's relative path
// hangs off. Resolution of a Root to an absolute directory is the job of a
// locator, not of this package.
type Root int

const (
	// RootSavedGames is the user's "Saved Games" folder.
	RootSavedGames Root = iota
	// RootLocalAppData is the local application data folder (%LOCALAPPDATA%).
	RootLocalAppData
)

var rootToString = map[Root]string{
	RootSavedGames:   "saved-games",
	RootLocalAppData: "local-appdata",
}

func (r Root) String() string {
	if str, ok := rootToString[r]; ok {
		return str
	}
	return fmt.Sprintf("unknown_root(%d)", int(r))
}

// Category maps a stable name to the directory it archives.
type Category struct {
	// Name is the user-facing identifier ("Journal", "Bindings", "Graphics").
	Name string
	// ArchiveBasename is the filename stem the category's archive is written
	// under. Unique across the registry and safe for filenames.
	ArchiveBasename string
	// Root is the platform base the relative path is resolved against.
	Root Root
	// RelPath is the fixed path below Root, always in forward-slash form.
	RelPath string
	// Description is a one-line summary for listings.
	Description string
}

// ErrUnknownCategory is returned by lookups for names not in the registry.
var ErrUnknownCategory = errors.New("unknown category")

// Registry is an ordered, immutable set of categories.
type Registry struct {
	categories []Category
}

// Defaults returns the registry of Elite Dangerous categories in their
// canonical order.
func Defaults() Registry {
	return Registry{categories: []Category{
		{
			Name:            "Journal",
			ArchiveBasename: "Journal",
			Root:            RootSavedGames,
			RelPath:         "Frontier Developments/Elite Dangerous",
			Description:     "Flight journals and saved game data",
		},
		{
			Name:            "Bindings",
			ArchiveBasename: "Bindings",
			Root:            RootLocalAppData,
			RelPath:         "Frontier Developments/Elite Dangerous/Options/Bindings",
			Description:     "Custom keyboard, HOTAS and controller bindings",
		},
		{
			Name:            "Graphics",
			ArchiveBasename: "Graphics",
			Root:            RootLocalAppData,
			RelPath:         "Frontier Developments/Elite Dangerous/Options/Graphics",
			Description:     "Graphics configuration overrides",
		},
	}}
}

// All returns the categories in registration order. The returned slice is a
// copy; callers cannot mutate the registry through it.
func (r Registry) All() []Category {
	out := make([]Category, len(r.categories))
	copy(out, r.categories)
	return out
}

// Names returns the category names in registration order.
func (r Registry) Names() []string {
	names := make([]string, len(r.categories))
	for i, c := range r.categories {
		names[i] = c.Name
	}
	return names
}

// Resolve looks up a category by name, case-insensitively.
func (r Registry) Resolve(name string) (Category, error) {
	trimmed := strings.TrimSpace(name)
	for _, c := range r.categories {
		if strings.EqualFold(c.Name, trimmed) {
			return c, nil
		}
	}
	return Category{}, fmt.Errorf("%w: %q (known: %s)", ErrUnknownCategory, name, strings.Join(r.Names(), ", "))
}

// Select resolves a list of names, preserving the requested order. A single
// unknown name fails the whole selection: a typo in a selection is a usage
// error, not a condition to export around.
func (r Registry) Select(names []string) ([]Category, error) {
	selected := make([]Category, 0, len(names))
	for _, name := range names {
		c, err := r.Resolve(name)
		if err != nil {
			return nil, err
		}
		selected = append(selected, c)
	}
	return selected, nil
}
