package category_test

import (
	"errors"
	"testing"

	"github.com/paulschiretz/ed-backup/pkg/category"
)

func TestDefaults_OrderIsStable(t *testing.T) {
	// Arrange & Act
	reg := category.Defaults()

	// Assert
	want := []string{"Journal", "Bindings", "Graphics"}
	got := reg.Names()
	if len(got) != len(want) {
		t.Fatalf("expected %d categories, got %d", len(want), len(got))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("position %d: expected %q, got %q", i, want[i], got[i])
		}
	}
}

func TestDefaults_ArchiveBasenamesAreUnique(t *testing.T) {
	// Arrange
	reg := category.Defaults()

	// Act & Assert
	seen := make(map[string]string)
	for _, c := range reg.All() {
		if prev, ok := seen[c.ArchiveBasename]; ok {
			t.Errorf("basename %q used by both %q and %q", c.ArchiveBasename, prev, c.Name)
		}
		seen[c.ArchiveBasename] = c.Name
	}
}

func TestResolve(t *testing.T) {
	reg := category.Defaults()

	testCases := []struct {
		name      string
		lookup    string
		wantName  string
		expectErr bool
	}{
		{name: "Exact Name", lookup: "Bindings", wantName: "Bindings"},
		{name: "Case Insensitive", lookup: "journal", wantName: "Journal"},
		{name: "Surrounding Whitespace", lookup: " Graphics ", wantName: "Graphics"},
		{name: "Unknown Name", lookup: "Screenshots", expectErr: true},
		{name: "Empty Name", lookup: "", expectErr: true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			// Act
			got, err := reg.Resolve(tc.lookup)

			// Assert
			if tc.expectErr {
				if err == nil {
					t.Fatalf("expected an error for %q, got none", tc.lookup)
				}
				if !errors.Is(err, category.ErrUnknownCategory) {
					t.Errorf("expected ErrUnknownCategory in chain, got: %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("expected no error, got: %v", err)
			}
			if got.Name != tc.wantName {
				t.Errorf("expected category %q, got %q", tc.wantName, got.Name)
			}
		})
	}
}

func TestSelect_PreservesRequestOrder(t *testing.T) {
	// Arrange
	reg := category.Defaults()

	// Act: request in non-registry order.
	cats, err := reg.Select([]string{"graphics", "Journal"})

	// Assert
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	if len(cats) != 2 {
		t.Fatalf("expected 2 categories, got %d", len(cats))
	}
	if cats[0].Name != "Graphics" || cats[1].Name != "Journal" {
		t.Errorf("expected [Graphics Journal], got [%s %s]", cats[0].Name, cats[1].Name)
	}
}

func TestSelect_UnknownNameFailsWholeSelection(t *testing.T) {
	// Arrange
	reg := category.Defaults()

	// Act
	cats, err := reg.Select([]string{"Bindings", "Nonsense"})

	// Assert
	if err == nil {
		t.Fatal("expected an error, got none")
	}
	if !errors.Is(err, category.ErrUnknownCategory) {
		t.Errorf("expected ErrUnknownCategory in chain, got: %v", err)
	}
	if cats != nil {
		t.Errorf("expected nil selection on error, got %d categories", len(cats))
	}
}

func TestAll_ReturnsACopy(t *testing.T) {
	// Arrange
	reg := category.Defaults()

	// Act: mutate the returned slice.
	first := reg.All()
	first[0].Name = "Tampered"

	// Assert: the registry must be unaffected.
	if reg.All()[0].Name != "Journal" {
		t.Error("mutating the slice returned by All() changed the registry")
	}
}
