package identity

import (
	"os"
	"path/filepath"
	"regexp"
	"testing"
)

var namePattern = regexp.MustCompile(`^[a-z]+-[a-z]+-\d{3}$`)

func TestLoadOrCreateStableAcrossLoads(t *testing.T) {
	path := filepath.Join(t.TempDir(), "identity.yaml")

	first, err := LoadOrCreate(path)
	if err != nil {
		t.Fatalf("first load: %v", err)
	}
	if first.UserID == "" || first.Name == "" {
		t.Fatalf("incomplete identity generated: %+v", first)
	}

	second, err := LoadOrCreate(path)
	if err != nil {
		t.Fatalf("second load: %v", err)
	}
	if second.UserID != first.UserID || second.Name != first.Name {
		t.Fatalf("identity changed across loads: %+v vs %+v", first, second)
	}
}

func TestLoadOrCreateCreatesParentDir(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "identity.yaml")

	if _, err := LoadOrCreate(path); err != nil {
		t.Fatalf("load with missing parent dirs: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("identity file not written: %v", err)
	}
}

func TestLoadOrCreateRegeneratesCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "identity.yaml")
	if err := os.WriteFile(path, []byte("{not yaml"), 0o600); err != nil {
		t.Fatalf("write corrupt file: %v", err)
	}

	id, err := LoadOrCreate(path)
	if err != nil {
		t.Fatalf("load over corrupt file: %v", err)
	}
	if id.UserID == "" {
		t.Fatalf("no identity regenerated: %+v", id)
	}
}

func TestGenerateName(t *testing.T) {
	for i := 0; i < 20; i++ {
		name := GenerateName()
		if !namePattern.MatchString(name) {
			t.Fatalf("name %q does not match adjective-noun-NNN", name)
		}
	}
}

func TestGenerateUniqueUserIDs(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id := Generate()
		if seen[id.UserID] {
			t.Fatalf("duplicate user id generated: %s", id.UserID)
		}
		seen[id.UserID] = true
	}
}
