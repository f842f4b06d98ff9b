package testutil

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

// SnapshotDir is a temporary catalog snapshot directory.
type SnapshotDir struct {
	Path  string
	t     *testing.T
	files map[string]string
	ages  map[string]time.Duration
}

// NewSnapshotDir creates a new snapshot directory builder.
// Call Build() to create the directory.
func NewSnapshotDir(t *testing.T) *SnapshotDir {
	t.Helper()
	return &SnapshotDir{
		t:     t,
		files: make(map[string]string),
		ages:  make(map[string]time.Duration),
	}
}

// WithCatalog writes a string catalog snapshot for id.
func (d *SnapshotDir) WithCatalog(id string, values ...string) *SnapshotDir {
	if id == "sets" {
		d.files[id] = SetsJSON(values...)
	} else {
		d.files[id] = CatalogJSON(values...)
	}
	return d
}

// WithRaw writes content verbatim as the snapshot for id.
func (d *SnapshotDir) WithRaw(id, content string) *SnapshotDir {
	d.files[id] = content
	return d
}

// WithAge backdates the snapshot for id.
func (d *SnapshotDir) WithAge(id string, age time.Duration) *SnapshotDir {
	d.ages[id] = age
	return d
}

// Build creates the directory and every configured snapshot.
func (d *SnapshotDir) Build() *SnapshotDir {
	d.t.Helper()
	d.Path = d.t.TempDir()

	now := time.Now()
	for id, content := range d.files {
		path := d.File(id)
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			d.t.Fatalf("failed to write snapshot %s: %v", id, err)
		}
		if age, ok := d.ages[id]; ok {
			mtime := now.Add(-age)
			if err := os.Chtimes(path, mtime, mtime); err != nil {
				d.t.Fatalf("failed to backdate snapshot %s: %v", id, err)
			}
		}
	}
	return d
}

// File returns the snapshot path for a catalog id. Ids in tests are already
// slugs.
func (d *SnapshotDir) File(id string) string {
	return filepath.Join(d.Path, id+".json")
}

// ReadFile returns a snapshot's content, failing the test if unreadable.
func (d *SnapshotDir) ReadFile(id string) string {
	d.t.Helper()
	content, err := os.ReadFile(d.File(id))
	if err != nil {
		d.t.Fatalf("failed to read snapshot %s: %v", id, err)
	}
	return string(content)
}
