package testutil

import (
	"os"
	"strings"
	"time"
)

// AssertSnapshotExists fails the test if the snapshot does not exist.
func (d *SnapshotDir) AssertSnapshotExists(id string) {
	d.t.Helper()
	if _, err := os.Stat(d.File(id)); os.IsNotExist(err) {
		d.t.Errorf("expected snapshot to exist: %s", id)
	}
}

// AssertSnapshotNotExists fails the test if the snapshot exists.
func (d *SnapshotDir) AssertSnapshotNotExists(id string) {
	d.t.Helper()
	if _, err := os.Stat(d.File(id)); err == nil {
		d.t.Errorf("expected snapshot to not exist: %s", id)
	}
}

// AssertSnapshotContains fails the test if the snapshot does not contain
// the substring.
func (d *SnapshotDir) AssertSnapshotContains(id, substr string) {
	d.t.Helper()
	content := d.ReadFile(id)
	if !strings.Contains(content, substr) {
		d.t.Errorf("expected snapshot %s to contain %q, got:\n%s", id, substr, content)
	}
}

// AssertSnapshotFresh fails the test if the snapshot was not written within
// the last window.
func (d *SnapshotDir) AssertSnapshotFresh(id string, window time.Duration) {
	d.t.Helper()
	info, err := os.Stat(d.File(id))
	if err != nil {
		d.t.Errorf("expected snapshot to exist: %s", id)
		return
	}
	if age := time.Since(info.ModTime()); age > window {
		d.t.Errorf("expected snapshot %s to be rewritten, age %v", id, age)
	}
}
