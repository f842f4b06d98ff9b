package cardstore

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"
)

func TestStore(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	t.Run("put and get", func(t *testing.T) {
		s, err := OpenInMemory()
		if err != nil {
			t.Fatalf("failed to open store: %v", err)
		}
		defer s.Close()
		s.SetClock(func() time.Time { return now })

		if err := s.Put(ctx, "Lightning Bolt", []byte(`{"name":"Lightning Bolt"}`)); err != nil {
			t.Fatalf("Put: %v", err)
		}
		got, ok, err := s.Get(ctx, "Lightning Bolt", time.Hour)
		if err != nil || !ok {
			t.Fatalf("Get = %v, %v", ok, err)
		}
		if string(got) != `{"name":"Lightning Bolt"}` {
			t.Errorf("payload = %s", got)
		}

		if _, ok, err := s.Get(ctx, "lightning bolt", time.Hour); err != nil || ok {
			t.Errorf("names are case-sensitive, got ok=%v err=%v", ok, err)
		}
	})

	t.Run("stale rows are misses", func(t *testing.T) {
		s, err := OpenInMemory()
		if err != nil {
			t.Fatalf("failed to open store: %v", err)
		}
		defer s.Close()

		clock := now
		s.SetClock(func() time.Time { return clock })
		if err := s.Put(ctx, "Shock", []byte(`{}`)); err != nil {
			t.Fatalf("Put: %v", err)
		}

		clock = now.Add(48 * time.Hour)
		if _, ok, _ := s.Get(ctx, "Shock", 24*time.Hour); ok {
			t.Error("expected stale row to miss")
		}
		if _, ok, _ := s.Get(ctx, "Shock", 0); !ok {
			t.Error("maxAge 0 should accept any age")
		}

		n, err := s.Prune(ctx, 24*time.Hour)
		if err != nil || n != 1 {
			t.Fatalf("Prune = %d, %v", n, err)
		}
	})

	t.Run("stats", func(t *testing.T) {
		s, err := OpenInMemory()
		if err != nil {
			t.Fatalf("failed to open store: %v", err)
		}
		defer s.Close()

		st, err := s.Stats(ctx)
		if err != nil || st.Cards != 0 || !st.Oldest.IsZero() {
			t.Fatalf("empty stats = %#v, %v", st, err)
		}

		clock := now
		s.SetClock(func() time.Time { return clock })
		s.Put(ctx, "A", []byte(`{}`))
		clock = now.Add(time.Hour)
		s.Put(ctx, "B", []byte(`{}`))

		st, err = s.Stats(ctx)
		if err != nil {
			t.Fatalf("Stats: %v", err)
		}
		if st.Cards != 2 || !st.Oldest.Equal(now) || !st.Newest.Equal(now.Add(time.Hour)) {
			t.Fatalf("stats = %#v", st)
		}
	})
}

func TestOpenRecreatesIncompatibleSchema(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, FileName)

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		t.Fatalf("sql.Open: %v", err)
	}
	if _, err := db.Exec(`CREATE TABLE meta (key TEXT PRIMARY KEY, value TEXT NOT NULL);
		INSERT INTO meta VALUES ('version', '0');
		CREATE TABLE cards (name TEXT PRIMARY KEY, blob TEXT);`); err != nil {
		t.Fatalf("seed old schema: %v", err)
	}
	db.Close()

	s, err := Open(dir)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()

	if err := s.Put(context.Background(), "Island", []byte(`{}`)); err != nil {
		t.Fatalf("Put after recreate: %v", err)
	}
}
