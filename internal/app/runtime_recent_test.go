package app

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jrbox/powergo/internal/config"
	"github.com/jrbox/powergo/internal/history"
)

func TestRuntimeRecentFilesDropsMissingFiles(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	db, err := history.Open(ctx, filepath.Join(dir, "history.db"))
	if err != nil {
		t.Fatalf("open history db: %v", err)
	}
	t.Cleanup(func() {
		_ = db.Close()
	})
	repo := history.NewRecentFileRepo(db)

	present := filepath.Join(dir, "present.json")
	if err := os.WriteFile(present, []byte("{}"), 0o600); err != nil {
		t.Fatalf("write present recording: %v", err)
	}
	missing := filepath.Join(dir, "missing.json")

	now := time.Now()
	for i, entry := range []history.RecentFile{
		{Path: missing, LastOpenedAt: now, PointCount: 10, DurationSec: 1},
		{Path: present, LastOpenedAt: now.Add(-time.Minute), PointCount: 20, DurationSec: 2},
	} {
		if err := repo.Touch(ctx, entry); err != nil {
			t.Fatalf("touch entry %d: %v", i, err)
		}
	}

	rt := &Runtime{
		Config:     config.Default(),
		RecentRepo: repo,
	}

	files, err := rt.RecentFiles(ctx)
	if err != nil {
		t.Fatalf("list recent files: %v", err)
	}
	if len(files) != 1 {
		t.Fatalf("expected 1 surviving entry, got %d", len(files))
	}
	if files[0].Path != present {
		t.Fatalf("expected %q to survive, got %q", present, files[0].Path)
	}
}
