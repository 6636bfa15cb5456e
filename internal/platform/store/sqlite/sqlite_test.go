package sqlite_test

import (
	"context"
	"testing"

	"github.com/MahdiBaghbani/huddle-go/internal/platform/store"
	_ "github.com/MahdiBaghbani/huddle-go/internal/platform/store/sqlite"
	"github.com/MahdiBaghbani/huddle-go/internal/platform/store/storetest"
)

func TestSQLiteDriver(t *testing.T) {
	storetest.RunDriverTests(t, "sqlite", &store.DriverConfig{
		Driver:  "sqlite",
		DataDir: t.TempDir(),
	})
}

func TestSQLiteDriver_RequiresDataDir(t *testing.T) {
	if _, err := store.New(&store.DriverConfig{Driver: "sqlite"}); err == nil {
		t.Fatal("expected error without data_dir")
	}
}

func TestSQLiteDriver_ReopenKeepsData(t *testing.T) {
	ctx := context.Background()
	cfg := &store.DriverConfig{Driver: "sqlite", DataDir: t.TempDir()}

	first, err := store.New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := first.Init(ctx); err != nil {
		t.Fatalf("Init: %v", err)
	}
	post := storetest.TestPost("host", 3)
	if err := first.Repos().Posts.Create(ctx, post); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := first.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	second, err := store.New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := second.Init(ctx); err != nil {
		t.Fatalf("Init after reopen: %v", err)
	}
	defer second.Close()

	got, err := second.Repos().Posts.Get(ctx, post.ID)
	if err != nil {
		t.Fatalf("Get after reopen: %v", err)
	}
	if got.Title != post.Title || len(got.ParticipantIDs) != 1 {
		t.Errorf("unexpected post after reopen: %+v", got)
	}
}
