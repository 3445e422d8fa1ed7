package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"endpointd/internal/slogutil"
)

func openTestDB(t *testing.T, path string) *DB {
	t.Helper()
	db, err := Open(path, slogutil.NewDiscardLogger())
	if err != nil {
		t.Fatalf("Open(%q) error = %v", path, err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestBlobs_CRUD(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t, MemoryPath)

	created, err := db.PutBlob(ctx, "a/one.txt", "text/plain", []byte("first"))
	if err != nil || !created {
		t.Fatalf("PutBlob() = %v, %v; want created", created, err)
	}
	created, err = db.PutBlob(ctx, "a/one.txt", "text/markdown", []byte("second"))
	if err != nil || created {
		t.Fatalf("PutBlob() overwrite = %v, %v; want not created", created, err)
	}

	b, err := db.GetBlob(ctx, "a/one.txt")
	if err != nil {
		t.Fatalf("GetBlob() error = %v", err)
	}
	if string(b.Data) != "second" || b.ContentType != "text/markdown" {
		t.Errorf("GetBlob() = %q (%s)", b.Data, b.ContentType)
	}

	deleted, err := db.DeleteBlob(ctx, "a/one.txt")
	if err != nil || !deleted {
		t.Errorf("DeleteBlob() = %v, %v", deleted, err)
	}
	if _, err := db.GetBlob(ctx, "a/one.txt"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetBlob() after delete error = %v, want ErrNotFound", err)
	}
	deleted, err = db.DeleteBlob(ctx, "a/one.txt")
	if err != nil || deleted {
		t.Errorf("second DeleteBlob() = %v, %v; want false", deleted, err)
	}
}

func TestBlobs_EmptyContent(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t, MemoryPath)

	if _, err := db.PutBlob(ctx, "empty", "application/octet-stream", nil); err != nil {
		t.Fatal(err)
	}
	b, err := db.GetBlob(ctx, "empty")
	if err != nil || len(b.Data) != 0 {
		t.Errorf("GetBlob(empty) = %v, %v", b, err)
	}
}

func TestBlobs_ListPrefix(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t, MemoryPath)

	for _, k := range []string{"img/b.png", "img/a.png", "doc/x.txt", "img_other"} {
		if _, err := db.PutBlob(ctx, k, "application/octet-stream", []byte(k)); err != nil {
			t.Fatal(err)
		}
	}

	infos, err := db.ListBlobs(ctx, "img/")
	if err != nil {
		t.Fatalf("ListBlobs() error = %v", err)
	}
	if len(infos) != 2 || infos[0].Key != "img/a.png" || infos[1].Key != "img/b.png" {
		t.Errorf("ListBlobs(img/) = %+v", infos)
	}
	if infos[0].Size != int64(len("img/a.png")) {
		t.Errorf("Size = %d", infos[0].Size)
	}

	all, err := db.ListBlobs(ctx, "")
	if err != nil || len(all) != 4 {
		t.Errorf("ListBlobs(\"\") = %d entries, %v", len(all), err)
	}
}

func TestOpen_FilePersists(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "data", "blobs.db")

	db, err := Open(path, slogutil.NewDiscardLogger())
	if err != nil {
		t.Fatal(err)
	}
	if _, err := db.PutBlob(ctx, "k", "text/plain", []byte("v")); err != nil {
		t.Fatal(err)
	}
	_ = db.Close()

	reopened := openTestDB(t, path)
	b, err := reopened.GetBlob(ctx, "k")
	if err != nil || string(b.Data) != "v" {
		t.Errorf("after reopen GetBlob() = %v, %v", b, err)
	}
}
