package backend

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
)

func TestTypeIsValid(t *testing.T) {
	for _, typ := range []Type{FileBackend, SQLiteBackend, MemoryBackend} {
		if !typ.IsValid() {
			t.Errorf("%s should be valid", typ)
		}
	}
	if Type("sheets").IsValid() {
		t.Error("unknown type accepted")
	}
}

func TestOpenMemory(t *testing.T) {
	store, err := Open(context.Background(), nil, Config{Type: MemoryBackend})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer store.Close()

	snap, err := store.Load(context.Background())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(snap.Transactions) != 0 {
		t.Fatalf("fresh store not empty: %+v", snap)
	}
}

func TestOpenFile(t *testing.T) {
	store, err := Open(context.Background(), nil, Config{
		Type:    FileBackend,
		DataDir: filepath.Join(t.TempDir(), "data"),
	})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer store.Close()

	if _, err := store.Load(context.Background()); err != nil {
		t.Fatalf("Load on fresh dir: %v", err)
	}
}

func TestOpenRejectsUnknownType(t *testing.T) {
	_, err := Open(context.Background(), nil, Config{Type: "sheets"})
	if err == nil {
		t.Fatal("expected error for unknown backend type")
	}
	if !strings.Contains(err.Error(), "invalid backend type") {
		t.Fatalf("unexpected error: %v", err)
	}
}
