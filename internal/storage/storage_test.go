package storage

import (
	"context"
	"path/filepath"
	"testing"

	"pricehawk/pkg/logx"
)

func TestOpenDisabled(t *testing.T) {
	st, err := Open(Config{}, logx.Nop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if st != nil {
		t.Fatalf("expected nil store for empty driver")
	}
}

func TestFileStoreRoundTrip(t *testing.T) {
	dir := t.TempDir()
	st, err := Open(Config{Driver: "file", Path: dir}, logx.Nop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer st.Close()

	ctx := context.Background()

	if _, ok, err := st.Load(ctx, "items"); err != nil || ok {
		t.Fatalf("expected missing key, got ok=%v err=%v", ok, err)
	}

	want := []byte(`[{"asin":"B000000000"}]`)
	if err := st.Save(ctx, "items", want); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, ok, err := st.Load(ctx, "items")
	if err != nil || !ok {
		t.Fatalf("Load: ok=%v err=%v", ok, err)
	}
	if string(got) != string(want) {
		t.Fatalf("round trip mismatch: %q", got)
	}

	// Overwrite wins.
	if err := st.Save(ctx, "items", []byte(`[]`)); err != nil {
		t.Fatalf("Save overwrite: %v", err)
	}
	got, _, _ = st.Load(ctx, "items")
	if string(got) != `[]` {
		t.Fatalf("overwrite mismatch: %q", got)
	}

	if err := st.Delete(ctx, "items"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, ok, _ := st.Load(ctx, "items"); ok {
		t.Fatalf("key survived delete")
	}
	// Deleting a missing key is not an error.
	if err := st.Delete(ctx, "items"); err != nil {
		t.Fatalf("Delete missing: %v", err)
	}
}

func TestFileStoreRejectsBadKeys(t *testing.T) {
	st, err := Open(Config{Driver: "file", Path: t.TempDir()}, logx.Nop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer st.Close()

	for _, key := range []string{"", "  ", "a/b", `a\b`} {
		if err := st.Save(context.Background(), key, []byte("x")); err == nil {
			t.Fatalf("expected error for key %q", key)
		}
	}
}

func TestSQLiteStoreRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kv.db")
	st, err := Open(Config{Driver: "sqlite", Path: path}, logx.Nop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer st.Close()

	ctx := context.Background()
	if err := st.Save(ctx, "account_id", []byte("42")); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := st.Save(ctx, "account_id", []byte("43")); err != nil {
		t.Fatalf("Save upsert: %v", err)
	}
	got, ok, err := st.Load(ctx, "account_id")
	if err != nil || !ok {
		t.Fatalf("Load: ok=%v err=%v", ok, err)
	}
	if string(got) != "43" {
		t.Fatalf("upsert mismatch: %q", got)
	}
	if err := st.Delete(ctx, "account_id"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, ok, _ := st.Load(ctx, "account_id"); ok {
		t.Fatalf("key survived delete")
	}
}
