package fs

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"tablecore/internal/blob/core"
)

func newStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	return s
}

func TestPutGetRoundTrip(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	info, err := s.Put(ctx, "exports/r1/loads.csv", strings.NewReader("Name\nL1\n"), core.PutOptions{
		ContentType: "text/csv",
		Metadata:    map[string]string{"table_key": "Loads"},
	})
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	if info.Size != 8 || info.ETag == "" {
		t.Fatalf("unexpected info %+v", info)
	}
	if !strings.HasPrefix(info.URL, "file://") {
		t.Fatalf("expected local url, got %q", info.URL)
	}

	got, body, err := s.Get(ctx, "exports/r1/loads.csv")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	payload, _ := io.ReadAll(body)
	_ = body.Close()
	if string(payload) != "Name\nL1\n" {
		t.Fatalf("unexpected payload %q", payload)
	}
	if got.ContentType != "text/csv" || got.Metadata["table_key"] != "Loads" || got.ETag != info.ETag {
		t.Fatalf("sidecar metadata lost: %+v", got)
	}
}

func TestPutIsCreateOnly(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	if _, err := s.Put(ctx, "k", strings.NewReader("a"), core.PutOptions{}); err != nil {
		t.Fatalf("put: %v", err)
	}
	if _, err := s.Put(ctx, "k", strings.NewReader("b"), core.PutOptions{}); err == nil {
		t.Fatalf("overwrite must be rejected")
	}
}

func TestKeySanitization(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	for _, key := range []string{"", "  ", "/abs", "../outside", "a/../../b"} {
		if _, err := s.Put(ctx, key, strings.NewReader("x"), core.PutOptions{}); err == nil {
			t.Fatalf("key %q must be rejected", key)
		}
	}
}

func TestDelete(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	if _, err := s.Put(ctx, "dir/k", strings.NewReader("x"), core.PutOptions{}); err != nil {
		t.Fatalf("put: %v", err)
	}
	existed, err := s.Delete(ctx, "dir/k")
	if err != nil || !existed {
		t.Fatalf("delete: existed=%v err=%v", existed, err)
	}
	existed, err = s.Delete(ctx, "dir/k")
	if err != nil || existed {
		t.Fatalf("second delete must report missing: existed=%v err=%v", existed, err)
	}
}

func TestListSkipsSidecars(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	for _, key := range []string{"exports/a.csv", "exports/b.json", "misc/c.txt"} {
		if _, err := s.Put(ctx, key, strings.NewReader("x"), core.PutOptions{ContentType: "text/plain"}); err != nil {
			t.Fatalf("put %s: %v", key, err)
		}
	}
	infos, err := s.List(ctx, "exports/")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(infos) != 2 || infos[0].Key != "exports/a.csv" || infos[1].Key != "exports/b.json" {
		t.Fatalf("unexpected listing %+v", infos)
	}
	for _, info := range infos {
		if strings.HasSuffix(info.Key, ".meta") {
			t.Fatalf("sidecar leaked into listing: %+v", info)
		}
		if info.ContentType != "text/plain" {
			t.Fatalf("metadata not loaded for %q", info.Key)
		}
	}
}

func TestPresignURL(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	if _, err := s.Put(ctx, "k", strings.NewReader("x"), core.PutOptions{}); err != nil {
		t.Fatalf("put: %v", err)
	}
	url, err := s.PresignURL(ctx, "k", core.SignedURLOptions{})
	if err != nil {
		t.Fatalf("presign: %v", err)
	}
	if !strings.HasPrefix(url, "file://") {
		t.Fatalf("unexpected url %q", url)
	}
	if _, err := s.PresignURL(ctx, "k", core.SignedURLOptions{Method: "PUT"}); !errors.Is(err, core.ErrUnsupported) {
		t.Fatalf("PUT presign must be unsupported, got %v", err)
	}
	if _, err := s.PresignURL(ctx, "missing", core.SignedURLOptions{}); err == nil {
		t.Fatalf("presign of missing key must fail")
	}
}

func TestNewCreatesRoot(t *testing.T) {
	root := filepath.Join(t.TempDir(), "nested", "artifacts")
	s, err := New(root)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if s.Driver() != core.DriverFilesystem {
		t.Fatalf("unexpected driver %q", s.Driver())
	}
	if _, err := os.Stat(root); err != nil {
		t.Fatalf("root not created: %v", err)
	}
}
