package memory

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"tablecore/internal/blob/core"
)

func TestPutGetDelete(t *testing.T) {
	s := New()
	ctx := context.Background()

	info, err := s.Put(ctx, "exports/a/loads.csv", strings.NewReader("Name\nL1\n"), core.PutOptions{
		ContentType: "text/csv",
		Metadata:    map[string]string{"table_key": "Loads"},
	})
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	if info.Size != 8 || info.ContentType != "text/csv" {
		t.Fatalf("unexpected info %+v", info)
	}

	if _, err := s.Put(ctx, "exports/a/loads.csv", strings.NewReader("x"), core.PutOptions{}); err == nil {
		t.Fatalf("put must be create-only")
	}

	got, body, err := s.Get(ctx, "exports/a/loads.csv")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	payload, _ := io.ReadAll(body)
	_ = body.Close()
	if string(payload) != "Name\nL1\n" {
		t.Fatalf("unexpected payload %q", payload)
	}
	if got.Metadata["table_key"] != "Loads" {
		t.Fatalf("metadata lost: %+v", got)
	}
	got.Metadata["table_key"] = "mutated"
	again, _, err := s.Get(ctx, "exports/a/loads.csv")
	if err != nil {
		t.Fatalf("second get: %v", err)
	}
	if again.Metadata["table_key"] != "Loads" {
		t.Fatalf("metadata must be copied per read")
	}

	existed, err := s.Delete(ctx, "exports/a/loads.csv")
	if err != nil || !existed {
		t.Fatalf("delete: existed=%v err=%v", existed, err)
	}
	existed, err = s.Delete(ctx, "exports/a/loads.csv")
	if err != nil || existed {
		t.Fatalf("second delete must report missing: existed=%v err=%v", existed, err)
	}
	if _, _, err := s.Get(ctx, "exports/a/loads.csv"); err == nil {
		t.Fatalf("get after delete must fail")
	}
}

func TestListByPrefix(t *testing.T) {
	s := New()
	ctx := context.Background()
	for _, key := range []string{"exports/b/x.json", "exports/a/x.csv", "other/y.txt"} {
		if _, err := s.Put(ctx, key, strings.NewReader("data"), core.PutOptions{}); err != nil {
			t.Fatalf("put %s: %v", key, err)
		}
	}
	infos, err := s.List(ctx, "exports/")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(infos) != 2 || infos[0].Key != "exports/a/x.csv" || infos[1].Key != "exports/b/x.json" {
		t.Fatalf("unexpected listing %+v", infos)
	}
	all, err := s.List(ctx, "")
	if err != nil || len(all) != 3 {
		t.Fatalf("full listing: %v %+v", err, all)
	}
}

func TestPresignUnsupported(t *testing.T) {
	s := New()
	_, err := s.PresignURL(context.Background(), "k", core.SignedURLOptions{})
	if !errors.Is(err, core.ErrUnsupported) {
		t.Fatalf("expected ErrUnsupported, got %v", err)
	}
	if s.Driver() != core.DriverMemory {
		t.Fatalf("unexpected driver %q", s.Driver())
	}
}
