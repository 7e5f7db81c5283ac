package indexer

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"

	"primenumbers/core/types"
)

func newTestIndexer(t *testing.T) *Indexer {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	ix, err := Open(dsn)
	if err != nil {
		t.Fatalf("open indexer: %v", err)
	}
	t.Cleanup(func() { ix.Close() })
	return ix
}

func claimEvent(hunter, user, bounty string) *types.Event {
	return &types.Event{Type: "bounty.claimed", Attributes: map[string]string{
		"hunter": hunter,
		"user":   user,
		"bounty": bounty,
	}}
}

func TestOpenEmptyDSNDisabled(t *testing.T) {
	if _, err := Open("  "); err != ErrDisabled {
		t.Fatalf("expected ErrDisabled, got %v", err)
	}
}

func TestRecordAndQuery(t *testing.T) {
	ix := newTestIndexer(t)
	ctx := context.Background()

	if err := ix.Record(ctx, 1, "bounty.claim", 100, []*types.Event{claimEvent("0xaa", "0xBB", "5")}); err != nil {
		t.Fatalf("record: %v", err)
	}
	transfer := &types.Event{Type: "token.transfer", Attributes: map[string]string{"from": "0xcc", "amount": "1"}}
	if err := ix.Record(ctx, 2, "token.transfer", 200, []*types.Event{transfer, nil}); err != nil {
		t.Fatalf("record: %v", err)
	}

	all, err := ix.Query(ctx, Filter{})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(all) != 2 || all[0].Type != "token.transfer" {
		t.Fatalf("expected newest first, got %+v", all)
	}

	byUser, err := ix.Query(ctx, Filter{Subject: "0xbb"})
	if err != nil {
		t.Fatalf("query subject: %v", err)
	}
	if len(byUser) != 1 || byUser[0].Op != "bounty.claim" {
		t.Fatalf("unexpected subject match %+v", byUser)
	}
	attrs, err := byUser[0].Decode()
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if attrs["bounty"] != "5" || attrs["hunter"] != "0xaa" {
		t.Fatalf("unexpected attributes %v", attrs)
	}

	since, err := ix.Count(ctx, Filter{Since: 150})
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if since != 1 {
		t.Fatalf("expected one event since 150, got %d", since)
	}
}

func TestRecordSkipsReplayedSequence(t *testing.T) {
	ix := newTestIndexer(t)
	ctx := context.Background()

	events := []*types.Event{claimEvent("0xaa", "0xbb", "5")}
	if err := ix.Record(ctx, 7, "bounty.claim", 100, events); err != nil {
		t.Fatalf("record: %v", err)
	}
	if err := ix.Record(ctx, 7, "bounty.claim", 100, events); err != nil {
		t.Fatalf("replay: %v", err)
	}
	if err := ix.Record(ctx, 3, "bounty.claim", 100, events); err != nil {
		t.Fatalf("stale: %v", err)
	}
	n, err := ix.Count(ctx, Filter{Type: "bounty.claimed"})
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected replay to be ignored, got %d rows", n)
	}
	seq, err := ix.LastSeq(ctx)
	if err != nil {
		t.Fatalf("last seq: %v", err)
	}
	if seq != 7 {
		t.Fatalf("expected cursor 7, got %d", seq)
	}
}

func TestExportParquet(t *testing.T) {
	ix := newTestIndexer(t)
	ctx := context.Background()
	for i := uint64(1); i <= 3; i++ {
		evt := claimEvent("0xaa", fmt.Sprintf("0x%02d", i), "1")
		if err := ix.Record(ctx, i, "bounty.claim", i*10, []*types.Event{evt}); err != nil {
			t.Fatalf("record %d: %v", i, err)
		}
	}
	path := filepath.Join(t.TempDir(), "events.parquet")
	written, err := ix.ExportParquet(ctx, path, Filter{Type: "bounty.claimed"})
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if written != 3 {
		t.Fatalf("expected 3 rows, got %d", written)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat export: %v", err)
	}
	if info.Size() == 0 {
		t.Fatalf("empty parquet file")
	}
}
