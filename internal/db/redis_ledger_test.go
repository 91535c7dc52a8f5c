package db

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"

	"github.com/markjakearzadon/shoegame-gobackend/internal/apperr"
	"github.com/markjakearzadon/shoegame-gobackend/internal/models"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return mr, client
}

func TestRedisLedgerAppendAndListOrder(t *testing.T) {
	t.Parallel()

	_, client := newTestRedis(t)
	l := NewRedisLedger(client, "")
	ctx := context.Background()

	for i := 0; i < 60; i++ {
		if err := l.Append(ctx, tx(fmt.Sprintf("ws_CO_%d", i), models.StatusSuccess)); err != nil {
			t.Fatalf("Append %d: %v", i, err)
		}
	}

	tests := []struct {
		name      string
		limit     int
		wantLen   int
		wantFirst string
	}{
		{name: "tail", limit: 50, wantLen: 50, wantFirst: "ws_CO_10"},
		{name: "limit_above_size", limit: 100, wantLen: 60, wantFirst: "ws_CO_0"},
		{name: "zero_is_all", limit: 0, wantLen: 60, wantFirst: "ws_CO_0"},
		{name: "negative_is_all", limit: -1, wantLen: 60, wantFirst: "ws_CO_0"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := l.List(ctx, tt.limit)
			if err != nil {
				t.Fatalf("List: %v", err)
			}
			if len(got) != tt.wantLen {
				t.Fatalf("expected %d entries, got %d", tt.wantLen, len(got))
			}
			if got[0].ID != tt.wantFirst {
				t.Fatalf("expected first %q, got %q", tt.wantFirst, got[0].ID)
			}
			if last := got[len(got)-1].ID; last != "ws_CO_59" {
				t.Fatalf("expected most recent last, got %q", last)
			}
		})
	}
}

func TestRedisLedgerKeepsDuplicatesAndRejectsInvalid(t *testing.T) {
	t.Parallel()

	mr, client := newTestRedis(t)
	l := NewRedisLedger(client, "test:ledger")
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if err := l.Append(ctx, tx("ws_CO_dup", models.StatusFailed)); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}

	invalid := []models.Transaction{
		{Status: models.StatusSuccess},
		{ID: "ws_CO_x", Status: "PENDING"},
	}
	for _, bad := range invalid {
		err := l.Append(ctx, bad)
		var perr *apperr.PersistenceError
		if !errors.As(err, &perr) || !errors.Is(err, ErrInvalidTransaction) {
			t.Fatalf("expected invalid transaction error, got %v", err)
		}
	}

	stored, err := mr.List("test:ledger")
	if err != nil {
		t.Fatalf("read list: %v", err)
	}
	if len(stored) != 2 {
		t.Fatalf("expected 2 stored entries, got %d", len(stored))
	}

	got, err := l.List(ctx, 50)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(got) != 2 || got[0].ID != "ws_CO_dup" || got[1].ID != "ws_CO_dup" {
		t.Fatalf("expected both duplicates, got %+v", got)
	}
}

func TestRedisLedgerSkipsUndecodableEntries(t *testing.T) {
	t.Parallel()

	mr, client := newTestRedis(t)
	l := NewRedisLedger(client, "")
	ctx := context.Background()

	if err := l.Append(ctx, tx("ws_CO_1", models.StatusSuccess)); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if _, err := mr.Push(DefaultLedgerKey, "not json"); err != nil {
		t.Fatalf("push: %v", err)
	}
	if err := l.Append(ctx, tx("ws_CO_2", models.StatusFailed)); err != nil {
		t.Fatalf("Append: %v", err)
	}

	got, err := l.List(ctx, 0)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(got) != 2 || got[0].ID != "ws_CO_1" || got[1].ID != "ws_CO_2" {
		t.Fatalf("expected the two valid entries in order, got %+v", got)
	}
}

func TestRedisLedgerUnavailable(t *testing.T) {
	t.Parallel()

	mr, client := newTestRedis(t)
	l := NewRedisLedger(client, "")
	mr.Close()

	var perr *apperr.PersistenceError
	if err := l.Append(context.Background(), tx("ws_CO_1", models.StatusSuccess)); !errors.As(err, &perr) {
		t.Fatalf("expected PersistenceError on append, got %v", err)
	}
	if _, err := l.List(context.Background(), 10); !errors.As(err, &perr) {
		t.Fatalf("expected PersistenceError on list, got %v", err)
	}
}
