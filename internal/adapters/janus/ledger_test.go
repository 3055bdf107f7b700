package janus

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func ledgers(t *testing.T) map[string]Ledger {
	t.Helper()
	sq, err := OpenSQLiteLedger(filepath.Join(t.TempDir(), "orphans.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = sq.Close() })
	return map[string]Ledger{
		"memory": NewMemoryLedger(),
		"sqlite": sq,
	}
}

func TestLedger(t *testing.T) {
	ctx := context.Background()
	for name, l := range ledgers(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, l.Record(ctx, "1", "timeout"))
			require.NoError(t, l.Record(ctx, "2", "refused"))
			require.NoError(t, l.Record(ctx, "1", "timeout again"))
			require.NoError(t, l.Attempted(ctx, "1"))

			got, err := l.List(ctx)
			require.NoError(t, err)
			require.Len(t, got, 2)
			byID := map[string]Orphan{}
			for _, o := range got {
				byID[o.RoomID] = o
			}
			require.Equal(t, "timeout again", byID["1"].Reason)
			require.Equal(t, 1, byID["1"].Attempts)
			require.Zero(t, byID["2"].Attempts)

			require.NoError(t, l.Remove(ctx, "1"))
			got, err = l.List(ctx)
			require.NoError(t, err)
			require.Len(t, got, 1)
			require.Equal(t, "2", got[0].RoomID)
		})
	}
}

type fakeDestroyer struct {
	mu    sync.Mutex
	fail  map[string]bool
	calls []string
}

func (f *fakeDestroyer) DestroyRoom(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, id)
	if f.fail[id] {
		return errors.New("still down")
	}
	return nil
}

func TestReconcilerSweep(t *testing.T) {
	ctx := context.Background()
	l := NewMemoryLedger()
	_ = l.Record(ctx, "ok", "x")
	_ = l.Record(ctx, "bad", "x")
	d := &fakeDestroyer{fail: map[string]bool{"bad": true}}
	r := &Reconciler{Ledger: l, Media: d, MaxAttempts: 2}

	require.Equal(t, 1, r.Sweep(ctx))
	left, _ := l.List(ctx)
	require.Len(t, left, 1)
	require.Equal(t, "bad", left[0].RoomID)
	require.Equal(t, 1, left[0].Attempts)

	require.Zero(t, r.Sweep(ctx))
	// attempts exhausted, no further calls
	require.Zero(t, r.Sweep(ctx))
	require.Equal(t, []string{"ok", "bad", "bad"}, orderless(d.calls, "ok"))
}

// orderless moves first to the front; map iteration order of the ledger is
// not part of the contract.
func orderless(calls []string, first string) []string {
	out := []string{}
	for _, c := range calls {
		if c == first {
			out = append([]string{c}, out...)
			continue
		}
		out = append(out, c)
	}
	return out
}
