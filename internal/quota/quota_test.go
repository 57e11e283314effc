package quota

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func fixedNow() time.Time {
	return time.Date(2026, 8, 15, 10, 0, 0, 0, time.UTC)
}

func TestMonthKey(t *testing.T) {
	require.Equal(t, "2026-08", MonthKey(fixedNow()))
}

func TestCheckEnforcesSafetyBuffer(t *testing.T) {
	store := NewMemoryStore()
	tr := New(store, map[string]int{"brave": 2000}, 50, zap.NewNop())
	tr.now = fixedNow

	ctx := context.Background()
	require.NoError(t, store.Upsert(ctx, "brave", "2026-08", 1955))

	st := tr.Check(ctx, "brave")
	require.False(t, st.Allowed, "1955 >= 2000-50 must deny")
	require.Equal(t, 1955, st.Used)
	require.Equal(t, 2000, st.Limit)
	require.Equal(t, 0, st.Remaining)

	require.NoError(t, store.Upsert(ctx, "brave", "2026-08", 1949))
	st = tr.Check(ctx, "brave")
	require.True(t, st.Allowed)
	require.Equal(t, 1, st.Remaining)
}

func TestCheckUnmeteredProviderAllowed(t *testing.T) {
	tr := New(NewMemoryStore(), map[string]int{"brave": 2000}, 50, zap.NewNop())
	st := tr.Check(context.Background(), "yelp")
	require.True(t, st.Allowed)
}

func TestCheckFailsOpenWithoutStore(t *testing.T) {
	tr := New(nil, map[string]int{"brave": 2000}, 50, zap.NewNop())
	require.True(t, tr.Check(context.Background(), "brave").Allowed)
}

type failingStore struct{}

func (failingStore) Get(context.Context, string, string) (int, error) {
	return 0, context.DeadlineExceeded
}
func (failingStore) Increment(context.Context, string, string) error {
	return context.DeadlineExceeded
}
func (failingStore) Upsert(context.Context, string, string, int) error {
	return context.DeadlineExceeded
}

func TestCheckFailsOpenOnStoreError(t *testing.T) {
	tr := New(failingStore{}, map[string]int{"brave": 2000}, 50, zap.NewNop())
	require.True(t, tr.Check(context.Background(), "brave").Allowed)
}

func TestRecordEventuallyDenies(t *testing.T) {
	store := NewMemoryStore()
	tr := New(store, map[string]int{"serper": 10}, 3, zap.NewNop())
	tr.now = fixedNow

	ctx := context.Background()
	for i := 0; i < 7; i++ {
		tr.record(ctx, "serper", MonthKey(fixedNow()))
	}
	require.False(t, tr.Check(ctx, "serper").Allowed, "used=7 >= 10-3")
}

type incrementBrokenStore struct {
	*MemoryStore
}

func (s incrementBrokenStore) Increment(context.Context, string, string) error {
	return context.DeadlineExceeded
}

func TestRecordFallsBackToUpsert(t *testing.T) {
	store := incrementBrokenStore{NewMemoryStore()}
	tr := New(store, map[string]int{"serper": 10}, 3, zap.NewNop())
	tr.now = fixedNow

	ctx := context.Background()
	tr.record(ctx, "serper", "2026-08")
	used, err := store.Get(ctx, "serper", "2026-08")
	require.NoError(t, err)
	require.Equal(t, 1, used)
}
