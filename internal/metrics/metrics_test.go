package metrics

import (
	"context"
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erazemk/inventario/internal/model"
	"github.com/erazemk/inventario/internal/state"
)

type failingPersister struct{ err error }

func (f failingPersister) Save(context.Context, *state.State, []state.Bucket, []state.Event) error {
	return f.err
}

type staleLoader struct{ stored *state.State }

func (staleLoader) Save(context.Context, *state.State, []state.Bucket, []state.Event) error {
	return state.ErrConflict
}

func (l staleLoader) Load(context.Context) (*state.State, error) {
	return l.stored, nil
}

func TestTransitionCounter(t *testing.T) {
	m := New()
	m.Transition("submit", model.ActionLoad, "ok")
	m.Transition("submit", model.ActionLoad, "ok")
	m.Transition("approve", model.ActionRetire, "conflict")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.transitions.WithLabelValues("submit", model.ActionLoad, "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.transitions.WithLabelValues("approve", model.ActionRetire, "conflict")))
}

func TestObserveFollowsStore(t *testing.T) {
	m := New()
	store := state.NewStore(nil, nil)
	cancel := store.Subscribe(m.Observe)
	defer cancel()

	_, err := store.Update(context.Background(), func(tx *state.Tx) error {
		items := tx.Items()
		*items = append(*items,
			model.Item{ID: 1, Name: "Silla", Quantity: 7, Status: model.ItemStatusAvailable},
			model.Item{ID: 2, Name: "Silla", Quantity: 3, Status: model.ItemStatusLent},
		)
		tasks := tx.Tasks()
		*tasks = append(*tasks,
			model.PendingTask{ID: 1, Status: model.TaskStatusPending},
			model.PendingTask{ID: 2, Status: model.TaskStatusFinalized},
		)
		loans := tx.Loans()
		*loans = append(*loans, model.Loan{ID: 1, ItemID: 2, Status: model.LoanStatusOverdue})
		return nil
	})
	require.NoError(t, err)

	assert.Equal(t, 7.0, testutil.ToFloat64(m.items.WithLabelValues(model.ItemStatusAvailable)))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.items.WithLabelValues(model.ItemStatusLent)))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.items.WithLabelValues(model.ItemStatusRetired)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.pending.WithLabelValues("tasks")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.overdue))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.version))
}

func TestInstrumentRecordsResult(t *testing.T) {
	m := New()
	boom := errors.New("disk full")
	store := state.NewStore(nil, m.Instrument(failingPersister{err: boom}))

	_, err := store.Update(context.Background(), func(tx *state.Tx) error {
		tx.NextID(state.BucketItems)
		return nil
	})
	require.ErrorIs(t, err, boom)
	assert.Equal(t, 1, testutil.CollectAndCount(m.saves, "inventario_state_save_seconds"))
}

func TestInstrumentKeepsLoader(t *testing.T) {
	m := New()
	stored := state.Default()
	stored.Version = 7
	store := state.NewStore(nil, m.Instrument(staleLoader{stored: stored}))

	_, err := store.Update(context.Background(), func(tx *state.Tx) error { return nil })
	require.ErrorIs(t, err, state.ErrConflict)
	assert.Equal(t, int64(7), store.Snapshot().Version)
}

func TestHandlerServesText(t *testing.T) {
	m := New()
	m.Transition("submit", model.ActionLoad, "ok")

	srv := httptest.NewServer(m.Handler())
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(body), "inventario_workflow_transitions_total"))
}
