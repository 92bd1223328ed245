package workflow

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"

	"github.com/erazemk/inventario/internal/model"
	"github.com/erazemk/inventario/internal/policy"
	"github.com/erazemk/inventario/internal/state"
)

// DeleteItem removes an inventory row. Rows holding units out on an
// assignment or loan must be returned first. Assignments and loans that
// reference the row keep their copied name and serial.
func (s *Service) DeleteItem(ctx context.Context, actor Actor, id int64) (err error) {
	ctx, finish := s.start(ctx, "delete_item", "", actor, attribute.Int64("item.id", id))
	defer func() { finish(err) }()

	if err := s.require(actor, policy.DeleteItems); err != nil {
		return err
	}

	_, err = s.store.Update(ctx, func(tx *state.Tx) error {
		now := s.now()
		it, ok := tx.View().Item(id)
		if !ok {
			return notFoundf("item %d", id)
		}
		if (it.Status == model.ItemStatusAssigned || it.Status == model.ItemStatusLent) && it.Quantity > 0 {
			return conflictf("item %d is %s", id, it.Status)
		}
		items := tx.Items()
		*items, _ = state.Remove(*items, id)
		tx.AddActivity(model.Activity{
			Type:        "Eliminación",
			Description: fmt.Sprintf("Artículo #%d %s eliminado", id, it.Name),
			At:          now,
			Actor:       actor.Label(),
		})
		return tx.Emit(state.EventDeleted, state.SubjectItem, id, actor.Email, now, it.Snapshot())
	})
	return err
}

// ImportState replaces the whole state with st.
func (s *Service) ImportState(ctx context.Context, actor Actor, st *state.State) (out *state.State, err error) {
	ctx, finish := s.start(ctx, "import_state", "", actor)
	defer func() { finish(err) }()

	if err := s.require(actor, policy.ManageState); err != nil {
		return nil, err
	}
	return s.store.Replace(ctx, st, actor.Email)
}
