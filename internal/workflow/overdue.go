package workflow

import (
	"context"
	"fmt"
	"time"

	"github.com/erazemk/inventario/internal/model"
	"github.com/erazemk/inventario/internal/state"
)

func overdue(l model.Loan, now time.Time) bool {
	return l.Status == model.LoanStatusActive && l.DaysRemaining(now) < 0
}

// MarkOverdue flips active loans whose due date has passed to Vencido and
// returns how many changed.
func (s *Service) MarkOverdue(ctx context.Context) (n int, err error) {
	ctx, finish := s.start(ctx, "mark_overdue", "", System)
	defer func() { finish(err) }()

	now := s.now()
	due := 0
	for _, l := range s.store.Snapshot().Loans {
		if overdue(l, now) {
			due++
		}
	}
	if due == 0 {
		return 0, nil
	}

	_, err = s.store.Update(ctx, func(tx *state.Tx) error {
		n = 0
		loans := tx.Loans()
		for i := range *loans {
			l := &(*loans)[i]
			if !overdue(*l, now) {
				continue
			}
			l.Status = model.LoanStatusOverdue
			n++
			if err := tx.Emit(state.EventEdited, state.SubjectLoan, l.ID, System.Label(), now, map[string]string{"status": l.Status}); err != nil {
				return err
			}
		}
		if n > 0 {
			tx.AddActivity(model.Activity{
				Type:        model.ActionLend,
				Description: fmt.Sprintf("%d préstamos vencidos", n),
				At:          now,
				Actor:       System.Label(),
			})
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return n, nil
}

// RunOverdueSweep calls MarkOverdue every interval until ctx is done.
func (s *Service) RunOverdueSweep(ctx context.Context, interval time.Duration, onErr func(error)) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if _, err := s.MarkOverdue(ctx); err != nil && onErr != nil {
			onErr(err)
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
