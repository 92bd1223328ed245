package workflow

import (
	"slices"
	"strings"

	"github.com/erazemk/inventario/internal/model"
	"github.com/erazemk/inventario/internal/state"
)

// validate checks the shape of an action and that everything it references
// exists. Status preconditions are checked when the effect is applied.
func validate(st *state.State, a model.Action) error {
	d := a.Details
	if d.Quantity < 0 {
		return validationf("quantity must not be negative")
	}

	switch a.Type {
	case model.ActionLoad:
		if d.Item == nil || strings.TrimSpace(d.Item.Name) == "" {
			return validationf("a load needs a product with a name")
		}
		if len(d.Serials) == 0 {
			if loadQuantity(d) <= 0 {
				return validationf("a load needs serial numbers or a positive quantity")
			}
			return nil
		}
		seen := make(map[string]bool, len(d.Serials))
		for _, sn := range d.Serials {
			sn = strings.TrimSpace(sn)
			if sn == "" {
				return validationf("serial numbers must not be empty")
			}
			if seen[sn] {
				return validationf("serial number %q listed twice", sn)
			}
			seen[sn] = true
			if serialTaken(st.Items, sn, 0) {
				return conflictf("serial number %q already exists", sn)
			}
		}

	case model.ActionCreateProduct:
		if d.Item == nil || strings.TrimSpace(d.Item.Name) == "" {
			return validationf("a product needs a name")
		}
		if sn := strings.TrimSpace(d.Item.SerialNumber); sn != "" && serialTaken(st.Items, sn, 0) {
			return conflictf("serial number %q already exists", sn)
		}

	case model.ActionEditProduct:
		if d.Item == nil {
			return validationf("an edit needs the changed fields")
		}
		id, err := singleItem(st, d)
		if err != nil {
			return err
		}
		if sn := strings.TrimSpace(d.Item.SerialNumber); sn != "" && serialTaken(st.Items, sn, id) {
			return conflictf("serial number %q already exists", sn)
		}

	case model.ActionDuplicateProduct, model.ActionReactivate:
		if _, err := singleItem(st, d); err != nil {
			return err
		}

	case model.ActionRetire:
		if _, err := singleItem(st, d); err != nil {
			return err
		}
		if strings.TrimSpace(d.Reason) == "" {
			return validationf("a retirement needs a reason")
		}

	case model.ActionAssign, model.ActionLend:
		if _, err := singleItem(st, d); err != nil {
			return err
		}
		if strings.TrimSpace(d.AssignedTo) == "" {
			return validationf("%s needs a recipient", a.Type)
		}
		if a.Type == model.ActionLend && d.DueDate == nil {
			return validationf("a loan needs a due date")
		}

	case model.ActionBulkRetire, model.ActionBulkReactivate:
		if err := itemsExist(st, d.ItemIDs); err != nil {
			return err
		}
		if a.Type == model.ActionBulkRetire && strings.TrimSpace(d.Reason) == "" {
			return validationf("a retirement needs a reason")
		}

	case model.ActionReturn:
		switch {
		case (d.AssignmentID == 0) == (d.LoanID == 0):
			return validationf("a return names exactly one assignment or loan")
		case d.AssignmentID != 0:
			if _, ok := state.Get(st.Assignments, d.AssignmentID); !ok {
				return notFoundf("assignment %d", d.AssignmentID)
			}
		default:
			if _, ok := state.Get(st.Loans, d.LoanID); !ok {
				return notFoundf("loan %d", d.LoanID)
			}
		}

	default:
		return validationf("unknown action type %q", a.Type)
	}
	return nil
}

func loadQuantity(d model.ActionDetails) int {
	if d.Quantity > 0 {
		return d.Quantity
	}
	if d.Item != nil {
		return d.Item.Quantity
	}
	return 0
}

func singleItem(st *state.State, d model.ActionDetails) (int64, error) {
	if len(d.ItemIDs) != 1 {
		return 0, validationf("exactly one item is required, got %d", len(d.ItemIDs))
	}
	if _, ok := st.Item(d.ItemIDs[0]); !ok {
		return 0, notFoundf("item %d", d.ItemIDs[0])
	}
	return d.ItemIDs[0], nil
}

func itemsExist(st *state.State, ids []int64) error {
	if len(ids) == 0 {
		return validationf("no items selected")
	}
	seen := make(map[int64]bool, len(ids))
	for _, id := range ids {
		if seen[id] {
			return validationf("item %d selected twice", id)
		}
		seen[id] = true
		if _, ok := st.Item(id); !ok {
			return notFoundf("item %d", id)
		}
	}
	return nil
}

func serialTaken(items []model.Item, serial string, except int64) bool {
	return slices.ContainsFunc(items, func(it model.Item) bool {
		return it.ID != except && it.SerialNumber == serial
	})
}

// prepare validates an action for deferral and returns its details with
// snapshots of every referenced item.
func prepare(st *state.State, a model.Action) (model.ActionDetails, error) {
	if err := validate(st, a); err != nil {
		return model.ActionDetails{}, err
	}

	d := a.Details
	d.ItemIDs = slices.Clone(d.ItemIDs)
	d.Serials = slices.Clone(d.Serials)
	if d.Item != nil {
		draft := *d.Item
		d.Item = &draft
	}

	ids := d.ItemIDs
	if a.Type == model.ActionReturn {
		if as, ok := state.Get(st.Assignments, d.AssignmentID); ok {
			ids = []int64{as.ItemID}
		} else if l, ok := state.Get(st.Loans, d.LoanID); ok {
			ids = []int64{l.ItemID}
		}
	}
	d.Snapshots = nil
	for _, id := range ids {
		if it, ok := st.Item(id); ok {
			d.Snapshots = append(d.Snapshots, it.Snapshot())
		}
	}
	return d, nil
}
