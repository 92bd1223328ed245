package workflow

import (
	"fmt"
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/erazemk/inventario/internal/model"
	"github.com/erazemk/inventario/internal/state"
)

// Effects lists what applying an action changed.
type Effects struct {
	// Items are the ids of item rows created or modified.
	Items      []int64           `json:"items"`
	Assignment *model.Assignment `json:"assignment,omitempty"`
	Loan       *model.Loan       `json:"loan,omitempty"`
}

func (e *Effects) touched(id int64) {
	if !slices.Contains(e.Items, id) {
		e.Items = append(e.Items, id)
	}
}

var (
	retirable     = []string{model.ItemStatusAvailable, model.ItemStatusMaintenance, model.ItemStatusPendingRetirement}
	reactivatable = []string{model.ItemStatusRetired, model.ItemStatusMaintenance, model.ItemStatusPendingRetirement}
)

// applyAction validates a and applies its effect to the staged state. Any
// error leaves the transaction to be discarded, so either every step of the
// effect lands or none does.
func applyAction(tx *state.Tx, actor Actor, a model.Action, now time.Time) (Effects, error) {
	if err := validate(tx.View(), a); err != nil {
		return Effects{}, err
	}

	var (
		eff  Effects
		desc string
		err  error
		d    = a.Details
	)
	switch a.Type {
	case model.ActionLoad:
		desc, err = load(tx, &eff, d, now)
	case model.ActionCreateProduct:
		desc, err = createProduct(tx, &eff, d, now)
	case model.ActionEditProduct:
		desc, err = editProduct(tx, &eff, d)
	case model.ActionDuplicateProduct:
		desc, err = duplicateProduct(tx, &eff, d, now)
	case model.ActionRetire:
		desc, err = retire(tx, &eff, d.ItemIDs[0], d.Quantity, d.Reason, now)
	case model.ActionBulkRetire:
		for _, id := range d.ItemIDs {
			if _, err = retire(tx, &eff, id, 0, d.Reason, now); err != nil {
				break
			}
		}
		desc = fmt.Sprintf("%d artículos retirados: %s", len(d.ItemIDs), d.Reason)
	case model.ActionReactivate:
		desc, err = reactivate(tx, &eff, d.ItemIDs[0], d.Quantity)
	case model.ActionBulkReactivate:
		for _, id := range d.ItemIDs {
			if _, err = reactivate(tx, &eff, id, 0); err != nil {
				break
			}
		}
		desc = fmt.Sprintf("%d artículos reactivados", len(d.ItemIDs))
	case model.ActionAssign:
		desc, err = assign(tx, &eff, actor, d, now)
	case model.ActionLend:
		desc, err = lend(tx, &eff, actor, d, now)
	case model.ActionReturn:
		desc, err = giveBack(tx, &eff, d, now)
	}
	if err != nil {
		return Effects{}, err
	}

	tx.AddActivity(model.Activity{
		Type:        a.Type,
		Description: desc,
		At:          now,
		Actor:       actor.Label(),
		Details:     activityDetails(eff),
	})
	return eff, nil
}

func activityDetails(eff Effects) map[string]string {
	out := map[string]string{}
	if len(eff.Items) > 0 {
		ids := make([]string, len(eff.Items))
		for i, id := range eff.Items {
			ids[i] = fmt.Sprint(id)
		}
		out["items"] = strings.Join(ids, ",")
	}
	if eff.Assignment != nil {
		out["assignment"] = fmt.Sprint(eff.Assignment.ID)
	}
	if eff.Loan != nil {
		out["loan"] = fmt.Sprint(eff.Loan.ID)
	}
	return out
}

// newRow builds a fresh item row from a product draft.
func newRow(tx *state.Tx, draft model.Item, now time.Time) model.Item {
	row := draft
	row.ID = tx.NextID(state.BucketItems)
	row.Name = strings.TrimSpace(row.Name)
	row.SerialNumber = strings.TrimSpace(row.SerialNumber)
	row.Attributes = maps.Clone(draft.Attributes)
	if !model.ValidItemStatus(row.Status) {
		row.Status = model.ItemStatusAvailable
	}
	if row.IntakeDate.IsZero() {
		row.IntakeDate = now
	}
	if row.Serialized() {
		row.Quantity = 1
	}
	return row
}

func load(tx *state.Tx, eff *Effects, d model.ActionDetails, now time.Time) (string, error) {
	items := tx.Items()
	draft := *d.Item
	draft.Status = model.ItemStatusAvailable

	if len(d.Serials) == 0 {
		draft.SerialNumber = ""
		draft.Quantity = loadQuantity(d)
		row := newRow(tx, draft, now)
		*items = append(*items, row)
		eff.touched(row.ID)
		return fmt.Sprintf("Carga de %d unidades de %s", row.Quantity, row.Name), nil
	}

	for _, sn := range d.Serials {
		draft.SerialNumber = sn
		row := newRow(tx, draft, now)
		*items = append(*items, row)
		eff.touched(row.ID)
	}
	return fmt.Sprintf("Carga de %d unidades serializadas de %s", len(d.Serials), draft.Name), nil
}

func createProduct(tx *state.Tx, eff *Effects, d model.ActionDetails, now time.Time) (string, error) {
	row := newRow(tx, *d.Item, now)
	items := tx.Items()
	*items = append(*items, row)
	eff.touched(row.ID)
	return "Producto creado: " + row.Name, nil
}

// editProduct merges the set fields of the draft into the item. Status and
// quantity move only through the other actions. A serial number turns a bulk
// row into a single unit, so it is accepted only on a lone row of exactly one
// unit. Renaming a bulk row renames every row of the same product.
func editProduct(tx *state.Tx, eff *Effects, d model.ActionDetails) (string, error) {
	id := d.ItemIDs[0]
	p := d.Item
	old, ok := tx.View().Item(id)
	if !ok {
		return "", notFoundf("item %d", id)
	}

	if sn := strings.TrimSpace(p.SerialNumber); sn != "" && !old.Serialized() {
		if old.Quantity != 1 {
			return "", conflictf("item %d holds %d units, a serial number needs exactly one", id, old.Quantity)
		}
		for _, it := range tx.View().Items {
			if it.ID != id && it.SameProduct(old) {
				return "", conflictf("item %d shares its product with item %d", id, it.ID)
			}
		}
	}

	items := *tx.Items()
	var edited model.Item
	state.Patch(items, id, func(it *model.Item) {
		setString(&it.Name, p.Name)
		setString(&it.Brand, p.Brand)
		setString(&it.Model, p.Model)
		setString(&it.Category, p.Category)
		setString(&it.Description, p.Description)
		setString(&it.Supplier, p.Supplier)
		setString(&it.ContractID, p.ContractID)
		setString(&it.SerialNumber, p.SerialNumber)
		if !p.Cost.IsZero() {
			it.Cost = p.Cost
		}
		setTime(&it.AcquiredAt, p.AcquiredAt)
		setTime(&it.WarrantyEnd, p.WarrantyEnd)
		setTime(&it.UsefulLifeTo, p.UsefulLifeTo)
		if len(p.Attributes) > 0 {
			attrs := maps.Clone(it.Attributes)
			if attrs == nil {
				attrs = make(map[string]string, len(p.Attributes))
			}
			maps.Copy(attrs, p.Attributes)
			it.Attributes = attrs
		}
		edited = *it
	})
	eff.touched(id)

	if !old.Serialized() && (edited.Name != old.Name || edited.Model != old.Model) {
		for i := range items {
			if items[i].ID == id || !items[i].SameProduct(old) {
				continue
			}
			items[i].Name = edited.Name
			items[i].Model = edited.Model
			eff.touched(items[i].ID)
		}
	}
	return "Producto editado: " + edited.Name, nil
}

func setString(dst *string, v string) bool {
	v = strings.TrimSpace(v)
	if v == "" || v == *dst {
		return false
	}
	*dst = v
	return true
}

func setTime(dst **time.Time, v *time.Time) {
	if v != nil {
		t := *v
		*dst = &t
	}
}

func duplicateProduct(tx *state.Tx, eff *Effects, d model.ActionDetails, now time.Time) (string, error) {
	src, _ := tx.View().Item(d.ItemIDs[0])
	draft := src
	draft.SerialNumber = ""
	draft.Status = model.ItemStatusAvailable
	draft.RetirementReason = ""
	draft.RetiredAt = nil
	draft.IntakeDate = time.Time{}
	switch {
	case d.Quantity > 0:
		draft.Quantity = d.Quantity
	case src.Serialized():
		draft.Quantity = 1
	}

	row := newRow(tx, draft, now)
	items := tx.Items()
	*items = append(*items, row)
	eff.touched(row.ID)
	return fmt.Sprintf("Producto %s duplicado como #%d", src.Name, row.ID), nil
}

// moveUnits moves qty units of src's bulk product out of rows in status from
// into status to. The referenced row is drained first, then the remaining
// rows in order; rows are never driven below zero. Units moved to Disponible
// merge into an existing available row, otherwise a new row is spawned. The
// product's total quantity never changes.
func moveUnits(tx *state.Tx, src model.Item, from string, qty int, to string, edit func(*model.Item)) (model.Item, error) {
	items := tx.Items()
	matches := func(it model.Item) bool { return it.SameProduct(src) && it.Status == from }

	avail := 0
	for _, it := range *items {
		if matches(it) {
			avail += it.Quantity
		}
	}
	if qty <= 0 {
		return model.Item{}, validationf("quantity must be positive")
	}
	if qty > avail {
		return model.Item{}, validationf("requested %d units of %s but only %d are %s", qty, src.Name, avail, from)
	}

	left := qty
	take := func(i int) {
		n := min((*items)[i].Quantity, left)
		(*items)[i].Quantity -= n
		left -= n
	}
	if i := state.Find(*items, src.ID); i >= 0 && matches((*items)[i]) {
		take(i)
	}
	for i := range *items {
		if left == 0 {
			break
		}
		if (*items)[i].ID != src.ID && matches((*items)[i]) {
			take(i)
		}
	}

	if to == model.ItemStatusAvailable {
		i := slices.IndexFunc(*items, func(it model.Item) bool {
			return it.SameProduct(src) && it.Status == model.ItemStatusAvailable
		})
		if i >= 0 {
			(*items)[i].Quantity += qty
			if edit != nil {
				edit(&(*items)[i])
			}
			return (*items)[i], nil
		}
	}

	row := src
	row.ID = tx.NextID(state.BucketItems)
	row.Quantity = qty
	row.Status = to
	row.Attributes = maps.Clone(src.Attributes)
	if edit != nil {
		edit(&row)
	}
	*items = append(*items, row)
	return row, nil
}

func retire(tx *state.Tx, eff *Effects, id int64, qty int, reason string, now time.Time) (string, error) {
	it, _ := tx.View().Item(id)
	if !slices.Contains(retirable, it.Status) {
		return "", conflictf("item %d is %s and cannot be retired", id, it.Status)
	}
	stamp := func(row *model.Item) {
		row.Status = model.ItemStatusRetired
		row.RetirementReason = reason
		t := now
		row.RetiredAt = &t
	}

	if it.Serialized() {
		state.Patch(*tx.Items(), id, stamp)
		eff.touched(id)
		return fmt.Sprintf("%s (%s) retirado: %s", it.Name, it.SerialNumber, reason), nil
	}

	if qty == 0 {
		qty = it.Quantity
	}
	if qty == 0 {
		return "", conflictf("item %d has no units left", id)
	}
	row, err := moveUnits(tx, it, it.Status, qty, model.ItemStatusRetired, stamp)
	if err != nil {
		return "", err
	}
	eff.touched(id)
	eff.touched(row.ID)
	return fmt.Sprintf("%d unidades de %s retiradas: %s", qty, it.Name, reason), nil
}

func reactivate(tx *state.Tx, eff *Effects, id int64, qty int) (string, error) {
	it, _ := tx.View().Item(id)
	if !slices.Contains(reactivatable, it.Status) {
		return "", conflictf("item %d is %s and cannot be reactivated", id, it.Status)
	}
	restore := func(row *model.Item) {
		row.Status = model.ItemStatusAvailable
		row.RetirementReason = ""
		row.RetiredAt = nil
	}

	if it.Serialized() {
		state.Patch(*tx.Items(), id, restore)
		eff.touched(id)
		return fmt.Sprintf("%s (%s) reactivado", it.Name, it.SerialNumber), nil
	}

	if qty == 0 {
		qty = it.Quantity
	}
	if qty == 0 {
		return "", conflictf("item %d has no units left", id)
	}
	row, err := moveUnits(tx, it, it.Status, qty, model.ItemStatusAvailable, restore)
	if err != nil {
		return "", err
	}
	eff.touched(id)
	eff.touched(row.ID)
	return fmt.Sprintf("%d unidades de %s reactivadas", qty, it.Name), nil
}

// handOut moves an available item, or qty units of it, into status to and
// returns the row now holding them.
func handOut(tx *state.Tx, eff *Effects, id int64, qty int, to string) (model.Item, int, error) {
	it, _ := tx.View().Item(id)
	if it.Status != model.ItemStatusAvailable {
		return model.Item{}, 0, conflictf("item %d is %s, not %s", id, it.Status, model.ItemStatusAvailable)
	}

	if it.Serialized() {
		if qty > 1 {
			return model.Item{}, 0, validationf("serialized item %d is a single unit", id)
		}
		state.Patch(*tx.Items(), id, func(row *model.Item) { row.Status = to })
		eff.touched(id)
		it.Status = to
		return it, 1, nil
	}

	if qty == 0 {
		qty = 1
	}
	row, err := moveUnits(tx, it, model.ItemStatusAvailable, qty, to, nil)
	if err != nil {
		return model.Item{}, 0, err
	}
	eff.touched(id)
	eff.touched(row.ID)
	return row, qty, nil
}

func assign(tx *state.Tx, eff *Effects, actor Actor, d model.ActionDetails, now time.Time) (string, error) {
	row, qty, err := handOut(tx, eff, d.ItemIDs[0], d.Quantity, model.ItemStatusAssigned)
	if err != nil {
		return "", err
	}

	as := model.Assignment{
		ID:           tx.NextID(state.BucketAssignments),
		ItemID:       row.ID,
		ItemName:     row.Name,
		SerialNumber: row.SerialNumber,
		Quantity:     qty,
		AssignedTo:   strings.TrimSpace(d.AssignedTo),
		AssignedAt:   now,
		Status:       model.AssignmentStatusActive,
		Notes:        d.Notes,
		RecordedBy:   actor.Label(),
	}
	list := tx.Assignments()
	*list = append(*list, as)
	eff.Assignment = &as
	return fmt.Sprintf("%s asignado a %s", describe(row, qty), as.AssignedTo), nil
}

func lend(tx *state.Tx, eff *Effects, actor Actor, d model.ActionDetails, now time.Time) (string, error) {
	row, qty, err := handOut(tx, eff, d.ItemIDs[0], d.Quantity, model.ItemStatusLent)
	if err != nil {
		return "", err
	}

	l := model.Loan{
		ID:           tx.NextID(state.BucketLoans),
		ItemID:       row.ID,
		ItemName:     row.Name,
		SerialNumber: row.SerialNumber,
		Quantity:     qty,
		Borrower:     strings.TrimSpace(d.AssignedTo),
		LentAt:       now,
		DueDate:      *d.DueDate,
		Status:       model.LoanStatusActive,
		Notes:        d.Notes,
		RecordedBy:   actor.Label(),
	}
	list := tx.Loans()
	*list = append(*list, l)
	eff.Loan = &l
	return fmt.Sprintf("%s prestado a %s hasta %s", describe(row, qty), l.Borrower, l.DueDate.Format(time.DateOnly)), nil
}

// giveBack closes an assignment or loan and returns its units to stock.
func giveBack(tx *state.Tx, eff *Effects, d model.ActionDetails, now time.Time) (string, error) {
	var (
		itemID int64
		qty    int
		from   string
		who    string
	)
	returned := now
	if d.AssignmentID != 0 {
		as, _ := state.Get(tx.View().Assignments, d.AssignmentID)
		if as.Status != model.AssignmentStatusActive {
			return "", fmt.Errorf("%w: assignment %d is %s", ErrInvalidState, as.ID, as.Status)
		}
		itemID, qty, from, who = as.ItemID, as.Quantity, model.ItemStatusAssigned, as.AssignedTo
		state.Patch(*tx.Assignments(), as.ID, func(a *model.Assignment) {
			a.Status = model.AssignmentStatusReturned
			a.ReturnedAt = &returned
		})
		closed, _ := state.Get(tx.View().Assignments, as.ID)
		eff.Assignment = &closed
	} else {
		l, _ := state.Get(tx.View().Loans, d.LoanID)
		if !l.Open() {
			return "", fmt.Errorf("%w: loan %d is %s", ErrInvalidState, l.ID, l.Status)
		}
		itemID, qty, from, who = l.ItemID, l.Quantity, model.ItemStatusLent, l.Borrower
		state.Patch(*tx.Loans(), l.ID, func(l *model.Loan) {
			l.Status = model.LoanStatusReturned
			l.ReturnedAt = &returned
		})
		closed, _ := state.Get(tx.View().Loans, l.ID)
		eff.Loan = &closed
	}

	it, ok := tx.View().Item(itemID)
	if !ok {
		return "", notFoundf("item %d", itemID)
	}
	if it.Status != from {
		return "", conflictf("item %d is %s, not %s", itemID, it.Status, from)
	}

	if it.Serialized() {
		state.Patch(*tx.Items(), itemID, func(row *model.Item) { row.Status = model.ItemStatusAvailable })
		eff.touched(itemID)
		return fmt.Sprintf("%s devuelto por %s", describe(it, 1), who), nil
	}

	if qty > it.Quantity {
		return "", conflictf("item %d holds %d units, cannot return %d", itemID, it.Quantity, qty)
	}
	row, err := moveUnits(tx, it, from, qty, model.ItemStatusAvailable, nil)
	if err != nil {
		return "", err
	}
	eff.touched(itemID)
	eff.touched(row.ID)
	return fmt.Sprintf("%s devuelto por %s", describe(it, qty), who), nil
}

func describe(it model.Item, qty int) string {
	if it.Serialized() {
		return fmt.Sprintf("%s (%s)", it.Name, it.SerialNumber)
	}
	return fmt.Sprintf("%d x %s", qty, it.Name)
}
