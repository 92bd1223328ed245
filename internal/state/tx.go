package state

import (
	"fmt"
	"maps"
	"slices"
	"time"

	"github.com/erazemk/inventario/internal/model"
)

// Tx stages changes against a snapshot. The first write access to a
// collection clones it; untouched collections stay shared with the base
// snapshot.
type Tx struct {
	st     State
	dirty  map[Bucket]bool
	events []Event
}

func newTx(base *State) *Tx {
	return &Tx{st: *base, dirty: make(map[Bucket]bool)}
}

// touch marks b dirty and reports whether this is the first write to it.
func (tx *Tx) touch(b Bucket) bool {
	if tx.dirty[b] {
		return false
	}
	tx.dirty[b] = true
	return true
}

// View exposes the staged state for reading. Writes must go through the
// collection accessors.
func (tx *Tx) View() *State {
	return &tx.st
}

// Items returns the staged item collection for writing.
func (tx *Tx) Items() *[]model.Item {
	if tx.touch(BucketItems) {
		tx.st.Items = slices.Clone(tx.st.Items)
	}
	return &tx.st.Items
}

// Assignments returns the staged assignment collection for writing.
func (tx *Tx) Assignments() *[]model.Assignment {
	if tx.touch(BucketAssignments) {
		tx.st.Assignments = slices.Clone(tx.st.Assignments)
	}
	return &tx.st.Assignments
}

// Loans returns the staged loan collection for writing.
func (tx *Tx) Loans() *[]model.Loan {
	if tx.touch(BucketLoans) {
		tx.st.Loans = slices.Clone(tx.st.Loans)
	}
	return &tx.st.Loans
}

// Tasks returns the staged pending task collection for writing.
func (tx *Tx) Tasks() *[]model.PendingTask {
	if tx.touch(BucketTasks) {
		tx.st.Tasks = slices.Clone(tx.st.Tasks)
	}
	return &tx.st.Tasks
}

// Requests returns the staged pending request collection for writing.
func (tx *Tx) Requests() *[]model.PendingActionRequest {
	if tx.touch(BucketRequests) {
		tx.st.Requests = slices.Clone(tx.st.Requests)
	}
	return &tx.st.Requests
}

// AccessRequests returns the staged access request collection for writing.
func (tx *Tx) AccessRequests() *[]model.AccessRequest {
	if tx.touch(BucketAccessRequests) {
		tx.st.AccessRequests = slices.Clone(tx.st.AccessRequests)
	}
	return &tx.st.AccessRequests
}

// Users returns the staged user collection for writing.
func (tx *Tx) Users() *[]model.User {
	if tx.touch(BucketUsers) {
		tx.st.Users = slices.Clone(tx.st.Users)
	}
	return &tx.st.Users
}

// Attributes returns the staged custom attribute collection for writing.
func (tx *Tx) Attributes() *[]model.CustomAttribute {
	if tx.touch(BucketAttributes) {
		tx.st.Attributes = slices.Clone(tx.st.Attributes)
	}
	return &tx.st.Attributes
}

// Catalogs returns the staged configuration lists for writing.
func (tx *Tx) Catalogs() *model.Catalogs {
	if tx.touch(BucketCatalogs) {
		c := tx.st.Catalogs
		c.Categories = slices.Clone(c.Categories)
		c.Brands = slices.Clone(c.Brands)
		c.RetirementReasons = slices.Clone(c.RetirementReasons)
		tx.st.Catalogs = c
	}
	return &tx.st.Catalogs
}

// AddActivity prepends an entry to the recent activity feed, keeping only
// the newest model.MaxActivity entries.
func (tx *Tx) AddActivity(a model.Activity) {
	tx.touch(BucketActivity)
	feed := make([]model.Activity, 0, min(len(tx.st.Activity)+1, model.MaxActivity))
	feed = append(feed, a)
	for _, old := range tx.st.Activity {
		if len(feed) == model.MaxActivity {
			break
		}
		feed = append(feed, old)
	}
	tx.st.Activity = feed
}

// NextID allocates the next id for bucket b. Sequences only move forward,
// so ids are never reused after a delete.
func (tx *Tx) NextID(b Bucket) int64 {
	seq := tx.st.Sequences[string(b)]
	if m := tx.st.maxID(b); seq < m {
		seq = m
	}
	seq++
	if tx.touch(BucketSequences) {
		tx.st.Sequences = maps.Clone(tx.st.Sequences)
		if tx.st.Sequences == nil {
			tx.st.Sequences = make(map[string]int64)
		}
	}
	tx.st.Sequences[string(b)] = seq
	return seq
}

// Emit records a domain event to be persisted with this transaction.
func (tx *Tx) Emit(kind, subject string, subjectID int64, actor string, at time.Time, data any) error {
	e, err := NewEvent(kind, subject, subjectID, actor, at, data)
	if err != nil {
		return err
	}
	tx.events = append(tx.events, e)
	return nil
}

// Replace swaps every collection for those of st. Id sequences never move
// back, so ids recorded in the event log stay unique.
func (tx *Tx) Replace(st *State) error {
	if st == nil {
		return fmt.Errorf("replacing state: nil state")
	}
	prev := tx.st
	tx.st = *st
	tx.st.Version = prev.Version
	tx.st.Sequences = make(map[string]int64, len(AllBuckets))
	for _, b := range AllBuckets {
		seq := max(prev.Sequences[string(b)], prev.maxID(b), st.Sequences[string(b)], st.maxID(b))
		if seq > 0 {
			tx.st.Sequences[string(b)] = seq
		}
	}
	for _, b := range AllBuckets {
		tx.dirty[b] = true
	}
	return nil
}

func (tx *Tx) dirtyBuckets() []Bucket {
	var out []Bucket
	for _, b := range AllBuckets {
		if tx.dirty[b] {
			out = append(out, b)
		}
	}
	return out
}

func (tx *Tx) commit() *State {
	next := tx.st
	next.Version++
	return &next
}
