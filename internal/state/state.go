// Package state owns the application state: every domain collection held in
// one snapshot, replaced as a whole on each committed transaction.
package state

import (
	"github.com/erazemk/inventario/internal/model"
)

// State is one immutable snapshot of all collections. Snapshots returned by
// the Store must not be modified.
type State struct {
	Version        int64                        `json:"version"`
	Items          []model.Item                 `json:"items"`
	Assignments    []model.Assignment           `json:"assignments"`
	Loans          []model.Loan                 `json:"loans"`
	Tasks          []model.PendingTask          `json:"tasks"`
	Requests       []model.PendingActionRequest `json:"requests"`
	AccessRequests []model.AccessRequest        `json:"access_requests"`
	Users          []model.User                 `json:"users"`
	Activity       []model.Activity             `json:"activity"`
	Attributes     []model.CustomAttribute      `json:"attributes"`
	Catalogs       model.Catalogs               `json:"catalogs"`
	Sequences      map[string]int64             `json:"sequences"`
}

// Bucket names one persisted collection. The names double as JSON keys of
// the whole-state encoding.
type Bucket string

// Buckets.
const (
	BucketItems          Bucket = "items"
	BucketAssignments    Bucket = "assignments"
	BucketLoans          Bucket = "loans"
	BucketTasks          Bucket = "tasks"
	BucketRequests       Bucket = "requests"
	BucketAccessRequests Bucket = "access_requests"
	BucketUsers          Bucket = "users"
	BucketActivity       Bucket = "activity"
	BucketAttributes     Bucket = "attributes"
	BucketCatalogs       Bucket = "catalogs"
	BucketSequences      Bucket = "sequences"
)

// AllBuckets lists every bucket in persistence order.
var AllBuckets = []Bucket{
	BucketItems,
	BucketAssignments,
	BucketLoans,
	BucketTasks,
	BucketRequests,
	BucketAccessRequests,
	BucketUsers,
	BucketActivity,
	BucketAttributes,
	BucketCatalogs,
	BucketSequences,
}

// Default returns the state used when nothing has been persisted yet.
func Default() *State {
	return &State{
		Items:          []model.Item{},
		Assignments:    []model.Assignment{},
		Loans:          []model.Loan{},
		Tasks:          []model.PendingTask{},
		Requests:       []model.PendingActionRequest{},
		AccessRequests: []model.AccessRequest{},
		Users:          []model.User{},
		Activity:       []model.Activity{},
		Attributes:     []model.CustomAttribute{},
		Catalogs: model.Catalogs{
			Categories:        []string{"Laptop", "Monitor", "Periférico", "Redes", "Telefonía"},
			Brands:            []string{"Dell", "HP", "Lenovo", "Logitech", "Cisco"},
			RetirementReasons: []string{"Obsoleto", "Dañado", "Extraviado", "Fin de vida útil"},
		},
		Sequences: map[string]int64{},
	}
}

// field returns a pointer to the collection stored in bucket b.
func (s *State) field(b Bucket) any {
	switch b {
	case BucketItems:
		return &s.Items
	case BucketAssignments:
		return &s.Assignments
	case BucketLoans:
		return &s.Loans
	case BucketTasks:
		return &s.Tasks
	case BucketRequests:
		return &s.Requests
	case BucketAccessRequests:
		return &s.AccessRequests
	case BucketUsers:
		return &s.Users
	case BucketActivity:
		return &s.Activity
	case BucketAttributes:
		return &s.Attributes
	case BucketCatalogs:
		return &s.Catalogs
	case BucketSequences:
		return &s.Sequences
	}
	return nil
}

// maxID returns the largest id stored in bucket b, or 0.
func (s *State) maxID(b Bucket) int64 {
	switch b {
	case BucketItems:
		return maxKey(s.Items)
	case BucketAssignments:
		return maxKey(s.Assignments)
	case BucketLoans:
		return maxKey(s.Loans)
	case BucketTasks:
		return maxKey(s.Tasks)
	case BucketRequests:
		return maxKey(s.Requests)
	case BucketAccessRequests:
		return maxKey(s.AccessRequests)
	case BucketUsers:
		return maxKey(s.Users)
	case BucketAttributes:
		return maxKey(s.Attributes)
	}
	return 0
}

// Item returns the item with the given id.
func (s *State) Item(id int64) (model.Item, bool) {
	return Get(s.Items, id)
}

// UserByEmail returns the user with the given email, compared normalized.
func (s *State) UserByEmail(email string) (model.User, bool) {
	email = model.NormalizeEmail(email)
	for _, u := range s.Users {
		if model.NormalizeEmail(u.Email) == email {
			return u, true
		}
	}
	return model.User{}, false
}
