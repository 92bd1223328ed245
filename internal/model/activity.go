package model

import "time"

// Activity is a display-only entry of the recent activity feed.
type Activity struct {
	Type        string            `json:"type"`
	Description string            `json:"description"`
	At          time.Time         `json:"at"`
	Actor       string            `json:"actor,omitempty"`
	Details     map[string]string `json:"details,omitempty"`
}

// MaxActivity is how many recent activity entries are kept.
const MaxActivity = 50

// CustomAttribute is an administrator-defined extra field for items.
type CustomAttribute struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	Kind     string `json:"kind"`
	Required bool   `json:"required,omitempty"`
}

// Custom attribute kinds.
const (
	AttributeText   = "text"
	AttributeNumber = "number"
	AttributeDate   = "date"
)

// Catalogs are the administrator-extensible value lists.
type Catalogs struct {
	Categories        []string `json:"categories"`
	Brands            []string `json:"brands"`
	RetirementReasons []string `json:"retirement_reasons"`
}
