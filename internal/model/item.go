package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Item is one inventory row. A serialized item is a single unit identified by
// its serial number; bulk stock is tracked as several rows sharing name and
// model, one per status bucket.
type Item struct {
	ID           int64           `json:"id"`
	Name         string          `json:"name"`
	Brand        string          `json:"brand"`
	Model        string          `json:"model"`
	Category     string          `json:"category"`
	Description  string          `json:"description,omitempty"`
	Quantity     int             `json:"quantity"`
	SerialNumber string          `json:"serial_number,omitempty"`
	Status       string          `json:"status"`
	IntakeDate   time.Time       `json:"intake_date"`
	Supplier     string          `json:"supplier,omitempty"`
	AcquiredAt   *time.Time      `json:"acquired_at,omitempty"`
	ContractID   string          `json:"contract_id,omitempty"`
	Cost         decimal.Decimal `json:"cost"`
	WarrantyEnd  *time.Time      `json:"warranty_end,omitempty"`
	UsefulLifeTo *time.Time      `json:"useful_life_to,omitempty"`

	RetirementReason string     `json:"retirement_reason,omitempty"`
	RetiredAt        *time.Time `json:"retired_at,omitempty"`

	Attributes map[string]string `json:"attributes,omitempty"`
}

// Item statuses.
const (
	ItemStatusAvailable         = "Disponible"
	ItemStatusAssigned          = "Asignado"
	ItemStatusLent              = "Prestado"
	ItemStatusRetired           = "Retirado"
	ItemStatusMaintenance       = "En Mantenimiento"
	ItemStatusPendingRetirement = "Pendiente de Retiro"
)

// ItemStatuses lists every valid item status.
var ItemStatuses = []string{
	ItemStatusAvailable,
	ItemStatusAssigned,
	ItemStatusLent,
	ItemStatusRetired,
	ItemStatusMaintenance,
	ItemStatusPendingRetirement,
}

// ValidItemStatus reports whether s is a known item status.
func ValidItemStatus(s string) bool {
	for _, v := range ItemStatuses {
		if v == s {
			return true
		}
	}
	return false
}

// Serialized reports whether the item is tracked as a single unit.
func (i Item) Serialized() bool {
	return i.SerialNumber != ""
}

// SameProduct reports whether two bulk rows belong to the same product.
func (i Item) SameProduct(o Item) bool {
	return !i.Serialized() && !o.Serialized() && i.Name == o.Name && i.Model == o.Model
}

// Snapshot captures the fields of an item that history records keep.
func (i Item) Snapshot() ItemSnapshot {
	return ItemSnapshot{
		ID:           i.ID,
		Name:         i.Name,
		Model:        i.Model,
		SerialNumber: i.SerialNumber,
		Status:       i.Status,
	}
}

// ItemSnapshot is a denormalized copy of an item taken when a task or request
// is created, so the record still reads correctly after the item changes.
type ItemSnapshot struct {
	ID           int64  `json:"id"`
	Name         string `json:"name"`
	Model        string `json:"model,omitempty"`
	SerialNumber string `json:"serial_number,omitempty"`
	Status       string `json:"status"`
}
