package models

import (
	"time"

	"github.com/google/uuid"
)

// Allocation is a committed amount applied from a Payment to an Invoice.
// Rows are append-only; a correction is a reversal plus a new allocation,
// never an in-place edit.
type Allocation struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	TenantID    uuid.UUID `gorm:"type:uuid;index" json:"tenant_id"`
	PaymentID   uuid.UUID `gorm:"type:uuid;index" json:"payment_id"`
	InvoiceID   uuid.UUID `gorm:"type:uuid;index" json:"invoice_id"`
	AmountCents int64     `json:"amount_cents"`
	ApprovedBy  string    `json:"approved_by"`
	ApprovedAt  time.Time `json:"approved_at"`
	CreatedAt   time.Time `json:"created_at"`
}
