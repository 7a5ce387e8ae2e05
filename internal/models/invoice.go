package models

import (
	"time"

	"github.com/google/uuid"
)

// Invoice statuses as seen from the reconciliation side. The engine never
// edits an invoice directly; only committed allocations move these.
const (
	InvoiceOpen          = "open"
	InvoicePartiallyPaid = "partially_paid"
	InvoicePaid          = "paid"
)

type Invoice struct {
	ID               uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	TenantID         uuid.UUID `gorm:"type:uuid;uniqueIndex:idx_invoice_tenant_number" json:"tenant_id"`
	InvoiceNumber    string    `gorm:"uniqueIndex:idx_invoice_tenant_number" json:"invoice_number"`
	ClientName       string    `gorm:"index" json:"client_name"`
	ClientEmail      string    `json:"client_email,omitempty"`
	AmountCents      int64     `json:"amount_cents"`
	OutstandingCents int64     `gorm:"index" json:"outstanding_cents"`
	Status           string    `gorm:"index" json:"status"`
	IssuedAt         time.Time `json:"issued_at"`
	DueAt            time.Time `json:"due_at"`
	Version          int64     `json:"-"`
	CreatedAt        time.Time `json:"created_at"`
}
