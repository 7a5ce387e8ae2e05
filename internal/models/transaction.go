package models

import (
	"time"

	"github.com/google/uuid"
)

// Transaction is one normalized bank-export row. Amounts are integer
// minor currency units; rows are immutable once created.
type Transaction struct {
	ID            uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	TenantID      uuid.UUID `gorm:"type:uuid;index:idx_txn_fingerprint" json:"tenant_id"`
	AmountCents   int64     `gorm:"index:idx_txn_fingerprint" json:"amount_cents"`
	PaidAt        time.Time `gorm:"index:idx_txn_fingerprint" json:"paid_at"`
	BankReference string    `gorm:"index:idx_txn_fingerprint" json:"bank_reference"`
	BankTxnID     string    `gorm:"index" json:"bank_txn_id,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}
