package models

import (
	"time"

	"github.com/google/uuid"
)

// PaymentStatus is the reconciliation lifecycle of a Payment. Transitions
// go through CanTransition; nothing in the codebase compares raw strings.
type PaymentStatus string

const (
	PaymentUnallocated        PaymentStatus = "UNALLOCATED"
	PaymentSuggested          PaymentStatus = "SUGGESTED"
	PaymentPartiallyAllocated PaymentStatus = "PARTIALLY_ALLOCATED"
	PaymentAllocated          PaymentStatus = "ALLOCATED"
	PaymentRejected           PaymentStatus = "REJECTED"
)

// paymentTransitions is the closed transition table. REJECTED -> SUGGESTED
// is reachable only through an explicit re-match; a rejected payment can
// never jump straight to ALLOCATED.
var paymentTransitions = map[PaymentStatus][]PaymentStatus{
	PaymentUnallocated:        {PaymentSuggested, PaymentPartiallyAllocated, PaymentAllocated, PaymentRejected},
	PaymentSuggested:          {PaymentPartiallyAllocated, PaymentAllocated, PaymentRejected},
	PaymentPartiallyAllocated: {PaymentPartiallyAllocated, PaymentAllocated},
	PaymentRejected:           {PaymentSuggested},
	PaymentAllocated:          {},
}

// CanTransition reports whether moving from s to next is legal.
func (s PaymentStatus) CanTransition(next PaymentStatus) bool {
	for _, t := range paymentTransitions[s] {
		if t == next {
			return true
		}
	}
	return false
}

// Terminal reports whether no further allocations can touch the payment.
func (s PaymentStatus) Terminal() bool {
	return s == PaymentAllocated
}

// Valid reports whether s is one of the known statuses.
func (s PaymentStatus) Valid() bool {
	_, ok := paymentTransitions[s]
	return ok
}

// Payment wraps a Transaction with its reconciliation lifecycle. Exactly
// one Payment exists per Transaction; AmountCents is copied from the
// transaction at ingest so allocation checks never need a join.
type Payment struct {
	ID            uuid.UUID     `gorm:"type:uuid;primaryKey" json:"id"`
	TenantID      uuid.UUID     `gorm:"type:uuid;index" json:"tenant_id"`
	TransactionID uuid.UUID     `gorm:"type:uuid;uniqueIndex" json:"transaction_id"`
	AmountCents   int64         `json:"amount_cents"`
	Status        PaymentStatus `gorm:"type:varchar(32);index" json:"status"`
	RejectReason  string        `json:"reject_reason,omitempty"`
	Version       int64         `json:"-"`
	CreatedAt     time.Time     `json:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at"`

	Transaction *Transaction `gorm:"foreignKey:TransactionID" json:"transaction,omitempty"`
}
