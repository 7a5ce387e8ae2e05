package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// RuleScores is the fixed-shape record of per-rule results for one
// candidate pair. Every field is in [0,1]. The same shape doubles as the
// weight vector in tenant settings.
type RuleScores struct {
	InvoiceNumberMatch  float64 `json:"invoice_number_match"`
	ExactAmountMatch    float64 `json:"exact_amount_match"`
	DateProximity       float64 `json:"date_proximity"`
	ReferenceSimilarity float64 `json:"reference_similarity"`
	PartialPayment      float64 `json:"partial_payment"`
}

// Sum returns the plain total of all five scores.
func (r RuleScores) Sum() float64 {
	return r.InvoiceNumberMatch + r.ExactAmountMatch + r.DateProximity +
		r.ReferenceSimilarity + r.PartialPayment
}

type SuggestionStatus string

const (
	SuggestionPending  SuggestionStatus = "PENDING"
	SuggestionApproved SuggestionStatus = "APPROVED"
	SuggestionRejected SuggestionStatus = "REJECTED"
)

// Suggestion is the persisted form of a ranked match candidate. Rank 0 is
// the best candidate for its payment; at most one suggestion per payment
// ever becomes APPROVED.
type Suggestion struct {
	ID         uuid.UUID                      `gorm:"type:uuid;primaryKey" json:"id"`
	TenantID   uuid.UUID                      `gorm:"type:uuid;index" json:"tenant_id"`
	PaymentID  uuid.UUID                      `gorm:"type:uuid;index" json:"payment_id"`
	InvoiceID  uuid.UUID                      `gorm:"type:uuid;index" json:"invoice_id"`
	Rank       int                            `json:"rank"`
	Confidence float64                        `gorm:"index" json:"confidence"`
	RuleScores datatypes.JSONType[RuleScores] `json:"rule_scores"`
	Status     SuggestionStatus               `gorm:"type:varchar(16);index" json:"status"`
	CreatedAt  time.Time                      `json:"created_at"`
	UpdatedAt  time.Time                      `json:"updated_at"`
}
