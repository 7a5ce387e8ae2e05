package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// MatchingOverrides holds a tenant's deviations from the engine defaults.
// Nil fields mean "use the default"; Weights, when set, must sum to 1.
type MatchingOverrides struct {
	Weights               *RuleScores `json:"weights,omitempty"`
	AmountTolerancePct    *float64    `json:"amount_tolerance_pct,omitempty"`
	DateGraceDays         *int        `json:"date_grace_days,omitempty"`
	MinPartialRatio       *float64    `json:"min_partial_ratio,omitempty"`
	HighThreshold         *float64    `json:"high_threshold,omitempty"`
	MediumThreshold       *float64    `json:"medium_threshold,omitempty"`
	AutoApproveThreshold  *float64    `json:"auto_approve_threshold,omitempty"`
	SuggestionsPerPayment *int        `json:"suggestions_per_payment,omitempty"`
}

type TenantSettings struct {
	TenantID  uuid.UUID                             `gorm:"type:uuid;primaryKey" json:"tenant_id"`
	Matching  datatypes.JSONType[MatchingOverrides] `json:"matching"`
	CreatedAt time.Time                             `json:"created_at"`
	UpdatedAt time.Time                             `json:"updated_at"`
}
