package matching

import "invoice-reconciliation-backend/internal/models"

// Bucket is the display classification of a confidence value. It is
// independent of the bulk auto-approve threshold.
type Bucket string

const (
	BucketHigh   Bucket = "high"
	BucketMedium Bucket = "medium"
	BucketLow    Bucket = "low"
)

// Config carries the tunable knobs of the matching engine. Weights must
// sum to 1. The defaults are a starting point; tenants override them
// through their settings row.
type Config struct {
	// Weights combine the five rule scores into one confidence value.
	Weights models.RuleScores

	// AmountTolerancePct is the band, as a fraction of the invoice amount,
	// over which the exact-amount score decays linearly to zero.
	AmountTolerancePct float64

	// DateGraceDays is the window on either side of the issue->due range
	// over which the date score decays linearly to zero.
	DateGraceDays int

	// MinPartialRatio is the smallest transaction/outstanding ratio still
	// counted as a plausible partial payment.
	MinPartialRatio float64

	// HighThreshold and MediumThreshold bound the display buckets.
	HighThreshold   float64
	MediumThreshold float64

	// AutoApproveThreshold gates unattended bulk approval. Deliberately a
	// separate knob from HighThreshold.
	AutoApproveThreshold float64

	// SuggestionsPerPayment is how many ranked candidates get persisted.
	SuggestionsPerPayment int
}

// DefaultConfig returns the engine defaults.
func DefaultConfig() Config {
	return Config{
		Weights: models.RuleScores{
			InvoiceNumberMatch:  0.45,
			ExactAmountMatch:    0.23,
			DateProximity:       0.22,
			ReferenceSimilarity: 0.02,
			PartialPayment:      0.08,
		},
		AmountTolerancePct:    0.05,
		DateGraceDays:         30,
		MinPartialRatio:       0.10,
		HighThreshold:         0.90,
		MediumThreshold:       0.75,
		AutoApproveThreshold:  0.85,
		SuggestionsPerPayment: 1,
	}
}

// Apply overlays a tenant's overrides onto c and returns the result.
func (c Config) Apply(o models.MatchingOverrides) Config {
	if o.Weights != nil {
		c.Weights = *o.Weights
	}
	if o.AmountTolerancePct != nil {
		c.AmountTolerancePct = *o.AmountTolerancePct
	}
	if o.DateGraceDays != nil {
		c.DateGraceDays = *o.DateGraceDays
	}
	if o.MinPartialRatio != nil {
		c.MinPartialRatio = *o.MinPartialRatio
	}
	if o.HighThreshold != nil {
		c.HighThreshold = *o.HighThreshold
	}
	if o.MediumThreshold != nil {
		c.MediumThreshold = *o.MediumThreshold
	}
	if o.AutoApproveThreshold != nil {
		c.AutoApproveThreshold = *o.AutoApproveThreshold
	}
	if o.SuggestionsPerPayment != nil {
		c.SuggestionsPerPayment = *o.SuggestionsPerPayment
	}
	return c
}

// Bucket classifies a confidence value for display.
func (c Config) Bucket(confidence float64) Bucket {
	switch {
	case confidence >= c.HighThreshold:
		return BucketHigh
	case confidence >= c.MediumThreshold:
		return BucketMedium
	default:
		return BucketLow
	}
}
