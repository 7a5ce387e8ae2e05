package reconciliation

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"invoice-reconciliation-backend/internal/models"
	"invoice-reconciliation-backend/internal/repository"
	"invoice-reconciliation-backend/internal/services/matching"
)

// defaultWorkers bounds the matching fan-out per run.
const defaultWorkers = 8

// Service is the suggestion store and allocation manager. Matching is
// delegated to the pure engine; everything stateful lives here behind
// gorm transactions.
type Service struct {
	db          *gorm.DB
	invoices    *repository.InvoiceRepository
	payments    *repository.PaymentRepository
	suggestions *repository.SuggestionRepository
	settings    *repository.SettingsRepository
	defaults    matching.Config
	workers     int
}

func NewService(db *gorm.DB) *Service {
	return &Service{
		db:          db,
		invoices:    repository.NewInvoiceRepository(db),
		payments:    repository.NewPaymentRepository(db),
		suggestions: repository.NewSuggestionRepository(db),
		settings:    repository.NewSettingsRepository(db),
		defaults:    matching.DefaultConfig(),
		workers:     defaultWorkers,
	}
}

// ConfigFor merges the tenant's stored overrides over the engine defaults.
func (s *Service) ConfigFor(tenantID uuid.UUID) (matching.Config, error) {
	overrides, err := s.settings.Get(tenantID)
	if err != nil {
		return matching.Config{}, err
	}
	return s.defaults.Apply(overrides), nil
}

// UpdateSettings stores a tenant's matching overrides.
func (s *Service) UpdateSettings(tenantID uuid.UUID, overrides models.MatchingOverrides) error {
	return s.settings.Put(tenantID, overrides)
}

// Settings returns the tenant's stored overrides.
func (s *Service) Settings(tenantID uuid.UUID) (models.MatchingOverrides, error) {
	return s.settings.Get(tenantID)
}

// RunMatching scores every unresolved payment of the tenant against a
// snapshot of its open invoices and persists the top-ranked suggestions.
// The snapshot is taken once, so all workers in one run see the same
// invoice state. Returns the suggestions persisted by this run.
func (s *Service) RunMatching(ctx context.Context, tenantID uuid.UUID) ([]models.Suggestion, error) {
	cfg, err := s.ConfigFor(tenantID)
	if err != nil {
		return nil, err
	}

	invoices, err := s.invoices.OpenForTenant(tenantID)
	if err != nil {
		return nil, err
	}

	payments, err := s.payments.ListByStatus(tenantID, models.PaymentUnallocated, models.PaymentSuggested)
	if err != nil {
		return nil, err
	}

	engine := matching.NewEngine(cfg)
	candidates := make([][]matching.Candidate, len(payments))

	var wg sync.WaitGroup
	sem := make(chan struct{}, s.workers)

	for i := range payments {
		if ctx.Err() != nil {
			break
		}
		wg.Add(1)
		sem <- struct{}{}
		go func(i int) {
			defer wg.Done()
			defer func() { <-sem }()
			if payments[i].Transaction == nil {
				return
			}
			candidates[i] = engine.Match(*payments[i].Transaction, invoices)
		}(i)
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var persisted []models.Suggestion
	for i := range payments {
		created, err := s.persistSuggestions(&payments[i], candidates[i], cfg)
		if err != nil {
			return persisted, err
		}
		persisted = append(persisted, created...)
	}

	log.Printf("matching run for tenant %s: %d payments scored, %d suggestions persisted",
		tenantID, len(payments), len(persisted))
	return persisted, nil
}

// ReMatch re-runs matching for a single payment. This is the one door
// back out of REJECTED.
func (s *Service) ReMatch(tenantID, paymentID uuid.UUID) ([]models.Suggestion, error) {
	payment, err := s.payments.GetByID(tenantID, paymentID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if payment.Status.Terminal() || payment.Status == models.PaymentPartiallyAllocated {
		return nil, invalidAllocation("payment %s has committed allocations and cannot be re-matched", paymentID)
	}
	if payment.Transaction == nil {
		return nil, ErrNotFound
	}

	cfg, err := s.ConfigFor(tenantID)
	if err != nil {
		return nil, err
	}

	invoices, err := s.invoices.OpenForTenant(tenantID)
	if err != nil {
		return nil, err
	}

	engine := matching.NewEngine(cfg)
	return s.persistSuggestions(payment, engine.Match(*payment.Transaction, invoices), cfg)
}

// persistSuggestions replaces the payment's pending suggestions with the
// top-ranked candidates and moves the payment to SUGGESTED. Candidates
// with zero confidence carry no signal and are not stored.
func (s *Service) persistSuggestions(payment *models.Payment, candidates []matching.Candidate, cfg matching.Config) ([]models.Suggestion, error) {
	keep := candidates
	if len(keep) > cfg.SuggestionsPerPayment {
		keep = keep[:cfg.SuggestionsPerPayment]
	}
	for len(keep) > 0 && keep[len(keep)-1].Confidence <= 0 {
		keep = keep[:len(keep)-1]
	}
	if len(keep) == 0 {
		// No candidates this run. Earlier pending suggestions may point at
		// invoices that have since been paid, so they go too.
		err := s.db.
			Where("payment_id = ? AND status = ?", payment.ID, models.SuggestionPending).
			Delete(&models.Suggestion{}).Error
		return nil, err
	}

	suggestions := make([]models.Suggestion, 0, len(keep))
	now := time.Now()
	for rank, c := range keep {
		suggestions = append(suggestions, models.Suggestion{
			ID:         uuid.New(),
			TenantID:   payment.TenantID,
			PaymentID:  payment.ID,
			InvoiceID:  c.InvoiceID,
			Rank:       rank,
			Confidence: c.Confidence,
			RuleScores: datatypes.NewJSONType(c.RuleScores),
			Status:     models.SuggestionPending,
			CreatedAt:  now,
			UpdatedAt:  now,
		})
	}

	err := s.db.Transaction(func(dbtx *gorm.DB) error {
		if err := dbtx.
			Where("payment_id = ? AND status = ?", payment.ID, models.SuggestionPending).
			Delete(&models.Suggestion{}).Error; err != nil {
			return err
		}
		if err := dbtx.Create(&suggestions).Error; err != nil {
			return err
		}
		return s.transitionPayment(dbtx, payment, models.PaymentSuggested, "")
	})
	if err != nil {
		return nil, err
	}
	payment.Status = models.PaymentSuggested
	payment.Version++
	return suggestions, nil
}

// transitionPayment applies a status change under the FSM and an
// optimistic version check. A same-status write is a refresh, not a
// transition.
func (s *Service) transitionPayment(dbtx *gorm.DB, payment *models.Payment, next models.PaymentStatus, rejectReason string) error {
	if payment.Status != next && !payment.Status.CanTransition(next) {
		return invalidAllocation("payment %s cannot move from %s to %s", payment.ID, payment.Status, next)
	}

	res := dbtx.Model(&models.Payment{}).
		Where("id = ? AND version = ?", payment.ID, payment.Version).
		Updates(map[string]interface{}{
			"status":        next,
			"reject_reason": rejectReason,
			"version":       payment.Version + 1,
			"updated_at":    time.Now(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrConflict
	}
	return nil
}

// ListSuggestions returns the tenant's suggestions, optionally filtered.
func (s *Service) ListSuggestions(tenantID uuid.UUID, status *models.SuggestionStatus) ([]models.Suggestion, error) {
	return s.suggestions.List(tenantID, status)
}

// GetPayment returns one payment with its transaction.
func (s *Service) GetPayment(tenantID, paymentID uuid.UUID) (*models.Payment, error) {
	payment, err := s.payments.GetByID(tenantID, paymentID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	return payment, err
}

// Stats is the per-tenant reconciliation overview.
type Stats struct {
	TotalPayments      int64 `json:"total_payments"`
	Unallocated        int64 `json:"unallocated"`
	Suggested          int64 `json:"suggested"`
	PartiallyAllocated int64 `json:"partially_allocated"`
	Allocated          int64 `json:"allocated"`
	Rejected           int64 `json:"rejected"`
}

func (s *Service) Stats(tenantID uuid.UUID) (Stats, error) {
	counts, err := s.payments.StatusCounts(tenantID)
	if err != nil {
		return Stats{}, err
	}

	stats := Stats{
		Unallocated:        counts[models.PaymentUnallocated],
		Suggested:          counts[models.PaymentSuggested],
		PartiallyAllocated: counts[models.PaymentPartiallyAllocated],
		Allocated:          counts[models.PaymentAllocated],
		Rejected:           counts[models.PaymentRejected],
	}
	for _, c := range counts {
		stats.TotalPayments += c
	}
	return stats, nil
}
