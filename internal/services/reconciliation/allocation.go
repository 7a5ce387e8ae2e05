package reconciliation

import (
	"errors"
	"log"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"invoice-reconciliation-backend/internal/models"
)

// AllocationRequest is one caller-supplied split of a payment.
type AllocationRequest struct {
	InvoiceID   uuid.UUID `json:"invoice_id"`
	AmountCents int64     `json:"amount_cents"`
}

// BulkFailure records one payment skipped during a bulk approval.
type BulkFailure struct {
	PaymentID uuid.UUID `json:"payment_id"`
	Reason    string    `json:"reason"`
}

// BulkResult is the manifest of a bulk approval: callers always get the
// per-payment outcomes, never a single boolean.
type BulkResult struct {
	Approved []uuid.UUID   `json:"approved"`
	Failed   []BulkFailure `json:"failed"`
}

// Approve commits the given splits against the payment, all or nothing.
// Every invoice must belong to the tenant, every amount must be positive,
// the splits must fit inside the payment's remaining amount and each
// invoice's outstanding balance. On success the allocation rows, the
// invoice balances and the payment status move in one transaction.
func (s *Service) Approve(tenantID, paymentID uuid.UUID, requests []AllocationRequest, approvedBy string) (*models.Payment, error) {
	if len(requests) == 0 {
		return nil, invalidAllocation("no allocations supplied")
	}

	var result *models.Payment
	err := s.db.Transaction(func(dbtx *gorm.DB) error {
		payment, err := loadPayment(dbtx, tenantID, paymentID)
		if err != nil {
			return err
		}

		if payment.Status.Terminal() {
			return invalidAllocation("payment %s is already fully allocated", paymentID)
		}
		if payment.Status == models.PaymentRejected {
			return invalidAllocation("payment %s is rejected; re-match it before approving", paymentID)
		}

		total, err := validateRequests(requests)
		if err != nil {
			return err
		}

		already, err := allocatedTotal(dbtx, paymentID)
		if err != nil {
			return err
		}
		if already+total > payment.AmountCents {
			return invalidAllocation("allocations total %d exceeds remaining payment amount %d",
				total, payment.AmountCents-already)
		}

		now := time.Now()
		for _, req := range requests {
			if err := s.commitSplit(dbtx, tenantID, payment, req, approvedBy, now); err != nil {
				return err
			}
		}

		next := models.PaymentPartiallyAllocated
		if already+total == payment.AmountCents {
			next = models.PaymentAllocated
		}
		if err := s.transitionPayment(dbtx, payment, next, ""); err != nil {
			return err
		}

		if err := resolveSuggestions(dbtx, payment.ID, requests); err != nil {
			return err
		}

		payment.Status = next
		payment.Version++
		result = payment
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Printf("payment %s approved by %s: %d allocation(s), status %s",
		paymentID, approvedBy, len(requests), result.Status)
	return result, nil
}

// Reject moves the payment to REJECTED with a reason. Rejecting an
// already-rejected payment is a no-op, not an error.
func (s *Service) Reject(tenantID, paymentID uuid.UUID, reason string) (*models.Payment, error) {
	var result *models.Payment
	err := s.db.Transaction(func(dbtx *gorm.DB) error {
		payment, err := loadPayment(dbtx, tenantID, paymentID)
		if err != nil {
			return err
		}

		if payment.Status == models.PaymentRejected {
			result = payment
			return nil
		}
		if !payment.Status.CanTransition(models.PaymentRejected) {
			return invalidAllocation("payment %s has committed allocations and cannot be rejected", paymentID)
		}

		if err := s.transitionPayment(dbtx, payment, models.PaymentRejected, reason); err != nil {
			return err
		}

		if err := dbtx.Model(&models.Suggestion{}).
			Where("payment_id = ? AND status = ?", paymentID, models.SuggestionPending).
			Updates(map[string]interface{}{"status": models.SuggestionRejected, "updated_at": time.Now()}).
			Error; err != nil {
			return err
		}

		payment.Status = models.PaymentRejected
		payment.RejectReason = reason
		payment.Version++
		result = payment
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// BulkApprove approves every pending top-ranked suggestion at or above
// minConfidence (the tenant's auto-approve threshold when zero). Each
// payment runs in its own transaction; one failure is recorded and
// skipped, never propagated.
func (s *Service) BulkApprove(tenantID uuid.UUID, minConfidence float64, approvedBy string) (BulkResult, error) {
	result := BulkResult{Approved: []uuid.UUID{}, Failed: []BulkFailure{}}

	if minConfidence <= 0 {
		cfg, err := s.ConfigFor(tenantID)
		if err != nil {
			return result, err
		}
		minConfidence = cfg.AutoApproveThreshold
	}

	pending, err := s.suggestions.PendingAtOrAbove(tenantID, minConfidence)
	if err != nil {
		return result, err
	}

	for _, suggestion := range pending {
		payment, err := s.payments.GetByID(tenantID, suggestion.PaymentID)
		if err != nil {
			result.Failed = append(result.Failed, BulkFailure{suggestion.PaymentID, "payment not found"})
			continue
		}
		invoice, err := s.invoices.GetByID(tenantID, suggestion.InvoiceID)
		if err != nil {
			result.Failed = append(result.Failed, BulkFailure{suggestion.PaymentID, "invoice not found"})
			continue
		}

		amount := payment.AmountCents
		if invoice.OutstandingCents < amount {
			amount = invoice.OutstandingCents
		}
		if amount <= 0 {
			result.Failed = append(result.Failed, BulkFailure{suggestion.PaymentID, "invoice already fully paid"})
			continue
		}

		_, err = s.Approve(tenantID, suggestion.PaymentID,
			[]AllocationRequest{{InvoiceID: suggestion.InvoiceID, AmountCents: amount}}, approvedBy)
		if err != nil {
			result.Failed = append(result.Failed, BulkFailure{suggestion.PaymentID, err.Error()})
			continue
		}
		result.Approved = append(result.Approved, suggestion.PaymentID)
	}

	log.Printf("bulk approve for tenant %s at >=%.2f: approved=%d failed=%d",
		tenantID, minConfidence, len(result.Approved), len(result.Failed))
	return result, nil
}

func loadPayment(dbtx *gorm.DB, tenantID, paymentID uuid.UUID) (*models.Payment, error) {
	var payment models.Payment
	err := dbtx.First(&payment, "id = ? AND tenant_id = ?", paymentID, tenantID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &payment, nil
}

func validateRequests(requests []AllocationRequest) (int64, error) {
	var total int64
	seen := make(map[uuid.UUID]bool, len(requests))
	for _, req := range requests {
		if req.AmountCents <= 0 {
			return 0, invalidAllocation("allocation amount must be positive, got %d", req.AmountCents)
		}
		if seen[req.InvoiceID] {
			return 0, invalidAllocation("invoice %s appears twice in the allocation set", req.InvoiceID)
		}
		seen[req.InvoiceID] = true
		total += req.AmountCents
	}
	return total, nil
}

func allocatedTotal(dbtx *gorm.DB, paymentID uuid.UUID) (int64, error) {
	var total int64
	err := dbtx.Model(&models.Allocation{}).
		Where("payment_id = ?", paymentID).
		Select("COALESCE(SUM(amount_cents), 0)").
		Scan(&total).Error
	return total, err
}

// commitSplit writes one allocation row and moves the invoice balance
// under an optimistic version check.
func (s *Service) commitSplit(dbtx *gorm.DB, tenantID uuid.UUID, payment *models.Payment, req AllocationRequest, approvedBy string, now time.Time) error {
	var invoice models.Invoice
	err := dbtx.First(&invoice, "id = ?", req.InvoiceID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	if invoice.TenantID != tenantID {
		return invalidAllocation("invoice %s belongs to another tenant", req.InvoiceID)
	}
	if req.AmountCents > invoice.OutstandingCents {
		return invalidAllocation("allocation %d exceeds outstanding %d on invoice %s",
			req.AmountCents, invoice.OutstandingCents, invoice.InvoiceNumber)
	}

	allocation := models.Allocation{
		ID:          uuid.New(),
		TenantID:    tenantID,
		PaymentID:   payment.ID,
		InvoiceID:   invoice.ID,
		AmountCents: req.AmountCents,
		ApprovedBy:  approvedBy,
		ApprovedAt:  now,
		CreatedAt:   now,
	}
	if err := dbtx.Create(&allocation).Error; err != nil {
		return err
	}

	newOutstanding := invoice.OutstandingCents - req.AmountCents
	status := models.InvoicePartiallyPaid
	if newOutstanding == 0 {
		status = models.InvoicePaid
	}

	res := dbtx.Model(&models.Invoice{}).
		Where("id = ? AND version = ?", invoice.ID, invoice.Version).
		Updates(map[string]interface{}{
			"outstanding_cents": newOutstanding,
			"status":            status,
			"version":           invoice.Version + 1,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrConflict
	}
	return nil
}

// resolveSuggestions marks the pending suggestion matching an allocated
// invoice APPROVED and rejects the payment's other pending ones.
func resolveSuggestions(dbtx *gorm.DB, paymentID uuid.UUID, requests []AllocationRequest) error {
	var pending []models.Suggestion
	if err := dbtx.
		Where("payment_id = ? AND status = ?", paymentID, models.SuggestionPending).
		Order("rank ASC").
		Find(&pending).Error; err != nil {
		return err
	}

	allocated := make(map[uuid.UUID]bool, len(requests))
	for _, req := range requests {
		allocated[req.InvoiceID] = true
	}

	approvedOne := false
	now := time.Now()
	for _, suggestion := range pending {
		status := models.SuggestionRejected
		if !approvedOne && allocated[suggestion.InvoiceID] {
			status = models.SuggestionApproved
			approvedOne = true
		}
		if err := dbtx.Model(&models.Suggestion{}).
			Where("id = ?", suggestion.ID).
			Updates(map[string]interface{}{"status": status, "updated_at": now}).
			Error; err != nil {
			return err
		}
	}
	return nil
}
