package reconciliation

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"invoice-reconciliation-backend/internal/models"
)

func TestApproveFullPayment(t *testing.T) {
	db := openTestDB(t)
	s := NewService(db)
	tenant := uuid.New()

	inv := seedInvoice(t, db, tenant, "INV-001", "Acme Corp", 150000)
	payment := seedPayment(t, db, tenant, 150000, "INV-001 Payment")

	got, err := s.Approve(tenant, payment.ID,
		[]AllocationRequest{{InvoiceID: inv.ID, AmountCents: 150000}}, "ops@example.com")
	require.NoError(t, err)
	assert.Equal(t, models.PaymentAllocated, got.Status)

	reloaded := reloadInvoice(t, db, inv.ID)
	assert.Equal(t, int64(0), reloaded.OutstandingCents)
	assert.Equal(t, models.InvoicePaid, reloaded.Status)

	var allocations []models.Allocation
	require.NoError(t, db.Where("payment_id = ?", payment.ID).Find(&allocations).Error)
	require.Len(t, allocations, 1)
	assert.Equal(t, int64(150000), allocations[0].AmountCents)
	assert.Equal(t, "ops@example.com", allocations[0].ApprovedBy)

	assertLedgerInvariants(t, db)
}

func TestApprovePartialInvoicePayment(t *testing.T) {
	db := openTestDB(t)
	s := NewService(db)
	tenant := uuid.New()

	inv := seedInvoice(t, db, tenant, "INV-001", "Acme Corp", 150000)
	payment := seedPayment(t, db, tenant, 75000, "INV-001 Partial")

	got, err := s.Approve(tenant, payment.ID,
		[]AllocationRequest{{InvoiceID: inv.ID, AmountCents: 75000}}, "ops")
	require.NoError(t, err)

	// the payment is fully consumed; the invoice is the partially paid side
	assert.Equal(t, models.PaymentAllocated, got.Status)

	reloaded := reloadInvoice(t, db, inv.ID)
	assert.Equal(t, int64(75000), reloaded.OutstandingCents)
	assert.Equal(t, models.InvoicePartiallyPaid, reloaded.Status)

	assertLedgerInvariants(t, db)
}

func TestApproveSplitInTwoSteps(t *testing.T) {
	db := openTestDB(t)
	s := NewService(db)
	tenant := uuid.New()

	invA := seedInvoice(t, db, tenant, "INV-A", "Acme Corp", 100000)
	invB := seedInvoice(t, db, tenant, "INV-B", "Acme Corp", 80000)
	payment := seedPayment(t, db, tenant, 150000, "settlement")

	got, err := s.Approve(tenant, payment.ID,
		[]AllocationRequest{{InvoiceID: invA.ID, AmountCents: 100000}}, "ops")
	require.NoError(t, err)
	assert.Equal(t, models.PaymentPartiallyAllocated, got.Status)

	got, err = s.Approve(tenant, payment.ID,
		[]AllocationRequest{{InvoiceID: invB.ID, AmountCents: 50000}}, "ops")
	require.NoError(t, err)
	assert.Equal(t, models.PaymentAllocated, got.Status)

	assert.Equal(t, int64(0), reloadInvoice(t, db, invA.ID).OutstandingCents)
	assert.Equal(t, int64(30000), reloadInvoice(t, db, invB.ID).OutstandingCents)

	assertLedgerInvariants(t, db)
}

func TestApproveMultiInvoiceSplitAtomically(t *testing.T) {
	db := openTestDB(t)
	s := NewService(db)
	tenant := uuid.New()

	invA := seedInvoice(t, db, tenant, "INV-A", "Acme Corp", 100000)
	invB := seedInvoice(t, db, tenant, "INV-B", "Acme Corp", 80000)
	payment := seedPayment(t, db, tenant, 150000, "settlement")

	got, err := s.Approve(tenant, payment.ID, []AllocationRequest{
		{InvoiceID: invA.ID, AmountCents: 100000},
		{InvoiceID: invB.ID, AmountCents: 50000},
	}, "ops")
	require.NoError(t, err)
	assert.Equal(t, models.PaymentAllocated, got.Status)

	var count int64
	require.NoError(t, db.Model(&models.Allocation{}).Where("payment_id = ?", payment.ID).Count(&count).Error)
	assert.Equal(t, int64(2), count)

	assertLedgerInvariants(t, db)
}

func TestApproveRejectsOverAllocation(t *testing.T) {
	db := openTestDB(t)
	s := NewService(db)
	tenant := uuid.New()

	inv := seedInvoice(t, db, tenant, "INV-001", "Acme Corp", 200000)
	payment := seedPayment(t, db, tenant, 150000, "INV-001")

	_, err := s.Approve(tenant, payment.ID,
		[]AllocationRequest{{InvoiceID: inv.ID, AmountCents: 160000}}, "ops")
	require.Error(t, err)
	assert.True(t, IsInvalidAllocation(err))

	// nothing committed
	var count int64
	require.NoError(t, db.Model(&models.Allocation{}).Count(&count).Error)
	assert.Equal(t, int64(0), count)
	assert.Equal(t, models.PaymentUnallocated, reloadPayment(t, db, payment.ID).Status)
	assert.Equal(t, int64(200000), reloadInvoice(t, db, inv.ID).OutstandingCents)
}

func TestApproveRejectsExceedingInvoiceOutstanding(t *testing.T) {
	db := openTestDB(t)
	s := NewService(db)
	tenant := uuid.New()

	inv := seedInvoice(t, db, tenant, "INV-001", "Acme Corp", 50000)
	payment := seedPayment(t, db, tenant, 150000, "INV-001")

	_, err := s.Approve(tenant, payment.ID,
		[]AllocationRequest{{InvoiceID: inv.ID, AmountCents: 60000}}, "ops")
	require.Error(t, err)
	assert.True(t, IsInvalidAllocation(err))
}

func TestApproveValidation(t *testing.T) {
	db := openTestDB(t)
	s := NewService(db)
	tenant := uuid.New()

	inv := seedInvoice(t, db, tenant, "INV-001", "Acme Corp", 150000)
	payment := seedPayment(t, db, tenant, 150000, "INV-001")

	// empty allocation set
	_, err := s.Approve(tenant, payment.ID, nil, "ops")
	assert.True(t, IsInvalidAllocation(err))

	// non-positive amount
	_, err = s.Approve(tenant, payment.ID,
		[]AllocationRequest{{InvoiceID: inv.ID, AmountCents: 0}}, "ops")
	assert.True(t, IsInvalidAllocation(err))

	// duplicate invoice entries
	_, err = s.Approve(tenant, payment.ID, []AllocationRequest{
		{InvoiceID: inv.ID, AmountCents: 50000},
		{InvoiceID: inv.ID, AmountCents: 50000},
	}, "ops")
	assert.True(t, IsInvalidAllocation(err))

	// unknown invoice
	_, err = s.Approve(tenant, payment.ID,
		[]AllocationRequest{{InvoiceID: uuid.New(), AmountCents: 1000}}, "ops")
	assert.ErrorIs(t, err, ErrNotFound)

	// unknown payment
	_, err = s.Approve(tenant, uuid.New(),
		[]AllocationRequest{{InvoiceID: inv.ID, AmountCents: 1000}}, "ops")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestApproveRejectsCrossTenantInvoice(t *testing.T) {
	db := openTestDB(t)
	s := NewService(db)
	tenant := uuid.New()

	foreign := seedInvoice(t, db, uuid.New(), "INV-001", "Acme Corp", 150000)
	payment := seedPayment(t, db, tenant, 150000, "INV-001")

	_, err := s.Approve(tenant, payment.ID,
		[]AllocationRequest{{InvoiceID: foreign.ID, AmountCents: 150000}}, "ops")
	require.Error(t, err)
	assert.True(t, IsInvalidAllocation(err))
}

func TestApproveTwiceFailsOnFullyAllocatedPayment(t *testing.T) {
	db := openTestDB(t)
	s := NewService(db)
	tenant := uuid.New()

	invA := seedInvoice(t, db, tenant, "INV-A", "Acme Corp", 150000)
	invB := seedInvoice(t, db, tenant, "INV-B", "Acme Corp", 150000)
	payment := seedPayment(t, db, tenant, 150000, "INV-A")

	_, err := s.Approve(tenant, payment.ID,
		[]AllocationRequest{{InvoiceID: invA.ID, AmountCents: 150000}}, "ops")
	require.NoError(t, err)

	_, err = s.Approve(tenant, payment.ID,
		[]AllocationRequest{{InvoiceID: invB.ID, AmountCents: 150000}}, "ops")
	require.Error(t, err)
	assert.True(t, IsInvalidAllocation(err))

	assertLedgerInvariants(t, db)
}

func TestConcurrentApprovalsNeverOverAllocate(t *testing.T) {
	db := openTestDB(t)
	s := NewService(db)
	tenant := uuid.New()

	invA := seedInvoice(t, db, tenant, "INV-A", "Acme Corp", 100000)
	invB := seedInvoice(t, db, tenant, "INV-B", "Acme Corp", 100000)
	payment := seedPayment(t, db, tenant, 150000, "split target")

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i, inv := range []*models.Invoice{invA, invB} {
		wg.Add(1)
		go func(i int, invoiceID uuid.UUID) {
			defer wg.Done()
			_, errs[i] = s.Approve(tenant, payment.ID,
				[]AllocationRequest{{InvoiceID: invoiceID, AmountCents: 100000}}, "ops")
		}(i, inv.ID)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		if !IsInvalidAllocation(err) {
			assert.ErrorIs(t, err, ErrConflict)
		}
	}
	assert.Equal(t, 1, succeeded)

	var total int64
	require.NoError(t, db.Model(&models.Allocation{}).
		Where("payment_id = ?", payment.ID).
		Select("COALESCE(SUM(amount_cents), 0)").Scan(&total).Error)
	assert.LessOrEqual(t, total, payment.AmountCents)

	assertLedgerInvariants(t, db)
}

func TestRejectIsIdempotent(t *testing.T) {
	db := openTestDB(t)
	s := NewService(db)
	tenant := uuid.New()

	payment := seedPayment(t, db, tenant, 150000, "noise")

	first, err := s.Reject(tenant, payment.ID, "not a customer payment")
	require.NoError(t, err)
	assert.Equal(t, models.PaymentRejected, first.Status)
	assert.Equal(t, "not a customer payment", first.RejectReason)

	second, err := s.Reject(tenant, payment.ID, "different reason")
	require.NoError(t, err)
	assert.Equal(t, models.PaymentRejected, second.Status)
	// the original reason stands
	assert.Equal(t, "not a customer payment", second.RejectReason)
}

func TestRejectFailsAfterAllocations(t *testing.T) {
	db := openTestDB(t)
	s := NewService(db)
	tenant := uuid.New()

	inv := seedInvoice(t, db, tenant, "INV-001", "Acme Corp", 150000)
	payment := seedPayment(t, db, tenant, 150000, "INV-001")

	_, err := s.Approve(tenant, payment.ID,
		[]AllocationRequest{{InvoiceID: inv.ID, AmountCents: 100000}}, "ops")
	require.NoError(t, err)

	_, err = s.Reject(tenant, payment.ID, "changed my mind")
	require.Error(t, err)
	assert.True(t, IsInvalidAllocation(err))
}

func TestRejectedPaymentCannotBeApproved(t *testing.T) {
	db := openTestDB(t)
	s := NewService(db)
	tenant := uuid.New()

	inv := seedInvoice(t, db, tenant, "INV-001", "Acme Corp", 150000)
	payment := seedPayment(t, db, tenant, 150000, "INV-001")

	_, err := s.Reject(tenant, payment.ID, "on hold")
	require.NoError(t, err)

	_, err = s.Approve(tenant, payment.ID,
		[]AllocationRequest{{InvoiceID: inv.ID, AmountCents: 150000}}, "ops")
	require.Error(t, err)
	assert.True(t, IsInvalidAllocation(err))
}

func TestReMatchBringsRejectedPaymentBack(t *testing.T) {
	db := openTestDB(t)
	s := NewService(db)
	tenant := uuid.New()

	inv := seedInvoice(t, db, tenant, "INV-001", "Acme Corp", 150000)
	payment := seedPayment(t, db, tenant, 150000, "INV-001 Payment Acme Corp")

	_, err := s.Reject(tenant, payment.ID, "reference looked wrong")
	require.NoError(t, err)

	suggestions, err := s.ReMatch(tenant, payment.ID)
	require.NoError(t, err)
	require.Len(t, suggestions, 1)
	assert.Equal(t, inv.ID, suggestions[0].InvoiceID)

	reloaded := reloadPayment(t, db, payment.ID)
	assert.Equal(t, models.PaymentSuggested, reloaded.Status)
	assert.Empty(t, reloaded.RejectReason)

	// and the payment can now be approved
	_, err = s.Approve(tenant, payment.ID,
		[]AllocationRequest{{InvoiceID: inv.ID, AmountCents: 150000}}, "ops")
	require.NoError(t, err)
}

func TestApproveResolvesSuggestions(t *testing.T) {
	db := openTestDB(t)
	s := NewService(db)
	tenant := uuid.New()

	inv := seedInvoice(t, db, tenant, "INV-001", "Acme Corp", 150000)
	payment := seedPayment(t, db, tenant, 150000, "INV-001 Payment Acme Corp")

	_, err := s.RunMatching(context.Background(), tenant)
	require.NoError(t, err)

	_, err = s.Approve(tenant, payment.ID,
		[]AllocationRequest{{InvoiceID: inv.ID, AmountCents: 150000}}, "ops")
	require.NoError(t, err)

	var suggestion models.Suggestion
	require.NoError(t, db.First(&suggestion, "payment_id = ?", payment.ID).Error)
	assert.Equal(t, models.SuggestionApproved, suggestion.Status)
}

func TestBulkApproveHonorsThreshold(t *testing.T) {
	db := openTestDB(t)
	s := NewService(db)
	tenant := uuid.New()

	strongInv := seedInvoice(t, db, tenant, "INV-100", "Acme Corp", 150000)
	weakInv := seedInvoice(t, db, tenant, "INV-200", "Beta LLC", 300000)
	strong := seedPayment(t, db, tenant, 150000, "INV-100 Payment Acme Corp")
	weak := seedPayment(t, db, tenant, 40000, "unclear wire")

	_, err := s.RunMatching(context.Background(), tenant)
	require.NoError(t, err)

	result, err := s.BulkApprove(tenant, 0.85, "auto")
	require.NoError(t, err)

	require.Len(t, result.Approved, 1)
	assert.Equal(t, strong.ID, result.Approved[0])
	assert.Empty(t, result.Failed)

	assert.Equal(t, models.PaymentAllocated, reloadPayment(t, db, strong.ID).Status)
	assert.Equal(t, models.PaymentSuggested, reloadPayment(t, db, weak.ID).Status)
	assert.Equal(t, int64(0), reloadInvoice(t, db, strongInv.ID).OutstandingCents)
	assert.Equal(t, int64(300000), reloadInvoice(t, db, weakInv.ID).OutstandingCents)

	// the weak suggestion is untouched
	var pending int64
	require.NoError(t, db.Model(&models.Suggestion{}).
		Where("payment_id = ? AND status = ?", weak.ID, models.SuggestionPending).
		Count(&pending).Error)
	assert.Equal(t, int64(1), pending)

	assertLedgerInvariants(t, db)
}

func TestBulkApproveReportsPerPaymentFailures(t *testing.T) {
	db := openTestDB(t)
	s := NewService(db)
	tenant := uuid.New()

	// two payments compete for the same invoice; the second finds it paid
	inv := seedInvoice(t, db, tenant, "INV-100", "Acme Corp", 150000)
	first := seedPayment(t, db, tenant, 150000, "INV-100 Payment Acme Corp")
	second := seedPayment(t, db, tenant, 150000, "INV-100 Payment Acme Corp")

	_, err := s.RunMatching(context.Background(), tenant)
	require.NoError(t, err)

	result, err := s.BulkApprove(tenant, 0.85, "auto")
	require.NoError(t, err)

	assert.Len(t, result.Approved, 1)
	require.Len(t, result.Failed, 1)
	assert.NotEmpty(t, result.Failed[0].Reason)

	approvedIDs := map[uuid.UUID]bool{result.Approved[0]: true}
	failedID := result.Failed[0].PaymentID
	assert.False(t, approvedIDs[failedID])
	assert.Contains(t, []uuid.UUID{first.ID, second.ID}, failedID)

	assert.Equal(t, int64(0), reloadInvoice(t, db, inv.ID).OutstandingCents)
	assertLedgerInvariants(t, db)
}

func TestBulkApproveUsesTenantAutoThresholdByDefault(t *testing.T) {
	db := openTestDB(t)
	s := NewService(db)
	tenant := uuid.New()

	seedInvoice(t, db, tenant, "INV-100", "Acme Corp", 150000)
	payment := seedPayment(t, db, tenant, 150000, "INV-100 Payment Acme Corp")

	// raise the tenant's auto-approve bar above this match's confidence
	auto := 0.99
	require.NoError(t, s.UpdateSettings(tenant, models.MatchingOverrides{AutoApproveThreshold: &auto}))

	_, err := s.RunMatching(context.Background(), tenant)
	require.NoError(t, err)

	result, err := s.BulkApprove(tenant, 0, "auto")
	require.NoError(t, err)
	assert.Empty(t, result.Approved)
	assert.Equal(t, models.PaymentSuggested, reloadPayment(t, db, payment.ID).Status)
}
