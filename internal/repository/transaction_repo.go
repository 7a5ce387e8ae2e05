package repository

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"invoice-reconciliation-backend/internal/models"
)

type TransactionRepository struct {
	db *gorm.DB
}

func NewTransactionRepository(db *gorm.DB) *TransactionRepository {
	return &TransactionRepository{db: db}
}

// ExistsByBankTxnID reports whether the tenant already imported a row
// with this bank-side transaction id.
func (r *TransactionRepository) ExistsByBankTxnID(tenantID uuid.UUID, bankTxnID string) (bool, error) {
	var count int64
	err := r.db.Model(&models.Transaction{}).
		Where("tenant_id = ? AND bank_txn_id = ?", tenantID, bankTxnID).
		Count(&count).Error
	return count > 0, err
}

// ExistsByFingerprint is the fallback dedup key for rows without a bank
// transaction id: same reference, amount and date for the tenant.
func (r *TransactionRepository) ExistsByFingerprint(tenantID uuid.UUID, reference string, amountCents int64, paidAt time.Time) (bool, error) {
	var count int64
	err := r.db.Model(&models.Transaction{}).
		Where("tenant_id = ? AND bank_reference = ? AND amount_cents = ? AND paid_at = ?",
			tenantID, reference, amountCents, paidAt).
		Count(&count).Error
	return count > 0, err
}
