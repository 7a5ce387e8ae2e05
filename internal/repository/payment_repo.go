package repository

import (
	"github.com/google/uuid"
	"gorm.io/gorm"

	"invoice-reconciliation-backend/internal/models"
)

type PaymentRepository struct {
	db *gorm.DB
}

func NewPaymentRepository(db *gorm.DB) *PaymentRepository {
	return &PaymentRepository{db: db}
}

// GetByID fetches a payment scoped to a tenant, with its transaction.
func (r *PaymentRepository) GetByID(tenantID, id uuid.UUID) (*models.Payment, error) {
	var payment models.Payment
	err := r.db.Preload("Transaction").
		First(&payment, "id = ? AND tenant_id = ?", id, tenantID).Error
	if err != nil {
		return nil, err
	}
	return &payment, nil
}

// ListByStatus returns the tenant's payments in the given statuses.
func (r *PaymentRepository) ListByStatus(tenantID uuid.UUID, statuses ...models.PaymentStatus) ([]models.Payment, error) {
	var payments []models.Payment
	err := r.db.Preload("Transaction").
		Where("tenant_id = ? AND status IN ?", tenantID, statuses).
		Order("created_at ASC").
		Find(&payments).Error
	return payments, err
}

// StatusCounts aggregates the tenant's payments per lifecycle status.
func (r *PaymentRepository) StatusCounts(tenantID uuid.UUID) (map[models.PaymentStatus]int64, error) {
	type row struct {
		Status models.PaymentStatus
		Count  int64
	}
	var rows []row

	err := r.db.Model(&models.Payment{}).
		Where("tenant_id = ?", tenantID).
		Select("status, COUNT(*) as count").
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	counts := make(map[models.PaymentStatus]int64, len(rows))
	for _, r := range rows {
		counts[r.Status] = r.Count
	}
	return counts, nil
}
