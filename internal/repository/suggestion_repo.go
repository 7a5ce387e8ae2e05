package repository

import (
	"github.com/google/uuid"
	"gorm.io/gorm"

	"invoice-reconciliation-backend/internal/models"
)

type SuggestionRepository struct {
	db *gorm.DB
}

func NewSuggestionRepository(db *gorm.DB) *SuggestionRepository {
	return &SuggestionRepository{db: db}
}

// List returns the tenant's suggestions, optionally filtered by status,
// best candidates first.
func (r *SuggestionRepository) List(tenantID uuid.UUID, status *models.SuggestionStatus) ([]models.Suggestion, error) {
	var suggestions []models.Suggestion

	query := r.db.Where("tenant_id = ?", tenantID)
	if status != nil {
		query = query.Where("status = ?", *status)
	}

	err := query.Order("confidence DESC, rank ASC").Find(&suggestions).Error
	return suggestions, err
}

// PendingAtOrAbove returns the tenant's top-ranked pending suggestions
// meeting the confidence floor. Only rank 0 is eligible for unattended
// approval.
func (r *SuggestionRepository) PendingAtOrAbove(tenantID uuid.UUID, minConfidence float64) ([]models.Suggestion, error) {
	var suggestions []models.Suggestion
	err := r.db.
		Where("tenant_id = ? AND status = ? AND rank = 0 AND confidence >= ?",
			tenantID, models.SuggestionPending, minConfidence).
		Order("confidence DESC").
		Find(&suggestions).Error
	return suggestions, err
}
