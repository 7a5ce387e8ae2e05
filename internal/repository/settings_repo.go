package repository

import (
	"errors"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"invoice-reconciliation-backend/internal/models"
)

type SettingsRepository struct {
	db *gorm.DB
}

func NewSettingsRepository(db *gorm.DB) *SettingsRepository {
	return &SettingsRepository{db: db}
}

// Get returns the tenant's matching overrides, or an empty override set
// when the tenant has never saved any.
func (r *SettingsRepository) Get(tenantID uuid.UUID) (models.MatchingOverrides, error) {
	var settings models.TenantSettings
	err := r.db.First(&settings, "tenant_id = ?", tenantID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.MatchingOverrides{}, nil
	}
	if err != nil {
		return models.MatchingOverrides{}, err
	}
	return settings.Matching.Data(), nil
}

// Put upserts the tenant's matching overrides.
func (r *SettingsRepository) Put(tenantID uuid.UUID, overrides models.MatchingOverrides) error {
	settings := models.TenantSettings{
		TenantID: tenantID,
		Matching: datatypes.NewJSONType(overrides),
	}
	return r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "tenant_id"}},
		UpdateAll: true,
	}).Create(&settings).Error
}
