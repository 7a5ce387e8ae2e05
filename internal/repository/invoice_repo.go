package repository

import (
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"invoice-reconciliation-backend/internal/models"
)

type InvoiceRepository struct {
	db *gorm.DB
}

func NewInvoiceRepository(db *gorm.DB) *InvoiceRepository {
	return &InvoiceRepository{db: db}
}

// OpenForTenant returns the tenant's invoices that still have an
// outstanding balance. This is the read-only snapshot a matching run
// works from.
func (r *InvoiceRepository) OpenForTenant(tenantID uuid.UUID) ([]models.Invoice, error) {
	var invoices []models.Invoice
	err := r.db.
		Where("tenant_id = ? AND outstanding_cents > 0", tenantID).
		Find(&invoices).Error
	return invoices, err
}

// GetByID fetches a single invoice scoped to a tenant.
func (r *InvoiceRepository) GetByID(tenantID, id uuid.UUID) (*models.Invoice, error) {
	var invoice models.Invoice
	err := r.db.First(&invoice, "id = ? AND tenant_id = ?", id, tenantID).Error
	if err != nil {
		return nil, err
	}
	return &invoice, nil
}

// Create inserts an invoice. Returns false without error when an invoice
// with the same tenant and number already exists.
func (r *InvoiceRepository) Create(inv *models.Invoice) (bool, error) {
	res := r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "tenant_id"}, {Name: "invoice_number"}},
		DoNothing: true,
	}).Create(inv)
	return res.RowsAffected > 0, res.Error
}

// Search is the manual-allocation lookup: optional client-name or
// invoice-number substring, optional statuses.
func (r *InvoiceRepository) Search(tenantID uuid.UUID, query string, statuses []string) ([]models.Invoice, error) {
	var invoices []models.Invoice

	dbQuery := r.db.Model(&models.Invoice{}).Where("tenant_id = ?", tenantID)

	if query != "" {
		like := "%" + strings.ToLower(query) + "%"
		dbQuery = dbQuery.Where("LOWER(client_name) LIKE ? OR LOWER(invoice_number) LIKE ?", like, like)
	}
	if len(statuses) > 0 {
		dbQuery = dbQuery.Where("status IN ?", statuses)
	}

	err := dbQuery.Find(&invoices).Error
	return invoices, err
}
