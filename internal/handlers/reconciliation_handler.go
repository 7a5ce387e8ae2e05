package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"invoice-reconciliation-backend/internal/models"
	"invoice-reconciliation-backend/internal/repository"
	"invoice-reconciliation-backend/internal/services/ingest"
	service "invoice-reconciliation-backend/internal/services/reconciliation"
)

type ReconciliationHandler struct {
	service    *service.Service
	normalizer *ingest.Normalizer
	importer   *ingest.InvoiceImporter
	invoices   *repository.InvoiceRepository
}

func NewReconciliationHandler(s *service.Service, n *ingest.Normalizer, im *ingest.InvoiceImporter, inv *repository.InvoiceRepository) *ReconciliationHandler {
	return &ReconciliationHandler{service: s, normalizer: n, importer: im, invoices: inv}
}

func tenantID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("tenantId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid tenant ID"})
		return uuid.Nil, false
	}
	return id, true
}

func respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrConflict):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case service.IsInvalidAllocation(err):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}

// ImportTransactions ingests a bank CSV. The column mapping arrives as
// form fields next to the file; bank_txn_id_column is optional.
func (h *ReconciliationHandler) ImportTransactions(c *gin.Context) {
	tenant, ok := tenantID(c)
	if !ok {
		return
	}

	file, _, err := c.Request.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file required"})
		return
	}
	defer file.Close()

	mapping := ingest.Mapping{
		Date:      c.PostForm("date_column"),
		Amount:    c.PostForm("amount_column"),
		Reference: c.PostForm("reference_column"),
		BankTxnID: c.PostForm("bank_txn_id_column"),
	}

	header, rows, err := ingest.ReadCSV(file)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := h.normalizer.Normalize(tenant, mapping, header, rows)
	if err != nil {
		if errors.Is(err, ingest.ErrMissingColumn) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// ImportInvoices loads the invoice side from CSV.
func (h *ReconciliationHandler) ImportInvoices(c *gin.Context) {
	tenant, ok := tenantID(c)
	if !ok {
		return
	}

	file, _, err := c.Request.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file required"})
		return
	}
	defer file.Close()

	header, rows, err := ingest.ReadCSV(file)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := h.importer.Import(tenant, header, rows)
	if err != nil {
		if errors.Is(err, ingest.ErrMissingColumn) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// CreateInvoice registers one invoice.
func (h *ReconciliationHandler) CreateInvoice(c *gin.Context) {
	tenant, ok := tenantID(c)
	if !ok {
		return
	}

	var payload struct {
		InvoiceNumber string `json:"invoice_number"`
		ClientName    string `json:"client_name"`
		ClientEmail   string `json:"client_email"`
		AmountCents   int64  `json:"amount_cents"`
		IssuedAt      string `json:"issued_at"`
		DueAt         string `json:"due_at"`
	}
	if err := c.BindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	if payload.ClientName == "" || payload.AmountCents <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid client name or amount"})
		return
	}

	issuedAt, err := ingest.ParseDate(payload.IssuedAt)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	dueAt, err := ingest.ParseDate(payload.DueAt)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	number := payload.InvoiceNumber
	if number == "" {
		number = uuid.New().String()
	}

	invoice := &models.Invoice{
		ID:               uuid.New(),
		TenantID:         tenant,
		InvoiceNumber:    number,
		ClientName:       payload.ClientName,
		ClientEmail:      payload.ClientEmail,
		AmountCents:      payload.AmountCents,
		OutstandingCents: payload.AmountCents,
		Status:           models.InvoiceOpen,
		IssuedAt:         issuedAt,
		DueAt:            dueAt,
		CreatedAt:        time.Now(),
	}
	inserted, err := h.invoices.Create(invoice)
	if err != nil {
		respondError(c, err)
		return
	}
	if !inserted {
		respondError(c, service.ErrConflict)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "invoice created", "invoice": invoice})
}

// SearchInvoices is the manual-allocation lookup.
func (h *ReconciliationHandler) SearchInvoices(c *gin.Context) {
	tenant, ok := tenantID(c)
	if !ok {
		return
	}

	var statuses []string
	if s := c.Query("status"); s != "" {
		statuses = []string{s}
	}

	invoices, err := h.invoices.Search(tenant, c.Query("q"), statuses)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": invoices})
}

// RunMatching scores unresolved payments and persists suggestions.
func (h *ReconciliationHandler) RunMatching(c *gin.Context) {
	tenant, ok := tenantID(c)
	if !ok {
		return
	}

	suggestions, err := h.service.RunMatching(c.Request.Context(), tenant)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"suggestions": suggestions})
}

// ListSuggestions returns suggestions, optionally filtered by status.
func (h *ReconciliationHandler) ListSuggestions(c *gin.Context) {
	tenant, ok := tenantID(c)
	if !ok {
		return
	}

	var status *models.SuggestionStatus
	if s := c.Query("status"); s != "" {
		st := models.SuggestionStatus(s)
		status = &st
	}

	suggestions, err := h.service.ListSuggestions(tenant, status)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": suggestions})
}

// Approve commits caller-supplied allocations against a payment.
func (h *ReconciliationHandler) Approve(c *gin.Context) {
	tenant, ok := tenantID(c)
	if !ok {
		return
	}
	paymentID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payment ID"})
		return
	}

	var payload struct {
		Allocations []service.AllocationRequest `json:"allocations"`
		ApprovedBy  string                      `json:"approved_by"`
	}
	if err := c.BindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}

	payment, err := h.service.Approve(tenant, paymentID, payload.Allocations, payload.ApprovedBy)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "payment approved", "payment": payment})
}

// Reject marks a payment rejected with a reason.
func (h *ReconciliationHandler) Reject(c *gin.Context) {
	tenant, ok := tenantID(c)
	if !ok {
		return
	}
	paymentID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payment ID"})
		return
	}

	var payload struct {
		Reason string `json:"reason"`
	}
	if err := c.BindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}

	payment, err := h.service.Reject(tenant, paymentID, payload.Reason)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "payment rejected", "payment": payment})
}

// ReMatch re-runs matching for one payment.
func (h *ReconciliationHandler) ReMatch(c *gin.Context) {
	tenant, ok := tenantID(c)
	if !ok {
		return
	}
	paymentID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payment ID"})
		return
	}

	suggestions, err := h.service.ReMatch(tenant, paymentID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"suggestions": suggestions})
}

// BulkApprove approves all pending suggestions above the threshold.
func (h *ReconciliationHandler) BulkApprove(c *gin.Context) {
	tenant, ok := tenantID(c)
	if !ok {
		return
	}

	var payload struct {
		MinConfidence float64 `json:"min_confidence"`
		ApprovedBy    string  `json:"approved_by"`
	}
	if err := c.BindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}

	result, err := h.service.BulkApprove(tenant, payload.MinConfidence, payload.ApprovedBy)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// Stats returns the tenant's payment lifecycle counts.
func (h *ReconciliationHandler) Stats(c *gin.Context) {
	tenant, ok := tenantID(c)
	if !ok {
		return
	}

	stats, err := h.service.Stats(tenant)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

// GetSettings returns the tenant's matching overrides.
func (h *ReconciliationHandler) GetSettings(c *gin.Context) {
	tenant, ok := tenantID(c)
	if !ok {
		return
	}

	overrides, err := h.service.Settings(tenant)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, overrides)
}

// PutSettings stores the tenant's matching overrides.
func (h *ReconciliationHandler) PutSettings(c *gin.Context) {
	tenant, ok := tenantID(c)
	if !ok {
		return
	}

	var overrides models.MatchingOverrides
	if err := c.BindJSON(&overrides); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}

	if err := h.service.UpdateSettings(tenant, overrides); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "settings updated"})
}
