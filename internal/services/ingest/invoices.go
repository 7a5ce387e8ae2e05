package ingest

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"invoice-reconciliation-backend/internal/models"
	"invoice-reconciliation-backend/internal/repository"
)

// invoice CSV columns, matched by header name
const (
	colInvoiceNumber = "invoice_number"
	colClientName    = "client_name"
	colClientEmail   = "client_email"
	colAmount        = "amount"
	colIssuedAt      = "issued_at"
	colDueAt         = "due_at"
)

// InvoiceImporter loads the read-only invoice side from CSV. The matching
// engine only consumes invoices; this exists so the system can be fed
// end to end.
type InvoiceImporter struct {
	invoices *repository.InvoiceRepository
}

func NewInvoiceImporter(db *gorm.DB) *InvoiceImporter {
	return &InvoiceImporter{invoices: repository.NewInvoiceRepository(db)}
}

// Import reads invoice rows with the fixed header; the email column is
// optional. Bad rows are collected; rows whose tenant and number are
// already on file are counted as duplicates, so re-running the same file
// is safe.
func (im *InvoiceImporter) Import(tenantID uuid.UUID, header []string, rows [][]string) (Result, error) {
	idx := make(map[string]int, len(header))
	for i, h := range header {
		idx[strings.ToLower(strings.TrimSpace(h))] = i
	}
	for _, required := range []string{colInvoiceNumber, colClientName, colAmount, colIssuedAt, colDueAt} {
		if _, ok := idx[required]; !ok {
			return Result{}, fmt.Errorf("%w: invoice CSV has no %q column", ErrMissingColumn, required)
		}
	}

	field := func(record []string, name string) string {
		i, ok := idx[name]
		if !ok || i >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[i])
	}

	var result Result
	for i, record := range rows {
		rowNum := i + 1

		number := field(record, colInvoiceNumber)
		client := field(record, colClientName)
		if number == "" || client == "" {
			result.Errors = append(result.Errors, RowError{Row: rowNum, Reason: "missing invoice number or client name"})
			continue
		}

		amountCents, err := ParseAmountCents(field(record, colAmount))
		if err != nil || amountCents <= 0 {
			result.Errors = append(result.Errors, RowError{Row: rowNum, Reason: fmt.Sprintf("unparsable amount %q", field(record, colAmount))})
			continue
		}
		issuedAt, err := ParseDate(field(record, colIssuedAt))
		if err != nil {
			result.Errors = append(result.Errors, RowError{Row: rowNum, Reason: err.Error()})
			continue
		}
		dueAt, err := ParseDate(field(record, colDueAt))
		if err != nil {
			result.Errors = append(result.Errors, RowError{Row: rowNum, Reason: err.Error()})
			continue
		}

		invoice := &models.Invoice{
			ID:               uuid.New(),
			TenantID:         tenantID,
			InvoiceNumber:    number,
			ClientName:       client,
			ClientEmail:      field(record, colClientEmail),
			AmountCents:      amountCents,
			OutstandingCents: amountCents,
			Status:           models.InvoiceOpen,
			IssuedAt:         issuedAt,
			DueAt:            dueAt,
			CreatedAt:        time.Now(),
		}
		inserted, err := im.invoices.Create(invoice)
		if err != nil {
			return result, err
		}
		if !inserted {
			result.Duplicates++
			continue
		}
		result.Accepted++
	}

	log.Printf("imported invoices for tenant %s: accepted=%d duplicates=%d errors=%d",
		tenantID, result.Accepted, result.Duplicates, len(result.Errors))
	return result, nil
}
