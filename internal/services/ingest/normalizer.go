package ingest

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"invoice-reconciliation-backend/internal/models"
	"invoice-reconciliation-backend/internal/repository"
)

// ErrMissingColumn marks batch-level failures the caller can fix: a
// mapped or required column absent from the CSV header.
var ErrMissingColumn = errors.New("missing column")

// Mapping names the CSV header columns carrying each canonical field.
// BankTxnID is optional; the rest are required.
type Mapping struct {
	Date      string `json:"date"`
	Amount    string `json:"amount"`
	Reference string `json:"reference"`
	BankTxnID string `json:"bank_txn_id,omitempty"`
}

// RowError is one rejected row. Collected, never fatal to the batch.
type RowError struct {
	Row    int    `json:"row"`
	Reason string `json:"reason"`
}

// Result is the batch manifest: partial success is the normal outcome.
type Result struct {
	Accepted   int        `json:"accepted"`
	Duplicates int        `json:"duplicates"`
	Errors     []RowError `json:"errors"`
}

var dateLayouts = []string{
	"2006-01-02",
	"02/01/2006",
	"02-01-2006",
	"02.01.2006",
	"2006/01/02",
}

// ParseDate accepts ISO or day-first dates.
func ParseDate(raw string) (time.Time, error) {
	s := strings.TrimSpace(raw)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unparsable date %q", raw)
}

// Normalizer turns mapped CSV rows into Transaction+Payment pairs.
type Normalizer struct {
	db           *gorm.DB
	transactions *repository.TransactionRepository
}

func NewNormalizer(db *gorm.DB) *Normalizer {
	return &Normalizer{
		db:           db,
		transactions: repository.NewTransactionRepository(db),
	}
}

// ReadCSV splits a CSV stream into header and body rows. Ragged rows are
// allowed; blank rows are dropped.
func ReadCSV(r io.Reader) ([]string, [][]string, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, nil, fmt.Errorf("cannot read CSV header: %w", err)
	}

	var rows [][]string
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, nil, err
		}
		if strings.Join(record, "") == "" {
			continue
		}
		rows = append(rows, record)
	}
	return header, rows, nil
}

// Normalize validates and persists rows for one tenant. Each accepted row
// becomes an immutable Transaction plus an UNALLOCATED Payment. Rows that
// match an already-imported transaction are counted as duplicates, not
// errors, so re-running the same file is safe. A missing mapped column is
// a total failure: nothing is attempted.
func (n *Normalizer) Normalize(tenantID uuid.UUID, mapping Mapping, header []string, rows [][]string) (Result, error) {
	cols, err := resolveColumns(mapping, header)
	if err != nil {
		return Result{}, err
	}

	var result Result
	seen := make(map[string]bool)

	for i, record := range rows {
		rowNum := i + 1

		tx, reason := n.parseRow(tenantID, cols, record)
		if reason != "" {
			result.Errors = append(result.Errors, RowError{Row: rowNum, Reason: reason})
			continue
		}

		key := dedupKey(tx)
		if seen[key] {
			result.Duplicates++
			continue
		}

		dup, err := n.isDuplicate(tx)
		if err != nil {
			return result, err
		}
		if dup {
			seen[key] = true
			result.Duplicates++
			continue
		}

		if err := n.persist(tx); err != nil {
			return result, err
		}
		seen[key] = true
		result.Accepted++
	}

	log.Printf("normalized batch for tenant %s: accepted=%d duplicates=%d errors=%d",
		tenantID, result.Accepted, result.Duplicates, len(result.Errors))
	return result, nil
}

type columnIndexes struct {
	date      int
	amount    int
	reference int
	bankTxnID int // -1 when unmapped
}

func resolveColumns(mapping Mapping, header []string) (columnIndexes, error) {
	find := func(name string) int {
		for i, h := range header {
			if strings.EqualFold(strings.TrimSpace(h), strings.TrimSpace(name)) {
				return i
			}
		}
		return -1
	}

	cols := columnIndexes{
		date:      find(mapping.Date),
		amount:    find(mapping.Amount),
		reference: find(mapping.Reference),
		bankTxnID: -1,
	}
	if mapping.Date == "" || cols.date < 0 {
		return cols, fmt.Errorf("%w: mapped date column %q not found in header", ErrMissingColumn, mapping.Date)
	}
	if mapping.Amount == "" || cols.amount < 0 {
		return cols, fmt.Errorf("%w: mapped amount column %q not found in header", ErrMissingColumn, mapping.Amount)
	}
	if mapping.Reference == "" || cols.reference < 0 {
		return cols, fmt.Errorf("%w: mapped reference column %q not found in header", ErrMissingColumn, mapping.Reference)
	}
	if mapping.BankTxnID != "" {
		cols.bankTxnID = find(mapping.BankTxnID)
		if cols.bankTxnID < 0 {
			return cols, fmt.Errorf("%w: mapped bank txn id column %q not found in header", ErrMissingColumn, mapping.BankTxnID)
		}
	}
	return cols, nil
}

func (n *Normalizer) parseRow(tenantID uuid.UUID, cols columnIndexes, record []string) (*models.Transaction, string) {
	field := func(idx int) string {
		if idx < 0 || idx >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[idx])
	}

	dateRaw := field(cols.date)
	amountRaw := field(cols.amount)
	reference := field(cols.reference)

	if dateRaw == "" {
		return nil, "missing date"
	}
	if amountRaw == "" {
		return nil, "missing amount"
	}
	if reference == "" {
		return nil, "missing reference"
	}

	paidAt, err := ParseDate(dateRaw)
	if err != nil {
		return nil, fmt.Sprintf("unparsable date %q", dateRaw)
	}

	amountCents, err := ParseAmountCents(amountRaw)
	if err != nil {
		return nil, fmt.Sprintf("unparsable amount %q", amountRaw)
	}

	return &models.Transaction{
		ID:            uuid.New(),
		TenantID:      tenantID,
		AmountCents:   amountCents,
		PaidAt:        paidAt,
		BankReference: reference,
		BankTxnID:     field(cols.bankTxnID),
		CreatedAt:     time.Now(),
	}, ""
}

func dedupKey(tx *models.Transaction) string {
	if tx.BankTxnID != "" {
		return "id:" + tx.BankTxnID
	}
	return fmt.Sprintf("fp:%s|%d|%s", tx.BankReference, tx.AmountCents, tx.PaidAt.Format("2006-01-02"))
}

func (n *Normalizer) isDuplicate(tx *models.Transaction) (bool, error) {
	if tx.BankTxnID != "" {
		return n.transactions.ExistsByBankTxnID(tx.TenantID, tx.BankTxnID)
	}
	return n.transactions.ExistsByFingerprint(tx.TenantID, tx.BankReference, tx.AmountCents, tx.PaidAt)
}

// persist writes the transaction and its payment wrapper together.
func (n *Normalizer) persist(tx *models.Transaction) error {
	payment := &models.Payment{
		ID:            uuid.New(),
		TenantID:      tx.TenantID,
		TransactionID: tx.ID,
		AmountCents:   tx.AmountCents,
		Status:        models.PaymentUnallocated,
		CreatedAt:     time.Now(),
		UpdatedAt:     time.Now(),
	}

	return n.db.Transaction(func(dbtx *gorm.DB) error {
		if err := dbtx.Create(tx).Error; err != nil {
			return err
		}
		return dbtx.Create(payment).Error
	})
}
