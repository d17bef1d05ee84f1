package model

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/username/dividendlog/backend/src/models"
)

// DividendStore is the historical dividend log.
type DividendStore interface {
	// FindDuplicates returns the candidates that already exist in the log.
	FindDuplicates(ctx context.Context, candidates []models.DuplicateCandidate) ([]models.DuplicateCandidate, error)
	Begin(ctx context.Context) (DividendStoreTx, error)
}

// DividendStoreTx writes one import atomically.
type DividendStoreTx interface {
	InsertDividend(ctx context.Context, rec models.DividendRecord, batchID string) error
	RecordImport(ctx context.Context, entry models.ImportHistoryEntry) error
	Commit() error
	Rollback() error
}

type SQLDividendStore struct {
	db *sql.DB
}

func NewSQLDividendStore(db *sql.DB) *SQLDividendStore {
	return &SQLDividendStore{db: db}
}

const duplicateQuery = `
	SELECT COUNT(1) FROM log_dividends
	WHERE isin = ? AND payment_date = ? AND broker_id = ? AND ABS(shares_held - ?) < ?`

func (s *SQLDividendStore) FindDuplicates(ctx context.Context, candidates []models.DuplicateCandidate) ([]models.DuplicateCandidate, error) {
	found := []models.DuplicateCandidate{}
	if len(candidates) == 0 {
		return found, nil
	}

	stmt, err := s.db.PrepareContext(ctx, duplicateQuery)
	if err != nil {
		return nil, fmt.Errorf("preparing duplicate query: %w", err)
	}
	defer stmt.Close()

	tolerance := models.SharesTolerance.InexactFloat64()
	for _, c := range candidates {
		var n int
		err := stmt.QueryRowContext(ctx, c.ISIN, c.PaymentDate, c.BrokerID, c.SharesHeld.InexactFloat64(), tolerance).Scan(&n)
		if err != nil {
			return nil, fmt.Errorf("checking duplicate for ISIN %s: %w", c.ISIN, err)
		}
		if n > 0 {
			found = append(found, c)
		}
	}
	return found, nil
}

func (s *SQLDividendStore) Begin(ctx context.Context) (DividendStoreTx, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning import transaction: %w", err)
	}
	return &sqlDividendTx{tx: tx}, nil
}

type sqlDividendTx struct {
	tx *sql.Tx
}

const insertDividendQuery = `
	INSERT INTO log_dividends (
		broker_id, payment_date, isin, ticker, shares_held,
		dividend_amount_local, tax_amount_local, currency_local,
		dividend_amount_sek, tax_amount_sek, net_dividend_sek,
		tax_rate_percent, exchange_rate_used,
		is_complete, incomplete_fields, import_batch_id
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

func (t *sqlDividendTx) InsertDividend(ctx context.Context, rec models.DividendRecord, batchID string) error {
	var incomplete interface{}
	if len(rec.IncompleteFields) > 0 {
		incomplete = strings.Join(rec.IncompleteFields, ",")
	}
	_, err := t.tx.ExecContext(ctx, insertDividendQuery,
		rec.BrokerID,
		rec.PaymentDate,
		rec.ISIN,
		nullString(rec.Ticker),
		rec.SharesHeld.InexactFloat64(),
		nullFloat(rec.DividendAmountLocal),
		nullFloat(rec.TaxAmountLocal),
		nullString(rec.CurrencyLocal),
		nullFloat(rec.DividendAmountSEK),
		nullFloat(rec.TaxAmountSEK),
		nullFloat(rec.NetDividendSEK),
		nullFloat(rec.TaxRatePercent),
		nullFloat(rec.ExchangeRateUsed),
		rec.IsComplete,
		incomplete,
		batchID,
	)
	return err
}

func (t *sqlDividendTx) RecordImport(ctx context.Context, e models.ImportHistoryEntry) error {
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO dividend_import_history (batch_id, broker_id, filename, total_rows, imported_count, skipped_count, warning_count)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.BatchID, e.BrokerID, e.FileName, e.TotalRows, e.Imported, e.Skipped, e.WarningCount)
	return err
}

func (t *sqlDividendTx) Commit() error   { return t.tx.Commit() }
func (t *sqlDividendTx) Rollback() error { return t.tx.Rollback() }

func nullFloat(v decimal.NullDecimal) interface{} {
	if !v.Valid {
		return nil
	}
	return v.Decimal.InexactFloat64()
}

func nullString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

// CountDividendsByBatch returns how many log rows carry the batch id.
func CountDividendsByBatch(ctx context.Context, db *sql.DB, batchID string) (int, error) {
	var n int
	err := db.QueryRowContext(ctx, `SELECT COUNT(1) FROM log_dividends WHERE import_batch_id = ?`, batchID).Scan(&n)
	return n, err
}

// GetImportHistory returns the newest import history entries first.
func GetImportHistory(ctx context.Context, db *sql.DB, limit int) ([]models.ImportHistoryEntry, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT batch_id, broker_id, filename, total_rows, imported_count, skipped_count, warning_count
		FROM dividend_import_history ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := []models.ImportHistoryEntry{}
	for rows.Next() {
		var e models.ImportHistoryEntry
		if err := rows.Scan(&e.BatchID, &e.BrokerID, &e.FileName, &e.TotalRows, &e.Imported, &e.Skipped, &e.WarningCount); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
