package store

import (
	"pyralink/export"
)

// ExportLogEntry is one finished export attempt as stored.
type ExportLogEntry struct {
	ID        int64  `json:"id"`
	AttemptID string `json:"attempt_id"`
	OrderNo   string `json:"order_no"`
	Outcome   string `json:"outcome"`
	Step      string `json:"step"`
	Seq       int64  `json:"seq"`
	Hash      string `json:"hash"`
	Detail    string `json:"detail"`
	CreatedAt string `json:"created_at"`
}

// RecordAttempt appends a finished attempt to the audit log.
func (db *DB) RecordAttempt(a export.Attempt) error {
	_, err := db.Exec(`INSERT INTO export_log (attempt_id, order_no, outcome, step, seq, hash, detail)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.OrderNo, a.Outcome, string(a.Step), a.Seq, a.Hash, a.Detail)
	return err
}

// ListExportLog returns the most recent attempts across all orders.
func (db *DB) ListExportLog(limit int) ([]ExportLogEntry, error) {
	return db.queryExportLog(`SELECT id, attempt_id, order_no, outcome, step, seq, hash, detail, created_at
		FROM export_log ORDER BY id DESC LIMIT ?`, limit)
}

// ListExportLogForOrder returns the most recent attempts for one order.
func (db *DB) ListExportLogForOrder(orderNo string, limit int) ([]ExportLogEntry, error) {
	return db.queryExportLog(`SELECT id, attempt_id, order_no, outcome, step, seq, hash, detail, created_at
		FROM export_log WHERE order_no = ? ORDER BY id DESC LIMIT ?`, orderNo, limit)
}

func (db *DB) queryExportLog(query string, args ...any) ([]ExportLogEntry, error) {
	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var entries []ExportLogEntry
	for rows.Next() {
		var e ExportLogEntry
		if err := rows.Scan(&e.ID, &e.AttemptID, &e.OrderNo, &e.Outcome, &e.Step,
			&e.Seq, &e.Hash, &e.Detail, &e.CreatedAt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
