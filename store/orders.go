package store

import (
	"database/sql"
	"fmt"
	"time"

	"pyralink/export"
)

// Order is a purchase-order header as stored.
type Order struct {
	ID                   int64   `json:"id"`
	OrderNo              string  `json:"order_no"`
	Supplier             string  `json:"supplier"`
	POStatus             string  `json:"po_status"`
	WorkflowState        string  `json:"workflow_state"`
	Currency             string  `json:"currency"`
	TotalConfirmedQty    float64 `json:"total_confirmed_qty"`
	TotalConfirmedAmount float64 `json:"total_confirmed_amount"`
	TotalDeliveredQty    float64 `json:"total_delivered_qty"`
	TotalDeliveredAmount float64 `json:"total_delivered_amount"`
	LastExportSeq        *int64  `json:"last_export_seq"`
	ExportFingerprint    string  `json:"export_fingerprint"`
	LastExportAt         *string `json:"last_export_at"`
	CreatedAt            string  `json:"created_at"`
	UpdatedAt            string  `json:"updated_at"`
}

// OrderItem is one purchase-order line as stored. Dates are yyyy-mm-dd
// strings; empty means unknown.
type OrderItem struct {
	ID                int64   `json:"id"`
	OrderID           int64   `json:"order_id"`
	Line              int     `json:"line"`
	ArticleNumber     string  `json:"article_number"`
	ArticleName       string  `json:"article_name"`
	UnitPrice         float64 `json:"unit_price"`
	RequestedQty      float64 `json:"requested_qty"`
	ConfirmedQty      float64 `json:"confirmed_qty"`
	DeliveredQty      float64 `json:"delivered_qty"`
	Amount            float64 `json:"amount"`
	RequestedShipDate string  `json:"requested_shipdate"`
	ConfirmedShipDate string  `json:"confirmed_shipdate"`
	RequestedShipWeek string  `json:"requested_ship_week"`
	ConfirmedShipWeek string  `json:"confirmed_ship_week"`
	OrderStatus       string  `json:"order_status"`
	QCStatus          string  `json:"qc_status"`
	ContainerRef      string  `json:"container_ref"`
}

const orderSelectCols = `id, order_no, supplier, po_status, workflow_state, currency,
	total_confirmed_qty, total_confirmed_amount, total_delivered_qty, total_delivered_amount,
	last_export_seq, export_fingerprint, last_export_at, created_at, updated_at`

func scanOrder(row *sql.Row) (*Order, error) {
	o := &Order{}
	err := row.Scan(&o.ID, &o.OrderNo, &o.Supplier, &o.POStatus, &o.WorkflowState, &o.Currency,
		&o.TotalConfirmedQty, &o.TotalConfirmedAmount, &o.TotalDeliveredQty, &o.TotalDeliveredAmount,
		&o.LastExportSeq, &o.ExportFingerprint, &o.LastExportAt, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return o, nil
}

// GetOrderByNo fetches one order header.
func (db *DB) GetOrderByNo(orderNo string) (*Order, error) {
	return scanOrder(db.QueryRow(`SELECT `+orderSelectCols+` FROM orders WHERE order_no = ?`, orderNo))
}

// ListOrders returns all order headers, newest first.
func (db *DB) ListOrders() ([]Order, error) {
	rows, err := db.Query(`SELECT ` + orderSelectCols + ` FROM orders ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var orders []Order
	for rows.Next() {
		var o Order
		if err := rows.Scan(&o.ID, &o.OrderNo, &o.Supplier, &o.POStatus, &o.WorkflowState, &o.Currency,
			&o.TotalConfirmedQty, &o.TotalConfirmedAmount, &o.TotalDeliveredQty, &o.TotalDeliveredAmount,
			&o.LastExportSeq, &o.ExportFingerprint, &o.LastExportAt, &o.CreatedAt, &o.UpdatedAt); err != nil {
			return nil, err
		}
		orders = append(orders, o)
	}
	return orders, rows.Err()
}

// ListOrderItems returns an order's lines in stable line order. The export
// encoder depends on this ordering never changing between reads.
func (db *DB) ListOrderItems(orderID int64) ([]OrderItem, error) {
	rows, err := db.Query(`SELECT id, order_id, line, article_number, article_name,
		unit_price, requested_qty, confirmed_qty, delivered_qty, amount,
		requested_shipdate, confirmed_shipdate, requested_ship_week, confirmed_ship_week,
		order_status, qc_status, container_ref
		FROM order_items WHERE order_id = ? ORDER BY line`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []OrderItem
	for rows.Next() {
		var it OrderItem
		if err := rows.Scan(&it.ID, &it.OrderID, &it.Line, &it.ArticleNumber, &it.ArticleName,
			&it.UnitPrice, &it.RequestedQty, &it.ConfirmedQty, &it.DeliveredQty, &it.Amount,
			&it.RequestedShipDate, &it.ConfirmedShipDate, &it.RequestedShipWeek, &it.ConfirmedShipWeek,
			&it.OrderStatus, &it.QCStatus, &it.ContainerRef); err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

// SaveOrder upserts an order header and replaces its lines. Per-line
// amounts and header totals are recomputed here so they can never drift
// from the line data.
func (db *DB) SaveOrder(o *Order, items []OrderItem) error {
	var totalConfQty, totalConfAmt, totalDelQty, totalDelAmt float64
	for i := range items {
		items[i].Amount = items[i].UnitPrice * items[i].ConfirmedQty
		totalConfQty += items[i].ConfirmedQty
		totalConfAmt += items[i].Amount
		totalDelQty += items[i].DeliveredQty
		totalDelAmt += items[i].UnitPrice * items[i].DeliveredQty
	}
	o.TotalConfirmedQty = totalConfQty
	o.TotalConfirmedAmount = totalConfAmt
	o.TotalDeliveredQty = totalDelQty
	o.TotalDeliveredAmount = totalDelAmt

	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	res, err := tx.Exec(`
		INSERT INTO orders (order_no, supplier, po_status, workflow_state, currency,
			total_confirmed_qty, total_confirmed_amount, total_delivered_qty, total_delivered_amount)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(order_no) DO UPDATE SET
			supplier=excluded.supplier, po_status=excluded.po_status,
			workflow_state=excluded.workflow_state, currency=excluded.currency,
			total_confirmed_qty=excluded.total_confirmed_qty,
			total_confirmed_amount=excluded.total_confirmed_amount,
			total_delivered_qty=excluded.total_delivered_qty,
			total_delivered_amount=excluded.total_delivered_amount,
			updated_at=datetime('now','localtime')`,
		o.OrderNo, o.Supplier, o.POStatus, o.WorkflowState, o.Currency,
		o.TotalConfirmedQty, o.TotalConfirmedAmount, o.TotalDeliveredQty, o.TotalDeliveredAmount)
	if err != nil {
		return fmt.Errorf("upsert order %s: %w", o.OrderNo, err)
	}

	var orderID int64
	if id, err := res.LastInsertId(); err == nil && id != 0 {
		orderID = id
	}
	if existing, err := db.txOrderID(tx, o.OrderNo); err == nil {
		orderID = existing
	}
	o.ID = orderID

	if _, err := tx.Exec(`DELETE FROM order_items WHERE order_id = ?`, orderID); err != nil {
		return fmt.Errorf("clear items for %s: %w", o.OrderNo, err)
	}
	for i := range items {
		items[i].OrderID = orderID
		if _, err := tx.Exec(`
			INSERT INTO order_items (order_id, line, article_number, article_name,
				unit_price, requested_qty, confirmed_qty, delivered_qty, amount,
				requested_shipdate, confirmed_shipdate, requested_ship_week, confirmed_ship_week,
				order_status, qc_status, container_ref)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			orderID, items[i].Line, items[i].ArticleNumber, items[i].ArticleName,
			items[i].UnitPrice, items[i].RequestedQty, items[i].ConfirmedQty, items[i].DeliveredQty, items[i].Amount,
			items[i].RequestedShipDate, items[i].ConfirmedShipDate, items[i].RequestedShipWeek, items[i].ConfirmedShipWeek,
			items[i].OrderStatus, items[i].QCStatus, items[i].ContainerRef); err != nil {
			return fmt.Errorf("insert item %d for %s: %w", items[i].Line, o.OrderNo, err)
		}
	}

	return tx.Commit()
}

func (db *DB) txOrderID(tx *sql.Tx, orderNo string) (int64, error) {
	var id int64
	err := tx.QueryRow(`SELECT id FROM orders WHERE order_no = ?`, orderNo).Scan(&id)
	return id, err
}

// LoadSnapshot reads an order and its lines as one consistent snapshot for
// the export pipeline, together with its idempotence marker. Unparsable
// dates become zero times (the encoder emits them as empty fields).
func (db *DB) LoadSnapshot(orderNo string) (export.Snapshot, export.Marker, error) {
	o, err := db.GetOrderByNo(orderNo)
	if err != nil {
		return export.Snapshot{}, export.Marker{}, fmt.Errorf("order %s: %w", orderNo, err)
	}
	items, err := db.ListOrderItems(o.ID)
	if err != nil {
		return export.Snapshot{}, export.Marker{}, fmt.Errorf("items for %s: %w", orderNo, err)
	}

	snap := export.Snapshot{
		OrderNo:       o.OrderNo,
		Supplier:      o.Supplier,
		Status:        o.POStatus,
		WorkflowState: o.WorkflowState,
		Currency:      o.Currency,
	}
	for _, it := range items {
		snap.Lines = append(snap.Lines, export.Line{
			Line:              it.Line,
			ArticleNumber:     it.ArticleNumber,
			ArticleName:       it.ArticleName,
			UnitPrice:         it.UnitPrice,
			RequestedQty:      it.RequestedQty,
			ConfirmedQty:      it.ConfirmedQty,
			DeliveredQty:      it.DeliveredQty,
			RequestedShipDate: parseDate(it.RequestedShipDate),
			ConfirmedShipDate: parseDate(it.ConfirmedShipDate),
			Status:            it.OrderStatus,
			QCStatus:          it.QCStatus,
			ContainerRef:      it.ContainerRef,
		})
	}

	marker := export.Marker{Fingerprint: o.ExportFingerprint}
	if o.LastExportSeq != nil {
		marker.Seq = *o.LastExportSeq
		marker.Valid = true
	}
	return snap, marker, nil
}

// SetExportMarker records the idempotence marker after a successful export.
// Deliberately a plain column update: it must never emit an order-changed
// event, or exporting would trigger itself.
func (db *DB) SetExportMarker(orderNo string, seq int64, fingerprint string) error {
	res, err := db.Exec(`UPDATE orders SET last_export_seq=?, export_fingerprint=?,
		last_export_at=datetime('now','localtime'), updated_at=datetime('now','localtime')
		WHERE order_no=?`, seq, fingerprint, orderNo)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err == nil && n == 0 {
		return fmt.Errorf("order %s not found", orderNo)
	}
	return err
}

// UpdateShipWeeks writes the derived display weeks back onto order lines.
func (db *DB) UpdateShipWeeks(orderNo string, weeks []export.LineShipWeeks) error {
	o, err := db.GetOrderByNo(orderNo)
	if err != nil {
		return err
	}
	for _, w := range weeks {
		if _, err := db.Exec(`UPDATE order_items SET requested_ship_week=?, confirmed_ship_week=?
			WHERE order_id=? AND line=?`, w.RequestedWeek, w.ConfirmedWeek, o.ID, w.Line); err != nil {
			return err
		}
	}
	return nil
}

func parseDate(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}
	}
	return t
}
