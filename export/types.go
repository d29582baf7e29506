package export

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// Per-line order statuses relevant to encoding.
const (
	StatusShipped = "Shipped"
)

// QC statuses. QCPass is matched case-sensitively; the partner format only
// knows APPROVED and REQUESTED.
const (
	QCPass        = "Pass"
	qcCodeApprove = "APPROVED"
	qcCodeRequest = "REQUESTED"
)

// Snapshot is an immutable point-in-time read of a purchase order, the
// encoder's only input. It carries no references back into the document
// store, so encoding can never trigger a store update.
type Snapshot struct {
	OrderNo       string
	Supplier      string
	Status        string
	WorkflowState string
	Currency      string
	Lines         []Line
}

// Line is one purchase-order line item. Zero times mean "date unknown".
type Line struct {
	Line              int
	ArticleNumber     string
	ArticleName       string
	UnitPrice         float64
	RequestedQty      float64
	ConfirmedQty      float64
	DeliveredQty      float64
	RequestedShipDate time.Time
	ConfirmedShipDate time.Time
	Status            string
	QCStatus          string
	ContainerRef      string
}

// Record is the fully encoded text for one order at one point in time.
// Two records are equal iff their Text is byte-identical.
type Record struct {
	OrderNo string
	Text    string
}

// Hash returns the SHA-256 of the record text, hex encoded. Logged with
// every export and skip for audit.
func (r Record) Hash() string {
	sum := sha256.Sum256([]byte(r.Text))
	return hex.EncodeToString(sum[:])
}

// isoDate renders a date as yyyy-mm-dd, empty for the zero time.
func isoDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format("2006-01-02")
}

// Marker is the idempotence state read off an order before re-export: the
// sequence number of the last successful export and the fingerprint of the
// field values that produced it. Valid is false for never-exported orders.
type Marker struct {
	Seq         int64
	Fingerprint string
	Valid       bool
}
