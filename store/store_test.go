package store

import (
	"path/filepath"
	"testing"
	"time"

	"pyralink/export"
)

func testDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func sampleOrder() (*Order, []OrderItem) {
	o := &Order{
		OrderNo:       "PO-2026-0042",
		Supplier:      "S-1001",
		POStatus:      "To Receive and Bill",
		WorkflowState: "Confirmed",
		Currency:      "USD",
	}
	items := []OrderItem{
		{
			Line:              1,
			ArticleNumber:     "ART-100",
			ArticleName:       "Oak table",
			UnitPrice:         12.5,
			RequestedQty:      100,
			ConfirmedQty:      140,
			DeliveredQty:      40,
			ConfirmedShipDate: "2026-02-12",
			OrderStatus:       "To deliver",
			QCStatus:          "Pass",
		},
		{
			Line:          2,
			ArticleNumber: "ART-200",
			ArticleName:   "Pine chair",
			UnitPrice:     4,
			RequestedQty:  50,
			ConfirmedQty:  50,
			OrderStatus:   "To deliver",
		},
	}
	return o, items
}

func TestSaveOrderRecomputesTotals(t *testing.T) {
	db := testDB(t)
	o, items := sampleOrder()
	if err := db.SaveOrder(o, items); err != nil {
		t.Fatalf("save: %v", err)
	}

	got, err := db.GetOrderByNo("PO-2026-0042")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.TotalConfirmedQty != 190 {
		t.Errorf("total confirmed qty = %v, want 190", got.TotalConfirmedQty)
	}
	// 140*12.5 + 50*4 = 1950
	if got.TotalConfirmedAmount != 1950 {
		t.Errorf("total confirmed amount = %v, want 1950", got.TotalConfirmedAmount)
	}
	if got.TotalDeliveredQty != 40 {
		t.Errorf("total delivered qty = %v, want 40", got.TotalDeliveredQty)
	}

	stored, err := db.ListOrderItems(got.ID)
	if err != nil {
		t.Fatalf("list items: %v", err)
	}
	if len(stored) != 2 {
		t.Fatalf("got %d items, want 2", len(stored))
	}
	if stored[0].Amount != 1750 {
		t.Errorf("line 1 amount = %v, want 1750", stored[0].Amount)
	}
}

func TestSaveOrderUpsertReplacesItems(t *testing.T) {
	db := testDB(t)
	o, items := sampleOrder()
	if err := db.SaveOrder(o, items); err != nil {
		t.Fatalf("first save: %v", err)
	}

	o2, items2 := sampleOrder()
	o2.POStatus = "Completed"
	items2 = items2[:1]
	items2[0].ConfirmedQty = 150
	if err := db.SaveOrder(o2, items2); err != nil {
		t.Fatalf("second save: %v", err)
	}

	got, err := db.GetOrderByNo("PO-2026-0042")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.POStatus != "Completed" {
		t.Errorf("po_status = %q, want Completed", got.POStatus)
	}
	stored, err := db.ListOrderItems(got.ID)
	if err != nil {
		t.Fatalf("list items: %v", err)
	}
	if len(stored) != 1 {
		t.Fatalf("got %d items after replace, want 1", len(stored))
	}
	if stored[0].ConfirmedQty != 150 {
		t.Errorf("confirmed qty = %v, want 150", stored[0].ConfirmedQty)
	}
}

func TestLoadSnapshotMapsFieldsAndMarker(t *testing.T) {
	db := testDB(t)
	o, items := sampleOrder()
	items[1].ConfirmedShipDate = "not-a-date"
	if err := db.SaveOrder(o, items); err != nil {
		t.Fatalf("save: %v", err)
	}

	snap, marker, err := db.LoadSnapshot("PO-2026-0042")
	if err != nil {
		t.Fatalf("load snapshot: %v", err)
	}
	if marker.Valid {
		t.Error("marker valid before any export")
	}
	if snap.Supplier != "S-1001" || snap.Status != "To Receive and Bill" {
		t.Errorf("header mapping wrong: %+v", snap)
	}
	if len(snap.Lines) != 2 {
		t.Fatalf("got %d lines, want 2", len(snap.Lines))
	}
	want := time.Date(2026, 2, 12, 0, 0, 0, 0, time.UTC)
	if !snap.Lines[0].ConfirmedShipDate.Equal(want) {
		t.Errorf("line 1 ship date = %v, want %v", snap.Lines[0].ConfirmedShipDate, want)
	}
	if !snap.Lines[1].ConfirmedShipDate.IsZero() {
		t.Errorf("unparsable date should map to zero time, got %v", snap.Lines[1].ConfirmedShipDate)
	}
}

func TestSetExportMarkerRoundTrip(t *testing.T) {
	db := testDB(t)
	o, items := sampleOrder()
	if err := db.SaveOrder(o, items); err != nil {
		t.Fatalf("save: %v", err)
	}

	if err := db.SetExportMarker("PO-2026-0042", 20007, "abc123"); err != nil {
		t.Fatalf("set marker: %v", err)
	}
	_, marker, err := db.LoadSnapshot("PO-2026-0042")
	if err != nil {
		t.Fatalf("load snapshot: %v", err)
	}
	if !marker.Valid || marker.Seq != 20007 || marker.Fingerprint != "abc123" {
		t.Errorf("marker = %+v, want seq 20007 fingerprint abc123", marker)
	}

	if err := db.SetExportMarker("NO-SUCH-ORDER", 1, "x"); err == nil {
		t.Error("expected error for unknown order")
	}
}

func TestUpdateShipWeeks(t *testing.T) {
	db := testDB(t)
	o, items := sampleOrder()
	if err := db.SaveOrder(o, items); err != nil {
		t.Fatalf("save: %v", err)
	}

	weeks := []export.LineShipWeeks{
		{Line: 1, RequestedWeek: "2026-5", ConfirmedWeek: "2026-7"},
	}
	if err := db.UpdateShipWeeks("PO-2026-0042", weeks); err != nil {
		t.Fatalf("update ship weeks: %v", err)
	}

	got, _ := db.GetOrderByNo("PO-2026-0042")
	stored, err := db.ListOrderItems(got.ID)
	if err != nil {
		t.Fatalf("list items: %v", err)
	}
	if stored[0].ConfirmedShipWeek != "2026-7" {
		t.Errorf("confirmed ship week = %q, want 2026-7", stored[0].ConfirmedShipWeek)
	}
	if stored[1].ConfirmedShipWeek != "" {
		t.Errorf("untouched line picked up a week: %q", stored[1].ConfirmedShipWeek)
	}
}

func TestExportLog(t *testing.T) {
	db := testDB(t)
	attempts := []export.Attempt{
		{ID: "a1", OrderNo: "PO-1", Outcome: export.OutcomeExported, Step: export.StepDone, Seq: 20000, Hash: "h1"},
		{ID: "a2", OrderNo: "PO-1", Outcome: export.OutcomeSkipped, Step: export.StepDone, Detail: "flagged fields unchanged"},
		{ID: "a3", OrderNo: "PO-2", Outcome: export.OutcomeFailed, Step: export.StepWriting, Seq: 20001, Detail: "disk full"},
	}
	for _, a := range attempts {
		if err := db.RecordAttempt(a); err != nil {
			t.Fatalf("record %s: %v", a.ID, err)
		}
	}

	all, err := db.ListExportLog(10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("got %d entries, want 3", len(all))
	}
	if all[0].AttemptID != "a3" {
		t.Errorf("newest first: got %s, want a3", all[0].AttemptID)
	}

	forOrder, err := db.ListExportLogForOrder("PO-1", 10)
	if err != nil {
		t.Fatalf("list for order: %v", err)
	}
	if len(forOrder) != 2 {
		t.Fatalf("got %d entries for PO-1, want 2", len(forOrder))
	}
}

func TestOutboxLifecycle(t *testing.T) {
	db := testDB(t)
	if err := db.EnqueueExportNotice([]byte(`{"order_no":"PO-1"}`)); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if err := db.Enqueue("exports", []byte(`{"order_no":"PO-2"}`), kindExportNotice); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	pending, err := db.ListPendingOutbox(10)
	if err != nil {
		t.Fatalf("list pending: %v", err)
	}
	if len(pending) != 2 {
		t.Fatalf("got %d pending, want 2", len(pending))
	}
	if pending[0].Kind != kindExportNotice {
		t.Errorf("kind = %q", pending[0].Kind)
	}

	if err := db.IncrementOutboxRetries(pending[0].ID); err != nil {
		t.Fatalf("bump retries: %v", err)
	}
	if err := db.AckOutbox(pending[0].ID); err != nil {
		t.Fatalf("ack: %v", err)
	}

	pending, err = db.ListPendingOutbox(10)
	if err != nil {
		t.Fatalf("list pending: %v", err)
	}
	if len(pending) != 1 {
		t.Fatalf("got %d pending after ack, want 1", len(pending))
	}
}
