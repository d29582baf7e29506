package export

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"pyralink/logging"
	"pyralink/weektag"
)

// Steps of one export attempt. An attempt only ever moves forward; a failed
// attempt is finished and needs a fresh trigger, which the change detector
// will let through because the marker was never updated.
type Step string

const (
	StepDetecting  Step = "detecting"
	StepEncoding   Step = "encoding"
	StepAllocating Step = "allocating"
	StepWriting    Step = "writing"
	StepDone       Step = "done"
)

// Attempt outcomes.
const (
	OutcomeExported = "exported"
	OutcomeSkipped  = "skipped"
	OutcomeFailed   = "failed"
)

// Attempt is the audit record of one pass through the pipeline.
type Attempt struct {
	ID        string    `json:"id"`
	OrderNo   string    `json:"order_no"`
	Trigger   string    `json:"trigger"`
	Step      Step      `json:"step"`
	Outcome   string    `json:"outcome"`
	Seq       int64     `json:"seq,omitempty"`
	Hash      string    `json:"hash,omitempty"`
	Detail    string    `json:"detail,omitempty"`
	StartedAt time.Time `json:"started_at"`
}

// Notice is the JSON published to downstream consumers after an attempt
// that exported or failed.
type Notice struct {
	AttemptID string `json:"attempt_id"`
	OrderNo   string `json:"order_no"`
	Outcome   string `json:"outcome"`
	Seq       int64  `json:"seq,omitempty"`
	File      string `json:"file,omitempty"`
	Hash      string `json:"hash,omitempty"`
	Detail    string `json:"detail,omitempty"`
	Timestamp string `json:"timestamp"`
}

// LineShipWeeks carries the derived display weeks written back onto a line
// after export.
type LineShipWeeks struct {
	Line          int
	RequestedWeek string
	ConfirmedWeek string
}

// SnapshotStore is the document-store surface the orchestrator needs: a
// consistent read of one order and small write-backs that never emit
// order-changed events (that property is what keeps the pipeline free of
// re-entrant triggers).
type SnapshotStore interface {
	LoadSnapshot(orderNo string) (Snapshot, Marker, error)
	UpdateShipWeeks(orderNo string, weeks []LineShipWeeks) error
}

// AuditLog records finished attempts durably for operator reconciliation.
type AuditLog interface {
	RecordAttempt(a Attempt) error
}

// NoticeQueue accepts outbound export notices (an outbox, drained by the
// messaging layer).
type NoticeQueue interface {
	EnqueueExportNotice(payload []byte) error
}

// OrchestratorDeps wires an Orchestrator.
type OrchestratorDeps struct {
	Store    SnapshotStore
	Encoder  *Encoder
	Detector *Detector
	Writer   *Writer
	Naming   Naming
	Audit    AuditLog
	Notices  NoticeQueue
	Log      logging.Logger
}

// Orchestrator runs one export attempt per order-changed trigger. Attempts
// for the same order are serialized by a per-order lock; attempts for
// different orders run independently.
type Orchestrator struct {
	store    SnapshotStore
	enc      *Encoder
	det      *Detector
	wr       *Writer
	naming   Naming
	audit    AuditLog
	notices  NoticeQueue
	log      logging.Logger
	mu       sync.Mutex
	inflight map[string]*orderLock
}

type orderLock struct {
	mu   sync.Mutex
	refs int
}

// NewOrchestrator creates an orchestrator from its dependencies.
func NewOrchestrator(deps OrchestratorDeps) *Orchestrator {
	return &Orchestrator{
		store:    deps.Store,
		enc:      deps.Encoder,
		det:      deps.Detector,
		wr:       deps.Writer,
		naming:   deps.Naming,
		audit:    deps.Audit,
		notices:  deps.Notices,
		log:      deps.Log,
		inflight: make(map[string]*orderLock),
	}
}

// Run executes one export attempt for orderNo. trigger names the event
// source for the audit trail ("order-changed", "manual", ...). The returned
// Attempt is always non-nil; err is non-nil only for failed attempts.
func (o *Orchestrator) Run(ctx context.Context, orderNo, trigger string) (*Attempt, error) {
	release := o.lockOrder(orderNo)
	defer release()

	a := &Attempt{
		ID:        uuid.NewString(),
		OrderNo:   orderNo,
		Trigger:   trigger,
		Step:      StepDetecting,
		StartedAt: time.Now().UTC(),
	}

	snap, marker, err := o.store.LoadSnapshot(orderNo)
	if err != nil {
		return o.fail(a, fmt.Errorf("load snapshot: %w", err))
	}

	rec := o.enc.Encode(snap)
	a.Hash = rec.Hash()

	export, reason, err := o.det.ShouldExport(snap, marker, rec)
	if err != nil {
		return o.fail(a, fmt.Errorf("change detection: %w", err))
	}
	if !export {
		a.Step = StepDone
		a.Outcome = OutcomeSkipped
		a.Detail = reason
		a.Seq = marker.Seq
		o.log.Infof("order %s: export skipped (%s), last seq %d, hash %s", orderNo, reason, marker.Seq, a.Hash)
		o.recordAudit(a)
		return a, nil
	}

	a.Step = StepEncoding
	weeks := make([]LineShipWeeks, 0, len(snap.Lines))
	for _, it := range snap.Lines {
		weeks = append(weeks, LineShipWeeks{
			Line:          it.Line,
			RequestedWeek: weektag.DisplayWeek(it.RequestedShipDate),
			ConfirmedWeek: weektag.DisplayWeek(it.ConfirmedShipDate),
		})
	}
	if err := o.store.UpdateShipWeeks(orderNo, weeks); err != nil {
		o.log.Warnf("order %s: ship week write-back failed: %v", orderNo, err)
	}

	a.Step = StepAllocating
	seq, err := o.wr.Write(ctx, rec, Fingerprint(snap))
	if err != nil {
		a.Seq = seq
		if seq != 0 {
			a.Step = StepWriting
		}
		if errors.Is(err, ErrSequenceReuse) {
			o.log.Errorf("order %s: sequence invariant violated: %v; halting this order until an operator reconciles", orderNo, err)
		}
		return o.fail(a, err)
	}

	a.Step = StepDone
	a.Outcome = OutcomeExported
	a.Seq = seq
	a.Detail = reason
	o.log.Infof("order %s: exported seq %d file %s hash %s", orderNo, seq, o.naming.FileName(seq), a.Hash)
	o.recordAudit(a)
	o.publishNotice(a)
	return a, nil
}

func (o *Orchestrator) fail(a *Attempt, err error) (*Attempt, error) {
	a.Outcome = OutcomeFailed
	a.Detail = err.Error()
	o.log.Errorf("order %s: export failed at step %s: %v", a.OrderNo, a.Step, err)
	o.recordAudit(a)
	o.publishNotice(a)
	return a, err
}

func (o *Orchestrator) recordAudit(a *Attempt) {
	if o.audit == nil {
		return
	}
	if err := o.audit.RecordAttempt(*a); err != nil {
		o.log.Warnf("order %s: audit record failed: %v", a.OrderNo, err)
	}
}

func (o *Orchestrator) publishNotice(a *Attempt) {
	if o.notices == nil {
		return
	}
	n := Notice{
		AttemptID: a.ID,
		OrderNo:   a.OrderNo,
		Outcome:   a.Outcome,
		Seq:       a.Seq,
		Hash:      a.Hash,
		Detail:    a.Detail,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
	if a.Outcome == OutcomeExported {
		n.File = o.naming.FileName(a.Seq)
	}
	payload, err := json.Marshal(n)
	if err != nil {
		o.log.Warnf("order %s: marshal export notice: %v", a.OrderNo, err)
		return
	}
	if err := o.notices.EnqueueExportNotice(payload); err != nil {
		o.log.Warnf("order %s: enqueue export notice: %v", a.OrderNo, err)
	}
}

// lockOrder serializes attempts per order identity. The returned func
// releases the lock and drops the entry once no attempt is waiting on it.
func (o *Orchestrator) lockOrder(orderNo string) func() {
	o.mu.Lock()
	l, ok := o.inflight[orderNo]
	if !ok {
		l = &orderLock{}
		o.inflight[orderNo] = l
	}
	l.refs++
	o.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		o.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(o.inflight, orderNo)
		}
		o.mu.Unlock()
	}
}
