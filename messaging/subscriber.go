package messaging

import (
	"context"
	"encoding/json"
	"time"

	"pyralink/config"
	"pyralink/export"
	"pyralink/logging"
)

// OrderChangedEvent is the inbound trigger: the system of record announces
// that a purchase order was saved. The event carries identity only; the
// pipeline re-reads the order itself so stale payloads cannot leak into
// exports.
type OrderChangedEvent struct {
	OrderNo string `json:"order_no"`
	Source  string `json:"source,omitempty"`
	TS      string `json:"ts,omitempty"`
}

// ExportRunner is what the subscriber drives; satisfied by
// export.Orchestrator.
type ExportRunner interface {
	Run(ctx context.Context, orderNo, trigger string) (*export.Attempt, error)
}

// Subscriber listens for order-changed events and triggers export attempts.
type Subscriber struct {
	client  *Client
	cfg     *config.Config
	runner  ExportRunner
	log     logging.Logger
	timeout time.Duration
}

// NewSubscriber creates the inbound event subscriber.
func NewSubscriber(client *Client, cfg *config.Config, runner ExportRunner, log logging.Logger) *Subscriber {
	return &Subscriber{
		client:  client,
		cfg:     cfg,
		runner:  runner,
		log:     log,
		timeout: 30 * time.Second,
	}
}

// Start subscribes to the order events topic and begins processing.
func (s *Subscriber) Start() error {
	return s.client.Subscribe(s.cfg.Messaging.OrderEventsTopic, s.handleMessage)
}

func (s *Subscriber) handleMessage(payload []byte) {
	var ev OrderChangedEvent
	if err := json.Unmarshal(payload, &ev); err != nil {
		s.log.Warnf("unmarshal order event: %v", err)
		return
	}
	if ev.OrderNo == "" {
		s.log.Warnf("order event without order_no, dropping: %s", payload)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	// Run decides skip/export itself; a failed attempt is already audited
	// and published, so this only logs.
	if _, err := s.runner.Run(ctx, ev.OrderNo, "order-changed"); err != nil {
		s.log.Errorf("export attempt for %s: %v", ev.OrderNo, err)
	}
}
