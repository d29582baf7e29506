package messaging

import (
	"sync"
	"time"

	"pyralink/config"
	"pyralink/logging"
	"pyralink/store"
)

// OutboxDrainer periodically publishes pending export notices from the
// store-backed outbox. Notices queue up during broker outages and drain in
// order once the connection returns.
type OutboxDrainer struct {
	db       *store.DB
	client   *Client
	cfg      *config.MessagingConfig
	log      logging.Logger
	stopChan chan struct{}
	wg       sync.WaitGroup
}

// NewOutboxDrainer creates a new outbox drainer.
func NewOutboxDrainer(db *store.DB, client *Client, cfg *config.MessagingConfig, log logging.Logger) *OutboxDrainer {
	return &OutboxDrainer{
		db:       db,
		client:   client,
		cfg:      cfg,
		log:      log,
		stopChan: make(chan struct{}),
	}
}

// Start begins the outbox drain loop.
func (d *OutboxDrainer) Start() {
	d.wg.Add(1)
	go d.drainLoop()
}

// Stop stops the outbox drain loop.
func (d *OutboxDrainer) Stop() {
	select {
	case <-d.stopChan:
	default:
		close(d.stopChan)
	}
	d.wg.Wait()
}

func (d *OutboxDrainer) drainLoop() {
	defer d.wg.Done()

	interval := d.cfg.OutboxDrainInterval
	if interval <= 0 {
		interval = 5 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-d.stopChan:
			return
		case <-ticker.C:
			d.drain()
		}
	}
}

func (d *OutboxDrainer) drain() {
	if !d.client.IsConnected() {
		return
	}

	msgs, err := d.db.ListPendingOutbox(50)
	if err != nil {
		d.log.Errorf("list pending outbox: %v", err)
		return
	}

	for _, msg := range msgs {
		if err := d.client.Publish(d.cfg.ExportNoticesTopic, msg.Payload); err != nil {
			d.log.Warnf("publish outbox msg %d: %v", msg.ID, err)
			d.db.IncrementOutboxRetries(msg.ID)
			continue
		}
		if err := d.db.AckOutbox(msg.ID); err != nil {
			d.log.Errorf("ack outbox msg %d: %v", msg.ID, err)
		}
	}
}
