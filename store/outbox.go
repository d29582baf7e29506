package store

// OutboxMessage is a queued outbound publication. Messages survive broker
// outages here and are drained in insertion order.
type OutboxMessage struct {
	ID      int64  `json:"id"`
	Topic   string `json:"topic"`
	Payload []byte `json:"payload"`
	Kind    string `json:"kind"`
	Retries int    `json:"retries"`
}

const kindExportNotice = "export_notice"

// EnqueueExportNotice queues an export notice for the drainer. The concrete
// topic is resolved at publish time from messaging config.
func (db *DB) EnqueueExportNotice(payload []byte) error {
	return db.Enqueue("exports", payload, kindExportNotice)
}

// Enqueue stores one outbound message.
func (db *DB) Enqueue(topic string, payload []byte, kind string) error {
	_, err := db.Exec(`INSERT INTO outbox (topic, payload, kind) VALUES (?, ?, ?)`,
		topic, payload, kind)
	return err
}

// ListPendingOutbox returns unsent messages, oldest first.
func (db *DB) ListPendingOutbox(limit int) ([]OutboxMessage, error) {
	rows, err := db.Query(`SELECT id, topic, payload, kind, retries
		FROM outbox WHERE sent_at IS NULL ORDER BY id LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var msgs []OutboxMessage
	for rows.Next() {
		var m OutboxMessage
		if err := rows.Scan(&m.ID, &m.Topic, &m.Payload, &m.Kind, &m.Retries); err != nil {
			return nil, err
		}
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}

// AckOutbox marks a message as sent.
func (db *DB) AckOutbox(id int64) error {
	_, err := db.Exec(`UPDATE outbox SET sent_at = datetime('now','localtime') WHERE id = ?`, id)
	return err
}

// IncrementOutboxRetries bumps the retry counter after a failed publish.
func (db *DB) IncrementOutboxRetries(id int64) error {
	_, err := db.Exec(`UPDATE outbox SET retries = retries + 1 WHERE id = ?`, id)
	return err
}
