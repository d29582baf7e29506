package store

const schema = `
CREATE TABLE IF NOT EXISTS orders (
    id                     INTEGER PRIMARY KEY AUTOINCREMENT,
    order_no               TEXT NOT NULL UNIQUE,
    supplier               TEXT NOT NULL DEFAULT '',
    po_status              TEXT NOT NULL DEFAULT '',
    workflow_state         TEXT NOT NULL DEFAULT '',
    currency               TEXT NOT NULL DEFAULT '',
    total_confirmed_qty    REAL NOT NULL DEFAULT 0,
    total_confirmed_amount REAL NOT NULL DEFAULT 0,
    total_delivered_qty    REAL NOT NULL DEFAULT 0,
    total_delivered_amount REAL NOT NULL DEFAULT 0,
    last_export_seq        INTEGER,
    export_fingerprint     TEXT NOT NULL DEFAULT '',
    last_export_at         TEXT,
    created_at             TEXT NOT NULL DEFAULT (datetime('now','localtime')),
    updated_at             TEXT NOT NULL DEFAULT (datetime('now','localtime'))
);
CREATE INDEX IF NOT EXISTS idx_orders_order_no ON orders(order_no);

CREATE TABLE IF NOT EXISTS order_items (
    id                  INTEGER PRIMARY KEY AUTOINCREMENT,
    order_id            INTEGER NOT NULL REFERENCES orders(id) ON DELETE CASCADE,
    line                INTEGER NOT NULL,
    article_number      TEXT NOT NULL DEFAULT '',
    article_name        TEXT NOT NULL DEFAULT '',
    unit_price          REAL NOT NULL DEFAULT 0,
    requested_qty       REAL NOT NULL DEFAULT 0,
    confirmed_qty       REAL NOT NULL DEFAULT 0,
    delivered_qty       REAL NOT NULL DEFAULT 0,
    amount              REAL NOT NULL DEFAULT 0,
    requested_shipdate  TEXT NOT NULL DEFAULT '',
    confirmed_shipdate  TEXT NOT NULL DEFAULT '',
    requested_ship_week TEXT NOT NULL DEFAULT '',
    confirmed_ship_week TEXT NOT NULL DEFAULT '',
    order_status        TEXT NOT NULL DEFAULT '',
    qc_status           TEXT NOT NULL DEFAULT '',
    container_ref       TEXT NOT NULL DEFAULT '',
    UNIQUE(order_id, line)
);

CREATE TABLE IF NOT EXISTS export_log (
    id         INTEGER PRIMARY KEY AUTOINCREMENT,
    attempt_id TEXT NOT NULL,
    order_no   TEXT NOT NULL,
    outcome    TEXT NOT NULL,
    step       TEXT NOT NULL,
    seq        INTEGER NOT NULL DEFAULT 0,
    hash       TEXT NOT NULL DEFAULT '',
    detail     TEXT NOT NULL DEFAULT '',
    created_at TEXT NOT NULL DEFAULT (datetime('now','localtime'))
);
CREATE INDEX IF NOT EXISTS idx_export_log_order ON export_log(order_no);

CREATE TABLE IF NOT EXISTS outbox (
    id         INTEGER PRIMARY KEY AUTOINCREMENT,
    topic      TEXT NOT NULL,
    payload    BLOB NOT NULL,
    kind       TEXT NOT NULL DEFAULT '',
    retries    INTEGER NOT NULL DEFAULT 0,
    created_at TEXT NOT NULL DEFAULT (datetime('now','localtime')),
    sent_at    TEXT
);
CREATE INDEX IF NOT EXISTS idx_outbox_pending ON outbox(sent_at) WHERE sent_at IS NULL;
`
