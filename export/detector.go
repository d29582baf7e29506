package export

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"

	"pyralink/logging"
)

// Fingerprint hashes the whitelisted fields whose changes are relevant to
// the partner: order status on the header; article number, line, article
// name, unit price, confirmed/requested quantity and confirmed ship date
// per line. Line count and order are part of the hash.
func Fingerprint(s Snapshot) string {
	h := sha256.New()
	io.WriteString(h, s.Status)
	for _, it := range s.Lines {
		fmt.Fprintf(h, "|%s;%d;%s;%s;%s;%s;%s",
			it.ArticleNumber,
			it.Line,
			it.ArticleName,
			formatQty(it.UnitPrice),
			formatQty(it.ConfirmedQty),
			formatQty(it.RequestedQty),
			isoDate(it.ConfirmedShipDate),
		)
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Detector decides whether an order needs exporting. The fingerprint
// comparison is a cheap fast path: when none of the flagged fields moved,
// skipping is correct outright. Otherwise the candidate record is compared
// byte-for-byte against the file the idempotence marker points at, which
// stays authoritative even across encoder rule changes.
type Detector struct {
	codec  *Codec
	naming Naming
	log    logging.Logger
}

// NewDetector creates a detector reading previous exports from the primary
// output destination.
func NewDetector(codec *Codec, naming Naming, log logging.Logger) *Detector {
	return &Detector{codec: codec, naming: naming, log: log}
}

// ShouldExport reports whether rec must be written, with a human-readable
// reason for the audit trail. Errors are transient I/O problems; the caller
// may retry the whole attempt.
func (d *Detector) ShouldExport(snap Snapshot, marker Marker, rec Record) (bool, string, error) {
	if !marker.Valid {
		return true, "no previous export", nil
	}

	if marker.Fingerprint != "" && Fingerprint(snap) == marker.Fingerprint {
		return false, "flagged fields unchanged", nil
	}

	path := d.naming.Path(marker.Seq)
	prev, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			d.log.Warnf("order %s: marker points at %s but the file is gone, re-exporting", snap.OrderNo, path)
			return true, "previous export file missing", nil
		}
		return false, "", fmt.Errorf("read previous export %s: %w", path, err)
	}

	cur, err := d.codec.Encode(rec.Text)
	if err != nil {
		return false, "", err
	}
	if bytes.Equal(prev, cur) {
		return false, "content identical to previous export", nil
	}
	return true, "content changed", nil
}
