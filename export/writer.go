package export

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"pyralink/logging"
)

// ErrSequenceReuse means a freshly allocated sequence number already has a
// file on disk. Two writers handing out the same number breaks the
// partner's ordering contract; the process must halt and alert rather than
// overwrite.
var ErrSequenceReuse = errors.New("export: file already exists for freshly allocated sequence number")

// Naming builds partner file names: <prefix><sequence>.txt in a directory.
type Naming struct {
	Dir    string
	Prefix string
}

// FileName returns the bare file name for a sequence number.
func (n Naming) FileName(seq int64) string {
	return fmt.Sprintf("%s%d.txt", n.Prefix, seq)
}

// Path returns the full path for a sequence number.
func (n Naming) Path(seq int64) string {
	return filepath.Join(n.Dir, n.FileName(seq))
}

// SequenceSource hands out durable, strictly increasing export numbers.
type SequenceSource interface {
	Next(ctx context.Context) (int64, error)
}

// MarkerStore persists the idempotence marker back onto the order after a
// successful write. Implemented by the document store.
type MarkerStore interface {
	SetExportMarker(orderNo string, seq int64, fingerprint string) error
}

// Writer performs the exactly-once write of an encoded record: allocate a
// sequence number, write the transcoded file to every destination, then
// record the marker. A sequence number is consumed the moment it is
// allocated, even when the writes fail afterwards; ids are cheap, reuse is
// not.
type Writer struct {
	seq     SequenceSource
	markers MarkerStore
	codec   *Codec
	dirs    []string
	prefix  string
	log     logging.Logger
}

// NewWriter creates a writer targeting dirs, all of which must succeed for
// an export to count.
func NewWriter(seq SequenceSource, markers MarkerStore, codec *Codec, dirs []string, prefix string, log logging.Logger) *Writer {
	return &Writer{seq: seq, markers: markers, codec: codec, dirs: dirs, prefix: prefix, log: log}
}

// Write exports rec under the next sequence number and returns it. The
// fingerprint is stored with the marker for the detector's fast path. On
// error the returned sequence is 0 if allocation never happened, non-zero
// if the number was consumed; the caller must surface the error and must
// not retry by calling Write again for the same logical change without a
// new trigger.
func (w *Writer) Write(ctx context.Context, rec Record, fingerprint string) (int64, error) {
	payload, err := w.codec.Encode(rec.Text)
	if err != nil {
		return 0, err
	}

	seq, err := w.seq.Next(ctx)
	if err != nil {
		return 0, fmt.Errorf("allocate sequence: %w", err)
	}

	// The sequence number is burned from here on, whatever happens below.
	name := fmt.Sprintf("%s%d.txt", w.prefix, seq)
	for _, dir := range w.dirs {
		path := filepath.Join(dir, name)
		if _, statErr := os.Stat(path); statErr == nil {
			return seq, fmt.Errorf("%w: %s", ErrSequenceReuse, path)
		}
		if err := writeFileAtomic(path, payload); err != nil {
			return seq, fmt.Errorf("write %s: %w", path, err)
		}
	}

	// A cancelled attempt must not record the marker; the next trigger
	// re-detects and re-exports cleanly.
	if err := ctx.Err(); err != nil {
		return seq, err
	}
	if err := w.markers.SetExportMarker(rec.OrderNo, seq, fingerprint); err != nil {
		return seq, fmt.Errorf("record export marker: %w", err)
	}
	return seq, nil
}

// writeFileAtomic writes via a temp file and rename so partial content is
// never visible under the partner-facing name.
func writeFileAtomic(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return err
	}
	return nil
}
