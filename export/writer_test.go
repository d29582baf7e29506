package export

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pyralink/logging"
)

type fakeSeq struct {
	next int64
}

func (f *fakeSeq) Next(ctx context.Context) (int64, error) {
	n := f.next
	f.next++
	return n, nil
}

type fakeMarkers struct {
	orderNo     string
	seq         int64
	fingerprint string
	calls       int
	err         error
}

func (f *fakeMarkers) SetExportMarker(orderNo string, seq int64, fingerprint string) error {
	f.calls++
	if f.err != nil {
		return f.err
	}
	f.orderNo, f.seq, f.fingerprint = orderNo, seq, fingerprint
	return nil
}

func TestWriteAllDestinationsAndMarker(t *testing.T) {
	dir1, dir2 := t.TempDir(), t.TempDir()
	markers := &fakeMarkers{}
	w := NewWriter(&fakeSeq{next: 20000}, markers, testCodec(t), []string{dir1, dir2}, "B", logging.Nop())

	rec := Record{OrderNo: "PO-1", Text: "01\n#12205;Åbo Möbler"}
	seq, err := w.Write(context.Background(), rec, "fp-1")
	require.NoError(t, err)
	assert.Equal(t, int64(20000), seq)

	for _, dir := range []string{dir1, dir2} {
		data, err := os.ReadFile(filepath.Join(dir, "B20000.txt"))
		require.NoError(t, err)
		// Transcoded to cp1252: Å is a single 0xC5 byte, ö is 0xF6.
		assert.Equal(t, []byte("01\n#12205;\xc5bo M\xf6bler"), data)
	}

	assert.Equal(t, 1, markers.calls)
	assert.Equal(t, "PO-1", markers.orderNo)
	assert.Equal(t, int64(20000), markers.seq)
	assert.Equal(t, "fp-1", markers.fingerprint)
}

func TestWriteSequenceReuseRefusesOverwrite(t *testing.T) {
	dir := t.TempDir()
	existing := filepath.Join(dir, "B20000.txt")
	require.NoError(t, os.WriteFile(existing, []byte("old"), 0o644))

	markers := &fakeMarkers{}
	w := NewWriter(&fakeSeq{next: 20000}, markers, testCodec(t), []string{dir}, "B", logging.Nop())

	seq, err := w.Write(context.Background(), Record{OrderNo: "PO-1", Text: "x"}, "fp")
	assert.ErrorIs(t, err, ErrSequenceReuse)
	assert.Equal(t, int64(20000), seq, "a burned number must be reported")
	assert.Equal(t, 0, markers.calls)

	data, _ := os.ReadFile(existing)
	assert.Equal(t, []byte("old"), data, "existing export must not be touched")
}

func TestWriteCancelledContextSkipsMarker(t *testing.T) {
	dir := t.TempDir()
	markers := &fakeMarkers{}
	w := NewWriter(&fakeSeq{next: 20000}, markers, testCodec(t), []string{dir}, "B", logging.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	seq, err := w.Write(ctx, Record{OrderNo: "PO-1", Text: "x"}, "fp")
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, int64(20000), seq)
	assert.Equal(t, 0, markers.calls, "cancelled attempt must not record the marker")
}

func TestWriteMarkerFailureStillReportsSeq(t *testing.T) {
	dir := t.TempDir()
	markers := &fakeMarkers{err: errors.New("db locked")}
	w := NewWriter(&fakeSeq{next: 20005}, markers, testCodec(t), []string{dir}, "B", logging.Nop())

	seq, err := w.Write(context.Background(), Record{OrderNo: "PO-1", Text: "x"}, "fp")
	require.Error(t, err)
	assert.Equal(t, int64(20005), seq)

	// The file made it out even though the marker did not; the next trigger
	// finds identical content and skips instead of burning another number.
	_, statErr := os.Stat(filepath.Join(dir, "B20005.txt"))
	assert.NoError(t, statErr)
}

func TestNamingPaths(t *testing.T) {
	n := Naming{Dir: "/srv/export", Prefix: "B"}
	assert.Equal(t, "B20000.txt", n.FileName(20000))
	assert.Equal(t, filepath.Join("/srv/export", "B20000.txt"), n.Path(20000))
}

func TestCodecUnsupportedCharset(t *testing.T) {
	_, err := NewCodec("ebcdic")
	assert.Error(t, err)
}

func TestCodecReplacesUnsupportedRunes(t *testing.T) {
	c := testCodec(t)
	out, err := c.Encode("price 10€ 世")
	require.NoError(t, err)
	// € exists in cp1252 (0x80); the CJK rune does not and is substituted.
	assert.Contains(t, string(out), "\x80")
	assert.NotContains(t, string(out), "世")
}
