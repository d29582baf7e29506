package export

import (
	"fmt"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
)

// Codec transcodes record text into the partner's code page. The charset is
// always explicit configuration; historical installations disagreed about
// it, so nothing here ever consults the environment.
type Codec struct {
	name string
	enc  encoding.Encoding
}

// NewCodec resolves a configured charset name. Supported names cover the
// code pages seen in partner installations; windows-1252 is the documented
// default.
func NewCodec(name string) (*Codec, error) {
	var enc encoding.Encoding
	switch strings.ToLower(name) {
	case "windows-1252", "cp1252":
		enc = charmap.Windows1252
	case "iso-8859-1", "latin-1":
		enc = charmap.ISO8859_1
	case "cp850", "ibm850":
		enc = charmap.CodePage850
	case "utf-8":
		enc = unicode.UTF8
	default:
		return nil, fmt.Errorf("unsupported export charset %q", name)
	}
	return &Codec{name: name, enc: enc}, nil
}

// Name returns the configured charset name.
func (c *Codec) Name() string { return c.name }

// Encode converts UTF-8 record text to the partner code page. Runes the
// code page cannot represent are substituted rather than failing the whole
// export; a record with a substitution still round-trips byte-identically,
// so idempotence comparison is unaffected.
func (c *Codec) Encode(text string) ([]byte, error) {
	out, err := encoding.ReplaceUnsupported(c.enc.NewEncoder()).Bytes([]byte(text))
	if err != nil {
		return nil, fmt.Errorf("transcode to %s: %w", c.name, err)
	}
	return out, nil
}
