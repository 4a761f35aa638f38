package netmd

import (
	"fmt"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
)

// Charsets usable for titles. Units store 8-bit half-width titles.
var Charsets = map[string]*charmap.Charmap{
	"latin1": charmap.ISO8859_1,
	"cp1252": charmap.Windows1252,
	"cp850":  charmap.CodePage850,
}

// SetTitleCharset selects the encoding used for titles, by name.
func (d *Device) SetTitleCharset(name string) error {
	cm, ok := Charsets[strings.ToLower(name)]
	if !ok {
		return fmt.Errorf("unknown charset %q", name)
	}
	d.charset = cm
	return nil
}

func (d *Device) encodeTitle(s string) []byte {
	b, err := encoding.ReplaceUnsupported(d.charset.NewEncoder()).Bytes([]byte(s))
	if err != nil {
		return []byte(s)
	}
	return b
}

func (d *Device) decodeTitle(b []byte) string {
	s, err := d.charset.NewDecoder().Bytes(b)
	if err != nil {
		return string(b)
	}
	return string(s)
}
