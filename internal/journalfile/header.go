// Package journalfile owns the on-disk journal file: its header, the
// advisory lock discipline that serializes access to it, the background
// writer that appends to it, and the incremental reader that replays new
// records from it.
package journalfile

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// Magic identifies a daybreak journal file.
const Magic = "DAYBREAK"

// FormatVersion is the only header version this package writes or
// accepts.
const FormatVersion uint16 = 1

// Header errors.
var (
	ErrWrongMagic   = errors.New("journalfile: wrong magic")
	ErrWrongVersion = errors.New("journalfile: wrong version")
	ErrWrongFormat  = errors.New("journalfile: wrong format")
)

// Header is the fixed preamble every journal file begins with.
type Header struct {
	Version    uint16
	FormatName string
}

// Bytes produces the byte string to write when initializing an empty
// file.
func (h Header) Bytes() []byte {
	buf := make([]byte, 0, len(Magic)+2+2+len(h.FormatName))
	buf = append(buf, Magic...)
	var v [2]byte
	binary.BigEndian.PutUint16(v[:], h.Version)
	buf = append(buf, v[:]...)
	var l [2]byte
	binary.BigEndian.PutUint16(l[:], uint16(len(h.FormatName)))
	buf = append(buf, l[:]...)
	buf = append(buf, h.FormatName...)
	return buf
}

// Len returns the byte length Bytes() would produce.
func (h Header) Len() int {
	return len(Magic) + 2 + 2 + len(h.FormatName)
}

// ReadHeader reads and validates a header from r, checking that its
// format name matches wantFormat.
func ReadHeader(r io.Reader, wantFormat string) (Header, error) {
	magic := make([]byte, len(Magic))
	if _, err := io.ReadFull(r, magic); err != nil {
		return Header{}, fmt.Errorf("journalfile: reading magic: %w", err)
	}
	if string(magic) != Magic {
		return Header{}, ErrWrongMagic
	}

	var v [2]byte
	if _, err := io.ReadFull(r, v[:]); err != nil {
		return Header{}, fmt.Errorf("journalfile: reading version: %w", err)
	}
	version := binary.BigEndian.Uint16(v[:])
	if version != FormatVersion {
		return Header{}, ErrWrongVersion
	}

	var l [2]byte
	if _, err := io.ReadFull(r, l[:]); err != nil {
		return Header{}, fmt.Errorf("journalfile: reading format length: %w", err)
	}
	nameLen := binary.BigEndian.Uint16(l[:])

	name := make([]byte, nameLen)
	if nameLen > 0 {
		if _, err := io.ReadFull(r, name); err != nil {
			return Header{}, fmt.Errorf("journalfile: reading format name: %w", err)
		}
	}
	if string(name) != wantFormat {
		return Header{}, ErrWrongFormat
	}

	return Header{Version: version, FormatName: string(name)}, nil
}

// NewHeader builds the header this package writes for a freshly created
// file using the given codec/format name.
func NewHeader(formatName string) Header {
	return Header{Version: FormatVersion, FormatName: formatName}
}
