// Package serializer defines the pluggable value codec the facade uses
// to turn opaque Go values into the bytes the journal stores, and the
// default gob-based implementation (spec §6).
package serializer

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"reflect"

	"github.com/golang/snappy"
)

// Serializer is the contract spec §6 requires from a value codec:
// Encode turns a value into bytes for the journal, Decode reverses it,
// and KeyFor reduces an arbitrary user key into the canonical non-empty
// byte string the index is keyed on.
type Serializer interface {
	Encode(value any) ([]byte, error)
	Decode(data []byte, out any) error
	KeyFor(key any) ([]byte, error)

	// Name is the format name recorded in the journal header (spec
	// §4.2) and checked on reopen, so a database opened with a
	// mismatched codec fails fast instead of misreading bytes.
	Name() string
}

// ErrKeyType is returned by KeyFor when a key cannot be reduced to a
// non-empty string (spec §7 *KeyType*).
type ErrKeyType struct {
	Key any
}

func (e *ErrKeyType) Error() string {
	return fmt.Sprintf("serializer: cannot derive a key from %#v", e.Key)
}

// Gob is the default Serializer: it encodes values with encoding/gob,
// the same host-portable structural encoding the teacher repo already
// uses for its own on-disk structures (cache.go's gob.NewEncoder and
// internal/snapshot/snapshot.go's enc.Encode). KeyFor stringifies the
// key via fmt.Sprint, matching spec §6 "typically stringification."
//
// When Compress is set, value bytes are snappy-compressed before
// they're handed to the record codec and decompressed on the way back
// out; the wire format in spec §4.1 is unaffected since this happens
// entirely inside Encode/Decode.
type Gob struct {
	Compress bool
}

// Name is the format name recorded in the journal header (spec §4.2)
// and checked on reopen.
func (g Gob) Name() string {
	if g.Compress {
		return "gob+snappy"
	}
	return "gob"
}

// boxed carries a value through gob as a struct field typed any, rather
// than as the top-level encoded value. gob encodes a top-level any
// argument under its concrete dynamic type (e.g. string), and a stream
// encoded that way can only ever be decoded back into a matching
// concrete pointer — never into *any, which gob only accepts when the
// *remote* side also encoded through an interface-typed field. Routing
// both Encode and Decode through boxed.V (an any field) gives every
// value that round trip, at the cost of requiring gob.Register for each
// concrete type a caller hands to Encode.
type boxed struct {
	V any
}

func (g Gob) Encode(value any) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(boxed{V: value}); err != nil {
		return nil, fmt.Errorf("serializer: gob encode: %w", err)
	}
	data := buf.Bytes()
	if g.Compress {
		data = snappy.Encode(nil, data)
	}
	return data, nil
}

func (g Gob) Decode(data []byte, out any) error {
	if g.Compress {
		decoded, err := snappy.Decode(nil, data)
		if err != nil {
			return fmt.Errorf("serializer: snappy decode: %w", err)
		}
		data = decoded
	}
	var b boxed
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&b); err != nil {
		return fmt.Errorf("serializer: gob decode: %w", err)
	}
	return assignDecoded(out, b.V)
}

// assignDecoded stores v into *out, the way gob.Decode would if it could
// decode directly into out's type. out must be a non-nil pointer; if
// its element is itself an interface (the facade's *any call sites), v
// is stored as-is, otherwise v must be assignable to the element's
// concrete type (the serializer package's own tests, which decode into
// *string/*[]byte).
func assignDecoded(out any, v any) error {
	rv := reflect.ValueOf(out)
	if rv.Kind() != reflect.Ptr || rv.IsNil() {
		return fmt.Errorf("serializer: decode target must be a non-nil pointer")
	}
	elem := rv.Elem()
	if !elem.CanSet() {
		return fmt.Errorf("serializer: decode target is not settable")
	}
	if v == nil {
		elem.Set(reflect.Zero(elem.Type()))
		return nil
	}
	vv := reflect.ValueOf(v)
	if elem.Kind() == reflect.Interface {
		elem.Set(vv)
		return nil
	}
	if !vv.Type().AssignableTo(elem.Type()) {
		return fmt.Errorf("serializer: cannot assign decoded %T into %s", v, elem.Type())
	}
	elem.Set(vv)
	return nil
}

func (g Gob) KeyFor(key any) ([]byte, error) {
	s := fmt.Sprint(key)
	if s == "" {
		return nil, &ErrKeyType{Key: key}
	}
	return []byte(s), nil
}
