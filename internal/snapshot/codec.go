package snapshot

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/vmihailenco/msgpack/v5"
)

// ErrSchema reports an encoded snapshot written with another SchemaVersion.
var ErrSchema = errors.New("snapshot: schema version mismatch")

// Encode writes f as msgpack.
func Encode(w io.Writer, f *Function) error {
	enc := msgpack.NewEncoder(w)
	enc.UseCompactInts(true)
	return enc.Encode(f)
}

// Decode reads a Function written by Encode.
func Decode(r io.Reader) (*Function, error) {
	var f Function
	if err := msgpack.NewDecoder(r).Decode(&f); err != nil {
		return nil, fmt.Errorf("snapshot: decode: %w", err)
	}
	if f.Schema != SchemaVersion {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrSchema, f.Schema, SchemaVersion)
	}
	return &f, nil
}

// Marshal is Encode into a fresh byte slice.
func Marshal(f *Function) ([]byte, error) {
	var buf bytes.Buffer
	if err := Encode(&buf, f); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func Unmarshal(data []byte) (*Function, error) {
	return Decode(bytes.NewReader(data))
}
