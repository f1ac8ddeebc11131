package hir

import (
	"encoding/binary"
	"fmt"
	"math"
)

// TypeName is the machine type of a value.
type TypeName uint8

const (
	Int8 TypeName = iota
	Int16
	Int32
	Int64
	Float32
	Float64
	Vec128

	numTypes
)

var typeNames = [numTypes]string{"i8", "i16", "i32", "i64", "f32", "f64", "v128"}

func (t TypeName) String() string {
	if t >= numTypes {
		return fmt.Sprintf("type(%d)", uint8(t))
	}
	return typeNames[t]
}

// ParseType resolves a short type name such as "i32".
func ParseType(s string) (TypeName, bool) {
	for i, n := range typeNames {
		if n == s {
			return TypeName(i), true
		}
	}
	return 0, false
}

func (t TypeName) Valid() bool   { return t < numTypes }
func (t TypeName) IsInt() bool   { return t <= Int64 }
func (t TypeName) IsFloat() bool { return t == Float32 || t == Float64 }
func (t TypeName) IsVec() bool   { return t == Vec128 }

// Size returns the width of the type in bytes.
func (t TypeName) Size() int {
	switch t {
	case Int8:
		return 1
	case Int16:
		return 2
	case Int32, Float32:
		return 4
	case Int64, Float64:
		return 8
	case Vec128:
		return 16
	default:
		return 0
	}
}

// Bits returns the width of the type in bits.
func (t TypeName) Bits() uint { return uint(t.Size()) * 8 }

// V128 is a 16-byte vector stored as four little-endian 32-bit lanes
// (x, y, z, w).
type V128 [4]uint32

// V128FromFloats builds a vector from four float32 lanes.
func V128FromFloats(x, y, z, w float32) V128 {
	return V128{math.Float32bits(x), math.Float32bits(y), math.Float32bits(z), math.Float32bits(w)}
}

// Float returns lane i as a float32.
func (v V128) Float(i int) float32 { return math.Float32frombits(v[i]) }

// Bytes returns the vector as 16 little-endian bytes.
func (v V128) Bytes() [16]byte {
	var out [16]byte
	for i, lane := range v {
		binary.LittleEndian.PutUint32(out[i*4:], lane)
	}
	return out
}

// Low64 and High64 return the vector halves.
func (v V128) Low64() uint64  { return uint64(v[0]) | uint64(v[1])<<32 }
func (v V128) High64() uint64 { return uint64(v[2]) | uint64(v[3])<<32 }

func (v V128) IsZero() bool { return v == V128{} }
