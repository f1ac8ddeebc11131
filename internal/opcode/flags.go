package opcode

// Per-instruction flag vocabularies. Which one applies depends on the opcode.

const (
	CallTail           uint16 = 1 << 1
	CallPossibleReturn uint16 = 1 << 2
)

const (
	BranchLikely   uint16 = 1 << 1
	BranchUnlikely uint16 = 1 << 2
)

// RoundMode selects float rounding for convert and round.
type RoundMode uint16

const (
	RoundToZero RoundMode = iota
	RoundToNearest
	RoundToMinusInfinity
	RoundToPositiveInfinity
)

func (m RoundMode) String() string {
	switch m {
	case RoundToZero:
		return "to_zero"
	case RoundToNearest:
		return "to_nearest"
	case RoundToMinusInfinity:
		return "to_minus_infinity"
	case RoundToPositiveInfinity:
		return "to_positive_infinity"
	default:
		return "unknown"
	}
}

// ParseRoundMode resolves a rounding mode by its String name.
func ParseRoundMode(s string) (RoundMode, bool) {
	for m := RoundToZero; m <= RoundToPositiveInfinity; m++ {
		if m.String() == s {
			return m, true
		}
	}
	return 0, false
}

const (
	LoadNoAlias   uint16 = 1 << 1
	LoadAligned   uint16 = 1 << 2
	LoadUnaligned uint16 = 1 << 3
	LoadVolatile  uint16 = 1 << 4
)

const (
	StoreNoAlias   uint16 = 1 << 1
	StoreAligned   uint16 = 1 << 2
	StoreUnaligned uint16 = 1 << 3
	StoreVolatile  uint16 = 1 << 4
)

const (
	PrefetchLoad  uint16 = 1 << 1
	PrefetchStore uint16 = 1 << 2
)

const (
	ArithmeticSetCarry uint16 = 1 << 1
	ArithmeticUnsigned uint16 = 1 << 2
	ArithmeticSaturate uint16 = 1 << 3
)

// PermuteMask builds a lane-select control word for permute.
func PermuteMask(selX, x, selY, y, selZ, z, selW, w uint32) uint32 {
	return (x & 0x3) | selX<<2 | (y&0x3)<<8 | selY<<10 |
		(z&0x3)<<16 | selZ<<18 | (w&0x3)<<24 | selW<<26
}

// PermuteIdentity selects every lane from the first operand in order.
var PermuteIdentity = PermuteMask(0, 0, 0, 1, 0, 2, 0, 3)

// SwizzleMask builds a 4-lane swizzle control word.
func SwizzleMask(x, y, z, w uint32) uint32 {
	return (x & 0x3) | (y&0x3)<<2 | (z&0x3)<<4 | (w&0x3)<<6
}

var (
	SwizzleXYZWToXYZW = SwizzleMask(0, 1, 2, 3)
	SwizzleXYZWToYZWX = SwizzleMask(1, 2, 3, 0)
	SwizzleXYZWToZWXY = SwizzleMask(2, 3, 0, 1)
	SwizzleXYZWToWXYZ = SwizzleMask(3, 0, 1, 2)
)

// PackType selects the packed format for pack/unpack.
type PackType uint16

const (
	PackD3DColor PackType = iota
	PackFloat16x2
	PackFloat16x4
	PackShort2
	PackS8In16Lo
	PackS8In16Hi
	PackS16In32Lo
	PackS16In32Hi
)

var packTypeNames = [...]string{
	"d3dcolor", "float16_2", "float16_4", "short_2",
	"s8_in_16_lo", "s8_in_16_hi", "s16_in_32_lo", "s16_in_32_hi",
}

func (p PackType) String() string {
	if int(p) < len(packTypeNames) {
		return packTypeNames[p]
	}
	return "unknown"
}

func ParsePackType(s string) (PackType, bool) {
	for i, n := range packTypeNames {
		if n == s {
			return PackType(i), true
		}
	}
	return 0, false
}
