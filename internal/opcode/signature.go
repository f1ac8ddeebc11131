package opcode

// SigType is the kind of one operand slot. It fits in 3 bits.
type SigType uint8

const (
	SigTypeX SigType = iota // none
	SigTypeL                // label
	SigTypeO                // offset
	SigTypeS                // symbol
	SigTypeV                // value
)

func (t SigType) String() string {
	switch t {
	case SigTypeX:
		return "X"
	case SigTypeL:
		return "L"
	case SigTypeO:
		return "O"
	case SigTypeS:
		return "S"
	case SigTypeV:
		return "V"
	default:
		return "?"
	}
}

// Signature packs the kinds of dest, src1, src2 and src3 in consecutive
// 3-bit fields, dest in the lowest bits.
type Signature uint32

func sig(dest, src1, src2, src3 SigType) Signature {
	return Signature(dest) | Signature(src1)<<3 | Signature(src2)<<6 | Signature(src3)<<9
}

var (
	SigX    = sig(SigTypeX, SigTypeX, SigTypeX, SigTypeX)
	SigXL   = sig(SigTypeX, SigTypeL, SigTypeX, SigTypeX)
	SigXO   = sig(SigTypeX, SigTypeO, SigTypeX, SigTypeX)
	SigXOV  = sig(SigTypeX, SigTypeO, SigTypeV, SigTypeX)
	SigXOVV = sig(SigTypeX, SigTypeO, SigTypeV, SigTypeV)
	SigXS   = sig(SigTypeX, SigTypeS, SigTypeX, SigTypeX)
	SigXV   = sig(SigTypeX, SigTypeV, SigTypeX, SigTypeX)
	SigXVL  = sig(SigTypeX, SigTypeV, SigTypeL, SigTypeX)
	SigXVLL = sig(SigTypeX, SigTypeV, SigTypeL, SigTypeL)
	SigXVO  = sig(SigTypeX, SigTypeV, SigTypeO, SigTypeX)
	SigXVS  = sig(SigTypeX, SigTypeV, SigTypeS, SigTypeX)
	SigXVV  = sig(SigTypeX, SigTypeV, SigTypeV, SigTypeX)
	SigXVVV = sig(SigTypeX, SigTypeV, SigTypeV, SigTypeV)
	SigV    = sig(SigTypeV, SigTypeX, SigTypeX, SigTypeX)
	SigVO   = sig(SigTypeV, SigTypeO, SigTypeX, SigTypeX)
	SigVV   = sig(SigTypeV, SigTypeV, SigTypeX, SigTypeX)
	SigVVO  = sig(SigTypeV, SigTypeV, SigTypeO, SigTypeX)
	SigVVOV = sig(SigTypeV, SigTypeV, SigTypeO, SigTypeV)
	SigVVV  = sig(SigTypeV, SigTypeV, SigTypeV, SigTypeX)
	SigVVVO = sig(SigTypeV, SigTypeV, SigTypeV, SigTypeO)
	SigVVVV = sig(SigTypeV, SigTypeV, SigTypeV, SigTypeV)
)

func (s Signature) Dest() SigType { return SigType(s & 0x7) }
func (s Signature) Src1() SigType { return SigType((s >> 3) & 0x7) }
func (s Signature) Src2() SigType { return SigType((s >> 6) & 0x7) }
func (s Signature) Src3() SigType { return SigType((s >> 9) & 0x7) }

// Src returns the kind of source slot i (0..2).
func (s Signature) Src(i int) SigType {
	return SigType((s >> (3 * (uint(i) + 1))) & 0x7)
}

// String renders the signature as e.g. "V_V_V" (dest first, trailing X dropped).
func (s Signature) String() string {
	kinds := []SigType{s.Dest(), s.Src1(), s.Src2(), s.Src3()}
	end := len(kinds)
	for end > 1 && kinds[end-1] == SigTypeX {
		end--
	}
	out := ""
	for i, k := range kinds[:end] {
		if i > 0 {
			out += "_"
		}
		out += k.String()
	}
	return out
}
