package hir

// RegAssignment records the physical register picked for a value by a later
// pass. Index is -1 while unassigned.
type RegAssignment struct {
	Set   string
	Index int
}

func (r RegAssignment) Assigned() bool { return r.Index >= 0 }

// Value is an SSA-like operand. A non-constant value is defined by exactly
// one instruction (Def); constants and local slots have no definition.
type Value struct {
	Ordinal  uint32
	Type     TypeName
	Constant *Constant
	Def      InstrID
	Reg      RegAssignment
	UseHead  UseID
	Tag      any
}

func (v *Value) IsConstant() bool { return v.Constant != nil }

func (v *Value) IsConstantZero() bool {
	return v.Constant != nil && v.Constant.IsZero()
}

func (v *Value) IsConstantTrue() bool {
	return v.Constant != nil && v.Constant.IsTrue()
}

func (v *Value) IsConstantFalse() bool {
	return v.Constant != nil && v.Constant.IsFalse()
}
