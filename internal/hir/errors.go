package hir

import (
	"errors"
	"fmt"
)

var (
	// ErrContract is wrapped by every *ContractError.
	ErrContract = errors.New("hir: contract violation")
	// ErrAlreadyFinalized is returned by a second Finalize call.
	ErrAlreadyFinalized = errors.New("hir: builder already finalized")
	// ErrCycle reports a cycle in the program-order block list.
	ErrCycle = errors.New("hir: cycle in block list")
)

// ContractError describes a caller bug: a type mismatch, a wrong operand
// kind or a violated structural precondition. Emitters panic with it.
type ContractError struct {
	Op  string
	Msg string
}

func (e *ContractError) Error() string {
	return fmt.Sprintf("hir: %s: %s", e.Op, e.Msg)
}

func (e *ContractError) Unwrap() error { return ErrContract }

func contractf(op, format string, args ...any) {
	panic(&ContractError{Op: op, Msg: fmt.Sprintf(format, args...)})
}

// Capture runs fn and converts a contract panic into an error. Other panics
// propagate. The builder must be discarded (Reset) after a captured error.
func Capture(fn func()) (err error) {
	defer func() {
		r := recover()
		if r == nil {
			return
		}
		if ce, ok := r.(*ContractError); ok {
			err = ce
			return
		}
		panic(r)
	}()
	fn()
	return nil
}
