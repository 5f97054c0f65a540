package vm

import (
	"fmt"

	"github.com/yaraeng/yarago/compiler"
)

// StackUnderflowError means a rule's bytecode popped more operands than
// were pushed; this indicates a compiler bug, not a malformed rule, since
// the compiler is the only producer of bytecode.
type StackUnderflowError struct {
	Op compiler.Opcode
}

func (e *StackUnderflowError) Error() string {
	return fmt.Sprintf("vm: stack underflow executing %v", e.Op)
}

// InvalidOpcodeError reports an Instruction with an Op the interpreter
// doesn't recognize.
type InvalidOpcodeError struct {
	Op compiler.Opcode
}

func (e *InvalidOpcodeError) Error() string {
	return fmt.Sprintf("vm: invalid opcode %v", e.Op)
}

// DivisionByZeroError reports integer or float division/modulo by zero.
type DivisionByZeroError struct{}

func (e *DivisionByZeroError) Error() string { return "vm: division by zero" }

// UnknownFunctionError reports a call to a function the environment
// doesn't provide, e.g. an unregistered module function.
type UnknownFunctionError struct {
	Name string
}

func (e *UnknownFunctionError) Error() string {
	return fmt.Sprintf("vm: unknown function %q", e.Name)
}

// UnknownIdentifierError reports a dotted identifier the environment
// cannot resolve, e.g. a reference to a module that was never imported.
type UnknownIdentifierError struct {
	Path string
}

func (e *UnknownIdentifierError) Error() string {
	return fmt.Sprintf("vm: unknown identifier %q", e.Path)
}

// UnknownFieldError reports OpField against a value that either isn't an
// object or doesn't have the requested field.
type UnknownFieldError struct {
	Field string
}

func (e *UnknownFieldError) Error() string {
	return fmt.Sprintf("vm: unknown field %q", e.Field)
}

// NotIndexableError reports OpIndex against a value that doesn't support
// indexing.
type NotIndexableError struct{}

func (e *NotIndexableError) Error() string { return "vm: value is not indexable" }
