package core

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidBinding       = errors.New("invalid binding configuration")
	ErrOutOfRange           = errors.New("index out of range")
	ErrNotFound             = errors.New("not found")
	ErrDescriptorAllocation = errors.New("descriptor set allocation failed")
	ErrShaderTable          = errors.New("shader table update failed")
	ErrUnknown              = errors.New("unknown")
)

// ErrorKind categorizes binding precondition violations.
type ErrorKind uint8

const (
	// ErrKindRootDescriptorArray means a root descriptor range declares a count other than 1.
	ErrKindRootDescriptorArray ErrorKind = iota
	// ErrKindRootDescriptorNotBuffer means a non-buffer resource is bound to a root descriptor slot.
	ErrKindRootDescriptorNotBuffer
	// ErrKindProgramKind means an operation was requested on a program of the wrong kind.
	ErrKindProgramKind
	// ErrKindMissingKernels means no program version or kernels are available.
	ErrKindMissingKernels
	// ErrKindTypeMismatch means a value of the wrong type was bound to a range.
	ErrKindTypeMismatch
	// ErrKindMissingEntryPoint means a binding table references an unusable entry point group.
	ErrKindMissingEntryPoint
)

func (k ErrorKind) String() string {
	switch k {
	case ErrKindRootDescriptorArray:
		return "RootDescriptorArray"
	case ErrKindRootDescriptorNotBuffer:
		return "RootDescriptorNotBuffer"
	case ErrKindProgramKind:
		return "ProgramKind"
	case ErrKindMissingKernels:
		return "MissingKernels"
	case ErrKindTypeMismatch:
		return "TypeMismatch"
	case ErrKindMissingEntryPoint:
		return "MissingEntryPoint"
	default:
		return "Unknown"
	}
}

// BindingError reports a programming error in the binding configuration.
// It always unwraps to ErrInvalidBinding.
type BindingError struct {
	Kind   ErrorKind
	Op     string
	Detail string
}

func NewBindingError(kind ErrorKind, op string, format string, args ...interface{}) *BindingError {
	return &BindingError{
		Kind:   kind,
		Op:     op,
		Detail: fmt.Sprintf(format, args...),
	}
}

func (e *BindingError) Error() string {
	return fmt.Sprintf("%s: %s: %s", e.Op, e.Kind, e.Detail)
}

func (e *BindingError) Unwrap() error {
	return ErrInvalidBinding
}

// IsBindingError reports whether err carries a BindingError of the given kind.
func IsBindingError(err error, kind ErrorKind) bool {
	var be *BindingError
	if !errors.As(err, &be) {
		return false
	}
	return be.Kind == kind
}
