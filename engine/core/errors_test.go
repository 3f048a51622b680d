package core

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBindingErrorUnwrapsToInvalidBinding(t *testing.T) {
	err := NewBindingError(ErrKindRootDescriptorArray, "bindRootDescriptors", "range %q has count %d", "gLights", 4)
	wrapped := fmt.Errorf("apply: %w", err)

	assert.True(t, errors.Is(wrapped, ErrInvalidBinding))
	assert.True(t, IsBindingError(wrapped, ErrKindRootDescriptorArray))
	assert.False(t, IsBindingError(wrapped, ErrKindProgramKind))
	assert.Equal(t, `bindRootDescriptors: RootDescriptorArray: range "gLights" has count 4`, err.Error())
}

func TestIsBindingErrorOnPlainError(t *testing.T) {
	assert.False(t, IsBindingError(ErrOutOfRange, ErrKindTypeMismatch))
	assert.False(t, IsBindingError(nil, ErrKindTypeMismatch))
}

func TestErrorKindString(t *testing.T) {
	for kind, want := range map[ErrorKind]string{
		ErrKindRootDescriptorArray:     "RootDescriptorArray",
		ErrKindRootDescriptorNotBuffer: "RootDescriptorNotBuffer",
		ErrKindProgramKind:             "ProgramKind",
		ErrKindMissingKernels:          "MissingKernels",
		ErrKindTypeMismatch:            "TypeMismatch",
		ErrKindMissingEntryPoint:       "MissingEntryPoint",
		ErrorKind(200):                 "Unknown",
	} {
		assert.Equal(t, want, kind.String())
	}
}
