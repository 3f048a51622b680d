package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventSystem(t *testing.T) {
	require.True(t, EventSystemInitialize())
	defer EventSystemShutdown()
	assert.False(t, EventSystemInitialize())

	var got []string
	first := "first"
	second := "second"

	require.True(t, EventRegister(EVENT_CODE_PROGRAM_RELOADED, &first, func(c EventContext) bool {
		got = append(got, first+":"+c.Data.(*ProgramReloadedEvent).Name)
		return false
	}))
	require.True(t, EventRegister(EVENT_CODE_PROGRAM_RELOADED, &second, func(c EventContext) bool {
		got = append(got, second)
		return true
	}))
	assert.False(t, EventRegister(EVENT_CODE_PROGRAM_RELOADED, &first, func(EventContext) bool { return false }))

	handled := EventFire(EventContext{Type: EVENT_CODE_PROGRAM_RELOADED, Data: &ProgramReloadedEvent{Name: "blur"}})
	assert.True(t, handled)
	assert.Equal(t, []string{"first:blur", "second"}, got)

	assert.False(t, EventFire(EventContext{Type: EVENT_CODE_APPLICATION_QUIT}))

	require.True(t, EventUnregister(EVENT_CODE_PROGRAM_RELOADED, &second))
	assert.False(t, EventUnregister(EVENT_CODE_PROGRAM_RELOADED, &second))
	got = nil
	assert.False(t, EventFire(EventContext{Type: EVENT_CODE_PROGRAM_RELOADED, Data: &ProgramReloadedEvent{Name: "x"}}))
	assert.Equal(t, []string{"first:x"}, got)
}

func TestEventFireWithoutSystem(t *testing.T) {
	assert.False(t, EventFire(EventContext{Type: EVENT_CODE_APPLICATION_QUIT}))
	assert.False(t, EventRegister(EVENT_CODE_APPLICATION_QUIT, nil, func(EventContext) bool { return true }))
}
