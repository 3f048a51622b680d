package core

import "sync"

type EventContext struct {
	Type SystemEventCode
	Data interface{}
}

// System internal event codes. Application should use codes beyond 255.
type SystemEventCode int

const (
	// Shuts the application down on the next frame.
	EVENT_CODE_APPLICATION_QUIT SystemEventCode = 0x01

	// A program picked up a new reflection and dropped its kernels.
	/* Context usage:
	 * data := context.Data.(*ProgramReloadedEvent)
	 */
	EVENT_CODE_PROGRAM_RELOADED SystemEventCode = 0x02

	// A watched asset was removed from disk.
	/* Context usage:
	 * path := context.Data.(string)
	 */
	EVENT_CODE_ASSET_REMOVED SystemEventCode = 0x03

	MAX_EVENT_CODE SystemEventCode = 0xFF
)

// This should be more than enough codes...
const MAX_MESSAGE_CODES = 16384

/** @brief Payload of EVENT_CODE_PROGRAM_RELOADED. */
type ProgramReloadedEvent struct {
	Name string
	Path string
}

// Should return true if handled.
type FnOnEvent func(context EventContext) bool

type registeredEvent struct {
	listener interface{}
	callback FnOnEvent
}

// State structure.
type eventSystemState struct {
	mu sync.RWMutex
	// Lookup table for event codes.
	registered map[SystemEventCode][]*registeredEvent
}

/**
 * Event system internal state.
 */
var eventStateMu sync.Mutex
var eventState *eventSystemState = nil

func getEventState() *eventSystemState {
	eventStateMu.Lock()
	defer eventStateMu.Unlock()
	return eventState
}

func EventSystemInitialize() bool {
	eventStateMu.Lock()
	defer eventStateMu.Unlock()
	if eventState != nil {
		return false
	}
	eventState = &eventSystemState{
		registered: make(map[SystemEventCode][]*registeredEvent),
	}
	return true
}

func EventSystemShutdown() error {
	eventStateMu.Lock()
	defer eventStateMu.Unlock()
	// Listeners are owned by their registrants.
	eventState = nil
	return nil
}

/**
 * Register to listen for when events are sent with the provided code. A listener
 * registered twice for the same code is rejected and causes this to return false.
 * @param code The event code to listen for.
 * @param listener The listener instance. Can be nil for a single anonymous listener.
 * @param onEvent The callback invoked when the event code is fired.
 * @returns true if the event is successfully registered; otherwise false.
 */
func EventRegister(code SystemEventCode, listener interface{}, onEvent FnOnEvent) bool {
	s := getEventState()
	if s == nil || code < 0 || code >= MAX_MESSAGE_CODES || onEvent == nil {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range s.registered[code] {
		if e.listener == listener {
			LogWarn("listener already registered for event code %d", code)
			return false
		}
	}
	s.registered[code] = append(s.registered[code], &registeredEvent{
		listener: listener,
		callback: onEvent,
	})
	return true
}

/**
 * Unregister from listening for when events are sent with the provided code.
 * @returns true if the event is successfully unregistered; otherwise false.
 */
func EventUnregister(code SystemEventCode, listener interface{}) bool {
	s := getEventState()
	if s == nil {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	events := s.registered[code]
	for i, e := range events {
		if e.listener == listener {
			s.registered[code] = append(events[:i], events[i+1:]...)
			return true
		}
	}
	LogWarn("no listener registered for event code %d", code)
	return false
}

/**
 * Fires an event to listeners of the given code. If an event handler returns
 * true, the event is considered handled and is not passed on to any more listeners.
 * Listeners run on the caller's goroutine.
 * @returns true if handled, otherwise false.
 */
func EventFire(context EventContext) bool {
	s := getEventState()
	if s == nil {
		return false
	}
	s.mu.RLock()
	events := append([]*registeredEvent(nil), s.registered[context.Type]...)
	s.mu.RUnlock()

	for _, e := range events {
		if e.callback(context) {
			// Message has been handled, do not send to other listeners.
			return true
		}
	}
	return false
}
