package messaging

import "plotwatch/internal/types"

// transitions is the session lifecycle. States absent from a row accept no
// events. Connect moves a session from uninitialized (or a terminal state,
// after tearing it down) to awaiting_pairing; everything else is driven by
// transport events.
var transitions = map[types.SessionState]map[types.SessionEventType]types.SessionState{
	types.SessionAwaitingPairing: {
		types.EventPairingCode:  types.SessionAwaitingPairing,
		types.EventReady:        types.SessionConnected,
		types.EventAuthFailure:  types.SessionAuthFailed,
		types.EventDisconnected: types.SessionDisconnected,
	},
	types.SessionConnected: {
		types.EventReady:        types.SessionConnected,
		types.EventDisconnected: types.SessionDisconnected,
	},
}

// transition returns the state reached from `from` on event, and false when
// the event is not valid in that state.
func transition(from types.SessionState, event types.SessionEventType) (types.SessionState, bool) {
	next, ok := transitions[from][event]
	return next, ok
}
