package reconnect

import (
	"errors"
	"fmt"
	"time"
)

// Default retry policy, mirrored by the browser script.
const (
	DefaultMaxAttempts = 10
	DefaultBaseBackoff = time.Second
)

// State is the connection state of a reload client.
type State int

const (
	// Disconnected: no channel; a retry may be scheduled.
	Disconnected State = iota
	// Connecting: a channel is being opened.
	Connecting
	// Open: the channel is live.
	Open
	// Reloading: a reload frame arrived; the page is being replaced.
	Reloading
	// GivenUp: retries are exhausted. Terminal.
	GivenUp
	// Stopped: the client was torn down. Terminal.
	Stopped
)

// String returns the lowercase name of the state.
func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Open:
		return "open"
	case Reloading:
		return "reloading"
	case GivenUp:
		return "given-up"
	case Stopped:
		return "stopped"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Event is an input to the state machine.
type Event int

const (
	// Start is the initial page load.
	Start Event = iota
	// RetryFired means a scheduled retry timer elapsed.
	RetryFired
	// Opened is the transport-level open confirmation.
	Opened
	// ConnectedFrame is a "connected" data frame.
	ConnectedFrame
	// ReloadFrame is a "reload" data frame.
	ReloadFrame
	// Failed is a transport error or an unexpected close.
	Failed
	// Teardown is page unload or client shutdown.
	Teardown
)

// String returns the name of the event.
func (e Event) String() string {
	switch e {
	case Start:
		return "start"
	case RetryFired:
		return "retry-fired"
	case Opened:
		return "opened"
	case ConnectedFrame:
		return "connected-frame"
	case ReloadFrame:
		return "reload-frame"
	case Failed:
		return "failed"
	case Teardown:
		return "teardown"
	default:
		return fmt.Sprintf("event(%d)", int(e))
	}
}

// ActionKind tells the driver what side effect to perform.
type ActionKind int

const (
	// None: nothing to do.
	None ActionKind = iota
	// Connect: open a new channel.
	Connect
	// ScheduleRetry: close the channel and fire RetryFired after Action.Delay.
	ScheduleRetry
	// Reload: reload the page.
	Reload
	// GiveUp: close the channel and stop.
	GiveUp
	// Cancel: clear any retry timer and close the channel.
	Cancel
)

// Action is the side effect requested by a transition.
type Action struct {
	Kind  ActionKind
	Delay time.Duration
}

// Policy bounds reconnection.
type Policy struct {
	// MaxAttempts is the number of retries after the first failure.
	MaxAttempts int

	// BaseBackoff is multiplied by the attempt number to get the retry delay.
	BaseBackoff time.Duration
}

// DefaultPolicy returns the default retry policy.
func DefaultPolicy() Policy {
	return Policy{MaxAttempts: DefaultMaxAttempts, BaseBackoff: DefaultBaseBackoff}
}

// Validate checks that the policy is usable.
func (p Policy) Validate() error {
	if p.MaxAttempts < 0 {
		return errors.New("max attempts cannot be negative")
	}
	if p.BaseBackoff <= 0 {
		return errors.New("base backoff must be positive")
	}
	return nil
}

// Delay returns the wait before retry number attempt (1-based).
func (p Policy) Delay(attempt int) time.Duration {
	return time.Duration(attempt) * p.BaseBackoff
}

// Machine is the reconnecting client's state machine.
//
// Machine holds no timers or connections; [Machine.Handle] returns the
// action the driver must carry out. It is not safe for concurrent use.
type Machine struct {
	policy   Policy
	state    State
	attempts int
}

// NewMachine returns a machine in the [Disconnected] state.
func NewMachine(p Policy) *Machine {
	return &Machine{policy: p, state: Disconnected}
}

// State returns the current state.
func (m *Machine) State() State { return m.state }

// Attempts returns the number of retries since the last confirmed connection.
func (m *Machine) Attempts() int { return m.attempts }

// Handle applies ev and returns the action to perform. Events that make no
// sense in the current state are ignored and yield [None].
func (m *Machine) Handle(ev Event) Action {
	if ev == Teardown {
		if m.state == Stopped {
			return Action{}
		}
		m.state = Stopped
		return Action{Kind: Cancel}
	}

	switch m.state {
	case Disconnected:
		if ev == Start || ev == RetryFired {
			m.state = Connecting
			return Action{Kind: Connect}
		}

	case Connecting, Open:
		switch ev {
		case Opened:
			m.state = Open
		case ConnectedFrame:
			m.state = Open
			m.attempts = 0
		case ReloadFrame:
			if m.state == Open {
				m.state = Reloading
				return Action{Kind: Reload}
			}
		case Failed:
			return m.fail()
		}
	}

	return Action{}
}

// fail handles a transport failure on a live or opening channel.
func (m *Machine) fail() Action {
	if m.attempts >= m.policy.MaxAttempts {
		m.state = GivenUp
		return Action{Kind: GiveUp}
	}
	m.attempts++
	m.state = Disconnected
	return Action{Kind: ScheduleRetry, Delay: m.policy.Delay(m.attempts)}
}
