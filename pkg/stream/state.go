package stream

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	// ErrNotFound is returned when no live subscription has the given id.
	ErrNotFound = errors.New("subscription not found")

	// ErrManagerClosed is returned when subscribing after Close.
	ErrManagerClosed = errors.New("subscription manager closed")

	// ErrPollerRunning is returned when starting a poller that has not stopped yet.
	ErrPollerRunning = errors.New("poller already running")
)

// DefaultGracePeriod bounds how long a cancelled subscription waits for the producer.
const DefaultGracePeriod = 5 * time.Second

// State is the lifecycle position of a subscription.
type State int

const (
	StateCreated State = iota
	StateSubscribed
	StateActive
	StateCancelling
	StateTerminated
)

var stateNames = [...]string{"created", "subscribed", "active", "cancelling", "terminated"}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return fmt.Sprintf("state(%d)", int(s))
	}
	return stateNames[s]
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *State) UnmarshalText(text []byte) error {
	name := strings.ToLower(string(text))
	for i, n := range stateNames {
		if n == name {
			*s = State(i)
			return nil
		}
	}
	return fmt.Errorf("unknown subscription state %q", text)
}

// Live reports whether values may still flow.
func (s State) Live() bool {
	return s < StateCancelling
}

// Reason records why a subscription terminated.
type Reason string

const (
	ReasonNone      Reason = ""
	ReasonFinished  Reason = "finished"
	ReasonCancelled Reason = "cancelled"
	ReasonForced    Reason = "forced"
	ReasonFailed    Reason = "failed"
)
