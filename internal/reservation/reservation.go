// Package reservation models the seat-reservation button of a session: which
// state it is in for the current user and which actions move it along.
//
// The conflict resolver never interprets reservation status; it only carries
// model.ReservationStatus through. This package is what the HTTP layer uses
// to decide whether a request/confirm/cancel is allowed and which status to
// persist afterwards.
package reservation

import (
	"errors"
	"fmt"
	"strings"

	"confsched/internal/model"
)

var (
	// ErrBlocked is returned for any action on a disabled or signed-out state.
	ErrBlocked = errors.New("reservations blocked")

	// ErrInvalidTransition is returned when an action does not apply to a state.
	ErrInvalidTransition = errors.New("invalid reservation transition")
)

// State is the reservation state shown to the attendee for one session.
type State string

const (
	StateReservable        State = "reservable"
	StatePending           State = "reservation-pending"
	StateReserved          State = "reserved"
	StateWaitlistAvailable State = "waitlist-available"
	StateWaitlisted        State = "waitlisted"
	StateDisabled          State = "reservation-disabled"
	StateAuthRequired      State = "auth-required"
)

// Action is an attendee request against a State.
type Action string

const (
	ActionRequest Action = "request"
	ActionConfirm Action = "confirm"
	ActionCancel  Action = "cancel"
)

// ParseAction parses a request body value.
func ParseAction(s string) (Action, error) {
	switch a := Action(strings.ToLower(strings.TrimSpace(s))); a {
	case ActionRequest, ActionConfirm, ActionCancel:
		return a, nil
	}
	return "", fmt.Errorf("unknown reservation action %q", s)
}

// Conditions are the facts outside the stored status that decide the state.
type Conditions struct {
	SignedIn bool
	Open     bool

	// SeatsLeft is -1 when unknown, which counts as available.
	SeatsLeft int
}

// Derive maps a stored status plus conditions to a button state.
func Derive(status model.ReservationStatus, c Conditions) State {
	if !c.SignedIn {
		return StateAuthRequired
	}
	switch status {
	case model.ReservationPending:
		return StatePending
	case model.ReservationReserved:
		return StateReserved
	case model.ReservationWaitlisted:
		return StateWaitlisted
	case model.ReservationDisabled:
		return StateDisabled
	}
	if !c.Open {
		return StateDisabled
	}
	if c.SeatsLeft == 0 {
		return StateWaitlistAvailable
	}
	return StateReservable
}

type edge struct {
	from State
	act  Action
}

var transitions = map[edge]State{
	{StateReservable, ActionRequest}:        StatePending,
	{StatePending, ActionConfirm}:           StateReserved,
	{StatePending, ActionCancel}:            StateReservable,
	{StateReserved, ActionCancel}:           StateReservable,
	{StateWaitlistAvailable, ActionRequest}: StateWaitlisted,
	{StateWaitlisted, ActionCancel}:         StateWaitlistAvailable,
}

// Next applies an action to a state.
func Next(s State, a Action) (State, error) {
	if s == StateDisabled || s == StateAuthRequired {
		return s, fmt.Errorf("%s on %s: %w", a, s, ErrBlocked)
	}
	to, ok := transitions[edge{s, a}]
	if !ok {
		return s, fmt.Errorf("%s on %s: %w", a, s, ErrInvalidTransition)
	}
	return to, nil
}

// StatusOf returns the status to persist for a state.
func StatusOf(s State) model.ReservationStatus {
	switch s {
	case StatePending:
		return model.ReservationPending
	case StateReserved:
		return model.ReservationReserved
	case StateWaitlisted:
		return model.ReservationWaitlisted
	default:
		return model.ReservationUnreserved
	}
}
