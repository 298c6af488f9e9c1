package reservation

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"confsched/internal/model"
)

var open = Conditions{SignedIn: true, Open: true, SeatsLeft: -1}

func TestDerive(t *testing.T) {
	tests := []struct {
		name   string
		status model.ReservationStatus
		cond   Conditions
		want   State
	}{
		{"signed out", model.ReservationReserved, Conditions{Open: true}, StateAuthRequired},
		{"unreserved open", model.ReservationUnreserved, open, StateReservable},
		{"unreserved closed", model.ReservationUnreserved, Conditions{SignedIn: true}, StateDisabled},
		{"sold out", model.ReservationUnreserved, Conditions{SignedIn: true, Open: true, SeatsLeft: 0}, StateWaitlistAvailable},
		{"pending", model.ReservationPending, open, StatePending},
		{"reserved survives closing", model.ReservationReserved, Conditions{SignedIn: true}, StateReserved},
		{"waitlisted", model.ReservationWaitlisted, open, StateWaitlisted},
		{"disabled", model.ReservationDisabled, open, StateDisabled},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Derive(tt.status, tt.cond))
		})
	}
}

func TestReservePath(t *testing.T) {
	s := Derive(model.ReservationUnreserved, open)

	s, err := Next(s, ActionRequest)
	require.NoError(t, err)
	assert.Equal(t, StatePending, s)
	assert.Equal(t, model.ReservationPending, StatusOf(s))

	s, err = Next(s, ActionConfirm)
	require.NoError(t, err)
	assert.Equal(t, StateReserved, s)
	assert.Equal(t, model.ReservationReserved, StatusOf(s))

	s, err = Next(s, ActionCancel)
	require.NoError(t, err)
	assert.Equal(t, StateReservable, s)
	assert.Equal(t, model.ReservationUnreserved, StatusOf(s))
}

func TestWaitlistPath(t *testing.T) {
	s := Derive(model.ReservationUnreserved, Conditions{SignedIn: true, Open: true, SeatsLeft: 0})

	s, err := Next(s, ActionRequest)
	require.NoError(t, err)
	assert.Equal(t, StateWaitlisted, s)
	assert.Equal(t, model.ReservationWaitlisted, StatusOf(s))

	s, err = Next(s, ActionCancel)
	require.NoError(t, err)
	assert.Equal(t, StateWaitlistAvailable, s)
}

func TestBlockedAndInvalid(t *testing.T) {
	_, err := Next(StateDisabled, ActionRequest)
	assert.True(t, errors.Is(err, ErrBlocked))

	_, err = Next(StateAuthRequired, ActionCancel)
	assert.True(t, errors.Is(err, ErrBlocked))

	s, err := Next(StateReserved, ActionRequest)
	assert.True(t, errors.Is(err, ErrInvalidTransition))
	assert.Equal(t, StateReserved, s)

	_, err = Next(StateReservable, ActionConfirm)
	assert.True(t, errors.Is(err, ErrInvalidTransition))
}

func TestParseAction(t *testing.T) {
	a, err := ParseAction(" Request ")
	require.NoError(t, err)
	assert.Equal(t, ActionRequest, a)

	_, err = ParseAction("book")
	assert.Error(t, err)
}
