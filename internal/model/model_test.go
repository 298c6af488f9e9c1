package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTypeTextRoundTrip(t *testing.T) {
	for _, typ := range []Type{TypeFree, TypeBreak, TypeMeal, TypeKeynote, TypeSession} {
		b, err := typ.MarshalText()
		require.NoError(t, err)

		var got Type
		require.NoError(t, got.UnmarshalText(b))
		assert.Equal(t, typ, got)
	}

	_, err := Type(99).MarshalText()
	assert.Error(t, err)

	var bad Type
	assert.Error(t, bad.UnmarshalText([]byte("workshop")))
}

func TestBlockType(t *testing.T) {
	assert.Equal(t, TypeFree, BlockType("FREE"))
	assert.Equal(t, TypeMeal, BlockType("food"))
	assert.Equal(t, TypeKeynote, BlockType("keynote"))
	assert.Equal(t, TypeBreak, BlockType("break"))
	assert.Equal(t, TypeBreak, BlockType("after-hours"))
}

func TestReservationStatusOrdering(t *testing.T) {
	assert.Less(t, int(ReservationUnreserved), int(ReservationPending))
	assert.Less(t, int(ReservationPending), int(ReservationReserved))
	assert.Less(t, int(ReservationReserved), int(ReservationWaitlisted))
	assert.True(t, ReservationDisabled.Valid())
	assert.False(t, ReservationStatus(7).Valid())
	assert.Equal(t, "waitlisted", ReservationWaitlisted.String())
}

func TestFlags(t *testing.T) {
	f := FlagHasLivestream | FlagConflictsWithPrevious
	assert.True(t, f.Has(FlagConflicts))
	assert.False(t, f.Has(FlagNotRemovable))
	assert.False(t, (f &^ FlagConflicts).Has(FlagConflicts))
}

func TestDetectSessionType(t *testing.T) {
	tests := []struct {
		tags []string
		want SessionType
	}{
		{nil, SessionTypeMisc},
		{[]string{"TYPE_SESSIONS", "TOPIC_ANDROID"}, SessionTypeSession},
		{[]string{"FLAG_KEYNOTE"}, SessionTypeSession},
		{[]string{"type_codelabs"}, SessionTypeCodelab},
		{[]string{"TYPE_SANDBOXTALKS"}, SessionTypeBoxtalk},
		{[]string{"TYPE_OFFICEHOURS"}, SessionTypeMisc},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, DetectSessionType(tt.tags), "tags=%v", tt.tags)
	}
}
