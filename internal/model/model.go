package model

import (
	"fmt"
	"strings"
	"time"
)

// Type is the kind of a schedule item.
type Type int

const (
	TypeFree Type = iota
	TypeBreak
	TypeMeal
	TypeKeynote
	TypeSession
)

var typeNames = map[Type]string{
	TypeFree:    "free",
	TypeBreak:   "break",
	TypeMeal:    "meal",
	TypeKeynote: "keynote",
	TypeSession: "session",
}

func (t Type) String() string {
	if s, ok := typeNames[t]; ok {
		return s
	}
	return fmt.Sprintf("type(%d)", int(t))
}

func (t Type) MarshalText() ([]byte, error) {
	if _, ok := typeNames[t]; !ok {
		return nil, fmt.Errorf("unknown item type %d", int(t))
	}
	return []byte(t.String()), nil
}

func (t *Type) UnmarshalText(b []byte) error {
	v, err := ParseType(string(b))
	if err != nil {
		return err
	}
	*t = v
	return nil
}

// ParseType parses a type name as written in agenda feeds and JSON.
func ParseType(s string) (Type, error) {
	key := strings.ToLower(strings.TrimSpace(s))
	for t, name := range typeNames {
		if name == key {
			return t, nil
		}
	}
	return 0, fmt.Errorf("unknown item type %q", s)
}

// BlockType maps an agenda block type to an item type. Unknown block types
// are shown as breaks, which never displace free time.
func BlockType(s string) Type {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "free":
		return TypeFree
	case "meal", "food", "lunch":
		return TypeMeal
	case "keynote":
		return TypeKeynote
	default:
		return TypeBreak
	}
}

// Flag is a bitset carried by every item.
type Flag uint32

const (
	FlagHasLivestream Flag = 1 << iota
	FlagNotRemovable
	FlagConflictsWithPrevious
	FlagConflictsWithNext
)

// FlagConflicts covers both conflict bits set by the resolver.
const FlagConflicts = FlagConflictsWithPrevious | FlagConflictsWithNext

func (f Flag) Has(o Flag) bool { return f&o != 0 }

// ReservationStatus is the persisted seat-reservation status of a session.
// The numeric order is significant and must not change.
type ReservationStatus int

const (
	ReservationUnreserved ReservationStatus = -1
	ReservationPending    ReservationStatus = 0
	ReservationReserved   ReservationStatus = 1
	ReservationWaitlisted ReservationStatus = 2
	ReservationDisabled   ReservationStatus = 3
)

func (s ReservationStatus) String() string {
	switch s {
	case ReservationUnreserved:
		return "unreserved"
	case ReservationPending:
		return "pending"
	case ReservationReserved:
		return "reserved"
	case ReservationWaitlisted:
		return "waitlisted"
	case ReservationDisabled:
		return "disabled"
	default:
		return fmt.Sprintf("reservation(%d)", int(s))
	}
}

// Valid reports whether s is one of the known statuses.
func (s ReservationStatus) Valid() bool {
	return s >= ReservationUnreserved && s <= ReservationDisabled
}

// Item is one time-boxed entry handed to the conflict resolver.
type Item struct {
	ID                string            `json:"id"`
	Title             string            `json:"title"`
	Start             time.Time         `json:"start"`
	End               time.Time         `json:"end"`
	Type              Type              `json:"type"`
	InSchedule        bool              `json:"in_schedule"`
	ReservationStatus ReservationStatus `json:"reservation_status"`
	Flags             Flag              `json:"flags"`
}

// Duration returns End-Start.
func (it Item) Duration() time.Duration {
	return it.End.Sub(it.Start)
}

func (it Item) String() string {
	return fmt.Sprintf("%s %q %s-%s flags=%#x", it.Type, it.Title,
		it.Start.Format("15:04"), it.End.Format("15:04"), uint32(it.Flags))
}
