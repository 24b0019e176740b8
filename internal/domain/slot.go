package domain

import "time"

type SlotState string

const (
	SlotStateFree       SlotState = "free"
	SlotStateSoftLocked SlotState = "soft_locked"
	SlotStateReserved   SlotState = "reserved"
)

// Slot represents a single reservable time unit identified by its label
// (e.g. "10:00"). Exactly one state holds at a time: HolderName is set only
// while reserved, ExpiresAt only while soft-locked.
type Slot struct {
	ID         string
	State      SlotState
	HolderName string
	ExpiresAt  *time.Time
}

// NewFreeSlot returns the initial record for a slot label.
func NewFreeSlot(id string) Slot {
	return Slot{ID: id, State: SlotStateFree}
}

// Expired reports whether a soft-lock has passed its expiry at the given
// instant. Slots in any other state never expire.
func (s Slot) Expired(now time.Time) bool {
	return s.State == SlotStateSoftLocked && s.ExpiresAt != nil && s.ExpiresAt.Before(now)
}

// Reservation is the read-only listing shape for reserved slots.
type Reservation struct {
	SlotID     string
	HolderName string
}

// Mutation describes the target of a state transition. Values are built
// only through the constructors below, which keep the state/field pairing
// invariants intact.
type Mutation struct {
	State      SlotState
	HolderName string
	ExpiresAt  *time.Time
}

// MutationSoftLock moves a slot to soft-locked until expiresAt.
func MutationSoftLock(expiresAt time.Time) Mutation {
	return Mutation{State: SlotStateSoftLocked, ExpiresAt: &expiresAt}
}

// MutationReserve moves a slot to reserved under the given holder name.
func MutationReserve(holderName string) Mutation {
	return Mutation{State: SlotStateReserved, HolderName: holderName}
}

// MutationFree returns a slot to the free state, clearing holder and expiry.
func MutationFree() Mutation {
	return Mutation{State: SlotStateFree}
}

// Apply returns the slot as it reads after the mutation commits.
func (m Mutation) Apply(s Slot) Slot {
	return Slot{
		ID:         s.ID,
		State:      m.State,
		HolderName: m.HolderName,
		ExpiresAt:  m.ExpiresAt,
	}
}
