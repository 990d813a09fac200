package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSeatStateValidate(t *testing.T) {
	deadline := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	tests := []struct {
		name    string
		state   SeatState
		wantErr bool
	}{
		{name: "available", state: AvailableState()},
		{name: "locked", state: LockedState("u1", deadline)},
		{name: "booked", state: BookedState("u1")},
		{name: "available with holder", state: SeatState{Status: SeatAvailable, LockHolder: "u1"}, wantErr: true},
		{name: "locked without deadline", state: SeatState{Status: SeatLocked, LockHolder: "u1"}, wantErr: true},
		{name: "booked with lock holder", state: SeatState{Status: SeatBooked, BookingHolder: "u1", LockHolder: "u1"}, wantErr: true},
		{name: "unknown status", state: SeatState{Status: "held"}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.state.Validate()
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestGenderConstraintAllows(t *testing.T) {
	assert.True(t, Unrestricted.Allows(GenderMale))
	assert.True(t, Unrestricted.Allows(GenderFemale))
	assert.True(t, MaleOnly.Allows(GenderMale))
	assert.False(t, MaleOnly.Allows(GenderFemale))
	assert.True(t, FemaleOnly.Allows(GenderFemale))
	assert.False(t, FemaleOnly.Allows(GenderMale))
}

func TestLockExpiredIsStrict(t *testing.T) {
	deadline := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	s := Seat{ID: "s1"}
	s.Apply(LockedState("u1", deadline))

	assert.False(t, s.LockExpired(deadline))
	assert.True(t, s.LockExpired(deadline.Add(time.Millisecond)))
	assert.True(t, s.LockedBy("u1"))
	assert.False(t, s.LockedBy("u2"))
}
