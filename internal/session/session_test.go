package session

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/trip-seat-booking/internal/model"
)

var alice = &model.User{ID: "u1", Email: "alice@example.com", Gender: model.GenderFemale}

func TestZeroValueIsSignedOut(t *testing.T) {
	var m Machine
	assert.Equal(t, SignedOut, m.State())
	assert.Nil(t, m.User())
}

func TestSessionChanged(t *testing.T) {
	m := New()
	assert.Equal(t, Applied, m.SessionChanged(alice))
	assert.Equal(t, SignedIn, m.State())
	assert.Equal(t, "u1", m.User().ID)

	assert.Equal(t, Applied, m.SessionChanged(nil))
	assert.Equal(t, SignedOut, m.State())
	assert.Nil(t, m.User())
}

func TestSignupIgnoresSessionChanges(t *testing.T) {
	m := New()
	require.NoError(t, m.BeginSignup())

	assert.Equal(t, Ignored, m.SessionChanged(alice))
	assert.Equal(t, PendingSignup, m.State())
	assert.Equal(t, Ignored, m.SessionChanged(nil))
	assert.Nil(t, m.User())

	require.NoError(t, m.CompleteSignup())
	assert.Equal(t, SignedOut, m.State())

	// Notifications apply again once the signup is over.
	assert.Equal(t, Applied, m.SessionChanged(alice))
	assert.Equal(t, SignedIn, m.State())
}

func TestAbortSignup(t *testing.T) {
	m := New()
	require.NoError(t, m.BeginSignup())
	require.NoError(t, m.AbortSignup())
	assert.Equal(t, SignedOut, m.State())
}

func TestInvalidTransitions(t *testing.T) {
	m := New()
	assert.ErrorIs(t, m.CompleteSignup(), ErrInvalidTransition)
	assert.ErrorIs(t, m.AbortSignup(), ErrInvalidTransition)

	m.SessionChanged(alice)
	assert.ErrorIs(t, m.BeginSignup(), ErrInvalidTransition)
	assert.Equal(t, SignedIn, m.State())

	require.NoError(t, m.Logout())
	require.NoError(t, m.BeginSignup())
	assert.ErrorIs(t, m.BeginSignup(), ErrInvalidTransition)
	assert.ErrorIs(t, m.Logout(), ErrInvalidTransition)
	assert.Equal(t, PendingSignup, m.State())
}

func TestConcurrentNotificationsDuringSignup(t *testing.T) {
	m := New()
	require.NoError(t, m.BeginSignup())

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if i%2 == 0 {
				m.SessionChanged(alice)
			} else {
				m.SessionChanged(nil)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, PendingSignup, m.State())
	require.NoError(t, m.CompleteSignup())
	assert.Equal(t, SignedOut, m.State())
	assert.Nil(t, m.User())
}

func TestUserReturnsCopy(t *testing.T) {
	m := New()
	m.SessionChanged(alice)
	u := m.User()
	u.Name = "changed"
	assert.Empty(t, m.User().Name)
}
