package identity

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"git.solsynth.dev/hypernet/confession/pkg/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVerifierRoundTrip(t *testing.T) {
	v := NewVerifier("secret", "confession")
	token, err := v.Sign(models.Actor{ID: "u1", DisplayName: "Alice"}, time.Hour)
	require.NoError(t, err)

	actor, err := v.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, models.Actor{ID: "u1", DisplayName: "Alice"}, actor)
}

func TestVerifierRejects(t *testing.T) {
	v := NewVerifier("secret", "confession")

	expired, err := v.Sign(models.Actor{ID: "u1"}, -time.Minute)
	require.NoError(t, err)
	foreign, err := NewVerifier("other", "confession").Sign(models.Actor{ID: "u1"}, time.Hour)
	require.NoError(t, err)
	wrongIssuer, err := NewVerifier("secret", "elsewhere").Sign(models.Actor{ID: "u1"}, time.Hour)
	require.NoError(t, err)
	noSubject, err := v.Sign(models.Actor{}, time.Hour)
	require.NoError(t, err)

	for name, token := range map[string]string{
		"expired":      expired,
		"foreign":      foreign,
		"wrong issuer": wrongIssuer,
		"no subject":   noSubject,
		"garbage":      "not-a-token",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := v.Verify(token)
			assert.ErrorIs(t, err, ErrInvalidToken)
		})
	}
}

func TestSessionNotifiesListeners(t *testing.T) {
	s := NewSession()
	ctx := context.Background()

	current, err := s.CurrentUser(ctx)
	require.NoError(t, err)
	assert.Nil(t, current)

	var mu sync.Mutex
	var seen []*models.Actor
	unsubscribe := s.OnAuthChange(func(actor *models.Actor) {
		mu.Lock()
		seen = append(seen, actor)
		mu.Unlock()
	})

	s.SignIn(models.Actor{ID: "u1"})
	s.SignOut()
	unsubscribe()
	s.SignIn(models.Actor{ID: "u2"})

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, seen, 2)
	assert.Equal(t, "u1", seen[0].ID)
	assert.Nil(t, seen[1])

	current, err = s.CurrentUser(ctx)
	require.NoError(t, err)
	assert.Equal(t, "u2", current.ID)
}

func TestCheckSecret(t *testing.T) {
	for _, secret := range []string{"change-me", " Change-Me ", "secret", "short"} {
		assert.ErrorIs(t, CheckSecret(secret), ErrWeakSecret, secret)
	}
	assert.NoError(t, CheckSecret(strings.Repeat("k", MinSecretLength)))
}
