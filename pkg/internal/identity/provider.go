package identity

import (
	"context"

	"git.solsynth.dev/hypernet/confession/pkg/internal/models"
)

type Unsubscribe func()

// Provider tells who is acting. A nil actor means nobody is signed in.
type Provider interface {
	CurrentUser(ctx context.Context) (*models.Actor, error)
	OnAuthChange(fn func(actor *models.Actor)) Unsubscribe
}
