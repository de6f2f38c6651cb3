package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	localCache "git.solsynth.dev/hypernet/confession/pkg/internal/cache"
	"git.solsynth.dev/hypernet/confession/pkg/internal/models"
	"git.solsynth.dev/hypernet/confession/pkg/internal/store"
	"github.com/eko/gocache/lib/v4/cache"
	"github.com/eko/gocache/lib/v4/marshaler"
	cacheStore "github.com/eko/gocache/lib/v4/store"
	"github.com/rs/zerolog/log"
)

type UserInput struct {
	Username string  `json:"username" validate:"required,username"`
	Email    string  `json:"email" validate:"required,email"`
	Bio      *string `json:"bio" validate:"omitempty,max=256"`
	Avatar   *string `json:"avatar" validate:"omitempty,url"`
}

type UserPatch struct {
	Username *string `json:"username" validate:"omitempty,username"`
	Bio      *string `json:"bio" validate:"omitempty,max=256"`
	Avatar   *string `json:"avatar" validate:"omitempty,url"`
}

func displayNameCacheKey(userID string) string {
	return fmt.Sprintf("display-name#%s", userID)
}

func CreateUser(ctx context.Context, db store.Store, actor models.Actor, input UserInput) (models.User, error) {
	if len(actor.ID) == 0 {
		return models.User{}, fmt.Errorf("%w: sign in to create a profile", models.ErrPermission)
	}
	input.Username = strings.TrimSpace(input.Username)
	if err := ValidateStruct(input); err != nil {
		return models.User{}, err
	}

	if _, err := FindUserByUsername(ctx, db, input.Username); err == nil {
		return models.User{}, fmt.Errorf("%w: username %s is taken", models.ErrAlreadyExists, input.Username)
	} else if !errors.Is(err, models.ErrNotFound) {
		return models.User{}, err
	}

	user := models.User{
		ID:        actor.ID,
		Username:  input.Username,
		Email:     input.Email,
		Bio:       input.Bio,
		Avatar:    input.Avatar,
		CreatedAt: time.Now(),
	}
	if err := db.Insert(ctx, models.CollectionUsers, user.ID, user.ToDocument()); err != nil {
		return models.User{}, err
	}
	invalidateDisplayName(ctx, user.ID)
	return user, nil
}

func GetUser(ctx context.Context, db store.Store, id string) (models.User, error) {
	doc, err := db.Get(ctx, models.CollectionUsers, id)
	if err != nil {
		return models.User{}, err
	}
	return models.UserFromDocument(id, doc), nil
}

func FindUserByUsername(ctx context.Context, db store.Store, username string) (models.User, error) {
	snapshot, err := db.Query(ctx, models.CollectionUsers, store.Query{}.
		Where("username_l", store.OpEq, strings.ToLower(username)).
		Take(1))
	if err != nil {
		return models.User{}, err
	}
	if len(snapshot) == 0 {
		return models.User{}, models.ErrNotFound
	}
	return models.UserFromDocument(snapshot[0].ID, snapshot[0].Data), nil
}

func UpdateUser(ctx context.Context, db store.Store, id string, requester models.Actor, patch UserPatch) (models.User, error) {
	if requester.ID != id {
		return models.User{}, fmt.Errorf("%w: only the owner can edit this profile", models.ErrPermission)
	}
	if patch.Username != nil {
		patch.Username = trimmedPtr(*patch.Username)
	}
	if err := ValidateStruct(patch); err != nil {
		return models.User{}, err
	}

	user, err := GetUser(ctx, db, id)
	if err != nil {
		return models.User{}, err
	}

	partial := models.Document{}
	if patch.Username != nil && *patch.Username != user.Username {
		if other, err := FindUserByUsername(ctx, db, *patch.Username); err == nil && other.ID != id {
			return models.User{}, fmt.Errorf("%w: username %s is taken", models.ErrAlreadyExists, *patch.Username)
		} else if err != nil && !errors.Is(err, models.ErrNotFound) {
			return models.User{}, err
		}
		user.Username = *patch.Username
		partial["username"] = user.Username
		partial["username_l"] = strings.ToLower(user.Username)
	}
	if patch.Bio != nil {
		user.Bio = patch.Bio
		partial["bio"] = *patch.Bio
	}
	if patch.Avatar != nil {
		user.Avatar = patch.Avatar
		partial["avatar"] = *patch.Avatar
	}
	if len(partial) == 0 {
		return user, nil
	}

	if err := db.Update(ctx, models.CollectionUsers, id, partial); err != nil {
		return models.User{}, err
	}
	invalidateDisplayName(ctx, id)
	return user, nil
}

func trimmedPtr(value string) *string {
	value = strings.TrimSpace(value)
	return &value
}

// ResolveDisplayName picks the name shown for an actor: the profile username,
// then the provider's display name, then the local part of the email, then "User".
func ResolveDisplayName(ctx context.Context, db store.Store, actor models.Actor) string {
	if actor.IsAnonymous {
		return models.AnonymousName
	}
	if len(actor.ID) == 0 {
		return "User"
	}

	var marshal *marshaler.Marshaler
	if localCache.S != nil {
		marshal = marshaler.New(cache.New[any](localCache.S))
		if val, err := marshal.Get(ctx, displayNameCacheKey(actor.ID), new(string)); err == nil {
			if name, ok := val.(*string); ok && len(*name) > 0 {
				return *name
			}
		}
	}

	name := "User"
	user, err := GetUser(ctx, db, actor.ID)
	switch {
	case err == nil && len(user.Username) > 0:
		name = user.Username
	case len(actor.DisplayName) > 0:
		name = actor.DisplayName
	case err == nil && strings.Contains(user.Email, "@"):
		name = strings.SplitN(user.Email, "@", 2)[0]
	}

	if marshal != nil && err == nil {
		_ = marshal.Set(
			ctx,
			displayNameCacheKey(actor.ID),
			name,
			cacheStore.WithExpiration(10*time.Minute),
			cacheStore.WithTags([]string{"display-name", fmt.Sprintf("user#%s", actor.ID)}),
		)
	}
	return name
}

func invalidateDisplayName(ctx context.Context, userID string) {
	if localCache.S == nil {
		return
	}
	marshal := marshaler.New(cache.New[any](localCache.S))
	if err := marshal.Delete(ctx, displayNameCacheKey(userID)); err != nil {
		log.Debug().Err(err).Str("user", userID).Msg("Unable to invalidate cached display name.")
	}
}
