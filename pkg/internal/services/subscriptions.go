package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"git.solsynth.dev/hypernet/confession/pkg/internal/models"
	"git.solsynth.dev/hypernet/confession/pkg/internal/store"
	"github.com/rs/zerolog/log"
	"github.com/samber/lo"
)

func GetSubscriptionOnCategory(ctx context.Context, db store.Store, user models.Actor, category models.Category) (*models.Subscription, error) {
	id := models.SubscriptionID(user.ID, category)
	doc, err := db.Get(ctx, models.CollectionSubscriptions, id)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("unable to get subscription: %w", err)
	}
	return lo.ToPtr(models.SubscriptionFromDocument(id, doc)), nil
}

func SubscribeToCategory(ctx context.Context, db store.Store, user models.Actor, category models.Category) (models.Subscription, error) {
	if len(user.ID) == 0 {
		return models.Subscription{}, fmt.Errorf("%w: sign in to subscribe", models.ErrPermission)
	}
	if !category.Valid() {
		return models.Subscription{}, models.NewValidationError("category", fmt.Sprintf("unknown category %q", category))
	}

	subscription := models.Subscription{
		ID:        models.SubscriptionID(user.ID, category),
		UserID:    user.ID,
		Category:  category,
		CreatedAt: time.Now(),
	}
	if err := db.Insert(ctx, models.CollectionSubscriptions, subscription.ID, subscription.ToDocument()); err != nil {
		if errors.Is(err, models.ErrAlreadyExists) {
			return subscription, fmt.Errorf("%w: subscription already exists", models.ErrAlreadyExists)
		}
		return subscription, err
	}
	return subscription, nil
}

func UnsubscribeFromCategory(ctx context.Context, db store.Store, user models.Actor, category models.Category) error {
	if err := db.Delete(ctx, models.CollectionSubscriptions, models.SubscriptionID(user.ID, category)); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return fmt.Errorf("%w: subscription does not exist", models.ErrNotFound)
		}
		return err
	}
	return nil
}

func ListSubscriptions(ctx context.Context, db store.Store, userID string) ([]models.Subscription, error) {
	snapshot, err := db.Query(ctx, models.CollectionSubscriptions, store.Query{}.
		Where("user_id", store.OpEq, userID).
		OrderBy("created_at", false))
	if err != nil {
		return nil, err
	}
	return lo.Map(snapshot, func(item store.Record, _ int) models.Subscription {
		return models.SubscriptionFromDocument(item.ID, item.Data)
	}), nil
}

// NotifyCategorySubscription tells everyone subscribed to the post's category, except its author.
func NotifyCategorySubscription(ctx context.Context, db store.Store, post models.Post) error {
	snapshot, err := db.Query(ctx, models.CollectionSubscriptions, store.Query{}.
		Where("category", store.OpEq, string(post.Category)))
	if err != nil {
		return fmt.Errorf("unable to get subscriptions: %w", err)
	}

	userIDs := lo.Uniq(lo.FilterMap(snapshot, func(item store.Record, _ int) (string, bool) {
		userID := item.Data.String("user_id")
		return userID, len(userID) > 0 && !post.IsAuthor(userID)
	}))

	var errs []error
	for _, userID := range userIDs {
		if _, err := Notify(ctx, db, userID, models.NotificationConfession, post.ID, post.Content, post.Redacted("").Username); err != nil {
			errs = append(errs, err)
		}
	}

	log.Debug().Str("post", post.ID).Int("subscribers", len(userIDs)).Msg("Notified category subscribers.")
	return errors.Join(errs...)
}
