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
	"github.com/spf13/viper"
)

func notificationsFromSnapshot(snapshot store.Snapshot) []models.Notification {
	return lo.Map(snapshot, func(item store.Record, _ int) models.Notification {
		return models.NotificationFromDocument(item.ID, item.Data)
	})
}

// Notify appends an unread notification for recipient.
func Notify(ctx context.Context, db store.Store, recipientID string, kind models.NotificationType, postID, content, actorName string) (models.Notification, error) {
	if len(recipientID) == 0 {
		return models.Notification{}, models.NewValidationError("recipient_id", "is required")
	}
	if !kind.Valid() {
		return models.Notification{}, models.NewValidationError("type", fmt.Sprintf("unknown notification type %q", kind))
	}

	notification := models.Notification{
		RecipientID: recipientID,
		Type:        kind,
		PostID:      postID,
		Content:     TruncatePostContentShort(content),
		ActorName:   actorName,
		CreatedAt:   time.Now(),
	}
	id, err := db.Create(ctx, models.CollectionNotifications, notification.ToDocument())
	if err != nil {
		return notification, err
	}
	notification.ID = id

	log.Debug().Str("recipient", recipientID).Str("type", string(kind)).Msg("Notified user.")
	return notification, nil
}

func MarkRead(ctx context.Context, db store.Store, id string, requester models.Actor) error {
	doc, err := db.Get(ctx, models.CollectionNotifications, id)
	if err != nil {
		return err
	}
	notification := models.NotificationFromDocument(id, doc)
	if notification.RecipientID != requester.ID {
		return fmt.Errorf("%w: notification belongs to someone else", models.ErrPermission)
	}
	if notification.Read {
		return nil
	}
	return db.Update(ctx, models.CollectionNotifications, id, models.Document{"read": true})
}

func notificationQuery(userID string) store.Query {
	return store.Query{}.
		Where("recipient_id", store.OpEq, userID).
		OrderBy("created_at", true)
}

func ListNotifications(ctx context.Context, db store.Store, userID string, take int) ([]models.Notification, error) {
	snapshot, err := db.Query(ctx, models.CollectionNotifications, notificationQuery(userID).Take(PageSize(take)))
	if err != nil {
		return nil, err
	}
	return notificationsFromSnapshot(snapshot), nil
}

func SubscribeNotifications(ctx context.Context, db store.Store, userID string, take int, fn func(notifications []models.Notification, err error)) (store.Unsubscribe, error) {
	return db.Subscribe(ctx, models.CollectionNotifications, notificationQuery(userID).Take(PageSize(take)), func(snapshot store.Snapshot, err error) {
		if err != nil {
			fn(nil, err)
			return
		}
		fn(notificationsFromSnapshot(snapshot), nil)
	})
}

func unreadQuery(userID string) store.Query {
	return store.Query{}.
		Where("recipient_id", store.OpEq, userID).
		Where("read", store.OpEq, false)
}

func CountUnread(ctx context.Context, db store.Store, userID string) (int, error) {
	snapshot, err := db.Query(ctx, models.CollectionNotifications, unreadQuery(userID))
	if err != nil {
		return 0, err
	}
	return len(snapshot), nil
}

func MarkAllRead(ctx context.Context, db store.Store, userID string) (int, error) {
	snapshot, err := db.Query(ctx, models.CollectionNotifications, unreadQuery(userID))
	if err != nil {
		return 0, err
	}

	count := 0
	for _, record := range snapshot {
		if err := db.Update(ctx, models.CollectionNotifications, record.ID, models.Document{"read": true}); err != nil {
			if errors.Is(err, models.ErrNotFound) {
				continue
			}
			return count, err
		}
		count++
	}
	return count, nil
}

// CleanupNotifications removes read notifications older than retention.
func CleanupNotifications(ctx context.Context, db store.Store, retention time.Duration) (int, error) {
	cutoff := models.TimeValue(time.Now().Add(-retention))
	snapshot, err := db.Query(ctx, models.CollectionNotifications, store.Query{}.
		Where("read", store.OpEq, true).
		Where("created_at", store.OpLt, cutoff))
	if err != nil {
		return 0, err
	}

	count := 0
	for _, record := range snapshot {
		if err := db.Delete(ctx, models.CollectionNotifications, record.ID); err != nil && !errors.Is(err, models.ErrNotFound) {
			return count, err
		}
		count++
	}
	return count, nil
}

func DoAutoNotificationCleanup() {
	retention := viper.GetDuration("notifications.retention")
	if retention <= 0 {
		retention = 30 * 24 * time.Hour
	}

	log.Debug().Dur("retention", retention).Msg("Cleaning up read notifications...")
	count, err := CleanupNotifications(context.Background(), store.C, retention)
	if err != nil {
		log.Error().Err(err).Msg("An error occurred when cleaning up notifications...")
		return
	}
	log.Info().Int("count", count).Msg("Cleaned up read notifications.")
}
