package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"git.solsynth.dev/hypernet/confession/pkg/internal/models"
	"git.solsynth.dev/hypernet/confession/pkg/internal/store"
	"github.com/moby/locker"
	"github.com/rs/zerolog/log"
)

var likeLocks = locker.New()

func asTransient(err error) error {
	if errors.Is(err, models.ErrTransient) {
		return err
	}
	return fmt.Errorf("%w: %v", models.ErrTransient, err)
}

// adjustCounter applies a follow-up counter write. A failure leaves the
// counter out of step with its records; it is logged and reported to the
// caller, which decides whether it matters.
func adjustCounter(ctx context.Context, db store.Store, postID, field string, delta int64) *models.CounterDriftWarning {
	err := db.Increment(ctx, models.CollectionPosts, postID, field, delta)
	if err == nil {
		return nil
	}

	warning := &models.CounterDriftWarning{PostID: postID, Field: field, Delta: delta, Cause: err}
	log.Warn().Err(warning).
		Str("post", postID).
		Str("field", field).
		Int64("delta", delta).
		Msg("Counter drifted from its records, the counter audit can repair it.")
	return warning
}

// ToggleLike flips the like of actor on a post and reports whether the post is liked afterwards.
// Toggles of the same pair are serialized inside this process. When another
// instance removes the like between the lookup and the delete, this toggle had
// no effect of its own and reports ErrAlreadyExists.
func ToggleLike(ctx context.Context, db store.Store, postID string, actor models.Actor) (bool, error) {
	if len(actor.ID) == 0 {
		return false, fmt.Errorf("%w: sign in to like posts", models.ErrPermission)
	}

	likeID := models.LikeID(postID, actor.ID)
	likeLocks.Lock(likeID)
	defer func() { _ = likeLocks.Unlock(likeID) }()

	post, err := GetPost(ctx, db, postID)
	if err != nil {
		return false, err
	}

	_, err = db.Get(ctx, models.CollectionLikes, likeID)
	switch {
	case errors.Is(err, models.ErrNotFound):
		like := models.Like{PostID: postID, UserID: actor.ID, CreatedAt: time.Now()}
		err = db.Insert(ctx, models.CollectionLikes, likeID, like.ToDocument())
		if err == nil {
			adjustCounter(ctx, db, postID, "like_count", 1)
			if !post.IsAuthor(actor.ID) && post.AuthorID != nil {
				go notifyLike(db, post, actor)
			}
			return true, nil
		}
		if !errors.Is(err, models.ErrAlreadyExists) {
			return false, asTransient(err)
		}
		// Another instance liked first, so this toggle undoes it.
	case err != nil:
		return false, asTransient(err)
	}

	if err := db.Delete(ctx, models.CollectionLikes, likeID); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return false, fmt.Errorf("%w: the like was removed by a concurrent toggle", models.ErrAlreadyExists)
		}
		return false, asTransient(err)
	}
	adjustCounter(ctx, db, postID, "like_count", -1)
	return false, nil
}

func notifyLike(db store.Store, post models.Post, actor models.Actor) {
	ctx := context.Background()
	name := ResolveDisplayName(ctx, db, actor)
	if _, err := Notify(ctx, db, *post.AuthorID, models.NotificationLike, post.ID, post.Content, name); err != nil {
		log.Error().Err(err).Str("post", post.ID).Msg("An error occurred when notifying the author about a like...")
	}
}

func IsLiked(ctx context.Context, db store.Store, postID, userID string) (bool, error) {
	_, err := db.Get(ctx, models.CollectionLikes, models.LikeID(postID, userID))
	if errors.Is(err, models.ErrNotFound) {
		return false, nil
	}
	return err == nil, err
}

// ListLikedPosts returns the posts a user liked, latest like first. Likes on deleted posts are skipped.
func ListLikedPosts(ctx context.Context, db store.Store, userID string, take int) ([]models.Post, error) {
	snapshot, err := db.Query(ctx, models.CollectionLikes, store.Query{}.
		Where("user_id", store.OpEq, userID).
		OrderBy("created_at", true).
		Take(PageSize(take)))
	if err != nil {
		return nil, err
	}

	posts := make([]models.Post, 0, len(snapshot))
	for _, record := range snapshot {
		like := models.LikeFromDocument(record.ID, record.Data)
		post, err := GetPost(ctx, db, like.PostID)
		if errors.Is(err, models.ErrNotFound) {
			continue
		} else if err != nil {
			return nil, err
		}
		posts = append(posts, post)
	}
	return posts, nil
}

// LikedPostIDs returns the set of posts a user currently likes.
func LikedPostIDs(ctx context.Context, db store.Store, userID string) (map[string]bool, error) {
	snapshot, err := db.Query(ctx, models.CollectionLikes, store.Query{}.Where("user_id", store.OpEq, userID))
	if err != nil {
		return nil, err
	}
	return likedSet(snapshot), nil
}

func likedSet(snapshot store.Snapshot) map[string]bool {
	out := make(map[string]bool, len(snapshot))
	for _, record := range snapshot {
		out[record.Data.String("post_id")] = true
	}
	return out
}

// SubscribeLikedPostIDs keeps fn updated with the set of posts a user likes.
func SubscribeLikedPostIDs(ctx context.Context, db store.Store, userID string, fn func(liked map[string]bool, err error)) (store.Unsubscribe, error) {
	return db.Subscribe(ctx, models.CollectionLikes, store.Query{}.Where("user_id", store.OpEq, userID), func(snapshot store.Snapshot, err error) {
		if err != nil {
			fn(nil, err)
			return
		}
		fn(likedSet(snapshot), nil)
	})
}
