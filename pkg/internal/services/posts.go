package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"git.solsynth.dev/hypernet/confession/pkg/internal/models"
	"git.solsynth.dev/hypernet/confession/pkg/internal/store"
	"github.com/rs/zerolog/log"
	"github.com/samber/lo"
	"github.com/spf13/viper"
)

const MaxPageSize = 100

type PostInput struct {
	Content     string  `json:"content" validate:"required,max=500"`
	Category    string  `json:"category" validate:"required,category"`
	Mood        *string `json:"mood" validate:"omitempty,mood"`
	IsAnonymous bool    `json:"is_anonymous"`
	Username    *string `json:"username" validate:"omitempty,max=32"`
}

func PageSize(take int) int {
	if take <= 0 {
		take = viper.GetInt("feed.page_size")
	}
	if take <= 0 {
		take = 20
	}
	return min(take, MaxPageSize)
}

// PostQuery builds the store query behind every post listing.
func PostQuery(filter models.PostFilter, sort models.PostSortMode, take int) store.Query {
	query := store.Query{}
	if filter.AuthorID != nil {
		query = query.Where("author_id", store.OpEq, *filter.AuthorID)
	}
	if filter.Category != nil {
		query = query.Where("category", store.OpEq, string(*filter.Category))
	}
	if filter.ExcludeAnonymous {
		query = query.Where("is_anonymous", store.OpEq, false)
	}

	if sort == models.PostSortPopularity {
		query = query.OrderBy("like_count", true)
	}
	return query.OrderBy("created_at", true).Take(PageSize(take))
}

// ViewerFilter hides anonymous posts when someone filters by an author other than themselves.
func ViewerFilter(filter models.PostFilter, viewerID string) models.PostFilter {
	if filter.AuthorID != nil && *filter.AuthorID != viewerID {
		filter.ExcludeAnonymous = true
	}
	return filter
}

func postsFromSnapshot(snapshot store.Snapshot) []models.Post {
	return lo.Map(snapshot, func(item store.Record, _ int) models.Post {
		return models.PostFromDocument(item.ID, item.Data)
	})
}

func CreatePost(ctx context.Context, db store.Store, actor models.Actor, input PostInput) (models.Post, error) {
	if len(actor.ID) == 0 {
		return models.Post{}, models.NewValidationError("author_id", "is required")
	}

	input.Content = strings.TrimSpace(input.Content)
	if err := ValidateStruct(input); err != nil {
		return models.Post{}, err
	}

	category, err := models.ParseCategory(input.Category)
	if err != nil {
		return models.Post{}, models.NewValidationError("category", err.Error())
	}
	var mood *models.Mood
	if input.Mood != nil && len(*input.Mood) > 0 {
		parsed, err := models.ParseMood(*input.Mood)
		if err != nil {
			return models.Post{}, models.NewValidationError("mood", err.Error())
		}
		mood = &parsed
	}

	log.Debug().Str("author", actor.ID).Str("category", string(category)).Msg("Posting a confession...")
	start := time.Now()

	username := models.AnonymousName
	if !input.IsAnonymous {
		if input.Username != nil && len(strings.TrimSpace(*input.Username)) > 0 {
			username = strings.TrimSpace(*input.Username)
		} else {
			username = ResolveDisplayName(ctx, db, actor)
		}
	}

	post := models.Post{
		Content:     input.Content,
		AuthorID:    lo.ToPtr(actor.ID),
		Username:    username,
		Category:    category,
		Mood:        mood,
		IsAnonymous: input.IsAnonymous,
		Language:    DetectLanguage(input.Content),
		CreatedAt:   time.Now(),
	}

	id, err := db.Create(ctx, models.CollectionPosts, post.ToDocument())
	if err != nil {
		return models.Post{}, err
	}
	post.ID = id

	go func() {
		if err := NotifyCategorySubscription(context.Background(), db, post); err != nil {
			log.Error().Err(err).Str("post", post.ID).Msg("An error occurred when notifying category subscribers...")
		}
	}()

	log.Debug().Str("post", post.ID).Dur("elapsed", time.Since(start)).Msg("The confession is posted.")
	return post, nil
}

func GetPost(ctx context.Context, db store.Store, id string) (models.Post, error) {
	doc, err := db.Get(ctx, models.CollectionPosts, id)
	if err != nil {
		return models.Post{}, err
	}
	return models.PostFromDocument(id, doc), nil
}

func ListPosts(ctx context.Context, db store.Store, filter models.PostFilter, sort models.PostSortMode, take int) ([]models.Post, error) {
	snapshot, err := db.Query(ctx, models.CollectionPosts, PostQuery(filter, sort, take))
	if err != nil {
		return nil, err
	}
	return postsFromSnapshot(snapshot), nil
}

// SubscribePosts keeps fn updated with the ordered page until the handle is called.
func SubscribePosts(ctx context.Context, db store.Store, filter models.PostFilter, sort models.PostSortMode, take int, fn func(posts []models.Post, err error)) (store.Unsubscribe, error) {
	return db.Subscribe(ctx, models.CollectionPosts, PostQuery(filter, sort, take), func(snapshot store.Snapshot, err error) {
		if err != nil {
			fn(nil, err)
			return
		}
		fn(postsFromSnapshot(snapshot), nil)
	})
}

// DeletePost removes the post only. Its comments and likes stay behind unreachable.
func DeletePost(ctx context.Context, db store.Store, id string, requester models.Actor) error {
	post, err := GetPost(ctx, db, id)
	if err != nil {
		return err
	}
	if !post.IsAuthor(requester.ID) {
		return fmt.Errorf("%w: only the author can delete this post", models.ErrPermission)
	}

	if err := db.Delete(ctx, models.CollectionPosts, id); err != nil && !errors.Is(err, models.ErrNotFound) {
		return err
	}
	log.Info().Str("post", id).Str("requester", requester.ID).Msg("Deleted a confession.")
	return nil
}

func SharePost(ctx context.Context, db store.Store, id string) error {
	return db.Increment(ctx, models.CollectionPosts, id, "share_count", 1)
}

const TruncatePostContentShortThreshold = 80

func TruncatePostContentShort(content string) string {
	length := TruncatePostContentShortThreshold
	if len([]rune(content)) > length {
		return string([]rune(content)[:length]) + "..."
	}
	return content
}
