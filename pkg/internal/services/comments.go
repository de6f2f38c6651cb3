package services

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"git.solsynth.dev/hypernet/confession/pkg/internal/models"
	"git.solsynth.dev/hypernet/confession/pkg/internal/store"
	"github.com/rs/zerolog/log"
	"github.com/samber/lo"
)

type CommentInput struct {
	Content     string `json:"content" validate:"required,max=200"`
	IsAnonymous bool   `json:"is_anonymous"`
}

var mentionPattern = regexp.MustCompile(`(?:^|\s)@([A-Za-z0-9_.]{2,32})`)

// ParseMentions returns the distinct usernames mentioned in content, lowercased.
func ParseMentions(content string) []string {
	matches := mentionPattern.FindAllStringSubmatch(content, -1)
	return lo.Uniq(lo.Map(matches, func(item []string, _ int) string {
		return strings.ToLower(strings.TrimRight(item[1], "."))
	}))
}

func commentsFromSnapshot(snapshot store.Snapshot) []models.Comment {
	return lo.Map(snapshot, func(item store.Record, _ int) models.Comment {
		return models.CommentFromDocument(item.ID, item.Data)
	})
}

func AddComment(ctx context.Context, db store.Store, postID string, actor models.Actor, input CommentInput) (models.Comment, error) {
	if len(actor.ID) == 0 {
		return models.Comment{}, fmt.Errorf("%w: sign in to comment", models.ErrPermission)
	}

	input.Content = strings.TrimSpace(input.Content)
	if err := ValidateStruct(input); err != nil {
		return models.Comment{}, err
	}

	post, err := GetPost(ctx, db, postID)
	if err != nil {
		return models.Comment{}, err
	}

	username := models.AnonymousName
	if !input.IsAnonymous {
		username = ResolveDisplayName(ctx, db, actor)
	}

	comment := models.Comment{
		PostID:      postID,
		AuthorID:    lo.ToPtr(actor.ID),
		Content:     input.Content,
		Username:    username,
		IsAnonymous: input.IsAnonymous,
		CreatedAt:   time.Now(),
	}
	id, err := db.Create(ctx, models.CollectionComments, comment.ToDocument())
	if err != nil {
		return models.Comment{}, asTransient(err)
	}
	comment.ID = id

	adjustCounter(ctx, db, postID, "comment_count", 1)

	go notifyComment(db, post, comment, actor)

	return comment, nil
}

func notifyComment(db store.Store, post models.Post, comment models.Comment, actor models.Actor) {
	ctx := context.Background()

	notified := map[string]bool{actor.ID: true}
	if post.AuthorID != nil && !notified[*post.AuthorID] {
		notified[*post.AuthorID] = true
		if _, err := Notify(ctx, db, *post.AuthorID, models.NotificationComment, post.ID, comment.Content, comment.Username); err != nil {
			log.Error().Err(err).Str("post", post.ID).Msg("An error occurred when notifying the author about a comment...")
		}
	}

	for _, username := range ParseMentions(comment.Content) {
		user, err := FindUserByUsername(ctx, db, username)
		if err != nil {
			continue
		}
		if notified[user.ID] {
			continue
		}
		notified[user.ID] = true
		if _, err := Notify(ctx, db, user.ID, models.NotificationMention, post.ID, comment.Content, comment.Username); err != nil {
			log.Error().Err(err).Str("user", user.ID).Msg("An error occurred when notifying a mentioned user...")
		}
	}
}

func commentQuery(postID string, take int) store.Query {
	return store.Query{}.
		Where("post_id", store.OpEq, postID).
		OrderBy("created_at", true).
		Take(take)
}

// ListComments returns the comments of a post, latest first. A take of zero returns all of them.
func ListComments(ctx context.Context, db store.Store, postID string, take int) ([]models.Comment, error) {
	snapshot, err := db.Query(ctx, models.CollectionComments, commentQuery(postID, take))
	if err != nil {
		return nil, err
	}
	return commentsFromSnapshot(snapshot), nil
}

func SubscribeComments(ctx context.Context, db store.Store, postID string, fn func(comments []models.Comment, err error)) (store.Unsubscribe, error) {
	return db.Subscribe(ctx, models.CollectionComments, commentQuery(postID, 0), func(snapshot store.Snapshot, err error) {
		if err != nil {
			fn(nil, err)
			return
		}
		fn(commentsFromSnapshot(snapshot), nil)
	})
}

func ListUserComments(ctx context.Context, db store.Store, userID string, take int) ([]models.Comment, error) {
	snapshot, err := db.Query(ctx, models.CollectionComments, store.Query{}.
		Where("author_id", store.OpEq, userID).
		OrderBy("created_at", true).
		Take(PageSize(take)))
	if err != nil {
		return nil, err
	}
	return commentsFromSnapshot(snapshot), nil
}
