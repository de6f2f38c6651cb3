package models

import (
	"time"
)

const (
	PostContentMaxLength = 500
	AnonymousName        = "Anonymous"
)

type PostSortMode string

const (
	PostSortRecency    = PostSortMode("recency")
	PostSortPopularity = PostSortMode("popularity")
)

type Post struct {
	ID          string    `json:"id"`
	Content     string    `json:"content"`
	AuthorID    *string   `json:"author_id"`
	Username    string    `json:"username"`
	Category    Category  `json:"category"`
	Mood        *Mood     `json:"mood"`
	IsAnonymous bool      `json:"is_anonymous"`
	Language    string    `json:"language"`
	CreatedAt   time.Time `json:"created_at"`

	LikeCount    int64 `json:"like_count"`
	CommentCount int64 `json:"comment_count"`
	ShareCount   int64 `json:"share_count"`
}

// PostFilter narrows a post query. Zero values mean "any".
type PostFilter struct {
	AuthorID *string
	Category *Category
	// ExcludeAnonymous hides anonymous posts, used when listing someone else's posts by author.
	ExcludeAnonymous bool
}

func (v Post) IsAuthor(userID string) bool {
	return v.AuthorID != nil && len(userID) > 0 && *v.AuthorID == userID
}

func (v Post) ToDocument() Document {
	doc := Document{
		"content":       v.Content,
		"username":      v.Username,
		"category":      string(v.Category),
		"is_anonymous":  v.IsAnonymous,
		"language":      v.Language,
		"created_at":    TimeValue(v.CreatedAt),
		"like_count":    v.LikeCount,
		"comment_count": v.CommentCount,
		"share_count":   v.ShareCount,
	}
	if v.AuthorID != nil {
		doc["author_id"] = *v.AuthorID
	}
	if v.Mood != nil {
		doc["mood"] = string(*v.Mood)
	}
	return doc
}

func PostFromDocument(id string, doc Document) Post {
	post := Post{
		ID:           id,
		Content:      doc.String("content"),
		AuthorID:     doc.OptionalString("author_id"),
		Username:     doc.String("username"),
		Category:     Category(doc.String("category")),
		IsAnonymous:  doc.Bool("is_anonymous"),
		Language:     doc.String("language"),
		CreatedAt:    doc.Time("created_at"),
		LikeCount:    doc.Int("like_count"),
		CommentCount: doc.Int("comment_count"),
		ShareCount:   doc.Int("share_count"),
	}
	if mood := doc.OptionalString("mood"); mood != nil {
		post.Mood = (*Mood)(mood)
	}
	return post
}

// Redacted strips the author reference of anonymous posts for everyone but the author.
func (v Post) Redacted(viewerID string) Post {
	if v.IsAnonymous && !v.IsAuthor(viewerID) {
		v.AuthorID = nil
		v.Username = AnonymousName
	}
	return v
}
