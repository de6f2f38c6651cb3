package models

import "time"

const CommentContentMaxLength = 200

// Comment is stored flat in its own collection and points at the parent post.
type Comment struct {
	ID          string    `json:"id"`
	PostID      string    `json:"post_id"`
	AuthorID    *string   `json:"author_id"`
	Content     string    `json:"content"`
	Username    string    `json:"username"`
	IsAnonymous bool      `json:"is_anonymous"`
	CreatedAt   time.Time `json:"created_at"`
}

func (v Comment) ToDocument() Document {
	doc := Document{
		"post_id":      v.PostID,
		"content":      v.Content,
		"username":     v.Username,
		"is_anonymous": v.IsAnonymous,
		"created_at":   TimeValue(v.CreatedAt),
	}
	if v.AuthorID != nil {
		doc["author_id"] = *v.AuthorID
	}
	return doc
}

func CommentFromDocument(id string, doc Document) Comment {
	return Comment{
		ID:          id,
		PostID:      doc.String("post_id"),
		AuthorID:    doc.OptionalString("author_id"),
		Content:     doc.String("content"),
		Username:    doc.String("username"),
		IsAnonymous: doc.Bool("is_anonymous"),
		CreatedAt:   doc.Time("created_at"),
	}
}

func (v Comment) Redacted(viewerID string) Comment {
	if v.IsAnonymous && (v.AuthorID == nil || *v.AuthorID != viewerID) {
		v.AuthorID = nil
		v.Username = AnonymousName
	}
	return v
}
