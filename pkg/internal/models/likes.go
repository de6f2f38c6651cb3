package models

import (
	"time"

	"github.com/google/uuid"
)

// LikeNamespace seeds the deterministic like and subscription identities.
var LikeNamespace = uuid.MustParse("6f1c1c4e-4a57-4d67-9a43-0b7c2d1e8f35")

type Like struct {
	ID        string    `json:"id"`
	PostID    string    `json:"post_id"`
	UserID    string    `json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
}

// LikeID is the same for every call with the same pair, so the store key
// itself enforces one like per user per post.
func LikeID(postID, userID string) string {
	return uuid.NewSHA1(LikeNamespace, []byte(postID+":"+userID)).String()
}

func (v Like) ToDocument() Document {
	return Document{
		"post_id":    v.PostID,
		"user_id":    v.UserID,
		"created_at": TimeValue(v.CreatedAt),
	}
}

func LikeFromDocument(id string, doc Document) Like {
	return Like{
		ID:        id,
		PostID:    doc.String("post_id"),
		UserID:    doc.String("user_id"),
		CreatedAt: doc.Time("created_at"),
	}
}
