package models

import (
	"time"

	"github.com/google/uuid"
)

// Subscription makes a user receive a notification for every new post in a category.
type Subscription struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Category  Category  `json:"category"`
	CreatedAt time.Time `json:"created_at"`
}

func SubscriptionID(userID string, category Category) string {
	return uuid.NewSHA1(LikeNamespace, []byte("subscription:"+userID+":"+string(category))).String()
}

func (v Subscription) ToDocument() Document {
	return Document{
		"user_id":    v.UserID,
		"category":   string(v.Category),
		"created_at": TimeValue(v.CreatedAt),
	}
}

func SubscriptionFromDocument(id string, doc Document) Subscription {
	return Subscription{
		ID:        id,
		UserID:    doc.String("user_id"),
		Category:  Category(doc.String("category")),
		CreatedAt: doc.Time("created_at"),
	}
}
