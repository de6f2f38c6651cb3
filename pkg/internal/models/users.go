package models

import (
	"strings"
	"time"
)

// Actor is the identity a request acts as. It is passed into every service call.
type Actor struct {
	ID          string `json:"id"`
	IsAnonymous bool   `json:"is_anonymous"`
	DisplayName string `json:"display_name,omitempty"`
}

type User struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	Bio       *string   `json:"bio"`
	Avatar    *string   `json:"avatar"`
	CreatedAt time.Time `json:"created_at"`
}

func (v User) ToDocument() Document {
	doc := Document{
		"username":   v.Username,
		"username_l": strings.ToLower(v.Username),
		"email":      v.Email,
		"created_at": TimeValue(v.CreatedAt),
	}
	if v.Bio != nil {
		doc["bio"] = *v.Bio
	}
	if v.Avatar != nil {
		doc["avatar"] = *v.Avatar
	}
	return doc
}

func UserFromDocument(id string, doc Document) User {
	return User{
		ID:        id,
		Username:  doc.String("username"),
		Email:     doc.String("email"),
		Bio:       doc.OptionalString("bio"),
		Avatar:    doc.OptionalString("avatar"),
		CreatedAt: doc.Time("created_at"),
	}
}
