package models

import "time"

type Notification struct {
	ID          string           `json:"id"`
	RecipientID string           `json:"recipient_id"`
	Type        NotificationType `json:"type"`
	PostID      string           `json:"post_id"`
	Content     string           `json:"content"`
	ActorName   string           `json:"actor_name"`
	Read        bool             `json:"read"`
	CreatedAt   time.Time        `json:"created_at"`
}

func (v Notification) ToDocument() Document {
	return Document{
		"recipient_id": v.RecipientID,
		"type":         string(v.Type),
		"post_id":      v.PostID,
		"content":      v.Content,
		"actor_name":   v.ActorName,
		"read":         v.Read,
		"created_at":   TimeValue(v.CreatedAt),
	}
}

func NotificationFromDocument(id string, doc Document) Notification {
	return Notification{
		ID:          id,
		RecipientID: doc.String("recipient_id"),
		Type:        NotificationType(doc.String("type")),
		PostID:      doc.String("post_id"),
		Content:     doc.String("content"),
		ActorName:   doc.String("actor_name"),
		Read:        doc.Bool("read"),
		CreatedAt:   doc.Time("created_at"),
	}
}
