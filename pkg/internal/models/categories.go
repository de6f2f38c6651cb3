package models

import (
	"fmt"
	"strings"

	"github.com/samber/lo"
)

type Category string

const (
	CategoryCampusLife = Category("Campus Life")
	CategoryLove       = Category("Love")
	CategoryFood       = Category("Food")
	CategoryStudy      = Category("Study")
)

type CategoryInfo struct {
	Alias string   `json:"alias"`
	Name  Category `json:"name"`
}

var Categories = []CategoryInfo{
	{Alias: "campus-life", Name: CategoryCampusLife},
	{Alias: "love", Name: CategoryLove},
	{Alias: "food", Name: CategoryFood},
	{Alias: "study", Name: CategoryStudy},
}

func (v Category) Valid() bool {
	return lo.ContainsBy(Categories, func(item CategoryInfo) bool {
		return item.Name == v
	})
}

// ParseCategory accepts either the display name or the alias, case-insensitively.
func ParseCategory(raw string) (Category, error) {
	raw = strings.TrimSpace(raw)
	info, ok := lo.Find(Categories, func(item CategoryInfo) bool {
		return strings.EqualFold(string(item.Name), raw) || strings.EqualFold(item.Alias, raw)
	})
	if !ok {
		return "", fmt.Errorf("%w: unknown category %q", ErrValidation, raw)
	}
	return info.Name, nil
}

type Mood string

const (
	MoodHappy = Mood("happy")
	MoodSad   = Mood("sad")
	MoodAngry = Mood("angry")
	MoodFunny = Mood("funny")
)

var Moods = []Mood{MoodHappy, MoodSad, MoodAngry, MoodFunny}

func (v Mood) Valid() bool {
	return lo.Contains(Moods, v)
}

func ParseMood(raw string) (Mood, error) {
	mood := Mood(strings.ToLower(strings.TrimSpace(raw)))
	if !mood.Valid() {
		return "", fmt.Errorf("%w: unknown mood %q", ErrValidation, raw)
	}
	return mood, nil
}

type NotificationType string

const (
	NotificationConfession = NotificationType("confession")
	NotificationComment    = NotificationType("comment")
	NotificationLike       = NotificationType("like")
	NotificationMention    = NotificationType("mention")
)

var NotificationTypes = []NotificationType{
	NotificationConfession,
	NotificationComment,
	NotificationLike,
	NotificationMention,
}

func (v NotificationType) Valid() bool {
	return lo.Contains(NotificationTypes, v)
}
