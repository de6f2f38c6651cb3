package feeds

import (
	"strings"

	"git.solsynth.dev/hypernet/confession/pkg/internal/models"
	"github.com/samber/lo"
)

// Match reports whether probe occurs in the content or category of post, ignoring case.
func Match(post models.Post, probe string) bool {
	probe = strings.ToLower(strings.TrimSpace(probe))
	if len(probe) == 0 {
		return true
	}
	return strings.Contains(strings.ToLower(post.Content), probe) ||
		strings.Contains(strings.ToLower(string(post.Category)), probe)
}

// FilterPosts scans only the posts it is given, so results never reach
// beyond the page that was loaded.
func FilterPosts(posts []models.Post, probe string) []models.Post {
	return lo.Filter(posts, func(item models.Post, _ int) bool {
		return Match(item, probe)
	})
}

func filterItems(items []Item, probe string) []Item {
	return lo.Filter(items, func(item Item, _ int) bool {
		return Match(item.Post, probe)
	})
}
