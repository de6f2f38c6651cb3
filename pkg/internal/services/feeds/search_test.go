package feeds

import (
	"testing"

	"git.solsynth.dev/hypernet/confession/pkg/internal/models"
	"github.com/stretchr/testify/assert"
)

func TestMatch(t *testing.T) {
	post := models.Post{Content: "Crying over Ramen again", Category: models.CategoryCampusLife}

	tests := []struct {
		probe string
		want  bool
	}{
		{"ramen", true},
		{"  CRYING ", true},
		{"campus", true},
		{"life", true},
		{"", true},
		{"sushi", false},
		{"love", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Match(post, tt.probe), tt.probe)
	}
}

func TestFilterPosts(t *testing.T) {
	posts := []models.Post{
		{ID: "1", Content: "exam tomorrow", Category: models.CategoryStudy},
		{ID: "2", Content: "cafeteria pasta", Category: models.CategoryFood},
		{ID: "3", Content: "study date", Category: models.CategoryLove},
	}
	assert.Equal(t, []models.Post{posts[0], posts[2]}, FilterPosts(posts, "Study"))
	assert.Empty(t, FilterPosts(posts, "physics"))
}
