package store

import (
	"context"
	"sync"
	"testing"
	"time"

	"git.solsynth.dev/hypernet/confession/pkg/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// runContract exercises the behaviour every adapter has to share.
func runContract(t *testing.T, newStore func(t *testing.T) Store) {
	t.Run("create and get", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		id, err := s.Create(ctx, "posts", models.Document{"content": "hello", "like_count": int64(0)})
		require.NoError(t, err)
		require.NotEmpty(t, id)

		doc, err := s.Get(ctx, "posts", id)
		require.NoError(t, err)
		assert.Equal(t, "hello", doc.String("content"))
		assert.Equal(t, int64(0), doc.Int("like_count"))

		_, err = s.Get(ctx, "posts", "missing")
		assert.ErrorIs(t, err, models.ErrNotFound)
	})

	t.Run("insert rejects taken ids", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		require.NoError(t, s.Insert(ctx, "likes", "like-1", models.Document{"post_id": "p"}))
		err := s.Insert(ctx, "likes", "like-1", models.Document{"post_id": "p"})
		assert.ErrorIs(t, err, models.ErrAlreadyExists)
	})

	t.Run("update merges shallowly", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		id, err := s.Create(ctx, "users", models.Document{"username": "alice", "email": "a@example.com"})
		require.NoError(t, err)
		require.NoError(t, s.Update(ctx, "users", id, models.Document{"username": "alicia"}))

		doc, err := s.Get(ctx, "users", id)
		require.NoError(t, err)
		assert.Equal(t, "alicia", doc.String("username"))
		assert.Equal(t, "a@example.com", doc.String("email"))

		assert.ErrorIs(t, s.Update(ctx, "users", "missing", models.Document{"x": 1}), models.ErrNotFound)
	})

	t.Run("delete", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		id, err := s.Create(ctx, "posts", models.Document{"content": "bye"})
		require.NoError(t, err)
		require.NoError(t, s.Delete(ctx, "posts", id))
		_, err = s.Get(ctx, "posts", id)
		assert.ErrorIs(t, err, models.ErrNotFound)
		assert.ErrorIs(t, s.Delete(ctx, "posts", id), models.ErrNotFound)
	})

	t.Run("increment is clamped at zero", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		id, err := s.Create(ctx, "posts", models.Document{"like_count": int64(1)})
		require.NoError(t, err)

		require.NoError(t, s.Increment(ctx, "posts", id, "like_count", 2))
		require.NoError(t, s.Increment(ctx, "posts", id, "share_count", 1))
		doc, err := s.Get(ctx, "posts", id)
		require.NoError(t, err)
		assert.Equal(t, int64(3), doc.Int("like_count"))
		assert.Equal(t, int64(1), doc.Int("share_count"))

		require.NoError(t, s.Increment(ctx, "posts", id, "like_count", -10))
		doc, err = s.Get(ctx, "posts", id)
		require.NoError(t, err)
		assert.Equal(t, int64(0), doc.Int("like_count"))

		assert.ErrorIs(t, s.Increment(ctx, "posts", "missing", "like_count", 1), models.ErrNotFound)
	})

	t.Run("concurrent increments are not lost", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		id, err := s.Create(ctx, "posts", models.Document{"like_count": int64(0)})
		require.NoError(t, err)

		var wg sync.WaitGroup
		for i := 0; i < 20; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				assert.NoError(t, s.Increment(ctx, "posts", id, "like_count", 1))
			}()
		}
		wg.Wait()

		doc, err := s.Get(ctx, "posts", id)
		require.NoError(t, err)
		assert.Equal(t, int64(20), doc.Int("like_count"))
	})

	t.Run("query filters orders and limits", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		seed := []models.Document{
			{"category": "Food", "like_count": int64(2), "created_at": int64(100)},
			{"category": "Food", "like_count": int64(5), "created_at": int64(200)},
			{"category": "Love", "like_count": int64(9), "created_at": int64(300)},
			{"category": "Food", "like_count": int64(2), "created_at": int64(400)},
		}
		for _, doc := range seed {
			_, err := s.Create(ctx, "posts", doc)
			require.NoError(t, err)
		}

		snapshot, err := s.Query(ctx, "posts", Query{}.
			Where("category", OpEq, "Food").
			OrderBy("like_count", true).
			OrderBy("created_at", true))
		require.NoError(t, err)
		require.Len(t, snapshot, 3)
		assert.Equal(t, int64(200), snapshot[0].Data.Int("created_at"))
		assert.Equal(t, int64(400), snapshot[1].Data.Int("created_at"))
		assert.Equal(t, int64(100), snapshot[2].Data.Int("created_at"))

		snapshot, err = s.Query(ctx, "posts", Query{}.
			Where("created_at", OpGte, int64(200)).
			Where("created_at", OpLt, int64(400)).
			OrderBy("created_at", false))
		require.NoError(t, err)
		require.Len(t, snapshot, 2)
		assert.Equal(t, int64(200), snapshot[0].Data.Int("created_at"))

		snapshot, err = s.Query(ctx, "posts", Query{}.OrderBy("created_at", true).Take(1))
		require.NoError(t, err)
		require.Len(t, snapshot, 1)
		assert.Equal(t, int64(400), snapshot[0].Data.Int("created_at"))
	})

	t.Run("subscribe delivers initial and changed snapshots", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		var mu sync.Mutex
		var sizes []int
		unsubscribe, err := s.Subscribe(ctx, "comments", Query{}.Where("post_id", OpEq, "p1"), func(snapshot Snapshot, err error) {
			assert.NoError(t, err)
			mu.Lock()
			sizes = append(sizes, len(snapshot))
			mu.Unlock()
		})
		require.NoError(t, err)
		defer unsubscribe()

		last := func() int {
			mu.Lock()
			defer mu.Unlock()
			if len(sizes) == 0 {
				return -1
			}
			return sizes[len(sizes)-1]
		}

		assert.Eventually(t, func() bool { return last() == 0 }, 5*time.Second, 10*time.Millisecond)

		_, err = s.Create(ctx, "comments", models.Document{"post_id": "p1"})
		require.NoError(t, err)
		_, err = s.Create(ctx, "comments", models.Document{"post_id": "p2"})
		require.NoError(t, err)

		assert.Eventually(t, func() bool { return last() == 1 }, 5*time.Second, 10*time.Millisecond)
	})

	t.Run("no delivery after unsubscribe", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		var mu sync.Mutex
		calls := 0
		unsubscribe, err := s.Subscribe(ctx, "posts", Query{}, func(Snapshot, error) {
			mu.Lock()
			calls++
			mu.Unlock()
		})
		require.NoError(t, err)

		assert.Eventually(t, func() bool {
			mu.Lock()
			defer mu.Unlock()
			return calls == 1
		}, 5*time.Second, 10*time.Millisecond)

		unsubscribe()
		unsubscribe()
		_, err = s.Create(ctx, "posts", models.Document{"content": "late"})
		require.NoError(t, err)

		time.Sleep(100 * time.Millisecond)
		mu.Lock()
		defer mu.Unlock()
		assert.Equal(t, 1, calls)
	})
}
