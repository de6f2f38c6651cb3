package store

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type recordingBroadcaster struct {
	mu          sync.Mutex
	collections []string
}

func (b *recordingBroadcaster) Publish(collection string) {
	b.mu.Lock()
	b.collections = append(b.collections, collection)
	b.mu.Unlock()
}

func TestHubCoalescesBursts(t *testing.T) {
	hub := NewHub()
	release := make(chan struct{})

	var fetches atomic.Int32
	stop := hub.Watch(context.Background(), "posts", func(ctx context.Context) (Snapshot, error) {
		if fetches.Add(1) == 2 {
			<-release
		}
		return nil, nil
	}, func(Snapshot, error) {})
	defer stop()

	assert.Eventually(t, func() bool { return fetches.Load() == 1 }, time.Second, 5*time.Millisecond)

	// The second fetch blocks; every signal sent meanwhile collapses into one.
	hub.Deliver("posts")
	assert.Eventually(t, func() bool { return fetches.Load() == 2 }, time.Second, 5*time.Millisecond)
	for i := 0; i < 50; i++ {
		hub.Deliver("posts")
	}
	close(release)

	assert.Eventually(t, func() bool { return fetches.Load() == 3 }, time.Second, 5*time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int32(3), fetches.Load())
}

func TestHubNotifyBroadcastsDeliverDoesNot(t *testing.T) {
	hub := NewHub()
	broadcaster := &recordingBroadcaster{}
	hub.SetBroadcaster(broadcaster)

	hub.Notify("likes")
	hub.Deliver("posts")

	broadcaster.mu.Lock()
	defer broadcaster.mu.Unlock()
	assert.Equal(t, []string{"likes"}, broadcaster.collections)
}

func TestHubSignalsOnlyItsCollection(t *testing.T) {
	hub := NewHub()

	var posts, likes atomic.Int32
	stopPosts := hub.Watch(context.Background(), "posts", func(context.Context) (Snapshot, error) { return nil, nil },
		func(Snapshot, error) { posts.Add(1) })
	stopLikes := hub.Watch(context.Background(), "likes", func(context.Context) (Snapshot, error) { return nil, nil },
		func(Snapshot, error) { likes.Add(1) })
	defer stopPosts()
	defer stopLikes()

	assert.Eventually(t, func() bool { return posts.Load() == 1 && likes.Load() == 1 }, time.Second, 5*time.Millisecond)

	hub.Deliver("posts")
	assert.Eventually(t, func() bool { return posts.Load() == 2 }, time.Second, 5*time.Millisecond)
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, int32(1), likes.Load())
}

func TestHubCloseStopsWatchers(t *testing.T) {
	hub := NewHub()
	for i := 0; i < 3; i++ {
		hub.Watch(context.Background(), "posts", func(context.Context) (Snapshot, error) { return nil, nil }, func(Snapshot, error) {})
	}
	assert.Eventually(t, func() bool { return hub.Count("posts") == 3 }, time.Second, 5*time.Millisecond)

	hub.Close()
	assert.Eventually(t, func() bool { return hub.Count("posts") == 0 }, time.Second, 5*time.Millisecond)
}

func TestHubStopWaitsForDeliveryInProgress(t *testing.T) {
	hub := NewHub()
	entered := make(chan struct{})
	release := make(chan struct{})

	var calls atomic.Int32
	stop := hub.Watch(context.Background(), "posts", func(context.Context) (Snapshot, error) { return nil, nil },
		func(Snapshot, error) {
			if calls.Add(1) == 2 {
				close(entered)
				<-release
			}
		})
	assert.Eventually(t, func() bool { return calls.Load() == 1 }, time.Second, 5*time.Millisecond)

	hub.Deliver("posts")
	<-entered

	stopped := make(chan struct{})
	go func() {
		stop()
		close(stopped)
	}()

	select {
	case <-stopped:
		t.Fatal("stop returned while a delivery was running")
	case <-time.After(30 * time.Millisecond):
	}

	close(release)
	<-stopped

	hub.Deliver("posts")
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, int32(2), calls.Load())
	assert.Eventually(t, func() bool { return hub.Count("posts") == 0 }, time.Second, 5*time.Millisecond)
}
