package feeds

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"sync"

	"git.solsynth.dev/hypernet/confession/pkg/internal/identity"
	"git.solsynth.dev/hypernet/confession/pkg/internal/models"
	"git.solsynth.dev/hypernet/confession/pkg/internal/services"
	"git.solsynth.dev/hypernet/confession/pkg/internal/store"
	"github.com/rs/zerolog/log"
	"github.com/samber/lo"
)

// Item is a post as one viewer sees it.
type Item struct {
	models.Post
	Liked bool `json:"liked"`
}

type Options struct {
	Filter models.PostFilter
	Sort   models.PostSortMode
	Take   int
	Viewer *models.Actor
	// OnError receives subscription failures and rejected optimistic commands.
	OnError func(error)
}

// overlay is the expected like state of a post while toggles are in flight.
type overlay struct {
	liked   bool
	pending int
}

// Assembler keeps an ordered, live view of posts for one viewer and pushes
// every new version to its observers.
type Assembler struct {
	db    store.Store
	opts  Options
	queue *Queue

	mu           sync.Mutex
	ctx          context.Context
	generation   int
	viewer       *models.Actor
	posts        []models.Post
	liked        map[string]bool
	overlays     map[string]*overlay
	items        []Item
	loaded       bool
	started      bool
	closed       bool
	observers    map[int]func(items []Item)
	nextObserver int
	postsUnsub   store.Unsubscribe
	likesUnsub   store.Unsubscribe
	authUnsub    identity.Unsubscribe

	signal chan struct{}
	done   chan struct{}
}

func New(db store.Store, opts Options) *Assembler {
	if len(opts.Sort) == 0 {
		opts.Sort = models.PostSortRecency
	}
	a := &Assembler{
		db:        db,
		opts:      opts,
		ctx:       context.Background(),
		liked:     make(map[string]bool),
		overlays:  make(map[string]*overlay),
		observers: make(map[int]func(items []Item)),
		signal:    make(chan struct{}, 1),
		done:      make(chan struct{}),
	}
	if opts.Viewer != nil {
		a.viewer = lo.ToPtr(*opts.Viewer)
	}
	a.queue = NewQueue(a.report)
	return a
}

// Start subscribes to the posts and, with a viewer, to the viewer's likes.
func (a *Assembler) Start(ctx context.Context) error {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return ErrClosed
	}
	if a.started {
		a.mu.Unlock()
		return fmt.Errorf("feed already started")
	}
	a.started = true
	a.ctx = ctx
	a.mu.Unlock()

	go a.deliver()
	return a.subscribe(ctx)
}

func (a *Assembler) subscribe(ctx context.Context) error {
	a.mu.Lock()
	a.generation++
	generation := a.generation
	viewerID := a.viewerID()
	stale := []store.Unsubscribe{a.postsUnsub, a.likesUnsub}
	a.postsUnsub, a.likesUnsub = nil, nil
	a.mu.Unlock()
	stopAll(stale...)

	filter := services.ViewerFilter(a.opts.Filter, viewerID)
	postsUnsub, err := services.SubscribePosts(ctx, a.db, filter, a.opts.Sort, a.opts.Take, func(posts []models.Post, err error) {
		a.onPosts(generation, posts, err)
	})
	if err != nil {
		return err
	}

	var likesUnsub store.Unsubscribe
	if len(viewerID) > 0 {
		likesUnsub, err = services.SubscribeLikedPostIDs(ctx, a.db, viewerID, func(liked map[string]bool, err error) {
			a.onLikes(generation, liked, err)
		})
		if err != nil {
			postsUnsub()
			return err
		}
	}

	a.mu.Lock()
	if a.closed || a.generation != generation {
		a.mu.Unlock()
		stopAll(postsUnsub, likesUnsub)
		return nil
	}
	a.postsUnsub, a.likesUnsub = postsUnsub, likesUnsub
	a.mu.Unlock()
	return nil
}

func stopAll(handles ...store.Unsubscribe) {
	for _, handle := range handles {
		if handle != nil {
			handle()
		}
	}
}

func (a *Assembler) viewerID() string {
	if a.viewer == nil {
		return ""
	}
	return a.viewer.ID
}

func (a *Assembler) onPosts(generation int, posts []models.Post, err error) {
	if err != nil {
		a.report(fmt.Errorf("unable to load posts: %w", err))
		return
	}

	a.mu.Lock()
	if a.closed || a.generation != generation {
		a.mu.Unlock()
		return
	}
	a.posts = posts
	a.loaded = true
	a.rebuild()
	a.mu.Unlock()
	a.publish()
}

func (a *Assembler) onLikes(generation int, liked map[string]bool, err error) {
	if err != nil {
		a.report(fmt.Errorf("unable to load likes: %w", err))
		return
	}

	a.mu.Lock()
	if a.closed || a.generation != generation {
		a.mu.Unlock()
		return
	}
	a.liked = liked
	a.rebuild()
	a.mu.Unlock()
	a.publish()
}

func (a *Assembler) report(err error) {
	log.Warn().Err(err).Msg("An error occurred in a feed...")
	if a.opts.OnError != nil {
		a.opts.OnError(err)
	}
}

// rebuild recomputes the materialized items. Callers hold a.mu.
func (a *Assembler) rebuild() {
	viewerID := a.viewerID()
	items := make([]Item, 0, len(a.posts))
	for _, post := range a.posts {
		item := Item{Post: post.Redacted(viewerID), Liked: a.liked[post.ID]}
		if ov, ok := a.overlays[post.ID]; ok && ov.liked != item.Liked {
			if ov.liked {
				item.LikeCount++
			} else {
				item.LikeCount = max(item.LikeCount-1, 0)
			}
			item.Liked = ov.liked
		}
		items = append(items, item)
	}
	slices.SortStableFunc(items, compareItems(a.opts.Sort))
	a.items = items
}

// compareItems matches the store order: the sort field descending, then
// newest first, then id descending.
func compareItems(sort models.PostSortMode) func(a, b Item) int {
	return func(a, b Item) int {
		if sort == models.PostSortPopularity {
			if c := cmp.Compare(b.LikeCount, a.LikeCount); c != 0 {
				return c
			}
		}
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(b.ID, a.ID)
	}
}

func (a *Assembler) publish() {
	select {
	case a.signal <- struct{}{}:
	default:
	}
}

func (a *Assembler) deliver() {
	for {
		select {
		case <-a.signal:
		case <-a.done:
			return
		}

		a.mu.Lock()
		if a.closed {
			a.mu.Unlock()
			return
		}
		if !a.loaded {
			a.mu.Unlock()
			continue
		}
		items := a.items
		observers := lo.Values(a.observers)
		a.mu.Unlock()

		for _, fn := range observers {
			if a.isClosed() {
				return
			}
			fn(slices.Clone(items))
		}
	}
}

func (a *Assembler) isClosed() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.closed
}

// Observe registers fn for every new version of the feed. The current
// version is delivered too once loaded.
func (a *Assembler) Observe(fn func(items []Item)) func() {
	a.mu.Lock()
	id := a.nextObserver
	a.nextObserver++
	a.observers[id] = fn
	a.mu.Unlock()
	a.publish()

	return func() {
		a.mu.Lock()
		delete(a.observers, id)
		a.mu.Unlock()
	}
}

// Items returns the current version, or nil before the first snapshot arrived.
func (a *Assembler) Items() []Item {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.loaded {
		return nil
	}
	return slices.Clone(a.items)
}

// Search filters the loaded items only.
func (a *Assembler) Search(probe string) []Item {
	return filterItems(a.Items(), probe)
}

// ToggleLike flips the viewer's like locally at once and confirms it in the background.
func (a *Assembler) ToggleLike(postID string) error {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return ErrClosed
	}
	if a.viewer == nil || len(a.viewer.ID) == 0 {
		a.mu.Unlock()
		return fmt.Errorf("%w: sign in to like posts", models.ErrPermission)
	}
	viewer := *a.viewer
	a.mu.Unlock()

	return a.queue.Enqueue(&likeToggle{feed: a, postID: postID, viewer: viewer})
}

// Wait blocks until every queued toggle was confirmed or reverted.
func (a *Assembler) Wait() {
	a.queue.Wait()
}

// BindIdentity follows the provider's current user, re-subscribing the
// viewer's likes on every change.
func (a *Assembler) BindIdentity(provider identity.Provider) error {
	a.mu.Lock()
	ctx := a.ctx
	a.mu.Unlock()

	current, err := provider.CurrentUser(ctx)
	if err != nil {
		return err
	}
	a.setViewer(current)

	unsubscribe := provider.OnAuthChange(a.setViewer)
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		unsubscribe()
		return ErrClosed
	}
	previous := a.authUnsub
	a.authUnsub = unsubscribe
	a.mu.Unlock()
	if previous != nil {
		previous()
	}
	return nil
}

func (a *Assembler) setViewer(actor *models.Actor) {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return
	}
	nextID := ""
	if actor != nil {
		nextID = actor.ID
	}
	if nextID == a.viewerID() {
		a.mu.Unlock()
		return
	}
	if actor != nil {
		a.viewer = lo.ToPtr(*actor)
	} else {
		a.viewer = nil
	}
	a.liked = make(map[string]bool)
	a.overlays = make(map[string]*overlay)
	a.rebuild()
	started, ctx := a.started, a.ctx
	a.mu.Unlock()

	log.Debug().Str("viewer", nextID).Msg("Feed viewer changed, re-subscribing...")
	a.publish()
	if started {
		if err := a.subscribe(ctx); err != nil {
			a.report(fmt.Errorf("unable to re-subscribe feed: %w", err))
		}
	}
}

// Close tears every subscription down. Nothing is delivered afterwards.
func (a *Assembler) Close() {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return
	}
	a.closed = true
	handles := []store.Unsubscribe{a.postsUnsub, a.likesUnsub}
	authUnsub := a.authUnsub
	a.postsUnsub, a.likesUnsub, a.authUnsub = nil, nil, nil
	close(a.done)
	a.mu.Unlock()

	stopAll(handles...)
	if authUnsub != nil {
		authUnsub()
	}
	a.queue.Close()
}

// likeToggle is the optimistic like command of one viewer on one post.
type likeToggle struct {
	feed   *Assembler
	postID string
	viewer models.Actor
}

func (c *likeToggle) Apply() {
	a := c.feed
	a.mu.Lock()
	ov, ok := a.overlays[c.postID]
	if !ok {
		ov = &overlay{liked: a.liked[c.postID]}
		a.overlays[c.postID] = ov
	}
	ov.liked = !ov.liked
	ov.pending++
	a.rebuild()
	a.mu.Unlock()
	a.publish()
}

// Revert drops this toggle from the expected state. Later toggles still in
// the queue flip relative to the real state, so the expectation flips too.
func (c *likeToggle) Revert() {
	a := c.feed
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return
	}
	if ov, ok := a.overlays[c.postID]; ok {
		ov.liked = !ov.liked
		ov.pending--
		if ov.pending <= 0 {
			delete(a.overlays, c.postID)
		}
	}
	a.rebuild()
	a.mu.Unlock()
	a.publish()
}

func (c *likeToggle) Execute(ctx context.Context) error {
	_, err := services.ToggleLike(ctx, c.feed.db, c.postID, c.viewer)
	return err
}

// Settle refreshes the post and the like state from the store before the
// overlay goes away, so the confirmed like is not counted twice or missed.
func (c *likeToggle) Settle() {
	a := c.feed
	a.mu.Lock()
	ctx := a.ctx
	a.mu.Unlock()

	post, postErr := services.GetPost(ctx, a.db, c.postID)
	liked, likedErr := services.IsLiked(ctx, a.db, c.postID, c.viewer.ID)

	a.mu.Lock()
	defer a.publish()
	defer a.mu.Unlock()
	if a.closed || a.viewerID() != c.viewer.ID {
		return
	}
	if postErr == nil {
		for idx := range a.posts {
			if a.posts[idx].ID == post.ID {
				a.posts[idx] = post
			}
		}
	}
	if likedErr == nil {
		a.liked = withLiked(a.liked, c.postID, liked)
	}
	if ov, ok := a.overlays[c.postID]; ok {
		ov.pending--
		if ov.pending <= 0 {
			delete(a.overlays, c.postID)
		}
	}
	a.rebuild()
}

// withLiked returns a copy of set with key updated, leaving the delivered map untouched.
func withLiked(set map[string]bool, key string, value bool) map[string]bool {
	out := lo.Assign(set)
	if value {
		out[key] = true
	} else {
		delete(out, key)
	}
	return out
}
