package http

import (
	"bytes"
	"context"
	"io"
	nethttp "net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	localCache "git.solsynth.dev/hypernet/confession/pkg/internal/cache"
	"git.solsynth.dev/hypernet/confession/pkg/internal/identity"
	"git.solsynth.dev/hypernet/confession/pkg/internal/models"
	"git.solsynth.dev/hypernet/confession/pkg/internal/store"
	jsoniter "github.com/json-iterator/go"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	zerolog.SetGlobalLevel(zerolog.Disabled)
	if err := localCache.NewStore(); err != nil {
		panic(err)
	}
	IVerifier = identity.NewVerifier("test-secret", "")
	viper.Set("security.admins", []string{"admin"})
	os.Exit(m.Run())
}

type harness struct {
	t      *testing.T
	server *App
}

func newHarness(t *testing.T) *harness {
	db := store.NewMemory(nil)
	store.C = db
	t.Cleanup(func() { _ = db.Close() })
	return &harness{t: t, server: NewServer()}
}

func (h *harness) token(userID string) string {
	token, err := IVerifier.Sign(models.Actor{ID: userID, DisplayName: "Name of " + userID}, time.Hour)
	require.NoError(h.t, err)
	return token
}

func (h *harness) do(method, path, userID string, body any) (*nethttp.Response, []byte) {
	h.t.Helper()
	var reader io.Reader
	if body != nil {
		payload, err := jsoniter.Marshal(body)
		require.NoError(h.t, err)
		reader = bytes.NewReader(payload)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if len(userID) > 0 {
		req.Header.Set("Authorization", "Bearer "+h.token(userID))
	}

	resp, err := h.server.app.Test(req, -1)
	require.NoError(h.t, err)
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(h.t, err)
	return resp, raw
}

func decode[T any](t *testing.T, raw []byte) T {
	t.Helper()
	var out T
	require.NoError(t, jsoniter.Unmarshal(raw, &out), string(raw))
	return out
}

type listing[T any] struct {
	Count int `json:"count"`
	Data  []T `json:"data"`
}

type postItem struct {
	models.Post
	Liked bool `json:"liked"`
}

func (h *harness) createPost(userID string, body map[string]any) models.Post {
	h.t.Helper()
	resp, raw := h.do(nethttp.MethodPost, "/api/posts", userID, body)
	require.Equal(h.t, nethttp.StatusOK, resp.StatusCode, string(raw))
	return decode[models.Post](h.t, raw)
}

func TestPostLifecycle(t *testing.T) {
	h := newHarness(t)
	post := h.createPost("u1", map[string]any{"content": "  I never did the reading  ", "category": "study", "mood": "Sad"})
	assert.Equal(t, "I never did the reading", post.Content)
	assert.Equal(t, models.CategoryStudy, post.Category)
	assert.Zero(t, post.LikeCount)

	path := "/api/posts/" + post.ID

	resp, _ := h.do(nethttp.MethodPost, path+"/react", "u2", nil)
	assert.Equal(t, nethttp.StatusCreated, resp.StatusCode)
	resp, _ = h.do(nethttp.MethodPost, path+"/react", "u2", nil)
	assert.Equal(t, nethttp.StatusNoContent, resp.StatusCode)
	resp, _ = h.do(nethttp.MethodPost, path+"/react", "u2", nil)
	assert.Equal(t, nethttp.StatusCreated, resp.StatusCode)

	resp, raw := h.do(nethttp.MethodGet, path+"/react", "u2", nil)
	require.Equal(t, nethttp.StatusOK, resp.StatusCode)
	assert.True(t, decode[map[string]bool](t, raw)["liked"])

	resp, raw = h.do(nethttp.MethodGet, path, "u2", nil)
	require.Equal(t, nethttp.StatusOK, resp.StatusCode)
	item := decode[postItem](t, raw)
	assert.EqualValues(t, 1, item.LikeCount)
	assert.True(t, item.Liked)

	resp, _ = h.do(nethttp.MethodPost, path+"/replies", "u2", map[string]any{"content": "same"})
	require.Equal(t, nethttp.StatusOK, resp.StatusCode)
	resp, raw = h.do(nethttp.MethodGet, path+"/replies", "", nil)
	require.Equal(t, nethttp.StatusOK, resp.StatusCode)
	replies := decode[listing[models.Comment]](t, raw)
	require.Equal(t, 1, replies.Count)
	assert.Equal(t, "same", replies.Data[0].Content)

	resp, _ = h.do(nethttp.MethodPost, path+"/share", "", nil)
	assert.Equal(t, nethttp.StatusOK, resp.StatusCode)

	resp, raw = h.do(nethttp.MethodGet, path, "", nil)
	require.Equal(t, nethttp.StatusOK, resp.StatusCode)
	item = decode[postItem](t, raw)
	assert.EqualValues(t, 1, item.CommentCount)
	assert.EqualValues(t, 1, item.ShareCount)
	assert.False(t, item.Liked)

	resp, _ = h.do(nethttp.MethodDelete, path, "u2", nil)
	assert.Equal(t, nethttp.StatusForbidden, resp.StatusCode)
	resp, _ = h.do(nethttp.MethodGet, path, "", nil)
	assert.Equal(t, nethttp.StatusOK, resp.StatusCode, "a rejected delete leaves the post")

	resp, _ = h.do(nethttp.MethodDelete, path, "u1", nil)
	assert.Equal(t, nethttp.StatusOK, resp.StatusCode)
	resp, _ = h.do(nethttp.MethodGet, path, "", nil)
	assert.Equal(t, nethttp.StatusNotFound, resp.StatusCode)
	resp, _ = h.do(nethttp.MethodPost, path+"/react", "u2", nil)
	assert.Equal(t, nethttp.StatusNotFound, resp.StatusCode)
}

func TestCreatePostRejects(t *testing.T) {
	h := newHarness(t)

	resp, _ := h.do(nethttp.MethodPost, "/api/posts", "", map[string]any{"content": "hi", "category": "Food"})
	assert.Equal(t, nethttp.StatusUnauthorized, resp.StatusCode)

	req := httptest.NewRequest(nethttp.MethodGet, "/api/posts", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	bad, err := h.server.app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, nethttp.StatusUnauthorized, bad.StatusCode)

	resp, raw := h.do(nethttp.MethodPost, "/api/posts", "u1", map[string]any{"content": "", "category": "Sports"})
	require.Equal(t, nethttp.StatusBadRequest, resp.StatusCode)
	body := decode[models.ValidationError](t, raw)
	fields := make([]string, 0, len(body.Errors))
	for _, item := range body.Errors {
		fields = append(fields, item.Field)
	}
	assert.ElementsMatch(t, []string{"content", "category"}, fields)

	resp, _ = h.do(nethttp.MethodPost, "/api/posts", "u1", map[string]any{"content": "hi", "category": "Food", "mood": "bored"})
	assert.Equal(t, nethttp.StatusBadRequest, resp.StatusCode)
}

func TestListAndSearchPosts(t *testing.T) {
	h := newHarness(t)
	quiet := h.createPost("u1", map[string]any{"content": "quiet pasta", "category": "Food"})
	time.Sleep(2 * time.Millisecond)
	loud := h.createPost("u1", map[string]any{"content": "loud exam", "category": "Study"})
	time.Sleep(2 * time.Millisecond)
	liked := h.createPost("u2", map[string]any{"content": "liked pasta", "category": "Food"})
	resp, _ := h.do(nethttp.MethodPost, "/api/posts/"+liked.ID+"/react", "u1", nil)
	require.Equal(t, nethttp.StatusCreated, resp.StatusCode)

	resp, raw := h.do(nethttp.MethodGet, "/api/posts", "", nil)
	require.Equal(t, nethttp.StatusOK, resp.StatusCode)
	recent := decode[listing[postItem]](t, raw)
	require.Equal(t, 3, recent.Count)
	assert.Equal(t, []string{liked.ID, loud.ID, quiet.ID}, ids(recent.Data))

	resp, raw = h.do(nethttp.MethodGet, "/api/posts?sort=popularity&category=food", "u1", nil)
	require.Equal(t, nethttp.StatusOK, resp.StatusCode)
	popular := decode[listing[postItem]](t, raw)
	assert.Equal(t, []string{liked.ID, quiet.ID}, ids(popular.Data))
	assert.True(t, popular.Data[0].Liked)

	resp, _ = h.do(nethttp.MethodGet, "/api/posts?sort=random", "", nil)
	assert.Equal(t, nethttp.StatusBadRequest, resp.StatusCode)
	resp, _ = h.do(nethttp.MethodGet, "/api/posts?category=sports", "", nil)
	assert.Equal(t, nethttp.StatusBadRequest, resp.StatusCode)

	resp, _ = h.do(nethttp.MethodGet, "/api/posts/search", "", nil)
	assert.Equal(t, nethttp.StatusBadRequest, resp.StatusCode)
	resp, raw = h.do(nethttp.MethodGet, "/api/posts/search?probe=PASTA", "", nil)
	require.Equal(t, nethttp.StatusOK, resp.StatusCode)
	assert.Equal(t, []string{liked.ID, quiet.ID}, ids(decode[listing[postItem]](t, raw).Data))
	resp, raw = h.do(nethttp.MethodGet, "/api/posts/search?probe=study", "", nil)
	require.Equal(t, nethttp.StatusOK, resp.StatusCode)
	assert.Equal(t, []string{loud.ID}, ids(decode[listing[postItem]](t, raw).Data))
}

func ids(items []postItem) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		out = append(out, item.ID)
	}
	return out
}

func TestAnonymousPostsAreRedacted(t *testing.T) {
	h := newHarness(t)
	post := h.createPost("u1", map[string]any{"content": "secret", "category": "Love", "is_anonymous": true})

	resp, raw := h.do(nethttp.MethodGet, "/api/posts/"+post.ID, "u2", nil)
	require.Equal(t, nethttp.StatusOK, resp.StatusCode)
	item := decode[postItem](t, raw)
	assert.Nil(t, item.AuthorID)
	assert.Equal(t, models.AnonymousName, item.Username)

	resp, raw = h.do(nethttp.MethodGet, "/api/posts/"+post.ID, "u1", nil)
	require.Equal(t, nethttp.StatusOK, resp.StatusCode)
	item = decode[postItem](t, raw)
	require.NotNil(t, item.AuthorID)
	assert.Equal(t, "u1", *item.AuthorID)

	resp, raw = h.do(nethttp.MethodGet, "/api/posts?author=u1", "u2", nil)
	require.Equal(t, nethttp.StatusOK, resp.StatusCode)
	assert.Zero(t, decode[listing[postItem]](t, raw).Count)
	resp, raw = h.do(nethttp.MethodGet, "/api/posts?author=u1", "u1", nil)
	require.Equal(t, nethttp.StatusOK, resp.StatusCode)
	assert.Equal(t, 1, decode[listing[postItem]](t, raw).Count)
}

func TestUsersAndNotifications(t *testing.T) {
	h := newHarness(t)

	resp, raw := h.do(nethttp.MethodPost, "/api/users", "http-author", map[string]any{"username": "author_x", "email": "author@example.com"})
	require.Equal(t, nethttp.StatusOK, resp.StatusCode, string(raw))
	resp, _ = h.do(nethttp.MethodPost, "/api/users", "http-author", map[string]any{"username": "author_y", "email": "author@example.com"})
	assert.Equal(t, nethttp.StatusConflict, resp.StatusCode)

	resp, raw = h.do(nethttp.MethodGet, "/api/users/me", "http-author", nil)
	require.Equal(t, nethttp.StatusOK, resp.StatusCode)
	assert.Equal(t, "author@example.com", decode[models.User](t, raw).Email)

	resp, raw = h.do(nethttp.MethodGet, "/api/users/http-author", "someone", nil)
	require.Equal(t, nethttp.StatusOK, resp.StatusCode)
	public := decode[models.User](t, raw)
	assert.Equal(t, "author_x", public.Username)
	assert.Empty(t, public.Email)

	resp, raw = h.do(nethttp.MethodPut, "/api/users/me", "http-author", map[string]any{"bio": "hello"})
	require.Equal(t, nethttp.StatusOK, resp.StatusCode)
	assert.Equal(t, "hello", *decode[models.User](t, raw).Bio)

	post := h.createPost("http-author", map[string]any{"content": "notice me", "category": "Food"})
	assert.Equal(t, "author_x", post.Username)
	resp, _ = h.do(nethttp.MethodPost, "/api/posts/"+post.ID+"/react", "http-fan", nil)
	require.Equal(t, nethttp.StatusCreated, resp.StatusCode)

	assert.Eventually(t, func() bool {
		resp, raw := h.do(nethttp.MethodGet, "/api/notifications/unread", "http-author", nil)
		return resp.StatusCode == nethttp.StatusOK && decode[map[string]int](t, raw)["count"] == 1
	}, 2*time.Second, 10*time.Millisecond)

	resp, raw = h.do(nethttp.MethodGet, "/api/notifications", "http-author", nil)
	require.Equal(t, nethttp.StatusOK, resp.StatusCode)
	notifications := decode[listing[models.Notification]](t, raw)
	require.Len(t, notifications.Data, 1)
	assert.Equal(t, models.NotificationLike, notifications.Data[0].Type)

	resp, _ = h.do(nethttp.MethodPut, "/api/notifications/"+notifications.Data[0].ID+"/read", "http-fan", nil)
	assert.Equal(t, nethttp.StatusForbidden, resp.StatusCode)
	resp, raw = h.do(nethttp.MethodPut, "/api/notifications/read", "http-author", nil)
	require.Equal(t, nethttp.StatusOK, resp.StatusCode)
	assert.Equal(t, 1, decode[map[string]int](t, raw)["count"])

	resp, raw = h.do(nethttp.MethodGet, "/api/users/me/likes", "http-fan", nil)
	require.Equal(t, nethttp.StatusOK, resp.StatusCode)
	assert.Equal(t, []string{post.ID}, ids(decode[listing[postItem]](t, raw).Data))
}

func TestStoredReferencesSurviveLaterRequests(t *testing.T) {
	h := newHarness(t)
	post := h.createPost("author", map[string]any{"content": "keep my id", "category": "Food"})
	path := "/api/posts/" + post.ID

	resp, _ := h.do(nethttp.MethodPost, path+"/replies", "fan", map[string]any{"content": "me too"})
	require.Equal(t, nethttp.StatusOK, resp.StatusCode)
	resp, _ = h.do(nethttp.MethodPost, path+"/react", "fan", nil)
	require.Equal(t, nethttp.StatusCreated, resp.StatusCode)

	// Unrelated requests reuse the buffers the ids above were read from.
	for i := 0; i < 5; i++ {
		h.do(nethttp.MethodGet, "/api/posts/ffffffff-ffff-ffff-ffff-ffffffffffff", "", nil)
	}

	ctx := context.Background()
	for _, collection := range []string{models.CollectionComments, models.CollectionLikes} {
		snapshot, err := store.C.Query(ctx, collection, store.Query{})
		require.NoError(t, err)
		require.Len(t, snapshot, 1, collection)
		assert.Equal(t, post.ID, snapshot[0].Data.String("post_id"), collection)
	}

	resp, raw := h.do(nethttp.MethodGet, "/api/users/me/likes", "fan", nil)
	require.Equal(t, nethttp.StatusOK, resp.StatusCode)
	assert.Equal(t, []string{post.ID}, ids(decode[listing[postItem]](t, raw).Data))

	resp, raw = h.do(nethttp.MethodGet, "/api/users/me/replies", "fan", nil)
	require.Equal(t, nethttp.StatusOK, resp.StatusCode)
	replies := decode[listing[models.Comment]](t, raw)
	require.Len(t, replies.Data, 1)
	assert.Equal(t, post.ID, replies.Data[0].PostID)
}

func TestCategorySubscriptions(t *testing.T) {
	h := newHarness(t)

	resp, _ := h.do(nethttp.MethodPost, "/api/subscriptions/food", "u1", nil)
	assert.Equal(t, nethttp.StatusOK, resp.StatusCode)
	resp, _ = h.do(nethttp.MethodPost, "/api/subscriptions/food", "u1", nil)
	assert.Equal(t, nethttp.StatusConflict, resp.StatusCode)
	resp, _ = h.do(nethttp.MethodPost, "/api/subscriptions/sports", "u1", nil)
	assert.Equal(t, nethttp.StatusBadRequest, resp.StatusCode)

	resp, _ = h.do(nethttp.MethodGet, "/api/subscriptions/Campus%20Life", "u1", nil)
	assert.Equal(t, nethttp.StatusNotFound, resp.StatusCode)
	resp, raw := h.do(nethttp.MethodGet, "/api/subscriptions", "u1", nil)
	require.Equal(t, nethttp.StatusOK, resp.StatusCode)
	assert.Len(t, decode[[]models.Subscription](t, raw), 1)

	resp, _ = h.do(nethttp.MethodDelete, "/api/subscriptions/food", "u1", nil)
	assert.Equal(t, nethttp.StatusOK, resp.StatusCode)
	resp, _ = h.do(nethttp.MethodDelete, "/api/subscriptions/food", "u1", nil)
	assert.Equal(t, nethttp.StatusNotFound, resp.StatusCode)
}

func TestAdminCounterAudit(t *testing.T) {
	h := newHarness(t)
	post := h.createPost("u1", map[string]any{"content": "count me", "category": "Food"})
	require.NoError(t, store.C.Increment(context.Background(), models.CollectionPosts, post.ID, "like_count", 2))

	resp, _ := h.do(nethttp.MethodPost, "/api/admin/counters/audit", "u1", nil)
	assert.Equal(t, nethttp.StatusForbidden, resp.StatusCode)

	resp, raw := h.do(nethttp.MethodPost, "/api/admin/counters/audit", "admin", nil)
	require.Equal(t, nethttp.StatusOK, resp.StatusCode)
	report := decode[listing[models.CounterDriftWarning]](t, raw)
	require.Equal(t, 1, report.Count)
	assert.Equal(t, "like_count", report.Data[0].Field)
	assert.EqualValues(t, 2, report.Data[0].Stored)
	assert.Zero(t, report.Data[0].Counted)
}
