package router

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"peoplegrid/config"
	"peoplegrid/internal/handler"
	"peoplegrid/internal/model"
	"peoplegrid/internal/repository"
	"peoplegrid/internal/service"
	"peoplegrid/internal/testutil"
	"peoplegrid/pkg/jwt"
	"peoplegrid/pkg/websocket"

	"github.com/gin-gonic/gin"
	gws "github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type stubUploader struct{ calls int }

func (s *stubUploader) Upload(_ context.Context, folder string, r io.Reader) (string, error) {
	s.calls++
	_, _ = io.Copy(io.Discard, r)
	return fmt.Sprintf("https://cdn.example.com/%s/%d", folder, s.calls), nil
}

type apiResponse struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type testAPI struct {
	t   *testing.T
	srv *httptest.Server
	db  *gorm.DB
	jwt *jwt.JWTService
	hub *websocket.Hub
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	gin.SetMode(gin.TestMode)

	gdb := testutil.NewDB(t)
	jwtSvc := jwt.NewJWTService(config.JWTConfig{Secret: "router-secret", Issuer: "peoplegrid", ExpireTime: time.Hour})
	hub := websocket.NewHub(nil, 16)
	uploader := &stubUploader{}

	users := repository.NewUserRepository(gdb)
	messageSvc := service.NewMessageService(repository.NewMessageRepository(gdb), users, hub, nil)

	engine := New(Deps{
		DB:             gdb,
		JWT:            jwtSvc,
		AllowedOrigins: []string{"*"},
		MaxUpload:      1 << 20,
		Auth:           handler.NewAuthHandler(service.NewAuthService(users, jwtSvc)),
		Profile:        handler.NewProfileHandler(service.NewProfileService(users, uploader, "peoplegrid_profiles")),
		Friends:        handler.NewFriendHandler(service.NewFriendService(repository.NewFriendshipRepository(gdb), users, hub)),
		Posts:          handler.NewPostHandler(service.NewPostService(repository.NewPostRepository(gdb), users, uploader, "peoplegrid_posts")),
		Messages:       handler.NewMessageHandler(messageSvc),
		Hub:            hub,
		WS:             websocket.NewHandler(hub, jwtSvc, messageSvc, config.WebSocketConfig{PingInterval: time.Second, ReadTimeout: 5 * time.Second}),
	})

	srv := httptest.NewServer(engine)
	t.Cleanup(func() {
		hub.Shutdown()
		srv.Close()
	})
	return &testAPI{t: t, srv: srv, db: gdb, jwt: jwtSvc, hub: hub}
}

func (a *testAPI) do(method, path, token string, body interface{}) (int, apiResponse) {
	a.t.Helper()
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(a.t, err)
		reader = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, a.srv.URL+path, reader)
	require.NoError(a.t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return a.send(req)
}

func (a *testAPI) send(req *http.Request) (int, apiResponse) {
	a.t.Helper()
	resp, err := http.DefaultClient.Do(req)
	require.NoError(a.t, err)
	defer resp.Body.Close()
	var out apiResponse
	require.NoError(a.t, json.NewDecoder(resp.Body).Decode(&out))
	return resp.StatusCode, out
}

func (a *testAPI) multipart(path, token, field, filename string, fields map[string]string) (int, apiResponse) {
	a.t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(a.t, w.WriteField(k, v))
	}
	if field != "" {
		fw, err := w.CreateFormFile(field, filename)
		require.NoError(a.t, err)
		_, _ = fw.Write([]byte("binary-content"))
	}
	require.NoError(a.t, w.Close())

	req, err := http.NewRequest(http.MethodPost, a.srv.URL+path, &buf)
	require.NoError(a.t, err)
	req.Header.Set("Content-Type", w.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	return a.send(req)
}

// signUp 注册并登录，返回用户ID和令牌
func (a *testAPI) signUp(username string) (uint, string) {
	a.t.Helper()
	email := username + "@example.com"
	status, resp := a.do(http.MethodPost, "/api/auth/register", "", map[string]string{
		"username": username, "email": email, "password": "pa55word",
	})
	require.Equal(a.t, http.StatusCreated, status, resp.Message)

	status, resp = a.do(http.MethodPost, "/api/auth/login", "", map[string]string{
		"email": email, "password": "pa55word",
	})
	require.Equal(a.t, http.StatusOK, status, resp.Message)
	var login handler.LoginResponse
	require.NoError(a.t, json.Unmarshal(resp.Data, &login))
	require.NotEmpty(a.t, login.Token)
	return login.User.UserID, login.Token
}

func decode[T any](t *testing.T, raw json.RawMessage) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(raw, &v))
	return v
}

func TestAuthRoutes(t *testing.T) {
	api := newTestAPI(t)
	_, token := api.signUp("alice")

	status, resp := api.do(http.MethodPost, "/api/auth/register", "", map[string]string{
		"username": "alice2", "email": "alice@example.com", "password": "x",
	})
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, http.StatusConflict, resp.Code)

	status, _ = api.do(http.MethodPost, "/api/auth/register", "", map[string]string{"username": "x"})
	assert.Equal(t, http.StatusBadRequest, status)

	status, resp = api.do(http.MethodPost, "/api/auth/login", "", map[string]string{
		"email": "alice@example.com", "password": "nope",
	})
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, service.ErrInvalidCredentials.Error(), resp.Message)

	// 认证失败的几种情况给出不同提示
	status, resp = api.do(http.MethodGet, "/api/profile", "", nil)
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, jwt.MsgMissingHeader, resp.Message)

	req, _ := http.NewRequest(http.MethodGet, api.srv.URL+"/api/profile", nil)
	req.Header.Set("Authorization", "Token abc")
	status, resp = api.send(req)
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, jwt.MsgMalformedHeader, resp.Message)

	status, resp = api.do(http.MethodGet, "/api/profile", "not.a.jwt", nil)
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, jwt.MsgInvalidToken, resp.Message)

	status, resp = api.do(http.MethodGet, "/api/profile", token, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, 0, resp.Code)
	profile := decode[handler.UserView](t, resp.Data)
	assert.Equal(t, "alice", profile.Username)
	assert.NotContains(t, string(resp.Data), "password")
}

func TestProfileRoutes(t *testing.T) {
	api := newTestAPI(t)
	_, token := api.signUp("alice")
	api.signUp("bob")

	status, resp := api.do(http.MethodPut, "/api/profile", token, map[string]interface{}{
		"bio": "hi there", "age": 31, "pronouns": "she/her", "relationship_status": "single",
	})
	require.Equal(t, http.StatusOK, status, resp.Message)
	p := decode[handler.UserView](t, resp.Data)
	assert.Equal(t, "alice", p.Username)
	assert.Equal(t, "hi there", p.Bio)
	require.NotNil(t, p.Age)
	assert.Equal(t, 31, *p.Age)

	status, _ = api.do(http.MethodPut, "/api/profile", token, map[string]interface{}{"username": "bob"})
	assert.Equal(t, http.StatusConflict, status)

	status, resp = api.multipart("/api/profile/upload-photo", token, handler.ProfilePhotoField, "me.png", nil)
	require.Equal(t, http.StatusOK, status, resp.Message)
	assert.Contains(t, string(resp.Data), "peoplegrid_profiles")

	status, _ = api.multipart("/api/profile/upload-photo", token, "", "", map[string]string{"x": "y"})
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestFriendRoutes_Scenario(t *testing.T) {
	api := newTestAPI(t)
	aID, aTok := api.signUp("anna")
	bID, bTok := api.signUp("ben")

	status, _ := api.do(http.MethodPost, fmt.Sprintf("/api/friends/request/%d", aID), aTok, nil)
	assert.Equal(t, http.StatusBadRequest, status, "self request")
	status, _ = api.do(http.MethodPost, "/api/friends/request/9999", aTok, nil)
	assert.Equal(t, http.StatusNotFound, status)
	status, _ = api.do(http.MethodPost, "/api/friends/request/abc", aTok, nil)
	assert.Equal(t, http.StatusBadRequest, status)

	status, resp := api.do(http.MethodPost, fmt.Sprintf("/api/friends/request/%d", bID), aTok, nil)
	require.Equal(t, http.StatusCreated, status, resp.Message)
	edge := decode[handler.FriendshipView](t, resp.Data)
	assert.Equal(t, "pending", edge.Status)
	assert.Equal(t, aID, edge.ActionUserID)

	status, _ = api.do(http.MethodPost, fmt.Sprintf("/api/friends/request/%d", aID), bTok, nil)
	assert.Equal(t, http.StatusConflict, status)

	status, resp = api.do(http.MethodGet, "/api/friends/pending", bTok, nil)
	require.Equal(t, http.StatusOK, status)
	pending := decode[[]handler.PublicUserView](t, resp.Data)
	require.Len(t, pending, 1)
	assert.Equal(t, aID, pending[0].UserID)

	status, _ = api.do(http.MethodPut, fmt.Sprintf("/api/friends/accept/%d", bID), aTok, nil)
	assert.Equal(t, http.StatusNotFound, status)

	status, _ = api.do(http.MethodPut, fmt.Sprintf("/api/friends/accept/%d", aID), bTok, nil)
	require.Equal(t, http.StatusOK, status)

	for _, tc := range []struct {
		token  string
		expect uint
	}{{aTok, bID}, {bTok, aID}} {
		status, resp = api.do(http.MethodGet, "/api/friends/list", tc.token, nil)
		require.Equal(t, http.StatusOK, status)
		friends := decode[[]handler.PublicUserView](t, resp.Data)
		require.Len(t, friends, 1)
		assert.Equal(t, tc.expect, friends[0].UserID)
	}

	status, resp = api.do(http.MethodGet, "/api/friends/search?query=BE", aTok, nil)
	require.Equal(t, http.StatusOK, status)
	found := decode[[]handler.PublicUserView](t, resp.Data)
	require.Len(t, found, 1)
	assert.Equal(t, "ben", found[0].Username)

	status, resp = api.do(http.MethodGet, "/api/friends/search?query=", aTok, nil)
	require.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `[]`, string(resp.Data))

	status, resp = api.do(http.MethodGet, "/api/friends/online", aTok, nil)
	require.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `[]`, string(resp.Data))
}

func TestPostRoutes(t *testing.T) {
	api := newTestAPI(t)
	ownerID, ownerTok := api.signUp("owner")
	_, otherTok := api.signUp("other")

	status, _ := api.do(http.MethodPost, "/api/posts", ownerTok, map[string]string{"content": ""})
	assert.Equal(t, http.StatusBadRequest, status)

	status, resp := api.do(http.MethodPost, "/api/posts", ownerTok, map[string]string{"content": "first", "title": "t"})
	require.Equal(t, http.StatusCreated, status, resp.Message)
	first := decode[handler.PostView](t, resp.Data)
	assert.Equal(t, "text", first.PostType)
	assert.Equal(t, ownerID, first.UserID)

	status, resp = api.multipart("/api/posts", ownerTok, handler.MediaFileField, "pic.jpg", map[string]string{
		"content": "with media", "post_type": "image",
	})
	require.Equal(t, http.StatusCreated, status, resp.Message)
	media := decode[handler.PostView](t, resp.Data)
	require.NotNil(t, media.MediaURL)
	assert.Contains(t, *media.MediaURL, "peoplegrid_posts")

	status, resp = api.do(http.MethodPost, fmt.Sprintf("/api/posts/%d/like", first.PostID), otherTok, nil)
	require.Equal(t, http.StatusOK, status)
	like := decode[handler.LikeResponse](t, resp.Data)
	assert.True(t, like.Liked)
	assert.Equal(t, int64(1), like.LikeCount)

	status, _ = api.do(http.MethodPost, "/api/posts/9999/like", otherTok, nil)
	assert.Equal(t, http.StatusNotFound, status)

	status, resp = api.do(http.MethodPost, fmt.Sprintf("/api/posts/%d/comment", first.PostID), otherTok, map[string]string{"comment_text": "nice"})
	require.Equal(t, http.StatusCreated, status, resp.Message)
	comment := decode[handler.CommentView](t, resp.Data)
	assert.Equal(t, "other", comment.Username)

	status, _ = api.do(http.MethodPost, fmt.Sprintf("/api/posts/%d/comment", first.PostID), otherTok, map[string]string{})
	assert.Equal(t, http.StatusBadRequest, status)

	status, resp = api.do(http.MethodGet, "/api/posts", otherTok, nil)
	require.Equal(t, http.StatusOK, status)
	feed := decode[[]handler.PostView](t, resp.Data)
	require.Len(t, feed, 2)
	assert.Equal(t, media.PostID, feed[0].PostID, "newest first")
	assert.Equal(t, int64(1), feed[1].LikeCount)
	assert.Equal(t, int64(1), feed[1].CommentCount)
	assert.True(t, feed[1].IsLikedByUser)

	status, resp = api.do(http.MethodGet, fmt.Sprintf("/api/posts/%d/comments", first.PostID), ownerTok, nil)
	require.Equal(t, http.StatusOK, status)
	comments := decode[[]handler.CommentView](t, resp.Data)
	require.Len(t, comments, 1)

	status, _ = api.do(http.MethodDelete, fmt.Sprintf("/api/posts/%d", first.PostID), otherTok, nil)
	assert.Equal(t, http.StatusForbidden, status)
	status, _ = api.do(http.MethodDelete, fmt.Sprintf("/api/posts/%d", first.PostID), ownerTok, nil)
	assert.Equal(t, http.StatusOK, status)
	status, _ = api.do(http.MethodDelete, fmt.Sprintf("/api/posts/%d", first.PostID), ownerTok, nil)
	assert.Equal(t, http.StatusNotFound, status)
	status, _ = api.do(http.MethodGet, fmt.Sprintf("/api/posts/%d/comments", first.PostID), ownerTok, nil)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestRealtimeMessaging(t *testing.T) {
	api := newTestAPI(t)
	aID, aTok := api.signUp("anna")
	bID, bTok := api.signUp("ben")

	dial := func(token string) *gws.Conn {
		url := "ws" + strings.TrimPrefix(api.srv.URL, "http") + "/ws?token=" + token
		conn, _, err := gws.DefaultDialer.Dial(url, nil)
		require.NoError(t, err)
		t.Cleanup(func() { _ = conn.Close() })
		return conn
	}
	emit := func(conn *gws.Conn, event string, data interface{}) {
		frame, err := websocket.Encode(event, data)
		require.NoError(t, err)
		require.NoError(t, conn.WriteMessage(gws.TextMessage, frame))
	}

	connA := dial(aTok)
	connB := dial(bTok)
	emit(connA, websocket.EventAddUser, websocket.AddUserData{UserID: aID})
	emit(connB, websocket.EventAddUser, websocket.AddUserData{UserID: bID})
	require.Eventually(t, func() bool { return api.hub.IsOnline(aID) && api.hub.IsOnline(bID) }, 2*time.Second, 10*time.Millisecond)

	emit(connA, websocket.EventSendMessage, websocket.SendMessageData{SenderID: aID, ReceiverID: bID, Text: "hi"})

	require.NoError(t, connB.SetReadDeadline(time.Now().Add(3*time.Second)))
	var env websocket.Envelope
	require.NoError(t, connB.ReadJSON(&env))
	require.Equal(t, websocket.EventReceiveMessage, env.Event)
	got := decode[websocket.ReceiveMessageData](t, env.Data)
	assert.Equal(t, aID, got.SenderID)
	assert.Equal(t, "hi", got.MessageText)
	assert.NotZero(t, got.MessageID)

	var stored model.Message
	require.NoError(t, api.db.First(&stored, got.MessageID).Error)
	assert.Equal(t, "hi", stored.MessageText)

	status, resp := api.do(http.MethodGet, fmt.Sprintf("/api/messages/%d", aID), bTok, nil)
	require.Equal(t, http.StatusOK, status)
	history := decode[[]handler.MessageView](t, resp.Data)
	require.Len(t, history, 1)
	assert.Equal(t, aID, history[0].SenderID)
	assert.Equal(t, bID, history[0].ReceiverID)

	// 好友在线列表依赖实时连接
	status, _ = api.do(http.MethodPost, fmt.Sprintf("/api/friends/request/%d", bID), aTok, nil)
	require.Equal(t, http.StatusCreated, status)
	status, _ = api.do(http.MethodPut, fmt.Sprintf("/api/friends/accept/%d", aID), bTok, nil)
	require.Equal(t, http.StatusOK, status)
	status, resp = api.do(http.MethodGet, "/api/friends/online", aTok, nil)
	require.Equal(t, http.StatusOK, status)
	online := decode[[]handler.PublicUserView](t, resp.Data)
	require.Len(t, online, 1)
	assert.Equal(t, bID, online[0].UserID)

	status, resp = api.do(http.MethodGet, "/api/messages", bTok, nil)
	require.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `{}`, string(resp.Data), "unread counters need redis")
}

func TestHealthAndMetrics(t *testing.T) {
	api := newTestAPI(t)

	status, resp := api.do(http.MethodGet, "/health", "", nil)
	require.Equal(t, http.StatusOK, status)
	body := decode[map[string]interface{}](t, resp.Data)
	assert.Equal(t, "ok", body["status"])
	assert.EqualValues(t, 0, body["online_users"])

	res, err := http.Get(api.srv.URL + "/metrics")
	require.NoError(t, err)
	defer res.Body.Close()
	assert.Equal(t, http.StatusOK, res.StatusCode)
	text, _ := io.ReadAll(res.Body)
	assert.Contains(t, string(text), "peoplegrid_http_requests_total")
}

func TestCORSPreflight(t *testing.T) {
	api := newTestAPI(t)

	req, _ := http.NewRequest(http.MethodOptions, api.srv.URL+"/api/posts", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	res, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer res.Body.Close()
	assert.Equal(t, http.StatusNoContent, res.StatusCode)
	assert.Equal(t, "http://localhost:3000", res.Header.Get("Access-Control-Allow-Origin"))
}
