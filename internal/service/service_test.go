package service

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"peoplegrid/config"
	"peoplegrid/internal/model"
	"peoplegrid/internal/repository"
	"peoplegrid/internal/testutil"
	"peoplegrid/pkg/jwt"
	"peoplegrid/pkg/password"
	"peoplegrid/pkg/redis"
	"peoplegrid/pkg/websocket"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// fakeUploader 记录上传内容并返回固定URL
type fakeUploader struct {
	url    string
	err    error
	folder string
	body   string
}

func (f *fakeUploader) Upload(_ context.Context, folder string, r io.Reader) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	b, _ := io.ReadAll(r)
	f.folder, f.body = folder, string(b)
	return f.url, nil
}

type fakePresence map[uint]bool

func (p fakePresence) IsOnline(userID uint) bool { return p[userID] }

type delivery struct {
	userID uint
	event  string
	data   interface{}
}

// fakeDeliverer online 中的用户视为在线
type fakeDeliverer struct {
	mu        sync.Mutex
	online    map[uint]bool
	delivered []delivery
}

func (d *fakeDeliverer) Deliver(userID uint, event string, data interface{}) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.online[userID] {
		return false
	}
	d.delivered = append(d.delivered, delivery{userID, event, data})
	return true
}

func newJWT() *jwt.JWTService {
	return jwt.NewJWTService(config.JWTConfig{Secret: "test-secret", Issuer: "peoplegrid", ExpireTime: time.Hour})
}

func TestAuthService_RegisterAndLogin(t *testing.T) {
	gdb := testutil.NewDB(t)
	jwtSvc := newJWT()
	svc := NewAuthService(repository.NewUserRepository(gdb), jwtSvc)
	ctx := context.Background()

	u, err := svc.Register(ctx, "alice", "Alice@Example.com", "s3cret!")
	require.NoError(t, err)
	assert.NotZero(t, u.ID)
	assert.Equal(t, "alice@example.com", u.Email)
	assert.NotEqual(t, "s3cret!", u.PasswordHash)
	assert.NotContains(t, u.PasswordHash, "s3cret!")

	_, err = svc.Register(ctx, "alice2", "alice@example.com", "x")
	assert.ErrorIs(t, err, ErrEmailTaken)
	_, err = svc.Register(ctx, "alice", "other@example.com", "x")
	assert.ErrorIs(t, err, ErrUsernameTaken)
	_, err = svc.Register(ctx, "bob", "not-an-email", "x")
	assert.ErrorIs(t, err, ErrInvalidInput)
	_, err = svc.Register(ctx, "", "bob@example.com", "x")
	assert.ErrorIs(t, err, ErrInvalidInput)

	got, token, err := svc.Login(ctx, "alice@example.com", "s3cret!")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)

	claims, err := jwtSvc.ValidateToken(token)
	require.NoError(t, err)
	sub, err := claims.UserID()
	require.NoError(t, err)
	assert.Equal(t, u.ID, sub)

	got, _, err = svc.Login(ctx, "  ALICE@example.COM ", "s3cret!")
	require.NoError(t, err, "邮箱登录不区分大小写")
	assert.Equal(t, u.ID, got.ID)

	_, _, err = svc.Login(ctx, "alice@example.com", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, _, err = svc.Login(ctx, "nobody@example.com", "s3cret!")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestAuthService_LoginUpgradesWeakHash(t *testing.T) {
	gdb := testutil.NewDB(t)
	repo := repository.NewUserRepository(gdb)
	svc := NewAuthService(repo, newJWT())
	ctx := context.Background()

	old := password.Cost
	t.Cleanup(func() { password.Cost = old })

	password.Cost = bcrypt.MinCost
	u, err := svc.Register(ctx, "weak", "weak@example.com", "pw123")
	require.NoError(t, err)

	password.Cost = bcrypt.MinCost + 1
	_, _, err = svc.Login(ctx, "weak@example.com", "pw123")
	require.NoError(t, err)

	stored, err := repo.GetByID(ctx, u.ID)
	require.NoError(t, err)
	assert.NotEqual(t, u.PasswordHash, stored.PasswordHash)
	assert.False(t, password.NeedsRehash(stored.PasswordHash))
	assert.True(t, password.Verify("pw123", stored.PasswordHash))

	_, err = svc.Register(ctx, "long", "long@example.com", strings.Repeat("x", password.MaxLength+1))
	assert.ErrorIs(t, err, ErrInvalidInput)
}

// interleaveUser 在下一次写 users 表之前插入一个冲突用户，模拟检查与写入之间的并发注册
func interleaveUser(t *testing.T, gdb *gorm.DB, username, email string) {
	t.Helper()
	var once sync.Once
	hook := func(tx *gorm.DB) {
		if tx.Statement.Table != "users" {
			return
		}
		once.Do(func() {
			now := time.Now()
			err := tx.Session(&gorm.Session{NewDB: true}).Exec(
				"INSERT INTO users (username, email, password_hash, created_at, updated_at) VALUES (?, ?, ?, ?, ?)",
				username, email, "x", now, now).Error
			require.NoError(t, err)
		})
	}
	require.NoError(t, gdb.Callback().Create().Before("gorm:create").Register("test:interleave_create", hook))
	require.NoError(t, gdb.Callback().Update().Before("gorm:update").Register("test:interleave_update", hook))
}

func TestUniqueIndexRaces(t *testing.T) {
	ctx := context.Background()

	t.Run("register loses email race", func(t *testing.T) {
		gdb := testutil.NewDB(t)
		svc := NewAuthService(repository.NewUserRepository(gdb), newJWT())
		interleaveUser(t, gdb, "someone", "dave@example.com")

		_, err := svc.Register(ctx, "dave", "dave@example.com", "pw")
		assert.ErrorIs(t, err, ErrEmailTaken)
	})

	t.Run("register loses username race", func(t *testing.T) {
		gdb := testutil.NewDB(t)
		svc := NewAuthService(repository.NewUserRepository(gdb), newJWT())
		interleaveUser(t, gdb, "erin", "elsewhere@example.com")

		_, err := svc.Register(ctx, "erin", "erin@example.com", "pw")
		assert.ErrorIs(t, err, ErrUsernameTaken)
	})

	t.Run("profile update loses username race", func(t *testing.T) {
		gdb := testutil.NewDB(t)
		alice := testutil.CreateUser(t, gdb, "alice")
		svc := NewProfileService(repository.NewUserRepository(gdb), &fakeUploader{}, "p")
		interleaveUser(t, gdb, "zoe", "zoe@example.com")

		_, err := svc.UpdateProfile(ctx, alice.ID, ProfileUpdate{Username: "zoe"})
		assert.ErrorIs(t, err, ErrUsernameTaken)
	})
}

func TestProfileService(t *testing.T) {
	gdb := testutil.NewDB(t)
	up := &fakeUploader{url: "https://cdn.example.com/p.png"}
	svc := NewProfileService(repository.NewUserRepository(gdb), up, "peoplegrid_profiles")
	ctx := context.Background()

	alice := testutil.CreateUser(t, gdb, "alice")
	testutil.CreateUser(t, gdb, "bob")

	age := 28
	u, err := svc.UpdateProfile(ctx, alice.ID, ProfileUpdate{Bio: "hello", Pronouns: "she/her", Age: &age})
	require.NoError(t, err)
	assert.Equal(t, "alice", u.Username, "empty username keeps current")
	assert.Equal(t, "hello", u.Bio)

	_, err = svc.UpdateProfile(ctx, alice.ID, ProfileUpdate{Username: "bob"})
	assert.ErrorIs(t, err, ErrUsernameTaken)

	u, err = svc.UpdateProfile(ctx, alice.ID, ProfileUpdate{Username: "alice"})
	require.NoError(t, err, "keeping own username is not a conflict")
	assert.Equal(t, "alice", u.Username)

	bad := -1
	_, err = svc.UpdateProfile(ctx, alice.ID, ProfileUpdate{Age: &bad})
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = svc.UploadPhoto(ctx, alice.ID, nil)
	assert.ErrorIs(t, err, ErrNoFile)

	url, err := svc.UploadPhoto(ctx, alice.ID, strings.NewReader("png-bytes"))
	require.NoError(t, err)
	assert.Equal(t, up.url, url)
	assert.Equal(t, "peoplegrid_profiles", up.folder)
	assert.Equal(t, "png-bytes", up.body)

	u, err = svc.GetProfile(ctx, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, up.url, u.ProfilePictureURL)

	_, err = svc.GetProfile(ctx, 999)
	assert.ErrorIs(t, err, ErrUserNotFound)

	up.err = errors.New("cloud down")
	_, err = svc.UploadPhoto(ctx, alice.ID, strings.NewReader("x"))
	assert.ErrorIs(t, err, ErrUploadFailed)
}

func TestFriendService_RequestAcceptScenario(t *testing.T) {
	gdb := testutil.NewDB(t)
	users := repository.NewUserRepository(gdb)
	presence := fakePresence{}
	svc := NewFriendService(repository.NewFriendshipRepository(gdb), users, presence)
	ctx := context.Background()

	a := testutil.CreateUser(t, gdb, "anna")
	b := testutil.CreateUser(t, gdb, "ben")
	c := testutil.CreateUser(t, gdb, "cara")

	_, err := svc.SendRequest(ctx, a.ID, a.ID)
	assert.ErrorIs(t, err, ErrSelfFriend)
	_, err = svc.SendRequest(ctx, a.ID, 999)
	assert.ErrorIs(t, err, ErrUserNotFound)

	f, err := svc.SendRequest(ctx, a.ID, b.ID)
	require.NoError(t, err)
	assert.Equal(t, model.FriendshipPending, f.Status)
	assert.Equal(t, a.ID, f.ActionUserID)

	_, err = svc.SendRequest(ctx, b.ID, a.ID)
	assert.ErrorIs(t, err, ErrFriendshipExists, "reverse direction is the same edge")

	pending, err := svc.ListPending(ctx, b.ID)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, a.ID, pending[0].ID)

	assert.ErrorIs(t, svc.AcceptRequest(ctx, b.ID, c.ID), ErrRequestNotFound)
	assert.ErrorIs(t, svc.AcceptRequest(ctx, a.ID, b.ID), ErrRequestNotFound, "sender cannot accept own request")
	require.NoError(t, svc.AcceptRequest(ctx, b.ID, a.ID))

	for _, pair := range [][2]uint{{a.ID, b.ID}, {b.ID, a.ID}} {
		friends, err := svc.ListFriends(ctx, pair[0])
		require.NoError(t, err)
		require.Len(t, friends, 1)
		assert.Equal(t, pair[1], friends[0].ID)
	}

	_, err = svc.SendRequest(ctx, a.ID, b.ID)
	assert.ErrorIs(t, err, ErrFriendshipExists, "accepted edge also blocks")

	online, err := svc.ListOnlineFriends(ctx, a.ID)
	require.NoError(t, err)
	assert.Empty(t, online)
	presence[b.ID] = true
	online, err = svc.ListOnlineFriends(ctx, a.ID)
	require.NoError(t, err)
	require.Len(t, online, 1)
	assert.Equal(t, b.ID, online[0].ID)
}

func TestFriendService_Search(t *testing.T) {
	gdb := testutil.NewDB(t)
	svc := NewFriendService(repository.NewFriendshipRepository(gdb), repository.NewUserRepository(gdb), nil)
	ctx := context.Background()

	me := testutil.CreateUser(t, gdb, "sam")
	for _, name := range []string{"Samantha", "samuel", "SAMIR", "bob"} {
		testutil.CreateUser(t, gdb, name)
	}

	got, err := svc.Search(ctx, me.ID, "   ")
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)

	got, err = svc.Search(ctx, me.ID, "SaM")
	require.NoError(t, err)
	assert.Len(t, got, 3)
	for _, u := range got {
		assert.NotEqual(t, me.ID, u.ID)
	}
}

func TestPostService(t *testing.T) {
	gdb := testutil.NewDB(t)
	up := &fakeUploader{url: "https://cdn.example.com/m.jpg"}
	posts := repository.NewPostRepository(gdb)
	svc := NewPostService(posts, repository.NewUserRepository(gdb), up, "peoplegrid_posts")
	ctx := context.Background()

	owner := testutil.CreateUser(t, gdb, "owner")
	other := testutil.CreateUser(t, gdb, "other")

	_, err := svc.CreatePost(ctx, owner.ID, NewPost{Content: "  "})
	assert.ErrorIs(t, err, ErrInvalidInput)

	plain, err := svc.CreatePost(ctx, owner.ID, NewPost{Content: "hello"})
	require.NoError(t, err)
	assert.Equal(t, DefaultPostType, plain.PostType)
	assert.Nil(t, plain.MediaURL)
	assert.Equal(t, "owner", plain.User.Username)

	withMedia, err := svc.CreatePost(ctx, owner.ID, NewPost{Content: "pic", PostType: "image", Media: strings.NewReader("jpg")})
	require.NoError(t, err)
	require.NotNil(t, withMedia.MediaURL)
	assert.Equal(t, up.url, *withMedia.MediaURL)
	assert.Equal(t, "peoplegrid_posts", up.folder)

	t.Run("upload failure aborts creation", func(t *testing.T) {
		failing := NewPostService(posts, repository.NewUserRepository(gdb), &fakeUploader{err: errors.New("boom")}, "f")
		_, err := failing.CreatePost(ctx, owner.ID, NewPost{Content: "x", Media: strings.NewReader("y")})
		assert.ErrorIs(t, err, ErrUploadFailed)
		rows, err := svc.ListPosts(ctx, owner.ID)
		require.NoError(t, err)
		assert.Len(t, rows, 2)
	})

	t.Run("like toggle", func(t *testing.T) {
		liked, n, err := svc.ToggleLike(ctx, other.ID, plain.ID)
		require.NoError(t, err)
		assert.True(t, liked)
		assert.Equal(t, int64(1), n)
		liked, n, err = svc.ToggleLike(ctx, other.ID, plain.ID)
		require.NoError(t, err)
		assert.False(t, liked)
		assert.Equal(t, int64(0), n)

		_, _, err = svc.ToggleLike(ctx, other.ID, 999)
		assert.ErrorIs(t, err, ErrPostNotFound)
	})

	t.Run("comments", func(t *testing.T) {
		_, err := svc.AddComment(ctx, other.ID, plain.ID, "")
		assert.ErrorIs(t, err, ErrInvalidInput)
		_, err = svc.AddComment(ctx, other.ID, 999, "hi")
		assert.ErrorIs(t, err, ErrPostNotFound)

		c, err := svc.AddComment(ctx, other.ID, plain.ID, "nice")
		require.NoError(t, err)
		assert.Equal(t, "other", c.User.Username)

		list, err := svc.ListComments(ctx, plain.ID)
		require.NoError(t, err)
		require.Len(t, list, 1)
		assert.Equal(t, "nice", list[0].CommentText)

		_, err = svc.ListComments(ctx, 999)
		assert.ErrorIs(t, err, ErrPostNotFound)
	})

	t.Run("delete", func(t *testing.T) {
		_, _, err := svc.ToggleLike(ctx, other.ID, plain.ID)
		require.NoError(t, err)

		assert.ErrorIs(t, svc.DeletePost(ctx, other.ID, plain.ID), ErrForbidden)
		assert.ErrorIs(t, svc.DeletePost(ctx, owner.ID, 999), ErrPostNotFound)
		require.NoError(t, svc.DeletePost(ctx, owner.ID, plain.ID))

		_, err = svc.ListComments(ctx, plain.ID)
		assert.ErrorIs(t, err, ErrPostNotFound)

		var remaining int64
		require.NoError(t, gdb.Model(&model.Comment{}).Where("post_id = ?", plain.ID).Count(&remaining).Error)
		assert.Zero(t, remaining)
		require.NoError(t, gdb.Model(&model.Like{}).Where("post_id = ?", plain.ID).Count(&remaining).Error)
		assert.Zero(t, remaining)
	})
}

func newRedisStore(t *testing.T) *redis.Store {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return redis.NewStore(client)
}

func TestMessageService(t *testing.T) {
	gdb := testutil.NewDB(t)
	deliverer := &fakeDeliverer{online: map[uint]bool{}}
	store := newRedisStore(t)
	svc := NewMessageService(repository.NewMessageRepository(gdb), repository.NewUserRepository(gdb), deliverer, store)
	ctx := context.Background()

	a := testutil.CreateUser(t, gdb, "a")
	b := testutil.CreateUser(t, gdb, "b")

	_, _, err := svc.SendMessage(ctx, a.ID, b.ID, "  ")
	assert.ErrorIs(t, err, ErrEmptyMessage)
	_, _, err = svc.SendMessage(ctx, a.ID, 999, "hi")
	assert.ErrorIs(t, err, ErrUserNotFound)

	t.Run("offline receiver: stored and counted", func(t *testing.T) {
		m, delivered, err := svc.SendMessage(ctx, a.ID, b.ID, "are you there")
		require.NoError(t, err)
		assert.False(t, delivered)
		assert.NotZero(t, m.ID)

		counts, err := svc.UnreadCounts(ctx, b.ID)
		require.NoError(t, err)
		assert.Equal(t, map[uint]int64{a.ID: 1}, counts)
	})

	t.Run("online receiver: pushed live", func(t *testing.T) {
		deliverer.online[b.ID] = true
		m, delivered, err := svc.SendMessage(ctx, a.ID, b.ID, "hi")
		require.NoError(t, err)
		assert.True(t, delivered)

		require.Len(t, deliverer.delivered, 1)
		got := deliverer.delivered[0]
		assert.Equal(t, b.ID, got.userID)
		assert.Equal(t, websocket.EventReceiveMessage, got.event)
		payload, ok := got.data.(websocket.ReceiveMessageData)
		require.True(t, ok)
		assert.Equal(t, a.ID, payload.SenderID)
		assert.Equal(t, "hi", payload.MessageText)
		assert.Equal(t, m.ID, payload.MessageID)
	})

	t.Run("history is bidirectional and clears unread", func(t *testing.T) {
		_, _, err := svc.SendMessage(ctx, b.ID, a.ID, "yes")
		require.NoError(t, err)

		history, err := svc.History(ctx, b.ID, a.ID)
		require.NoError(t, err)
		require.Len(t, history, 3)
		assert.Equal(t, "are you there", history[0].MessageText)
		assert.Equal(t, "yes", history[2].MessageText)

		counts, err := svc.UnreadCounts(ctx, b.ID)
		require.NoError(t, err)
		assert.Empty(t, counts)
	})

	t.Run("relay rejects with client-facing reason", func(t *testing.T) {
		err := svc.Relay(ctx, a.ID, b.ID, "")
		var rejected *websocket.RejectedError
		require.True(t, errors.As(err, &rejected))
		assert.Equal(t, ErrEmptyMessage.Error(), rejected.Reason)
		assert.NoError(t, svc.Relay(ctx, a.ID, b.ID, "ok"))
	})
}

func TestMessageService_WithoutRedis(t *testing.T) {
	gdb := testutil.NewDB(t)
	svc := NewMessageService(repository.NewMessageRepository(gdb), repository.NewUserRepository(gdb), nil, nil)
	ctx := context.Background()

	a := testutil.CreateUser(t, gdb, "a")
	b := testutil.CreateUser(t, gdb, "b")

	_, delivered, err := svc.SendMessage(ctx, a.ID, b.ID, "hello")
	require.NoError(t, err)
	assert.False(t, delivered)

	counts, err := svc.UnreadCounts(ctx, b.ID)
	require.NoError(t, err)
	assert.Empty(t, counts)

	var stored int64
	require.NoError(t, gdb.Model(&model.Message{}).Count(&stored).Error)
	assert.Equal(t, int64(1), stored)
}
