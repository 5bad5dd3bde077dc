package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"time"

	"peoplegrid/config"
	"peoplegrid/internal/model"
	"peoplegrid/internal/repository"
	"peoplegrid/internal/service"
	dbPkg "peoplegrid/pkg/db"
	"peoplegrid/pkg/jwt"
	"peoplegrid/pkg/media"

	"github.com/brianvoe/gofakeit/v6"
)

func main() {
	users := flag.Int("users", 20, "number of users")
	postsPerUser := flag.Int("posts", 3, "posts per user")
	password := flag.String("password", "password123", "password for every seeded user")
	flag.Parse()

	cfg := config.LoadConfig()
	gdb, err := dbPkg.InitDB(cfg.Database)
	if err != nil {
		log.Fatalf("Database connection failed: %v", err)
	}
	defer dbPkg.CloseDB()
	if err := dbPkg.AutoMigrate(gdb, model.All()...); err != nil {
		log.Fatalf("Migration failed: %v", err)
	}

	gofakeit.Seed(time.Now().UnixNano())
	r := rand.New(rand.NewSource(time.Now().UnixNano()))
	ctx := context.Background()

	userRepo := repository.NewUserRepository(gdb)
	authSvc := service.NewAuthService(userRepo, jwt.NewJWTService(cfg.JWT))
	profileSvc := service.NewProfileService(userRepo, media.Disabled{}, cfg.Cloudinary.ProfileFolder)
	friendSvc := service.NewFriendService(repository.NewFriendshipRepository(gdb), userRepo, nil)
	postSvc := service.NewPostService(repository.NewPostRepository(gdb), userRepo, media.Disabled{}, cfg.Cloudinary.PostFolder)
	messageSvc := service.NewMessageService(repository.NewMessageRepository(gdb), userRepo, nil, nil)

	// 用户
	var ids []uint
	for i := 0; i < *users; i++ {
		username := fmt.Sprintf("%s%d", gofakeit.Username(), i)
		u, err := authSvc.Register(ctx, username, fmt.Sprintf("%s@example.com", username), *password)
		if err != nil {
			log.Printf("skip user %s: %v", username, err)
			continue
		}
		age := gofakeit.Number(18, 70)
		_, _ = profileSvc.UpdateProfile(ctx, u.ID, service.ProfileUpdate{
			Bio:                gofakeit.Sentence(10),
			RelationshipStatus: gofakeit.RandomString([]string{"single", "in a relationship", "married", "it's complicated"}),
			Age:                &age,
			Pronouns:           gofakeit.RandomString([]string{"she/her", "he/him", "they/them"}),
		})
		ids = append(ids, u.ID)
	}
	fmt.Printf("Seeded %d users (password %q)\n", len(ids), *password)

	// 好友：每个用户向后面的若干人发请求，约一半被接受
	edges := 0
	for i, sender := range ids {
		for j := i + 1; j < len(ids) && j <= i+3; j++ {
			recipient := ids[j]
			if _, err := friendSvc.SendRequest(ctx, sender, recipient); err != nil {
				continue
			}
			edges++
			if r.Intn(2) == 0 {
				_ = friendSvc.AcceptRequest(ctx, recipient, sender)
			}
		}
	}
	fmt.Printf("Seeded %d friendships\n", edges)

	// 帖子、评论、点赞
	var postIDs []uint
	for _, uid := range ids {
		for k := 0; k < *postsPerUser; k++ {
			p, err := postSvc.CreatePost(ctx, uid, service.NewPost{
				Title:   gofakeit.Sentence(5),
				Content: gofakeit.Paragraph(1, 3, 8, "\n"),
			})
			if err != nil {
				log.Printf("skip post: %v", err)
				continue
			}
			postIDs = append(postIDs, p.ID)
		}
	}
	for _, pid := range postIDs {
		for _, uid := range ids {
			switch r.Intn(4) {
			case 0:
				_, _, _ = postSvc.ToggleLike(ctx, uid, pid)
			case 1:
				_, _ = postSvc.AddComment(ctx, uid, pid, gofakeit.Sentence(8))
			}
		}
	}
	fmt.Printf("Seeded %d posts\n", len(postIDs))

	// 私信
	messages := 0
	for i := 0; i+1 < len(ids); i += 2 {
		for k := 0; k < 5; k++ {
			from, to := ids[i], ids[i+1]
			if k%2 == 1 {
				from, to = to, from
			}
			if _, _, err := messageSvc.SendMessage(ctx, from, to, gofakeit.Sentence(6)); err == nil {
				messages++
			}
		}
	}
	fmt.Printf("Seeded %d messages\n", messages)
}
