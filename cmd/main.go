package main

import (
	"context"
	"log"
	"net/http"
	"time"

	"coffeechat/backend/internal/api/handler"
	"coffeechat/backend/internal/chathub"
	"coffeechat/backend/internal/config"
	"coffeechat/backend/internal/models"
	"coffeechat/backend/internal/storage"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func setupDependencies(cfg config.Config) (*gorm.DB, *redis.Client) {
	db, err := gorm.Open(postgres.Open(cfg.PostgresDSN), &gorm.Config{})
	if err != nil {
		log.Fatalf("Failed to connect PostgreSQL: %v", err)
	}

	rdb := redis.NewClient(&redis.Options{
		Addr: cfg.RedisAddr,
		DB:   cfg.RedisDB,
	})
	ctx := context.Background()
	if _, err := rdb.Ping(ctx).Result(); err != nil {
		log.Fatalf("Failed to connect Redis: %v", err)
	}

	err = db.AutoMigrate(
		&models.User{},
		&models.ChatRoom{},
	)
	if err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	log.Println("Database and Redis connections established, migrations complete.")
	return db, rdb
}

func main() {
	log.Println("Starting CoffeeChat Backend...")

	if err := godotenv.Load(); err != nil {
		log.Println("Warning: Error loading .env file")
	}
	cfg := config.Load()

	db, rdb := setupDependencies(cfg)
	s := storage.NewStorageService(db, rdb)

	// Matchmaking core: presence directory, room registry, relay hub and
	// the matcher on top of them.
	presence := chathub.NewPresenceDirectory()
	registry := chathub.NewRoomRegistry(presence, s)
	channels := chathub.NewChannelHub(s)
	registry.SetChannelHub(channels)
	matcher := chathub.NewMatcherService(presence, registry, s)
	matcher.EnforceLocation = cfg.EnforceLocation
	matcher.RestoreSearchQueue()

	r := gin.Default()
	h := handler.NewHandler(matcher, registry, channels, presence, s, cfg)

	r.GET("/session", h.GetSession)
	r.POST("/chat/match", h.FindMatch)
	r.POST("/chat/leave", h.Leave)
	r.GET("/ws/:room_id", h.ServeWebSocket)

	server := &http.Server{
		Addr:           cfg.HTTPAddr,
		Handler:        r,
		ReadTimeout:    10 * time.Second,
		WriteTimeout:   10 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}

	log.Fatal(server.ListenAndServe())
}
