// cmd/server/main.go
package main

import (
	"log"
	"net/http"
	"os"
	"strings"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	_ "github.com/joho/godotenv/autoload"
	"github.com/sirupsen/logrus"

	"github.com/skirmish-game/skirmish/internal/auth"
	"github.com/skirmish-game/skirmish/internal/cache"
	"github.com/skirmish-game/skirmish/internal/database"
	"github.com/skirmish-game/skirmish/internal/handlers"
	"github.com/skirmish-game/skirmish/internal/leaderboard"
	"github.com/skirmish-game/skirmish/internal/ledger"
	"github.com/skirmish-game/skirmish/internal/middleware"
	"github.com/skirmish-game/skirmish/internal/scheduler"
)

func main() {
	auth.Init()
	database.ConnectDB()

	if err := cache.ConnectRedis(); err != nil {
		log.Printf("redis unavailable, spend history disabled: %v", err)
		cache.Rdb = nil
	}

	logger := logrus.New()
	logger.SetLevel(logrus.DebugLevel)

	srv := handlers.NewServer(ledger.New(database.DB), leaderboard.NewEngine(database.DB), logger)

	sched, err := scheduler.StartReplenish(srv.Ledger, logger)
	if err != nil {
		log.Fatalf("failed to start replenish scheduler: %v", err)
	}
	defer func() { _ = sched.Shutdown() }()

	r := chi.NewRouter()
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.Heartbeat("/ping"))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: func() []string {
			// allow only origins specified in dotenv file if we are in production mode
			if os.Getenv("SKIRMISH_ENV") == "production" {
				return strings.Split(os.Getenv("ALLOWED_ORIGINS"), ",")
			}
			return []string{"https://*", "http://*"}
		}(),
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true, // auth_token travels as a cookie
		MaxAge:           300,  // Maximum value not ignored by any of major browsers
	}))

	// account endpoints
	r.HandleFunc("/account/create", handlers.CreateAccountHandler)
	r.HandleFunc("/account/login", handlers.LoginHandler)
	r.HandleFunc("/account/me", handlers.MeHandler)

	// credit endpoints
	r.Handle("/credits/use", middleware.LogMiddleware(logger)(http.HandlerFunc(
		handlers.UseCreditHandler(srv),
	)))

	// leaderboard endpoints
	r.Handle("/leaderboard/create", middleware.LogMiddleware(logger)(http.HandlerFunc(
		handlers.CreateLeaderboardHandler(srv),
	)))
	r.Handle("/leaderboard/get", middleware.LogMiddleware(logger)(http.HandlerFunc(
		handlers.GetLeaderboardHandler(srv),
	)))

	// leaderboard live feed
	r.Handle("/leaderboard/ws/*", middleware.LogMiddleware(logger)(http.HandlerFunc(
		handlers.LeaderboardWSHandler(logger, srv),
	)))

	addr := ":8080"
	if port := os.Getenv("PORT"); port != "" {
		addr = ":" + port
	}
	logger.Infof("Running on %s", addr)
	if err := http.ListenAndServe(addr, r); err != nil {
		log.Fatalf("server exited: %v", err)
	}
}
