package main

import (
	"context"
	"net/http"
	"os"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/alejandrejorge-design/domino-domination-online/internal/cache"
	"github.com/alejandrejorge-design/domino-domination-online/internal/database"
	"github.com/alejandrejorge-design/domino-domination-online/internal/server"
)

func main() {
	if err := godotenv.Load(); err != nil {
		logrus.Debug("no .env file found, using process environment")
	}
	if os.Getenv("LOG_LEVEL") == "debug" {
		logrus.SetLevel(logrus.DebugLevel)
	}

	ctx := context.Background()
	store, err := database.Connect(ctx)
	if err != nil {
		logrus.WithError(err).Fatal("database connection failed")
	}
	defer store.Close()
	if err := store.EnsureSchema(ctx); err != nil {
		logrus.WithError(err).Fatal("schema setup failed")
	}

	// Redis is optional: without it, cross-instance sync and the action
	// history are disabled but single-instance play still works.
	if err := cache.InitRedis(); err != nil {
		logrus.WithError(err).Warn("redis unavailable, running without cross-instance sync")
	}

	addr := os.Getenv("LISTEN_ADDR")
	if addr == "" {
		addr = ":8080"
	}
	srv := server.New(store)
	logrus.WithField("addr", addr).Info("domino server listening")
	if err := http.ListenAndServe(addr, srv.Routes()); err != nil {
		logrus.WithError(err).Fatal("server exited")
	}
}
