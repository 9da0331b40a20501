package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/taskdesk/taskdesk/internal/config"
	"github.com/taskdesk/taskdesk/internal/es"
	"github.com/taskdesk/taskdesk/internal/events"
	"github.com/taskdesk/taskdesk/internal/handlers"
	"github.com/taskdesk/taskdesk/internal/logging"
	loggingmw "github.com/taskdesk/taskdesk/internal/middleware/logging"
	"github.com/taskdesk/taskdesk/internal/session"
	"github.com/taskdesk/taskdesk/internal/tokens"
	httpserver "github.com/taskdesk/taskdesk/internal/transport/http"
)

const projectIndex = "projects"

func main() {
	configuration, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("configuration error: %v", err)
	}

	db, err := config.InitDB(configuration)
	if err != nil {
		log.Fatalf("database error: %v", err)
	}

	logger := logging.New(configuration.LOG_LEVEL)

	brokers := []string{configuration.KAFKA_ADDRESS}
	topics := []string{events.TopicUserEvents, events.TopicProjectEvents, events.TopicTaskEvents}
	prod, err := events.NewProducer(brokers, topics)
	if err != nil {
		log.Fatal(err)
	}

	esClient, err := es.NewClient(configuration)
	if err != nil {
		log.Fatal(err)
	}

	issuer := &tokens.Issuer{
		AccessSecret:  []byte(configuration.ACCESS_TOKEN_SECRET),
		AccessTTL:     configuration.ACCESS_TOKEN_TTL,
		RefreshSecret: []byte(configuration.REFRESH_TOKEN_SECRET),
		RefreshTTL:    configuration.REFRESH_TOKEN_TTL,
	}
	sessions := &session.Manager{DB: db, Issuer: issuer}

	e := echo.New()
	e.Pre(middleware.RemoveTrailingSlash())
	e.Use(middleware.Recover(), middleware.RequestID(), loggingmw.RequestLogger(logger))

	deps := httpserver.Deps{
		DB:           db,
		AccessSecret: issuer.AccessSecret,
		AuthHandler: &handlers.AuthHandler{
			Sessions: sessions,
			Producer: prod,
			Secure:   configuration.Production(),
		},
		UserHandler:    &handlers.UserHandler{DB: db},
		ProjectHandler: &handlers.ProjectHandler{DB: db, Producer: prod, ES: esClient, Index: projectIndex},
		TaskHandler:    &handlers.TaskHandler{DB: db, Producer: prod},
		SearchHandler:  &handlers.SearchHandler{ES: esClient, Index: projectIndex},
	}

	httpserver.Register(e, &deps)

	srv := &http.Server{
		Addr:         configuration.HTTP_ADDR,
		Handler:      e,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("http server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	<-quit

	log.Println("shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("server shutdown error: %v", err)
	}

	if sqlDB, err := db.DB(); err == nil {
		if err := sqlDB.Close(); err != nil {
			log.Printf("db close error: %v", err)
		}
	} else {
		log.Printf("db() error: %v", err)
	}

	if err := prod.Close(); err != nil {
		log.Printf("kafka close error: %v", err)
	}

	log.Println("shutdown complete")
}
