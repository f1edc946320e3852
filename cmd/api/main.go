// Package main (in api-subfolder) provides launch of the whole application except worker
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

	"github.com/UnendingLoop/FilmWeekly/internal/kafka"
	"github.com/UnendingLoop/FilmWeekly/internal/mwlogger"
	"github.com/UnendingLoop/FilmWeekly/internal/repository"
	"github.com/UnendingLoop/FilmWeekly/internal/service"
	"github.com/UnendingLoop/FilmWeekly/internal/storage"
	"github.com/UnendingLoop/FilmWeekly/internal/transport"
	"github.com/wb-go/wbf/config"
	"github.com/wb-go/wbf/dbpg"
	"github.com/wb-go/wbf/ginext"
	wbfkafka "github.com/wb-go/wbf/kafka"
	"github.com/wb-go/wbf/zlog"
)

func main() {
	appConfig := config.New()
	appConfig.EnableEnv("")
	if err := appConfig.LoadEnvFiles("./.env"); err != nil {
		log.Fatalf("Failed to load envs: %s\nExiting app...", err)
	}

	zlog.InitConsole()
	if err := zlog.SetLevel("info"); err != nil {
		log.Fatalf("Failed to init logger: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dbConn := repository.ConnectWithRetries(appConfig, 5, 10*time.Second)
	repository.MigrateWithRetries(dbConn.Master, "./migrations", 10, 15*time.Second)

	strg := storage.NewImageStorage(appConfig, 10*time.Second)
	repo := repository.NewPostgresSubmissionRepo(dbConn)

	broker := appConfig.GetString("KAFKA_BROKER")
	kafka.WaitReady(broker, 10*time.Second)
	topic := appConfig.GetString("KAFKA_TOPIC")
	kafka.EnsureTopic(ctx, broker, topic, 10*time.Second)
	pub := wbfkafka.NewProducer([]string{broker}, topic)

	policy := service.Policy{
		MaxImages:     envInt(appConfig, "IMAGES_PER_SUBMISSION", 5),
		VotesPerIssue: envInt(appConfig, "VOTES_PER_ISSUE", 5),
	}
	var svc SubmissionAPIService = service.NewSubmissionService(repo, pub, strg, policy)

	handlers := transport.NewSubmissionHandler(svc, appConfig.GetString("ADMIN_API_TOKEN"))

	mode := appConfig.GetString("GIN_MODE")
	engine := ginext.New(mode)

	engine.GET("/ping", handlers.SimplePinger)
	engine.POST("/api/submissions", handlers.Create)
	engine.GET("/api/submissions", handlers.ListSubmissions)
	engine.GET("/api/submissions/:id", handlers.GetSubmission)
	engine.POST("/api/submissions/:id/review", handlers.Review)
	engine.POST("/api/submissions/:id/votes", handlers.Vote)
	engine.POST("/api/submissions/:id/moderation/recompute", handlers.RecomputeModeration)
	engine.POST("/api/issues", handlers.CreateIssue)
	engine.GET("/api/issues", handlers.ListIssues)
	engine.GET("/api/issues/:id/portal", handlers.GetIssuePortal)
	engine.GET("/api/admin/audit", handlers.ListAudit)

	srv := &http.Server{
		Addr:    ":" + appConfig.GetString("APP_PORT"),
		Handler: mwlogger.NewMWLogger(engine),
	}

	go func() {
		log.Printf("Server running on http://localhost%s\n", srv.Addr)
		err := srv.ListenAndServe()
		if err != nil {
			switch {
			case errors.Is(err, http.ErrServerClosed):
				log.Println("Server gracefully stopping...")
			default:
				log.Printf("Server stopped: %v", err)
				stop()
			}
		}
	}()

	// background re-enqueue of submissions whose moderation task got lost
	go recoveryLoop(ctx, svc)

	<-ctx.Done()

	shutdown(pub, dbConn)
	log.Println("Exiting api...")
}

func recoveryLoop(ctx context.Context, svc SubmissionAPIService) {
	defer func() {
		if r := recover(); r != nil {
			log.Println("Recovery loop crashed:", r)
		}
	}()

	ticker := time.NewTicker(1 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			svc.ReviveStalePending(context.Background(), 20)
		}
	}
}

func shutdown(pub *wbfkafka.Producer, dbConn *dbpg.DB) {
	log.Println("Interrupt received!!! Starting shutdown sequence...")

	if err := pub.Close(); err != nil {
		log.Println("Failed to close Kafka-producer:", err)
	}
	log.Println("Kafka-producer connection closed.")

	if err := dbConn.Master.Close(); err != nil {
		log.Println("Failed to close DB-conn correctly:", err)
		return
	}
	log.Println("DBconn closed")
}
