// Package repository provides methods to work with DB
package repository

import (
	"context"
	"database/sql"
	"log"
	"path/filepath"
	"time"

	"github.com/UnendingLoop/FilmWeekly/internal/model"
	"github.com/UnendingLoop/FilmWeekly/internal/repository/subpostgres"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/wb-go/wbf/config"
	"github.com/wb-go/wbf/dbpg"
)

// SubmissionRepo - the metadata-store contract. Moderation results are
// append-only; dimension updates coalesce so a rerun never erases known data.
type SubmissionRepo interface {
	CreateSubmission(ctx context.Context, s *model.Submission, images []model.SubmissionImage) error
	GetSubmission(ctx context.Context, id int64) (*model.Submission, error)
	ListSubmissions(ctx context.Context, req *model.ListRequest) ([]model.Submission, error)
	UpdateSubmissionStatus(ctx context.Context, id int64, status model.Status) error
	UpdateSubmissionModeration(ctx context.Context, id int64, status model.ModerationStatus, summary string) error
	FetchStalePending(ctx context.Context, limit int) ([]int64, error)

	ListImages(ctx context.Context, submissionID int64) ([]model.SubmissionImage, error)
	UpdateImageDimensions(ctx context.Context, imageID int64, width, height *int) error

	InsertModerationResult(ctx context.Context, res *model.ModerationResult) error
	ListModerationResults(ctx context.Context, submissionID int64) ([]model.ModerationResult, error)
	LatestModerationResults(ctx context.Context, submissionID int64) ([]model.ModerationResult, error)

	AppendAudit(ctx context.Context, entry *model.AuditEntry) error
	ListRecentAudit(ctx context.Context, limit int) ([]model.AuditEntry, error)

	CreateIssue(ctx context.Context, issue *model.Issue) error
	ListIssues(ctx context.Context) ([]model.Issue, error)
	GetIssue(ctx context.Context, id int64) (*model.Issue, error)
	EnsurePortal(ctx context.Context, issueID int64, token string) (string, error)
	GetPortalIssue(ctx context.Context, token string) (*model.Issue, error)

	InsertVote(ctx context.Context, submissionID int64, voterIP string) error
	HasVoted(ctx context.Context, submissionID int64, voterIP string) (bool, error)
	CountVotes(ctx context.Context, submissionID int64) (int, error)
	CountIPVotesForIssue(ctx context.Context, issueID int64, voterIP string) (int, error)
}

func NewPostgresSubmissionRepo(dbconn *dbpg.DB) SubmissionRepo {
	return subpostgres.PostgresRepo{DB: dbconn}
}

func ConnectWithRetries(appConfig *config.Config, retryCount int, idleTime time.Duration) *dbpg.DB {
	dbOptions := dbpg.Options{
		MaxOpenConns:    5,
		MaxIdleConns:    5,
		ConnMaxLifetime: 10 * time.Minute,
	}
	dsnLink := appConfig.GetString("POSTGRES_DSN")
	var dbConn *dbpg.DB
	var err error

	for range retryCount {
		dbConn, err = dbpg.New(dsnLink, nil, &dbOptions)
		if err == nil {
			break
		}
		log.Printf("Failed to connect to PGDB: %s\nWaiting %v before next retry...", err, idleTime)
		time.Sleep(idleTime)
	}

	if err != nil {
		log.Fatal("Failed to connect to DB. Exiting the app...")
	}

	return dbConn
}

func MigrateWithRetries(db *sql.DB, migrationsPath string, retries int, idle time.Duration) {
	for i := range retries {
		log.Printf("Migration try #%d...", i)
		err := runMigrate(db, migrationsPath)
		if err == nil {
			break
		}
		switch i {
		case retries:
			log.Fatalln("Out of retries. Exiting...")
		default:
			log.Printf("Migration try #%d was unsuccessful. Waiting %v before next try...", i, idle)
			time.Sleep(idle)
		}
	}
}

func runMigrate(db *sql.DB, migrationsPath string) error {
	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return err
	}

	absPath, err := filepath.Abs(migrationsPath)
	if err != nil {
		return err
	}

	sourceURL := "file://" + absPath
	log.Println("Running migrations from:", sourceURL)

	m, err := migrate.NewWithDatabaseInstance(
		sourceURL,
		"postgres",
		driver,
	)
	if err != nil {
		return err
	}

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return err
	}

	log.Println("Database migrations applied successfully")
	return nil
}
