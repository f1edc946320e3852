package main

import (
	"context"
	"log"
	"strconv"

	"github.com/UnendingLoop/FilmWeekly/internal/model"
	"github.com/wb-go/wbf/config"
)

type SubmissionAPIService interface {
	CreateSubmission(ctx context.Context, data *model.SubmissionCreateData, adminRequest bool) (*model.Submission, error)
	GetSubmission(ctx context.Context, id int64) (*model.Submission, error)
	ListSubmissions(ctx context.Context, req *model.ListRequest) ([]model.Submission, error)
	Review(ctx context.Context, id int64, reviewer string, decision *model.ReviewDecision) (*model.Submission, error)
	Vote(ctx context.Context, id int64, voterIP string) (*model.VoteResult, error)
	RecomputeModeration(ctx context.Context, id int64, actor string) (*model.Submission, error)
	CreateIssue(ctx context.Context, data *model.IssueCreateData, actor string) (*model.Issue, error)
	ListIssues(ctx context.Context) ([]model.Issue, error)
	GetIssuePortal(ctx context.Context, issueID int64) (*model.Issue, error)
	ListRecentAudit(ctx context.Context, limit int) ([]model.AuditEntry, error)
	ReviveStalePending(ctx context.Context, limit int)
}

// envInt - numeric envs arrive as strings through the config layer
func envInt(cfg *config.Config, key string, def int) int {
	raw := cfg.GetString(key)
	if raw == "" {
		return def
	}
	val, err := strconv.Atoi(raw)
	if err != nil {
		log.Fatalf("Invalid value %q for %s. Exiting the app...", raw, key)
	}
	return val
}
