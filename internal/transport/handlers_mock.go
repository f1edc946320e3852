package transport

import (
	"context"

	"github.com/UnendingLoop/FilmWeekly/internal/model"
)

type mockSubmissionService struct {
	createFn      func(ctx context.Context, data *model.SubmissionCreateData, adminRequest bool) (*model.Submission, error)
	getFn         func(ctx context.Context, id int64) (*model.Submission, error)
	listFn        func(ctx context.Context, req *model.ListRequest) ([]model.Submission, error)
	reviewFn      func(ctx context.Context, id int64, reviewer string, decision *model.ReviewDecision) (*model.Submission, error)
	voteFn        func(ctx context.Context, id int64, voterIP string) (*model.VoteResult, error)
	recomputeFn   func(ctx context.Context, id int64, actor string) (*model.Submission, error)
	createIssueFn func(ctx context.Context, data *model.IssueCreateData, actor string) (*model.Issue, error)
	listIssuesFn  func(ctx context.Context) ([]model.Issue, error)
	getPortalFn   func(ctx context.Context, issueID int64) (*model.Issue, error)
	listAuditFn   func(ctx context.Context, limit int) ([]model.AuditEntry, error)
}

func (m *mockSubmissionService) CreateSubmission(ctx context.Context, data *model.SubmissionCreateData, adminRequest bool) (*model.Submission, error) {
	return m.createFn(ctx, data, adminRequest)
}

func (m *mockSubmissionService) GetSubmission(ctx context.Context, id int64) (*model.Submission, error) {
	return m.getFn(ctx, id)
}

func (m *mockSubmissionService) ListSubmissions(ctx context.Context, req *model.ListRequest) ([]model.Submission, error) {
	return m.listFn(ctx, req)
}

func (m *mockSubmissionService) Review(ctx context.Context, id int64, reviewer string, decision *model.ReviewDecision) (*model.Submission, error) {
	return m.reviewFn(ctx, id, reviewer, decision)
}

func (m *mockSubmissionService) Vote(ctx context.Context, id int64, voterIP string) (*model.VoteResult, error) {
	return m.voteFn(ctx, id, voterIP)
}

func (m *mockSubmissionService) RecomputeModeration(ctx context.Context, id int64, actor string) (*model.Submission, error) {
	return m.recomputeFn(ctx, id, actor)
}

func (m *mockSubmissionService) CreateIssue(ctx context.Context, data *model.IssueCreateData, actor string) (*model.Issue, error) {
	return m.createIssueFn(ctx, data, actor)
}

func (m *mockSubmissionService) ListIssues(ctx context.Context) ([]model.Issue, error) {
	return m.listIssuesFn(ctx)
}

func (m *mockSubmissionService) GetIssuePortal(ctx context.Context, issueID int64) (*model.Issue, error) {
	return m.getPortalFn(ctx, issueID)
}

func (m *mockSubmissionService) ListRecentAudit(ctx context.Context, limit int) ([]model.AuditEntry, error) {
	return m.listAuditFn(ctx, limit)
}
