package subpostgres

import (
	"context"
	"database/sql"
	"errors"
	"log"

	"github.com/UnendingLoop/FilmWeekly/internal/model"
)

func (p PostgresRepo) CreateIssue(ctx context.Context, issue *model.Issue) error {
	query := `INSERT INTO issues (slug, title, guidance, summary, status, publish_at, submission_deadline, created_at, updated_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, now(), now())
	ON CONFLICT (slug) DO NOTHING
	RETURNING id, created_at, updated_at`

	err := p.DB.QueryRowContext(ctx, query,
		issue.Slug,
		issue.Title,
		issue.Guidance,
		issue.Summary,
		model.IssueDraft,
		issue.PublishAt,
		issue.SubmissionDeadline,
	).Scan(&issue.ID, &issue.CreatedAt, &issue.UpdatedAt)
	if err != nil {
		switch {
		case errors.Is(err, sql.ErrNoRows):
			return model.ErrSlugTaken // 409
		default:
			return err // 500
		}
	}
	issue.Status = model.IssueDraft
	return nil
}

func (p PostgresRepo) ListIssues(ctx context.Context) ([]model.Issue, error) {
	query := `SELECT id, slug, title, guidance, summary, status, publish_at, submission_deadline, created_at, updated_at
	FROM issues
	ORDER BY created_at DESC`

	rows, err := p.DB.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}

	defer func() {
		if err := rows.Close(); err != nil {
			log.Printf("Error while closing *sql.Rows after scanning: %v", err)
		}
	}()

	var issues []model.Issue
	for rows.Next() {
		var i model.Issue
		if err := rows.Scan(&i.ID,
			&i.Slug,
			&i.Title,
			&i.Guidance,
			&i.Summary,
			&i.Status,
			&i.PublishAt,
			&i.SubmissionDeadline,
			&i.CreatedAt,
			&i.UpdatedAt); err != nil {
			return nil, err
		}
		issues = append(issues, i)
	}

	if rows.Err() != nil {
		return nil, rows.Err()
	}

	return issues, nil
}

func (p PostgresRepo) GetIssue(ctx context.Context, id int64) (*model.Issue, error) {
	query := `SELECT id, slug, title, guidance, summary, status, publish_at, submission_deadline, created_at, updated_at
	FROM issues
	WHERE id = $1`
	var i model.Issue

	err := p.DB.QueryRowContext(ctx, query, id).Scan(&i.ID,
		&i.Slug,
		&i.Title,
		&i.Guidance,
		&i.Summary,
		&i.Status,
		&i.PublishAt,
		&i.SubmissionDeadline,
		&i.CreatedAt,
		&i.UpdatedAt)
	if err != nil {
		switch {
		case errors.Is(err, sql.ErrNoRows):
			return nil, model.ErrIssueNotFound
		default:
			return nil, err // 500
		}
	}
	return &i, nil
}

// EnsurePortal returns the issue's existing portal token or persists the
// provided one if the issue has none yet
func (p PostgresRepo) EnsurePortal(ctx context.Context, issueID int64, token string) (string, error) {
	var existing string
	err := p.DB.QueryRowContext(ctx, `SELECT token FROM issue_portals WHERE issue_id = $1`, issueID).Scan(&existing)
	switch {
	case err == nil:
		return existing, nil
	case errors.Is(err, sql.ErrNoRows):
	default:
		return "", err
	}

	query := `INSERT INTO issue_portals (issue_id, token, created_at)
	VALUES ($1, $2, now())
	RETURNING token`
	if err := p.DB.QueryRowContext(ctx, query, issueID, token).Scan(&existing); err != nil {
		return "", err
	}
	return existing, nil
}

func (p PostgresRepo) GetPortalIssue(ctx context.Context, token string) (*model.Issue, error) {
	query := `SELECT i.id, i.slug, i.title, i.guidance, i.summary, i.status, i.publish_at, i.submission_deadline, i.created_at, i.updated_at
	FROM issue_portals p
	JOIN issues i ON i.id = p.issue_id
	WHERE p.token = $1`
	var i model.Issue

	err := p.DB.QueryRowContext(ctx, query, token).Scan(&i.ID,
		&i.Slug,
		&i.Title,
		&i.Guidance,
		&i.Summary,
		&i.Status,
		&i.PublishAt,
		&i.SubmissionDeadline,
		&i.CreatedAt,
		&i.UpdatedAt)
	if err != nil {
		switch {
		case errors.Is(err, sql.ErrNoRows):
			return nil, model.ErrPortalNotFound
		default:
			return nil, err // 500
		}
	}
	i.PortalToken = token
	return &i, nil
}

func (p PostgresRepo) InsertVote(ctx context.Context, submissionID int64, voterIP string) error {
	query := `INSERT INTO submission_votes (submission_id, voter_ip, created_at)
	VALUES ($1, $2, now())
	ON CONFLICT (submission_id, voter_ip) DO NOTHING
	RETURNING id`

	var id int64
	err := p.DB.QueryRowContext(ctx, query, submissionID, voterIP).Scan(&id)
	if err != nil {
		switch {
		case errors.Is(err, sql.ErrNoRows):
			return model.ErrAlreadyVoted // 409
		default:
			return err // 500
		}
	}
	return nil
}

func (p PostgresRepo) HasVoted(ctx context.Context, submissionID int64, voterIP string) (bool, error) {
	var exists bool
	err := p.DB.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM submission_votes WHERE submission_id = $1 AND voter_ip = $2)`,
		submissionID, voterIP).Scan(&exists)
	return exists, err
}

func (p PostgresRepo) CountVotes(ctx context.Context, submissionID int64) (int, error) {
	var count int
	err := p.DB.QueryRowContext(ctx,
		`SELECT count(*) FROM submission_votes WHERE submission_id = $1`,
		submissionID).Scan(&count)
	return count, err
}

func (p PostgresRepo) CountIPVotesForIssue(ctx context.Context, issueID int64, voterIP string) (int, error) {
	query := `SELECT count(*)
	FROM submission_votes v
	JOIN submissions s ON s.id = v.submission_id
	WHERE s.issue_id = $1 AND v.voter_ip = $2`

	var count int
	err := p.DB.QueryRowContext(ctx, query, issueID, voterIP).Scan(&count)
	return count, err
}
