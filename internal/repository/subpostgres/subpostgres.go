// Package subpostgres implements the metadata-store contract on Postgres
package subpostgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"strconv"

	"github.com/UnendingLoop/FilmWeekly/internal/model"
	"github.com/wb-go/wbf/dbpg"
)

type PostgresRepo struct {
	DB *dbpg.DB
}

func (p PostgresRepo) CreateSubmission(ctx context.Context, s *model.Submission, images []model.SubmissionImage) error {
	tx, err := p.DB.Master.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to open tx for submission insert: %w", err)
	}
	defer func() {
		if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
			log.Printf("Failed to rollback submission tx: %v", err)
		}
	}()

	query := `INSERT INTO submissions (issue_id, title, author_name, author_contact, location, shot_at, equipment, description, status, moderation_status, created_at, updated_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, now(), now())
	RETURNING id, created_at, updated_at`
	if err := tx.QueryRowContext(ctx, query,
		s.IssueID,
		s.Title,
		s.AuthorName,
		s.AuthorContact,
		s.Location,
		s.ShotAt,
		s.Equipment,
		s.Description,
		model.StatusPending,
		model.ModerationPending,
	).Scan(&s.ID, &s.CreatedAt, &s.UpdatedAt); err != nil {
		return err
	}
	s.Status = model.StatusPending
	s.ModerationStatus = model.ModerationPending

	imgQuery := `INSERT INTO submission_images (submission_id, position, source_key, thumbnail_key, original_name, size, width, height, metadata)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	RETURNING id`
	for i := range images {
		images[i].SubmissionID = s.ID
		if err := tx.QueryRowContext(ctx, imgQuery,
			s.ID,
			images[i].Position,
			images[i].SourceKey,
			images[i].ThumbnailKey,
			images[i].OriginalName,
			images[i].Size,
			images[i].Width,
			images[i].Height,
			images[i].Metadata,
		).Scan(&images[i].ID); err != nil {
			return err
		}
	}

	return tx.Commit()
}

func (p PostgresRepo) GetSubmission(ctx context.Context, id int64) (*model.Submission, error) {
	query := `SELECT id, issue_id, title, author_name, author_contact, location, shot_at, equipment, description, status, moderation_status, moderation_summary, created_at, updated_at
	FROM submissions
	WHERE id = $1`
	var s model.Submission

	err := p.DB.QueryRowContext(ctx, query, id).Scan(&s.ID,
		&s.IssueID,
		&s.Title,
		&s.AuthorName,
		&s.AuthorContact,
		&s.Location,
		&s.ShotAt,
		&s.Equipment,
		&s.Description,
		&s.Status,
		&s.ModerationStatus,
		&s.ModerationSummary,
		&s.CreatedAt,
		&s.UpdatedAt)
	if err != nil {
		switch {
		case errors.Is(err, sql.ErrNoRows):
			return nil, model.ErrSubmissionNotFound
		default:
			return nil, err // 500
		}
	}
	return &s, nil
}

func (p PostgresRepo) ListSubmissions(ctx context.Context, req *model.ListRequest) ([]model.Submission, error) {
	query := `SELECT id, issue_id, title, author_name, status, moderation_status, created_at
	FROM submissions`

	conds := ""
	args := make([]any, 0, 5)
	addCond := func(expr string, val any) {
		args = append(args, val)
		if conds == "" {
			conds = " WHERE "
		} else {
			conds += " AND "
		}
		conds += expr + "$" + strconv.Itoa(len(args))
	}

	if req.Status != "" {
		addCond("status = ", req.Status)
	}
	if req.ModerationStatus != "" {
		addCond("moderation_status = ", req.ModerationStatus)
	}
	if req.IssueID > 0 {
		addCond("issue_id = ", req.IssueID)
	}

	args = append(args, req.Limit, (req.Page-1)*req.Limit)
	query += conds + fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d OFFSET $%d", len(args)-1, len(args))

	rows, err := p.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}

	defer func() {
		if err := rows.Close(); err != nil {
			log.Printf("Error while closing *sql.Rows after scanning: %v", err)
		}
	}()

	subs := make([]model.Submission, 0, req.Limit)
	for rows.Next() {
		var s model.Submission
		if err := rows.Scan(&s.ID,
			&s.IssueID,
			&s.Title,
			&s.AuthorName,
			&s.Status,
			&s.ModerationStatus,
			&s.CreatedAt); err != nil {
			return nil, err
		}
		subs = append(subs, s)
	}

	if rows.Err() != nil {
		return nil, rows.Err()
	}

	return subs, nil
}

func (p PostgresRepo) UpdateSubmissionStatus(ctx context.Context, id int64, status model.Status) error {
	query := `UPDATE submissions SET status = $1, updated_at = now() WHERE id = $2`
	row := p.DB.QueryRowContext(ctx, query, status, id)

	if row.Err() != nil {
		switch {
		case errors.Is(row.Err(), sql.ErrNoRows):
			return model.ErrSubmissionNotFound // 404
		default:
			return row.Err() // 500
		}
	}
	return nil
}

// UpdateSubmissionModeration - last-writer-wins projection of the aggregate;
// a redelivered task recomputing the same values is harmless
func (p PostgresRepo) UpdateSubmissionModeration(ctx context.Context, id int64, status model.ModerationStatus, summary string) error {
	query := `UPDATE submissions SET moderation_status = $1, moderation_summary = $2, updated_at = now() WHERE id = $3`
	row := p.DB.QueryRowContext(ctx, query, status, summary, id)

	if row.Err() != nil {
		switch {
		case errors.Is(row.Err(), sql.ErrNoRows):
			return model.ErrSubmissionNotFound // 404
		default:
			return row.Err() // 500
		}
	}
	return nil
}

func (p PostgresRepo) FetchStalePending(ctx context.Context, limit int) ([]int64, error) {
	query := `SELECT id
	FROM submissions
	WHERE moderation_status = $1
	AND updated_at < now() - interval '10 minutes'
	LIMIT $2`

	rows, err := p.DB.QueryContext(ctx, query, model.ModerationPending, limit)
	if err != nil {
		return nil, err
	}

	defer func() {
		if err := rows.Close(); err != nil {
			log.Printf("Error while closing *sql.Rows after scanning: %v", err)
		}
	}()

	stale := make([]int64, 0, limit)
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		stale = append(stale, id)
	}

	if rows.Err() != nil {
		return nil, rows.Err()
	}

	return stale, nil
}

func (p PostgresRepo) ListImages(ctx context.Context, submissionID int64) ([]model.SubmissionImage, error) {
	query := `SELECT id, submission_id, position, source_key, thumbnail_key, original_name, size, width, height, metadata
	FROM submission_images
	WHERE submission_id = $1
	ORDER BY position`

	rows, err := p.DB.QueryContext(ctx, query, submissionID)
	if err != nil {
		return nil, err
	}

	defer func() {
		if err := rows.Close(); err != nil {
			log.Printf("Error while closing *sql.Rows after scanning: %v", err)
		}
	}()

	var images []model.SubmissionImage
	for rows.Next() {
		var img model.SubmissionImage
		if err := rows.Scan(&img.ID,
			&img.SubmissionID,
			&img.Position,
			&img.SourceKey,
			&img.ThumbnailKey,
			&img.OriginalName,
			&img.Size,
			&img.Width,
			&img.Height,
			&img.Metadata); err != nil {
			return nil, err
		}
		images = append(images, img)
	}

	if rows.Err() != nil {
		return nil, rows.Err()
	}

	return images, nil
}

// UpdateImageDimensions - coalesce semantics: a nil width/height from this run
// must not erase a previously recorded value
func (p PostgresRepo) UpdateImageDimensions(ctx context.Context, imageID int64, width, height *int) error {
	query := `UPDATE submission_images SET width = COALESCE($1, width), height = COALESCE($2, height) WHERE id = $3`
	row := p.DB.QueryRowContext(ctx, query, width, height, imageID)

	if row.Err() != nil {
		return row.Err()
	}
	return nil
}

func (p PostgresRepo) InsertModerationResult(ctx context.Context, res *model.ModerationResult) error {
	query := `INSERT INTO moderation_results (submission_id, image_id, provider, verdict, score, reasons, raw_response, created_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, now())`
	return p.DB.QueryRowContext(ctx, query,
		res.SubmissionID,
		res.ImageID,
		res.Provider,
		res.Verdict,
		res.Score,
		res.Reasons,
		res.RawResponse,
	).Err()
}

func (p PostgresRepo) ListModerationResults(ctx context.Context, submissionID int64) ([]model.ModerationResult, error) {
	query := `SELECT id, submission_id, image_id, provider, verdict, score, reasons, raw_response, created_at
	FROM moderation_results
	WHERE submission_id = $1
	ORDER BY created_at DESC, id DESC`

	return p.queryModerationResults(ctx, query, submissionID)
}

// LatestModerationResults returns the newest row per image - the state the
// aggregate is derivable from under the append-only model
func (p PostgresRepo) LatestModerationResults(ctx context.Context, submissionID int64) ([]model.ModerationResult, error) {
	query := `SELECT DISTINCT ON (image_id) id, submission_id, image_id, provider, verdict, score, reasons, raw_response, created_at
	FROM moderation_results
	WHERE submission_id = $1
	ORDER BY image_id, created_at DESC, id DESC`

	return p.queryModerationResults(ctx, query, submissionID)
}

func (p PostgresRepo) queryModerationResults(ctx context.Context, query string, submissionID int64) ([]model.ModerationResult, error) {
	rows, err := p.DB.QueryContext(ctx, query, submissionID)
	if err != nil {
		return nil, err
	}

	defer func() {
		if err := rows.Close(); err != nil {
			log.Printf("Error while closing *sql.Rows after scanning: %v", err)
		}
	}()

	var results []model.ModerationResult
	for rows.Next() {
		var r model.ModerationResult
		if err := rows.Scan(&r.ID,
			&r.SubmissionID,
			&r.ImageID,
			&r.Provider,
			&r.Verdict,
			&r.Score,
			&r.Reasons,
			&r.RawResponse,
			&r.CreatedAt); err != nil {
			return nil, err
		}
		results = append(results, r)
	}

	if rows.Err() != nil {
		return nil, rows.Err()
	}

	return results, nil
}

func (p PostgresRepo) AppendAudit(ctx context.Context, entry *model.AuditEntry) error {
	query := `INSERT INTO audit_logs (actor, action, entity, entity_id, payload, created_at)
	VALUES ($1, $2, $3, $4, $5, now())`
	return p.DB.QueryRowContext(ctx, query,
		entry.Actor,
		entry.Action,
		entry.Entity,
		entry.EntityID,
		entry.Payload,
	).Err()
}

func (p PostgresRepo) ListRecentAudit(ctx context.Context, limit int) ([]model.AuditEntry, error) {
	query := `SELECT id, actor, action, entity, entity_id, payload, created_at
	FROM audit_logs
	ORDER BY created_at DESC, id DESC
	LIMIT $1`

	rows, err := p.DB.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, err
	}

	defer func() {
		if err := rows.Close(); err != nil {
			log.Printf("Error while closing *sql.Rows after scanning: %v", err)
		}
	}()

	entries := make([]model.AuditEntry, 0, limit)
	for rows.Next() {
		var e model.AuditEntry
		if err := rows.Scan(&e.ID,
			&e.Actor,
			&e.Action,
			&e.Entity,
			&e.EntityID,
			&e.Payload,
			&e.CreatedAt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}

	if rows.Err() != nil {
		return nil, rows.Err()
	}

	return entries, nil
}
