package subpostgres

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/UnendingLoop/FilmWeekly/internal/model"
	"github.com/stretchr/testify/require"
)

func TestPostgresRepo_CreateIssue(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	now := time.Now()
	issue := &model.Issue{Slug: "april-2026", Title: "April", Guidance: "Spring streets"}

	mock.ExpectQuery(`INSERT INTO issues`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at", "updated_at"}).AddRow(12, now, now))

	require.NoError(t, repo.CreateIssue(context.Background(), issue))
	require.Equal(t, int64(12), issue.ID)
	require.Equal(t, model.IssueDraft, issue.Status)

	// conflict swallows the row
	mock.ExpectQuery(`INSERT INTO issues`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at", "updated_at"}))

	err := repo.CreateIssue(context.Background(), issue)
	require.ErrorIs(t, err, model.ErrSlugTaken)
}

func TestPostgresRepo_EnsurePortal(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	// existing token wins over the provided one
	mock.ExpectQuery(`SELECT token FROM issue_portals`).
		WithArgs(int64(12)).
		WillReturnRows(sqlmock.NewRows([]string{"token"}).AddRow("old-token"))

	token, err := repo.EnsurePortal(context.Background(), 12, "new-token")
	require.NoError(t, err)
	require.Equal(t, "old-token", token)

	// no portal yet - provided token is persisted
	mock.ExpectQuery(`SELECT token FROM issue_portals`).
		WithArgs(int64(13)).
		WillReturnRows(sqlmock.NewRows([]string{"token"}))
	mock.ExpectQuery(`INSERT INTO issue_portals`).
		WithArgs(int64(13), "new-token").
		WillReturnRows(sqlmock.NewRows([]string{"token"}).AddRow("new-token"))

	token, err = repo.EnsurePortal(context.Background(), 13, "new-token")
	require.NoError(t, err)
	require.Equal(t, "new-token", token)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepo_GetPortalIssue(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	cols := []string{"id", "slug", "title", "guidance", "summary", "status", "publish_at", "submission_deadline", "created_at", "updated_at"}
	mock.ExpectQuery(`JOIN issues`).
		WithArgs("tok").
		WillReturnRows(sqlmock.NewRows(cols).
			AddRow(3, "april-2026", "April", "g", nil, model.IssueDraft, nil, time.Now(), time.Now(), time.Now()))

	issue, err := repo.GetPortalIssue(context.Background(), "tok")
	require.NoError(t, err)
	require.Equal(t, int64(3), issue.ID)
	require.Equal(t, "tok", issue.PortalToken)

	mock.ExpectQuery(`JOIN issues`).
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows(cols))

	_, err = repo.GetPortalIssue(context.Background(), "missing")
	require.ErrorIs(t, err, model.ErrPortalNotFound)
}

func TestPostgresRepo_InsertVote(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectQuery(`INSERT INTO submission_votes`).
		WithArgs(int64(7), "203.0.113.9").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))

	require.NoError(t, repo.InsertVote(context.Background(), 7, "203.0.113.9"))

	// conflict means the IP already voted for this submission
	mock.ExpectQuery(`INSERT INTO submission_votes`).
		WithArgs(int64(7), "203.0.113.9").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	err := repo.InsertVote(context.Background(), 7, "203.0.113.9")
	require.ErrorIs(t, err, model.ErrAlreadyVoted)
}

func TestPostgresRepo_VoteCounts(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectQuery(`SELECT EXISTS`).
		WithArgs(int64(7), "203.0.113.9").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	voted, err := repo.HasVoted(context.Background(), 7, "203.0.113.9")
	require.NoError(t, err)
	require.True(t, voted)

	mock.ExpectQuery(`SELECT count`).
		WithArgs(int64(7)).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))

	count, err := repo.CountVotes(context.Background(), 7)
	require.NoError(t, err)
	require.Equal(t, 3, count)

	mock.ExpectQuery(`JOIN submissions`).
		WithArgs(int64(3), "203.0.113.9").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(5))

	count, err = repo.CountIPVotesForIssue(context.Background(), 3, "203.0.113.9")
	require.NoError(t, err)
	require.Equal(t, 5, count)
}
