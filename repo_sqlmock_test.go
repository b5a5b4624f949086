package auth_test

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"

	auth "github.com/goliatone/go-teamauth"
)

func newMockRepo(t *testing.T) (auth.RepositoryManager, sqlmock.Sqlmock) {
	t.Helper()

	sqldb, mock, err := sqlmock.New()
	require.NoError(t, err)

	db := bun.NewDB(sqldb, sqlitedialect.New())
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		_ = db.Close()
	})

	return auth.NewRepositoryManager(db), mock
}

func TestStoreFailuresAreInternal(t *testing.T) {
	boom := errors.New("connection reset by peer")

	t.Run("team lookup", func(t *testing.T) {
		repo, mock := newMockRepo(t)
		mock.ExpectBegin()
		mock.ExpectQuery("SELECT").WillReturnError(boom)
		mock.ExpectRollback()

		svc := auth.NewTeamService(repo, auth.WithTeamLogger(silentLogger{}))
		err := svc.DeleteTeam(context.Background(), uuid.New())
		require.ErrorIs(t, err, boom)
		assert.Equal(t, auth.FailureInternal, auth.KindOf(err))
		assert.NotErrorIs(t, err, auth.ErrTeamNotFound)
	})

	t.Run("refresh revocation", func(t *testing.T) {
		repo, mock := newMockRepo(t)
		mock.ExpectBegin()
		mock.ExpectExec("DELETE FROM").WillReturnError(boom)
		mock.ExpectRollback()

		svc := auth.NewRefreshTokenService(repo, auth.WithRefreshLogger(silentLogger{}))
		n, err := svc.RevokeAll(context.Background(), uuid.New())
		require.ErrorIs(t, err, boom)
		assert.Zero(t, n)
		assert.Equal(t, auth.FailureInternal, auth.KindOf(err))
	})

	t.Run("refresh lookup", func(t *testing.T) {
		repo, mock := newMockRepo(t)
		mock.ExpectBegin()
		mock.ExpectQuery("SELECT").WillReturnError(boom)
		mock.ExpectRollback()

		svc := auth.NewRefreshTokenService(repo, auth.WithRefreshLogger(silentLogger{}))
		_, err := svc.Find(context.Background(), "payload", uuid.New(), uuid.New())
		require.ErrorIs(t, err, boom)
		assert.NotErrorIs(t, err, auth.ErrRefreshTokenNotFound, "store failures are not reported as misses")
	})

	t.Run("pipeline team loader", func(t *testing.T) {
		repo, mock := newMockRepo(t)
		mock.ExpectQuery("SELECT").WillReturnError(boom)

		teamID := uuid.New()
		p := auth.NewPipeline(func(context.Context, *showTeamRequest) (string, error) {
			return "", nil
		}, nil,
			staticClaims(principalClaims(uuid.New(), teamID, auth.TeamCustomer, "0")),
			auth.WithTeamLoader(repo.Teams()),
			auth.WithPipelineLogger(silentLogger{}),
		)

		_, err := p.Handle(context.Background(), &showTeamRequest{})
		require.ErrorIs(t, err, boom)
		assert.Equal(t, auth.FailureInternal, auth.KindOf(err))
		assert.Equal(t, "an unexpected server error occurred", auth.PublicFailure(err).Message)
	})

	t.Run("canceled context never opens a transaction", func(t *testing.T) {
		repo, _ := newMockRepo(t)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		svc := auth.NewRefreshTokenService(repo, auth.WithRefreshLogger(silentLogger{}))
		_, err := svc.Issue(ctx, uuid.New())
		assert.ErrorIs(t, err, context.Canceled)
	})
}
