package auth

import (
	"context"
	"database/sql"
	"errors"
	"log"

	"github.com/goliatone/go-repository-bun"
	"github.com/uptrace/bun"
)

// RepositoryManager exposes all repositories and the unit of work
type RepositoryManager interface {
	repository.Validator
	repository.TransactionManager
	Teams() Teams
	Members() Members
	RefreshTokens() RefreshTokens
}

type mngr struct {
	db            *bun.DB
	teams         Teams
	members       Members
	refreshTokens RefreshTokens
}

func NewRepositoryManager(db *bun.DB) RepositoryManager {
	return &mngr{
		db:            db,
		teams:         NewTeamsRepository(db),
		members:       NewMembersRepository(db),
		refreshTokens: NewRefreshTokensRepository(db),
	}
}

func (m mngr) Validate() error {
	if m.db == nil {
		return errors.New("repository db should be initialized")
	}

	if m.teams == nil {
		return errors.New("repository teams should be initialized")
	}

	if m.members == nil {
		return errors.New("repository members should be initialized")
	}

	if m.refreshTokens == nil {
		return errors.New("repository refreshTokens should be initialized")
	}

	return nil
}

func (m mngr) MustValidate() {
	if err := m.Validate(); err != nil {
		log.Panic(err)
	}
}

func (m mngr) RunInTx(ctx context.Context, opts *sql.TxOptions, f func(ctx context.Context, tx bun.Tx) error) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return m.db.RunInTx(ctx, opts, f)
	}
}

func (m mngr) Teams() Teams {
	return m.teams
}

func (m mngr) Members() Members {
	return m.members
}

func (m mngr) RefreshTokens() RefreshTokens {
	return m.refreshTokens
}
