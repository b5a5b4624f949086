package auth

import (
	"context"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// RefreshTokens is the refresh token store
type RefreshTokens interface {
	repository.Repository[*RefreshToken]

	CreateTokenTx(ctx context.Context, tx bun.IDB, token *RefreshToken) (*RefreshToken, error)
	FindTokenTx(ctx context.Context, tx bun.IDB, payload string, userID, teamID uuid.UUID) (*RefreshToken, error)
	ReplacePayloadTx(ctx context.Context, tx bun.IDB, token *RefreshToken) error
	DeleteByUserTx(ctx context.Context, tx bun.IDB, userID uuid.UUID) (int64, error)
	ListByUserTx(ctx context.Context, tx bun.IDB, userID uuid.UUID) ([]*RefreshToken, error)
}

type refreshTokens struct {
	repository.Repository[*RefreshToken]
	db *bun.DB
}

var _ RefreshTokens = (*refreshTokens)(nil)

func NewRefreshTokensRepository(db *bun.DB) RefreshTokens {
	repo := repository.NewRepository[*RefreshToken](db, repository.ModelHandlers[*RefreshToken]{
		NewRecord: func() *RefreshToken { return &RefreshToken{} },
		GetID: func(r *RefreshToken) uuid.UUID {
			if r == nil {
				return uuid.Nil
			}
			return r.ID
		},
		SetID: func(r *RefreshToken, id uuid.UUID) {
			if r != nil {
				r.ID = id
			}
		},
		GetIdentifier: func() string {
			return "payload"
		},
	})

	return &refreshTokens{
		Repository: repo,
		db:         db,
	}
}

func (r *refreshTokens) CreateTokenTx(ctx context.Context, tx bun.IDB, token *RefreshToken) (*RefreshToken, error) {
	if token.ID == uuid.Nil {
		token.ID = uuid.New()
	}
	return r.Repository.CreateTx(ctx, tx, token)
}

// FindTokenTx matches payload, owner and the owner's team in one query
func (r *refreshTokens) FindTokenTx(ctx context.Context, tx bun.IDB, payload string, userID, teamID uuid.UUID) (*RefreshToken, error) {
	record := &RefreshToken{}
	err := tx.NewSelect().
		Model(record).
		Join("JOIN users AS usr ON usr.id = rt.user_id").
		Where("?TableAlias.payload = ?", payload).
		Where("?TableAlias.user_id = ?", userID).
		Where("usr.team_id = ?", teamID).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, notFoundOr(err, map[string]any{
			"user_id": userID.String(),
			"team_id": teamID.String(),
		})
	}
	return record, nil
}

// ReplacePayloadTx stores a rotated payload and its new validity window
func (r *refreshTokens) ReplacePayloadTx(ctx context.Context, tx bun.IDB, token *RefreshToken) error {
	res, err := tx.NewUpdate().
		Model(token).
		Column("payload", "issued_on_utc", "expires_on_utc").
		WherePK().
		Exec(ctx)
	if err != nil {
		return err
	}
	return expectAffected(res, "refresh_token_id", token.ID)
}

func (r *refreshTokens) DeleteByUserTx(ctx context.Context, tx bun.IDB, userID uuid.UUID) (int64, error) {
	res, err := tx.NewDelete().
		Model((*RefreshToken)(nil)).
		Where("user_id = ?", userID).
		Exec(ctx)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (r *refreshTokens) ListByUserTx(ctx context.Context, tx bun.IDB, userID uuid.UUID) ([]*RefreshToken, error) {
	records := []*RefreshToken{}
	err := tx.NewSelect().
		Model(&records).
		Where("?TableAlias.user_id = ?", userID).
		Order("created_at ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return records, nil
}
