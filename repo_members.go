package auth

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// AllPositions lists members regardless of rank
const AllPositions = -1

// Members is the member store
type Members interface {
	repository.Repository[*AppUser]
	MemberLoader

	GetMemberTx(ctx context.Context, tx bun.IDB, teamID, userID uuid.UUID) (*AppUser, error)
	FindByIDTx(ctx context.Context, tx bun.IDB, userID uuid.UUID) (*AppUser, error)
	FindByEmailTx(ctx context.Context, tx bun.IDB, email string) (*AppUser, error)
	CreateMemberTx(ctx context.Context, tx bun.IDB, member *AppUser) (*AppUser, error)
	UpdateMemberTx(ctx context.Context, tx bun.IDB, member *AppUser, columns ...string) error
	DeleteMemberTx(ctx context.Context, tx bun.IDB, teamID, userID uuid.UUID) error
	ListMembers(ctx context.Context, teamID uuid.UUID, maxPosition int) ([]*AppUser, error)
	ListMembersTx(ctx context.Context, tx bun.IDB, teamID uuid.UUID, maxPosition int) ([]*AppUser, error)
	CountMembersTx(ctx context.Context, tx bun.IDB, teamID uuid.UUID, excludeIDs ...uuid.UUID) (int, error)
}

type members struct {
	repository.Repository[*AppUser]
	db *bun.DB
}

var _ Members = (*members)(nil)

func NewMembersRepository(db *bun.DB) Members {
	repo := repository.NewRepository[*AppUser](db, repository.ModelHandlers[*AppUser]{
		NewRecord: func() *AppUser { return &AppUser{} },
		GetID: func(u *AppUser) uuid.UUID {
			if u == nil {
				return uuid.Nil
			}
			return u.ID
		},
		SetID: func(u *AppUser, id uuid.UUID) {
			if u != nil {
				u.ID = id
			}
		},
		GetIdentifier: func() string {
			return "email"
		},
	})

	return &members{
		Repository: repo,
		db:         db,
	}
}

func (m *members) GetMember(ctx context.Context, teamID, userID uuid.UUID) (*AppUser, error) {
	return m.GetMemberTx(ctx, m.db, teamID, userID)
}

func (m *members) GetMemberTx(ctx context.Context, tx bun.IDB, teamID, userID uuid.UUID) (*AppUser, error) {
	record := &AppUser{}
	err := tx.NewSelect().
		Model(record).
		Where("?TableAlias.id = ?", userID).
		Where("?TableAlias.team_id = ?", teamID).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, notFoundOr(err, map[string]any{
			"team_id": teamID.String(),
			"user_id": userID.String(),
		})
	}
	return record, nil
}

func (m *members) FindByIDTx(ctx context.Context, tx bun.IDB, userID uuid.UUID) (*AppUser, error) {
	record := &AppUser{}
	err := tx.NewSelect().
		Model(record).
		Where("?TableAlias.id = ?", userID).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, notFoundOr(err, map[string]any{"user_id": userID.String()})
	}
	return record, nil
}

func (m *members) FindByEmailTx(ctx context.Context, tx bun.IDB, email string) (*AppUser, error) {
	record := &AppUser{}
	err := tx.NewSelect().
		Model(record).
		Where("LOWER(?TableAlias.email) = ?", strings.ToLower(strings.TrimSpace(email))).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, notFoundOr(err, map[string]any{"email": email})
	}
	return record, nil
}

func (m *members) CreateMemberTx(ctx context.Context, tx bun.IDB, member *AppUser) (*AppUser, error) {
	prepareMemberDefaults(member)
	return m.Repository.CreateTx(ctx, tx, member)
}

// UpdateMemberTx writes the named columns, or the profile columns when none
// are given. The team of a member never changes through this call.
func (m *members) UpdateMemberTx(ctx context.Context, tx bun.IDB, member *AppUser, columns ...string) error {
	if len(columns) == 0 {
		columns = []string{"team_position", "first_name", "last_name", "two_factor_provider", "two_factor_enabled"}
	}

	now := time.Now().UTC()
	member.UpdatedAt = &now
	columns = append(columns, "updated_at")

	res, err := tx.NewUpdate().
		Model(member).
		Column(columns...).
		Where("?TableAlias.id = ?", member.ID).
		Where("?TableAlias.team_id = ?", member.TeamID).
		Exec(ctx)
	if err != nil {
		return err
	}
	return expectAffected(res, "user_id", member.ID)
}

func (m *members) DeleteMemberTx(ctx context.Context, tx bun.IDB, teamID, userID uuid.UUID) error {
	res, err := tx.NewDelete().
		Model((*AppUser)(nil)).
		Where("id = ?", userID).
		Where("team_id = ?", teamID).
		Exec(ctx)
	if err != nil {
		return err
	}
	return expectAffected(res, "user_id", userID)
}

func (m *members) ListMembers(ctx context.Context, teamID uuid.UUID, maxPosition int) ([]*AppUser, error) {
	return m.ListMembersTx(ctx, m.db, teamID, maxPosition)
}

// ListMembersTx lists members ordered by rank. A negative maxPosition lists
// every member.
func (m *members) ListMembersTx(ctx context.Context, tx bun.IDB, teamID uuid.UUID, maxPosition int) ([]*AppUser, error) {
	records := []*AppUser{}
	q := tx.NewSelect().
		Model(&records).
		Where("?TableAlias.team_id = ?", teamID).
		Order("team_position ASC", "username ASC")

	if maxPosition >= 0 {
		q = q.Where("?TableAlias.team_position <= ?", maxPosition)
	}

	if err := q.Scan(ctx); err != nil {
		return nil, err
	}
	return records, nil
}

func (m *members) CountMembersTx(ctx context.Context, tx bun.IDB, teamID uuid.UUID, excludeIDs ...uuid.UUID) (int, error) {
	q := tx.NewSelect().
		Model((*AppUser)(nil)).
		Where("?TableAlias.team_id = ?", teamID)

	for _, id := range excludeIDs {
		if id != uuid.Nil {
			q = q.Where("?TableAlias.id != ?", id)
		}
	}

	return q.Count(ctx)
}

func prepareMemberDefaults(record *AppUser) {
	if record == nil {
		return
	}

	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}

	if record.TwoFactorProvider == "" {
		record.TwoFactorProvider = TwoFactorNone
	}

	record.Email = strings.ToLower(strings.TrimSpace(record.Email))
	record.Username = strings.TrimSpace(record.Username)

	now := time.Now().UTC()
	if record.CreatedAt == nil {
		record.CreatedAt = &now
	}
	record.UpdatedAt = &now
}

func notFoundOr(err error, metadata map[string]any) error {
	if errors.Is(err, sql.ErrNoRows) || repository.IsRecordNotFound(err) {
		return repository.NewRecordNotFound().WithMetadata(metadata)
	}
	return err
}
