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

// TeamFilter narrows ListTeams
type TeamFilter struct {
	Type   TeamType
	Search string
	Limit  int
	Offset int
}

// Teams is the team store
type Teams interface {
	repository.Repository[*Team]
	TeamLoader

	GetTeamTx(ctx context.Context, tx bun.IDB, id uuid.UUID, relations ...string) (*Team, error)
	CreateTeamTx(ctx context.Context, tx bun.IDB, team *Team) (*Team, error)
	UpdateTeamTx(ctx context.Context, tx bun.IDB, team *Team, columns ...string) error
	SetLeaderTx(ctx context.Context, tx bun.IDB, teamID uuid.UUID, leaderID *uuid.UUID) error
	DeleteTeamTx(ctx context.Context, tx bun.IDB, id uuid.UUID) error
	ListTeams(ctx context.Context, filter TeamFilter) ([]*Team, error)
	ListTeamsTx(ctx context.Context, tx bun.IDB, filter TeamFilter) ([]*Team, error)
}

type teams struct {
	repository.Repository[*Team]
	db *bun.DB
}

var _ Teams = (*teams)(nil)

func NewTeamsRepository(db *bun.DB) Teams {
	repo := repository.NewRepository[*Team](db, repository.ModelHandlers[*Team]{
		NewRecord: func() *Team { return &Team{} },
		GetID: func(t *Team) uuid.UUID {
			if t == nil {
				return uuid.Nil
			}
			return t.ID
		},
		SetID: func(t *Team, id uuid.UUID) {
			if t != nil {
				t.ID = id
			}
		},
	})

	return &teams{
		Repository: repo,
		db:         db,
	}
}

func (t *teams) GetTeam(ctx context.Context, id uuid.UUID, relations ...string) (*Team, error) {
	return t.GetTeamTx(ctx, t.db, id, relations...)
}

// GetTeamTx loads a team with the requested relations. Members are ordered
// by position, most senior first.
func (t *teams) GetTeamTx(ctx context.Context, tx bun.IDB, id uuid.UUID, relations ...string) (*Team, error) {
	record := &Team{}
	q := tx.NewSelect().Model(record).Where("?TableAlias.id = ?", id)

	for _, rel := range relations {
		switch rel {
		case RelationMembers:
			q = q.Relation(RelationMembers, func(sq *bun.SelectQuery) *bun.SelectQuery {
				return sq.Order("team_position ASC", "username ASC")
			})
		case RelationLeader:
			q = q.Relation(RelationLeader)
		}
	}

	if err := q.Limit(1).Scan(ctx); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.NewRecordNotFound().WithMetadata(map[string]any{
				"team_id": id.String(),
			})
		}
		return nil, err
	}

	return record, nil
}

func (t *teams) CreateTeamTx(ctx context.Context, tx bun.IDB, team *Team) (*Team, error) {
	if team.ID == uuid.Nil {
		team.ID = uuid.New()
	}
	now := time.Now().UTC()
	if team.CreatedAt == nil {
		team.CreatedAt = &now
	}
	team.UpdatedAt = &now
	return t.Repository.CreateTx(ctx, tx, team)
}

// UpdateTeamTx writes the named columns, or every editable column when none
// are given
func (t *teams) UpdateTeamTx(ctx context.Context, tx bun.IDB, team *Team, columns ...string) error {
	if len(columns) == 0 {
		columns = []string{"team_type", "name", "description", "capacity"}
	}

	now := time.Now().UTC()
	team.UpdatedAt = &now
	columns = append(columns, "updated_at")

	res, err := tx.NewUpdate().
		Model(team).
		Column(columns...).
		WherePK().
		Exec(ctx)
	if err != nil {
		return err
	}

	return expectAffected(res, "team_id", team.ID)
}

func (t *teams) SetLeaderTx(ctx context.Context, tx bun.IDB, teamID uuid.UUID, leaderID *uuid.UUID) error {
	res, err := tx.NewUpdate().
		Model((*Team)(nil)).
		Set("leader_id = ?", leaderID).
		Set("updated_at = ?", time.Now().UTC()).
		Where("id = ?", teamID).
		Exec(ctx)
	if err != nil {
		return err
	}
	return expectAffected(res, "team_id", teamID)
}

func (t *teams) DeleteTeamTx(ctx context.Context, tx bun.IDB, id uuid.UUID) error {
	res, err := tx.NewDelete().
		Model((*Team)(nil)).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return err
	}
	return expectAffected(res, "team_id", id)
}

func (t *teams) ListTeams(ctx context.Context, filter TeamFilter) ([]*Team, error) {
	return t.ListTeamsTx(ctx, t.db, filter)
}

func (t *teams) ListTeamsTx(ctx context.Context, tx bun.IDB, filter TeamFilter) ([]*Team, error) {
	records := []*Team{}
	q := tx.NewSelect().Model(&records).Order("name ASC")

	if filter.Type != "" {
		q = q.Where("?TableAlias.team_type = ?", filter.Type)
	}

	if search := strings.TrimSpace(filter.Search); search != "" {
		q = q.Where("LOWER(?TableAlias.name) LIKE ?", "%"+strings.ToLower(search)+"%")
	}

	if filter.Limit > 0 {
		q = q.Limit(filter.Limit)
	}
	if filter.Offset > 0 {
		q = q.Offset(filter.Offset)
	}

	if err := q.Scan(ctx); err != nil {
		return nil, err
	}

	return records, nil
}

func expectAffected(res sql.Result, key string, id uuid.UUID) error {
	if res == nil {
		return nil
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return repository.NewRecordNotFound().WithMetadata(map[string]any{
			key: id.String(),
		})
	}
	return nil
}
