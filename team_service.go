package auth

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// TeamUpdate carries the editable team fields. Nil fields are left alone.
type TeamUpdate struct {
	ID          uuid.UUID
	Name        *string
	Description *string
	Capacity    *int
}

// MemberUpdate carries the editable member fields. Nil fields are left alone.
type MemberUpdate struct {
	TeamID            uuid.UUID
	UserID            uuid.UUID
	TeamPosition      *int
	FirstName         *string
	LastName          *string
	TwoFactorProvider *TwoFactorProvider
	TwoFactorEnabled  *bool
}

// TeamService owns every team and membership mutation. Each call runs in a
// single unit of work and commits once.
type TeamService struct {
	repo     RepositoryManager
	capacity int
	logger   Logger
	activity ActivitySink
}

// TeamServiceOption configures a TeamService
type TeamServiceOption func(*TeamService)

// WithTeamCapacity sets the capacity of teams that do not declare one
func WithTeamCapacity(n int) TeamServiceOption {
	return func(s *TeamService) {
		if n > 0 {
			s.capacity = n
		}
	}
}

func WithTeamLogger(logger Logger) TeamServiceOption {
	return func(s *TeamService) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func WithTeamActivitySink(sink ActivitySink) TeamServiceOption {
	return func(s *TeamService) {
		s.activity = normalizeActivitySink(sink)
	}
}

func NewTeamService(repo RepositoryManager, opts ...TeamServiceOption) *TeamService {
	s := &TeamService{
		repo:     repo,
		capacity: DefaultTeamCapacity,
		logger:   defLogger{name: "auth.teams"},
		activity: noopActivitySink{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// AddTeam creates team and, when leader is given, adds the leader as the
// first member
func (s *TeamService) AddTeam(ctx context.Context, team *Team, leader *AppUser) (*Team, error) {
	if err := ValidateTeam(team); err != nil {
		return nil, err
	}

	if leader != nil {
		if err := ValidateMember(leader); err != nil {
			return nil, err
		}
	}

	err := s.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		team.LeaderID = nil
		created, err := s.repo.Teams().CreateTeamTx(ctx, tx, team)
		if err != nil {
			return err
		}
		if created != nil {
			team = created
		}

		if leader == nil {
			return nil
		}

		if err := s.ensureMemberAvailable(ctx, tx, leader); err != nil {
			return err
		}

		leader.TeamID = team.ID
		if _, err := s.repo.Members().CreateMemberTx(ctx, tx, leader); err != nil {
			return err
		}

		if err := s.repo.Teams().SetLeaderTx(ctx, tx, team.ID, &leader.ID); err != nil {
			return err
		}
		leaderID := leader.ID
		team.LeaderID = &leaderID
		return nil
	})
	if err != nil {
		s.logger.Error("add team failed", "name", team.Name, "error", err)
		return nil, err
	}

	meta := map[string]any{"team_type": team.Type.String()}
	if team.LeaderID != nil {
		meta["leader_id"] = team.LeaderID.String()
	}
	s.emit(ctx, ActivityEventTeamCreated, team.ID, uuid.Nil, meta)

	return team, nil
}

// UpdateTeam applies update. Lowering the capacity below the current number
// of members fails.
func (s *TeamService) UpdateTeam(ctx context.Context, update TeamUpdate) (*Team, error) {
	var team *Team
	err := s.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		var err error
		if team, err = s.loadTeam(ctx, tx, update.ID); err != nil {
			return err
		}

		columns := []string{}
		if update.Name != nil {
			team.Name = *update.Name
			columns = append(columns, "name")
		}
		if update.Description != nil {
			team.Description = *update.Description
			columns = append(columns, "description")
		}
		if update.Capacity != nil {
			team.Capacity = *update.Capacity
			columns = append(columns, "capacity")
		}

		if len(columns) == 0 {
			return nil
		}

		if err := ValidateTeam(team); err != nil {
			return err
		}

		if update.Capacity != nil && *update.Capacity > 0 {
			count, err := s.repo.Members().CountMembersTx(ctx, tx, team.ID)
			if err != nil {
				return err
			}
			if count > *update.Capacity {
				return failure(ErrTeamAtCapacity, fmt.Sprintf("team already has %d members", count), map[string]any{
					"team_id": team.ID.String(),
					"members": count,
				})
			}
		}

		return s.repo.Teams().UpdateTeamTx(ctx, tx, team, columns...)
	})
	if err != nil {
		s.logger.Error("update team failed", "team_id", update.ID, "error", err)
		return nil, err
	}

	s.emit(ctx, ActivityEventTeamUpdated, team.ID, uuid.Nil, nil)
	return team, nil
}

// DeleteTeam deletes a customer team. Every member other than the leader
// must have been moved or removed first; the leader and their sessions go
// with the team.
func (s *TeamService) DeleteTeam(ctx context.Context, teamID uuid.UUID) error {
	err := s.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		team, err := s.loadTeam(ctx, tx, teamID)
		if err != nil {
			return err
		}

		if team.Type != TeamCustomer {
			return failure(ErrTeamNotDeletable, "", map[string]any{
				"team_id":   teamID.String(),
				"team_type": team.Type.String(),
			})
		}

		var exclude []uuid.UUID
		if team.LeaderID != nil {
			exclude = append(exclude, *team.LeaderID)
		}

		count, err := s.repo.Members().CountMembersTx(ctx, tx, teamID, exclude...)
		if err != nil {
			return err
		}
		if count > 0 {
			return failure(ErrTeamHasMembers, fmt.Sprintf("team still has %d %s", count, plural(count, "member", "members")), map[string]any{
				"team_id": teamID.String(),
				"members": count,
			})
		}

		if team.LeaderID != nil {
			if _, err := s.repo.RefreshTokens().DeleteByUserTx(ctx, tx, *team.LeaderID); err != nil {
				return err
			}
			if err := s.repo.Members().DeleteMemberTx(ctx, tx, teamID, *team.LeaderID); err != nil && !isNotFound(err) {
				return err
			}
		}

		return s.repo.Teams().DeleteTeamTx(ctx, tx, teamID)
	})
	if err != nil {
		s.logger.Error("delete team failed", "team_id", teamID, "error", err)
		return err
	}

	s.emit(ctx, ActivityEventTeamDeleted, teamID, uuid.Nil, nil)
	return nil
}

// GetTeam loads a team with the given relations
func (s *TeamService) GetTeam(ctx context.Context, teamID uuid.UUID, relations ...string) (*Team, error) {
	team, err := s.repo.Teams().GetTeam(ctx, teamID, relations...)
	if err != nil {
		if isNotFound(err) {
			return nil, teamNotFound(teamID)
		}
		return nil, err
	}
	return team, nil
}

func (s *TeamService) ListTeams(ctx context.Context, filter TeamFilter) ([]*Team, error) {
	return s.repo.Teams().ListTeams(ctx, filter)
}

// AddMember adds member to the team. The member must not belong to any
// team yet and the team must have room.
func (s *TeamService) AddMember(ctx context.Context, teamID uuid.UUID, member *AppUser) (*AppUser, error) {
	if err := ValidateMember(member); err != nil {
		return nil, err
	}

	err := s.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		team, err := s.loadTeam(ctx, tx, teamID)
		if err != nil {
			return err
		}

		if member.TeamID != uuid.Nil && member.TeamID != teamID {
			return failure(ErrMemberHasTeam, "", map[string]any{
				"team_id": member.TeamID.String(),
			})
		}

		if err := s.ensureMemberAvailable(ctx, tx, member); err != nil {
			return err
		}

		count, err := s.repo.Members().CountMembersTx(ctx, tx, teamID)
		if err != nil {
			return err
		}

		capacity := s.capacityOf(team)
		if count >= capacity {
			return failure(ErrTeamAtCapacity, "", map[string]any{
				"team_id":  teamID.String(),
				"capacity": capacity,
			})
		}

		member.TeamID = teamID
		_, err = s.repo.Members().CreateMemberTx(ctx, tx, member)
		return err
	})
	if err != nil {
		s.logger.Error("add member failed", "team_id", teamID, "error", err)
		return nil, err
	}

	s.emit(ctx, ActivityEventMemberAdded, teamID, member.ID, map[string]any{
		"team_position": member.TeamPosition,
	})
	return member, nil
}

// RemoveMember removes a member and revokes their sessions. The leader
// cannot be removed.
func (s *TeamService) RemoveMember(ctx context.Context, teamID, userID uuid.UUID) error {
	err := s.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		team, err := s.loadTeam(ctx, tx, teamID)
		if err != nil {
			return err
		}

		if _, err := s.loadMember(ctx, tx, teamID, userID); err != nil {
			return err
		}

		if team.IsLeader(userID) {
			return failure(ErrLeaderRemoval, "", map[string]any{
				"team_id": teamID.String(),
				"user_id": userID.String(),
			})
		}

		if _, err := s.repo.RefreshTokens().DeleteByUserTx(ctx, tx, userID); err != nil {
			return err
		}

		return s.repo.Members().DeleteMemberTx(ctx, tx, teamID, userID)
	})
	if err != nil {
		s.logger.Error("remove member failed", "team_id", teamID, "user_id", userID, "error", err)
		return err
	}

	s.emit(ctx, ActivityEventMemberRemoved, teamID, userID, nil)
	return nil
}

// UpdateMember applies update to a member of the team
func (s *TeamService) UpdateMember(ctx context.Context, update MemberUpdate) (*AppUser, error) {
	var member *AppUser
	err := s.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		var err error
		if member, err = s.loadMember(ctx, tx, update.TeamID, update.UserID); err != nil {
			return err
		}

		columns := []string{}
		if update.TeamPosition != nil {
			member.TeamPosition = *update.TeamPosition
			columns = append(columns, "team_position")
		}
		if update.FirstName != nil {
			member.FirstName = *update.FirstName
			columns = append(columns, "first_name")
		}
		if update.LastName != nil {
			member.LastName = *update.LastName
			columns = append(columns, "last_name")
		}
		if update.TwoFactorProvider != nil {
			member.TwoFactorProvider = *update.TwoFactorProvider
			columns = append(columns, "two_factor_provider")
		}
		if update.TwoFactorEnabled != nil {
			member.TwoFactorEnabled = *update.TwoFactorEnabled
			columns = append(columns, "two_factor_enabled")
		}

		if len(columns) == 0 {
			return nil
		}

		if err := ValidateMember(member); err != nil {
			return err
		}

		return s.repo.Members().UpdateMemberTx(ctx, tx, member, columns...)
	})
	if err != nil {
		s.logger.Error("update member failed", "team_id", update.TeamID, "user_id", update.UserID, "error", err)
		return nil, err
	}

	s.emit(ctx, ActivityEventMemberUpdated, update.TeamID, update.UserID, nil)
	return member, nil
}

// SetLeader makes userID the leader. The candidate must already be a
// member of the team.
func (s *TeamService) SetLeader(ctx context.Context, teamID, userID uuid.UUID) error {
	var previous string
	err := s.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		team, err := s.loadTeam(ctx, tx, teamID)
		if err != nil {
			return err
		}

		if _, err := s.repo.Members().GetMemberTx(ctx, tx, teamID, userID); err != nil {
			if isNotFound(err) {
				return failure(ErrNotTeamMember, "", map[string]any{
					"team_id": teamID.String(),
					"user_id": userID.String(),
				})
			}
			return err
		}

		if team.LeaderID != nil {
			previous = team.LeaderID.String()
		}

		return s.repo.Teams().SetLeaderTx(ctx, tx, teamID, &userID)
	})
	if err != nil {
		s.logger.Error("set leader failed", "team_id", teamID, "user_id", userID, "error", err)
		return err
	}

	s.emit(ctx, ActivityEventLeaderChanged, teamID, userID, map[string]any{
		"previous_leader_id": previous,
	})
	return nil
}

// ListMembers lists members with a position no greater than maxPosition,
// most senior first. Use AllPositions to list everyone.
func (s *TeamService) ListMembers(ctx context.Context, teamID uuid.UUID, maxPosition int) ([]*AppUser, error) {
	var out []*AppUser
	err := s.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := s.loadTeam(ctx, tx, teamID); err != nil {
			return err
		}
		var err error
		out, err = s.repo.Members().ListMembersTx(ctx, tx, teamID, maxPosition)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *TeamService) ensureMemberAvailable(ctx context.Context, tx bun.IDB, member *AppUser) error {
	if member.ID != uuid.Nil {
		existing, err := s.repo.Members().FindByIDTx(ctx, tx, member.ID)
		if err == nil {
			return memberHasTeam(existing)
		}
		if !isNotFound(err) {
			return err
		}
	}

	existing, err := s.repo.Members().FindByEmailTx(ctx, tx, member.Email)
	if err == nil {
		return memberHasTeam(existing)
	}
	if !isNotFound(err) {
		return err
	}

	return nil
}

func (s *TeamService) loadTeam(ctx context.Context, tx bun.IDB, teamID uuid.UUID) (*Team, error) {
	team, err := s.repo.Teams().GetTeamTx(ctx, tx, teamID)
	if err != nil {
		if isNotFound(err) {
			return nil, teamNotFound(teamID)
		}
		return nil, err
	}
	return team, nil
}

func (s *TeamService) loadMember(ctx context.Context, tx bun.IDB, teamID, userID uuid.UUID) (*AppUser, error) {
	member, err := s.repo.Members().GetMemberTx(ctx, tx, teamID, userID)
	if err != nil {
		if isNotFound(err) {
			return nil, failure(ErrMemberNotFound, "", map[string]any{
				"team_id": teamID.String(),
				"user_id": userID.String(),
			})
		}
		return nil, err
	}
	return member, nil
}

func (s *TeamService) capacityOf(team *Team) int {
	if team != nil && team.Capacity > 0 {
		return team.Capacity
	}
	return s.capacity
}

func (s *TeamService) emit(ctx context.Context, eventType ActivityEventType, teamID, userID uuid.UUID, meta map[string]any) {
	event := ActivityEvent{
		EventType: eventType,
		TeamID:    teamID.String(),
		Metadata:  meta,
	}
	if userID != uuid.Nil {
		event.UserID = userID.String()
	}
	emitActivity(ctx, s.activity, s.logger, event)
}

func teamNotFound(teamID uuid.UUID) error {
	return failure(ErrTeamNotFound, "", map[string]any{"team_id": teamID.String()})
}

func memberHasTeam(existing *AppUser) error {
	meta := map[string]any{}
	if existing != nil {
		meta["team_id"] = existing.TeamID.String()
	}
	return failure(ErrMemberHasTeam, "", meta)
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
