package auth

import (
	"context"
	"database/sql"
	"errors"

	"github.com/goliatone/go-repository-bun"
	"github.com/goliatone/go-teamauth/claims"
	"github.com/google/uuid"
)

// Pipeline stage names, in execution order
const (
	StageAttachPrincipal = "attach_principal"
	StageAttachTeam      = "attach_team"
	StageAttachMember    = "attach_member"
	StageValidate        = "validate"
)

// Handler runs the business logic of a request once every stage passed
type Handler[R Request, T any] func(ctx context.Context, req R) (T, error)

// ClaimsSource returns the verified claim set of the current request
type ClaimsSource func(ctx context.Context) claims.Set

type pipelineStage[R Request] struct {
	name string
	// run returns false when the stage does not apply to the request
	run func(ctx context.Context, req R) (bool, error)
}

type pipelineConfig struct {
	claims         ClaimsSource
	teams          TeamLoader
	members        MemberLoader
	logger         Logger
	loggerProvider LoggerProvider
	metrics        Metrics
}

// PipelineOption configures a Pipeline
type PipelineOption func(*pipelineConfig)

// WithClaimsSource replaces ClaimsFromContext as the claims source
func WithClaimsSource(src ClaimsSource) PipelineOption {
	return func(c *pipelineConfig) {
		if src != nil {
			c.claims = src
		}
	}
}

// WithTeamLoader sets the store used by the team stage
func WithTeamLoader(loader TeamLoader) PipelineOption {
	return func(c *pipelineConfig) {
		c.teams = loader
	}
}

// WithMemberLoader sets the store used by the member stage
func WithMemberLoader(loader MemberLoader) PipelineOption {
	return func(c *pipelineConfig) {
		c.members = loader
	}
}

func WithPipelineLogger(logger Logger) PipelineOption {
	return func(c *pipelineConfig) {
		c.logger = logger
	}
}

func WithPipelineLoggerProvider(provider LoggerProvider) PipelineOption {
	return func(c *pipelineConfig) {
		c.loggerProvider = provider
	}
}

func WithPipelineMetrics(metrics Metrics) PipelineOption {
	return func(c *pipelineConfig) {
		if metrics != nil {
			c.metrics = metrics
		}
	}
}

// Pipeline wraps a handler with the authorization stages. Stages run in a
// fixed order; the first failure stops the chain and the handler is never
// invoked. A Pipeline holds no per request state and is safe for
// concurrent use.
type Pipeline[R Request, T any] struct {
	handler Handler[R, T]
	rule    Rule
	stages  []pipelineStage[R]
	config  pipelineConfig
	logger  Logger
}

// NewPipeline builds the pipeline for handler guarded by rule. A nil rule
// allows every caller that made it through the attach stages.
func NewPipeline[R Request, T any](handler Handler[R, T], rule Rule, opts ...PipelineOption) *Pipeline[R, T] {
	cfg := pipelineConfig{
		claims:  ClaimsFromContext,
		metrics: NoopMetrics(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}

	if rule == nil {
		rule = Allow()
	}

	p := &Pipeline[R, T]{
		handler: handler,
		rule:    rule,
		config:  cfg,
	}
	p.config.loggerProvider, p.logger = ResolveLogger("auth.pipeline", cfg.loggerProvider, cfg.logger)

	p.stages = []pipelineStage[R]{
		{name: StageAttachPrincipal, run: p.attachPrincipal},
		{name: StageAttachTeam, run: p.attachTeam},
		{name: StageAttachMember, run: p.attachMember},
		{name: StageValidate, run: p.validate},
	}

	return p
}

// Stages returns the stage names in execution order
func (p *Pipeline[R, T]) Stages() []string {
	names := make([]string, 0, len(p.stages))
	for _, s := range p.stages {
		names = append(names, s.name)
	}
	return names
}

// Handle runs every stage against req and then the handler
func (p *Pipeline[R, T]) Handle(ctx context.Context, req R) (T, error) {
	var zero T

	for _, stage := range p.stages {
		if err := ctx.Err(); err != nil {
			return zero, err
		}

		applied, err := stage.run(ctx, req)
		if err != nil {
			outcome := OutcomeRejected
			if KindOf(err) == FailureInternal {
				outcome = OutcomeError
			}
			p.config.metrics.PipelineDecision(stage.name, outcome)
			p.logger.Debug("request stopped", "stage", stage.name, "kind", KindOf(err), "error", err)
			return zero, err
		}

		if applied {
			p.config.metrics.PipelineDecision(stage.name, OutcomePassed)
		} else {
			p.config.metrics.PipelineDecision(stage.name, OutcomeSkipped)
		}
	}

	if p.handler == nil {
		return zero, nil
	}

	return p.handler(ctx, req)
}

func (p *Pipeline[R, T]) attachPrincipal(ctx context.Context, req R) (bool, error) {
	req.SetPrincipal(ProjectPrincipal(p.config.claims(ctx)))
	return true, nil
}

func (p *Pipeline[R, T]) attachTeam(ctx context.Context, req R) (bool, error) {
	scoped, ok := any(req).(TeamScoped)
	if !ok {
		return false, nil
	}

	if p.config.teams == nil {
		return true, failure(ErrInvalidConfiguration, "team loader not configured", nil)
	}

	principal := req.Principal()
	if principal.TeamID == uuid.Nil {
		return true, failure(ErrTeamNotFound, "principal has no team", nil)
	}

	team, err := p.config.teams.GetTeam(ctx, principal.TeamID, scoped.TeamRelations()...)
	if err != nil {
		if isNotFound(err) {
			return true, failure(ErrTeamNotFound, "", map[string]any{
				"team_id": principal.TeamID.String(),
			})
		}
		return true, err
	}

	if team == nil {
		return true, failure(ErrTeamNotFound, "", map[string]any{
			"team_id": principal.TeamID.String(),
		})
	}

	scoped.AttachTeam(team)
	req.SetPrincipal(principal.WithLeader(team.IsLeader(principal.UserID)))

	return true, nil
}

func (p *Pipeline[R, T]) attachMember(ctx context.Context, req R) (bool, error) {
	scoped, ok := any(req).(MemberScoped)
	if !ok {
		return false, nil
	}

	if p.config.members == nil {
		return true, failure(ErrInvalidConfiguration, "member loader not configured", nil)
	}

	principal := req.Principal()
	if principal.TeamID == uuid.Nil || principal.UserID == uuid.Nil {
		return true, failure(ErrUnauthorized, "principal is not a team member", nil)
	}

	member, err := p.config.members.GetMember(ctx, principal.TeamID, principal.UserID)
	if err != nil {
		if isNotFound(err) {
			return true, failure(ErrUnauthorized, "principal is not a team member", nil)
		}
		return true, err
	}

	if member == nil {
		return true, failure(ErrUnauthorized, "principal is not a team member", nil)
	}

	scoped.AttachMember(member)

	return true, nil
}

func (p *Pipeline[R, T]) validate(_ context.Context, req R) (bool, error) {
	return true, p.rule(req.Principal())
}

func isNotFound(err error) bool {
	if err == nil {
		return false
	}
	return repository.IsRecordNotFound(err) ||
		errors.Is(err, sql.ErrNoRows) ||
		errors.Is(err, ErrTeamNotFound) ||
		errors.Is(err, ErrMemberNotFound)
}
