package auth

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// ActivityEventType enumerates supported activity categories.
type ActivityEventType string

const (
	ActivityEventTeamCreated      ActivityEventType = "team.created"
	ActivityEventTeamUpdated      ActivityEventType = "team.updated"
	ActivityEventTeamDeleted      ActivityEventType = "team.deleted"
	ActivityEventMemberAdded      ActivityEventType = "team.member.added"
	ActivityEventMemberRemoved    ActivityEventType = "team.member.removed"
	ActivityEventMemberUpdated    ActivityEventType = "team.member.updated"
	ActivityEventLeaderChanged    ActivityEventType = "team.leader.changed"
	ActivityEventSessionIssued    ActivityEventType = "session.issued"
	ActivityEventSessionRefreshed ActivityEventType = "session.refreshed"
	ActivityEventSessionRotated   ActivityEventType = "session.rotated"
	ActivityEventSessionRevoked   ActivityEventType = "session.revoked"
	ActivityEventSessionFailure   ActivityEventType = "session.failure"
)

// ActorRef identifies who performed an action
type ActorRef struct {
	ID   string
	Type string
}

// ActorFromContext returns the authenticated principal of ctx as an actor,
// or the system actor
func ActorFromContext(ctx context.Context) ActorRef {
	if p, ok := PrincipalFromContext(ctx); ok && p.IsAuthenticated && p.UserID != uuid.Nil {
		return ActorRef{ID: p.UserID.String(), Type: "user"}
	}
	return ActorRef{Type: "system"}
}

// ActivityEvent captures audit-friendly information about an action.
type ActivityEvent struct {
	EventType  ActivityEventType
	Actor      ActorRef
	TeamID     string
	UserID     string
	Metadata   map[string]any
	OccurredAt time.Time
}

// ActivitySink consumes activity events for auditing/telemetry purposes.
type ActivitySink interface {
	Record(ctx context.Context, event ActivityEvent) error
}

// ActivitySinkFunc adapts a function to the ActivitySink interface.
type ActivitySinkFunc func(ctx context.Context, event ActivityEvent) error

// Record implements ActivitySink.
func (f ActivitySinkFunc) Record(ctx context.Context, event ActivityEvent) error {
	if f == nil {
		return nil
	}
	return f(ctx, event)
}

type noopActivitySink struct{}

func (noopActivitySink) Record(context.Context, ActivityEvent) error {
	return nil
}

func normalizeActivitySink(s ActivitySink) ActivitySink {
	if s == nil {
		return noopActivitySink{}
	}
	return s
}

// emitActivity records event on sink. Sinks are best effort: failures are
// logged and never surface to the caller.
func emitActivity(ctx context.Context, sink ActivitySink, logger Logger, event ActivityEvent) {
	if event.Metadata == nil {
		event.Metadata = map[string]any{}
	}

	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}

	if event.Actor.Type == "" {
		event.Actor = ActorFromContext(ctx)
	}

	if err := normalizeActivitySink(sink).Record(ctx, event); err != nil && logger != nil {
		logger.Warn("activity sink record error", "event", event.EventType, "error", err)
	}
}
