// Package activitymap flattens auth activity events into a transport
// agnostic record for audit stores and queues.
package activitymap

import (
	"context"
	"strings"
	"time"

	auth "github.com/goliatone/go-teamauth"
)

const (
	// MetadataKeyActorType stores the actor type derived from auth.ActorRef.Type.
	MetadataKeyActorType = "actor_type"
	// MetadataKeyTeamID stores the team an event happened in.
	MetadataKeyTeamID = "team_id"
	// MetadataKeyUserID stores the member an event is about when the object is not the member.
	MetadataKeyUserID = "user_id"
)

// Object types derived from the event type.
const (
	ObjectTeam    = "team"
	ObjectMember  = "member"
	ObjectSession = "session"
)

const (
	defaultChannel = "teamauth"
	defaultActorID = "system"
)

// Record is a transport-agnostic activity shape for downstream systems.
type Record struct {
	ActorID    string         `json:"actor_id"`
	Verb       string         `json:"verb"`
	ObjectType string         `json:"object_type,omitempty"`
	ObjectID   string         `json:"object_id,omitempty"`
	Channel    string         `json:"channel,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	OccurredAt time.Time      `json:"occurred_at"`
}

// Option customizes normalization behavior.
type Option func(*options)

type options struct {
	channel       string
	actorFallback string
	now           func() time.Time
}

// Normalize converts an auth.ActivityEvent into a Record. Team events point
// at the team, member events at the member and session events at the user
// owning the session.
func Normalize(event auth.ActivityEvent, opts ...Option) Record {
	o := options{
		channel:       defaultChannel,
		actorFallback: defaultActorID,
		now:           time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}

	objectType, objectID := objectOf(event)

	occurredAt := event.OccurredAt
	if occurredAt.IsZero() {
		occurredAt = o.now().UTC()
	}

	return Record{
		ActorID: firstNonEmpty(
			strings.TrimSpace(event.Actor.ID),
			strings.TrimSpace(event.UserID),
			o.actorFallback,
		),
		Verb:       verbOf(event.EventType),
		ObjectType: objectType,
		ObjectID:   objectID,
		Channel:    o.channel,
		Metadata:   metadataOf(event, objectType),
		OccurredAt: occurredAt,
	}
}

// WithChannel sets the channel of normalized records.
func WithChannel(channel string) Option {
	return func(o *options) {
		o.channel = strings.TrimSpace(channel)
	}
}

// WithActorFallback sets the final actor-id fallback when actor/user ids are empty.
func WithActorFallback(actorID string) Option {
	return func(o *options) {
		if actorID = strings.TrimSpace(actorID); actorID != "" {
			o.actorFallback = actorID
		}
	}
}

// WithClock sets the time used for events without OccurredAt.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

// Sink wraps next so it receives normalized records.
func Sink(next func(Record) error, opts ...Option) auth.ActivitySink {
	return auth.ActivitySinkFunc(func(_ context.Context, event auth.ActivityEvent) error {
		if next == nil {
			return nil
		}
		return next(Normalize(event, opts...))
	})
}

func objectOf(event auth.ActivityEvent) (string, string) {
	name := string(event.EventType)
	switch {
	case strings.HasPrefix(name, "team.member."), event.EventType == auth.ActivityEventLeaderChanged:
		return ObjectMember, strings.TrimSpace(event.UserID)
	case strings.HasPrefix(name, "team."):
		return ObjectTeam, strings.TrimSpace(event.TeamID)
	case strings.HasPrefix(name, "session."):
		return ObjectSession, strings.TrimSpace(event.UserID)
	default:
		return "", strings.TrimSpace(event.UserID)
	}
}

// verbOf keeps the last segment: "team.member.added" => "added"
func verbOf(t auth.ActivityEventType) string {
	name := string(t)
	if i := strings.LastIndex(name, "."); i >= 0 {
		return name[i+1:]
	}
	return name
}

func metadataOf(event auth.ActivityEvent, objectType string) map[string]any {
	metadata := make(map[string]any, len(event.Metadata)+2)
	for key, value := range event.Metadata {
		metadata[key] = value
	}

	if actorType := strings.TrimSpace(event.Actor.Type); actorType != "" {
		if _, exists := metadata[MetadataKeyActorType]; !exists {
			metadata[MetadataKeyActorType] = actorType
		}
	}

	if event.TeamID != "" && objectType != ObjectTeam {
		metadata[MetadataKeyTeamID] = event.TeamID
	}
	if event.UserID != "" && objectType == ObjectTeam {
		metadata[MetadataKeyUserID] = event.UserID
	}

	if len(metadata) == 0 {
		return nil
	}
	return metadata
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if value != "" {
			return value
		}
	}
	return ""
}
