package auth

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
)

type Logger interface {
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Warn(format string, args ...any)
	Error(format string, args ...any)
}

// LoggerProvider returns named loggers, e.g. "auth.pipeline"
type LoggerProvider interface {
	GetLogger(name string) Logger
}

// TeamLoader loads a team aggregate together with the named relations
type TeamLoader interface {
	GetTeam(ctx context.Context, id uuid.UUID, relations ...string) (*Team, error)
}

// MemberLoader loads one member of a team
type MemberLoader interface {
	GetMember(ctx context.Context, teamID, userID uuid.UUID) (*AppUser, error)
}

// Config holds auth options
type Config interface {
	GetEnvironment() Environment
	GetSigningKey() string
	GetPublicKey() string
	GetPrivateKey() string
	GetKeyID() string
	GetIssuer() string
	GetAudience() []string
	GetAccessTokenLifetime() time.Duration
	GetRefreshTokenLifetime() time.Duration
	GetRotationPolicy() RotationPolicy
	GetTeamCapacity() int
}

// ResolveLogger picks the logger for name: an explicit logger wins, then
// the provider, then the stdout fallback.
func ResolveLogger(name string, provider LoggerProvider, logger Logger) (LoggerProvider, Logger) {
	if logger != nil {
		return provider, logger
	}
	if provider != nil {
		if l := provider.GetLogger(name); l != nil {
			return provider, l
		}
	}
	return provider, defLogger{name: name}
}

type defLogger struct {
	name string
}

func (d defLogger) Error(format string, args ...any) {
	fmt.Print(d.line("ERR", format, args...))
}

func (d defLogger) Warn(format string, args ...any) {
	fmt.Print(d.line("WRN", format, args...))
}

func (d defLogger) Info(format string, args ...any) {
	fmt.Print(d.line("INF", format, args...))
}

func (d defLogger) Debug(format string, args ...any) {
	fmt.Print(d.line("DBG", format, args...))
}

func (d defLogger) line(level, msg string, args ...any) string {
	var b strings.Builder
	b.WriteString("[" + level + "] ")
	if d.name != "" {
		b.WriteString(d.name + " ")
	} else {
		b.WriteString("AUTH ")
	}
	b.WriteString(msg)
	for i := 0; i < len(args); i += 2 {
		if i+1 < len(args) {
			fmt.Fprintf(&b, " %v=%v", args[i], args[i+1])
			continue
		}
		fmt.Fprintf(&b, " %v", args[i])
	}
	return newline(b.String())
}

func newline(s string) string {
	if len(s) > 0 && s[len(s)-1] != '\n' {
		s += "\n"
	}
	return s
}

// SlogLogger adapts a *slog.Logger to Logger. Arguments are treated as
// key/value pairs.
func SlogLogger(l *slog.Logger) Logger {
	if l == nil {
		l = slog.Default()
	}
	return slogLogger{l: l}
}

type slogLogger struct {
	l *slog.Logger
}

func (s slogLogger) Debug(msg string, args ...any) { s.l.Debug(msg, args...) }
func (s slogLogger) Info(msg string, args ...any)  { s.l.Info(msg, args...) }
func (s slogLogger) Warn(msg string, args ...any)  { s.l.Warn(msg, args...) }
func (s slogLogger) Error(msg string, args ...any) { s.l.Error(msg, args...) }
