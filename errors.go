package auth

import (
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

const (
	TextCodeUnauthorized         = "UNAUTHORIZED"
	TextCodeForbidden            = "FORBIDDEN"
	TextCodeTeamNotFound         = "TEAM_NOT_FOUND"
	TextCodeMemberNotFound       = "MEMBER_NOT_FOUND"
	TextCodeTokenExpired         = "TOKEN_EXPIRED"
	TextCodeTokenMalformed       = "TOKEN_MALFORMED"
	TextCodeInvalidKeyMaterial   = "INVALID_KEY_MATERIAL"
	TextCodeInvalidConfiguration = "INVALID_CONFIGURATION"
	TextCodeMissingInput         = "MISSING_INPUT"
	TextCodeRefreshNotFound      = "REFRESH_TOKEN_NOT_FOUND"
	TextCodeRefreshExpired       = "REFRESH_TOKEN_EXPIRED"
	TextCodeTeamAtCapacity       = "TEAM_AT_CAPACITY"
	TextCodeMemberHasTeam        = "MEMBER_ALREADY_IN_TEAM"
	TextCodeLeaderRemoval        = "LEADER_REMOVAL"
	TextCodeNotTeamMember        = "NOT_TEAM_MEMBER"
	TextCodeTeamNotDeletable     = "TEAM_NOT_DELETABLE"
	TextCodeTeamHasMembers       = "TEAM_HAS_MEMBERS"
	TextCodeInvalidRecord        = "INVALID_RECORD"
	TextCodeImmutableClaim       = "IMMUTABLE_CLAIM"
)

// ErrUnauthorized is returned when there is no authenticated principal
var ErrUnauthorized = goerrors.New("authentication required", goerrors.CategoryAuth).
	WithTextCode(TextCodeUnauthorized).
	WithCode(goerrors.CodeUnauthorized)

// ErrForbidden is returned when the principal fails a tier, rank or leader rule
var ErrForbidden = goerrors.New("insufficient permissions", goerrors.CategoryAuthz).
	WithTextCode(TextCodeForbidden).
	WithCode(goerrors.CodeForbidden)

// ErrTeamNotFound is returned when a team lookup misses
var ErrTeamNotFound = goerrors.New("team not found", goerrors.CategoryNotFound).
	WithTextCode(TextCodeTeamNotFound).
	WithCode(goerrors.CodeNotFound)

// ErrMemberNotFound is returned by member management when the member is unknown
var ErrMemberNotFound = goerrors.New("member not found", goerrors.CategoryNotFound).
	WithTextCode(TextCodeMemberNotFound).
	WithCode(goerrors.CodeNotFound)

// ErrTokenExpired is returned for expired access tokens
var ErrTokenExpired = goerrors.New("token is expired", goerrors.CategoryAuth).
	WithTextCode(TextCodeTokenExpired).
	WithCode(goerrors.CodeUnauthorized)

// ErrTokenMalformed is returned when an access token cannot be verified
var ErrTokenMalformed = goerrors.New("token is malformed", goerrors.CategoryAuth).
	WithTextCode(TextCodeTokenMalformed).
	WithCode(goerrors.CodeUnauthorized)

// ErrInvalidKeyMaterial is returned for unparseable key descriptions
var ErrInvalidKeyMaterial = goerrors.New("invalid key material", goerrors.CategoryBadInput).
	WithTextCode(TextCodeInvalidKeyMaterial).
	WithCode(goerrors.CodeBadRequest)

// ErrInvalidConfiguration is returned for unusable configuration
var ErrInvalidConfiguration = goerrors.New("invalid configuration", goerrors.CategoryBadInput).
	WithTextCode(TextCodeInvalidConfiguration).
	WithCode(goerrors.CodeBadRequest)

// ErrMissingInput is returned when a key or token operation lacks required input
var ErrMissingInput = goerrors.New("missing required input", goerrors.CategoryBadInput).
	WithTextCode(TextCodeMissingInput).
	WithCode(goerrors.CodeBadRequest)

// ErrRefreshTokenNotFound is returned when a refresh token does not match
var ErrRefreshTokenNotFound = goerrors.New("refresh token not found", goerrors.CategoryAuth).
	WithTextCode(TextCodeRefreshNotFound).
	WithCode(goerrors.CodeUnauthorized)

// ErrRefreshTokenExpired is returned when redeeming an expired refresh token
var ErrRefreshTokenExpired = goerrors.New("refresh token is expired", goerrors.CategoryAuth).
	WithTextCode(TextCodeRefreshExpired).
	WithCode(goerrors.CodeUnauthorized)

// ErrTeamAtCapacity is returned when adding a member to a full team
var ErrTeamAtCapacity = goerrors.New("team is at capacity", goerrors.CategoryConflict).
	WithTextCode(TextCodeTeamAtCapacity).
	WithCode(goerrors.CodeConflict)

// ErrMemberHasTeam is returned when the member already belongs to a team
var ErrMemberHasTeam = goerrors.New("member already belongs to a team", goerrors.CategoryConflict).
	WithTextCode(TextCodeMemberHasTeam).
	WithCode(goerrors.CodeConflict)

// ErrLeaderRemoval is returned when removing the current leader
var ErrLeaderRemoval = goerrors.New("cannot remove the team leader", goerrors.CategoryConflict).
	WithTextCode(TextCodeLeaderRemoval).
	WithCode(goerrors.CodeConflict)

// ErrNotTeamMember is returned when the leader candidate is not on the team
var ErrNotTeamMember = goerrors.New("user is not a member of the team", goerrors.CategoryBadInput).
	WithTextCode(TextCodeNotTeamMember).
	WithCode(goerrors.CodeBadRequest)

// ErrTeamNotDeletable is returned when deleting a non customer team
var ErrTeamNotDeletable = goerrors.New("only customer teams can be deleted", goerrors.CategoryBadInput).
	WithTextCode(TextCodeTeamNotDeletable).
	WithCode(goerrors.CodeBadRequest)

// ErrTeamHasMembers is returned when deleting a team that still has members
var ErrTeamHasMembers = goerrors.New("team still has members", goerrors.CategoryConflict).
	WithTextCode(TextCodeTeamHasMembers).
	WithCode(goerrors.CodeConflict)

// ErrInvalidRecord is returned when a team or member fails validation
var ErrInvalidRecord = goerrors.New("invalid record", goerrors.CategoryValidation).
	WithTextCode(TextCodeInvalidRecord).
	WithCode(goerrors.CodeBadRequest)

// ErrImmutableClaimMutation is returned when a decorator touches a protected claim
var ErrImmutableClaimMutation = goerrors.New("immutable claim mutated", goerrors.CategoryInternal).
	WithTextCode(TextCodeImmutableClaim).
	WithCode(goerrors.CodeInternal)

// failure clones base, replaces the message with reason and keeps base as
// the source so errors.Is(err, base) holds.
func failure(base *goerrors.Error, reason string, metadata map[string]any) *goerrors.Error {
	clone := base.Clone()
	if clone == nil {
		return base
	}
	if reason != "" {
		clone.Message = reason
	}
	clone.Source = base
	if len(metadata) > 0 {
		return clone.WithMetadata(metadata)
	}
	return clone
}

// FailureKind is the machine distinguishable class of a failure
type FailureKind string

const (
	FailureNone         FailureKind = ""
	FailureUnauthorized FailureKind = "unauthorized"
	FailureForbidden    FailureKind = "forbidden"
	FailureNotFound     FailureKind = "not_found"
	FailureBadRequest   FailureKind = "bad_request"
	FailureConflict     FailureKind = "conflict"
	FailureInternal     FailureKind = "internal"
)

// KindOf classifies err. Errors that are not rich errors are internal.
func KindOf(err error) FailureKind {
	if err == nil {
		return FailureNone
	}

	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) {
		return FailureInternal
	}

	switch richErr.Category {
	case goerrors.CategoryAuth:
		return FailureUnauthorized
	case goerrors.CategoryAuthz:
		return FailureForbidden
	case goerrors.CategoryNotFound:
		return FailureNotFound
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return FailureBadRequest
	case goerrors.CategoryConflict:
		return FailureConflict
	default:
		return FailureInternal
	}
}

// IsUnauthorized checks the failure kind
func IsUnauthorized(err error) bool { return KindOf(err) == FailureUnauthorized }

// IsForbidden checks the failure kind
func IsForbidden(err error) bool { return KindOf(err) == FailureForbidden }

// IsTokenExpiredError will check for expired tokens
func IsTokenExpiredError(err error) bool {
	if err == nil {
		return false
	}
	if goerrors.Is(err, ErrTokenExpired) {
		return true
	}
	return strings.Contains(err.Error(), "token is expired")
}

// IsMalformedError will check for error message
func IsMalformedError(err error) bool {
	if err == nil {
		return false
	}
	if goerrors.Is(err, ErrTokenMalformed) {
		return true
	}
	return strings.Contains(err.Error(), "token is malformed") ||
		strings.Contains(err.Error(), "missing or malformed JWT")
}
