// Package auth provides the identity core of a multi-tenant platform: a team
// hierarchy permission model, a request pipeline that attaches the caller's
// principal, team and member before a handler runs, JWT key management with
// key id rotation, and refresh token lifecycle.
//
// Teams and principals:
//   - Every member belongs to exactly one team. Teams are customer,
//     maintenance or super teams, ordered customer < maintenance < super.
//     Within a team a lower TeamPosition is a higher rank.
//   - ProjectPrincipal turns a verified claims.Set into a Principal. Missing
//     claims degrade to zero values, never to errors.
//
// Request pipeline:
//   - NewPipeline wraps a Handler with the attach principal, attach team,
//     attach member and validate stages. Requests opt into the team and member
//     stages by implementing TeamScoped and MemberScoped.
//   - Rules are plain functions over a Principal. Combine them with All and
//     Any, or wrap them with DevBypass for development deployments.
//
// Tokens:
//   - KeyPool holds the signing key and every key still accepted for
//     validation. KeyRing swaps pools at runtime so retired keys keep
//     validating while new tokens carry the new kid.
//   - RefreshTokenService issues opaque refresh tokens and rotates them once
//     the RotationPolicy threshold has strictly elapsed.
//
// Claims decoration:
//   - ClaimsDecorator is invoked before JWTs are signed. Decorators may add
//     extension fields such as subscription claims while protected claims
//     (sub, team_id, team_type, team_position, role, iss, aud, exp, etc.)
//     remain immutable.
//
// Activity sinks:
//   - ActivitySink is a light-weight audit emitter used by TeamService and
//     Auther. Sinks run best-effort (errors are logged) so you can forward to a
//     database or queue without blocking authentication.
package auth
