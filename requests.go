package auth

// Request is any request shape that can carry a Principal
type Request interface {
	Principal() Principal
	SetPrincipal(Principal)
}

// TeamScoped requests get the principal's team attached before validation
type TeamScoped interface {
	TeamRelations() []string
	AttachTeam(*Team)
}

// MemberScoped requests get the principal's member record attached before
// validation
type MemberScoped interface {
	AttachMember(*AppUser)
}

// PrincipalRequest is embedded by requests that only need the caller
type PrincipalRequest struct {
	principal Principal
	attached  bool
}

func (r *PrincipalRequest) Principal() Principal {
	if !r.attached {
		return Anonymous()
	}
	return r.principal
}

func (r *PrincipalRequest) SetPrincipal(p Principal) {
	r.principal = p
	r.attached = true
}

// TeamRequest is embedded by requests scoped to the caller's team. The
// team is loaded with its members unless Relations is set.
type TeamRequest struct {
	PrincipalRequest
	Relations []string `json:"-"`
	team      *Team
}

func (r *TeamRequest) TeamRelations() []string {
	if r.Relations != nil {
		return r.Relations
	}
	return []string{RelationMembers}
}

func (r *TeamRequest) AttachTeam(t *Team) {
	r.team = t
}

// Team returns the attached team, nil before the team stage ran
func (r *TeamRequest) Team() *Team {
	return r.team
}

// MemberRequest is embedded by requests that need the caller's member
// record in addition to the team
type MemberRequest struct {
	TeamRequest
	member *AppUser
}

func (r *MemberRequest) AttachMember(m *AppUser) {
	r.member = m
}

// Member returns the attached member, nil before the member stage ran
func (r *MemberRequest) Member() *AppUser {
	return r.member
}

var (
	_ Request      = (*PrincipalRequest)(nil)
	_ Request      = (*TeamRequest)(nil)
	_ TeamScoped   = (*TeamRequest)(nil)
	_ TeamScoped   = (*MemberRequest)(nil)
	_ MemberScoped = (*MemberRequest)(nil)
)
