package gate

import (
	"faydo/services/portal/internal/account"
	"faydo/services/portal/internal/session"
)

// Requirement describes what a destination demands from the session.
// The zero value is a public destination anyone may enter.
type Requirement struct {
	RequiresAuth            bool
	AllowedRoles            []account.Role
	RequiresCompleteProfile bool
}

// Reason explains a non-allow decision.
type Reason string

const (
	ReasonNone              Reason = ""
	ReasonPending           Reason = "pending"
	ReasonNotAuthenticated  Reason = "not_authenticated"
	ReasonRoleNotAllowed    Reason = "role_not_allowed"
	ReasonProfileIncomplete Reason = "profile_incomplete"
)

// Decision is the gate's verdict. When Allow is false, RedirectTo names the
// destination to send the caller to instead; during a pending session it is
// empty because no redirect should fire yet.
type Decision struct {
	Allow      bool
	RedirectTo string
	Reason     Reason
}

// Destinations used in redirects.
const (
	PathLogin           = "/login"
	PathCompleteProfile = "/profile/customer"
)

// Decide evaluates a requirement against a session snapshot. It is pure and
// total: every snapshot/requirement pair yields a decision, in this order:
// still loading, not authenticated, role not allowed, profile incomplete,
// allow.
func Decide(snap session.Snapshot, req Requirement) Decision {
	public := !req.RequiresAuth && len(req.AllowedRoles) == 0 && !req.RequiresCompleteProfile
	if public {
		return Decision{Allow: true}
	}

	// Guarded destination while the session is still being resolved: hold,
	// don't redirect. A redirect fired here would bounce a user whose
	// restore is about to succeed.
	if snap.Loading {
		return Decision{Reason: ReasonPending}
	}

	if !snap.Authenticated() {
		return Decision{RedirectTo: PathLogin, Reason: ReasonNotAuthenticated}
	}

	if len(req.AllowedRoles) > 0 && !roleAllowed(snap.User.Role, req.AllowedRoles) {
		return Decision{RedirectTo: Dashboard(snap.User.Role), Reason: ReasonRoleNotAllowed}
	}

	if req.RequiresCompleteProfile && snap.User.Role == account.RoleCustomer && !snap.User.ProfileComplete {
		return Decision{RedirectTo: PathCompleteProfile, Reason: ReasonProfileIncomplete}
	}

	return Decision{Allow: true}
}

// Dashboard returns the home destination for a role. Unknown roles land on
// the login page.
func Dashboard(role account.Role) string {
	switch {
	case role == account.RoleCustomer:
		return "/customer"
	case role == account.RoleBusiness:
		return "/business"
	case role.IsStaff():
		return "/staff"
	default:
		return PathLogin
	}
}

func roleAllowed(role account.Role, allowed []account.Role) bool {
	for _, r := range allowed {
		if r == role {
			return true
		}
	}
	return false
}
