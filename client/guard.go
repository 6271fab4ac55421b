package client

// Route describes what a destination requires of the session.
type Route struct {
	Name         string
	RequiresAuth bool
	// Roles, when set, admits a user holding any one of them (prefix match,
	// so "teacher:" covers all teacher roles).
	Roles []string
}

// Guard answers routing decisions from the session's auth state. An Unknown
// session denies guarded routes; callers resolve the session first.
type Guard struct {
	session *Session
}

func NewGuard(session *Session) Guard {
	return Guard{session: session}
}

func (g Guard) Allow(route Route) bool {
	if !route.RequiresAuth {
		return true
	}
	if g.session.State() != StateAuthenticated {
		return false
	}
	if len(route.Roles) == 0 {
		return true
	}
	profile := g.session.Profile()
	for _, role := range route.Roles {
		if profile.RoleStartsWith(role) {
			return true
		}
	}
	return false
}
