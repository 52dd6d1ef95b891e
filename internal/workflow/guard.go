package workflow

// Decision is the outcome of a role-gated route check.
type Decision int

const (
	// Loading means identity or role is not resolved yet; nothing protected
	// may be served.
	Loading Decision = iota
	Allow
	Forbidden
)

func (d Decision) String() string {
	switch d {
	case Allow:
		return "allow"
	case Forbidden:
		return "forbidden"
	default:
		return "loading"
	}
}

// Guard decides whether a caller may reach a route restricted to required.
// An empty required list admits any authenticated caller.
func Guard(authenticated, roleLoaded bool, role Role, required ...Role) Decision {
	if !authenticated || !roleLoaded {
		return Loading
	}
	if len(required) == 0 {
		return Allow
	}
	for _, r := range required {
		if r == role {
			return Allow
		}
	}
	return Forbidden
}
