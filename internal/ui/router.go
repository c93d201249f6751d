package ui

// View identifies which top-level screen is rendered.
type View int

const (
	ViewLogin View = iota
	ViewChat
	ViewAdmin
)

func (v View) String() string {
	switch v {
	case ViewLogin:
		return "login"
	case ViewChat:
		return "chat"
	case ViewAdmin:
		return "admin"
	}
	return "unknown"
}

// routeView derives the visible screen from authentication and navigation
// state. Unauthenticated always lands on login regardless of navigation;
// there is no way to deep-link past it.
func routeView(authenticated, adminNav bool) View {
	if !authenticated {
		return ViewLogin
	}
	if adminNav {
		return ViewAdmin
	}
	return ViewChat
}
