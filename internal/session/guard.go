package session

// View is what a guarded screen shows.
type View int

// Guard outcomes.
const (
	ViewContent View = iota
	ViewLoading
	ViewSignInRequired
	ViewForbidden
)

func (v View) String() string {
	switch v {
	case ViewContent:
		return "content"
	case ViewLoading:
		return "loading"
	case ViewSignInRequired:
		return "sign-in-required"
	case ViewForbidden:
		return "forbidden"
	}
	return "unknown"
}

// Guard describes the capabilities a protected view needs. The zero Guard
// only requires a signed-in user.
type Guard struct {
	Permission string
	AdminOnly  bool
}

// Decide picks the view for s. Loading wins over every other check.
func (g Guard) Decide(s Snapshot) View {
	switch {
	case s.Loading:
		return ViewLoading
	case s.Identity == nil:
		return ViewSignInRequired
	case g.AdminOnly && !s.IsAdmin():
		return ViewForbidden
	case g.Permission != "" && !s.HasPermission(g.Permission):
		return ViewForbidden
	}
	return ViewContent
}

// Views supplies what Render shows for each outcome other than content.
// A non-nil Fallback replaces both SignIn and Forbidden.
type Views[T any] struct {
	Loading   T
	SignIn    T
	Forbidden T
	Fallback  *T
}

// Render returns content when g admits s, otherwise the matching view.
func Render[T any](g Guard, s Snapshot, content T, views Views[T]) T {
	switch g.Decide(s) {
	case ViewLoading:
		return views.Loading
	case ViewSignInRequired:
		if views.Fallback != nil {
			return *views.Fallback
		}
		return views.SignIn
	case ViewForbidden:
		if views.Fallback != nil {
			return *views.Fallback
		}
		return views.Forbidden
	}
	return content
}
