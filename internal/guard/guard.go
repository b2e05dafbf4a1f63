package guard

import (
	"context"
	"net/url"

	"repairhub/internal/session"
)

// Decision is the outcome of one guard: either the navigation proceeds or
// the caller is redirected. Guards never error; ambiguous conditions
// resolve to a redirect (fail closed).
type Decision struct {
	Allowed  bool
	Redirect string
}

func Allow() Decision { return Decision{Allowed: true} }

func RedirectTo(path string) Decision { return Decision{Redirect: path} }

// Route is the navigation target's access metadata.
type Route struct {
	Path                 string
	RequiresAuth         bool
	HideForAuth          bool
	RequiresAdmin        bool
	RequiresSuperAdmin   bool
	RequiresSubscription bool
	RequiredFeature      string
}

// Source supplies the current principal. Ready blocks until the session
// state is resolved; concurrent callers share one in-flight resolution.
// *session.Manager satisfies it.
type Source interface {
	Ready(ctx context.Context) error
	Principal() *session.Principal
}

// Guard is one predicate in the chain.
type Guard interface {
	Evaluate(ctx context.Context, route Route, src Source) Decision
}

// Chain evaluates guards strictly in order and short-circuits at the first
// non-Allow decision. Evaluation completes before any navigation is
// committed; there is no partial or optimistic navigation.
type Chain []Guard

func (c Chain) Evaluate(ctx context.Context, route Route, src Source) Decision {
	for _, g := range c {
		if d := g.Evaluate(ctx, route, src); !d.Allowed {
			return d
		}
	}
	return Allow()
}

// NewChain builds the canonical ordering: authentication, then role, then
// subscription.
func NewChain(sub *SubscriptionGuard) Chain {
	return Chain{AuthGuard{}, AdminGuard{}, sub}
}

// loginRedirect preserves the originally requested path as a return target.
func loginRedirect(path string) Decision {
	return RedirectTo(session.LoginRoute + "?redirect=" + url.QueryEscape(path))
}
