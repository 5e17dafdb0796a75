package authz

import (
	"net/http"
	"strconv"

	"log/slog"

	"github.com/go-chi/chi/v5"

	"github.com/scholaris-sis/scholaris-sis/internal/platform/httpx"
)

// DecisionRecorder receives the outcome of each access decision for
// metrics purposes.
type DecisionRecorder interface {
	RecordDecision(outcome, reason string)
}

// Middleware gates HTTP routes on permission requirements and school
// boundaries. The claim set is read from the request context, where
// the authentication middleware placed it.
type Middleware struct {
	Resolver  *Resolver
	Logger    *slog.Logger
	Decisions DecisionRecorder
}

// RequireDescriptor gates the route on a requirement descriptor string
// such as "Permission:Fee.Read|Payment.Read". A malformed descriptor
// panics at route registration.
func (m Middleware) RequireDescriptor(descriptor string) func(http.Handler) http.Handler {
	resolver := m.Resolver
	if resolver == nil {
		resolver = NewResolver()
	}
	return m.require(resolver.MustResolve(descriptor))
}

// RequireAny gates the route on holding at least one of the keys.
func (m Middleware) RequireAny(keys ...string) func(http.Handler) http.Handler {
	return m.require(RequireAny(keys...))
}

// RequireAll gates the route on holding every key.
func (m Middleware) RequireAll(keys ...string) func(http.Handler) http.Handler {
	return m.require(RequireAll(keys...))
}

func (m Middleware) require(req Requirement) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			cs, ok := ClaimsFromContext(r.Context())
			if !ok {
				m.record("deny", "unauthenticated")
				httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "credential required")
				return
			}
			decision := Evaluate(cs, req)
			m.record(outcome(decision), decision.Reason)
			if !decision.Allowed {
				if m.Logger != nil {
					m.Logger.Info("access denied",
						slog.Int64("user_id", cs.UserID),
						slog.Any("required", decision.Required),
						slog.Bool("require_all", decision.RequireAll))
				}
				httpx.ForbiddenRequirement(w, decision.Required, decision.RequireAll)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireSchoolParam gates the route on the school isolation guard for
// a {param} URL segment carrying the target school id. Routes without
// an explicit school parameter are already bounded by the claim set
// itself.
func (m Middleware) RequireSchoolParam(param string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			cs, ok := ClaimsFromContext(r.Context())
			if !ok {
				m.record("deny", "unauthenticated")
				httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "credential required")
				return
			}
			raw := chi.URLParam(r, param)
			schoolID, err := strconv.ParseInt(raw, 10, 64)
			if err != nil {
				httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid school id")
				return
			}
			if !cs.CanAccessSchool(schoolID) {
				m.record("deny", "school mismatch")
				if m.Logger != nil {
					m.Logger.Info("school access denied",
						slog.Int64("user_id", cs.UserID),
						slog.Int64("school_id", schoolID))
				}
				httpx.Problem(w, http.StatusForbidden, "Forbidden", "school out of scope")
				return
			}
			m.record("allow", "school match")
			next.ServeHTTP(w, r)
		})
	}
}

func (m Middleware) record(outcome, reason string) {
	if m.Decisions != nil {
		m.Decisions.RecordDecision(outcome, reason)
	}
}

func outcome(d Decision) string {
	if d.Allowed {
		return "allow"
	}
	return "deny"
}
