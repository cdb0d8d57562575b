package auth

import (
	"context"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/ticket-dashboard/internal/observability"
	apperrors "github.com/spec-kit/ticket-dashboard/pkg/util/errorutil"
)

// Viewer is the caller the hosting platform authenticated.
type Viewer struct {
	Subject       string
	Name          string
	Roles         []string
	Authenticated bool
}

// Anonymous is the viewer used when token verification is disabled.
var Anonymous = Viewer{Subject: "anonymous"}

type viewerKey struct{}

// WithViewer returns a context carrying v.
func WithViewer(ctx context.Context, v Viewer) context.Context {
	return context.WithValue(ctx, viewerKey{}, v)
}

// ViewerFromContext returns the viewer stored in ctx, or Anonymous.
func ViewerFromContext(ctx context.Context) Viewer {
	if v, ok := ctx.Value(viewerKey{}).(Viewer); ok {
		return v
	}
	return Anonymous
}

// ViewerMiddleware validates bearer tokens and attaches the viewer to the request context.
// A nil token manager disables verification and every request runs as Anonymous.
type ViewerMiddleware struct {
	tokens *TokenManager
}

// NewViewerMiddleware constructs middleware.
func NewViewerMiddleware(tokens *TokenManager) *ViewerMiddleware {
	return &ViewerMiddleware{tokens: tokens}
}

// Enabled reports whether tokens are verified.
func (m *ViewerMiddleware) Enabled() bool {
	return m != nil && m.tokens != nil
}

// Handle enforces authentication for protected routes.
func (m *ViewerMiddleware) Handle(c *fiber.Ctx) error {
	viewer := Anonymous
	if m.Enabled() {
		authHeader := c.Get(fiber.HeaderAuthorization)
		if authHeader == "" {
			return apperrors.NewUnauthorized("missing authorization header")
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			return apperrors.NewUnauthorized("invalid authorization header")
		}

		claims, err := m.tokens.ParseToken(strings.TrimSpace(parts[1]))
		if err != nil {
			return apperrors.NewUnauthorized("invalid token")
		}
		viewer = Viewer{Subject: claims.Subject, Name: claims.Name, Roles: claims.Roles, Authenticated: true}
	}

	c.SetUserContext(WithViewer(c.UserContext(), viewer))
	c.Locals(observability.ViewerLocal, viewer.Subject)
	return c.Next()
}
