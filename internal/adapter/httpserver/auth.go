package httpserver

import (
	"github.com/labstack/echo/v4"

	apperrors "github.com/pscheid92/screentime/internal/platform/errors"
)

// The cookie session is issued by the host application's sign-in flow.
// This service only reads it.
const (
	sessionName      = "screentime-session"
	sessionKeyUserID = "user_id"
	sessionKeyRole   = "role"
	contextKeyUserID = "userID"
	contextKeyRole   = "role"
)

type identity struct {
	UserID string
	Role   string
}

// currentIdentity reads the signed-in user from the cookie session.
// An absent, unreadable or tampered cookie means anonymous.
func (s *Server) currentIdentity(c echo.Context) (identity, bool) {
	session, err := s.sessionStore.Get(c.Request(), sessionName)
	if err != nil {
		return identity{}, false
	}
	userID, ok := session.Values[sessionKeyUserID].(string)
	if !ok || userID == "" {
		return identity{}, false
	}
	role, _ := session.Values[sessionKeyRole].(string)
	return identity{UserID: userID, Role: role}, true
}

// optionalUserID returns the signed-in user's ID, nil when anonymous.
func (s *Server) optionalUserID(c echo.Context) *string {
	id, ok := s.currentIdentity(c)
	if !ok {
		return nil
	}
	c.Set(contextKeyUserID, id.UserID)
	return &id.UserID
}

func (s *Server) requireSession(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		id, ok := s.currentIdentity(c)
		if !ok {
			return apperrors.UnauthorizedError("authentication required")
		}
		c.Set(contextKeyUserID, id.UserID)
		c.Set(contextKeyRole, id.Role)
		return next(c)
	}
}

// requireRole must run after requireSession.
func (s *Server) requireRole(role string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if got, _ := c.Get(contextKeyRole).(string); got != role {
				return apperrors.ForbiddenError("insufficient role").WithField("required_role", role)
			}
			return next(c)
		}
	}
}
