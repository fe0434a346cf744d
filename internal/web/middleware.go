package web

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"hytun/internal/storage/models"
	pkgerrors "hytun/pkg/errors"
)

// sessionCookie carries the token for browser clients; API clients send it
// as a bearer token instead.
const sessionCookie = "hytun_session"

const sessionKey = "session"

// response is the uniform envelope every endpoint returns.
type response struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

func ok(c *gin.Context, data any) {
	c.JSON(http.StatusOK, response{Success: true, Data: data})
}

func okMsg(c *gin.Context, msg string, data any) {
	c.JSON(http.StatusOK, response{Success: true, Message: msg, Data: data})
}

// fail translates a domain error into a status code and a caller-safe
// message. Internal failures are logged with detail but surfaced
// generically.
func fail(c *gin.Context, err error) {
	switch {
	case errors.Is(err, pkgerrors.ErrInvalidLink):
		// Parse errors are user input errors, reported verbatim.
		c.JSON(http.StatusBadRequest, response{Message: err.Error()})
	case errors.Is(err, pkgerrors.ErrDuplicateNode):
		c.JSON(http.StatusConflict, response{Message: err.Error()})
	case errors.Is(err, pkgerrors.ErrNodeNotFound), errors.Is(err, pkgerrors.ErrUserNotFound):
		c.JSON(http.StatusNotFound, response{Message: err.Error()})
	case errors.Is(err, pkgerrors.ErrNoCurrentNode):
		c.JSON(http.StatusBadRequest, response{Message: err.Error()})
	case errors.Is(err, pkgerrors.ErrInvalidCredentials):
		c.JSON(http.StatusUnauthorized, response{Message: pkgerrors.ErrInvalidCredentials.Error()})
	case errors.Is(err, pkgerrors.ErrAccountLocked):
		c.JSON(http.StatusForbidden, response{Message: pkgerrors.ErrAccountLocked.Error()})
	case errors.Is(err, pkgerrors.ErrUnauthenticated):
		c.JSON(http.StatusUnauthorized, response{Message: pkgerrors.ErrUnauthenticated.Error()})
	case errors.Is(err, pkgerrors.ErrUnauthorized):
		c.JSON(http.StatusForbidden, response{Message: pkgerrors.ErrUnauthorized.Error()})
	case errors.Is(err, pkgerrors.ErrUserExists):
		c.JSON(http.StatusConflict, response{Message: err.Error()})
	default:
		slog.Error("request failed", "path", c.FullPath(), "error", err)
		c.JSON(http.StatusInternalServerError, response{Message: "operation failed"})
	}
}

// requireSession validates the session credential before the wrapped
// handler runs.
func (s *Server) requireSession() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := extractToken(c)
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, response{Message: pkgerrors.ErrUnauthenticated.Error()})
			return
		}

		session, err := s.sessions.Validate(token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, response{Message: pkgerrors.ErrUnauthenticated.Error()})
			return
		}

		c.Set(sessionKey, session)
		c.Next()
	}
}

// requireAdmin rejects non-admin accounts. Runs after requireSession.
func (s *Server) requireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		session := currentSession(c)
		account, err := s.creds.Get(session.Username)
		if err != nil || account.Role != models.RoleAdmin {
			c.AbortWithStatusJSON(http.StatusForbidden, response{Message: pkgerrors.ErrUnauthorized.Error()})
			return
		}
		c.Next()
	}
}

func currentSession(c *gin.Context) *models.Session {
	v, _ := c.Get(sessionKey)
	session, _ := v.(*models.Session)
	return session
}

func extractToken(c *gin.Context) string {
	if h := c.GetHeader("Authorization"); h != "" {
		return strings.TrimPrefix(h, "Bearer ")
	}
	if cookie, err := c.Cookie(sessionCookie); err == nil {
		return cookie
	}
	return ""
}
