package middleware

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"

	"github.com/jwalitptl/herald/internal/service/user"
	apperrors "github.com/jwalitptl/herald/pkg/errors"
	"github.com/jwalitptl/herald/pkg/logger"
)

const (
	userCookieName   = "user_id"
	userCookieMaxAge = 365 * 24 * 60 * 60

	// ContextUserKey is where the resolved user id lives on the gin
	// context.
	ContextUserKey = "user_id"
)

// Identity resolves the caller from an anonymous cookie, minting a new
// user on first contact. Known ids are memoized so steady-state
// requests skip the store lookup.
type Identity struct {
	userSvc user.Service
	known   *cache.Cache
	logger  *logger.Logger
}

func NewIdentity(userSvc user.Service, logger *logger.Logger) *Identity {
	return &Identity{
		userSvc: userSvc,
		known:   cache.New(time.Hour, 10*time.Minute),
		logger:  logger,
	}
}

func (m *Identity) EnsureUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		if raw, err := c.Cookie(userCookieName); err == nil {
			if id, parseErr := uuid.Parse(raw); parseErr == nil {
				if m.resolve(c, id) {
					c.Set(ContextUserKey, id)
					c.Next()
					return
				}
			}
		}

		id := uuid.New()
		if _, err := m.userSvc.CreateUser(c.Request.Context(), id); err != nil {
			m.logger.Error(err, "failed to create user for new visitor")
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		}

		m.known.Set(id.String(), struct{}{}, cache.DefaultExpiration)
		c.SetSameSite(http.SameSiteLaxMode)
		c.SetCookie(userCookieName, id.String(), userCookieMaxAge, "/", "", false, true)
		c.Set(ContextUserKey, id)
		c.Next()
	}
}

// resolve reports whether the id belongs to an existing user.
func (m *Identity) resolve(c *gin.Context, id uuid.UUID) bool {
	if _, ok := m.known.Get(id.String()); ok {
		return true
	}

	if _, err := m.userSvc.Get(c.Request.Context(), id); err != nil {
		if !apperrors.Is(err, apperrors.ErrNotFound) {
			m.logger.Error(err, "failed to look up user", "user_id", id.String())
		}
		return false
	}

	m.known.Set(id.String(), struct{}{}, cache.DefaultExpiration)
	return true
}

// UserID returns the id the identity middleware resolved for this
// request.
func UserID(c *gin.Context) (uuid.UUID, bool) {
	v, ok := c.Get(ContextUserKey)
	if !ok {
		return uuid.Nil, false
	}
	id, ok := v.(uuid.UUID)
	return id, ok
}
