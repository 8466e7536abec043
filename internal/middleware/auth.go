package middleware

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/softwarepar/backend/internal/apperrors"
	"github.com/softwarepar/backend/internal/models"
	"github.com/softwarepar/backend/internal/utils"
)

// Context keys set by AuthMiddleware
const (
	ContextUser   = "user"
	ContextUserID = "user_id"
	ContextRole   = "role"
)

var (
	ErrTokenRequired = apperrors.Unauthorized("Authorization token required")
	ErrInvalidToken  = apperrors.InvalidToken("Invalid or expired token")
)

// UserLookup loads a user that may still use the platform
type UserLookup interface {
	GetActiveUser(ctx context.Context, userID uint) (*models.User, error)
}

// TokenAuthenticator turns a bearer token into the current user record.
// The role always comes from the stored user, never from the token.
type TokenAuthenticator struct {
	tokens utils.TokenIssuer
	users  UserLookup
}

func NewTokenAuthenticator(tokens utils.TokenIssuer, users UserLookup) *TokenAuthenticator {
	return &TokenAuthenticator{tokens: tokens, users: users}
}

// Authenticate validates token and returns its active owner
func (a *TokenAuthenticator) Authenticate(ctx context.Context, token string) (*models.User, error) {
	claims, err := a.tokens.ValidateToken(token)
	if err != nil {
		return nil, ErrInvalidToken
	}

	user, err := a.users.GetActiveUser(ctx, claims.UserID)
	if err != nil {
		if appErr, ok := apperrors.AsAppError(err); ok && appErr.Code == apperrors.CodeNotFound {
			return nil, ErrInvalidToken
		}
		return nil, err
	}
	return user, nil
}

// AuthMiddleware requires a valid bearer token and stores the user in the context
func AuthMiddleware(auth *TokenAuthenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString := extractToken(c)
		if tokenString == "" {
			apperrors.HandleError(c, ErrTokenRequired)
			return
		}

		user, err := auth.Authenticate(c.Request.Context(), tokenString)
		if err != nil {
			apperrors.HandleError(c, err)
			return
		}

		c.Set(ContextUser, user)
		c.Set(ContextUserID, user.ID)
		c.Set(ContextRole, user.Role)
		c.Next()
	}
}

// RequireRole admits only the listed roles. Must run after AuthMiddleware.
func RequireRole(roles ...models.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := CurrentUser(c)
		if !ok {
			apperrors.HandleError(c, ErrTokenRequired)
			return
		}
		for _, r := range roles {
			if user.Role == r {
				c.Next()
				return
			}
		}
		apperrors.HandleError(c, apperrors.Forbidden("Insufficient permissions"))
	}
}

// RequireCapability admits roles holding capability
func RequireCapability(capability models.Capability) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := CurrentUser(c)
		if !ok {
			apperrors.HandleError(c, ErrTokenRequired)
			return
		}
		if !user.Role.Can(capability) {
			apperrors.HandleError(c, apperrors.Forbidden("Insufficient permissions"))
			return
		}
		c.Next()
	}
}

// CurrentUser returns the user stored by AuthMiddleware
func CurrentUser(c *gin.Context) (*models.User, bool) {
	v, ok := c.Get(ContextUser)
	if !ok {
		return nil, false
	}
	user, ok := v.(*models.User)
	return user, ok && user != nil
}

// CurrentActor returns the caller as a service actor. Zero when unauthenticated.
func CurrentActor(c *gin.Context) models.Actor {
	user, ok := CurrentUser(c)
	if !ok {
		return models.Actor{}
	}
	return user.Actor()
}

// extractToken gets the token from the Authorization header
func extractToken(c *gin.Context) string {
	parts := strings.SplitN(c.GetHeader("Authorization"), " ", 2)
	if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
		return strings.TrimSpace(parts[1])
	}
	return ""
}
