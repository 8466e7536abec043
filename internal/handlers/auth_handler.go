package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/softwarepar/backend/internal/apperrors"
	"github.com/softwarepar/backend/internal/middleware"
	"github.com/softwarepar/backend/internal/models"
	"github.com/softwarepar/backend/internal/services/user"
)

// AuthService is the part of the identity directory used for sign-up and sign-in
type AuthService interface {
	Register(ctx context.Context, input user.RegisterInput) (*user.AuthResult, error)
	Authenticate(ctx context.Context, email, password string) (*user.AuthResult, error)
}

// LoginThrottle locks out repeated failed sign-ins
type LoginThrottle interface {
	Blocked(email, ip string) (bool, time.Time)
	RecordFailure(email, ip string)
	Reset(email string)
}

// AuthHandler handles authentication related requests
type AuthHandler struct {
	users    AuthService
	throttle LoginThrottle
}

// NewAuthHandler creates a new auth handler. throttle may be nil.
func NewAuthHandler(users AuthService, throttle LoginThrottle) *AuthHandler {
	return &AuthHandler{users: users, throttle: throttle}
}

// RegisterRequest represents the request body for sign-up
type RegisterRequest struct {
	Email        string `json:"email" binding:"required,email"`
	Password     string `json:"password" binding:"required,min=6"`
	FullName     string `json:"fullName" binding:"required,min=2"`
	Role         string `json:"role" binding:"required,role"`
	ReferralCode string `json:"referralCode" binding:"omitempty,max=50"`
}

// LoginRequest represents the request body for login
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type authResponse struct {
	User    *models.User `json:"user"`
	Token   string       `json:"token"`
	Message string       `json:"message"`
}

// Register handles POST /api/auth/register
func (h *AuthHandler) Register(c *gin.Context) {
	var req RegisterRequest
	if !bindJSON(c, &req) {
		return
	}

	result, err := h.users.Register(c.Request.Context(), user.RegisterInput{
		Email:        req.Email,
		Password:     req.Password,
		FullName:     strings.TrimSpace(req.FullName),
		Role:         models.Role(req.Role),
		ReferralCode: strings.TrimSpace(req.ReferralCode),
	})
	if err != nil {
		apperrors.HandleError(c, err)
		return
	}

	c.JSON(http.StatusCreated, authResponse{User: result.User, Token: result.Token, Message: "User registered successfully"})
}

// Login handles POST /api/auth/login
func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if !bindJSON(c, &req) {
		return
	}

	ip := c.ClientIP()
	if h.throttle != nil {
		if blocked, until := h.throttle.Blocked(req.Email, ip); blocked {
			c.Header("Retry-After", strconv.Itoa(int(time.Until(until).Seconds())+1))
			apperrors.HandleError(c, apperrors.TooManyRequests("Too many failed login attempts, please try again later"))
			return
		}
	}

	result, err := h.users.Authenticate(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		if h.throttle != nil && errors.Is(err, user.ErrInvalidCredentials) {
			h.throttle.RecordFailure(req.Email, ip)
		}
		apperrors.HandleError(c, err)
		return
	}
	if h.throttle != nil {
		h.throttle.Reset(req.Email)
	}

	c.JSON(http.StatusOK, authResponse{User: result.User, Token: result.Token, Message: "Login successful"})
}

// Me returns the authenticated user
func (h *AuthHandler) Me(c *gin.Context) {
	current, ok := middleware.CurrentUser(c)
	if !ok {
		apperrors.HandleError(c, middleware.ErrTokenRequired)
		return
	}
	c.JSON(http.StatusOK, current)
}

// pathID parses a positive numeric path parameter
func pathID(c *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		apperrors.HandleError(c, apperrors.BadRequest("request", "Invalid "+name))
		return 0, false
	}
	return uint(id), true
}
