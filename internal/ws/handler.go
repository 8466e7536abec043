package ws

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/softwarepar/backend/internal/apperrors"
	"github.com/softwarepar/backend/internal/models"
	"go.uber.org/zap"
)

// Authenticator resolves a bearer token to an active user
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*models.User, error)
}

type Handler struct {
	hub      *Hub
	auth     Authenticator
	upgrader websocket.Upgrader
	logger   *zap.Logger
}

// NewHandler builds the upgrade endpoint. allowedOrigins empty accepts any origin.
func NewHandler(hub *Hub, auth Authenticator, allowedOrigins []string, logger *zap.Logger) *Handler {
	origins := make(map[string]bool, len(allowedOrigins))
	for _, o := range allowedOrigins {
		origins[o] = true
	}
	return &Handler{
		hub:  hub,
		auth: auth,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return len(origins) == 0 || origin == "" || origins[origin]
			},
		},
		logger: logger.Named("ws"),
	}
}

// ServeWS upgrades GET /ws?token=... for the token's owner
func (h *Handler) ServeWS(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		apperrors.HandleError(c, apperrors.Unauthorized("Token required"))
		return
	}
	user, err := h.auth.Authenticate(c.Request.Context(), token)
	if err != nil {
		apperrors.HandleError(c, err)
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	client := newClient(h.hub, conn, user.ID, h.logger)
	if !h.hub.Register(client) {
		conn.Close()
		return
	}

	go client.writePump()
	client.enqueue(Message{
		Type:      "welcome",
		Message:   "Connected to SoftwarePar",
		Timestamp: time.Now().UTC(),
	})
	go client.readPump()
}
