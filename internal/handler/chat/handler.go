package chat

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/clinicore/clinic-api/internal/middleware"
	"github.com/clinicore/clinic-api/internal/model"
	"github.com/clinicore/clinic-api/internal/service/chat"
	apperrors "github.com/clinicore/clinic-api/pkg/errors"
	"github.com/clinicore/clinic-api/pkg/httputil"
)

type Handler struct {
	service *chat.Service
}

func NewHandler(service *chat.Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup, auth *middleware.AuthMiddleware) {
	chats := r.Group("/chats")
	chats.Use(auth.Authenticate())
	{
		chats.POST("", h.OpenChat)
		chats.GET("", h.ListChats)
		chats.GET("/:id/messages", h.ListMessages)
		chats.POST("/:id/messages", h.SendMessage)
		chats.PUT("/:id/read", h.MarkRead)
	}
}

// OpenChat returns the conversation with the given participant, creating
// it on first contact.
func (h *Handler) OpenChat(c *gin.Context) {
	principal, ok := middleware.GetPrincipal(c)
	if !ok {
		httputil.RespondWithError(c, apperrors.Unauthorized("not authenticated"))
		return
	}

	var req model.OpenChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondWithValidationError(c, err)
		return
	}

	chat, err := h.service.Open(c.Request.Context(), principal, req.ParticipantID)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithSuccess(c, chat)
}

func (h *Handler) ListChats(c *gin.Context) {
	principal, ok := middleware.GetPrincipal(c)
	if !ok {
		httputil.RespondWithError(c, apperrors.Unauthorized("not authenticated"))
		return
	}

	chats, err := h.service.ListMine(c.Request.Context(), principal)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithList(c, chats, len(chats))
}

func (h *Handler) ListMessages(c *gin.Context) {
	principal, ok := middleware.GetPrincipal(c)
	if !ok {
		httputil.RespondWithError(c, apperrors.Unauthorized("not authenticated"))
		return
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httputil.RespondWithError(c, apperrors.Validation("invalid chat ID"))
		return
	}

	messages, err := h.service.ListMessages(c.Request.Context(), principal, id)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithList(c, messages, len(messages))
}

func (h *Handler) SendMessage(c *gin.Context) {
	principal, ok := middleware.GetPrincipal(c)
	if !ok {
		httputil.RespondWithError(c, apperrors.Unauthorized("not authenticated"))
		return
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httputil.RespondWithError(c, apperrors.Validation("invalid chat ID"))
		return
	}

	var req model.SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondWithValidationError(c, err)
		return
	}

	message, err := h.service.SendMessage(c.Request.Context(), principal, id, req.Content)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithCreated(c, message)
}

func (h *Handler) MarkRead(c *gin.Context) {
	principal, ok := middleware.GetPrincipal(c)
	if !ok {
		httputil.RespondWithError(c, apperrors.Unauthorized("not authenticated"))
		return
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httputil.RespondWithError(c, apperrors.Validation("invalid chat ID"))
		return
	}

	if err := h.service.MarkRead(c.Request.Context(), principal, id); err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithSuccess(c, gin.H{"message": "messages marked as read"})
}
