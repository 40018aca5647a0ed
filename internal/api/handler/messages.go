package handler

import (
	"net/http"

	"carelink/backend/internal/models"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type markReadRequest struct {
	MessageID string `json:"messageId" binding:"required"`
}

func (h *Handler) GetConversation(c *gin.Context) {
	msgs, err := h.Messages.ListBetween(c.Request.Context(), currentUserID(c), c.Param("otherUserId"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, msgs)
}

func (h *Handler) GetUnread(c *gin.Context) {
	msgs, err := h.Messages.ListUnread(c.Request.Context(), currentUserID(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, msgs)
}

func (h *Handler) MarkRead(c *gin.Context) {
	var req markReadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	msg, err := h.Messages.MarkRead(c.Request.Context(), req.MessageID)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, msg)
}

func (h *Handler) GetConversations(c *gin.Context) {
	convs, err := h.Messages.RecentConversations(c.Request.Context(), currentUserID(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, convs)
}

// SendMessage is the REST twin of the sendMessage event; the recipient still
// gets a realtime newMessage if connected.
func (h *Handler) SendMessage(c *gin.Context) {
	var req models.SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	msg, err := h.Messages.CreateMessage(c.Request.Context(), currentUserID(c), req.RecipientID, req.Content)
	if err != nil {
		h.fail(c, err)
		return
	}

	delivered := h.Hub.EmitToRoom(c.Request.Context(), msg.RecipientID, models.Envelope{Event: models.EventNewMessage, Data: msg})
	h.Log.Debug("message sent over http", zap.String("message_id", msg.ID), zap.Int("delivered", delivered))
	c.JSON(http.StatusCreated, msg)
}
