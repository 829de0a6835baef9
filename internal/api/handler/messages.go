package handler

import (
	"context"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/Rrens/oneonone-bot/internal/api/middleware"
	"github.com/Rrens/oneonone-bot/internal/api/response"
	"github.com/Rrens/oneonone-bot/internal/domain"
)

// Conversation advances a user's survey by one message
type Conversation interface {
	HandleMessage(ctx context.Context, msg domain.InboundMessage) (domain.Reply, error)
}

// Replier delivers text back to the chat user
type Replier interface {
	Reply(ctx context.Context, msg domain.InboundMessage, text string) error
}

// MessagesHandler handles Bot Framework activities
type MessagesHandler struct {
	conversation Conversation
	replier      Replier
}

// NewMessagesHandler creates a new messages handler
func NewMessagesHandler(conversation Conversation, replier Replier) *MessagesHandler {
	return &MessagesHandler{
		conversation: conversation,
		replier:      replier,
	}
}

// Receive handles POST /api/messages. Activities other than text messages
// are acknowledged and dropped.
func (h *MessagesHandler) Receive(w http.ResponseWriter, r *http.Request) {
	activity, ok := middleware.GetActivity(r.Context())
	if !ok {
		response.BadRequest(w, "missing activity")
		return
	}

	if !activity.IsTextMessage() {
		log.Debug().Str("type", activity.Type).Str("conversation_id", activity.Conversation.ID).Msg("Ignoring activity")
		response.OK(w, nil)
		return
	}

	msg := activity.ToInbound()
	reply, err := h.conversation.HandleMessage(r.Context(), msg)
	if err != nil {
		log.Error().Err(err).Str("user_id", msg.UserID).Msg("Failed to handle message")
		response.InternalError(w, "failed to handle message")
		return
	}

	if err := h.replier.Reply(r.Context(), msg, reply.Text); err != nil {
		log.Error().Err(err).
			Str("user_id", msg.UserID).
			Str("reply_kind", string(reply.Kind)).
			Msg("Failed to deliver reply")
		response.Error(w, http.StatusBadGateway, "failed to deliver reply")
		return
	}

	response.OK(w, map[string]string{
		"reply_kind": string(reply.Kind),
	})
}
