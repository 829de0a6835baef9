// Package botframework speaks the Bot Framework Connector protocol: inbound
// activities, replies and member lookups.
package botframework

import (
	"strings"

	"github.com/Rrens/oneonone-bot/internal/domain"
)

// Activity types the bot cares about
const (
	ActivityTypeMessage            = "message"
	ActivityTypeConversationUpdate = "conversationUpdate"
)

// ChannelAccount identifies a user or bot on a channel
type ChannelAccount struct {
	ID          string `json:"id" validate:"required"`
	Name        string `json:"name,omitempty"`
	AADObjectID string `json:"aadObjectId,omitempty"`
}

// ConversationAccount identifies a conversation
type ConversationAccount struct {
	ID               string `json:"id" validate:"required"`
	Name             string `json:"name,omitempty"`
	ConversationType string `json:"conversationType,omitempty"`
	TenantID         string `json:"tenantId,omitempty"`
	IsGroup          bool   `json:"isGroup,omitempty"`
}

// Activity is the subset of the Bot Framework activity schema the bot reads and writes
type Activity struct {
	Type         string              `json:"type" validate:"required"`
	ID           string              `json:"id,omitempty"`
	Timestamp    string              `json:"timestamp,omitempty"`
	ServiceURL   string              `json:"serviceUrl,omitempty" validate:"required,url"`
	ChannelID    string              `json:"channelId,omitempty"`
	From         ChannelAccount      `json:"from"`
	Recipient    ChannelAccount      `json:"recipient"`
	Conversation ConversationAccount `json:"conversation"`
	Text         string              `json:"text,omitempty"`
	TextFormat   string              `json:"textFormat,omitempty"`
	Locale       string              `json:"locale,omitempty"`
	ReplyToID    string              `json:"replyToId,omitempty"`
}

// IsTextMessage reports whether the activity carries user text for the engine
func (a *Activity) IsTextMessage() bool {
	return a.Type == ActivityTypeMessage && strings.TrimSpace(a.Text) != ""
}

// ToInbound converts a message activity into the engine's input
func (a *Activity) ToInbound() domain.InboundMessage {
	return domain.InboundMessage{
		UserID:      a.From.ID,
		DisplayName: a.From.Name,
		Text:        a.Text,
		Channel: domain.ChannelRef{
			ServiceURL:     a.ServiceURL,
			ConversationID: a.Conversation.ID,
			ActivityID:     a.ID,
			BotID:          a.Recipient.ID,
			BotName:        a.Recipient.Name,
		},
	}
}

// TeamsChannelAccount is a conversation member as returned by the members API
type TeamsChannelAccount struct {
	ID                string `json:"id"`
	Name              string `json:"name,omitempty"`
	GivenName         string `json:"givenName,omitempty"`
	Surname           string `json:"surname,omitempty"`
	Email             string `json:"email,omitempty"`
	UserPrincipalName string `json:"userPrincipalName,omitempty"`
	AADObjectID       string `json:"aadObjectId,omitempty"`
	TenantID          string `json:"tenantId,omitempty"`
}
