package domain

// ChannelRef identifies where a message came from on the chat transport.
// The conversation engine never reads it; transports use it to answer back
// and to look up the sender.
type ChannelRef struct {
	ServiceURL     string `json:"service_url"`
	ConversationID string `json:"conversation_id"`
	ActivityID     string `json:"activity_id"`
	BotID          string `json:"bot_id"`
	BotName        string `json:"bot_name"`
}

// InboundMessage is one text message from a chat user
type InboundMessage struct {
	UserID      string
	DisplayName string
	Text        string
	Channel     ChannelRef
}

// ReplyKind classifies an engine reply
type ReplyKind string

const (
	ReplyGreeting  ReplyKind = "greeting"
	ReplyQuestion  ReplyKind = "question"
	ReplyRejection ReplyKind = "rejection"
	ReplyCompleted ReplyKind = "completed"
	ReplyFailed    ReplyKind = "failed"
	ReplyCancelled ReplyKind = "cancelled"
)

// Reply is the text the engine wants sent back to the user
type Reply struct {
	Kind ReplyKind `json:"kind"`
	Text string    `json:"text"`
}
