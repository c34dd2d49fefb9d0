package hub

import (
	"strconv"
	"time"

	"github.com/rickgao/polysquad/internal/model"
)

// Wire event types.
const (
	EventJoin        = "join"        // client → server
	EventSendMessage = "sendMessage" // client → server
	EventMessage     = "message"     // server → client
	EventErrorNotice = "errorNotice" // server → client
)

// ClientEvent is a message received from a connected client.
type ClientEvent struct {
	Type    string `json:"type"`
	RoomID  string `json:"roomId"`
	Content string `json:"content,omitempty"`
}

// Envelope is a message delivered to a connected client.
type Envelope struct {
	Type    string       `json:"type"`
	Message *ChatMessage `json:"message,omitempty"`
	Error   string       `json:"error,omitempty"`
}

// Author is the resolved display data of a message author.
type Author struct {
	Address   string `json:"evmAddress"`
	Username  string `json:"username"`
	AvatarURL string `json:"avatarUrl"`
}

// botAuthor is the display identity used for automated messages.
var botAuthor = Author{
	Address:   "bot",
	Username:  "Bot",
	AvatarURL: model.AvatarFor("bot"),
}

// ChatMessage is the delivered form of a persisted message, with the
// author display data resolved.
type ChatMessage struct {
	ID        string    `json:"id"`
	RoomID    string    `json:"roomId"`
	Author    Author    `json:"author"`
	Content   string    `json:"content"`
	IsBot     bool      `json:"isBot"`
	Timestamp time.Time `json:"timestamp"`
}

// NewChatMessage builds the delivery form of a persisted message.
func NewChatMessage(m model.Message, author Author) ChatMessage {
	return ChatMessage{
		ID:        strconv.FormatInt(m.ID, 10),
		RoomID:    strconv.FormatInt(m.SquadID, 10),
		Author:    author,
		Content:   m.Body,
		IsBot:     m.IsBot,
		Timestamp: m.CreatedAt,
	}
}

// BotAuthor returns the display identity used for automated messages.
func BotAuthor() Author {
	return botAuthor
}

// AuthorFor resolves the display data for a principal.
func AuthorFor(p model.Principal) Author {
	return Author{
		Address:   p.Address,
		Username:  p.Username,
		AvatarURL: p.AvatarURL(),
	}
}
