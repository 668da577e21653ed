package bot

// Wire types for the MAX Bot API (botapi.max.ru).

const (
	UpdateMessageCreated  = "message_created"
	UpdateMessageCallback = "message_callback"
	UpdateBotStarted      = "bot_started"
)

type BotUser struct {
	UserID   int64  `json:"user_id"`
	Name     string `json:"name"`
	Username string `json:"username,omitempty"`
	IsBot    bool   `json:"is_bot,omitempty"`
}

type MessageBody struct {
	Mid  string `json:"mid"`
	Seq  int64  `json:"seq,omitempty"`
	Text string `json:"text"`
}

type Recipient struct {
	ChatID   int64  `json:"chat_id,omitempty"`
	ChatType string `json:"chat_type,omitempty"`
	UserID   int64  `json:"user_id,omitempty"`
}

type Message struct {
	Sender    BotUser     `json:"sender"`
	Recipient Recipient   `json:"recipient"`
	Timestamp int64       `json:"timestamp"`
	Body      MessageBody `json:"body"`
}

type Callback struct {
	Timestamp  int64   `json:"timestamp"`
	CallbackID string  `json:"callback_id"`
	Payload    string  `json:"payload"`
	User       BotUser `json:"user"`
}

type Update struct {
	UpdateType string    `json:"update_type"`
	Timestamp  int64     `json:"timestamp"`
	Message    *Message  `json:"message,omitempty"`
	Callback   *Callback `json:"callback,omitempty"`
	User       *BotUser  `json:"user,omitempty"`
	ChatID     int64     `json:"chat_id,omitempty"`
	UserID     int64     `json:"user_id,omitempty"`
}

type UpdatesResponse struct {
	Updates []Update `json:"updates"`
	Marker  *int64   `json:"marker"`
}

// Keyboard attachment shapes.

type Button struct {
	Type    string `json:"type"` // callback, link
	Text    string `json:"text"`
	Payload string `json:"payload,omitempty"`
	URL     string `json:"url,omitempty"`
}

type KeyboardPayload struct {
	Buttons [][]Button `json:"buttons"`
}

type Attachment struct {
	Type    string          `json:"type"` // inline_keyboard
	Payload KeyboardPayload `json:"payload"`
}

type NewMessage struct {
	Text        string       `json:"text"`
	Attachments []Attachment `json:"attachments,omitempty"`
	Notify      bool         `json:"notify"`
}

type sendMessageResponse struct {
	Message *Message `json:"message"`
}

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
