package line

// SignatureHeader carries the webhook body signature on inbound requests.
const SignatureHeader = "X-Line-Signature"

// Event kinds and message kinds acted on by the dispatcher.
const (
	EventTypeMessage = "message"

	MessageTypeText  = "text"
	MessageTypeImage = "image"
)

// WebhookBody is the envelope of an inbound webhook request.
type WebhookBody struct {
	Destination string  `json:"destination,omitempty"`
	Events      []Event `json:"events"`
}

// Event is a single platform event inside a webhook batch.
type Event struct {
	Type           string  `json:"type"`
	WebhookEventID string  `json:"webhookEventId,omitempty"`
	Source         Source  `json:"source"`
	Message        Message `json:"message"`
	ReplyToken     string  `json:"replyToken,omitempty"`
	Timestamp      int64   `json:"timestamp,omitempty"`
}

// Source identifies where an event originated: a user, a group, or a room.
type Source struct {
	Type    string `json:"type"`
	UserID  string `json:"userId,omitempty"`
	GroupID string `json:"groupId,omitempty"`
	RoomID  string `json:"roomId,omitempty"`
}

// Message is the message payload of a message event. Text messages carry
// Text; image messages carry ID, used to fetch the content bytes.
type Message struct {
	Type string `json:"type,omitempty"`
	ID   string `json:"id,omitempty"`
	Text string `json:"text,omitempty"`
}

// ConversationKey derives the identity a session is scoped to. Group and
// room identifiers take precedence over the individual sender so that all
// participants of one conversation share a session.
func (e Event) ConversationKey() string {
	switch e.Source.Type {
	case "group":
		return e.Source.GroupID
	case "room":
		return e.Source.RoomID
	default:
		return e.Source.UserID
	}
}
