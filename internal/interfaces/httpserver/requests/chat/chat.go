package chatrequests

// CreateChatRequest creates a new chat, optionally seeding it with a first
// prompt message.
type CreateChatRequest struct {
	Title        string   `json:"title" binding:"omitempty,max=255"`
	FirstMessage string   `json:"first_message"`
	Images       []string `json:"images"`
}

// RenameChatRequest updates the chat title.
type RenameChatRequest struct {
	Title string `json:"title" binding:"required,max=255"`
}

// StreamTurn is one conversation turn sent by the client. Turns that carry an
// ID were already persisted by a previous call and are sent for model context
// only; turns without an ID are persisted before inference starts.
type StreamTurn struct {
	ID      *string  `json:"id"`
	Type    string   `json:"type" binding:"required"`
	Content string   `json:"content"`
	Images  []string `json:"images"`
}

// StreamRequest is the body of the streaming completion endpoint.
type StreamRequest struct {
	Messages []StreamTurn `json:"messages"`
}
