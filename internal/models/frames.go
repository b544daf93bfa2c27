package models

// Frame type discriminators used on the websocket wire.
const (
	FrameMessage = "message"
	FrameTyping  = "typing"
	FrameError   = "error"
)

// InboundFrame is what a bound client may send over its socket. A frame
// without a type is a chat-send (ReceiverID + Content); type "typing" is a
// presence-send (UserID + TargetUserID + IsTyping).
type InboundFrame struct {
	Type         string `json:"type,omitempty"`
	ReceiverID   string `json:"receiverId,omitempty"`
	Content      string `json:"content,omitempty"`
	UserID       string `json:"userId,omitempty"`
	TargetUserID string `json:"targetUserId,omitempty"`
	IsTyping     bool   `json:"isTyping,omitempty"`
}

// OutboundFrame is pushed to clients. Exactly one of the payload fields is
// populated depending on Type.
type OutboundFrame struct {
	Type     string   `json:"type"`
	Data     *Message `json:"data,omitempty"`
	UserID   string   `json:"userId,omitempty"`
	IsTyping *bool    `json:"isTyping,omitempty"`
	Message  string   `json:"message,omitempty"`
}

// MessageFrame builds the push/echo frame for a persisted message.
func MessageFrame(msg Message) OutboundFrame {
	return OutboundFrame{Type: FrameMessage, Data: &msg}
}

// TypingFrame builds a presence frame relayed to the target user.
func TypingFrame(userID string, isTyping bool) OutboundFrame {
	return OutboundFrame{Type: FrameTyping, UserID: userID, IsTyping: &isTyping}
}

// ErrorFrame builds an error notification for the originating connection.
func ErrorFrame(text string) OutboundFrame {
	return OutboundFrame{Type: FrameError, Message: text}
}
