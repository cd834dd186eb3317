// Package chat defines the conversation data model shared by the client and
// the conversation controller.
package chat

import "strings"

// Role identifies who produced a turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is one message in a conversation.
type Turn struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// UserTurn creates a user turn.
func UserTurn(content string) Turn {
	return Turn{Role: RoleUser, Content: content}
}

// AssistantTurn creates an assistant turn.
func AssistantTurn(content string) Turn {
	return Turn{Role: RoleAssistant, Content: content}
}

// IsAssistant reports whether the turn was produced by the assistant.
func (t Turn) IsAssistant() bool {
	return t.Role == RoleAssistant
}

// Conversation is an ordered transcript, oldest turn first.
//
// Methods never write through the receiver's backing array: every change
// returns a fresh slice, so a Conversation handed out as a snapshot stays
// valid after the owner moves on.
type Conversation []Turn

// Len returns the number of turns.
func (c Conversation) Len() int {
	return len(c)
}

// Last returns the most recent turn.
func (c Conversation) Last() (Turn, bool) {
	if len(c) == 0 {
		return Turn{}, false
	}
	return c[len(c)-1], true
}

// Clone returns a copy that shares no memory with c.
func (c Conversation) Clone() Conversation {
	if c == nil {
		return nil
	}
	out := make(Conversation, len(c))
	copy(out, c)
	return out
}

// Append returns a new conversation with turns added at the end.
func (c Conversation) Append(turns ...Turn) Conversation {
	out := make(Conversation, len(c), len(c)+len(turns))
	copy(out, c)
	return append(out, turns...)
}

// AppendAssistantText appends delta to the trailing assistant turn. When the
// last turn is not an assistant turn (or there is none), a new assistant turn
// holding delta is added instead.
func (c Conversation) AppendAssistantText(delta string) Conversation {
	last, ok := c.Last()
	if !ok || !last.IsAssistant() {
		return c.Append(AssistantTurn(delta))
	}
	out := c.Clone()
	out[len(out)-1] = Turn{Role: last.Role, Content: last.Content + delta}
	return out
}

// Text joins all turn contents, used for size estimates.
func (c Conversation) Text() string {
	var b strings.Builder
	for i, t := range c {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(t.Content)
	}
	return b.String()
}
