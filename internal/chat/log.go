package chat

import (
	"errors"
	"sync"
	"time"
)

// ErrEmptyMessage is returned when a user message carries neither text nor
// an image.
var ErrEmptyMessage = errors.New("message needs text or an image")

// Log is an append-only, ordered conversation log. At most one system
// message exists and it is always first. There are no update or delete
// operations.
type Log struct {
	mu   sync.Mutex
	msgs []Message
}

// NewLog creates a Log, seeding it with a system message when systemPrompt
// is non-empty.
func NewLog(systemPrompt string) *Log {
	l := &Log{}
	if systemPrompt != "" {
		l.msgs = append(l.msgs, Message{
			Role:      RoleSystem,
			Text:      systemPrompt,
			CreatedAt: time.Now(),
		})
	}
	return l
}

// AppendUser appends a user turn. Either text or image must be present.
func (l *Log) AppendUser(text, image string) (Message, error) {
	if text == "" && image == "" {
		return Message{}, ErrEmptyMessage
	}
	m := Message{
		Role:      RoleUser,
		Text:      text,
		ImageData: image,
		CreatedAt: time.Now(),
	}
	l.mu.Lock()
	l.msgs = append(l.msgs, m)
	l.mu.Unlock()
	return m, nil
}

// AppendAssistant appends an assistant turn. An empty reply is valid.
func (l *Log) AppendAssistant(text string) Message {
	m := Message{
		Role:      RoleAssistant,
		Text:      text,
		CreatedAt: time.Now(),
	}
	l.mu.Lock()
	l.msgs = append(l.msgs, m)
	l.mu.Unlock()
	return m
}

// Messages returns a snapshot of the full history, system turn included.
func (l *Log) Messages() []Message {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Message, len(l.msgs))
	copy(out, l.msgs)
	return out
}

// Visible returns the history shown to the user: every turn except the
// system one, in insertion order.
func (l *Log) Visible() []Message {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Message, 0, len(l.msgs))
	for _, m := range l.msgs {
		if m.Role == RoleSystem {
			continue
		}
		out = append(out, m)
	}
	return out
}

// System returns the system message, if one was set.
func (l *Log) System() (Message, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.msgs) > 0 && l.msgs[0].Role == RoleSystem {
		return l.msgs[0], true
	}
	return Message{}, false
}

// Len reports the number of messages, system turn included.
func (l *Log) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.msgs)
}

// Last returns the most recent message.
func (l *Log) Last() (Message, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.msgs) == 0 {
		return Message{}, false
	}
	return l.msgs[len(l.msgs)-1], true
}
