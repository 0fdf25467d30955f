package engine

import (
	"fmt"
	"io"
	"strings"
	"sync"
)

// Message is text a recipe or cookbook asked to show the operator.
type Message struct {
	Host   string
	Source string
	Text   string
}

// MessageQueue collects pre- and post-apply messages for printing at the end
// of a run.
type MessageQueue struct {
	mu   sync.Mutex
	pre  []Message
	post []Message
}

// NewMessageQueue creates an empty queue.
func NewMessageQueue() *MessageQueue {
	return &MessageQueue{}
}

// Add queues text for phase. Blank text is dropped.
func (q *MessageQueue) Add(phase Phase, host, source, text string) {
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}
	m := Message{Host: host, Source: source, Text: text}

	q.mu.Lock()
	defer q.mu.Unlock()
	switch phase {
	case PhasePreMessage:
		q.pre = append(q.pre, m)
	case PhasePostMessage:
		q.post = append(q.post, m)
	}
}

// Pre returns the queued pre-apply messages in order.
func (q *MessageQueue) Pre() []Message {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]Message(nil), q.pre...)
}

// Post returns the queued post-apply messages in order.
func (q *MessageQueue) Post() []Message {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]Message(nil), q.post...)
}

// Len returns the number of queued messages.
func (q *MessageQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pre) + len(q.post)
}

// Print writes the queued messages, pre-apply first.
func (q *MessageQueue) Print(w io.Writer) error {
	for _, section := range []struct {
		title    string
		messages []Message
	}{
		{"Pre-apply messages", q.Pre()},
		{"Post-apply messages", q.Post()},
	} {
		if len(section.messages) == 0 {
			continue
		}
		if _, err := fmt.Fprintf(w, "%s\n%s\n", section.title, strings.Repeat("=", len(section.title))); err != nil {
			return err
		}
		for _, m := range section.messages {
			if _, err := fmt.Fprintf(w, "[%s] %s:\n", m.Host, m.Source); err != nil {
				return err
			}
			for _, line := range strings.Split(m.Text, "\n") {
				if _, err := fmt.Fprintf(w, "    %s\n", line); err != nil {
					return err
				}
			}
		}
		if _, err := fmt.Fprintln(w); err != nil {
			return err
		}
	}
	return nil
}
