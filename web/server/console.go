package server

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/df07/go-reference-pathtracer/pkg/core"
)

// ConsoleMessage represents a console message with timestamp
type ConsoleMessage struct {
	ID        int       `json:"id"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
	Level     string    `json:"level"` // "info", "warning", "error"
}

// Console keeps the most recent log lines for the editor's console panel
type Console struct {
	mu       sync.Mutex
	messages []ConsoleMessage
	capacity int
	nextID   int
}

// NewConsole creates a console holding at most capacity messages
func NewConsole(capacity int) *Console {
	if capacity <= 0 {
		capacity = 200
	}
	return &Console{capacity: capacity}
}

// Add appends a message, dropping the oldest once full
func (c *Console) Add(level, message string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.messages = append(c.messages, ConsoleMessage{
		ID:        c.nextID,
		Message:   message,
		Timestamp: time.Now(),
		Level:     level,
	})
	c.nextID++
	if over := len(c.messages) - c.capacity; over > 0 {
		c.messages = append(c.messages[:0], c.messages[over:]...)
	}
}

// Since returns the retained messages with an id of at least id
func (c *Console) Since(id int) []ConsoleMessage {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := []ConsoleMessage{}
	for _, m := range c.messages {
		if m.ID >= id {
			out = append(out, m)
		}
	}
	return out
}

// WebLogger implements core.Logger by copying every line to a console
type WebLogger struct {
	console *Console
	next    core.Logger
}

// NewWebLogger creates a logger that writes to console and then to next
func NewWebLogger(console *Console, next core.Logger) core.Logger {
	if next == nil {
		next = core.NopLogger{}
	}
	return &WebLogger{console: console, next: next}
}

// Printf implements core.Logger interface
func (wl *WebLogger) Printf(format string, args ...interface{}) {
	message := strings.TrimRight(fmt.Sprintf(format, args...), "\n")

	level := "info"
	lower := strings.ToLower(message)
	switch {
	case strings.HasPrefix(lower, "error"):
		level = "error"
	case strings.HasPrefix(lower, "warning"):
		level = "warning"
	}

	wl.console.Add(level, message)
	wl.next.Printf(format, args...)
}
