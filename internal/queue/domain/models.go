package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// Message is one copy of a published envelope stored in a single queue.
type Message struct {
	ID              snowflake.ID      `gorm:"primaryKey" json:"id"`
	Queue           string            `gorm:"type:varchar(128);not null;index:idx_queue_messages_visible,priority:1" json:"queue"`
	Subject         string            `gorm:"type:varchar(255)" json:"subject"`
	Attributes      datatypes.JSONMap `gorm:"type:json" json:"attributes"`
	Body            string            `gorm:"type:text;not null" json:"body"`
	ReceiveCount    int               `gorm:"not null;default:0" json:"receiveCount"`
	VisibleAt       time.Time         `gorm:"not null;index:idx_queue_messages_visible,priority:2" json:"visibleAt"`
	Receipt         string            `gorm:"type:varchar(64)" json:"-"`
	FirstReceivedAt *time.Time        `json:"firstReceivedAt,omitempty"`
	LastError       string            `gorm:"type:text" json:"lastError,omitempty"`
	CreatedAt       time.Time         `json:"createdAt"`
	UpdatedAt       time.Time         `json:"updatedAt"`
}

func (Message) TableName() string { return "queue_messages" }

// Attribute returns a string message attribute, or "" when absent.
func (m Message) Attribute(key string) string {
	if m.Attributes == nil {
		return ""
	}
	if v, ok := m.Attributes[key].(string); ok {
		return v
	}
	return ""
}

// StringAttributes returns the string-valued attributes, used for trace propagation.
func (m Message) StringAttributes() map[string]string {
	out := make(map[string]string, len(m.Attributes))
	for k, v := range m.Attributes {
		if s, ok := v.(string); ok {
			out[k] = s
		}
	}
	return out
}

type DeadLetterReason string

const (
	// ReasonTerminal marks a message whose handler reported a non-retryable failure.
	ReasonTerminal DeadLetterReason = "terminal"
	// ReasonExhausted marks a message that failed MaxReceiveCount deliveries.
	ReasonExhausted DeadLetterReason = "exhausted"
)

// DeadLetter is a quarantined message. Rows are never updated or replayed.
type DeadLetter struct {
	ID                snowflake.ID      `gorm:"primaryKey" json:"id"`
	MessageID         snowflake.ID      `gorm:"not null;uniqueIndex" json:"messageId"`
	SourceQueue       string            `gorm:"type:varchar(128);not null;index:idx_dead_letters_queue,priority:1" json:"sourceQueue"`
	Subject           string            `gorm:"type:varchar(255)" json:"subject"`
	Attributes        datatypes.JSONMap `gorm:"type:json" json:"attributes"`
	Body              string            `gorm:"type:text;not null" json:"body"`
	ReceiveCount      int               `gorm:"not null" json:"receiveCount"`
	Reason            DeadLetterReason  `gorm:"type:varchar(32);not null" json:"reason"`
	LastError         string            `gorm:"type:text" json:"lastError,omitempty"`
	OriginalCreatedAt time.Time         `json:"originalCreatedAt"`
	DeadLetteredAt    time.Time         `gorm:"not null;index:idx_dead_letters_queue,priority:2" json:"deadLetteredAt"`
}

func (DeadLetter) TableName() string { return "dead_letters" }

// OutgoingMessage is a message about to be enqueued.
type OutgoingMessage struct {
	Queue      string
	Subject    string
	Attributes map[string]string
	Body       string
}

// DeadLetterFilter pages newest first. Before and BeforeID together name the
// last row of the previous page.
type DeadLetterFilter struct {
	Queue    string
	Before   *time.Time
	BeforeID snowflake.ID
	Limit    int
}

type Stats struct {
	Queue       string `json:"queue"`
	Visible     int64  `json:"visible"`
	InFlight    int64  `json:"inFlight"`
	DeadLetters int64  `json:"deadLetters"`
}
