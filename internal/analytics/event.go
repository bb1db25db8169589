package analytics

import "time"

const (
	TopicURLCreated = "url.created"
	TopicURLClicked = "url.clicked"
)

// URLCreatedEvent represents an event emitted when a URL is shortened.
type URLCreatedEvent struct {
	Code        string    `json:"code"`
	OriginalURL string    `json:"originalUrl"`
	Strategy    string    `json:"strategy"`
	CreatedAt   time.Time `json:"createdAt"`
	ClientIP    string    `json:"clientIp"`
	UserAgent   string    `json:"userAgent"`
}

// URLClickedEvent represents a successful resolution of a short code.
type URLClickedEvent struct {
	Code      string    `json:"code"`
	ClickedAt time.Time `json:"clickedAt"`
	ClientIP  string    `json:"clientIp"`
	UserAgent string    `json:"userAgent"`
	Referrer  string    `json:"referrer"`
}
