package consumer

import (
	"github.com/maysaraadmin/moodle-analytics/internal/domain"
)

// MessageParser defines the interface for parsing raw message bytes into events
type MessageParser interface {
	Parse(body []byte) (*domain.ActivityEvent, error)
}
