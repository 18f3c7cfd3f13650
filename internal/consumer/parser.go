package consumer

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/maysaraadmin/moodle-analytics/internal/domain"
)

// ErrInvalidMessage is returned for messages that can never be stored
var ErrInvalidMessage = errors.New("invalid activity message")

// JSONEventParser implements MessageParser for JSON-formatted activity messages
type JSONEventParser struct {
	now func() time.Time
}

// NewJSONEventParser creates a new JSON event parser
func NewJSONEventParser() *JSONEventParser {
	return &JSONEventParser{now: time.Now}
}

// Parse parses a JSON message body into an ActivityEvent and stamps the
// ingestion bookkeeping fields
func (p *JSONEventParser) Parse(body []byte) (*domain.ActivityEvent, error) {
	var event domain.ActivityEvent
	if err := json.Unmarshal(body, &event); err != nil {
		return nil, fmt.Errorf("failed to unmarshal message body: %w", err)
	}

	switch {
	case event.EventID <= 0:
		return nil, fmt.Errorf("%w: missing event_id", ErrInvalidMessage)
	case event.UserID <= 0:
		return nil, fmt.Errorf("%w: event %d has no user_id", ErrInvalidMessage, event.EventID)
	case event.CourseID == "":
		return nil, fmt.Errorf("%w: event %d has no course_id", ErrInvalidMessage, event.EventID)
	case event.EventName == "":
		return nil, fmt.Errorf("%w: event %d has no event_name", ErrInvalidMessage, event.EventID)
	}

	now := p.now()
	event.ProcessedAt = now
	event.Version = uint64(now.UnixNano())

	return &event, nil
}
