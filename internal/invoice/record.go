package invoice

import (
	"time"

	"github.com/zombor/invoice-ocr/internal/scanning"
)

// Record is one extraction kept in the history database. Failed extractions
// are recorded too, with the outcome explaining why.
type Record struct {
	ID          string           `json:"id"`
	Filename    string           `json:"filename,omitempty"` // stored upload, empty for URL refs
	ContentType string           `json:"content_type,omitempty"`
	SourceURL   string           `json:"source_url,omitempty"`
	Hint        string           `json:"hint,omitempty"`
	Outcome     scanning.Outcome `json:"outcome"`
	CreatedAt   time.Time        `json:"created_at"`
}
