package invoice

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/zombor/invoice-ocr/internal/imagesource"
	"github.com/zombor/invoice-ocr/internal/scanning"
)

// ErrNoFile is returned for records created from a URL, which keep no upload
var ErrNoFile = errors.New("record has no stored file")

// IDGenerator generates unique IDs for records
type IDGenerator interface {
	Generate() string
}

// TimeSource provides the current time
type TimeSource interface {
	Now() time.Time
}

type uuidGenerator struct{}

func (g uuidGenerator) Generate() string {
	return uuid.NewString()
}

type defaultTimeSource struct{}

func (t defaultTimeSource) Now() time.Time {
	return time.Now()
}

// Service runs extractions and keeps their history
type Service struct {
	db          DB
	extractor   scanning.Extractor
	storage     imagesource.Storage
	idGenerator IDGenerator
	timeSource  TimeSource
}

// NewService creates a new Service with uuid IDs and the wall clock
func NewService(db DB, extractor scanning.Extractor, storage imagesource.Storage) *Service {
	return NewServiceWithDeps(db, extractor, storage, uuidGenerator{}, defaultTimeSource{})
}

// NewServiceWithDeps creates a new Service with custom dependencies for testing
func NewServiceWithDeps(db DB, extractor scanning.Extractor, storage imagesource.Storage, idGen IDGenerator, timeSrc TimeSource) *Service {
	return &Service{
		db:          db,
		extractor:   extractor,
		storage:     storage,
		idGenerator: idGen,
		timeSource:  timeSrc,
	}
}

var (
	reFilenameJunk  = regexp.MustCompile(`[^\p{L}\p{N}\s\-_]`)
	reFilenameSpace = regexp.MustCompile(`\s+`)
)

// sanitizeFilename cleans up a filename by removing special characters and truncating length
func sanitizeFilename(filename string) string {
	filename = filepath.Base(strings.ReplaceAll(filename, `\`, "/"))
	ext := filepath.Ext(filename)
	base := strings.TrimSuffix(filename, ext)

	base = reFilenameJunk.ReplaceAllString(base, "")
	base = strings.TrimSpace(reFilenameSpace.ReplaceAllString(base, " "))

	// 50 runes keeps CJK names intact
	if r := []rune(base); len(r) > 50 {
		base = string(r[:50])
	}
	if base == "" {
		base = "invoice"
	}
	return base + strings.ToLower(ext)
}

// ProcessUpload stores an uploaded invoice, extracts it and records the outcome.
// A failed extraction is still recorded and returned without an error.
func (s *Service) ProcessUpload(ctx context.Context, filename string, data []byte, contentType, hint string) (*Record, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("file is empty")
	}

	id := s.idGenerator.Generate()
	savedPath, err := s.storage.Save(fmt.Sprintf("%s_%s", id, sanitizeFilename(filename)), data)
	if err != nil {
		return nil, fmt.Errorf("saving file: %w", err)
	}

	outcome := s.extractor.ExtractInvoice(ctx, imagesource.Ref{Data: data, MimeType: contentType}, hint)
	if !outcome.Success {
		slog.Error("Failed to extract invoice",
			"filename", filename,
			"content_type", contentType,
			"file_size", len(data),
			"error", outcome.Error,
		)
	}

	record := &Record{
		ID:          id,
		Filename:    savedPath,
		ContentType: contentType,
		Hint:        hint,
		Outcome:     outcome,
		CreatedAt:   s.timeSource.Now(),
	}
	if err := s.db.SaveRecord(record); err != nil {
		// Clean up file if database save fails
		s.storage.Delete(savedPath)
		return nil, fmt.Errorf("saving record to database: %w", err)
	}
	return record, nil
}

// ProcessURL extracts the invoice at url and records the outcome
func (s *Service) ProcessURL(ctx context.Context, url, hint string) (*Record, error) {
	url = strings.TrimSpace(url)
	if url == "" {
		return nil, fmt.Errorf("url is required")
	}

	outcome := s.extractor.ExtractInvoice(ctx, imagesource.Ref{URL: url}, hint)
	if !outcome.Success {
		slog.Error("Failed to extract invoice", "url", url, "error", outcome.Error)
	}

	record := &Record{
		ID:        s.idGenerator.Generate(),
		SourceURL: url,
		Hint:      hint,
		Outcome:   outcome,
		CreatedAt: s.timeSource.Now(),
	}
	if err := s.db.SaveRecord(record); err != nil {
		return nil, fmt.Errorf("saving record to database: %w", err)
	}
	return record, nil
}

// GetRecord retrieves a record by ID
func (s *Service) GetRecord(id string) (*Record, error) {
	record, err := s.db.GetRecord(id)
	if err != nil {
		return nil, fmt.Errorf("getting record: %w", err)
	}
	return record, nil
}

// ListRecords returns all records
func (s *Service) ListRecords() ([]*Record, error) {
	records, err := s.db.ListRecords()
	if err != nil {
		return nil, fmt.Errorf("listing records: %w", err)
	}
	return records, nil
}

// DeleteRecord removes a record and its stored file
func (s *Service) DeleteRecord(id string) error {
	record, err := s.db.GetRecord(id)
	if err != nil {
		return fmt.Errorf("getting record for deletion: %w", err)
	}

	if record.Filename != "" {
		if err := s.storage.Delete(record.Filename); err != nil {
			// Log error but continue with database deletion
			slog.Warn("Failed to delete file", "filename", record.Filename, "error", err)
		}
	}

	if err := s.db.DeleteRecord(id); err != nil {
		return fmt.Errorf("deleting record from database: %w", err)
	}
	return nil
}

// GetRecordFile retrieves the uploaded file for a record
func (s *Service) GetRecordFile(id string) ([]byte, string, error) {
	record, err := s.db.GetRecord(id)
	if err != nil {
		return nil, "", fmt.Errorf("getting record: %w", err)
	}
	if record.Filename == "" {
		return nil, "", ErrNoFile
	}

	data, err := s.storage.Get(record.Filename)
	if err != nil {
		return nil, "", fmt.Errorf("getting record file: %w", err)
	}
	return data, record.ContentType, nil
}
