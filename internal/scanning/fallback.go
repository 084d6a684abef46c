package scanning

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/zombor/invoice-ocr/internal/extraction"
	"github.com/zombor/invoice-ocr/internal/imagesource"
)

// DefaultAttemptTimeout bounds a single provider attempt
const DefaultAttemptTimeout = 60 * time.Second

// AutoHint selects every configured provider in priority order
const AutoHint = "auto"

// ErrAllProvidersFailed is the outcome error once every candidate failed
var ErrAllProvidersFailed = errors.New("all providers failed")

// DefaultOrder is the priority order used in auto mode
var DefaultOrder = []string{"vat", "layout", "gemini", "azure", "ollama", "tesseract"}

// Attempt records one provider try
type Attempt struct {
	Provider   string `json:"provider"`
	Error      string `json:"error,omitempty"`
	DurationMS int64  `json:"durationMs"`
}

// Outcome is the result of ExtractInvoice. Data is nil unless Success is set.
// Attempts and the text of the last failed provider are only reported when
// extraction fails.
type Outcome struct {
	Success               bool                      `json:"success"`
	Data                  *extraction.InvoiceFields `json:"data,omitempty"`
	Error                 string                    `json:"error,omitempty"`
	RawText               string                    `json:"rawText,omitempty"`
	Provider              string                    `json:"provider,omitempty"`
	RecognitionConfidence *float64                  `json:"recognitionConfidence,omitempty"`
	Warning               string                    `json:"warning,omitempty"`
	Attempts              []Attempt                 `json:"attempts,omitempty"`
}

// Extractor is the public extraction entry point
type Extractor interface {
	ExtractInvoice(ctx context.Context, ref imagesource.Ref, hint string) Outcome
}

// Orchestrator tries providers one after another until one succeeds
type Orchestrator struct {
	providers     map[string]Provider
	order         []string
	timeout       time.Duration
	minConfidence float64
	logger        *slog.Logger
}

// Option configures an Orchestrator
type Option func(*Orchestrator)

// WithOrder sets the auto mode priority. Names without a configured provider are skipped.
func WithOrder(names ...string) Option {
	return func(o *Orchestrator) {
		o.order = names
	}
}

// WithAttemptTimeout bounds each provider attempt
func WithAttemptTimeout(d time.Duration) Option {
	return func(o *Orchestrator) {
		if d > 0 {
			o.timeout = d
		}
	}
}

// WithMinConfidence makes results scoring below min count as failures
func WithMinConfidence(min float64) Option {
	return func(o *Orchestrator) {
		o.minConfidence = min
	}
}

// WithLogger sets the logger for attempt logs
func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// NewOrchestrator creates an Orchestrator over providers. A later provider
// with the same name replaces an earlier one.
func NewOrchestrator(providers []Provider, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		providers: make(map[string]Provider, len(providers)),
		order:     DefaultOrder,
		timeout:   DefaultAttemptTimeout,
		logger:    slog.Default(),
	}
	var registered []string
	for _, p := range providers {
		if _, ok := o.providers[p.Name()]; !ok {
			registered = append(registered, p.Name())
		}
		o.providers[p.Name()] = p
	}
	for _, opt := range opts {
		opt(o)
	}

	// keep the listed order, then anything configured but unlisted
	var order []string
	listed := map[string]bool{}
	for _, name := range o.order {
		if _, ok := o.providers[name]; ok && !listed[name] {
			order = append(order, name)
			listed[name] = true
		}
	}
	for _, name := range registered {
		if !listed[name] {
			order = append(order, name)
		}
	}
	o.order = order
	return o
}

// Names returns the configured providers in auto order
func (o *Orchestrator) Names() []string {
	return append([]string(nil), o.order...)
}

// ExtractInvoice runs the fallback chain for ref. hint is "", "auto" or a provider name.
func (o *Orchestrator) ExtractInvoice(ctx context.Context, ref imagesource.Ref, hint string) Outcome {
	candidates, err := o.candidates(hint)
	if err != nil {
		return Outcome{Error: err.Error()}
	}
	if err := ref.Validate(); err != nil {
		return Outcome{Error: err.Error()}
	}

	var (
		attempts []Attempt
		rawText  string
	)
	for _, p := range candidates {
		if err := ctx.Err(); err != nil {
			return Outcome{Error: fmt.Sprintf("extraction cancelled: %v", err), RawText: rawText, Attempts: attempts}
		}

		start := time.Now()
		fields, result, err := o.attempt(ctx, p, ref)
		attempt := Attempt{Provider: p.Name(), DurationMS: time.Since(start).Milliseconds()}
		if result != nil && result.Text != "" {
			rawText = result.Text
		}

		// a cancelled caller never gets a result, even a finished one
		if ctxErr := ctx.Err(); ctxErr != nil {
			attempt.Error = ctxErr.Error()
			attempts = append(attempts, attempt)
			return Outcome{Error: fmt.Sprintf("extraction cancelled: %v", ctxErr), RawText: rawText, Attempts: attempts}
		}

		if err == nil && fields.Confidence < o.minConfidence {
			err = fmt.Errorf("confidence %.2f below minimum %.2f", fields.Confidence, o.minConfidence)
		}
		if err != nil {
			attempt.Error = err.Error()
			attempts = append(attempts, attempt)
			o.logger.Warn("Provider attempt failed", "provider", p.Name(), "error", err, "duration_ms", attempt.DurationMS)
			continue
		}

		// earlier failures stay in the log, never in a successful outcome
		outcome := Outcome{
			Success:               true,
			Data:                  &fields,
			RawText:               result.Text,
			Provider:              p.Name(),
			RecognitionConfidence: result.Confidence,
		}
		if fields.Empty() {
			outcome.Warning = extraction.ErrNoFields.Error()
		}
		o.logger.Info("Invoice extracted", "provider", p.Name(), "confidence", fields.Confidence, "duration_ms", attempt.DurationMS)
		return outcome
	}

	return Outcome{Error: ErrAllProvidersFailed.Error(), RawText: rawText, Attempts: attempts}
}

// candidates builds the ordered provider list for a hint
func (o *Orchestrator) candidates(hint string) ([]Provider, error) {
	hint = strings.ToLower(strings.TrimSpace(hint))
	if hint == "" || hint == AutoHint {
		if len(o.order) == 0 {
			return nil, fmt.Errorf("no providers configured")
		}
		out := make([]Provider, 0, len(o.order))
		for _, name := range o.order {
			out = append(out, o.providers[name])
		}
		return out, nil
	}

	p, ok := o.providers[hint]
	if !ok {
		return nil, fmt.Errorf("unknown provider %q", hint)
	}
	return []Provider{p}, nil
}

// attempt runs one provider under its own deadline and decodes the answer.
// A panicking provider counts as a failed attempt.
func (o *Orchestrator) attempt(ctx context.Context, p Provider, ref imagesource.Ref) (fields extraction.InvoiceFields, result *ProviderResult, err error) {
	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			err = &ProviderError{Provider: p.Name(), Message: fmt.Sprintf("panic: %v", r)}
		}
	}()

	result, err = p.Recognize(ctx, ref)
	if err != nil {
		return fields, nil, err
	}
	if result == nil {
		return fields, nil, &ProviderError{Provider: p.Name(), Message: "empty result"}
	}
	if result.Provider == "" {
		result.Provider = p.Name()
	}

	fields, err = Decode(result, keyFieldsFor(p, result.Kind))
	return fields, result, err
}

// Close closes every provider
func (o *Orchestrator) Close() error {
	var errs []error
	for name, p := range o.providers {
		if err := p.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing %s: %w", name, err))
		}
	}
	return errors.Join(errs...)
}
