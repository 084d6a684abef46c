package scanning

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/zombor/invoice-ocr/internal/imagesource"
)

// TesseractConfig configures the local recognition engine
type TesseractConfig struct {
	Binary  string // defaults to "tesseract"
	Lang    string // defaults to "chi_sim+eng"
	PSM     int    // page segmentation mode, defaults to 6
	Workers int    // concurrent recognitions, defaults to 1
	Runner  Runner
	Logger  *slog.Logger
}

// Tesseract recognizes text locally with the tesseract CLI
type Tesseract struct {
	cfg    TesseractConfig
	pool   *workerPool
	source imagesource.Source
}

// NewTesseract creates the local engine and its worker pool
func NewTesseract(cfg TesseractConfig, source imagesource.Source) (*Tesseract, error) {
	if cfg.Binary == "" {
		cfg.Binary = "tesseract"
	}
	if cfg.Lang == "" {
		cfg.Lang = "chi_sim+eng"
	}
	if cfg.PSM <= 0 {
		cfg.PSM = 6
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Runner == nil {
		cfg.Runner = ExecRunner{Logger: cfg.Logger}
	}

	pool, err := newWorkerPool(cfg.Workers)
	if err != nil {
		return nil, err
	}
	return &Tesseract{cfg: cfg, pool: pool, source: source}, nil
}

var _ Provider = (*Tesseract)(nil)

// Name implements Provider
func (t *Tesseract) Name() string {
	return "tesseract"
}

// Recognize implements Provider
func (t *Tesseract) Recognize(ctx context.Context, ref imagesource.Ref) (*ProviderResult, error) {
	img, err := t.source.Resolve(ctx, ref)
	if err != nil {
		return nil, err
	}

	decoded, err := decodeImage(img.Data, img.MimeType)
	if err != nil {
		return nil, &ProviderError{Provider: t.Name(), Message: "decoding image", Err: err}
	}
	pngData, err := encodePNG(preprocessForOCR(decoded))
	if err != nil {
		return nil, &ProviderError{Provider: t.Name(), Message: "preparing image", Err: err}
	}

	w, err := t.pool.acquire(ctx)
	if err != nil {
		return nil, &ProviderError{Provider: t.Name(), Message: "acquiring worker", Err: err}
	}
	defer t.pool.release(w)

	input := filepath.Join(w.dir, "input.png")
	if err := os.WriteFile(input, pngData, 0600); err != nil {
		return nil, &ProviderError{Provider: t.Name(), Message: "writing scratch image", Err: err}
	}
	defer os.Remove(input)

	// tesseract <file> stdout -l <lang> --psm <n> tsv
	args := []string{input, "stdout", "-l", t.cfg.Lang, "--psm", strconv.Itoa(t.cfg.PSM), "tsv"}
	out, errb, err := t.cfg.Runner.Run(ctx, t.cfg.Binary, args...)
	if err != nil {
		return nil, &ProviderError{Provider: t.Name(), Message: strings.TrimSpace(truncate(string(errb), 512)), Err: err}
	}

	text, conf := parseTSV(string(out))
	t.cfg.Logger.Debug("tesseract finished", "worker", w.id, "chars", len(text))

	return &ProviderResult{
		Provider:   t.Name(),
		Kind:       KindText,
		Text:       text,
		Confidence: conf,
	}, nil
}

// Close removes the worker scratch directories
func (t *Tesseract) Close() error {
	return t.pool.close()
}

// tsv columns: level page_num block_num par_num line_num word_num left top width height conf text
const (
	tsvLevel = iota
	tsvPage
	tsvBlock
	tsvPar
	tsvLine
	tsvWord
	tsvConf = 10
	tsvText = 11
)

// parseTSV rebuilds text lines from tesseract word rows and returns the mean
// word confidence rescaled to [0, 1], nil when no word carried one.
func parseTSV(tsv string) (string, *float64) {
	var (
		order []string
		lines = map[string][]string{}
		sum   float64
		n     int
	)

	for i, row := range strings.Split(tsv, "\n") {
		if i == 0 && strings.HasPrefix(row, "level") {
			continue
		}
		cols := strings.Split(strings.TrimRight(row, "\r"), "\t")
		if len(cols) < tsvText+1 || cols[tsvLevel] != "5" {
			continue
		}
		word := strings.TrimSpace(cols[tsvText])
		if word == "" {
			continue
		}

		key := strings.Join(cols[tsvPage:tsvWord], "/")
		if _, ok := lines[key]; !ok {
			order = append(order, key)
		}
		lines[key] = append(lines[key], word)

		if c, err := strconv.ParseFloat(cols[tsvConf], 64); err == nil && c >= 0 {
			sum += c
			n++
		}
	}

	text := make([]string, 0, len(order))
	for _, key := range order {
		text = append(text, strings.Join(lines[key], " "))
	}

	if n == 0 {
		return strings.Join(text, "\n"), nil
	}
	conf := sum / float64(n) / 100
	if conf > 1 {
		conf = 1
	}
	return strings.Join(text, "\n"), floatPtr(conf)
}
