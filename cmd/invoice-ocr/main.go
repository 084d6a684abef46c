package main

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"log/slog"
	"mime"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/peterbourgon/ff/v4"
	"github.com/peterbourgon/ff/v4/ffhelp"

	"github.com/zombor/invoice-ocr/internal/imagesource"
	"github.com/zombor/invoice-ocr/internal/invoice"
	"github.com/zombor/invoice-ocr/internal/scanning"
)

//go:embed VERSION.txt
var versionFile string

var version = strings.TrimSpace(versionFile)

func main() {
	// Check for version flag before parsing other flags
	for _, arg := range os.Args[1:] {
		if arg == "--version" || arg == "-version" || arg == "-v" {
			fmt.Println(version)
			os.Exit(0)
		}
	}

	fs := ff.NewFlagSet("invoice-ocr")
	var (
		port             = fs.IntLong("port", 8080, "HTTP server port")
		dbPath           = fs.StringLong("db", "invoice-ocr.db", "Database file path")
		storagePath      = fs.StringLong("storage", "./invoices", "Storage directory path")
		providerOrder    = fs.StringLong("providers", strings.Join(scanning.DefaultOrder, ","), "Provider priority order for auto mode, comma separated")
		providerTimeout  = fs.DurationLong("provider-timeout", scanning.DefaultAttemptTimeout, "Timeout for a single provider attempt")
		minConfidence    = fs.Float64Long("min-confidence", 0, "Reject results whose completeness score is below this value")
		fetchTimeout     = fs.DurationLong("fetch-timeout", 30*time.Second, "Timeout for downloading http(s) image URLs")
		vatEndpoint      = fs.StringLong("vat-endpoint", "", "VAT invoice recognition endpoint (defaults to the Baidu endpoint)")
		vatToken         = fs.StringLong("vat-token", "", "VAT invoice recognition access token (enables the vat provider)")
		layoutEndpoint   = fs.StringLong("layout-endpoint", "", "Layout parsing service URL (enables the layout provider)")
		layoutToken      = fs.StringLong("layout-token", "", "Layout parsing service token (optional)")
		geminiKey        = fs.StringLong("gemini-key", "", "Google Gemini API key (or set GEMINI_API_KEY env var)")
		geminiModel      = fs.StringLong("gemini-model", "gemini-2.5-pro", "Google Gemini model name")
		azureEndpoint    = fs.StringLong("azure-endpoint", "", "Azure Computer Vision endpoint")
		azureKey         = fs.StringLong("azure-key", "", "Azure Computer Vision key")
		ollamaURL        = fs.StringLong("ollama-url", "", "Ollama API base URL (enables the ollama provider)")
		ollamaModel      = fs.StringLong("ollama-model", "qwen2.5vl", "Ollama vision model name (e.g., qwen2.5vl, minicpm-v)")
		tesseractOn      = fs.BoolLong("tesseract", "Enable the local tesseract provider")
		tesseractBin     = fs.StringLong("tesseract-bin", "tesseract", "Path to the tesseract binary")
		tesseractLang    = fs.StringLong("tesseract-lang", "chi_sim+eng", "Tesseract language models")
		tesseractWorkers = fs.IntLong("tesseract-workers", 2, "Concurrent tesseract processes")
		s3Endpoint       = fs.StringLong("s3-endpoint", "", "S3 compatible endpoint for s3:// refs")
		s3AccessKey      = fs.StringLong("s3-access-key", "", "S3 access key")
		s3SecretKey      = fs.StringLong("s3-secret-key", "", "S3 secret key")
		s3Region         = fs.StringLong("s3-region", "", "S3 region")
		s3SSL            = fs.BoolLong("s3-ssl", "Use TLS for the S3 endpoint")
		authUser         = fs.StringLong("auth-user", "", "Basic auth username (optional)")
		authPass         = fs.StringLong("auth-pass", "", "Basic auth password (optional)")
		oneShotFile      = fs.StringLong("file", "", "Extract this file, print the outcome as JSON and exit")
		oneShotHint      = fs.StringLong("provider", scanning.AutoHint, "Provider for --file: auto or a provider name")
		logLevel         = fs.StringLong("log-level", "info", "Log level: debug, info, warn or error")
		showVersion      = fs.BoolLong("version", "Show version information")
	)

	if err := ff.Parse(fs, os.Args[1:],
		ff.WithEnvVarPrefix("INVOICE_OCR"),
	); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", ffhelp.Flags(fs))
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	// Check version flag after parsing
	if *showVersion {
		fmt.Println(version)
		os.Exit(0)
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(*logLevel)); err != nil {
		fmt.Fprintf(os.Stderr, "error: invalid log level %q\n", *logLevel)
		os.Exit(1)
	}
	// logs go to stderr so --file output stays clean JSON
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	// Initialize storage
	slog.Info("Initializing storage...")
	store, err := imagesource.NewLocalStorage(*storagePath)
	if err != nil {
		slog.Error("Failed to initialize storage", "error", err)
		os.Exit(1)
	}

	router := imagesource.NewRouter().
		Handle("http", imagesource.NewHTTP(*fetchTimeout)).
		Handle("https", imagesource.NewHTTP(*fetchTimeout)).
		Handle("file", store)
	if *s3Endpoint != "" {
		slog.Info("Initializing S3 source...", "endpoint", *s3Endpoint)
		s3, err := imagesource.NewS3(imagesource.S3Config{
			Endpoint:  *s3Endpoint,
			AccessKey: *s3AccessKey,
			SecretKey: *s3SecretKey,
			UseSSL:    *s3SSL,
			Region:    *s3Region,
		})
		if err != nil {
			slog.Error("Failed to initialize S3", "error", err)
			os.Exit(1)
		}
		router.Handle("s3", s3)
	}

	apiKey := *geminiKey
	if apiKey == "" {
		apiKey = os.Getenv("GEMINI_API_KEY")
	}

	providers, err := buildProviders(providerConfig{
		VATEndpoint:      *vatEndpoint,
		VATToken:         *vatToken,
		LayoutEndpoint:   *layoutEndpoint,
		LayoutToken:      *layoutToken,
		GeminiKey:        apiKey,
		GeminiModel:      *geminiModel,
		AzureEndpoint:    *azureEndpoint,
		AzureKey:         *azureKey,
		OllamaURL:        *ollamaURL,
		OllamaModel:      *ollamaModel,
		Tesseract:        *tesseractOn,
		TesseractBinary:  *tesseractBin,
		TesseractLang:    *tesseractLang,
		TesseractWorkers: *tesseractWorkers,
	}, router, slog.Default())
	if err != nil {
		slog.Error("Failed to initialize providers", "error", err)
		os.Exit(1)
	}

	orch := scanning.NewOrchestrator(providers,
		scanning.WithOrder(splitList(*providerOrder)...),
		scanning.WithAttemptTimeout(*providerTimeout),
		scanning.WithMinConfidence(*minConfidence),
		scanning.WithLogger(slog.Default()),
	)
	defer orch.Close()
	if len(orch.Names()) == 0 {
		slog.Warn("No providers configured; every extraction will fail")
	} else {
		slog.Info("Providers configured", "order", strings.Join(orch.Names(), ","))
	}

	if *oneShotFile != "" {
		os.Exit(extractAndClose(orch, *oneShotFile, *oneShotHint))
	}

	// Initialize database
	slog.Info("Initializing database...")
	db, err := invoice.NewBoltDB(*dbPath)
	if err != nil {
		slog.Error("Failed to initialize database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	// Initialize service and server
	service := invoice.NewService(db, orch, store)
	server := invoice.NewServer(service, invoice.BasicAuth{
		Username: *authUser,
		Password: *authPass,
	})

	addr := fmt.Sprintf(":%d", *port)
	go func() {
		if err := server.Start(addr); err != nil {
			slog.Error("Server error", "error", err)
			os.Exit(1)
		}
	}()

	slog.Info("Server started", "address", fmt.Sprintf("http://localhost%s", addr))
	if *authUser != "" || *authPass != "" {
		slog.Info("Basic auth enabled", "user", *authUser)
	}

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	slog.Info("Shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), *providerTimeout)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		slog.Error("Shutdown error", "error", err)
	}
}

// oneShotExtractor is an extractor owning its providers
type oneShotExtractor interface {
	scanning.Extractor
	Close() error
}

// extractAndClose runs extractFile and closes the providers before returning
// the exit code, as os.Exit skips deferred calls.
func extractAndClose(extractor oneShotExtractor, path, hint string) int {
	code := extractFile(extractor, path, hint)
	if err := extractor.Close(); err != nil {
		slog.Error("Failed to close providers", "error", err)
	}
	return code
}

// extractFile runs one extraction for a local file and prints the outcome.
// It returns the process exit code.
func extractFile(extractor scanning.Extractor, path, hint string) int {
	data, err := os.ReadFile(path)
	if err != nil {
		slog.Error("Failed to read file", "path", path, "error", err)
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	outcome := extractor.ExtractInvoice(ctx, imagesource.Ref{
		Data:     data,
		MimeType: mime.TypeByExtension(strings.ToLower(filepath.Ext(path))),
	}, hint)

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(outcome); err != nil {
		slog.Error("Error encoding outcome", "error", err)
		return 1
	}
	if !outcome.Success {
		return 2
	}
	return 0
}
