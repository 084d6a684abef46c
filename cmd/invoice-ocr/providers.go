package main

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/zombor/invoice-ocr/internal/imagesource"
	"github.com/zombor/invoice-ocr/internal/scanning"
)

// providerConfig holds the per-backend settings. A backend is enabled when
// its credentials or endpoint are present.
type providerConfig struct {
	VATEndpoint      string
	VATToken         string
	LayoutEndpoint   string
	LayoutToken      string
	GeminiKey        string
	GeminiModel      string
	AzureEndpoint    string
	AzureKey         string
	OllamaURL        string
	OllamaModel      string
	Tesseract        bool
	TesseractBinary  string
	TesseractLang    string
	TesseractWorkers int
}

// buildProviders creates every enabled provider. On error the providers
// created so far are closed.
func buildProviders(cfg providerConfig, source imagesource.Source, logger *slog.Logger) (providers []scanning.Provider, err error) {
	defer func() {
		if err != nil {
			for _, p := range providers {
				p.Close()
			}
			providers = nil
		}
	}()

	add := func(p scanning.Provider, err error) error {
		if err != nil {
			return err
		}
		logger.Info("Provider enabled", "provider", p.Name())
		providers = append(providers, p)
		return nil
	}

	if cfg.VATToken != "" {
		if err := add(scanning.NewVATInvoice(cfg.VATEndpoint, cfg.VATToken, source)); err != nil {
			return providers, fmt.Errorf("vat: %w", err)
		}
	}
	if cfg.LayoutEndpoint != "" {
		if err := add(scanning.NewLayout(cfg.LayoutEndpoint, cfg.LayoutToken, source)); err != nil {
			return providers, fmt.Errorf("layout: %w", err)
		}
	}
	if cfg.GeminiKey != "" {
		if err := add(scanning.NewGemini(cfg.GeminiKey, cfg.GeminiModel, source)); err != nil {
			return providers, fmt.Errorf("gemini: %w", err)
		}
	}
	if cfg.AzureEndpoint != "" || cfg.AzureKey != "" {
		if err := add(scanning.NewAzure(cfg.AzureEndpoint, cfg.AzureKey, source)); err != nil {
			return providers, fmt.Errorf("azure: %w", err)
		}
	}
	if cfg.OllamaURL != "" {
		if err := add(scanning.NewOllama(cfg.OllamaURL, cfg.OllamaModel, source)); err != nil {
			return providers, fmt.Errorf("ollama: %w", err)
		}
	}
	if cfg.Tesseract {
		err := add(scanning.NewTesseract(scanning.TesseractConfig{
			Binary:  cfg.TesseractBinary,
			Lang:    cfg.TesseractLang,
			Workers: cfg.TesseractWorkers,
			Logger:  logger,
		}, source))
		if err != nil {
			return providers, fmt.Errorf("tesseract: %w", err)
		}
	}
	return providers, nil
}

// splitList splits a comma separated flag value, dropping blanks
func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.ToLower(strings.TrimSpace(part)); part != "" {
			out = append(out, part)
		}
	}
	return out
}
