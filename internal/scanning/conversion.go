package scanning

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"  // Register GIF decoder
	_ "image/jpeg" // Register JPEG decoder
	"strings"

	"github.com/disintegration/imaging"
	"github.com/gen2brain/go-fitz"
	"github.com/gen2brain/heic"
)

// decodeImage decodes an upload into an image. PDFs are reduced to their first page.
func decodeImage(data []byte, mimeType string) (image.Image, error) {
	switch {
	case mimeType == "application/pdf" || isPDFFormat(data):
		return pdfFirstPage(data)
	case isHEICFormat(data) || isHEICMimeType(mimeType):
		// Go's standard image package doesn't support HEIC
		img, err := heic.Decode(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("decoding HEIC/HEIF image: %w", err)
		}
		return img, nil
	}

	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		if errors.Is(err, image.ErrFormat) {
			return nil, fmt.Errorf("unsupported image format. Supported formats: JPEG, PNG, GIF, HEIC, HEIF, PDF. Error: %w", err)
		}
		return nil, fmt.Errorf("decoding image: %w", err)
	}
	return img, nil
}

// pdfFirstPage renders the first page of a PDF
func pdfFirstPage(data []byte) (image.Image, error) {
	doc, err := fitz.NewFromMemory(data)
	if err != nil {
		return nil, fmt.Errorf("opening PDF: %w", err)
	}
	defer doc.Close()

	img, err := doc.Image(0)
	if err != nil {
		return nil, fmt.Errorf("rendering PDF page: %w", err)
	}
	return img, nil
}

func encodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.PNG); err != nil {
		return nil, fmt.Errorf("encoding PNG: %w", err)
	}
	return buf.Bytes(), nil
}

// preprocessForOCR boosts text contrast for the local engine
func preprocessForOCR(img image.Image) image.Image {
	out := imaging.Grayscale(img)
	out = imaging.AdjustContrast(out, 30)
	return imaging.Sharpen(out, 1.5)
}

func isPDFFormat(data []byte) bool {
	return bytes.HasPrefix(data, []byte("%PDF-"))
}

// isHEICFormat checks for an ftyp box with a HEIC-related brand at offset 4
func isHEICFormat(data []byte) bool {
	if len(data) < 12 || string(data[4:8]) != "ftyp" {
		return false
	}
	switch string(data[8:12]) {
	case "heic", "heif", "mif1", "msf1":
		return true
	}
	return false
}

func isHEICMimeType(mimeType string) bool {
	mimeType = strings.ToLower(strings.TrimSpace(mimeType))
	return strings.Contains(mimeType, "heic") || strings.Contains(mimeType, "heif")
}

// prepareImageData returns PNG bytes for anything that is not already a PNG.
// The returned MIME type is always image/png.
func prepareImageData(data []byte, contentType string) ([]byte, string, error) {
	mimeType := strings.ToLower(strings.TrimSpace(contentType))
	if mimeType == "image/png" && !isHEICFormat(data) {
		return data, "image/png", nil
	}

	img, err := decodeImage(data, mimeType)
	if err != nil {
		return nil, "", fmt.Errorf("converting image to PNG: %w", err)
	}
	out, err := encodePNG(img)
	if err != nil {
		return nil, "", err
	}
	return out, "image/png", nil
}
