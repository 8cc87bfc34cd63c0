// Package extract converts downloaded binary payloads into model-ready
// representations: images become re-encoded JPEG byte buffers, PDFs become
// concatenated plain text. It never touches persistence.
package extract

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	"os"
	"strings"

	// Photo attachments arrive as JPEG; PNG shows up when users send
	// images as documents.
	_ "image/png"

	"github.com/ledongthuc/pdf"

	"github.com/tbourn/go-telegram-ai-bot/internal/services"
)

// jpegQuality matches the re-encode quality used elsewhere in the pipeline.
const jpegQuality = 90

// Extractor implements the content conversions. Stateless and safe for
// concurrent use.
type Extractor struct{}

// New returns a ready Extractor.
func New() *Extractor { return &Extractor{} }

// ImageJPEG reads the image at path, decodes it, and re-encodes it as a
// JPEG byte buffer suitable for inline upload to the generation API.
// Decode failures are reported as services.ErrExtraction.
func (Extractor) ImageJPEG(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: open image: %v", services.ErrExtraction, err)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("%w: decode image: %v", services.ErrExtraction, err)
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return nil, fmt.Errorf("%w: encode jpeg: %v", services.ErrExtraction, err)
	}
	return buf.Bytes(), nil
}

// PDFText returns the concatenation of every page's extractable text in page
// order. Pages that yield no text contribute nothing; that includes scanned
// pages and pages whose fonts defeat extraction. Only a file that cannot be
// opened or parsed at all is an error (services.ErrExtraction).
//
// An empty return with a nil error means "parseable PDF, no text" — the
// caller decides what to tell the user.
func (Extractor) PDFText(path string) (string, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("%w: open pdf: %v", services.ErrExtraction, err)
	}
	defer f.Close()

	var sb strings.Builder
	for i := 1; i <= r.NumPage(); i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			// A single stubborn page is not fatal to the document.
			continue
		}
		sb.WriteString(text)
	}
	return sb.String(), nil
}
