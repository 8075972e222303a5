// Package ingest validates an uploaded document and encodes it for the
// reasoning engine. It never interprets document content.
package ingest

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"mime"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/rotisserie/eris"
)

// MediaTypePDF is the only accepted document format.
const MediaTypePDF = "application/pdf"

// DefaultMaxBytes caps a single upload when no limit is configured.
const DefaultMaxBytes = 32 << 20

var (
	// ErrEmptyDocument is returned for zero-length input.
	ErrEmptyDocument = errors.New("document is empty")
	// ErrUnsupportedMediaType is returned when the document is not a PDF.
	ErrUnsupportedMediaType = errors.New("unsupported media type")
	// ErrDocumentTooLarge is returned when the document exceeds the configured limit.
	ErrDocumentTooLarge = errors.New("document too large")
)

var accepted = map[string]struct{}{
	MediaTypePDF: {},
}

// Payload is a document ready for transmission.
type Payload struct {
	Data       string // base64, standard encoding
	MediaType  string
	ByteLength int
	SHA256     string
}

// Ingestor validates and encodes documents.
type Ingestor struct {
	MaxBytes int
}

// New returns an Ingestor enforcing maxBytes (DefaultMaxBytes when <= 0).
func New(maxBytes int) *Ingestor {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	return &Ingestor{MaxBytes: maxBytes}
}

// Ingest checks data against the declared media type and encodes it.
// An empty or generic declared type is resolved by sniffing the bytes.
func (in *Ingestor) Ingest(data []byte, declaredMediaType string) (*Payload, error) {
	if len(data) == 0 {
		return nil, ErrEmptyDocument
	}
	if in.MaxBytes > 0 && len(data) > in.MaxBytes {
		return nil, eris.Wrapf(ErrDocumentTooLarge, "%d bytes exceeds limit of %d", len(data), in.MaxBytes)
	}

	mediaType := baseMediaType(declaredMediaType)
	if mediaType == "" || mediaType == "application/octet-stream" {
		mediaType = baseMediaType(mimetype.Detect(data).String())
	}
	if _, ok := accepted[mediaType]; !ok {
		return nil, eris.Wrapf(ErrUnsupportedMediaType, "%q", mediaType)
	}

	sum := sha256.Sum256(data)
	return &Payload{
		Data:       base64.StdEncoding.EncodeToString(data),
		MediaType:  mediaType,
		ByteLength: len(data),
		SHA256:     hex.EncodeToString(sum[:]),
	}, nil
}

func baseMediaType(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	if mt, _, err := mime.ParseMediaType(raw); err == nil {
		return strings.ToLower(mt)
	}
	return strings.ToLower(raw)
}
