package extract

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/cloudwego/eino-ext/components/document/loader/file"
	"github.com/cloudwego/eino/components/document"
	"github.com/cloudwego/eino/components/document/parser"
	"github.com/cloudwego/eino/schema"
	"go.uber.org/zap"

	"docchat/internal/metrics"
)

// Kind is the extraction strategy chosen from a file extension.
type Kind string

const (
	KindPDF     Kind = "pdf"
	KindText    Kind = "text"
	KindUnknown Kind = "unknown"
)

var textExtensions = map[string]bool{
	".txt": true,
	".md":  true,
	".py":  true,
	".csv": true,
}

// KindOf classifies a path by its lower-cased extension.
func KindOf(path string) Kind {
	ext := strings.ToLower(filepath.Ext(path))
	switch {
	case ext == ".pdf":
		return KindPDF
	case textExtensions[ext]:
		return KindText
	default:
		return KindUnknown
	}
}

// Supported reports whether a path has an extension the extractor reads.
func Supported(path string) bool {
	return KindOf(path) != KindUnknown
}

// Extractor turns stored files into plain text. It never fails: anything that
// cannot be read yields an empty string and a warning.
type Extractor struct {
	loader *file.FileLoader
	logger *zap.Logger
}

// New wires the eino file loader to the per-kind parsers.
func New(ctx context.Context, logger *zap.Logger) (*Extractor, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	loader, err := file.NewFileLoader(ctx, &file.FileLoaderConfig{
		UseNameAsID: true,
		Parser: &kindParser{
			pdf:  &pdfParser{},
			text: parser.TextParser{},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("init file loader: %w", err)
	}
	return &Extractor{loader: loader, logger: logger}, nil
}

// Extract returns the plain text of the file at path.
func (e *Extractor) Extract(ctx context.Context, path string) string {
	kind := KindOf(path)
	if kind == KindUnknown {
		return ""
	}
	docs, err := e.loader.Load(ctx, document.Source{URI: path})
	if err != nil {
		e.fail(kind, path, err)
		return ""
	}
	var builder strings.Builder
	for _, doc := range docs {
		if doc == nil {
			continue
		}
		builder.WriteString(doc.Content)
	}
	text := builder.String()
	if kind == KindText && !utf8.ValidString(text) {
		e.fail(kind, path, fmt.Errorf("content is not valid utf-8"))
		return ""
	}
	return text
}

func (e *Extractor) fail(kind Kind, path string, err error) {
	metrics.ObserveExtractionFailure(string(kind))
	e.logger.Warn("document extraction failed",
		zap.String("path", path),
		zap.String("kind", string(kind)),
		zap.Error(err),
	)
}

// kindParser routes to a parser by the extension of the source URI.
type kindParser struct {
	pdf  parser.Parser
	text parser.Parser
}

func (p *kindParser) Parse(ctx context.Context, reader io.Reader, opts ...parser.Option) ([]*schema.Document, error) {
	options := parser.GetCommonOptions(&parser.Options{}, opts...)
	switch KindOf(options.URI) {
	case KindPDF:
		return p.pdf.Parse(ctx, reader, opts...)
	case KindText:
		return p.text.Parse(ctx, reader, opts...)
	default:
		return nil, nil
	}
}
