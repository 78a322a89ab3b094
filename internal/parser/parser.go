package parser

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/veridoc/veridoc-mcp/pkg/types"
)

// ErrUnsupportedFormat reports a file whose extension no registered
// parser claims.
var ErrUnsupportedFormat = errors.New("unsupported document format")

// Parser extracts a token stream and structural map from one document
// format. Implementations live behind this port so a PDF or spreadsheet
// extraction service can plug in without touching the pipeline.
type Parser interface {
	// Parse reads the file and produces its token stream, page spans,
	// and table regions.
	Parse(ctx context.Context, path string) (*types.ParsedDocument, error)

	// Extensions lists the file extensions this parser handles,
	// lowercase with leading dot.
	Extensions() []string
}

// Registry dispatches files to parsers by extension.
type Registry struct {
	byExt map[string]Parser
}

// NewRegistry creates a registry with the built-in text parser
// registered.
func NewRegistry() *Registry {
	r := &Registry{byExt: make(map[string]Parser)}
	r.Register(NewTextParser())
	return r
}

// Register adds a parser under each of its extensions, replacing any
// previous claim.
func (r *Registry) Register(p Parser) {
	for _, ext := range p.Extensions() {
		r.byExt[strings.ToLower(ext)] = p
	}
}

// ForPath returns the parser responsible for the file's extension.
func (r *Registry) ForPath(path string) (Parser, error) {
	ext := strings.ToLower(filepath.Ext(path))
	if p, ok := r.byExt[ext]; ok {
		return p, nil
	}
	return nil, fmt.Errorf("%w: %q (supported: %s)",
		ErrUnsupportedFormat, ext, strings.Join(r.SupportedExtensions(), ", "))
}

// Parse resolves the parser for the path and runs it.
func (r *Registry) Parse(ctx context.Context, path string) (*types.ParsedDocument, error) {
	p, err := r.ForPath(path)
	if err != nil {
		return nil, err
	}
	return p.Parse(ctx, path)
}

// SupportedExtensions returns every registered extension, sorted.
func (r *Registry) SupportedExtensions() []string {
	exts := make([]string, 0, len(r.byExt))
	for ext := range r.byExt {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return exts
}
