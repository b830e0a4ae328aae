package parser

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/pb33f/libopenapi"
	"github.com/pb33f/libopenapi/datamodel"

	"github.com/specx2/openapi-irgen/core/raw"
)

// Document is a loaded OpenAPI document: the raw ordered tree plus where it
// came from.
type Document struct {
	Source  string
	Version string
	Root    *raw.Map
	BaseURL *url.URL
}

// NewResolver returns a resolver rooted at the document. Relative remote
// references resolve against the document location.
func (d *Document) NewResolver(opts ...ResolverOption) *RefResolver {
	if d.BaseURL != nil {
		opts = append([]ResolverOption{WithBaseURL(d.BaseURL)}, opts...)
	}
	return NewRefResolver(d.Root, opts...)
}

func LoadFile(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read spec %s: %w", path, err)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	return Load(data, (&url.URL{Scheme: "file", Path: filepath.ToSlash(abs)}).String())
}

// Load decodes an OpenAPI 3.x document. specURL may be empty, a file URL or an
// http(s) URL.
func Load(data []byte, specURL string) (*Document, error) {
	oas, base, err := newDocument(data, specURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create document: %w", err)
	}

	version := oas.GetVersion()
	if !strings.HasPrefix(version, "3.") {
		return nil, &ParseError{Path: specURL, Message: fmt.Sprintf("unsupported OpenAPI version %q", version)}
	}

	root, err := raw.Decode(data)
	if err != nil {
		return nil, err
	}

	return &Document{
		Source:  specURL,
		Version: version,
		Root:    root,
		BaseURL: base,
	}, nil
}

func newDocument(spec []byte, specURL string) (libopenapi.Document, *url.URL, error) {
	if specURL == "" {
		doc, err := libopenapi.NewDocument(spec)
		return doc, nil, err
	}

	cfg := datamodel.NewDocumentConfiguration()

	u, err := url.Parse(specURL)
	if err != nil {
		doc, err := libopenapi.NewDocument(spec)
		return doc, nil, err
	}

	switch u.Scheme {
	case "", "file":
		cfg.BasePath = filepath.Dir(u.Path)
		cfg.SpecFilePath = filepath.Base(u.Path)
		cfg.AllowFileReferences = true
		if u.Scheme == "" {
			abs, err := filepath.Abs(u.Path)
			if err == nil {
				u = &url.URL{Scheme: "file", Path: filepath.ToSlash(abs)}
			}
		}
	case "http", "https":
		cfg.BaseURL = u
		cfg.AllowRemoteReferences = true
	default:
		doc, err := libopenapi.NewDocument(spec)
		return doc, nil, err
	}

	doc, err := libopenapi.NewDocumentWithConfiguration(spec, cfg)
	return doc, u, err
}
