package parser

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"strconv"
	"strings"
	"sync"

	"github.com/specx2/openapi-irgen/core/raw"
)

const maxRefChain = 32

// RefResolver resolves local JSON pointers and remote references against a
// decoded document. Resolved nodes are shared with the document tree and must
// be treated as read-only by callers.
type RefResolver struct {
	root      *raw.Map
	baseURL   *url.URL
	client    HTTPClient
	documents map[string]*raw.Map
	cache     map[string]ResolvedReference
	names     map[string]string
	counters  map[string]int
	mu        sync.Mutex
}

type ResolverOption func(*RefResolver)

// WithBaseURL sets the location relative remote references are resolved against.
func WithBaseURL(base *url.URL) ResolverOption {
	return func(r *RefResolver) {
		r.baseURL = base
	}
}

func WithHTTPClient(client HTTPClient) ResolverOption {
	return func(r *RefResolver) {
		if client != nil {
			r.client = client
		}
	}
}

func NewRefResolver(root *raw.Map, opts ...ResolverOption) *RefResolver {
	r := &RefResolver{
		root:      root,
		client:    NewFetchClient(FetchOptions{}),
		documents: make(map[string]*raw.Map),
		cache:     make(map[string]ResolvedReference),
		names:     make(map[string]string),
		counters:  make(map[string]int),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *RefResolver) Resolve(ref string) (ResolvedReference, error) {
	if ref == "" {
		return ResolvedReference{}, &ReferenceResolutionError{Ref: ref, Err: errors.New("empty reference")}
	}

	r.mu.Lock()
	if cached, ok := r.cache[ref]; ok {
		r.mu.Unlock()
		return cached, nil
	}
	r.mu.Unlock()

	data, location, err := r.follow(ref)
	if err != nil {
		return ResolvedReference{}, &ReferenceResolutionError{Ref: ref, Err: err}
	}

	resolved := ResolvedReference{
		ID:       r.nameFor(ref),
		Ref:      ref,
		Data:     data,
		Location: location,
	}

	r.mu.Lock()
	r.cache[ref] = resolved
	r.mu.Unlock()

	return resolved, nil
}

func (r *RefResolver) ResolveFrom(base, ref string) (ResolvedReference, error) {
	if ref == "" {
		return ResolvedReference{}, &ReferenceResolutionError{Ref: ref, Err: errors.New("empty reference")}
	}
	return r.Resolve(r.rebase(base, ref))
}

// follow dereferences ref and any chain of reference nodes it lands on. It
// returns the node and the reference it was finally found at.
func (r *RefResolver) follow(ref string) (*raw.Map, string, error) {
	seen := make(map[string]bool)
	current := ref
	for range maxRefChain {
		if seen[current] {
			return nil, "", fmt.Errorf("circular reference through %q", current)
		}
		seen[current] = true

		node, err := r.lookup(current)
		if err != nil {
			return nil, "", err
		}
		next, ok := raw.Ref(node)
		if !ok {
			return node, current, nil
		}
		current = r.rebase(current, next)
	}
	return nil, "", fmt.Errorf("reference chain longer than %d", maxRefChain)
}

// rebase rewrites next, a reference written inside the document that from
// points into, so that it can be resolved from the root document.
func (r *RefResolver) rebase(from, next string) string {
	if from == "" || strings.HasPrefix(from, "#") {
		return next
	}
	doc, _, _ := strings.Cut(from, "#")
	if strings.HasPrefix(next, "#") {
		return doc + next
	}

	target, err := url.Parse(next)
	if err != nil {
		return next
	}
	source, err := r.documentURL(doc)
	if err != nil || (!source.IsAbs() && !path.IsAbs(source.Path)) {
		return next
	}
	return source.ResolveReference(target).String()
}

func (r *RefResolver) lookup(ref string) (*raw.Map, error) {
	if strings.HasPrefix(ref, "#/") || ref == "#" {
		return resolvePointer(r.root, strings.TrimPrefix(ref, "#"))
	}
	return r.resolveRemote(ref)
}

// documentURL returns the location of the document ref points into, resolved
// against the base URL when one is set.
func (r *RefResolver) documentURL(ref string) (*url.URL, error) {
	parsed, err := url.Parse(ref)
	if err != nil {
		return nil, fmt.Errorf("invalid reference %q: %w", ref, err)
	}
	parsed.Fragment = ""
	if r.baseURL != nil && !parsed.IsAbs() {
		parsed = r.baseURL.ResolveReference(parsed)
	}
	return parsed, nil
}

func (r *RefResolver) resolveRemote(ref string) (*raw.Map, error) {
	absolute, err := r.documentURL(ref)
	if err != nil {
		return nil, err
	}
	if !absolute.IsAbs() && r.baseURL == nil && !path.IsAbs(absolute.Path) {
		return nil, fmt.Errorf("unable to resolve relative reference %q: base location unknown", ref)
	}
	_, fragment, _ := strings.Cut(ref, "#")

	key := absolute.String()
	r.mu.Lock()
	doc, ok := r.documents[key]
	r.mu.Unlock()

	if !ok {
		data, err := r.fetchResource(absolute)
		if err != nil {
			return nil, err
		}
		doc, err = raw.Decode(data)
		if err != nil {
			return nil, fmt.Errorf("failed to parse referenced document %q: %w", key, err)
		}
		r.mu.Lock()
		r.documents[key] = doc
		r.mu.Unlock()
	}

	return resolvePointer(doc, fragment)
}

func (r *RefResolver) fetchResource(u *url.URL) ([]byte, error) {
	switch u.Scheme {
	case "http", "https":
		req, err := http.NewRequest(http.MethodGet, u.String(), nil)
		if err != nil {
			return nil, err
		}
		resp, err := r.client.Do(req)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch %q: %w", u.String(), err)
		}
		defer resp.Body.Close()
		if resp.StatusCode >= 400 {
			return nil, fmt.Errorf("failed to fetch %q: status %s", u.String(), resp.Status)
		}
		return io.ReadAll(resp.Body)
	case "file", "":
		return os.ReadFile(u.Path)
	default:
		return nil, fmt.Errorf("unsupported URI scheme %q in reference %q", u.Scheme, u.String())
	}
}

func (r *RefResolver) nameFor(ref string) string {
	r.mu.Lock()
	defer r.mu.Unlock()

	if name, ok := r.names[ref]; ok {
		return name
	}

	base := deriveRefBase(ref)
	name := base
	if count := r.counters[base]; count > 0 {
		name = fmt.Sprintf("%s_%d", base, count+1)
	}
	r.counters[base]++
	r.names[ref] = name
	return name
}

func resolvePointer(doc *raw.Map, pointer string) (*raw.Map, error) {
	value, err := navigateJSONPointer(doc, pointer)
	if err != nil {
		return nil, err
	}
	node, ok := value.(*raw.Map)
	if !ok || node == nil {
		return nil, fmt.Errorf("pointer %q does not resolve to an object", "#"+pointer)
	}
	return node, nil
}

// navigateJSONPointer resolves a JSON pointer (without leading '#') within doc.
func navigateJSONPointer(doc *raw.Map, pointer string) (any, error) {
	if pointer == "" {
		return doc, nil
	}
	if !strings.HasPrefix(pointer, "/") {
		pointer = "/" + pointer
	}
	var current any = doc
	for _, rawToken := range strings.Split(pointer, "/")[1:] {
		token := strings.ReplaceAll(strings.ReplaceAll(rawToken, "~1", "/"), "~0", "~")
		if unescaped, err := url.PathUnescape(token); err == nil {
			token = unescaped
		}
		switch node := current.(type) {
		case *raw.Map:
			next, ok := raw.Lookup(node, token)
			if !ok {
				return nil, fmt.Errorf("pointer segment %q not found", token)
			}
			current = next
		case []any:
			idx, err := parseArrayIndex(token, len(node))
			if err != nil {
				return nil, err
			}
			current = node[idx]
		default:
			return nil, fmt.Errorf("invalid node encountered while resolving pointer segment %q", token)
		}
	}
	return current, nil
}

func parseArrayIndex(token string, length int) (int, error) {
	idx, err := strconv.Atoi(token)
	if err != nil {
		return 0, fmt.Errorf("invalid array index %q", token)
	}
	if idx < 0 || idx >= length {
		return 0, fmt.Errorf("array index %d out of bounds", idx)
	}
	return idx, nil
}

func deriveRefBase(ref string) string {
	if ref == "" || ref == "#" {
		return "schema"
	}
	if strings.HasPrefix(ref, "#/") {
		parts := strings.Split(ref, "/")
		return sanitizeDefinitionName(parts[len(parts)-1])
	}
	parsed, err := url.Parse(ref)
	if err != nil {
		return "schema"
	}
	fragment := parsed.Fragment
	parsed.Fragment = ""
	base := path.Base(parsed.Path)
	if idx := strings.Index(base, "."); idx >= 0 {
		base = base[:idx]
	}
	if fragment != "" {
		segments := strings.Split(fragment, "/")
		if last := segments[len(segments)-1]; last != "" {
			base = last
		}
	}
	return sanitizeDefinitionName(base)
}

func sanitizeDefinitionName(name string) string {
	name = strings.ReplaceAll(strings.ReplaceAll(name, "~1", "/"), "~0", "~")
	replacer := strings.NewReplacer("-", "_", ".", "_", " ", "_")
	sanitized := strings.Map(func(r rune) rune {
		if r == '_' || (r >= '0' && r <= '9') || (r >= 'A' && r <= 'Z') || (r >= 'a' && r <= 'z') {
			return r
		}
		return '_'
	}, replacer.Replace(name))
	sanitized = strings.Trim(sanitized, "_")
	if sanitized == "" {
		return "schema"
	}
	return sanitized
}
