package parser

import (
	"fmt"
	"strings"

	"go.uber.org/multierr"

	"github.com/specx2/openapi-irgen/core/diag"
	"github.com/specx2/openapi-irgen/core/ir"
	"github.com/specx2/openapi-irgen/core/raw"
)

var operationMethods = []string{"get", "put", "post", "delete", "options", "head", "patch", "trace"}

// DocumentParser walks a loaded document and interprets its component schemas,
// component request bodies and the request bodies of every operation. Request
// bodies are processed one at a time.
type DocumentParser struct {
	doc         *Document
	refs        ReferenceResolver
	schemas     SchemaInterpreter
	bodies      *RequestBodyParser
	diagnostics diag.Sink

	// parsed holds referenced request bodies already interpreted by Parse.
	parsed map[RequestBodyRef]parsedBody
}

type parsedBody struct {
	body ir.RequestBodyObject
	err  error
}

type DocumentOption func(*DocumentParser)

func WithDocumentDiagnostics(sink diag.Sink) DocumentOption {
	return func(p *DocumentParser) {
		if sink != nil {
			p.diagnostics = sink
		}
	}
}

// WithReferenceResolver replaces the resolver built from the document.
func WithReferenceResolver(refs ReferenceResolver) DocumentOption {
	return func(p *DocumentParser) {
		if refs != nil {
			p.refs = refs
		}
	}
}

func WithSchemaInterpreter(schemas SchemaInterpreter) DocumentOption {
	return func(p *DocumentParser) {
		if schemas != nil {
			p.schemas = schemas
		}
	}
}

func NewDocumentParser(doc *Document, opts ...DocumentOption) *DocumentParser {
	p := &DocumentParser{
		doc:         doc,
		diagnostics: diag.Discard,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.refs == nil {
		p.refs = doc.NewResolver()
	}
	if p.schemas == nil {
		p.schemas = NewSchemaParser()
	}
	p.bodies = NewRequestBodyParser(p.refs, p.schemas, WithDiagnostics(p.diagnostics))
	return p
}

// Parse returns the interpreted document. A request body that cannot be
// interpreted is left out and its error is combined into the returned error;
// the document is returned even then. A referenced request body is
// interpreted once per Parse, however many operations point at it.
func (p *DocumentParser) Parse() (*ir.Document, error) {
	p.parsed = make(map[RequestBodyRef]parsedBody)
	root := p.doc.Root
	out := &ir.Document{
		Source:         p.doc.Source,
		OpenAPIVersion: p.doc.Version,
	}
	if info, ok := raw.Object(root, "info"); ok {
		out.Title, _ = raw.String(info, "title")
		out.Version, _ = raw.String(info, "version")
	}

	var errs error
	components, _ := raw.Object(root, "components")

	if schemas, ok := raw.Object(components, "schemas"); ok {
		for name, value := range schemas.FromOldest() {
			node, ok := value.(*raw.Map)
			if !ok {
				errs = multierr.Append(errs, &ParseError{Path: "#/components/schemas/" + name, Message: "schema must be a mapping"})
				continue
			}
			parsed, err := p.schemas.Interpret(name, node)
			if err != nil {
				errs = multierr.Append(errs, fmt.Errorf("component schema %q: %w", name, err))
				continue
			}
			out.Schemas = append(out.Schemas, parsed)
		}
	}

	if bodies, ok := raw.Object(components, "requestBodies"); ok {
		for _, name := range raw.Keys(bodies) {
			body, err := p.parseBody(RequestBodyRef{Path: "#/components/requestBodies/" + escapePointerToken(name)})
			if err != nil {
				errs = multierr.Append(errs, err)
				continue
			}
			out.RequestBodies = append(out.RequestBodies, body)
		}
	}

	paths, _ := raw.Object(root, "paths")
	for _, path := range raw.Keys(paths) {
		value, _ := paths.Get(path)
		item, base, err := p.resolvePathItem(path, value)
		if err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		for _, method := range operationMethods {
			op, ok := raw.Object(item, method)
			if !ok {
				continue
			}
			operation, err := p.parseOperation(base, path, method, op)
			if err != nil {
				errs = multierr.Append(errs, fmt.Errorf("%s %s: %w", method, path, err))
			}
			out.Operations = append(out.Operations, operation)
		}
	}

	return out, errs
}

// parseOperation interprets op, found in the document at base.
func (p *DocumentParser) parseOperation(base, path, method string, op *raw.Map) (ir.Operation, error) {
	operation := ir.Operation{
		Path:       path,
		Method:     method,
		Deprecated: raw.Bool(op, "deprecated"),
	}
	operation.OperationID, _ = raw.String(op, "operationId")
	operation.Summary, _ = raw.String(op, "summary")
	if tags, ok := raw.List(op, "tags"); ok {
		if names, err := asStringList(tags); err == nil {
			operation.Tags = names
		}
	}

	value, ok := raw.Lookup(op, "requestBody")
	if !ok {
		return operation, nil
	}
	node, _ := value.(*raw.Map)
	body, err := p.parseBody(RequestBodySourceAt(base, node))
	if err != nil {
		return operation, err
	}
	operation.RequestBody = &body
	return operation, nil
}

func (p *DocumentParser) parseBody(src RequestBodySource) (ir.RequestBodyObject, error) {
	ref, ok := src.(RequestBodyRef)
	if !ok {
		return p.bodies.ParseSource(src)
	}
	if cached, ok := p.parsed[ref]; ok {
		return cached.body, cached.err
	}
	body, err := p.bodies.ParseSource(ref)
	p.parsed[ref] = parsedBody{body: body, err: err}
	return body, err
}

// resolvePathItem returns the path item and the location it was found at.
func (p *DocumentParser) resolvePathItem(path string, value any) (*raw.Map, string, error) {
	item, ok := value.(*raw.Map)
	if !ok {
		return nil, "", &ParseError{Path: "#/paths/" + escapePointerToken(path), Message: "path item must be a mapping"}
	}
	ref, isRef := raw.Ref(item)
	if !isRef {
		return item, "", nil
	}
	resolved, err := p.refs.Resolve(ref)
	if err != nil {
		return nil, "", fmt.Errorf("path %s: %w", path, err)
	}
	return resolved.Data, resolved.Location, nil
}

var pointerEscaper = strings.NewReplacer("~", "~0", "/", "~1")

func escapePointerToken(token string) string {
	return pointerEscaper.Replace(token)
}
