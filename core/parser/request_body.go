package parser

import (
	"fmt"

	"github.com/specx2/openapi-irgen/core/diag"
	"github.com/specx2/openapi-irgen/core/ir"
	"github.com/specx2/openapi-irgen/core/raw"
)

// RequestBodySource is either a RequestBodyRef or an InlineRequestBody.
type RequestBodySource interface {
	requestBodySource()
}

// Base, on both sources, is the location of the document the requestBody node
// was found in, as reported by ResolvedReference.Location. It is empty for the
// root document.
type RequestBodyRef struct {
	Path string
	Base string
}

type InlineRequestBody struct {
	Node *raw.Map
	Base string
}

func (RequestBodyRef) requestBodySource()    {}
func (InlineRequestBody) requestBodySource() {}

// RequestBodySourceOf classifies a raw requestBody node.
func RequestBodySourceOf(node *raw.Map) RequestBodySource {
	return RequestBodySourceAt("", node)
}

// RequestBodySourceAt classifies a raw requestBody node found at base.
func RequestBodySourceAt(base string, node *raw.Map) RequestBodySource {
	if ref, ok := raw.Ref(node); ok {
		return RequestBodyRef{Path: ref, Base: base}
	}
	return InlineRequestBody{Node: node, Base: base}
}

type RequestBodyParser struct {
	refs        ReferenceResolver
	schemas     SchemaInterpreter
	diagnostics diag.Sink
}

type RequestBodyOption func(*RequestBodyParser)

func WithDiagnostics(sink diag.Sink) RequestBodyOption {
	return func(p *RequestBodyParser) {
		if sink != nil {
			p.diagnostics = sink
		}
	}
}

func NewRequestBodyParser(refs ReferenceResolver, schemas SchemaInterpreter, opts ...RequestBodyOption) *RequestBodyParser {
	p := &RequestBodyParser{
		refs:        refs,
		schemas:     schemas,
		diagnostics: diag.Discard,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *RequestBodyParser) Parse(node *raw.Map) (ir.RequestBodyObject, error) {
	return p.ParseSource(RequestBodySourceOf(node))
}

func (p *RequestBodyParser) ParseSource(src RequestBodySource) (ir.RequestBodyObject, error) {
	id, base, data, err := p.resolveBody(src)
	if err != nil {
		return ir.RequestBodyObject{}, err
	}

	content, ok := raw.Object(data, "content")
	if !ok || content.Len() == 0 {
		return ir.RequestBodyObject{}, &MissingContentError{ID: id}
	}

	mediaTypes := raw.Keys(content)
	if len(mediaTypes) > 1 {
		diag.Warnf(p.diagnostics, id, "multiple media types not implemented yet, using %q of %q", mediaTypes[0], mediaTypes)
	}
	mediaType := mediaTypes[0]

	body := ir.RequestBodyObject{
		ID:                  id,
		Required:            raw.Bool(data, "required"),
		MediaType:           mediaType,
		IsFormData:          mediaType == FormDataType,
		IsMultipartFormData: mediaType == MultipartFormDataType,
	}
	body.Description, _ = raw.String(data, "description")

	mediaTypeObject, ok := raw.Object(content, mediaType)
	if !ok {
		if v, _ := raw.Lookup(content, mediaType); v == nil {
			return body, nil
		}
		return ir.RequestBodyObject{}, &ParseError{Path: id + "/content/" + mediaType, Message: "media type object must be a mapping"}
	}

	if body.IsFormData || body.IsMultipartFormData {
		body.Encoding, err = parseEncodings(id+"/content/"+mediaType, mediaTypeObject)
		if err != nil {
			return ir.RequestBodyObject{}, err
		}
	}

	schemaValue, ok := raw.Lookup(mediaTypeObject, "schema")
	if !ok || schemaValue == nil {
		return body, nil
	}
	schemaNode, ok := schemaValue.(*raw.Map)
	if !ok {
		return ir.RequestBodyObject{}, &ParseError{Path: id + "/content/" + mediaType + "/schema", Message: "schema must be a mapping"}
	}

	schemaID, schemaData, err := p.resolveSchema(base, schemaNode)
	if err != nil {
		return ir.RequestBodyObject{}, fmt.Errorf("request body %q: %w", id, err)
	}

	if body.IsMultipartFormData {
		binary := StripBinaryProperties(schemaData)
		schemaData = binary.Schema
		body.Files = binary.Fields
		body.AreFilesRequired = binary.FilesRequired
		applyFileContentTypes(body.Files, body.Encoding)
	}

	parsed, err := p.schemas.Interpret(schemaID, schemaData)
	if err != nil {
		return ir.RequestBodyObject{}, fmt.Errorf("request body %q: %w", id, err)
	}
	body.Schema = parsed.Schema

	return body, nil
}

// resolveBody returns the body's id, the location its node was found at and
// the node itself.
func (p *RequestBodyParser) resolveBody(src RequestBodySource) (string, string, *raw.Map, error) {
	switch s := src.(type) {
	case RequestBodyRef:
		resolved, err := p.refs.ResolveFrom(s.Base, s.Path)
		if err != nil {
			return "", "", nil, err
		}
		return resolved.ID, resolved.Location, resolved.Data, nil
	case InlineRequestBody:
		return InlineRequestBodyID, s.Base, s.Node, nil
	default:
		return "", "", nil, fmt.Errorf("unsupported request body source %T", src)
	}
}

func (p *RequestBodyParser) resolveSchema(base string, node *raw.Map) (string, *raw.Map, error) {
	ref, ok := raw.Ref(node)
	if !ok {
		return InlineSchemaID, node, nil
	}
	resolved, err := p.refs.ResolveFrom(base, ref)
	if err != nil {
		return "", nil, err
	}
	return resolved.ID, resolved.Data, nil
}
