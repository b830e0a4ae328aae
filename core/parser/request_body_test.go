package parser

import (
	"errors"
	"net/url"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/specx2/openapi-irgen/core/diag"
	"github.com/specx2/openapi-irgen/core/ir"
	"github.com/specx2/openapi-irgen/core/raw"
)

const uploadsSpec = `
openapi: 3.0.3
info: {title: Uploads, version: "1.0"}
paths: {}
components:
  requestBodies:
    UploadAvatar:
      description: Avatar upload
      required: true
      content:
        multipart/form-data:
          schema:
            $ref: '#/components/schemas/AvatarForm'
    Broken:
      description: no content here
  schemas:
    AvatarForm:
      type: object
      required: [file, userId]
      properties:
        userId: {type: integer}
        file: {type: string, format: binary, description: Image bytes}
`

type recordingSchemas struct {
	ids   []string
	nodes []*raw.Map
	inner *SchemaParser
}

func (r *recordingSchemas) Interpret(id string, node *raw.Map) (ir.SchemaObject, error) {
	r.ids = append(r.ids, id)
	r.nodes = append(r.nodes, node)
	return r.inner.Interpret(id, node)
}

func mustDecode(t *testing.T, src string) *raw.Map {
	t.Helper()
	node, err := raw.Decode([]byte(src))
	require.NoError(t, err)
	return node
}

func newTestParser(t *testing.T, spec string, opts ...RequestBodyOption) (*RequestBodyParser, *recordingSchemas, *raw.Map) {
	t.Helper()
	root := mustDecode(t, spec)
	schemas := &recordingSchemas{inner: NewSchemaParser()}
	return NewRequestBodyParser(NewRefResolver(root), schemas, opts...), schemas, root
}

func TestRequestBodyMissingContent(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "no content", body: `{description: nothing}`},
		{name: "empty content", body: `{content: {}}`},
		{name: "content not a mapping", body: `{content: [application/json]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, schemas, _ := newTestParser(t, uploadsSpec)

			_, err := p.Parse(mustDecode(t, tt.body))

			var missing *MissingContentError
			require.ErrorAs(t, err, &missing)
			assert.Equal(t, InlineRequestBodyID, missing.ID)
			assert.Contains(t, err.Error(), `"<inline+RequestBodyObject>"`)
			assert.Empty(t, schemas.ids)
		})
	}
}

func TestRequestBodyMissingContentNamesResolvedID(t *testing.T) {
	p, _, _ := newTestParser(t, uploadsSpec)

	_, err := p.Parse(mustDecode(t, `$ref: '#/components/requestBodies/Broken'`))

	var missing *MissingContentError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, "Broken", missing.ID)
}

func TestRequestBodyMediaTypeFlags(t *testing.T) {
	tests := []struct {
		mediaType     string
		wantForm      bool
		wantMultipart bool
	}{
		{mediaType: "application/json"},
		{mediaType: "application/x-www-form-urlencoded", wantForm: true},
		{mediaType: "multipart/form-data", wantMultipart: true},
		{mediaType: "multipart/form-data; boundary=x"},
		{mediaType: "text/plain"},
	}

	for _, tt := range tests {
		t.Run(tt.mediaType, func(t *testing.T) {
			p, _, _ := newTestParser(t, uploadsSpec)
			node := raw.NewMap()
			content := raw.NewMap()
			content.Set(tt.mediaType, mustDecode(t, `{schema: {type: object, properties: {name: {type: string}}}}`))
			node.Set("content", content)

			body, err := p.Parse(node)
			require.NoError(t, err)

			assert.Equal(t, tt.mediaType, body.MediaType)
			assert.Equal(t, tt.wantForm, body.IsFormData)
			assert.Equal(t, tt.wantMultipart, body.IsMultipartFormData)
			assert.False(t, body.AreFilesRequired)
			assert.False(t, body.Required)
			assert.Equal(t, InlineRequestBodyID, body.ID)
		})
	}
}

func TestRequestBodyInlineFields(t *testing.T) {
	p, schemas, _ := newTestParser(t, uploadsSpec)

	body, err := p.Parse(mustDecode(t, `
description: Create a user
required: true
content:
  application/json:
    schema:
      type: object
      required: [name]
      properties:
        name: {type: string}
`))
	require.NoError(t, err)

	assert.Equal(t, "Create a user", body.Description)
	assert.True(t, body.Required)
	assert.Equal(t, []string{InlineSchemaID}, schemas.ids)
	want := &ir.Schema{
		Type:       ir.TypeObject,
		Required:   []string{"name"},
		Properties: []ir.Property{{Name: "name", Schema: &ir.Schema{Type: ir.TypeString}}},
	}
	if diff := cmp.Diff(want, body.Schema); diff != "" {
		t.Fatalf("unexpected schema (-want +got):\n%s", diff)
	}
}

func TestRequestBodyMultipartStripsRequiredBinary(t *testing.T) {
	p, _, _ := newTestParser(t, uploadsSpec)
	node := mustDecode(t, `
content:
  multipart/form-data:
    schema:
      type: object
      required: [file, name]
      properties:
        name: {type: string}
        file: {type: string, format: binary}
`)
	before := raw.Clone(node)

	body, err := p.Parse(node)
	require.NoError(t, err)

	assert.True(t, body.IsMultipartFormData)
	assert.True(t, body.AreFilesRequired)
	_, hasFile := body.Schema.Property("file")
	assert.False(t, hasFile)
	assert.False(t, body.Schema.IsRequired("file"))
	assert.Equal(t, []string{"name"}, body.Schema.Required)
	assert.Equal(t, []ir.FileField{{Name: "file", Required: true}}, body.Files)
	assert.True(t, raw.Equal(before, node), "input node must not be modified")
}

func TestRequestBodyMultipartOptionalBinary(t *testing.T) {
	p, _, _ := newTestParser(t, uploadsSpec)

	body, err := p.Parse(mustDecode(t, `
content:
  multipart/form-data:
    schema:
      type: object
      required: [name]
      properties:
        name: {type: string}
        attachment: {type: string, format: binary}
`))
	require.NoError(t, err)

	assert.False(t, body.AreFilesRequired)
	assert.Equal(t, []ir.FileField{{Name: "attachment"}}, body.Files)
	assert.Len(t, body.Schema.Properties, 1)
}

func TestRequestBodyMultipartWithoutBinaries(t *testing.T) {
	const schemaSrc = `
type: object
required: [name, data]
properties:
  name: {type: string}
  data: {type: string, format: byte}
  blob: {type: object, format: binary}
`
	p, _, _ := newTestParser(t, uploadsSpec)
	node := raw.NewMap()
	content := raw.NewMap()
	mediaType := raw.NewMap()
	mediaType.Set("schema", mustDecode(t, schemaSrc))
	content.Set(MultipartFormDataType, mediaType)
	node.Set("content", content)

	body, err := p.Parse(node)
	require.NoError(t, err)

	unchanged, err := NewSchemaParser().Interpret(InlineSchemaID, mustDecode(t, schemaSrc))
	require.NoError(t, err)

	assert.False(t, body.AreFilesRequired)
	assert.Empty(t, body.Files)
	if diff := cmp.Diff(unchanged.Schema, body.Schema); diff != "" {
		t.Fatalf("schema changed (-want +got):\n%s", diff)
	}
}

func TestRequestBodyStripsOnlyForMultipart(t *testing.T) {
	p, _, _ := newTestParser(t, uploadsSpec)

	body, err := p.Parse(mustDecode(t, `
content:
  application/x-www-form-urlencoded:
    schema:
      type: object
      required: [file]
      properties:
        file: {type: string, format: binary}
`))
	require.NoError(t, err)

	_, hasFile := body.Schema.Property("file")
	assert.True(t, hasFile)
	assert.Equal(t, []string{"file"}, body.Schema.Required)
	assert.False(t, body.AreFilesRequired)
}

func TestRequestBodyMultipleMediaTypes(t *testing.T) {
	var collector diag.Collector
	p, _, _ := newTestParser(t, uploadsSpec, WithDiagnostics(collector.Sink()))

	body, err := p.Parse(mustDecode(t, `
content:
  application/json:
    schema: {type: object}
  application/xml:
    schema: {type: string}
`))
	require.NoError(t, err)

	assert.Equal(t, "application/json", body.MediaType)
	assert.Equal(t, ir.TypeObject, body.Schema.Type)
	require.Equal(t, 1, collector.Len())
	d := collector.Diagnostics()[0]
	assert.Equal(t, diag.Warning, d.Severity)
	assert.Equal(t, InlineRequestBodyID, d.Subject)
	assert.Contains(t, d.Message, "multiple media types")

	reordered, err := p.Parse(mustDecode(t, `
content:
  application/xml:
    schema: {type: string}
  application/json:
    schema: {type: object}
`))
	require.NoError(t, err)
	assert.Equal(t, "application/xml", reordered.MediaType)
	assert.Equal(t, ir.TypeString, reordered.Schema.Type)
}

func TestRequestBodyReferences(t *testing.T) {
	p, schemas, root := newTestParser(t, uploadsSpec)

	body, err := p.Parse(mustDecode(t, `$ref: '#/components/requestBodies/UploadAvatar'`))
	require.NoError(t, err)

	assert.Equal(t, "UploadAvatar", body.ID)
	assert.Equal(t, "Avatar upload", body.Description)
	assert.True(t, body.Required)
	assert.True(t, body.IsMultipartFormData)
	assert.True(t, body.AreFilesRequired)
	assert.Equal(t, []ir.FileField{{Name: "file", Required: true, Description: "Image bytes"}}, body.Files)
	assert.Equal(t, []string{"AvatarForm"}, schemas.ids)
	assert.Equal(t, []string{"userId"}, body.Schema.Required)
	assert.Len(t, body.Schema.Properties, 1)

	// the stripped copy is what the schema interpreter sees
	props, _ := raw.Object(schemas.nodes[0], "properties")
	assert.Equal(t, []string{"userId"}, raw.Keys(props))

	// the component itself keeps the upload field
	components, _ := raw.Object(root, "components")
	all, _ := raw.Object(components, "schemas")
	form, _ := raw.Object(all, "AvatarForm")
	formProps, _ := raw.Object(form, "properties")
	assert.Equal(t, []string{"userId", "file"}, raw.Keys(formProps))
}

func TestRequestBodyIsIdempotent(t *testing.T) {
	p, _, _ := newTestParser(t, uploadsSpec)
	inline := mustDecode(t, `
content:
  multipart/form-data:
    schema:
      type: object
      required: [file]
      properties:
        file: {type: string, format: binary}
        note: {type: string}
`)
	ref := mustDecode(t, `$ref: '#/components/requestBodies/UploadAvatar'`)

	for _, node := range []*raw.Map{inline, ref} {
		first, err := p.Parse(node)
		require.NoError(t, err)
		second, err := p.Parse(node)
		require.NoError(t, err)
		if diff := cmp.Diff(first, second); diff != "" {
			t.Fatalf("second interpretation differs (-first +second):\n%s", diff)
		}
	}
}

func TestRequestBodyWithoutSchema(t *testing.T) {
	p, schemas, _ := newTestParser(t, uploadsSpec)

	body, err := p.Parse(mustDecode(t, `
content:
  application/octet-stream: {}
`))
	require.NoError(t, err)
	assert.Nil(t, body.Schema)
	assert.Equal(t, "application/octet-stream", body.MediaType)
	assert.Empty(t, schemas.ids)

	body, err = p.Parse(mustDecode(t, `
content:
  application/octet-stream:
`))
	require.NoError(t, err)
	assert.Nil(t, body.Schema)
}

func TestRequestBodyMalformedMediaType(t *testing.T) {
	p, _, _ := newTestParser(t, uploadsSpec)

	_, err := p.Parse(mustDecode(t, `
content:
  application/json: not-a-mapping
`))
	var perr *ParseError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, InlineRequestBodyID+"/content/application/json", perr.Path)

	_, err = p.Parse(mustDecode(t, `
content:
  application/json:
    schema: [1, 2]
`))
	require.ErrorAs(t, err, &perr)
}

func TestRequestBodyReferenceErrorsPropagate(t *testing.T) {
	p, _, _ := newTestParser(t, uploadsSpec)

	_, err := p.Parse(mustDecode(t, `$ref: '#/components/requestBodies/Nope'`))
	var rerr *ReferenceResolutionError
	require.ErrorAs(t, err, &rerr)
	assert.Equal(t, "#/components/requestBodies/Nope", rerr.Ref)

	_, err = p.Parse(mustDecode(t, `
content:
  application/json:
    schema: {$ref: '#/components/schemas/Nope'}
`))
	require.ErrorAs(t, err, &rerr)
	assert.Contains(t, err.Error(), InlineRequestBodyID)
}

type failingSchemas struct{}

var errSchema = errors.New("schema boom")

func (failingSchemas) Interpret(string, *raw.Map) (ir.SchemaObject, error) {
	return ir.SchemaObject{}, errSchema
}

func TestRequestBodySchemaErrorsPropagate(t *testing.T) {
	root := mustDecode(t, uploadsSpec)
	p := NewRequestBodyParser(NewRefResolver(root), failingSchemas{})

	_, err := p.Parse(mustDecode(t, `{content: {application/json: {schema: {type: object}}}}`))
	require.ErrorIs(t, err, errSchema)
}

func TestRequestBodySourceOf(t *testing.T) {
	assert.Equal(t, RequestBodyRef{Path: "#/components/requestBodies/X"},
		RequestBodySourceOf(mustDecode(t, `$ref: '#/components/requestBodies/X'`)))

	node := mustDecode(t, `{content: {}}`)
	assert.Equal(t, InlineRequestBody{Node: node}, RequestBodySourceOf(node))
	assert.Equal(t, InlineRequestBody{Node: node, Base: "ops.yaml#/Upload"}, RequestBodySourceAt("ops.yaml#/Upload", node))
}

func TestRequestBodyInReferencedDocument(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "forms.yaml"), []byte(`
Upload:
  content:
    multipart/form-data:
      schema: {$ref: '#/Form'}
Form:
  type: object
  properties:
    scan: {type: string, format: binary}
`), 0o644))
	base := &url.URL{Scheme: "file", Path: filepath.ToSlash(filepath.Join(dir, "openapi.yaml"))}
	p := NewRequestBodyParser(NewRefResolver(mustDecode(t, uploadsSpec), WithBaseURL(base)), NewSchemaParser())

	body, err := p.Parse(mustDecode(t, `$ref: 'forms.yaml#/Upload'`))
	require.NoError(t, err)
	assert.Equal(t, "Upload", body.ID)
	assert.Equal(t, []ir.FileField{{Name: "scan"}}, body.Files)

	inline := mustDecode(t, `{content: {multipart/form-data: {schema: {$ref: '#/Form'}}}}`)
	body, err = p.ParseSource(RequestBodySourceAt("forms.yaml#/Inline", inline))
	require.NoError(t, err)
	assert.Equal(t, InlineRequestBodyID, body.ID)
	assert.Equal(t, []ir.FileField{{Name: "scan"}}, body.Files)

	// the same inline body in the root document has no Form to point at
	_, err = p.Parse(inline)
	var rerr *ReferenceResolutionError
	require.ErrorAs(t, err, &rerr)
	assert.Equal(t, "#/Form", rerr.Ref)
}

func TestRequestBodyEncoding(t *testing.T) {
	p, _, _ := newTestParser(t, uploadsSpec)

	body, err := p.Parse(mustDecode(t, `
content:
  multipart/form-data:
    schema:
      type: object
      properties:
        avatar: {type: string, format: binary}
        tags: {type: array, items: {type: string}}
    encoding:
      avatar:
        contentType: image/png, image/jpeg
      tags:
        style: form
        explode: false
        allowReserved: true
`))
	require.NoError(t, err)

	explode := false
	assert.Equal(t, map[string]ir.Encoding{
		"avatar": {ContentType: "image/png, image/jpeg"},
		"tags":   {Style: "form", Explode: &explode, AllowReserved: true},
	}, body.Encoding)
	assert.Equal(t, []ir.FileField{{Name: "avatar", ContentType: "image/png, image/jpeg"}}, body.Files)
}

func TestRequestBodyEncodingIgnoredForJSON(t *testing.T) {
	p, _, _ := newTestParser(t, uploadsSpec)

	body, err := p.Parse(mustDecode(t, `
content:
  application/json:
    schema: {type: object}
    encoding: not-read
`))
	require.NoError(t, err)
	assert.Nil(t, body.Encoding)
}

func TestRequestBodyMalformedEncoding(t *testing.T) {
	tests := []struct {
		name     string
		encoding string
		path     string
	}{
		{name: "not a mapping", encoding: `[avatar]`, path: "<inline+RequestBodyObject>/content/multipart/form-data/encoding"},
		{name: "entry not a mapping", encoding: `{avatar: image/png}`, path: "<inline+RequestBodyObject>/content/multipart/form-data/encoding/avatar"},
		{name: "explode not a boolean", encoding: `{avatar: {explode: sometimes}}`, path: "<inline+RequestBodyObject>/content/multipart/form-data/encoding/avatar"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, _, _ := newTestParser(t, uploadsSpec)
			_, err := p.Parse(mustDecode(t, `
content:
  multipart/form-data:
    schema: {type: object}
    encoding: `+tt.encoding+`
`))
			var perr *ParseError
			require.ErrorAs(t, err, &perr)
			assert.Equal(t, tt.path, perr.Path)
		})
	}
}
