package ir

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"go.uber.org/multierr"
)

const checkResource = "schema.json"

// CheckSchemas compiles every request-body schema of the document as a JSON
// Schema, with the component schemas available under "$defs". It returns one
// error per schema that does not compile.
func (d *Document) CheckSchemas() error {
	defs := d.definitions()

	var errs error
	check := func(where string, body *RequestBodyObject) {
		if body == nil || body.Schema == nil {
			return
		}
		if err := compileSchema(body.Schema, defs); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("%s: request body %q: %w", where, body.ID, err))
		}
	}

	for i := range d.RequestBodies {
		check("components", &d.RequestBodies[i])
	}
	for _, op := range d.Operations {
		check(op.Method+" "+op.Path, op.RequestBody)
	}
	return errs
}

func (d *Document) definitions() map[string]any {
	if len(d.Schemas) == 0 {
		return nil
	}
	defs := make(map[string]any, len(d.Schemas))
	for _, s := range d.Schemas {
		defs[s.ID] = s.Schema.JSONSchema()
	}
	return defs
}

func compileSchema(schema *Schema, defs map[string]any) error {
	doc := schema.JSONSchema()
	if len(defs) > 0 {
		doc["$defs"] = defs
	}
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to marshal schema: %w", err)
	}

	compiler := jsonschema.NewCompiler()
	compiler.Draft = jsonschema.Draft2020
	compiler.LoadURL = func(s string) (io.ReadCloser, error) {
		return nil, fmt.Errorf("external reference %q is not checked", s)
	}
	if err := compiler.AddResource(checkResource, bytes.NewReader(data)); err != nil {
		return err
	}
	_, err = compiler.Compile(checkResource)
	return err
}
