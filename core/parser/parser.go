package parser

import (
	"fmt"

	"github.com/specx2/openapi-irgen/core/ir"
	"github.com/specx2/openapi-irgen/core/raw"
)

// ReferenceResolver dereferences "$ref" paths. The same path must map to the
// same ResolvedReference for the lifetime of the resolver.
type ReferenceResolver interface {
	Resolve(ref string) (ResolvedReference, error)
	// ResolveFrom resolves ref as written inside the node found at base, the
	// Location of an earlier ResolvedReference. An empty base is the root
	// document.
	ResolveFrom(base, ref string) (ResolvedReference, error)
}

// SchemaInterpreter converts a raw Schema Object into the IR.
type SchemaInterpreter interface {
	Interpret(id string, node *raw.Map) (ir.SchemaObject, error)
}

type ResolvedReference struct {
	// ID is a stable, readable name for the target, e.g. "UserCreate".
	ID   string
	Ref  string
	Data *raw.Map
	// Location is where Data was found once reference chains were followed.
	Location string
}

type ParseError struct {
	Message string
	Path    string
}

func (e ParseError) Error() string {
	if e.Path != "" {
		return e.Path + ": " + e.Message
	}
	return e.Message
}

type MissingContentError struct {
	ID string
}

func (e *MissingContentError) Error() string {
	return fmt.Sprintf("unable to parse request body %q: field \"content\" must be specified", e.ID)
}

type ReferenceResolutionError struct {
	Ref string
	Err error
}

func (e *ReferenceResolutionError) Error() string {
	return fmt.Sprintf("unable to resolve reference %q: %v", e.Ref, e.Err)
}

func (e *ReferenceResolutionError) Unwrap() error {
	return e.Err
}
