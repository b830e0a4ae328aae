package ir

type Operation struct {
	Path        string             `json:"path"`
	Method      string             `json:"method"`
	OperationID string             `json:"operationId,omitempty"`
	Summary     string             `json:"summary,omitempty"`
	Tags        []string           `json:"tags,omitempty"`
	Deprecated  bool               `json:"deprecated,omitempty"`
	RequestBody *RequestBodyObject `json:"requestBody,omitempty"`
}

type Document struct {
	Source         string              `json:"source,omitempty"`
	OpenAPIVersion string              `json:"openapi"`
	Title          string              `json:"title,omitempty"`
	Version        string              `json:"version,omitempty"`
	Schemas        []SchemaObject      `json:"schemas,omitempty"`
	RequestBodies  []RequestBodyObject `json:"requestBodies,omitempty"`
	Operations     []Operation         `json:"operations,omitempty"`
}
