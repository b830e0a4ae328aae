package ir

type RequestBodyObject struct {
	ID                  string      `json:"id"`
	Description         string      `json:"description,omitempty"`
	Schema              *Schema     `json:"schema,omitempty"`
	Required            bool        `json:"required"`
	MediaType           string      `json:"mediaType"`
	IsFormData          bool        `json:"isFormData"`
	IsMultipartFormData bool        `json:"isMultipartFormData"`
	AreFilesRequired    bool        `json:"areFilesRequired"`
	Files               []FileField `json:"files,omitempty"`

	// Encoding is only read for form and multipart bodies.
	Encoding map[string]Encoding `json:"encoding,omitempty"`
}

// FileField is a binary upload field taken out of a multipart schema. The
// emitter sends it as a raw byte payload instead of a schema property.
type FileField struct {
	Name        string `json:"name"`
	Required    bool   `json:"required"`
	Description string `json:"description,omitempty"`
	ContentType string `json:"contentType,omitempty"`
}

// Encoding describes how one property of a form body is serialized.
type Encoding struct {
	ContentType   string `json:"contentType,omitempty"`
	Style         string `json:"style,omitempty"`
	Explode       *bool  `json:"explode,omitempty"`
	AllowReserved bool   `json:"allowReserved,omitempty"`
}
