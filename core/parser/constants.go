package parser

const (
	FormDataType          = "application/x-www-form-urlencoded"
	MultipartFormDataType = "multipart/form-data"

	InlineRequestBodyID = "<inline+RequestBodyObject>"
	InlineSchemaID      = "<inline+SchemaObject>"
)
