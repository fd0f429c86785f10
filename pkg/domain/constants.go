package domain

// Request field names. They key DecodeRequest input, the MCP tool arguments and
// RequestError.Field.
const (
	KeyMethod   = "method"
	KeyURL      = "url"
	KeyHeaders  = "headers"
	KeyBody     = "body"
	KeyPath     = "path"
	KeyContents = "contents"
	KeyStrategy = "strategy"
)
