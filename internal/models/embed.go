package models

// EmbedRequest is the body accepted by the embedding endpoint.
// Text is a pointer so a missing field can be told apart from an empty string.
type EmbedRequest struct {
	Text *string `json:"text"`
}

// EmbedResponse is the body returned by the embedding endpoint.
type EmbedResponse struct {
	Data   []float32 `json:"data"`
	Length int       `json:"length"`
}

// ErrorResponse is the body returned for failed requests.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}
