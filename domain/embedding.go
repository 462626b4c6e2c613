package domain

// RequestType tags internal invocation payloads.
type RequestType string

const (
	Embedding        RequestType = "EMBEDDING"
	AddUserMatchInfo RequestType = "ADD_USER_MATCH_INFO"
)

// EmbeddingRequest asks the embed function to vectorise Payload.
type EmbeddingRequest struct {
	Type    RequestType `json:"type"`
	Payload string      `json:"payload"`
}

// EmbeddingResponse carries the vector for an EmbeddingRequest.
type EmbeddingResponse struct {
	Embedded []float32 `json:"embedded"`
}
