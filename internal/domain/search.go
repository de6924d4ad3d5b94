package domain

// UpsertItem is one vector persisted in the remote index.
type UpsertItem struct {
	ID       string         `json:"id"`
	Vector   Vector         `json:"vector"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// SearchHit is one neighbor returned by the index, higher score = more similar.
type SearchHit struct {
	ID       string         `json:"id"`
	Score    float32        `json:"score"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// IndexHealth is the readiness report of the vector index service.
type IndexHealth struct {
	OK    bool `json:"ok"`
	Count int  `json:"count"`
	Dim   int  `json:"dim"`
}
