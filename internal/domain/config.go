package domain

// VectorConfig holds the shared vector settings of the pipeline.
type VectorConfig struct {
	Dimensions  int
	MaxTopK     int
	DefaultTopK int
}

// DefaultVectorConfig returns defaults matching the FAISS index service (384-dim, topK 1..100).
func DefaultVectorConfig() VectorConfig {
	return VectorConfig{
		Dimensions:  384,
		MaxTopK:     100,
		DefaultTopK: 10,
	}
}
