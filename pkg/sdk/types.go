package vecsnap

import (
	"time"

	"github.com/kailas-cloud/vecsnap/internal/domain"
	searchuc "github.com/kailas-cloud/vecsnap/internal/usecase/search"
)

// Image is a stored photo.
type Image struct {
	ID        string
	Data      []byte
	Timestamp time.Time
}

// ContentType sniffs the MIME type of the image bytes.
func (i Image) ContentType() string { return toDomainImage(i).ContentType() }

// DataURL renders the image as a base64 data URL.
func (i Image) DataURL() string { return toDomainImage(i).DataURL() }

// Hit is one neighbor returned by the index. Higher score is more similar.
type Hit struct {
	ID       string
	Score    float32
	Metadata map[string]any
}

// Phase is the state of a session search.
type Phase string

// Session phases.
const (
	PhaseIdle       Phase = "idle"
	PhaseRetrieving Phase = "retrieving"
	PhaseEmbedding  Phase = "embedding"
	PhaseSearching  Phase = "searching"
	PhaseDone       Phase = "done"
	PhaseFailed     Phase = "failed"
)

// SessionState is a point-in-time copy of the session search.
type SessionState struct {
	Key        string
	Generation uint64
	Phase      Phase
	Image      *Image // set once retrieved, kept on later failure
	Hits       []Hit
	Err        error
}

// --- converters ---

func toDomainImage(i Image) domain.StoredImage {
	return domain.StoredImage{ID: i.ID, Data: i.Data, Timestamp: i.Timestamp}
}

func fromDomainImage(img domain.StoredImage) Image {
	return Image{ID: img.ID, Data: img.Data, Timestamp: img.Timestamp}
}

func fromDomainImages(imgs []domain.StoredImage) []Image {
	out := make([]Image, len(imgs))
	for i, img := range imgs {
		out[i] = fromDomainImage(img)
	}
	return out
}

func fromDomainHits(hits []domain.SearchHit) []Hit {
	out := make([]Hit, len(hits))
	for i, h := range hits {
		out[i] = Hit{ID: h.ID, Score: h.Score, Metadata: h.Metadata}
	}
	return out
}

func fromSnapshot(s searchuc.Snapshot) SessionState {
	st := SessionState{
		Key:        s.Key,
		Generation: s.Generation,
		Phase:      Phase(s.Phase),
		Err:        s.Err,
	}
	if s.Image != nil {
		img := fromDomainImage(*s.Image)
		st.Image = &img
	}
	if s.Hits != nil {
		st.Hits = fromDomainHits(s.Hits)
	}
	return st
}
