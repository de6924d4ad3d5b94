package domain

import (
	"encoding/base64"
	"net/http"
	"time"
)

// StoredImage is a captured image persisted in the local store.
type StoredImage struct {
	ID        string
	Data      []byte
	Timestamp time.Time
}

// ContentType sniffs the MIME type of the stored bytes.
func (s StoredImage) ContentType() string {
	return http.DetectContentType(s.Data)
}

// DataURL renders the image as a data URL suitable for direct display.
func (s StoredImage) DataURL() string {
	return "data:" + s.ContentType() + ";base64," + base64.StdEncoding.EncodeToString(s.Data)
}
