package models

import "time"

// Document is an uploaded file together with the text extracted from it.
// Text may be empty when nothing could be extracted.
type Document struct {
	Filename    string    `json:"filename"`
	Path        string    `json:"path"`
	Text        string    `json:"-"`
	ExtractedAt time.Time `json:"extracted_at"`
}
