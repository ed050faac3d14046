package persistence

import (
	"errors"
	"time"
)

var ErrNotFound = errors.New("persistence: document not found")

// Document is a stored session document. Name is unique; saving under an
// existing name replaces the previous document.
type Document struct {
	ID        string
	Name      string
	Src       string
	Version   string
	Data      []byte
	CreatedAt time.Time
	UpdatedAt time.Time
}

// DocumentSummary describes a stored document without its body.
type DocumentSummary struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Src       string    `json:"src"`
	Version   string    `json:"version"`
	Size      int       `json:"size"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}
