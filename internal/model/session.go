package model

import "time"

// Session is the locally persisted, unverified identity of a client.
type Session struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// LoginRequest is what the login screen sends. There is no password: the
// session only personalises the UI and is not a trust boundary.
type LoginRequest struct {
	Name  string `json:"name" binding:"required"`
	Email string `json:"email" binding:"omitempty,email"`
}

// RegisterRequest mirrors LoginRequest but requires an email.
type RegisterRequest struct {
	Name  string `json:"name" binding:"required"`
	Email string `json:"email" binding:"required,email"`
}

// RecentClassification is one entry of the "recent identifications" strip.
type RecentClassification struct {
	ID                 string    `json:"id"`
	PreviewURL         string    `json:"previewUrl,omitempty"`
	SpeciesName        string    `json:"species_name"`
	CommonName         string    `json:"common_name"`
	Confidence         float64   `json:"confidence"`
	ClassificationType string    `json:"classification_type"`
	Timestamp          time.Time `json:"timestamp"`
}

// PreviousQuestion is one Q&A exchange kept for the history panel.
type PreviousQuestion struct {
	ID        string    `json:"id"`
	Question  string    `json:"question"`
	Answer    string    `json:"answer"`
	Timestamp time.Time `json:"timestamp"`
}
