package model

import (
	"encoding/json"
	"fmt"
	"io"
)

// SubmitRequest is a new sighting. Either Image (with ImageName) or ImageURL is sent.
type SubmitRequest struct {
	SpeciesName  string    `form:"species_name" json:"species_name"`
	CommonName   string    `form:"common_name" json:"common_name"`
	DateObserved string    `form:"date_observed" json:"date_observed"`
	Location     string    `form:"location" json:"location"`
	Notes        string    `form:"notes" json:"notes"`
	Observer     string    `form:"observer" json:"observer"`
	ImageURL     string    `form:"image_url" json:"image_url"`
	Image        io.Reader `form:"-" json:"-"`
	ImageName    string    `form:"-" json:"-"`
}

// SubmitResponse is the upstream echo of a created record.
type SubmitResponse struct {
	Message     string      `json:"message"`
	Observation Observation `json:"observation"`
}

// ClassificationTypes are the identification modes the classifier accepts.
var ClassificationTypes = []string{"plant", "animal", "fungi"}

// ClassifyRequest carries an image to the remote classifier.
type ClassifyRequest struct {
	Image              io.Reader
	ImageName          string
	ClassificationType string
	PreviewURL         string
}

// ClassifyResult is the classifier's answer.
type ClassifyResult struct {
	SpeciesName string   `json:"species_name"`
	CommonName  string   `json:"common_name,omitempty"`
	Confidence  *float64 `json:"confidence,omitempty"`
	Explanation string   `json:"explanation,omitempty"`
}

// ConfidenceLabel formats the confidence as a percentage, "N/A" when absent.
func (r ClassifyResult) ConfidenceLabel() string {
	if r.Confidence == nil {
		return "N/A"
	}
	return fmt.Sprintf("%.1f%%", *r.Confidence*100)
}

// QuestionRequest is the body of POST /api/qa.
type QuestionRequest struct {
	Question string `json:"question"`
}

// Answer is the Q&A engine's reply.
type Answer struct {
	Answer string `json:"answer"`
}

// ObserverCount, SpeciesCount and LocationCount are the ranked rows of GET /api/analytics.
type ObserverCount struct {
	Observer string `json:"observer"`
	Count    int    `json:"count"`
}

type SpeciesCount struct {
	Species string `json:"species"`
	Count   int    `json:"count"`
}

type LocationCount struct {
	Location string `json:"location"`
	Count    int    `json:"count"`
}

// Analytics is the community summary panel.
type Analytics struct {
	TotalObservations int             `json:"total_observations"`
	TopObservers      []ObserverCount `json:"top_observers"`
	TopSpecies        []SpeciesCount  `json:"top_species"`
	TopLocations      []LocationCount `json:"top_locations"`
}

// Gamification is the "top observer" badge.
type Gamification struct {
	TopObserver string `json:"top_observer"`
	Submissions int    `json:"submissions"`
}

// Dashboard bundles the stats screen payloads. The upstream computes rewards,
// rankings and challenges; they are passed through untouched.
type Dashboard struct {
	UserStats   json.RawMessage `json:"userStats,omitempty"`
	Leaderboard json.RawMessage `json:"leaderboard,omitempty"`
	Challenges  json.RawMessage `json:"challenges"`
	Errors      []string        `json:"errors,omitempty"`
}
