package repository

import (
	"context"
	"path/filepath"

	"github.com/bioscout-islamabad/bioscout/internal/model"
)

type ObservationRepository interface {
	FindAll(ctx context.Context) ([]model.Observation, error)
	Create(ctx context.Context, req model.SubmitRequest) (*model.SubmitResponse, error)
}

type observationRepository struct {
	c *Client
}

func NewObservationRepository(c *Client) ObservationRepository {
	return &observationRepository{c: c}
}

// FindAll fetches the whole observation list. The upstream has no paging; the
// view works on the complete set.
func (r *observationRepository) FindAll(ctx context.Context) ([]model.Observation, error) {
	var list []model.Observation
	if err := r.c.getJSON(ctx, "observations.fetch", "/api/observations", &list); err != nil {
		return nil, err
	}
	if list == nil {
		list = []model.Observation{}
	}
	return list, nil
}

// Create posts a sighting as multipart form data. An attached image wins over
// ImageURL, matching the upstream's own precedence.
func (r *observationRepository) Create(ctx context.Context, req model.SubmitRequest) (*model.SubmitResponse, error) {
	fields := map[string]string{
		"species_name":  req.SpeciesName,
		"common_name":   req.CommonName,
		"date_observed": req.DateObserved,
		"location":      req.Location,
		"notes":         req.Notes,
		"observer":      req.Observer,
	}

	var file *formFile
	if req.Image != nil {
		name := filepath.Base(req.ImageName)
		if name == "." || name == "/" || name == "" {
			name = "upload.jpg"
		}
		file = &formFile{field: "image", name: name, r: req.Image}
	} else if req.ImageURL != "" {
		fields["image_url"] = req.ImageURL
	}

	var out model.SubmitResponse
	if err := r.c.postMultipart(ctx, "observations.submit", "/api/submit", fields, file, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
