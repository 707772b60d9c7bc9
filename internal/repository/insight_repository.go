package repository

import (
	"context"
	"encoding/json"
	"net/url"

	"github.com/bioscout-islamabad/bioscout/internal/apperr"
	"github.com/bioscout-islamabad/bioscout/internal/model"
)

// InsightRepository covers the upstream's computed features: the image
// classifier, the Q&A engine, community analytics and the stats dashboard.
type InsightRepository interface {
	Classify(ctx context.Context, req model.ClassifyRequest) (*model.ClassifyResult, error)
	Ask(ctx context.Context, question string) (*model.Answer, error)
	Analytics(ctx context.Context) (*model.Analytics, error)
	Gamification(ctx context.Context) (*model.Gamification, error)
	UserStats(ctx context.Context, username string) (json.RawMessage, error)
	Leaderboard(ctx context.Context) (json.RawMessage, error)
	Challenges(ctx context.Context, username string) (json.RawMessage, error)
}

type insightRepository struct {
	c *Client
}

func NewInsightRepository(c *Client) InsightRepository {
	return &insightRepository{c: c}
}

// classifyResponse may report a failure inside a 200 body.
type classifyResponse struct {
	model.ClassifyResult
	Error string `json:"error"`
}

func (r *insightRepository) Classify(ctx context.Context, req model.ClassifyRequest) (*model.ClassifyResult, error) {
	const op = "insight.classify"
	name := req.ImageName
	if name == "" {
		name = "image.jpg"
	}
	var out classifyResponse
	err := r.c.postMultipart(ctx, op, "/api/classify-image",
		map[string]string{"classification_type": req.ClassificationType},
		&formFile{field: "image", name: name, r: req.Image},
		&out)
	if err != nil {
		return nil, err
	}
	if out.Error != "" {
		return nil, apperr.Server(op, 200, out.Error)
	}
	return &out.ClassifyResult, nil
}

func (r *insightRepository) Ask(ctx context.Context, question string) (*model.Answer, error) {
	var out model.Answer
	if err := r.c.postJSON(ctx, "insight.qa", "/api/qa", model.QuestionRequest{Question: question}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *insightRepository) Analytics(ctx context.Context) (*model.Analytics, error) {
	var out model.Analytics
	if err := r.c.getJSON(ctx, "insight.analytics", "/api/analytics", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *insightRepository) Gamification(ctx context.Context) (*model.Gamification, error) {
	var out model.Gamification
	if err := r.c.getJSON(ctx, "insight.gamification", "/api/gamification", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *insightRepository) UserStats(ctx context.Context, username string) (json.RawMessage, error) {
	var out json.RawMessage
	if err := r.c.getJSON(ctx, "insight.userstats", "/api/user/stats/"+url.PathEscape(username), &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *insightRepository) Leaderboard(ctx context.Context) (json.RawMessage, error) {
	var out json.RawMessage
	if err := r.c.getJSON(ctx, "insight.leaderboard", "/api/community/leaderboard", &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Challenges unwraps the {"challenges": [...]} envelope; a missing list is
// reported as an empty array.
func (r *insightRepository) Challenges(ctx context.Context, username string) (json.RawMessage, error) {
	var out struct {
		Challenges json.RawMessage `json:"challenges"`
	}
	if err := r.c.getJSON(ctx, "insight.challenges", "/api/user/challenges/"+url.PathEscape(username), &out); err != nil {
		return nil, err
	}
	if len(out.Challenges) == 0 || string(out.Challenges) == "null" {
		return json.RawMessage("[]"), nil
	}
	return out.Challenges, nil
}
