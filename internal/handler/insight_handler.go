package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/bioscout-islamabad/bioscout/internal/model"
	"github.com/bioscout-islamabad/bioscout/internal/service"
)

type InsightHandler struct {
	svc    service.InsightService
	stores service.StoreFactory
}

func NewInsightHandler(svc service.InsightService, stores service.StoreFactory) *InsightHandler {
	return &InsightHandler{svc: svc, stores: stores}
}

// POST /api/view/classify (multipart: image, classification_type, preview_url)
func (h *InsightHandler) Classify(c *gin.Context) {
	req := model.ClassifyRequest{
		ClassificationType: c.PostForm("classification_type"),
		PreviewURL:         c.PostForm("preview_url"),
	}
	if fh, err := c.FormFile("image"); err == nil {
		f, err := fh.Open()
		if err != nil {
			badRequest(c, "could not read the uploaded image")
			return
		}
		defer f.Close()
		req.Image = f
		req.ImageName = fh.Filename
	}

	res, err := h.svc.Classify(c.Request.Context(), clientStore(c, h.stores), req)
	if err != nil {
		respondError(c, err, "Failed to classify image")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"species_name":     res.SpeciesName,
		"common_name":      res.CommonName,
		"confidence":       res.Confidence,
		"confidence_label": res.ConfidenceLabel(),
		"explanation":      res.Explanation,
	})
}

// POST /api/view/qa
func (h *InsightHandler) Ask(c *gin.Context) {
	var req model.QuestionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	entry, err := h.svc.Ask(c.Request.Context(), clientStore(c, h.stores), req.Question)
	if err != nil {
		respondError(c, err, "Failed to get an answer")
		return
	}
	c.JSON(http.StatusOK, entry)
}

// GET /api/view/analytics
func (h *InsightHandler) Analytics(c *gin.Context) {
	a, err := h.svc.Analytics(c.Request.Context())
	if err != nil {
		respond(c, model.Analytics{
			TopObservers: []model.ObserverCount{},
			TopSpecies:   []model.SpeciesCount{},
			TopLocations: []model.LocationCount{},
		}, err, "Failed to load analytics data")
		return
	}
	c.JSON(http.StatusOK, a)
}

// GET /api/view/gamification
func (h *InsightHandler) Gamification(c *gin.Context) {
	g, err := h.svc.Gamification(c.Request.Context())
	if err != nil {
		respond(c, model.Gamification{TopObserver: "None"}, err, "Failed to load top observer")
		return
	}
	c.JSON(http.StatusOK, g)
}

// GET /api/view/dashboard/:username
func (h *InsightHandler) Dashboard(c *gin.Context) {
	d, err := h.svc.Dashboard(c.Request.Context(), c.Param("username"))
	if err != nil {
		respondError(c, err, "Failed to fetch user statistics")
		return
	}
	c.JSON(http.StatusOK, d)
}

// GET /api/view/recents/classifications
func (h *InsightHandler) RecentClassifications(c *gin.Context) {
	c.JSON(http.StatusOK, clientStore(c, h.stores).RecentClassifications(c.Request.Context()))
}

// GET /api/view/recents/questions
func (h *InsightHandler) PreviousQuestions(c *gin.Context) {
	c.JSON(http.StatusOK, clientStore(c, h.stores).PreviousQuestions(c.Request.Context()))
}
