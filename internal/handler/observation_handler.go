package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/bioscout-islamabad/bioscout/internal/model"
	"github.com/bioscout-islamabad/bioscout/internal/pipeline"
	"github.com/bioscout-islamabad/bioscout/internal/repository"
	"github.com/bioscout-islamabad/bioscout/internal/service"
)

type ObservationHandler struct {
	svc         service.ObservationService
	stores      service.StoreFactory
	afterSubmit []func()
	listLimit   int
	pageSize    int
}

// NewObservationHandler builds the list/map/submit endpoints. afterSubmit
// hooks run once a submission has been accepted upstream.
func NewObservationHandler(svc service.ObservationService, stores service.StoreFactory, pageSize, listLimit int, afterSubmit ...func()) *ObservationHandler {
	if pageSize <= 0 {
		pageSize = model.GridPageSize
	}
	if listLimit <= 0 {
		listLimit = model.ListLimit
	}
	return &ObservationHandler{svc: svc, stores: stores, pageSize: pageSize, listLimit: listLimit, afterSubmit: afterSubmit}
}

func (h *ObservationHandler) bindQuery(c *gin.Context) (model.Query, bool) {
	q := model.DefaultQuery()
	q.PageSize = h.pageSize
	if err := c.ShouldBindQuery(&q); err != nil {
		badRequest(c, err.Error())
		return q, false
	}
	cat, ok := model.ParseCategory(string(q.Category))
	if !ok {
		badRequest(c, "unknown category "+strconv.Quote(string(q.Category)))
		return q, false
	}
	q.Category = cat
	if !q.TimeWindow.Valid() {
		badRequest(c, "unknown time window "+strconv.Quote(string(q.TimeWindow)))
		return q, false
	}
	if q.SortKey != "" && !q.SortKey.Valid() {
		badRequest(c, "unknown sort key "+strconv.Quote(string(q.SortKey)))
		return q, false
	}
	return q.Normalize(), true
}

func (h *ObservationHandler) bindMapFilter(c *gin.Context) (pipeline.MapFilter, bool) {
	q, ok := h.bindQuery(c)
	if !ok {
		return pipeline.MapFilter{}, false
	}
	return pipeline.MapFilter{Category: q.Category, TimeWindow: q.TimeWindow}, true
}

// GET /api/view/observations
func (h *ObservationHandler) List(c *gin.Context) {
	q, ok := h.bindQuery(c)
	if !ok {
		return
	}
	page, err := h.svc.List(c.Request.Context(), q)
	respond(c, page, err, "Failed to load observations")
}

// GET /api/view/list
func (h *ObservationHandler) Listing(c *gin.Context) {
	q, ok := h.bindQuery(c)
	if !ok {
		return
	}
	limit, ok := queryInt(c, "limit", h.listLimit)
	if !ok {
		badRequest(c, "limit must be a number")
		return
	}
	showAll, _ := strconv.ParseBool(c.DefaultQuery("show_all", "false"))
	listing, err := h.svc.Listing(c.Request.Context(), q, limit, showAll)
	respond(c, listing, err, "Failed to load observations")
}

// GET /api/view/map
func (h *ObservationHandler) Map(c *gin.Context) {
	f, ok := h.bindMapFilter(c)
	if !ok {
		return
	}
	markers, err := h.svc.Map(c.Request.Context(), f)
	respond(c, markers, err, "Failed to load map data")
}

// GET /api/view/heatmap
func (h *ObservationHandler) Heatmap(c *gin.Context) {
	f, ok := h.bindMapFilter(c)
	if !ok {
		return
	}
	cells, err := h.svc.Heatmap(c.Request.Context(), f)
	respond(c, cells, err, "Failed to load map data")
}

// GET /api/view/filters
func (h *ObservationHandler) Filters(c *gin.Context) {
	opts, err := h.svc.Filters(c.Request.Context())
	respond(c, opts, err, "Failed to load observations")
}

// GET /api/view/locations/suggest?q=
func (h *ObservationHandler) Suggest(c *gin.Context) {
	names := h.svc.Suggest(c.Query("q"))
	if names == nil {
		names = []string{}
	}
	c.JSON(http.StatusOK, names)
}

// GET /api/view/search
func (h *ObservationHandler) Search(c *gin.Context) {
	limit, ok := queryInt(c, "limit", h.listLimit)
	if !ok {
		badRequest(c, "limit must be a number")
		return
	}
	f := repository.SearchFilter{
		Category: c.Query("category"),
		Location: c.Query("location"),
		Observer: c.Query("observer"),
	}
	docs, err := h.svc.Search(c.Request.Context(), c.Query("q"), f, limit)
	respond(c, docs, err, "Search failed")
}

// POST /api/view/observations
func (h *ObservationHandler) Create(c *gin.Context) {
	var req model.SubmitRequest
	if err := c.ShouldBind(&req); err != nil {
		badRequest(c, err.Error())
		return
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

	resp, err := h.svc.Submit(c.Request.Context(), clientStore(c, h.stores), req)
	if err != nil {
		respondError(c, err, "Failed to submit observation")
		return
	}
	for _, hook := range h.afterSubmit {
		hook()
	}
	c.JSON(http.StatusCreated, resp)
}

// POST /api/view/refresh
func (h *ObservationHandler) Refresh(c *gin.Context) {
	n, err := h.svc.Refresh(c.Request.Context())
	if err != nil {
		respondError(c, err, "Failed to load observations")
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": n})
}
