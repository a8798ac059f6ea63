package http

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/primerjalnik/backend/internal/domain"
	"github.com/primerjalnik/backend/internal/usecase"
)

// SearchUsecase answers catalog queries
type SearchUsecase interface {
	Search(ctx context.Context, request *domain.SearchRequest) (*domain.SearchResponse, error)
	GetProduct(ctx context.Context, id string) (*domain.CanonicalProduct, error)
	Refresh(ctx context.Context) error
}

// ResolutionUsecase ingests listings and runs entity resolution
type ResolutionUsecase interface {
	Ingest(ctx context.Context, rows []domain.RawListing) (usecase.IngestReport, error)
	Run(ctx context.Context) (usecase.RunReport, error)
	VerifyPartition(ctx context.Context) (usecase.PartitionReport, error)
	MergeByID(ctx context.Context, idA, idB string) (*domain.CanonicalProduct, error)
}

// Handler holds dependencies for HTTP handlers
type Handler struct {
	search     SearchUsecase
	resolution ResolutionUsecase
	logger     zerolog.Logger
}

// NewHandler creates a new HTTP handler. Either usecase may be nil; its
// endpoints then answer 503.
func NewHandler(search SearchUsecase, resolution ResolutionUsecase, logger zerolog.Logger) *Handler {
	return &Handler{
		search:     search,
		resolution: resolution,
		logger:     logger,
	}
}

// IngestRequest is the body of POST /api/v1/listings
type IngestRequest struct {
	Listings []domain.RawListing `json:"listings" binding:"required"`
}

// MergeRequest is the body of POST /api/v1/products/merge
type MergeRequest struct {
	ProductA string `json:"productA" binding:"required"`
	ProductB string `json:"productB" binding:"required"`
}

// RunResponse reports a resolution run
type RunResponse struct {
	Report         usecase.RunReport `json:"report"`
	IndexRefreshed bool              `json:"indexRefreshed"`
}

// PartitionResponse reports the partition check
type PartitionResponse struct {
	usecase.PartitionReport
	OK bool `json:"ok"`
}

// HealthCheck returns the health status of the API
func (h *Handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": "primerjalnik-backend",
		"version": "1.0.0",
	})
}

// SearchProducts handles GET /api/v1/search?q=&limit=
func (h *Handler) SearchProducts(c *gin.Context) {
	if h.search == nil {
		h.unavailable(c, "search")
		return
	}

	var request domain.SearchRequest
	if err := c.ShouldBindQuery(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "query parameter q is required",
		})
		return
	}

	response, err := h.search.Search(c.Request.Context(), &request)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response)
}

// GetProduct handles GET /api/v1/products/:id
func (h *Handler) GetProduct(c *gin.Context) {
	if h.search == nil {
		h.unavailable(c, "search")
		return
	}

	product, err := h.search.GetProduct(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, product)
}

// IngestListings handles POST /api/v1/listings. Invalid rows are reported
// individually; the valid ones are stored.
func (h *Handler) IngestListings(c *gin.Context) {
	if h.resolution == nil {
		h.unavailable(c, "resolution")
		return
	}

	var request IngestRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "invalid request body: " + err.Error(),
		})
		return
	}

	report, err := h.resolution.Ingest(c.Request.Context(), request.Listings)
	if err != nil {
		h.writeError(c, err)
		return
	}

	status := http.StatusCreated
	if len(report.Accepted) == 0 {
		status = http.StatusUnprocessableEntity
	}
	c.JSON(status, report)
}

// RunResolution handles POST /api/v1/resolution/run. A run that changed the
// catalog refreshes the search index and cache.
func (h *Handler) RunResolution(c *gin.Context) {
	if h.resolution == nil {
		h.unavailable(c, "resolution")
		return
	}

	ctx := c.Request.Context()
	report, err := h.resolution.Run(ctx)
	if err != nil {
		h.writeError(c, err)
		return
	}

	response := RunResponse{Report: report}
	if report.Changed() && h.search != nil {
		if err := h.search.Refresh(ctx); err != nil {
			h.logger.Warn().Err(err).Msg("refreshing search after resolution run")
		} else {
			response.IndexRefreshed = true
		}
	}
	c.JSON(http.StatusOK, response)
}

// VerifyPartition handles GET /api/v1/resolution/partition
func (h *Handler) VerifyPartition(c *gin.Context) {
	if h.resolution == nil {
		h.unavailable(c, "resolution")
		return
	}

	report, err := h.resolution.VerifyPartition(c.Request.Context())
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, PartitionResponse{PartitionReport: report, OK: report.Err() == nil})
}

// MergeProducts handles POST /api/v1/products/merge, an operator override
// that merges two products regardless of their similarity.
func (h *Handler) MergeProducts(c *gin.Context) {
	if h.resolution == nil {
		h.unavailable(c, "resolution")
		return
	}

	var request MergeRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "productA and productB are required",
		})
		return
	}

	ctx := c.Request.Context()
	product, err := h.resolution.MergeByID(ctx, request.ProductA, request.ProductB)
	if err != nil {
		h.writeError(c, err)
		return
	}
	if h.search != nil {
		if err := h.search.Refresh(ctx); err != nil {
			h.logger.Warn().Err(err).Msg("refreshing search after manual merge")
		}
	}
	c.JSON(http.StatusOK, product)
}

func (h *Handler) unavailable(c *gin.Context, what string) {
	c.JSON(http.StatusServiceUnavailable, gin.H{
		"error": what + " is not configured",
	})
}

// writeError maps domain errors to HTTP status codes
func (h *Handler) writeError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrInvalidRequest), errors.Is(err, domain.ErrInvalidListing):
		status = http.StatusBadRequest
	case errors.Is(err, domain.ErrProductNotFound), errors.Is(err, domain.ErrListingNotFound):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrAlreadyMerged), errors.Is(err, domain.ErrListingResolved):
		status = http.StatusConflict
	}

	if status == http.StatusInternalServerError {
		h.logger.Error().Err(err).Str("path", c.Request.URL.Path).Msg("request failed")
		c.JSON(status, gin.H{"error": "internal server error"})
		return
	}
	c.JSON(status, gin.H{"error": err.Error()})
}
