package http

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/primer/backend/internal/domain"
	"github.com/primer/backend/internal/usecase"
)

// MatcherUsecase is the slice of the matcher service the handlers need.
type MatcherUsecase interface {
	FindSimilarProducts(ctx context.Context, imageData, query string) (*domain.MatchResult, error)
	AnalyzeFrame(ctx context.Context, imageData string) ([]domain.Garment, error)
}

// Handler holds dependencies for HTTP handlers
type Handler struct {
	matcher MatcherUsecase
}

// NewHandler creates a new HTTP handler
func NewHandler(matcher MatcherUsecase) *Handler {
	return &Handler{matcher: matcher}
}

// HealthCheck returns the health status of the API
func (h *Handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"service":   "primer-backend",
		"version":   "1.0.0",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// AnalyzeFrame handles frame-analysis requests from the extension
func (h *Handler) AnalyzeFrame(c *gin.Context) {
	if h.matcher == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Matcher service not configured"})
		return
	}

	var req domain.AnalyzeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No image data provided"})
		return
	}

	garments, err := h.matcher.AnalyzeFrame(c.Request.Context(), req.ImageData)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidRequest) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "No image data provided"})
			return
		}
		if errors.Is(err, domain.ErrRankingParse) {
			c.JSON(http.StatusBadGateway, gin.H{"error": "Failed to parse AI response"})
			return
		}
		c.JSON(http.StatusBadGateway, gin.H{"error": "Failed to analyze frame"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"items":     garments,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// FindSimilarProducts handles product-match requests. An empty upstream
// pool is reported in the body, not as an HTTP failure, so the extension
// can show the suggestion to the user.
func (h *Handler) FindSimilarProducts(c *gin.Context) {
	if h.matcher == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Matcher service not configured"})
		return
	}

	var req domain.MatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No image data provided"})
		return
	}

	query := strings.TrimSpace(req.Query)
	if query == "" && req.Garment != nil {
		query = usecase.BuildGarmentQuery(*req.Garment)
	}
	if query == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No search query or garment provided"})
		return
	}

	result, err := h.matcher.FindSimilarProducts(c.Request.Context(), req.ImageData, query)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidRequest) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request parameters"})
			return
		}
		if errors.Is(err, domain.ErrUpstreamEmpty) {
			c.JSON(http.StatusOK, gin.H{
				"best_match":          nil,
				"similar_options":     []domain.Candidate{},
				"error":               "No products found. Please check your SerpAPI key and account status.",
				"fallback_suggestion": "Make sure the SerpAPI key is configured and your account has credits.",
			})
			return
		}
		c.JSON(http.StatusBadGateway, gin.H{"error": "Failed to find similar products"})
		return
	}

	c.JSON(http.StatusOK, result)
}
