package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/example/haneul-palette/internal/auth"
	"github.com/example/haneul-palette/internal/imageprocessor"
	"github.com/example/haneul-palette/internal/logging"
	"github.com/example/haneul-palette/internal/palette"
	"github.com/example/haneul-palette/internal/skintone"
	"github.com/example/haneul-palette/internal/usecase"
)

// MaxUploadSize is the largest accepted image, in bytes.
const MaxUploadSize = 10 << 20

const (
	// multipartOverhead leaves room for boundaries and part headers on top of MaxUploadSize.
	multipartOverhead = 1 << 20
	// maxJSONBodySize fits a base64 encoded MaxUploadSize image plus the JSON envelope.
	maxJSONBodySize = MaxUploadSize/3*4 + 8<<10
)

// AnalysisService is the use case surface consumed by the HTTP layer.
type AnalysisService interface {
	Analyze(ctx context.Context, source string, imageBytes []byte) (*usecase.Analysis, error)
	GetResult(ctx context.Context, requestID string) (*usecase.Analysis, error)
	GetMetricsSummary(ctx context.Context) (*usecase.MetricsSummary, error)
}

type analyzeRequest struct {
	Image json.RawMessage `json:"image"`
}

type analysisResponse struct {
	RequestID string `json:"request_id"`
	skintone.Result
	Recommendations *recommendations `json:"recommendations,omitempty"`
}

type recommendations struct {
	*palette.Recommendation
	ClosestSwatch *palette.Swatch `json:"closest_swatch,omitempty"`
	FaceShape     string          `json:"face_shape"`
	Tip           string          `json:"tip"`
}

type resultResponse struct {
	RequestID string `json:"request_id"`
	Source    string `json:"source"`
	Subject   string `json:"subject,omitempty"`
	SHA1Hash  string `json:"sha1_hash"`
	skintone.Result
	FaceShape string `json:"face_shape,omitempty"`
	CreatedAt string `json:"created_at"`
}

type handler struct {
	svc    AnalysisService
	logger *zap.Logger
}

// RegisterRoutes wires the HTTP handlers to the Gin router. When authMiddleware
// is non-nil it guards the analysis and history routes.
func RegisterRoutes(router *gin.Engine, svc AnalysisService, logger *zap.Logger, authMiddleware gin.HandlerFunc) {
	h := &handler{svc: svc, logger: logger.Named("http")}

	router.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "running", "message": "Haneul Palette API"})
	})
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/palette", h.recommend)

	protected := router.Group("/")
	if authMiddleware != nil {
		protected.Use(authMiddleware)
	}
	protected.POST("/", h.analyzeJSON)
	protected.POST("/analyze", h.analyze)
	protected.GET("/result/:id", h.result)
	protected.GET("/metrics", h.metrics)
}

// analyze accepts either a multipart upload or a JSON body.
func (h *handler) analyze(c *gin.Context) {
	if strings.HasPrefix(c.ContentType(), "multipart/") {
		h.analyzeUpload(c)
		return
	}
	h.analyzeJSON(c)
}

func (h *handler) analyzeJSON(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxJSONBodySize)

	var req analyzeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		switch {
		case isBodyTooLarge(err):
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "image exceeds upload limit"})
		case errors.Is(err, io.EOF):
			c.JSON(http.StatusBadRequest, gin.H{"error": "No image provided"})
		default:
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON body", "details": err.Error()})
		}
		return
	}

	// absent, null and "" count as missing; any other value is a processing failure
	raw := strings.TrimSpace(string(req.Image))
	if raw == "" || raw == "null" || raw == `""` {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No image provided"})
		return
	}
	var encoded string
	if err := json.Unmarshal(req.Image, &encoded); err != nil {
		h.logger.Warn("image field is not a string", zap.String("value", truncate(raw, 32)))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Processing failed", "details": "image must be a base64 encoded string"})
		return
	}

	data, err := imageprocessor.DecodeBase64(encoded)
	if err != nil {
		h.logger.Warn("invalid base64 payload", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Processing failed", "details": err.Error()})
		return
	}

	h.respond(c, usecase.SourceJSON, data)
}

func (h *handler) analyzeUpload(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, MaxUploadSize+multipartOverhead)

	file, err := c.FormFile("file")
	if errors.Is(err, http.ErrMissingFile) {
		file, err = c.FormFile("image")
	}
	if err != nil {
		switch {
		case isBodyTooLarge(err):
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "image exceeds upload limit"})
		case errors.Is(err, http.ErrMissingFile):
			c.JSON(http.StatusBadRequest, gin.H{"error": "No image provided"})
		default:
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid multipart form", "details": err.Error()})
		}
		return
	}

	if file.Size > MaxUploadSize {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "image exceeds upload limit"})
		return
	}
	if !isImageContentType(file.Header.Get("Content-Type")) {
		c.JSON(http.StatusUnsupportedMediaType, gin.H{"error": "unsupported content type"})
		return
	}

	src, err := file.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unable to open image"})
		return
	}
	defer src.Close()

	data, err := io.ReadAll(src)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read image"})
		return
	}

	h.respond(c, usecase.SourceUpload, data)
}

func (h *handler) respond(c *gin.Context, source string, data []byte) {
	analysis, err := h.svc.Analyze(c.Request.Context(), source, data)
	if err != nil {
		h.writeAnalysisError(c, err)
		return
	}

	resp := analysisResponse{RequestID: analysis.RequestID, Result: analysis.Result}
	if c.Query("recommend") == "true" {
		rec, err := palette.Recommend(analysis.Result.Undertone, analysis.Result.Depth)
		if err != nil {
			h.writeAnalysisError(c, err)
			return
		}
		resp.Recommendations = &recommendations{
			Recommendation: rec,
			FaceShape:      analysis.FaceShape.Name,
			Tip:            analysis.FaceShape.Tip,
		}
		if swatch, ok := rec.Nearest(analysis.Result.CheekSample); ok {
			resp.Recommendations.ClosestSwatch = &swatch
		}
	}

	c.Header("X-Request-ID", analysis.RequestID)
	c.JSON(http.StatusOK, resp)
}

func (h *handler) writeAnalysisError(c *gin.Context, err error) {
	if errors.Is(err, usecase.ErrMissingInput) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No image provided"})
		return
	}

	fields := []zap.Field{zap.Error(err)}
	if subject, ok := auth.GetSubject(c.Request.Context()); ok {
		fields = append(fields, zap.String("subject", subject))
	}
	h.logger.Error("analysis failed", fields...)
	c.JSON(http.StatusInternalServerError, gin.H{"error": "Processing failed", "details": logging.Cause(err).Error()})
}

func (h *handler) result(c *gin.Context) {
	requestID := c.Param("id")
	if requestID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "id is required"})
		return
	}

	analysis, err := h.svc.GetResult(c.Request.Context(), requestID)
	if err != nil {
		if errors.Is(err, usecase.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "result not found"})
			return
		}
		h.logger.Error("result lookup failed", zap.Error(err), zap.String("request_id", requestID))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "result lookup failed"})
		return
	}

	c.JSON(http.StatusOK, resultResponse{
		RequestID: analysis.RequestID,
		Source:    analysis.Source,
		Subject:   analysis.Subject,
		SHA1Hash:  analysis.ImageSHA1,
		Result:    analysis.Result,
		FaceShape: analysis.FaceShape.Name,
		CreatedAt: analysis.CreatedAt.UTC().Format(time.RFC3339),
	})
}

func (h *handler) metrics(c *gin.Context) {
	summary, err := h.svc.GetMetricsSummary(c.Request.Context())
	if err != nil {
		if errors.Is(err, usecase.ErrHistoryDisabled) {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "analysis history is disabled"})
			return
		}
		h.logger.Error("metrics aggregation failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "metrics unavailable"})
		return
	}
	c.JSON(http.StatusOK, summary)
}

func (h *handler) recommend(c *gin.Context) {
	undertone, ok := skintone.ParseUndertone(c.Query("undertone"))
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "undertone must be one of Warm, Cool, Neutral"})
		return
	}
	depth, ok := skintone.ParseDepth(c.Query("depth"))
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "depth must be one of Light, Medium, Deep"})
		return
	}

	rec, err := palette.Recommend(undertone, depth)
	if err != nil {
		h.logger.Error("palette lookup failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "palette unavailable"})
		return
	}
	c.JSON(http.StatusOK, rec)
}

func isImageContentType(contentType string) bool {
	contentType = strings.ToLower(strings.TrimSpace(contentType))
	return contentType == "" ||
		contentType == "application/octet-stream" ||
		strings.HasPrefix(contentType, "image/")
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

func isBodyTooLarge(err error) bool {
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		return true
	}
	return err != nil && strings.Contains(err.Error(), "request body too large")
}
