package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"SalesReportAnalyzer/internal/domain"
	"SalesReportAnalyzer/internal/ports"
)

// Server exposes the intake API: report URL upload plus request polling.
type Server struct {
	repository ports.RequestRepository
	dispatcher ports.Dispatcher
	logger     *slog.Logger
}

// NewServer wires the repository and the pipeline dispatcher.
func NewServer(repository ports.RequestRepository, dispatcher ports.Dispatcher, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{repository: repository, dispatcher: dispatcher, logger: logger}
}

// Router builds the gin engine with all routes registered.
func (s *Server) Router() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	router.POST("/upload_report_url", s.uploadReportURL)
	router.GET("/requests/:id", s.getRequest)

	return router
}

type uploadReportBody struct {
	URL string `json:"url" binding:"required,url"`
}

type analyzeRequestJSON struct {
	ID         int64   `json:"id"`
	Status     string  `json:"status"`
	ReportURL  string  `json:"report_url"`
	ReportDate *string `json:"report_date"`
	LLMResult  *string `json:"llm_result"`
}

func toJSON(request *domain.AnalyzeRequest) analyzeRequestJSON {
	out := analyzeRequestJSON{
		ID:        request.ID,
		Status:    string(request.Status),
		ReportURL: request.ReportURL,
		LLMResult: request.LLMResult,
	}
	if request.ReportDate != nil {
		date := request.ReportDate.Format("2006-01-02")
		out.ReportDate = &date
	}
	return out
}

// uploadReportURL creates an analyze request for the given report URL and
// dispatches the pipeline asynchronously.
func (s *Server) uploadReportURL(c *gin.Context) {
	var body uploadReportBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "url is required and must be a valid URL"})
		return
	}

	request, err := s.repository.CreateRequest(c.Request.Context(), body.URL)
	if err != nil {
		s.logger.Error("create analyze request failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create analyze request"})
		return
	}

	s.logger.Info("analyze request created", "request_id", request.ID)
	s.dispatcher.Dispatch(request.ID)
	s.logger.Info("analyze task dispatched", "request_id", request.ID)

	c.JSON(http.StatusCreated, toJSON(request))
}

// getRequest returns the current state of one analyze request so clients
// can poll for a terminal status.
func (s *Server) getRequest(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "id must be an integer"})
		return
	}

	request, err := s.repository.GetRequest(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrRequestNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "analyze request not found"})
			return
		}
		s.logger.Error("load analyze request failed", "request_id", id, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load analyze request"})
		return
	}

	c.JSON(http.StatusOK, toJSON(request))
}
