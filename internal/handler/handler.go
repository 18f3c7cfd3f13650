package handler

import (
	"context"
	"errors"
	"net/http"
	"sort"
	"time"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/maysaraadmin/moodle-analytics/docs"
	"github.com/maysaraadmin/moodle-analytics/internal/analytics"
	"github.com/maysaraadmin/moodle-analytics/internal/domain"
	"github.com/maysaraadmin/moodle-analytics/internal/dto"
	"github.com/maysaraadmin/moodle-analytics/internal/service"
)

const healthCheckTimeout = 2 * time.Second

// HealthChecker is a dependency reported by /health
type HealthChecker interface {
	Ping(ctx context.Context) error
}

type Handler struct {
	eventService     service.EventServicer
	analyticsService service.AnalyticsServicer
	checks           map[string]HealthChecker
	router           *gin.Engine
	log              *zap.Logger
}

// NewHandler wires the routes. eventService may be nil, in which case the
// ingestion and metrics routes are not registered.
func NewHandler(
	analyticsService service.AnalyticsServicer,
	eventService service.EventServicer,
	checks map[string]HealthChecker,
	corsOrigins []string,
	log *zap.Logger,
) *Handler {
	h := &Handler{
		eventService:     eventService,
		analyticsService: analyticsService,
		checks:           checks,
		router:           gin.Default(),
		log:              log,
	}

	h.router.Use(corsMiddleware(corsOrigins))
	h.registerRoutes()

	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.router.ServeHTTP(w, r)
}

func (h *Handler) registerRoutes() {
	h.router.GET("/health", h.healthCheck)
	h.router.GET("/analysis", h.getAnalysis)
	h.router.GET("/analysis/:table", h.getAnalysisTable)
	h.router.POST("/snapshot/refresh", h.refreshSnapshot)

	if h.eventService != nil {
		h.router.POST("/events", h.publishEvent)
		h.router.POST("/events/bulk", h.publishEventsBulk)
		h.router.GET("/metrics", h.getMetrics)
	}

	h.router.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
}

// writeError maps service errors onto status codes
func (h *Handler) writeError(c *gin.Context, err error) {
	status, code := http.StatusInternalServerError, "internal_error"
	switch {
	case errors.Is(err, service.ErrValidation), errors.Is(err, analytics.ErrInvalidOptions):
		status, code = http.StatusBadRequest, "validation_error"
	case errors.Is(err, domain.ErrNotFound):
		status, code = http.StatusNotFound, "not_found"
	case errors.Is(err, domain.ErrMalformedSchema):
		status, code = http.StatusUnprocessableEntity, "malformed_schema"
	case errors.Is(err, domain.ErrUpstreamUnavailable):
		status, code = http.StatusBadGateway, "upstream_unavailable"
	}

	c.JSON(status, dto.ErrorResponse{
		Error:   code,
		Message: err.Error(),
	})
}

func (h *Handler) bindError(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, dto.ErrorResponse{
		Error:   "validation_error",
		Message: err.Error(),
	})
}

// healthCheck handles GET /health
// @Summary Health check
// @Description Check if the service and its dependencies are reachable
// @Tags health
// @Produce json
// @Success 200 {object} dto.HealthResponse
// @Failure 503 {object} dto.HealthResponse
// @Router /health [get]
func (h *Handler) healthCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), healthCheckTimeout)
	defer cancel()

	names := make([]string, 0, len(h.checks))
	for name := range h.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	response := dto.HealthResponse{Status: "ok"}
	status := http.StatusOK
	for _, name := range names {
		if response.Checks == nil {
			response.Checks = make(map[string]string, len(names))
		}
		if err := h.checks[name].Ping(ctx); err != nil {
			h.log.Warn("Health check failed",
				zap.String("dependency", name),
				zap.Error(err))
			response.Checks[name] = err.Error()
			response.Status = "degraded"
			status = http.StatusServiceUnavailable
			continue
		}
		response.Checks[name] = "ok"
	}

	c.JSON(status, response)
}

// publishEvent handles POST /events
// @Summary Publish a single event
// @Description Publish a single Moodle log event to the ingestion queue
// @Tags events
// @Accept json
// @Produce json
// @Param event body dto.PublishEventRequest true "Event data"
// @Success 202 {object} dto.PublishEventResponse
// @Failure 400 {object} dto.ErrorResponse
// @Failure 500 {object} dto.ErrorResponse
// @Router /events [post]
func (h *Handler) publishEvent(c *gin.Context) {
	var req dto.PublishEventRequest

	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Warn("Invalid event request",
			zap.Error(err),
			zap.String("event_name", req.EventName))
		h.bindError(c, err)
		return
	}

	eventID, err := h.eventService.ProcessEvent(c.Request.Context(), &req)
	if err != nil {
		h.log.Error("Failed to process event",
			zap.Error(err),
			zap.String("event_name", req.EventName),
			zap.Int64("user_id", req.UserID))
		h.writeError(c, err)
		return
	}

	h.log.Info("Event accepted",
		zap.Int64("event_id", eventID),
		zap.String("event_name", req.EventName))

	c.JSON(http.StatusAccepted, dto.PublishEventResponse{
		EventID: eventID,
		Status:  "accepted",
	})
}

// publishEventsBulk handles POST /events/bulk
// @Summary Publish multiple events
// @Description Publish up to 1000 Moodle log events to the ingestion queue
// @Tags events
// @Accept json
// @Produce json
// @Param events body dto.PublishEventsBulkRequest true "Bulk events data"
// @Success 202 {object} dto.PublishBulkEventsResponse
// @Failure 400 {object} dto.ErrorResponse
// @Failure 500 {object} dto.ErrorResponse
// @Router /events/bulk [post]
func (h *Handler) publishEventsBulk(c *gin.Context) {
	var bulkRequest dto.PublishEventsBulkRequest

	if err := c.ShouldBindJSON(&bulkRequest); err != nil {
		h.log.Warn("Invalid bulk event request", zap.Error(err))
		h.bindError(c, err)
		return
	}

	eventIDs, errs, err := h.eventService.ProcessBulkEvents(c.Request.Context(), bulkRequest.Events)
	if err != nil {
		h.log.Error("Failed to process bulk events",
			zap.Error(err),
			zap.Int("event_count", len(bulkRequest.Events)))
		h.writeError(c, err)
		return
	}

	accepted := len(eventIDs)
	rejected := len(errs)

	h.log.Info("Bulk events processed",
		zap.Int("accepted", accepted),
		zap.Int("rejected", rejected),
		zap.Int("total", len(bulkRequest.Events)))

	c.JSON(http.StatusAccepted, dto.PublishBulkEventsResponse{
		Accepted: accepted,
		Rejected: rejected,
		EventIDs: eventIDs,
		Errors:   errs,
	})
}

// getMetrics handles GET /metrics
// @Summary Get aggregated metrics
// @Description Retrieve aggregated activity counts with optional grouping by course, component, hour, or day
// @Tags metrics
// @Produce json
// @Param event_name query string false "Event name to filter by"
// @Param course_id query string false "Course to filter by" example:"MATH101"
// @Param from query int true "Start timestamp (Unix epoch)" example:"1723475612"
// @Param to query int true "End timestamp (Unix epoch)" example:"1723562012"
// @Param group_by query string false "Field to group by" Enums(course, component, hour, day) example:"course"
// @Success 200 {object} dto.GetMetricsResponse
// @Failure 400 {object} dto.ErrorResponse
// @Failure 500 {object} dto.ErrorResponse
// @Router /metrics [get]
func (h *Handler) getMetrics(c *gin.Context) {
	var req dto.GetMetricsRequest

	if err := c.ShouldBindQuery(&req); err != nil {
		h.log.Warn("Invalid metrics request", zap.Error(err))
		h.bindError(c, err)
		return
	}

	response, err := h.eventService.GetMetrics(c.Request.Context(), &req)
	if err != nil {
		h.log.Error("Failed to get metrics",
			zap.Error(err),
			zap.String("event_name", req.EventName),
			zap.Int64("from", req.From),
			zap.Int64("to", req.To))
		h.writeError(c, err)
		return
	}

	h.log.Info("Metrics retrieved",
		zap.String("event_name", req.EventName),
		zap.Uint64("total_count", response.TotalCount),
		zap.Uint64("unique_count", response.UniqueCount))

	c.JSON(http.StatusOK, response)
}
