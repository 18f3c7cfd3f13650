package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/maysaraadmin/moodle-analytics/internal/dto"
	"github.com/maysaraadmin/moodle-analytics/internal/service"
)

func overrides(req dto.AnalysisRequest) service.OptionOverrides {
	return service.OptionOverrides{
		Bucket:     req.Bucket,
		Weighting:  req.Weighting,
		Clustering: req.Clustering,
	}
}

// getAnalysis handles GET /analysis
// @Summary Get all analysis tables
// @Description Run the analytics pipeline on the current snapshot and return every table
// @Tags analysis
// @Produce json
// @Param bucket query string false "Time bucket override (day, week, month)" example:"week"
// @Param weighting query string false "Engagement weighting override (standard, activity)" example:"activity"
// @Param clustering query string false "Clustering strategy override (kmeans, quadrant)" example:"quadrant"
// @Success 200 {object} dto.AnalysisResponse
// @Failure 400 {object} dto.ErrorResponse
// @Failure 502 {object} dto.ErrorResponse
// @Router /analysis [get]
func (h *Handler) getAnalysis(c *gin.Context) {
	var req dto.AnalysisRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		h.bindError(c, err)
		return
	}

	analysis, err := h.analyticsService.Analyze(c.Request.Context(), overrides(req))
	if err != nil {
		h.log.Error("Failed to run analysis", zap.Error(err))
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.AnalysisResponse{
		SnapshotID: analysis.Snapshot.ID.String(),
		LoadedAt:   analysis.Snapshot.LoadedAt,
		Tables:     analysis.Result.Tables(),
		Anomalies:  analysis.Result.Report.Anomalies(),
	})
}

// getAnalysisTable handles GET /analysis/:table
// @Summary Get one analysis table
// @Description Run the analytics pipeline on the current snapshot and return one table, or the forum reply network for graph
// @Tags analysis
// @Produce json
// @Param table path string true "Table name" example:"risk"
// @Param bucket query string false "Time bucket override (day, week, month)"
// @Param weighting query string false "Engagement weighting override (standard, activity)"
// @Param clustering query string false "Clustering strategy override (kmeans, quadrant)"
// @Success 200 {object} dto.TableResponse
// @Failure 400 {object} dto.ErrorResponse
// @Failure 404 {object} dto.ErrorResponse
// @Router /analysis/{table} [get]
func (h *Handler) getAnalysisTable(c *gin.Context) {
	var req dto.AnalysisRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		h.bindError(c, err)
		return
	}

	name := c.Param("table")
	analysis, table, err := h.analyticsService.Table(c.Request.Context(), name, overrides(req))
	if err != nil {
		h.log.Warn("Failed to get analysis table",
			zap.String("table", name),
			zap.Error(err))
		h.writeError(c, err)
		return
	}

	if name == service.TableGraph {
		graph := analysis.Result.Graph
		c.JSON(http.StatusOK, dto.GraphResponse{
			SnapshotID: analysis.Snapshot.ID.String(),
			LoadedAt:   analysis.Snapshot.LoadedAt,
			Nodes:      graph.Nodes(),
			Edges:      graph.Edges(),
			Metrics:    graph.Metrics(),
			Centrality: analysis.Result.Centrality,
		})
		return
	}

	c.JSON(http.StatusOK, dto.TableResponse{
		SnapshotID: analysis.Snapshot.ID.String(),
		LoadedAt:   analysis.Snapshot.LoadedAt,
		Table:      table.Name,
		Rows:       table.Rows,
		Anomalies:  analysis.Result.Report.Anomalies(),
	})
}

// refreshSnapshot handles POST /snapshot/refresh
// @Summary Refresh the dataset snapshot
// @Description Drop the cached snapshot and reload the dataset from the configured source
// @Tags analysis
// @Produce json
// @Success 200 {object} dto.SnapshotResponse
// @Failure 422 {object} dto.ErrorResponse
// @Failure 502 {object} dto.ErrorResponse
// @Router /snapshot/refresh [post]
func (h *Handler) refreshSnapshot(c *gin.Context) {
	snap, err := h.analyticsService.Refresh(c.Request.Context())
	if err != nil {
		h.log.Error("Failed to refresh snapshot", zap.Error(err))
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.SnapshotResponse{
		SnapshotID: snap.ID.String(),
		LoadedAt:   snap.LoadedAt,
		Counts:     snap.Dataset.Counts(),
	})
}
