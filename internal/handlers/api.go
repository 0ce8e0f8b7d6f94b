// Package handlers exposes the admin HTTP API: source catalog management,
// collection triggers, raw record inspection, project queries and
// dead-letter inspection.
package handlers

import (
	"log"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/aleck31/crypto-dashboard/internal/collector"
	"github.com/aleck31/crypto-dashboard/internal/ingest"
	"github.com/aleck31/crypto-dashboard/internal/models"
	"github.com/aleck31/crypto-dashboard/internal/queue"
	"github.com/aleck31/crypto-dashboard/internal/store"
)

// API provides the admin handlers.
type API struct {
	store       store.Store
	collectors  *collector.Registry
	coordinator *ingest.Coordinator
	q           queue.Queue
}

// NewAPI creates the API handler set.
func NewAPI(st store.Store, collectors *collector.Registry, coordinator *ingest.Coordinator, q queue.Queue) *API {
	return &API{store: st, collectors: collectors, coordinator: coordinator, q: q}
}

// RegisterRoutes registers the admin API routes with the given Gin router.
func (a *API) RegisterRoutes(router *gin.Engine) {
	router.GET("/health", a.healthHandler)
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	v1 := router.Group("/api/v1")

	sourceRoutes := v1.Group("/sources")
	{
		sourceRoutes.POST("", a.createSourceHandler)
		sourceRoutes.GET("", a.listSourcesHandler)
		sourceRoutes.GET("/:source_id", a.getSourceHandler)
		sourceRoutes.PUT("/:source_id", a.updateSourceHandler)
		sourceRoutes.DELETE("/:source_id", a.deleteSourceHandler)
		sourceRoutes.POST("/:source_id/toggle", a.toggleSourceHandler)
		sourceRoutes.POST("/:source_id/validate", a.validateSourceHandler)
		sourceRoutes.POST("/:source_id/collect", a.collectSourceHandler)
	}

	v1.POST("/collect", a.collectAllHandler)

	rawRoutes := v1.Group("/raw")
	{
		rawRoutes.GET("/project", a.listProjectInfoHandler)
		rawRoutes.GET("/market", a.listMarketInfoHandler)
	}

	projectRoutes := v1.Group("/projects")
	{
		projectRoutes.GET("", a.listProjectsHandler)
		projectRoutes.GET("/:project_id", a.getProjectHandler)
	}

	v1.GET("/queue/dead", a.deadLettersHandler)
}

// healthHandler godoc
// @Summary Service health probe
// @Produce json
// @Success 200 {object} map[string]string
// @Router /health [get]
func (a *API) healthHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// --- Source Handlers ---

// SourceRequest is the create/update payload for a source configuration.
type SourceRequest struct {
	Type            models.SourceType      `json:"type" binding:"required"`
	SourceID        string                 `json:"source_id" binding:"required"`
	Name            string                 `json:"name" binding:"required"`
	CollectorType   string                 `json:"collector_type" binding:"required"`
	CollectorConfig models.CollectorConfig `json:"collector_config"`
	IntervalMinutes *int                   `json:"interval_minutes,omitempty"`
	Priority        *int                   `json:"priority,omitempty"`
	Enabled         *bool                  `json:"enabled,omitempty"`
}

// createSourceHandler godoc
// @Summary Register a new data source
// @Description Create a source configuration. The source ID is derived from type and source_id; duplicates are rejected.
// @Tags sources
// @Accept json
// @Produce json
// @Param source body SourceRequest true "Source configuration"
// @Success 201 {object} models.SourceConfig
// @Failure 400 {object} models.APIError
// @Failure 409 {object} models.APIError
// @Router /sources [post]
func (a *API) createSourceHandler(c *gin.Context) {
	var req SourceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondWithError(c, http.StatusBadRequest, models.ErrorCodeInvalidJSON, "Invalid request payload", gin.H{"reason": err.Error()})
		return
	}

	if req.Type != models.SourceTypeProject && req.Type != models.SourceTypeMarket {
		RespondWithError(c, http.StatusBadRequest, models.ErrorCodeValidation, "Unknown source type", gin.H{"type": req.Type})
		return
	}

	col, ok := a.collectors.Get(req.CollectorType)
	if !ok {
		RespondWithError(c, http.StatusBadRequest, models.ErrorCodeValidation, "Unknown collector type", gin.H{
			"collector_type": req.CollectorType,
			"known":          a.collectors.Types(),
		})
		return
	}
	if result := col.ValidateConfig(req.CollectorConfig); !result.Valid {
		RespondWithError(c, http.StatusBadRequest, models.ErrorCodeValidation, "Invalid collector configuration", gin.H{"errors": result.Errors})
		return
	}

	id := models.SourceKey(req.Type, req.SourceID)
	if _, err := a.store.GetSource(c.Request.Context(), id); err == nil {
		RespondWithError(c, http.StatusConflict, models.ErrorCodeDuplicateID, "Source already exists", gin.H{"id": id})
		return
	} else if err != store.ErrNotFound {
		RespondWithError(c, http.StatusInternalServerError, models.ErrorCodeInternalServerError, "Failed to check source existence", nil)
		return
	}

	src := models.NewSourceConfig(req.Type, req.SourceID, req.Name, req.CollectorType, req.CollectorConfig)
	applySourceRequest(src, &req)

	if err := a.store.PutSource(c.Request.Context(), src); err != nil {
		log.Printf("API: failed to create source %s: %v", id, err)
		RespondWithError(c, http.StatusInternalServerError, models.ErrorCodeInternalServerError, "Failed to create source", nil)
		return
	}
	RespondWithSuccess(c, http.StatusCreated, src)
}

// listSourcesHandler godoc
// @Summary List source configurations
// @Tags sources
// @Produce json
// @Param type query string false "Filter by source type (project|market)"
// @Success 200 {array} models.SourceConfig
// @Router /sources [get]
func (a *API) listSourcesHandler(c *gin.Context) {
	if t := c.Query("type"); t != "" {
		sources, err := a.store.QuerySourcesByType(c.Request.Context(), models.SourceType(t))
		if err != nil {
			RespondWithError(c, http.StatusInternalServerError, models.ErrorCodeInternalServerError, "Failed to list sources", nil)
			return
		}
		RespondWithSuccess(c, http.StatusOK, sources)
		return
	}
	sources, err := a.store.ListSources(c.Request.Context())
	if err != nil {
		RespondWithError(c, http.StatusInternalServerError, models.ErrorCodeInternalServerError, "Failed to list sources", nil)
		return
	}
	RespondWithSuccess(c, http.StatusOK, sources)
}

// getSourceHandler godoc
// @Summary Get one source configuration
// @Tags sources
// @Produce json
// @Param source_id path string true "Composite source ID (type:source_id)"
// @Success 200 {object} models.SourceConfig
// @Failure 404 {object} models.APIError
// @Router /sources/{source_id} [get]
func (a *API) getSourceHandler(c *gin.Context) {
	src, ok := a.loadSource(c)
	if !ok {
		return
	}
	RespondWithSuccess(c, http.StatusOK, src)
}

// updateSourceHandler godoc
// @Summary Update a source configuration
// @Description Replace the mutable fields of an existing source. Type and source_id are immutable.
// @Tags sources
// @Accept json
// @Produce json
// @Param source_id path string true "Composite source ID"
// @Param source body SourceRequest true "New configuration"
// @Success 200 {object} models.SourceConfig
// @Failure 400 {object} models.APIError
// @Failure 404 {object} models.APIError
// @Router /sources/{source_id} [put]
func (a *API) updateSourceHandler(c *gin.Context) {
	src, ok := a.loadSource(c)
	if !ok {
		return
	}

	var req SourceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondWithError(c, http.StatusBadRequest, models.ErrorCodeInvalidJSON, "Invalid request payload", gin.H{"reason": err.Error()})
		return
	}
	if req.Type != src.Type || req.SourceID != src.SourceID {
		RespondWithError(c, http.StatusBadRequest, models.ErrorCodeValidation, "Type and source_id are immutable", gin.H{"id": src.ID})
		return
	}

	col, ok := a.collectors.Get(req.CollectorType)
	if !ok {
		RespondWithError(c, http.StatusBadRequest, models.ErrorCodeValidation, "Unknown collector type", gin.H{"collector_type": req.CollectorType})
		return
	}
	if result := col.ValidateConfig(req.CollectorConfig); !result.Valid {
		RespondWithError(c, http.StatusBadRequest, models.ErrorCodeValidation, "Invalid collector configuration", gin.H{"errors": result.Errors})
		return
	}

	src.Name = req.Name
	src.CollectorType = req.CollectorType
	src.CollectorConfig = req.CollectorConfig
	applySourceRequest(src, &req)

	if err := a.store.PutSource(c.Request.Context(), src); err != nil {
		log.Printf("API: failed to update source %s: %v", src.ID, err)
		RespondWithError(c, http.StatusInternalServerError, models.ErrorCodeInternalServerError, "Failed to update source", nil)
		return
	}
	RespondWithSuccess(c, http.StatusOK, src)
}

// deleteSourceHandler godoc
// @Summary Delete a source configuration
// @Tags sources
// @Param source_id path string true "Composite source ID"
// @Success 204
// @Failure 404 {object} models.APIError
// @Router /sources/{source_id} [delete]
func (a *API) deleteSourceHandler(c *gin.Context) {
	src, ok := a.loadSource(c)
	if !ok {
		return
	}
	if err := a.store.DeleteSource(c.Request.Context(), src.ID); err != nil {
		RespondWithError(c, http.StatusInternalServerError, models.ErrorCodeInternalServerError, "Failed to delete source", nil)
		return
	}
	RespondWithSuccess(c, http.StatusNoContent, nil)
}

// toggleSourceHandler godoc
// @Summary Enable or disable a source
// @Tags sources
// @Produce json
// @Param source_id path string true "Composite source ID"
// @Success 200 {object} models.SourceConfig
// @Failure 404 {object} models.APIError
// @Router /sources/{source_id}/toggle [post]
func (a *API) toggleSourceHandler(c *gin.Context) {
	src, ok := a.loadSource(c)
	if !ok {
		return
	}
	src.Enabled = !src.Enabled
	if err := a.store.PutSource(c.Request.Context(), src); err != nil {
		RespondWithError(c, http.StatusInternalServerError, models.ErrorCodeInternalServerError, "Failed to toggle source", nil)
		return
	}
	log.Printf("API: source %s enabled=%v", src.ID, src.Enabled)
	RespondWithSuccess(c, http.StatusOK, src)
}

// validateSourceHandler godoc
// @Summary Validate a source's collector configuration
// @Tags sources
// @Produce json
// @Param source_id path string true "Composite source ID"
// @Success 200 {object} collector.ValidationResult
// @Failure 404 {object} models.APIError
// @Router /sources/{source_id}/validate [post]
func (a *API) validateSourceHandler(c *gin.Context) {
	src, ok := a.loadSource(c)
	if !ok {
		return
	}
	col, exists := a.collectors.Get(src.CollectorType)
	if !exists {
		RespondWithSuccess(c, http.StatusOK, collector.ValidationResult{
			Valid:  false,
			Errors: []string{"unknown collector type " + src.CollectorType},
		})
		return
	}
	RespondWithSuccess(c, http.StatusOK, col.ValidateConfig(src.CollectorConfig))
}

// collectSourceHandler godoc
// @Summary Trigger collection for one source immediately
// @Tags collection
// @Produce json
// @Param source_id path string true "Composite source ID"
// @Success 200 {object} models.CollectStats
// @Failure 404 {object} models.APIError
// @Failure 502 {object} models.APIError
// @Router /sources/{source_id}/collect [post]
func (a *API) collectSourceHandler(c *gin.Context) {
	src, ok := a.loadSource(c)
	if !ok {
		return
	}
	stats, err := a.coordinator.CollectSource(c.Request.Context(), src)
	if err != nil {
		RespondWithError(c, http.StatusBadGateway, models.ErrorCodeCollectFailed, "Collection failed", gin.H{"reason": err.Error()})
		return
	}
	RespondWithSuccess(c, http.StatusOK, stats)
}

// collectAllHandler godoc
// @Summary Run collection for all due sources
// @Tags collection
// @Produce json
// @Success 200 {object} ingest.RunSummary
// @Failure 500 {object} models.APIError
// @Router /collect [post]
func (a *API) collectAllHandler(c *gin.Context) {
	summary, err := a.coordinator.RunDueSources(c.Request.Context())
	if err != nil {
		RespondWithError(c, http.StatusInternalServerError, models.ErrorCodeInternalServerError, "Collection run failed", gin.H{"reason": err.Error()})
		return
	}
	RespondWithSuccess(c, http.StatusOK, summary)
}

// --- Raw Record Handlers ---

// listProjectInfoHandler godoc
// @Summary List raw project records
// @Tags raw
// @Produce json
// @Param source query string false "Filter by source"
// @Param status query string false "Filter by processed status"
// @Param limit query int false "Max records when unfiltered (default 100)"
// @Success 200 {array} models.ProjectInfo
// @Router /raw/project [get]
func (a *API) listProjectInfoHandler(c *gin.Context) {
	ctx := c.Request.Context()
	if source := c.Query("source"); source != "" {
		records, err := a.store.QueryProjectInfoBySource(ctx, source)
		if err != nil {
			RespondWithError(c, http.StatusInternalServerError, models.ErrorCodeInternalServerError, "Failed to query records", nil)
			return
		}
		RespondWithSuccess(c, http.StatusOK, records)
		return
	}
	if status := c.Query("status"); status != "" {
		records, err := a.store.QueryProjectInfoByStatus(ctx, models.ProcessedStatus(status))
		if err != nil {
			RespondWithError(c, http.StatusInternalServerError, models.ErrorCodeInternalServerError, "Failed to query records", nil)
			return
		}
		RespondWithSuccess(c, http.StatusOK, records)
		return
	}
	records, err := a.store.ScanProjectInfo(ctx, queryLimit(c))
	if err != nil {
		RespondWithError(c, http.StatusInternalServerError, models.ErrorCodeInternalServerError, "Failed to scan records", nil)
		return
	}
	RespondWithSuccess(c, http.StatusOK, records)
}

// listMarketInfoHandler godoc
// @Summary List raw market records
// @Tags raw
// @Produce json
// @Param source query string false "Filter by source"
// @Param status query string false "Filter by processed status"
// @Param limit query int false "Max records when unfiltered (default 100)"
// @Success 200 {array} models.MarketInfo
// @Router /raw/market [get]
func (a *API) listMarketInfoHandler(c *gin.Context) {
	ctx := c.Request.Context()
	if source := c.Query("source"); source != "" {
		records, err := a.store.QueryMarketInfoBySource(ctx, source)
		if err != nil {
			RespondWithError(c, http.StatusInternalServerError, models.ErrorCodeInternalServerError, "Failed to query records", nil)
			return
		}
		RespondWithSuccess(c, http.StatusOK, records)
		return
	}
	if status := c.Query("status"); status != "" {
		records, err := a.store.QueryMarketInfoByStatus(ctx, models.ProcessedStatus(status))
		if err != nil {
			RespondWithError(c, http.StatusInternalServerError, models.ErrorCodeInternalServerError, "Failed to query records", nil)
			return
		}
		RespondWithSuccess(c, http.StatusOK, records)
		return
	}
	records, err := a.store.ScanMarketInfo(ctx, queryLimit(c))
	if err != nil {
		RespondWithError(c, http.StatusInternalServerError, models.ErrorCodeInternalServerError, "Failed to scan records", nil)
		return
	}
	RespondWithSuccess(c, http.StatusOK, records)
}

// --- Project Handlers ---

// listProjectsHandler godoc
// @Summary List projects
// @Tags projects
// @Produce json
// @Param category query string false "Filter by category"
// @Success 200 {array} models.Project
// @Failure 400 {object} models.APIError
// @Router /projects [get]
func (a *API) listProjectsHandler(c *gin.Context) {
	ctx := c.Request.Context()
	if cat := c.Query("category"); cat != "" {
		category := models.ProjectCategory(cat)
		if !models.ValidCategories[category] {
			RespondWithError(c, http.StatusBadRequest, models.ErrorCodeValidation, "Unknown category", gin.H{"category": cat})
			return
		}
		projects, err := a.store.QueryProjectsByCategory(ctx, category)
		if err != nil {
			RespondWithError(c, http.StatusInternalServerError, models.ErrorCodeInternalServerError, "Failed to query projects", nil)
			return
		}
		RespondWithSuccess(c, http.StatusOK, projects)
		return
	}
	projects, err := a.store.ListProjects(ctx)
	if err != nil {
		RespondWithError(c, http.StatusInternalServerError, models.ErrorCodeInternalServerError, "Failed to list projects", nil)
		return
	}
	RespondWithSuccess(c, http.StatusOK, projects)
}

// getProjectHandler godoc
// @Summary Get one project
// @Tags projects
// @Produce json
// @Param project_id path string true "Project slug"
// @Success 200 {object} models.Project
// @Failure 404 {object} models.APIError
// @Router /projects/{project_id} [get]
func (a *API) getProjectHandler(c *gin.Context) {
	id := c.Param("project_id")
	p, err := a.store.GetProject(c.Request.Context(), id)
	if err == store.ErrNotFound {
		RespondWithError(c, http.StatusNotFound, models.ErrorCodeProjectNotFound, "Project not found", gin.H{"id": id})
		return
	}
	if err != nil {
		RespondWithError(c, http.StatusInternalServerError, models.ErrorCodeInternalServerError, "Failed to load project", nil)
		return
	}
	RespondWithSuccess(c, http.StatusOK, p)
}

// --- Queue Handlers ---

// deadLettersHandler godoc
// @Summary Inspect dead-lettered resolution messages
// @Tags queue
// @Produce json
// @Param limit query int false "Max messages (default 100)"
// @Success 200 {array} queue.Message
// @Failure 500 {object} models.APIError
// @Router /queue/dead [get]
func (a *API) deadLettersHandler(c *gin.Context) {
	msgs, err := a.q.DeadLetters(c.Request.Context(), queryLimit(c))
	if err != nil {
		RespondWithError(c, http.StatusInternalServerError, models.ErrorCodeInternalServerError, "Failed to read dead letters", gin.H{"reason": err.Error()})
		return
	}
	RespondWithSuccess(c, http.StatusOK, msgs)
}

// --- Helpers ---

// loadSource resolves the :source_id path param, writing the 404/500
// response itself when loading fails.
func (a *API) loadSource(c *gin.Context) (*models.SourceConfig, bool) {
	id := c.Param("source_id")
	src, err := a.store.GetSource(c.Request.Context(), id)
	if err == store.ErrNotFound {
		RespondWithError(c, http.StatusNotFound, models.ErrorCodeSourceNotFound, "Source not found", gin.H{"id": id})
		return nil, false
	}
	if err != nil {
		RespondWithError(c, http.StatusInternalServerError, models.ErrorCodeInternalServerError, "Failed to load source", nil)
		return nil, false
	}
	return src, true
}

func applySourceRequest(src *models.SourceConfig, req *SourceRequest) {
	if req.IntervalMinutes != nil {
		src.IntervalMinutes = *req.IntervalMinutes
	}
	if req.Priority != nil {
		src.Priority = *req.Priority
	}
	if req.Enabled != nil {
		src.Enabled = *req.Enabled
	}
}

func queryLimit(c *gin.Context) int {
	limit := 100
	if raw := c.Query("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			limit = n
		}
	}
	return limit
}
