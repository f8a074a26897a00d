package api

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/terrasiaga/coordination/internal/dispatch"
	"github.com/terrasiaga/coordination/internal/evac"
	"github.com/terrasiaga/coordination/internal/events"
	"github.com/terrasiaga/coordination/internal/geoindex"
	"github.com/terrasiaga/coordination/internal/ledger"
	"github.com/terrasiaga/coordination/internal/metrics"
	"github.com/terrasiaga/coordination/internal/models"
	"github.com/terrasiaga/coordination/internal/registry"
	"github.com/terrasiaga/coordination/internal/store"
	"github.com/terrasiaga/coordination/internal/validator"
)

type Handler struct {
	validator  *validator.Validator
	registry   *registry.Registry
	ledger     *ledger.Ledger
	engine     *ledger.Engine
	evac       *evac.Manager
	dispatcher *dispatch.Dispatcher
	store      store.EntityStore
	journal    store.EventJournal
}

func NewHandler(
	v *validator.Validator,
	r *registry.Registry,
	l *ledger.Ledger,
	e *ledger.Engine,
	m *evac.Manager,
	d *dispatch.Dispatcher,
	s store.EntityStore,
	j store.EventJournal,
) *Handler {
	return &Handler{
		validator:  v,
		registry:   r,
		ledger:     l,
		engine:     e,
		evac:       m,
		dispatcher: d,
		store:      s,
		journal:    j,
	}
}

func (h *Handler) RegisterRoutes(r *gin.Engine) {
	r.POST("/api/reports", h.submitReport)
	r.GET("/api/reports/:id", h.getReport)
	r.POST("/api/reports/:id/validate", h.validateReport)
	r.POST("/api/reports/:id/resolve", h.resolveReport)
	r.GET("/api/reports/:id/candidates", h.getCandidates)

	r.GET("/api/disasters", h.getDisasters)
	r.GET("/api/disasters/:id", h.getDisaster)
	r.POST("/api/disasters/:id/status", h.transitionDisaster)

	r.POST("/api/resources", h.addResource)
	r.GET("/api/resources/:id", h.getResource)
	r.POST("/api/resources/:id/restock", h.restockResource)
	r.POST("/api/allocations", h.requestAllocations)
	r.POST("/api/allocations/:id/status", h.transitionAllocation)

	r.POST("/api/centers", h.addCenter)
	r.GET("/api/centers", h.listCenters)
	r.POST("/api/evacuations", h.assignEvacuees)
	r.POST("/api/centers/:id/release", h.releaseEvacuees)
	r.POST("/api/centers/:id/close", h.closeCenter)
	r.POST("/api/centers/:id/reopen", h.reopenCenter)

	r.POST("/api/volunteers", h.addVolunteer)
	r.POST("/api/assignments", h.createAssignment)
	r.POST("/api/assignments/:id/status", h.transitionAssignment)

	r.GET("/api/events", h.listEvents)
	r.GET("/api/roles", h.listRoles)
	r.GET("/health", h.health)
	r.GET("/metrics", gin.WrapH(metrics.Handler()))
}

// actorID is the opaque caller identity; passed through, never verified.
func actorID(c *gin.Context) string {
	return c.GetHeader("X-Actor-ID")
}

// persist writes an entity snapshot through to the store. The engine is
// authoritative in memory, so a store failure is logged, not surfaced.
func (h *Handler) persist(ctx context.Context, what string, fn func(context.Context) error) {
	if h.store == nil {
		return
	}
	if err := fn(ctx); err != nil {
		slog.Error("store write-through failed", "entity", what, "error", err)
	}
}

type submitReportRequest struct {
	DisasterType      string   `json:"disaster_type" binding:"required"`
	Latitude          float64  `json:"latitude"`
	Longitude         float64  `json:"longitude"`
	LocationName      string   `json:"location_name"`
	Address           string   `json:"address"`
	EstimatedSeverity int      `json:"estimated_severity" binding:"required"`
	Casualties        int      `json:"casualties"`
	Injuries          int      `json:"injuries"`
	Missing           int      `json:"missing"`
	Affected          int      `json:"affected"`
	MediaCount        int      `json:"media_count"`
	RequiredSkills    []string `json:"required_skills"`
	ImpactRadiusM     float64  `json:"impact_radius_m"`
}

func (h *Handler) submitReport(c *gin.Context) {
	var req submitReportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	in := validator.SubmitInput{
		ReporterID:        actorID(c),
		DisasterType:      models.DisasterType(req.DisasterType),
		Latitude:          req.Latitude,
		Longitude:         req.Longitude,
		EstimatedSeverity: req.EstimatedSeverity,
		Casualties:        req.Casualties,
		Injuries:          req.Injuries,
		Missing:           req.Missing,
		Affected:          req.Affected,
		MediaCount:        req.MediaCount,
		RequiredSkills:    req.RequiredSkills,
		ImpactRadiusM:     req.ImpactRadiusM,
	}

	if req.LocationName != "" {
		loc := &models.Location{
			ID:        uuid.NewString(),
			Name:      req.LocationName,
			Address:   req.Address,
			Latitude:  req.Latitude,
			Longitude: req.Longitude,
		}
		h.persist(c.Request.Context(), "location", func(ctx context.Context) error {
			return h.store.SaveLocation(ctx, loc)
		})
		in.LocationID = loc.ID
	}

	rep, err := h.validator.Submit(in)
	if err != nil {
		writeError(c, err)
		return
	}
	h.persist(c.Request.Context(), "report", func(ctx context.Context) error {
		return h.store.SaveReport(ctx, rep)
	})
	c.JSON(http.StatusCreated, reportJSON(rep))
}

func (h *Handler) getReport(c *gin.Context) {
	rep, err := h.validator.Get(c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, reportJSON(rep))
}

type validateReportRequest struct {
	Valid bool   `json:"valid"`
	Notes string `json:"notes"`
}

func (h *Handler) validateReport(c *gin.Context) {
	var req validateReportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	rep, err := h.validator.Validate(c.Param("id"), actorID(c), req.Valid, req.Notes)
	if err != nil {
		writeError(c, err)
		return
	}
	h.persist(c.Request.Context(), "report", func(ctx context.Context) error {
		return h.store.SaveReport(ctx, rep)
	})
	c.JSON(http.StatusOK, reportJSON(rep))
}

func (h *Handler) resolveReport(c *gin.Context) {
	rep, err := h.validator.Resolve(c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	h.persist(c.Request.Context(), "report", func(ctx context.Context) error {
		return h.store.SaveReport(ctx, rep)
	})
	c.JSON(http.StatusOK, reportJSON(rep))
}

func (h *Handler) getCandidates(c *gin.Context) {
	reportID := c.Param("id")
	rep, err := h.validator.Get(reportID)
	if err != nil {
		writeError(c, err)
		return
	}
	at, err := h.validator.Point(reportID)
	if err != nil {
		writeError(c, err)
		return
	}

	limit := 10
	if l := c.Query("limit"); l != "" {
		if n, err := strconv.Atoi(l); err == nil && n > 0 && n <= 100 {
			limit = n
		}
	}

	candidates, err := h.dispatcher.FindCandidates(rep, at, limit)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"report_id": reportID, "candidates": candidates})
}

func (h *Handler) getDisasters(c *gin.Context) {
	status := models.DisasterStatus(c.Query("status"))
	disasters := h.registry.List(status)

	fc := toGeoJSON(disasters)
	c.Header("Content-Type", "application/geo+json")
	c.JSON(http.StatusOK, fc)
}

func (h *Handler) getDisaster(c *gin.Context) {
	d, err := h.registry.Get(c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, disasterJSON(d))
}

type disasterStatusRequest struct {
	Status  string     `json:"status" binding:"required"`
	EndTime *time.Time `json:"end_time"`
}

func (h *Handler) transitionDisaster(c *gin.Context) {
	var req disasterStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	d, err := h.registry.Transition(c.Param("id"), models.DisasterStatus(req.Status), req.EndTime, actorID(c))
	if err != nil {
		writeError(c, err)
		return
	}
	h.persist(c.Request.Context(), "disaster", func(ctx context.Context) error {
		return h.store.SaveDisaster(ctx, d)
	})
	c.JSON(http.StatusOK, disasterJSON(d))
}

type addResourceRequest struct {
	Category  string  `json:"category" binding:"required"`
	Quantity  int     `json:"quantity"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

func (h *Handler) addResource(c *gin.Context) {
	var req addResourceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	res, err := h.ledger.AddResource(&models.EmergencyResource{
		Category:  req.Category,
		Quantity:  req.Quantity,
		Latitude:  req.Latitude,
		Longitude: req.Longitude,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	h.persist(c.Request.Context(), "resource", func(ctx context.Context) error {
		return h.store.SaveResource(ctx, res)
	})
	c.JSON(http.StatusCreated, resourceJSON(res, models.ResourceAvailable, res.Quantity))
}

func (h *Handler) getResource(c *gin.Context) {
	res, status, err := h.ledger.GetResource(c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	avail, err := h.ledger.Available(res.ID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, resourceJSON(res, status, avail))
}

type restockRequest struct {
	Delta int `json:"delta" binding:"required"`
}

func (h *Handler) restockResource(c *gin.Context) {
	var req restockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	res, err := h.ledger.Restock(c.Param("id"), req.Delta)
	if err != nil {
		writeError(c, err)
		return
	}
	h.persist(c.Request.Context(), "resource", func(ctx context.Context) error {
		return h.store.SaveResource(ctx, res)
	})
	c.JSON(http.StatusOK, gin.H{"id": res.ID, "quantity": res.Quantity})
}

type allocationRequest struct {
	DisasterID string `json:"disaster_id" binding:"required"`
	Items      []struct {
		Category string `json:"category"`
		Quantity int    `json:"quantity"`
	} `json:"items" binding:"required"`
}

func (h *Handler) requestAllocations(c *gin.Context) {
	var req allocationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	d, err := h.registry.Get(req.DisasterID)
	if err != nil {
		writeError(c, err)
		return
	}

	items := make([]ledger.RequestItem, 0, len(req.Items))
	for _, it := range req.Items {
		items = append(items, ledger.RequestItem{Category: it.Category, Quantity: it.Quantity})
	}

	near := geoindex.Point{Lat: d.Latitude, Lon: d.Longitude}
	allocations, err := h.engine.Request(req.DisasterID, near, items, actorID(c))
	if err != nil {
		writeError(c, err)
		return
	}

	out := make([]gin.H, 0, len(allocations))
	for _, a := range allocations {
		h.persist(c.Request.Context(), "allocation", func(ctx context.Context) error {
			return h.store.SaveAllocation(ctx, a)
		})
		out = append(out, allocationJSON(a))
	}
	c.JSON(http.StatusCreated, gin.H{"allocations": out})
}

type statusRequest struct {
	Status string `json:"status" binding:"required"`
}

func (h *Handler) transitionAllocation(c *gin.Context) {
	var req statusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	a, err := h.ledger.Transition(c.Param("id"), models.AllocationStatus(req.Status))
	if err != nil {
		writeError(c, err)
		return
	}
	h.persist(c.Request.Context(), "allocation", func(ctx context.Context) error {
		return h.store.SaveAllocation(ctx, a)
	})
	c.JSON(http.StatusOK, allocationJSON(a))
}

type addCenterRequest struct {
	Name      string  `json:"name" binding:"required"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Capacity  int     `json:"capacity" binding:"required"`
	Occupancy int     `json:"occupancy"`
}

func (h *Handler) addCenter(c *gin.Context) {
	var req addCenterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	center, err := h.evac.AddCenter(&models.EvacuationCenter{
		Name:      req.Name,
		Latitude:  req.Latitude,
		Longitude: req.Longitude,
		Capacity:  req.Capacity,
		Occupancy: req.Occupancy,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	h.persist(c.Request.Context(), "center", func(ctx context.Context) error {
		return h.store.SaveCenter(ctx, center)
	})
	c.JSON(http.StatusCreated, centerJSON(center))
}

func (h *Handler) listCenters(c *gin.Context) {
	centers := h.evac.List()
	out := make([]gin.H, 0, len(centers))
	for _, center := range centers {
		out = append(out, centerJSON(center))
	}
	c.JSON(http.StatusOK, gin.H{"centers": out})
}

type evacuationRequest struct {
	Count     int     `json:"count" binding:"required"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

func (h *Handler) assignEvacuees(c *gin.Context) {
	var req evacuationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	a, err := h.evac.Assign(req.Count, geoindex.Point{Lat: req.Latitude, Lon: req.Longitude})
	if err != nil {
		writeError(c, err)
		return
	}
	if center, err := h.evac.Get(a.CenterID); err == nil {
		h.persist(c.Request.Context(), "center", func(ctx context.Context) error {
			return h.store.SaveCenter(ctx, center)
		})
	}
	c.JSON(http.StatusCreated, gin.H{
		"id":          a.ID,
		"center_id":   a.CenterID,
		"count":       a.Count,
		"assigned_at": a.AssignedAt,
	})
}

type releaseRequest struct {
	Count int `json:"count" binding:"required"`
}

func (h *Handler) releaseEvacuees(c *gin.Context) {
	var req releaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	center, err := h.evac.Release(c.Param("id"), req.Count)
	if err != nil {
		writeError(c, err)
		return
	}
	h.persist(c.Request.Context(), "center", func(ctx context.Context) error {
		return h.store.SaveCenter(ctx, center)
	})
	c.JSON(http.StatusOK, centerJSON(center))
}

func (h *Handler) closeCenter(c *gin.Context) {
	center, err := h.evac.Close(c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	h.persist(c.Request.Context(), "center", func(ctx context.Context) error {
		return h.store.SaveCenter(ctx, center)
	})
	c.JSON(http.StatusOK, centerJSON(center))
}

func (h *Handler) reopenCenter(c *gin.Context) {
	center, err := h.evac.Reopen(c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	h.persist(c.Request.Context(), "center", func(ctx context.Context) error {
		return h.store.SaveCenter(ctx, center)
	})
	c.JSON(http.StatusOK, centerJSON(center))
}

type addVolunteerRequest struct {
	Skills         []string `json:"skills"`
	Latitude       float64  `json:"latitude"`
	Longitude      float64  `json:"longitude"`
	Specialization string   `json:"specialization"`
	ExperienceYrs  int      `json:"experience_yrs"`
}

func (h *Handler) addVolunteer(c *gin.Context) {
	var req addVolunteerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	v, err := h.dispatcher.AddVolunteer(&models.Volunteer{
		UserID:         actorID(c),
		Skills:         req.Skills,
		Available:      true,
		Latitude:       req.Latitude,
		Longitude:      req.Longitude,
		Specialization: req.Specialization,
		ExperienceYrs:  req.ExperienceYrs,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	h.persist(c.Request.Context(), "volunteer", func(ctx context.Context) error {
		return h.store.SaveVolunteer(ctx, v)
	})
	c.JSON(http.StatusCreated, gin.H{
		"id":             v.ID,
		"skills":         v.Skills,
		"available":      v.Available,
		"experience_yrs": v.ExperienceYrs,
	})
}

type assignmentRequest struct {
	ReportID    string `json:"report_id" binding:"required"`
	VolunteerID string `json:"volunteer_id" binding:"required"`
}

func (h *Handler) createAssignment(c *gin.Context) {
	var req assignmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	rep, err := h.validator.Get(req.ReportID)
	if err != nil {
		writeError(c, err)
		return
	}
	at, err := h.validator.Point(req.ReportID)
	if err != nil {
		writeError(c, err)
		return
	}

	a, err := h.dispatcher.Dispatch(rep, at, req.VolunteerID)
	if err != nil {
		writeError(c, err)
		return
	}
	h.persist(c.Request.Context(), "assignment", func(ctx context.Context) error {
		return h.store.SaveAssignment(ctx, a)
	})
	c.JSON(http.StatusCreated, assignmentJSON(a))
}

func (h *Handler) transitionAssignment(c *gin.Context) {
	var req statusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	a, err := h.dispatcher.Transition(c.Param("id"), models.AssignmentStatus(req.Status))
	if err != nil {
		writeError(c, err)
		return
	}
	h.persist(c.Request.Context(), "assignment", func(ctx context.Context) error {
		return h.store.SaveAssignment(ctx, a)
	})
	c.JSON(http.StatusOK, assignmentJSON(a))
}

func (h *Handler) listEvents(c *gin.Context) {
	if h.journal == nil {
		c.JSON(http.StatusOK, gin.H{"events": []events.Event{}})
		return
	}

	filter := store.EventFilter{Limit: 100}
	if l := c.Query("limit"); l != "" {
		if n, err := strconv.Atoi(l); err == nil && n > 0 && n <= 500 {
			filter.Limit = n
		}
	}
	if t := c.Query("type"); t != "" {
		et := events.Type(t)
		filter.Type = &et
	}
	if s := c.Query("since"); s != "" {
		if ts, err := time.Parse(time.RFC3339, s); err == nil {
			filter.Since = &ts
		}
	}

	evs, err := h.journal.ListEvents(c.Request.Context(), filter)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"events": evs})
}

// listRoles exposes the static role capability table. Callers enforce it;
// the engine does not.
func (h *Handler) listRoles(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"roles": models.RoleCapabilities()})
}

func (h *Handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func reportJSON(r *models.Report) gin.H {
	return gin.H{
		"id":                 r.ID,
		"reporter_id":        r.ReporterID,
		"disaster_type":      string(r.DisasterType),
		"estimated_severity": r.EstimatedSeverity,
		"casualties":         r.Casualties,
		"injuries":           r.Injuries,
		"missing":            r.Missing,
		"affected":           r.Affected,
		"media_count":        r.MediaCount,
		"required_skills":    r.RequiredSkills,
		"impact_radius_m":    r.ImpactRadiusM,
		"status":             string(r.Status),
		"credibility":        r.Credibility,
		"validator_id":       r.ValidatorID,
		"validation_notes":   r.ValidationNotes,
		"validated_at":       r.ValidatedAt,
		"submitted_at":       r.SubmittedAt,
	}
}

func disasterJSON(d *models.Disaster) gin.H {
	return gin.H{
		"id":              d.ID,
		"type":            string(d.Type),
		"severity":        d.Severity,
		"priority":        string(d.Priority),
		"status":          string(d.Status),
		"start_time":      d.StartTime,
		"end_time":        d.EndTime,
		"latitude":        d.Latitude,
		"longitude":       d.Longitude,
		"impact_radius_m": d.ImpactRadiusM,
		"report_ids":      d.ReportIDs,
		"affected":        d.Affected,
	}
}

func resourceJSON(r *models.EmergencyResource, status models.ResourceStatus, available int) gin.H {
	return gin.H{
		"id":        r.ID,
		"category":  r.Category,
		"quantity":  r.Quantity,
		"available": available,
		"status":    string(status),
		"latitude":  r.Latitude,
		"longitude": r.Longitude,
	}
}

func allocationJSON(a *models.ResourceAllocation) gin.H {
	return gin.H{
		"id":          a.ID,
		"resource_id": a.ResourceID,
		"disaster_id": a.DisasterID,
		"quantity":    a.Quantity,
		"status":      string(a.Status),
		"created_at":  a.CreatedAt,
		"updated_at":  a.UpdatedAt,
	}
}

func centerJSON(c *models.EvacuationCenter) gin.H {
	return gin.H{
		"id":        c.ID,
		"name":      c.Name,
		"latitude":  c.Latitude,
		"longitude": c.Longitude,
		"capacity":  c.Capacity,
		"occupancy": c.Occupancy,
		"status":    string(c.Status()),
	}
}

func assignmentJSON(a *models.VolunteerAssignment) gin.H {
	return gin.H{
		"id":           a.ID,
		"volunteer_id": a.VolunteerID,
		"report_id":    a.ReportID,
		"status":       string(a.Status),
		"assigned_at":  a.AssignedAt,
		"en_route_at":  a.EnRouteAt,
		"arrived_at":   a.ArrivedAt,
		"completed_at": a.CompletedAt,
		"cancelled_at": a.CancelledAt,
	}
}
