package server

import (
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/zulandar/docket/internal/agenda"
	"github.com/zulandar/docket/internal/apperr"
	"github.com/zulandar/docket/internal/identity"
	"github.com/zulandar/docket/internal/meeting"
	"github.com/zulandar/docket/internal/memo"
	"github.com/zulandar/docket/internal/metrics"
	"github.com/zulandar/docket/internal/workflow"
)

const maxUploadBytes = 32 << 20

// registerRoutes sets up all API routes.
func registerRoutes(router *gin.Engine, svc *workflow.Service, auth identity.Provider) {
	router.GET("/healthz", handleHealth(svc))
	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	api := router.Group("/api", authenticate(auth, svc.DB))

	api.POST("/memos", handleCreateMemo(svc))
	api.GET("/memos", handleListMemos(svc))
	api.GET("/memos/:id", handleGetMemo(svc))
	api.PATCH("/memos/:id", handleUpdateMemo(svc))
	api.DELETE("/memos/:id", handleDeleteMemo(svc))

	api.POST("/meetings", handleCreateMeeting(svc))
	api.GET("/meetings", handleListMeetings(svc))
	api.GET("/meetings/:id", handleGetMeeting(svc))
	api.PUT("/meetings/:id", handleUpdateMeeting(svc))
	api.DELETE("/meetings/:id", handleDeleteMeeting(svc))
	api.PUT("/meetings/:id/participants", handleSetParticipants(svc))
	api.POST("/meetings/:id/participants", handleAddParticipant(svc))
	api.DELETE("/meetings/:id/participants/:user", handleRemoveParticipant(svc))
	api.GET("/meetings/:id/agenda", handleListAgenda(svc))
	api.POST("/meetings/:id/agenda", handleCreateAgendaItem(svc))
	api.GET("/meetings/:id/agenda/next-order", handleNextSortOrder(svc))

	api.GET("/agenda/:id", handleGetAgendaItem(svc))
	api.PUT("/agenda/:id", handleUpdateAgendaItem(svc))
	api.DELETE("/agenda/:id", handleDeleteAgendaItem(svc))
	api.GET("/agenda/:id/documents", handleListDocuments(svc))
	api.POST("/agenda/:id/documents", handleAttachDocument(svc))

	api.GET("/documents/:id", handleGetDocument(svc))
	api.DELETE("/documents/:id", handleDetachDocument(svc))

	api.GET("/notifications", handleInbox(svc))
	api.POST("/notifications/:id/ack", handleAcknowledge(svc))
}

func handleHealth(svc *workflow.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		sqlDB, err := svc.DB.DB()
		if err == nil {
			err = sqlDB.PingContext(c.Request.Context())
		}
		if err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
}

// pathID parses a positive integer path parameter.
func pathID(c *gin.Context, name string) (uint, bool) {
	v, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || v == 0 {
		renderError(c, apperr.Validation("server."+name, fmt.Sprintf("%s must be a positive integer", name)))
		return 0, false
	}
	return uint(v), true
}

// queryID parses an optional positive integer query parameter.
func queryID(c *gin.Context, name string) (uint, bool) {
	raw := c.Query(name)
	if raw == "" {
		return 0, true
	}
	v, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || v == 0 {
		renderError(c, apperr.Validation("server."+name, fmt.Sprintf("%s must be a positive integer", name)))
		return 0, false
	}
	return uint(v), true
}

func bindJSON(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		renderError(c, apperr.Validation("server.bind", "malformed request body: "+err.Error()))
		return false
	}
	return true
}

// --- memos ---

type createMemoRequest struct {
	memo.Draft
	AffectedEntities []string `json:"affected_entities"`
}

type updateMemoRequest struct {
	Name              *string   `json:"name"`
	Summary           *string   `json:"summary"`
	Body              *string   `json:"body"`
	MemoType          *string   `json:"memo_type"`
	Priority          *string   `json:"priority"`
	Status            *string   `json:"status"`
	MinistryID        *uint     `json:"ministry_id"`
	StateDepartmentID *uint     `json:"state_department_id"`
	AgencyID          *uint     `json:"agency_id"`
	AffectedEntities  *[]string `json:"affected_entities"`
}

func (r updateMemoRequest) patch() memo.Patch {
	return memo.Patch{
		Name:              r.Name,
		Summary:           r.Summary,
		Body:              r.Body,
		MemoType:          r.MemoType,
		Priority:          r.Priority,
		Status:            r.Status,
		MinistryID:        r.MinistryID,
		StateDepartmentID: r.StateDepartmentID,
		AgencyID:          r.AgencyID,
	}
}

func handleCreateMemo(svc *workflow.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req createMemoRequest
		if !bindJSON(c, &req) {
			return
		}
		created, err := svc.CreateMemo(c.Request.Context(), actorFrom(c), req.Draft, req.AffectedEntities)
		if err != nil {
			renderError(c, err)
			return
		}
		c.JSON(http.StatusCreated, created)
	}
}

func handleListMemos(svc *workflow.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		ministry, ok := queryID(c, "ministry_id")
		if !ok {
			return
		}
		creator, ok := queryID(c, "created_by")
		if !ok {
			return
		}
		memos, err := svc.ListMemos(c.Request.Context(), memo.Filter{
			Status:     c.Query("status"),
			MinistryID: ministry,
			CreatedBy:  creator,
		})
		if err != nil {
			renderError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"memos": memos})
	}
}

func handleGetMemo(svc *workflow.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathID(c, "id")
		if !ok {
			return
		}
		v, err := svc.GetMemo(c.Request.Context(), id)
		if err != nil {
			renderError(c, err)
			return
		}
		c.JSON(http.StatusOK, v)
	}
}

func handleUpdateMemo(svc *workflow.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathID(c, "id")
		if !ok {
			return
		}
		var req updateMemoRequest
		if !bindJSON(c, &req) {
			return
		}
		updated, err := svc.UpdateMemo(c.Request.Context(), actorFrom(c), id, req.patch(), req.AffectedEntities)
		if err != nil {
			renderError(c, err)
			return
		}
		c.JSON(http.StatusOK, updated)
	}
}

func handleDeleteMemo(svc *workflow.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathID(c, "id")
		if !ok {
			return
		}
		if err := svc.DeleteMemo(c.Request.Context(), actorFrom(c), id); err != nil {
			renderError(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

// --- meetings ---

type createMeetingRequest struct {
	meeting.Record
	Participants []uint `json:"participants"`
}

type participantsRequest struct {
	UserIDs []uint `json:"user_ids"`
}

type participantRequest struct {
	UserID uint `json:"user_id"`
}

func handleCreateMeeting(svc *workflow.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req createMeetingRequest
		if !bindJSON(c, &req) {
			return
		}
		m, err := svc.CreateMeeting(c.Request.Context(), actorFrom(c), req.Record, req.Participants)
		if err != nil {
			renderError(c, err)
			return
		}
		c.JSON(http.StatusCreated, m)
	}
}

func handleListMeetings(svc *workflow.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		f := meeting.Filter{Type: c.Query("type")}
		if raw := c.Query("date"); raw != "" {
			day, err := time.Parse(time.DateOnly, raw)
			if err != nil {
				renderError(c, apperr.Validation("server.date", "date must be YYYY-MM-DD"))
				return
			}
			f.Date = &day
		}
		meetings, err := svc.ListMeetings(c.Request.Context(), f)
		if err != nil {
			renderError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"meetings": meetings})
	}
}

func handleGetMeeting(svc *workflow.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathID(c, "id")
		if !ok {
			return
		}
		v, err := svc.GetMeeting(c.Request.Context(), id)
		if err != nil {
			renderError(c, err)
			return
		}
		c.JSON(http.StatusOK, v)
	}
}

func handleUpdateMeeting(svc *workflow.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathID(c, "id")
		if !ok {
			return
		}
		var r meeting.Record
		if !bindJSON(c, &r) {
			return
		}
		m, err := svc.UpdateMeeting(c.Request.Context(), actorFrom(c), id, r)
		if err != nil {
			renderError(c, err)
			return
		}
		c.JSON(http.StatusOK, m)
	}
}

func handleDeleteMeeting(svc *workflow.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathID(c, "id")
		if !ok {
			return
		}
		if err := svc.DeleteMeeting(c.Request.Context(), actorFrom(c), id); err != nil {
			renderError(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

func handleSetParticipants(svc *workflow.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathID(c, "id")
		if !ok {
			return
		}
		var req participantsRequest
		if !bindJSON(c, &req) {
			return
		}
		if err := svc.SetParticipants(c.Request.Context(), actorFrom(c), id, req.UserIDs); err != nil {
			renderError(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

func handleAddParticipant(svc *workflow.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathID(c, "id")
		if !ok {
			return
		}
		var req participantRequest
		if !bindJSON(c, &req) {
			return
		}
		if err := svc.AddParticipant(c.Request.Context(), actorFrom(c), id, req.UserID); err != nil {
			renderError(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

func handleRemoveParticipant(svc *workflow.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathID(c, "id")
		if !ok {
			return
		}
		user, ok := pathID(c, "user")
		if !ok {
			return
		}
		if err := svc.RemoveParticipant(c.Request.Context(), actorFrom(c), id, user); err != nil {
			renderError(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

// --- agenda ---

func handleListAgenda(svc *workflow.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathID(c, "id")
		if !ok {
			return
		}
		items, err := svc.ListAgenda(c.Request.Context(), id)
		if err != nil {
			renderError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"items": items})
	}
}

func handleCreateAgendaItem(svc *workflow.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathID(c, "id")
		if !ok {
			return
		}
		var f agenda.Fields
		if !bindJSON(c, &f) {
			return
		}
		item, err := svc.CreateAgendaItem(c.Request.Context(), actorFrom(c), id, f)
		if err != nil {
			renderError(c, err)
			return
		}
		c.JSON(http.StatusCreated, item)
	}
}

func handleNextSortOrder(svc *workflow.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathID(c, "id")
		if !ok {
			return
		}
		next, err := svc.NextSortOrder(c.Request.Context(), id)
		if err != nil {
			renderError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"next_sort_order": next})
	}
}

func handleGetAgendaItem(svc *workflow.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathID(c, "id")
		if !ok {
			return
		}
		item, err := svc.GetAgendaItem(c.Request.Context(), id)
		if err != nil {
			renderError(c, err)
			return
		}
		c.JSON(http.StatusOK, item)
	}
}

func handleUpdateAgendaItem(svc *workflow.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathID(c, "id")
		if !ok {
			return
		}
		var f agenda.Fields
		if !bindJSON(c, &f) {
			return
		}
		item, err := svc.UpdateAgendaItem(c.Request.Context(), actorFrom(c), id, f)
		if err != nil {
			renderError(c, err)
			return
		}
		c.JSON(http.StatusOK, item)
	}
}

func handleDeleteAgendaItem(svc *workflow.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathID(c, "id")
		if !ok {
			return
		}
		if err := svc.DeleteAgendaItem(c.Request.Context(), actorFrom(c), id); err != nil {
			renderError(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

// --- documents ---

func handleListDocuments(svc *workflow.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathID(c, "id")
		if !ok {
			return
		}
		docs, err := svc.ListDocuments(c.Request.Context(), id)
		if err != nil {
			renderError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"documents": docs})
	}
}

// handleAttachDocument accepts a multipart upload in the "file" field.
func handleAttachDocument(svc *workflow.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathID(c, "id")
		if !ok {
			return
		}
		fh, err := c.FormFile("file")
		if err != nil {
			renderError(c, apperr.Validation("server.upload", "multipart field \"file\" is required"))
			return
		}
		if fh.Size > maxUploadBytes {
			renderError(c, apperr.Validation("server.upload", fmt.Sprintf("file exceeds %d bytes", maxUploadBytes)))
			return
		}
		f, err := fh.Open()
		if err != nil {
			renderError(c, fmt.Errorf("server: open upload: %w", err))
			return
		}
		defer f.Close()
		data, err := io.ReadAll(io.LimitReader(f, maxUploadBytes+1))
		if err != nil {
			renderError(c, fmt.Errorf("server: read upload: %w", err))
			return
		}

		doc, err := svc.AttachDocument(c.Request.Context(), actorFrom(c), id, data, fh.Filename)
		if err != nil {
			renderError(c, err)
			return
		}
		c.JSON(http.StatusCreated, doc)
	}
}

func handleGetDocument(svc *workflow.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathID(c, "id")
		if !ok {
			return
		}
		doc, err := svc.GetDocument(c.Request.Context(), id)
		if err != nil {
			renderError(c, err)
			return
		}
		c.JSON(http.StatusOK, doc)
	}
}

func handleDetachDocument(svc *workflow.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathID(c, "id")
		if !ok {
			return
		}
		if err := svc.DetachDocument(c.Request.Context(), actorFrom(c), id); err != nil {
			renderError(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

// --- notifications ---

func handleInbox(svc *workflow.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		list, err := svc.Inbox(c.Request.Context(), actorFrom(c))
		if err != nil {
			renderError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"notifications": list})
	}
}

func handleAcknowledge(svc *workflow.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathID(c, "id")
		if !ok {
			return
		}
		if err := svc.Acknowledge(c.Request.Context(), actorFrom(c), id); err != nil {
			renderError(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}
