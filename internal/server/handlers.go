package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/estateops/taskdesk/internal/export"
	"github.com/estateops/taskdesk/models"
	"github.com/estateops/taskdesk/store"
	"github.com/estateops/taskdesk/types"
)

// httpError maps the store's error taxonomy onto HTTP statuses:
// validation → 400, not found → 404, conflict → 409, anything else → 500.
func httpError(err error) *echo.HTTPError {
	switch {
	case errors.Is(err, types.ErrValidation):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, types.ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, types.ErrConflict):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
}

// splitSet parses a comma-separated query parameter into a set, dropping
// empty segments.
func splitSet(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func intParam(c echo.Context, name string) int {
	v, err := strconv.Atoi(c.QueryParam(name))
	if err != nil {
		return 0
	}
	return v
}

func (s *Server) handleListTasks(c echo.Context) error {
	filter := store.TaskFilter{
		Query:      c.QueryParam("q"),
		Statuses:   splitSet(c.QueryParam("status")),
		Priorities: splitSet(c.QueryParam("priority")),
		Assignees:  splitSet(c.QueryParam("assignee")),
		Categories: splitSet(c.QueryParam("category")),
		Labels:     splitSet(c.QueryParam("label")),
		Page:       intParam(c, "page"),
		PageSize:   intParam(c, "pageSize"),
	}
	page, err := s.tasks.ListTasks(filter)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, page)
}

func (s *Server) handleGetTask(c echo.Context) error {
	task, err := s.tasks.GetTask(c.Param("id"))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, task)
}

// handleCreateTasks accepts either one task object or an array of them.
func (s *Server) handleCreateTasks(c echo.Context) error {
	var raw json.RawMessage
	if err := c.Bind(&raw); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid JSON body")
	}

	if isJSONArray(raw) {
		var tasks []models.Task
		if err := json.Unmarshal(raw, &tasks); err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid task array")
		}
		created, err := s.tasks.CreateTasks(tasks)
		if err != nil {
			return httpError(err)
		}
		return c.JSON(http.StatusCreated, created)
	}

	var task models.Task
	if err := json.Unmarshal(raw, &task); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid task object")
	}
	created, err := s.tasks.CreateTask(task)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, created)
}

func isJSONArray(raw []byte) bool {
	for _, b := range raw {
		switch b {
		case ' ', '\t', '\r', '\n':
			continue
		case '[':
			return true
		default:
			return false
		}
	}
	return false
}

// extractPatch unwraps the optional {patch: {...}} envelope. A flat body is
// the patch itself.
func extractPatch(body map[string]interface{}) map[string]interface{} {
	if inner, ok := body["patch"].(map[string]interface{}); ok {
		return inner
	}
	return body
}

func (s *Server) handlePatchTask(c echo.Context) error {
	var body map[string]interface{}
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid JSON body")
	}
	task, err := s.tasks.PatchTask(c.Param("id"), extractPatch(body))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, task)
}

// handlePatchTasksBatch applies a list of patches, each element carrying its
// target id alongside either a patch envelope or flat fields.
func (s *Server) handlePatchTasksBatch(c echo.Context) error {
	var items []map[string]interface{}
	if err := c.Bind(&items); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid JSON body; expected an array")
	}

	updated := make([]models.Task, 0, len(items))
	for i, item := range items {
		id, _ := item["id"].(string)
		if id == "" {
			return echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("element %d is missing an id", i))
		}
		patch := extractPatch(item)
		delete(patch, "id")
		task, err := s.tasks.PatchTask(id, patch)
		if err != nil {
			return httpError(err)
		}
		updated = append(updated, task)
	}
	return c.JSON(http.StatusOK, updated)
}

func (s *Server) handleDeleteTask(c echo.Context) error {
	if err := s.tasks.DeleteTask(c.Param("id")); err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, DeleteResponse{Deleted: 1})
}

func (s *Server) handleDeleteTasksBatch(c echo.Context) error {
	var req DeleteBatchRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid JSON body")
	}
	if len(req.IDs) == 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "ids must not be empty")
	}
	n, err := s.tasks.DeleteTasks(req.IDs)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, DeleteResponse{Deleted: n})
}

func (s *Server) handleAppendThread(c echo.Context) error {
	var req ThreadRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid JSON body")
	}
	task, err := s.tasks.AppendThreadMessage(c.Param("id"), req.Author, req.Text)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, task)
}

func (s *Server) handleAddParticipant(c echo.Context) error {
	var req ParticipantRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid JSON body")
	}
	task, err := s.tasks.AddParticipant(c.Param("id"), models.Participant{
		Name:     req.Name,
		Email:    req.Email,
		WhatsApp: req.WhatsApp,
	})
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, task)
}

func (s *Server) handleSetLink(c echo.Context) error {
	var req LinkRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid JSON body")
	}
	var link *models.LinkedEntity
	if req.Type != "" || req.TargetID != "" {
		link = &models.LinkedEntity{Type: req.Type, ID: req.TargetID}
	}
	task, err := s.tasks.SetLink(c.Param("id"), link)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, task)
}

func (s *Server) handleUploadAttachment(c echo.Context) error {
	var upload store.AttachmentUpload
	if err := c.Bind(&upload); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid JSON body")
	}
	attachment, err := s.tasks.AddAttachment(c.Param("id"), upload)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, attachment)
}

func (s *Server) handleStreamAttachment(c echo.Context) error {
	f, resolved, err := s.tasks.OpenAttachment(c.Param("id"), c.Param("attId"))
	if err != nil {
		return httpError(err)
	}
	defer func() { _ = f.Close() }()

	contentType := resolved.Type
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	c.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", resolved.Name))
	return c.Stream(http.StatusOK, contentType, f)
}

func (s *Server) handleDeleteAttachment(c echo.Context) error {
	if err := s.tasks.RemoveAttachment(c.Param("id"), c.Param("attId")); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

// handleArchiveTask snapshots a done task into the archive and removes it
// from the live collection.
func (s *Server) handleArchiveTask(c echo.Context) error {
	task, err := s.tasks.GetTask(c.Param("id"))
	if err != nil {
		return httpError(err)
	}
	entry, err := s.archive.CreateFromTask(task)
	if err != nil {
		return httpError(err)
	}
	if err := s.tasks.DeleteTask(task.ID); err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, entry)
}

func (s *Server) handleCalendarOne(c echo.Context) error {
	task, err := s.tasks.GetTask(c.Param("id"))
	if err != nil {
		return httpError(err)
	}
	ics := export.ICSCalendar([]models.Task{task}, time.Now().UTC())
	return c.Blob(http.StatusOK, "text/calendar", []byte(ics))
}

func (s *Server) handleCalendarAll(c echo.Context) error {
	all, err := s.collectAllTasks()
	if err != nil {
		return httpError(err)
	}
	ics := export.ICSCalendar(all, time.Now().UTC())
	return c.Blob(http.StatusOK, "text/calendar", []byte(ics))
}

func (s *Server) handlePrintTask(c echo.Context) error {
	task, err := s.tasks.GetTask(c.Param("id"))
	if err != nil {
		return httpError(err)
	}
	html, err := export.PrintHTML(task)
	if err != nil {
		return httpError(err)
	}
	return c.HTMLBlob(http.StatusOK, html)
}

// maxExportPageSize matches the filter engine's clamp; exports walk pages.
const maxExportPageSize = 200

// collectAllTasks walks the filter engine page by page so exports cover the
// whole collection, not just the first page.
func (s *Server) collectAllTasks() ([]models.Task, error) {
	var all []models.Task
	for page := 1; ; page++ {
		result, err := s.tasks.ListTasks(store.TaskFilter{Page: page, PageSize: maxExportPageSize})
		if err != nil {
			return nil, err
		}
		all = append(all, result.Items...)
		if len(all) >= result.Total || len(result.Items) == 0 {
			break
		}
	}
	return all, nil
}

func (s *Server) handleExportXLSX(c echo.Context) error {
	all, err := s.collectAllTasks()
	if err != nil {
		return httpError(err)
	}

	data, err := export.XLSXBytes(all)
	if err != nil {
		return httpError(err)
	}
	c.Response().Header().Set(echo.HeaderContentDisposition, `attachment; filename="tasks.xlsx"`)
	return c.Blob(http.StatusOK, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", data)
}
