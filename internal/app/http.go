package app

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"menuhall/api/internal/menu"
	"menuhall/api/internal/search"
)

type HTTPServer struct {
	service    *Service
	corsOrigin string
}

func NewHTTPServer(service *Service, corsOrigin string) *HTTPServer {
	return &HTTPServer{service: service, corsOrigin: corsOrigin}
}

func (s *HTTPServer) Handler() http.Handler {
	return s.withMiddleware(http.HandlerFunc(s.handle))
}

func (s *HTTPServer) handle(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodOptions {
		writeJSON(w, http.StatusNoContent, map[string]any{})
		return
	}

	if (r.Method == http.MethodGet || r.Method == http.MethodHead) && r.URL.Path == "/api/health" {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		return
	}

	if (r.Method == http.MethodGet || r.Method == http.MethodHead) && r.URL.Path == "/api/ready" {
		s.handleReady(w, r)
		return
	}

	if r.Method == http.MethodGet && r.URL.Path == "/api/catalog" {
		s.handleCatalog(w, r)
		return
	}

	if r.Method == http.MethodGet && r.URL.Path == "/api/items/search" {
		s.handleItemSearch(w, r)
		return
	}

	if r.Method == http.MethodPost && r.URL.Path == "/api/menus/generate" {
		var body GenerateInput
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		view, err := s.service.GenerateGrid(r.Context(), body)
		if err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		writeJSON(w, http.StatusOK, view)
		return
	}

	parts := splitPath(r.URL.Path)
	if len(parts) >= 3 && parts[0] == "api" && parts[1] == "menus" {
		s.handleMenu(w, r, parts[2], parts[3:])
		return
	}

	writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
}

func (s *HTTPServer) handleMenu(w http.ResponseWriter, r *http.Request, menuID string, rest []string) {
	switch {
	case len(rest) == 0 && r.Method == http.MethodGet:
		view, err := s.service.GridSnapshot(r.Context(), menuID)
		if err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		writeJSON(w, http.StatusOK, view)

	case len(rest) == 2 && rest[0] == "cells" && r.Method == http.MethodPost:
		s.handleCellOp(w, r, menuID, rest[1])

	case len(rest) == 2 && rest[0] == "clipboard" && rest[1] == "clear" && r.Method == http.MethodPost:
		if err := s.service.ClearClipboard(menuID); err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})

	case len(rest) == 1 && rest[0] == "conflicts" && r.Method == http.MethodGet:
		s.handleConflicts(w, r, menuID)

	case len(rest) == 2 && rest[0] == "conflicts" && rest[1] == "dismiss" && r.Method == http.MethodPost:
		var body struct {
			IDs []string `json:"ids"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		if err := s.service.DismissConflicts(r.Context(), menuID, body.IDs); err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})

	case len(rest) == 2 && rest[0] == "assignments" && rest[1] == "effective" && r.Method == http.MethodPost:
		var body struct {
			Cell       CellInput `json:"cell"`
			MenuItemID string    `json:"menuItemId"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		targets, err := s.service.EffectiveAssignment(menuID, body.Cell, body.MenuItemID)
		if err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"targets": targets})

	case len(rest) == 1 && rest[0] == "assignments" && r.Method == http.MethodPost:
		var body struct {
			Cell       CellInput     `json:"cell"`
			MenuItemID string        `json:"menuItemId"`
			Targets    []menu.Target `json:"targets"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		if err := s.service.SetAssignment(menuID, body.Cell, body.MenuItemID, body.Targets); err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})

	case len(rest) == 1 && rest[0] == "save" && r.Method == http.MethodPost:
		if err := s.service.SaveDraft(r.Context(), menuID); err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})

	case len(rest) == 1 && rest[0] == "activate" && r.Method == http.MethodPost:
		result, err := s.service.Activate(r.Context(), menuID)
		if err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		writeJSON(w, http.StatusOK, result)

	default:
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
	}
}

func (s *HTTPServer) handleCellOp(w http.ResponseWriter, r *http.Request, menuID, op string) {
	var body struct {
		Cell        CellInput `json:"cell"`
		MenuItemID  string    `json:"menuItemId"`
		MenuItemIDs []string  `json:"menuItemIds"`
		Text        string    `json:"text"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}

	var result *CellMutationResult
	var err error
	switch op {
	case "add":
		result, err = s.service.AddItem(r.Context(), menuID, body.Cell, body.MenuItemID)
	case "remove":
		result, err = s.service.RemoveItem(r.Context(), menuID, body.Cell, body.MenuItemID)
	case "apply":
		result, err = s.service.ApplyItems(r.Context(), menuID, body.Cell, body.MenuItemIDs)
	case "description":
		if selErr := s.service.SelectDescription(menuID, body.Cell, body.MenuItemID, body.Text); selErr != nil {
			status, code, message, details := mapError(selErr)
			writeError(w, status, code, message, details)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		return
	case "copy":
		if copyErr := s.service.CopyCell(menuID, body.Cell); copyErr != nil {
			status, code, message, details := mapError(copyErr)
			writeError(w, status, code, message, details)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		return
	case "paste":
		result, err = s.service.PasteCell(r.Context(), menuID, body.Cell)
	default:
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
		return
	}

	if err != nil {
		status, code, message, details := mapError(err)
		writeError(w, status, code, message, details)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// handleConflicts returns the full session ledger, or only the entries
// touching one cell when the coordinate query params are present.
func (s *HTTPServer) handleConflicts(w http.ResponseWriter, r *http.Request, menuID string) {
	q := r.URL.Query()
	var entries []menu.ConflictEntry
	var err error
	if q.Get("date") != "" {
		cell := CellInput{
			Date:          q.Get("date"),
			ServiceID:     q.Get("serviceId"),
			SubServiceID:  q.Get("subServiceId"),
			MealPlanID:    q.Get("mealPlanId"),
			SubMealPlanID: q.Get("subMealPlanId"),
		}
		entries, err = s.service.CellConflicts(menuID, cell)
	} else {
		entries, err = s.service.Conflicts(menuID)
	}
	if err != nil {
		status, code, message, details := mapError(err)
		writeError(w, status, code, message, details)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"conflicts": entries})
}

func (s *HTTPServer) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := "ready"
	statusCode := http.StatusOK
	checks := map[string]any{
		"database": map[string]any{"status": "ok"},
	}

	if err := s.service.Ping(ctx); err != nil {
		status = "not_ready"
		statusCode = http.StatusServiceUnavailable
		checks["database"] = map[string]any{
			"status": "error",
			"error":  err.Error(),
		}
	}

	if s.service.cache != nil {
		checks["redis"] = map[string]any{"status": "ok"}
		if err := s.service.cache.Ping(ctx); err != nil {
			// Redis is a cache; losing it degrades, not fails.
			checks["redis"] = map[string]any{
				"status": "degraded",
				"error":  err.Error(),
			}
		}
	}

	writeJSON(w, statusCode, map[string]any{
		"ok":     status == "ready",
		"status": status,
		"checks": checks,
	})
}

func (s *HTTPServer) handleCatalog(w http.ResponseWriter, r *http.Request) {
	catalog, err := s.service.Catalog(r.Context())
	if err != nil {
		status, code, message, details := mapError(err)
		writeError(w, status, code, message, details)
		return
	}
	writeJSON(w, http.StatusOK, catalog)
}

func (s *HTTPServer) handleItemSearch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))
	resp, err := s.service.SearchItems(search.Query{
		Text:   q.Get("q"),
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		status, code, message, details := mapError(err)
		writeError(w, status, code, message, details)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *HTTPServer) withMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = randomRequestID()
		}
		ctx := context.WithValue(r.Context(), requestIDKey{}, requestID)
		r = r.WithContext(ctx)

		started := time.Now()
		writer := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		setCORSHeaders(writer.Header(), s.corsOrigin)
		writer.Header().Set("X-Request-ID", requestID)

		next.ServeHTTP(writer, r)

		log.Printf(`{"request_id":"%s","method":"%s","path":"%s","status":%d,"duration_ms":%d}`,
			requestID,
			r.Method,
			r.URL.Path,
			writer.status,
			time.Since(started).Milliseconds(),
		)
	})
}

type requestIDKey struct{}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func randomRequestID() string {
	buf := make([]byte, 8)
	_, _ = rand.Read(buf)
	return hex.EncodeToString(buf)
}

func setCORSHeaders(header http.Header, corsOrigin string) {
	header.Set("Access-Control-Allow-Origin", corsOrigin)
	header.Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Request-ID")
	header.Set("Access-Control-Allow-Methods", "GET,POST,PUT,DELETE,OPTIONS")
	header.Set("Cache-Control", "no-store")
	header.Set("Content-Type", "application/json")
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code, message string, details any) {
	response := map[string]any{
		"code":  code,
		"error": message,
	}
	if details != nil {
		response["details"] = details
	}
	writeJSON(w, status, response)
}

func decodeBody(r *http.Request, target any) error {
	if r.Body == nil {
		return nil
	}
	defer r.Body.Close()
	decoder := json.NewDecoder(r.Body)
	if err := decoder.Decode(target); err != nil {
		if errors.Is(err, http.ErrBodyReadAfterClose) {
			return nil
		}
		return fmt.Errorf("invalid JSON body")
	}
	return nil
}

func splitPath(path string) []string {
	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		return nil
	}
	return strings.Split(trimmed, "/")
}

func mapError(err error) (status int, code, message string, details any) {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Status, domainErr.Code, domainErr.Message, domainErr.Details
	}
	var outsideErr *menu.OutsideGridError
	if errors.As(err, &outsideErr) {
		return http.StatusUnprocessableEntity, "VALIDATION_ERROR", outsideErr.Error(), nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return http.StatusNotFound, "NOT_FOUND", "Not found", nil
	}
	return http.StatusInternalServerError, "SERVER_ERROR", "Server error", nil
}
