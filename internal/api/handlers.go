package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/prudhvinik1/appsync/internal/models"
	"github.com/prudhvinik1/appsync/internal/repositories"
	"github.com/prudhvinik1/appsync/internal/services"
	"go.uber.org/zap"
)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type syncAppRequest struct {
	AppID     string `json:"appId"`
	StoreType string `json:"storeType"`
}

type bulkSyncRequest struct {
	Apps []services.ImportEntry `json:"apps"`
}

type syncAppResponse struct {
	App            *models.App `json:"app"`
	VersionChanged bool        `json:"version_changed"`
}

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSONBody(w, r, &req); err != nil {
		WriteErrorResponse(w, err.Error(), http.StatusBadRequest)
		return
	}

	resp, err := s.deps.Auth.Login(r.Context(), req.Email, req.Password)
	if errors.Is(err, services.ErrInvalidCredentials) {
		WriteErrorResponse(w, "invalid credentials", http.StatusUnauthorized)
		return
	}
	if err != nil {
		s.logger.Error("login failed", zap.Error(err))
		WriteErrorResponse(w, "login failed", http.StatusInternalServerError)
		return
	}

	WriteJSONResponse(w, resp, http.StatusOK)
}

// syncApp handles POST /api/admin/apps/{id}/sync. The store defaults to
// google_play and can be overridden with ?store=.
func (s *Server) syncApp(w http.ResponseWriter, r *http.Request) {
	id, err := urlParam(r, "id")
	if err != nil {
		WriteErrorResponse(w, err.Error(), http.StatusBadRequest)
		return
	}

	store := models.StoreGooglePlay
	if q := r.URL.Query().Get("store"); q != "" {
		store = models.StoreType(q)
		if !store.Valid() {
			WriteErrorResponse(w, fmt.Sprintf("unknown store type %q", q), http.StatusBadRequest)
			return
		}
	}

	s.writeSyncResult(w, s.deps.Engine.SyncAppFromStore(r.Context(), id, store))
}

// syncAppByBody handles POST /api/admin/sync/app.
func (s *Server) syncAppByBody(w http.ResponseWriter, r *http.Request) {
	var req syncAppRequest
	if err := decodeJSONBody(w, r, &req); err != nil {
		WriteErrorResponse(w, err.Error(), http.StatusBadRequest)
		return
	}
	if req.AppID == "" || req.StoreType == "" {
		WriteErrorResponse(w, "appId and storeType are required", http.StatusBadRequest)
		return
	}
	store := models.StoreType(req.StoreType)
	if !store.Valid() {
		WriteErrorResponse(w, fmt.Sprintf("unknown store type %q", req.StoreType), http.StatusBadRequest)
		return
	}

	s.writeSyncResult(w, s.deps.Engine.SyncAppFromStore(r.Context(), req.AppID, store))
}

func (s *Server) writeSyncResult(w http.ResponseWriter, result services.SyncResult) {
	switch {
	case result.Success:
		WriteJSONResponse(w, syncAppResponse{App: result.App, VersionChanged: result.VersionChanged}, http.StatusOK)
	case result.NotFound():
		WriteErrorResponse(w, fmt.Sprintf("app %s not found", result.AppID), http.StatusNotFound)
	case errors.Is(result.Err, services.ErrMissingSourceID):
		WriteErrorResponse(w, fmt.Sprintf("app %s has no store identifier; set original_app_id and retry", result.AppID), http.StatusUnprocessableEntity)
	case result.Reason == services.ReasonUnsupportedStore:
		WriteErrorResponse(w, result.Err.Error(), http.StatusNotImplemented)
	case result.Reason == services.ReasonInProgress:
		WriteErrorResponse(w, "sync already in progress", http.StatusConflict)
	default:
		msg := fmt.Sprintf("failed to sync app: %s", result.Reason)
		if result.Err != nil {
			msg = fmt.Sprintf("failed to sync app: %s: %v", result.Reason, result.Err)
		}
		WriteErrorResponse(w, msg, http.StatusInternalServerError)
	}
}

// syncAll handles POST /api/admin/sync/all and its legacy alias.
func (s *Server) syncAll(w http.ResponseWriter, r *http.Request) {
	if !s.startSyncAll(models.TriggerAPI) {
		WriteJSONResponse(w, map[string]string{"status": "already running"}, http.StatusAccepted)
		return
	}
	WriteJSONResponse(w, map[string]string{"status": "started"}, http.StatusAccepted)
}

func (s *Server) bulkSync(w http.ResponseWriter, r *http.Request) {
	var req bulkSyncRequest
	if err := decodeJSONBody(w, r, &req); err != nil {
		WriteErrorResponse(w, err.Error(), http.StatusBadRequest)
		return
	}
	if len(req.Apps) == 0 {
		WriteErrorResponse(w, "apps must not be empty", http.StatusBadRequest)
		return
	}

	report, err := s.deps.Importer.Import(r.Context(), req.Apps)
	if err != nil {
		s.logger.Error("bulk sync failed", zap.Error(err))
		WriteErrorResponse(w, "bulk sync failed", http.StatusInternalServerError)
		return
	}
	WriteJSONResponse(w, report, http.StatusOK)
}

func (s *Server) lastBatchRun(w http.ResponseWriter, r *http.Request) {
	run, err := s.deps.Status.GetLastBatchRun(r.Context())
	if errors.Is(err, repositories.ErrNotFound) {
		WriteErrorResponse(w, "no sync has run yet", http.StatusNotFound)
		return
	}
	if err != nil {
		s.logger.Error("failed to load last batch run", zap.Error(err))
		WriteErrorResponse(w, "failed to load sync status", http.StatusInternalServerError)
		return
	}
	WriteJSONResponse(w, run, http.StatusOK)
}

func (s *Server) appSyncStatus(w http.ResponseWriter, r *http.Request) {
	id, err := urlParam(r, "id")
	if err != nil {
		WriteErrorResponse(w, err.Error(), http.StatusBadRequest)
		return
	}

	status, err := s.deps.Status.GetAppStatus(r.Context(), id)
	if errors.Is(err, repositories.ErrNotFound) {
		WriteErrorResponse(w, fmt.Sprintf("no sync recorded for app %s", id), http.StatusNotFound)
		return
	}
	if err != nil {
		s.logger.Error("failed to load app sync status", zap.String("app_id", id), zap.Error(err))
		WriteErrorResponse(w, "failed to load sync status", http.StatusInternalServerError)
		return
	}
	WriteJSONResponse(w, status, http.StatusOK)
}

func (s *Server) versionHistory(w http.ResponseWriter, r *http.Request) {
	id, err := urlParam(r, "id")
	if err != nil {
		WriteErrorResponse(w, err.Error(), http.StatusBadRequest)
		return
	}

	if _, err := s.deps.Apps.GetByID(r.Context(), id); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			WriteErrorResponse(w, fmt.Sprintf("app %s not found", id), http.StatusNotFound)
			return
		}
		s.logger.Error("failed to load app", zap.String("app_id", id), zap.Error(err))
		WriteErrorResponse(w, "failed to load app", http.StatusInternalServerError)
		return
	}

	history, err := s.deps.Apps.ListVersionHistory(r.Context(), id)
	if err != nil {
		s.logger.Error("failed to list version history", zap.String("app_id", id), zap.Error(err))
		WriteErrorResponse(w, "failed to list version history", http.StatusInternalServerError)
		return
	}
	WriteJSONResponse(w, history, http.StatusOK)
}
