package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/username/dividendlog/backend/src/database"
	"github.com/username/dividendlog/backend/src/logger"
	"github.com/username/dividendlog/backend/src/model"
	"github.com/username/dividendlog/backend/src/models"
	"github.com/username/dividendlog/backend/src/services"
	"github.com/username/dividendlog/backend/src/utils"
)

const defaultHistoryLimit = 20

type importRequest struct {
	IgnoreDuplicates bool `json:"ignore_duplicates"`
}

type importSuccessResponse struct {
	Success bool `json:"success"`
	*models.CommitResult
	Message string `json:"message"`
}

type duplicatesResponse struct {
	DuplicatesFound bool                        `json:"duplicates_found"`
	Duplicates      []models.DuplicateCandidate `json:"duplicates"`
	Message         string                      `json:"message"`
}

type importFailedResponse struct {
	Error  string   `json:"error"`
	Errors []string `json:"errors"`
}

func (h *DividendImportHandler) HandleListBrokers(w http.ResponseWriter, r *http.Request) {
	utils.SendJSON(w, map[string]interface{}{"brokers": h.importService.ListBrokers()}, http.StatusOK)
}

func (h *DividendImportHandler) HandleImport(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContext(r.Context())
	sessionID, ok := GetSessionIDFromContext(r.Context())
	if !ok {
		utils.SendJSONError(w, "session required", http.StatusUnauthorized)
		return
	}

	var req importRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 4096)).Decode(&req); err != nil {
			utils.SendJSONError(w, "Invalid request body", http.StatusBadRequest)
			return
		}
	}

	result, err := h.importService.Commit(r.Context(), sessionID, req.IgnoreDuplicates)
	switch {
	case err == nil:
		msg := fmt.Sprintf("Successfully imported %d dividends", result.Imported)
		if result.Skipped > 0 {
			msg += fmt.Sprintf(" (skipped %d duplicates)", result.Skipped)
		}
		utils.SendJSON(w, importSuccessResponse{Success: true, CommitResult: result, Message: msg}, http.StatusOK)

	case errors.Is(err, services.ErrDuplicatesFound):
		utils.SendJSON(w, duplicatesResponse{
			DuplicatesFound: true,
			Duplicates:      result.Duplicates,
			Message:         "Duplicates found. Set ignore_duplicates=true to proceed.",
		}, http.StatusConflict)

	case errors.Is(err, services.ErrImportRejected):
		utils.SendJSON(w, importFailedResponse{
			Error:  "Import failed with errors: " + strings.Join(result.Errors, "; "),
			Errors: result.Errors,
		}, http.StatusBadRequest)

	case errors.Is(err, services.ErrCommitInProgress):
		utils.SendJSONError(w, "An import is already in progress for this session", http.StatusConflict)

	case errors.Is(err, services.ErrNoStagedBatch):
		utils.SendJSONError(w, "No import data found. Please upload a file first.", http.StatusNotFound)

	case errors.Is(err, services.ErrEmptyBatch):
		utils.SendJSONError(w, "No valid dividends found to import", http.StatusBadRequest)

	default:
		log.Error("Import failed", "error", err)
		utils.SendJSONError(w, "Import failed", http.StatusInternalServerError)
	}
}

func (h *DividendImportHandler) HandleDiscard(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := GetSessionIDFromContext(r.Context())
	if !ok {
		utils.SendJSONError(w, "session required", http.StatusUnauthorized)
		return
	}
	if !h.importService.Discard(r.Context(), sessionID) {
		utils.SendJSONError(w, "No import data found", http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleGetImportHistory lists the most recent committed imports.
func (h *DividendImportHandler) HandleGetImportHistory(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContext(r.Context())
	limit := queryInt(r, "limit", defaultHistoryLimit)

	history, err := model.GetImportHistory(r.Context(), database.DB, utils.MinInt(limit, services.MaxPreviewLimit))
	if err != nil {
		log.Error("Error retrieving import history", "error", err)
		utils.SendJSONError(w, "Error retrieving import history", http.StatusInternalServerError)
		return
	}
	if history == nil {
		history = []models.ImportHistoryEntry{}
	}
	utils.SendJSON(w, map[string]interface{}{"history": history}, http.StatusOK)
}
