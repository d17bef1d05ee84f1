// backend/src/handlers/upload_handler.go
package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/username/dividendlog/backend/src/logger"
	"github.com/username/dividendlog/backend/src/models"
	"github.com/username/dividendlog/backend/src/security/validation"
	"github.com/username/dividendlog/backend/src/services"
	"github.com/username/dividendlog/backend/src/utils"
)

// DividendImportHandler serves the upload, preview and commit flow of a broker
// dividend import. All state lives in the service, keyed by session.
type DividendImportHandler struct {
	importService     services.DividendImportService
	maxUploadBytes    int64
	allowedExtensions []string
}

func NewDividendImportHandler(service services.DividendImportService, maxUploadBytes int64, allowedExtensions []string) *DividendImportHandler {
	return &DividendImportHandler{
		importService:     service,
		maxUploadBytes:    maxUploadBytes,
		allowedExtensions: allowedExtensions,
	}
}

type uploadResponse struct {
	Success bool `json:"success"`
	*models.StageSummary
}

func (h *DividendImportHandler) HandleUpload(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContext(r.Context())
	sessionID, ok := GetSessionIDFromContext(r.Context())
	if !ok {
		utils.SendJSONError(w, "session required", http.StatusUnauthorized)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes+1024*1024)
	if err := r.ParseMultipartForm(h.maxUploadBytes); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			log.Warn("Upload request too large", "limit", h.maxUploadBytes, "error", err)
			utils.SendJSONError(w, fmt.Sprintf("File too large. Maximum size: %d bytes", h.maxUploadBytes), http.StatusRequestEntityTooLarge)
			return
		}
		log.Warn("Failed to parse multipart form", "error", err)
		utils.SendJSONError(w, "Missing file or broker_id", http.StatusBadRequest)
		return
	}
	defer r.MultipartForm.RemoveAll()

	brokerIDStr := strings.TrimSpace(r.FormValue("broker_id"))
	if brokerIDStr == "" {
		utils.SendJSONError(w, "Missing file or broker_id", http.StatusBadRequest)
		return
	}
	brokerID, err := strconv.Atoi(brokerIDStr)
	if err != nil {
		utils.SendJSONError(w, "Invalid broker ID", http.StatusBadRequest)
		return
	}

	file, fileHeader, err := r.FormFile("csv_file")
	if err != nil {
		log.Warn("Failed to retrieve file from request", "error", err)
		utils.SendJSONError(w, "Missing file or broker_id", http.StatusBadRequest)
		return
	}
	defer file.Close()

	if fileHeader.Size > h.maxUploadBytes {
		log.Warn("Uploaded file header reports size too large", "fileSize", fileHeader.Size, "limit", h.maxUploadBytes)
		utils.SendJSONError(w, fmt.Sprintf("File too large. Maximum size: %d bytes", h.maxUploadBytes), http.StatusRequestEntityTooLarge)
		return
	}

	ext, err := validation.ValidateFileExtension(fileHeader.Filename, h.allowedExtensions)
	if err != nil {
		log.Warn("Rejected upload extension", "filename", fileHeader.Filename, "error", err)
		utils.SendJSONError(w, fmt.Sprintf("Invalid file type. Allowed: %s", strings.Join(h.allowedExtensions, ", ")), http.StatusBadRequest)
		return
	}

	clientContentType := fileHeader.Header.Get("Content-Type")
	if err := validation.ValidateClientContentType(clientContentType, ext); err != nil {
		log.Warn("Invalid client-declared file type", "contentType", clientContentType, "error", err)
		utils.SendJSONError(w, validation.Warning(err), http.StatusBadRequest)
		return
	}

	detectedContentType, err := validation.ValidateFileContentByMagicBytes(file, ext)
	if err != nil {
		log.Warn("Server-side file content validation failed", "filename", fileHeader.Filename, "error", err)
		utils.SendJSONError(w, validation.Warning(err), http.StatusBadRequest)
		return
	}
	log.Info("Processing upload request",
		"brokerID", brokerID,
		"filename", fileHeader.Filename,
		"clientType", clientContentType,
		"detectedType", detectedContentType)

	summary, err := h.importService.Stage(r.Context(), sessionID, brokerID, fileHeader.Filename, file)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrUnknownBroker):
			utils.SendJSONError(w, "Invalid broker ID", http.StatusBadRequest)
		case errors.Is(err, services.ErrParsingFailed):
			utils.SendJSONError(w, "CSV parsing error: "+err.Error(), http.StatusBadRequest)
		default:
			log.Error("Failed to stage upload", "error", err)
			utils.SendJSONError(w, "Failed to save uploaded file", http.StatusInternalServerError)
		}
		return
	}

	utils.SendJSON(w, uploadResponse{Success: true, StageSummary: summary}, http.StatusOK)
}

func (h *DividendImportHandler) HandlePreview(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContext(r.Context())
	sessionID, ok := GetSessionIDFromContext(r.Context())
	if !ok {
		utils.SendJSONError(w, "session required", http.StatusUnauthorized)
		return
	}

	page := queryInt(r, "page", 1)
	limit := queryInt(r, "limit", services.DefaultPreviewLimit)

	preview, err := h.importService.Preview(r.Context(), sessionID, page, limit)
	if err != nil {
		if errors.Is(err, services.ErrNoStagedBatch) {
			utils.SendJSONError(w, "No import data found. Please upload a file first.", http.StatusNotFound)
			return
		}
		log.Error("Error building preview", "error", err)
		utils.SendJSONError(w, "Error building preview", http.StatusInternalServerError)
		return
	}

	currentETag, etagErr := utils.GenerateETag(preview)
	if etagErr != nil {
		log.Error("Failed to generate ETag for preview", "error", etagErr)
	}

	w.Header().Set("Cache-Control", "no-cache, private")

	if etagErr == nil && currentETag != "" {
		quotedETag := fmt.Sprintf("\"%s\"", currentETag)
		w.Header().Set("ETag", quotedETag)
		for _, cETag := range strings.Split(r.Header.Get("If-None-Match"), ",") {
			if strings.TrimSpace(cETag) == quotedETag {
				log.Debug("ETag match for preview", "etag", currentETag)
				w.WriteHeader(http.StatusNotModified)
				return
			}
		}
	}

	utils.SendJSON(w, preview, http.StatusOK)
}

// queryInt reads a positive integer query parameter, falling back on anything else.
func queryInt(r *http.Request, key string, fallback int) int {
	v, err := strconv.Atoi(r.URL.Query().Get(key))
	if err != nil || v < 1 {
		return fallback
	}
	return v
}
