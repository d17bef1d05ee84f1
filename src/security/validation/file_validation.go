package validation

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/username/dividendlog/backend/src/logger"
)

const (
	ExtCSV  = "csv"
	ExtXLSX = "xlsx"
)

// AllowedClientContentTypes maps client-declared MIME types to the upload kinds they may carry.
var AllowedClientContentTypes = map[string][]string{
	"text/csv":                 {ExtCSV},
	"application/csv":          {ExtCSV},
	"text/plain":               {ExtCSV},
	"application/vnd.ms-excel": {ExtCSV}, // Often used for CSV by older Excel
	"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet": {ExtXLSX},
	"application/octet-stream": {ExtCSV, ExtXLSX},
}

var xlsxMagic = []byte("PK\x03\x04")

// FileExtension returns the lower-case extension of name without the dot.
func FileExtension(name string) string {
	return strings.ToLower(strings.TrimPrefix(filepath.Ext(name), "."))
}

// ValidateFileExtension checks the file name against the configured allow-list.
func ValidateFileExtension(name string, allowed []string) (string, error) {
	ext := FileExtension(name)
	for _, a := range allowed {
		if a == ext {
			return ext, nil
		}
	}
	logger.L.Warn("Disallowed upload extension", "filename", name, "extension", ext)
	return "", fmt.Errorf("%w: file type '.%s' is not allowed (allowed: %s)", ErrValidationFailed, ext, strings.Join(allowed, ", "))
}

// ValidateClientContentType checks the Content-Type header provided by the client
// against the kind of file being uploaded. An absent header is accepted.
func ValidateClientContentType(contentType, ext string) error {
	if contentType == "" {
		return nil
	}
	mediaType := strings.ToLower(strings.TrimSpace(strings.Split(contentType, ";")[0]))
	for _, allowed := range AllowedClientContentTypes[mediaType] {
		if allowed == ext {
			return nil
		}
	}
	logger.L.Warn("Disallowed client-declared Content-Type", "contentType", contentType, "extension", ext)
	return fmt.Errorf("%w: client-declared file type '%s' is not allowed for .%s upload", ErrValidationFailed, contentType, ext)
}

// ValidateFileContentByMagicBytes checks the actual file content signature and
// rewinds the file so the parser can read it from the start.
func ValidateFileContentByMagicBytes(file io.ReadSeeker, ext string) (string, error) {
	if file == nil {
		return "", fmt.Errorf("file is nil")
	}

	buffer := make([]byte, 1024)
	n, err := file.Read(buffer)
	if err != nil && err != io.EOF {
		return "", fmt.Errorf("failed to read file for content type checking: %w", err)
	}
	if _, seekErr := file.Seek(0, io.SeekStart); seekErr != nil {
		return "", fmt.Errorf("failed to reset file read pointer: %w", seekErr)
	}
	if n == 0 {
		return "", fmt.Errorf("%w: file is empty", ErrValidationFailed)
	}
	head := buffer[:n]

	switch ext {
	case ExtXLSX:
		if !bytes.HasPrefix(head, xlsxMagic) {
			logger.L.Warn("File rejected: spreadsheet upload without zip signature")
			return "application/octet-stream", fmt.Errorf("%w: file is not a valid .xlsx workbook", ErrValidationFailed)
		}
		return "application/zip", nil
	case ExtCSV:
		// Text in legacy code pages is allowed, so only NUL bytes mark binary content.
		if bytes.IndexByte(head, 0) != -1 {
			logger.L.Warn("File rejected: Binary content detected in text upload")
			return "application/octet-stream", fmt.Errorf("%w: file appears to be binary, not text/CSV", ErrValidationFailed)
		}
		detected := strings.ToLower(strings.Split(http.DetectContentType(head), ";")[0])
		if !strings.HasPrefix(detected, "text/") {
			logger.L.Warn("Disallowed detected file content type", "detectedContentType", detected)
			return detected, fmt.Errorf("%w: detected file content type '%s' is not allowed", ErrValidationFailed, detected)
		}
		logger.L.Debug("File content type validated", "detectedContentType", detected)
		return detected, nil
	default:
		return "", fmt.Errorf("%w: unsupported file type '.%s'", ErrValidationFailed, ext)
	}
}
