// backend/src/services/interfaces.go
package services

import (
	"context"
	"errors"
	"io"
	"os"

	"github.com/username/dividendlog/backend/src/models"
)

// Define common service errors
var (
	ErrUnknownBroker    = errors.New("unknown broker")
	ErrParsingFailed    = errors.New("dividend file parsing failed")
	ErrNoStagedBatch    = errors.New("no staged import batch for this session")
	ErrEmptyBatch       = errors.New("staged batch has no valid dividends to import")
	ErrDuplicatesFound  = errors.New("duplicate dividends found")
	ErrImportRejected   = errors.New("import rolled back because some rows could not be stored")
	ErrCommitInProgress = errors.New("an import commit is already in progress for this session")
)

// DividendImportService stages broker dividend files for preview and commits
// them to the dividend log. Every method is scoped to one operator session.
type DividendImportService interface {
	ListBrokers() []models.BrokerInfo
	Stage(ctx context.Context, sessionID string, brokerID int, filename string, file io.Reader) (*models.StageSummary, error)
	Preview(ctx context.Context, sessionID string, page, limit int) (*models.PreviewPage, error)
	// Commit returns a non-nil result alongside ErrDuplicatesFound and ErrImportRejected.
	Commit(ctx context.Context, sessionID string, ignoreDuplicates bool) (*models.CommitResult, error)
	Discard(ctx context.Context, sessionID string) bool
}

// FileStore keeps uploaded files while their batch is staged.
type FileStore interface {
	Save(brokerID int, ext string, r io.Reader) (string, error)
	Open(path string) (*os.File, error)
	Remove(path string) error
}
