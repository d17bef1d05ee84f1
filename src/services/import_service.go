package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"

	"github.com/username/dividendlog/backend/src/logger"
	"github.com/username/dividendlog/backend/src/model"
	"github.com/username/dividendlog/backend/src/models"
	"github.com/username/dividendlog/backend/src/parsers"
	"github.com/username/dividendlog/backend/src/parsers/brokers"
	"github.com/username/dividendlog/backend/src/parsers/dividend"
	"github.com/username/dividendlog/backend/src/security/validation"
	"github.com/username/dividendlog/backend/src/utils"
)

const (
	DefaultPreviewLimit = 50
	MaxPreviewLimit     = 500
)

type importServiceImpl struct {
	registry    brokers.Registry
	store       model.DividendStore
	files       FileStore
	staging     *StagingStore
	previewRows int
}

func NewDividendImportService(
	registry brokers.Registry,
	store model.DividendStore,
	files FileStore,
	staging *StagingStore,
	previewRows int,
) DividendImportService {
	return &importServiceImpl{
		registry:    registry,
		store:       store,
		files:       files,
		staging:     staging,
		previewRows: previewRows,
	}
}

func (s *importServiceImpl) ListBrokers() []models.BrokerInfo {
	configs := s.registry.List()
	out := make([]models.BrokerInfo, 0, len(configs))
	for _, c := range configs {
		out = append(out, models.BrokerInfo{ID: c.BrokerID, Name: c.Name})
	}
	return out
}

func (s *importServiceImpl) Stage(ctx context.Context, sessionID string, brokerID int, filename string, file io.Reader) (*models.StageSummary, error) {
	start := time.Now()
	log := logger.FromContext(ctx)
	log.Info("Stage START", "brokerID", brokerID, "filename", filename)

	cfg, err := s.registry.GetFormatConfig(brokerID)
	if err != nil {
		if errors.Is(err, brokers.ErrNotFound) {
			return nil, fmt.Errorf("%w: %d", ErrUnknownBroker, brokerID)
		}
		return nil, err
	}

	ext := validation.FileExtension(filename)
	parser, err := parsers.GetParser(ext)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParsingFailed, err)
	}

	path, err := s.files.Save(brokerID, ext, file)
	if err != nil {
		return nil, fmt.Errorf("storing uploaded file: %w", err)
	}

	res, err := s.parseStored(path, parser, cfg)
	if err != nil {
		if rmErr := s.files.Remove(path); rmErr != nil {
			log.Error("Failed to remove upload after parse failure", "path", path, "error", rmErr)
		}
		log.Warn("Stage parse failed", "brokerID", brokerID, "error", err)
		return nil, fmt.Errorf("%w: %v", ErrParsingFailed, err)
	}

	batch := &models.ImportBatch{
		ID:             uuid.NewString(),
		BrokerID:       brokerID,
		FileName:       filename,
		StoredFilePath: path,
		Records:        res.Records,
		Errors:         res.Errors,
		Warnings:       res.Warnings,
		TotalRows:      res.TotalRows,
		StagedAt:       time.Now(),
	}
	s.staging.Put(sessionID, batch)

	previewCount := utils.MinInt(utils.MaxInt(s.previewRows, 0), len(batch.Records))
	summary := &models.StageSummary{
		BatchID:     batch.ID,
		BrokerID:    brokerID,
		BrokerName:  cfg.Name,
		FileName:    filename,
		TotalRows:   batch.TotalRows,
		ValidRows:   len(batch.Records),
		Errors:      batch.Errors,
		Warnings:    batch.Warnings,
		PreviewData: batch.Records[:previewCount],
	}

	log.Info("Stage END",
		"batchID", batch.ID,
		"totalRows", summary.TotalRows,
		"validRows", summary.ValidRows,
		"errors", len(summary.Errors),
		"warnings", len(summary.Warnings),
		"duration", time.Since(start))
	return summary, nil
}

func (s *importServiceImpl) parseStored(path string, parser parsers.Parser, cfg brokers.FormatConfig) (*dividend.Result, error) {
	f, err := s.files.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return parser.Parse(f, cfg)
}

func (s *importServiceImpl) Preview(ctx context.Context, sessionID string, page, limit int) (*models.PreviewPage, error) {
	batch, ok := s.staging.Get(sessionID)
	if !ok {
		return nil, ErrNoStagedBatch
	}
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = DefaultPreviewLimit
	}
	limit = utils.MinInt(limit, MaxPreviewLimit)

	total := len(batch.Records)
	from := total
	if page-1 <= total/limit {
		from = utils.MinInt((page-1)*limit, total)
	}
	to := utils.MinInt(from+limit, total)

	return &models.PreviewPage{
		Dividends:  batch.Records[from:to],
		TotalRows:  total,
		Errors:     batch.Errors,
		Warnings:   batch.Warnings,
		Page:       page,
		Limit:      limit,
		TotalPages: utils.CeilDiv(total, limit),
	}, nil
}

func (s *importServiceImpl) Commit(ctx context.Context, sessionID string, ignoreDuplicates bool) (*models.CommitResult, error) {
	start := time.Now()
	log := logger.FromContext(ctx)

	done, ok := s.staging.Acquire(sessionID)
	if !ok {
		return nil, ErrCommitInProgress
	}
	defer done()

	batch, ok := s.staging.Get(sessionID)
	if !ok {
		return nil, ErrNoStagedBatch
	}
	if len(batch.Records) == 0 {
		return nil, ErrEmptyBatch
	}
	log.Info("Commit START", "batchID", batch.ID, "records", len(batch.Records), "ignoreDuplicates", ignoreDuplicates)

	candidates := make([]models.DuplicateCandidate, len(batch.Records))
	for i, rec := range batch.Records {
		candidates[i] = rec.Candidate()
	}
	duplicates, err := s.store.FindDuplicates(ctx, candidates)
	if err != nil {
		return nil, fmt.Errorf("checking for duplicates: %w", err)
	}

	result := &models.CommitResult{TotalProcessed: len(batch.Records)}
	if len(duplicates) > 0 && !ignoreDuplicates {
		log.Info("Commit blocked by duplicates", "batchID", batch.ID, "duplicates", len(duplicates))
		result.Duplicates = duplicates
		return result, ErrDuplicatesFound
	}

	tx, err := s.store.Begin(ctx)
	if err != nil {
		return nil, err
	}

	var errs []string
	for _, rec := range batch.Records {
		c := rec.Candidate()
		if isDuplicate(c, duplicates) {
			result.Skipped++
			continue
		}
		if err := tx.InsertDividend(ctx, rec, batch.ID); err != nil {
			errs = append(errs, fmt.Sprintf("Row with ISIN %s: %v", rec.ISIN, err))
			continue
		}
		// Later copies of a row inserted from this batch are skipped like stored ones.
		if ignoreDuplicates {
			duplicates = append(duplicates, c)
		}
		result.Imported++
	}

	if len(errs) == 0 {
		err := tx.RecordImport(ctx, models.ImportHistoryEntry{
			BatchID:      batch.ID,
			BrokerID:     batch.BrokerID,
			FileName:     batch.FileName,
			TotalRows:    batch.TotalRows,
			Imported:     result.Imported,
			Skipped:      result.Skipped,
			WarningCount: len(batch.Warnings),
		})
		if err != nil {
			errs = append(errs, fmt.Sprintf("Import history: %v", err))
		}
	}

	if len(errs) > 0 {
		if rbErr := tx.Rollback(); rbErr != nil {
			log.Error("Rollback failed", "batchID", batch.ID, "error", rbErr)
		}
		s.staging.DeleteIf(sessionID, batch.ID)
		log.Warn("Commit rolled back", "batchID", batch.ID, "errors", len(errs), "duration", time.Since(start))
		return &models.CommitResult{TotalProcessed: len(batch.Records), Errors: errs}, ErrImportRejected
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing import: %w", err)
	}
	s.staging.DeleteIf(sessionID, batch.ID)

	log.Info("Commit END",
		"batchID", batch.ID,
		"imported", result.Imported,
		"skipped", result.Skipped,
		"duration", time.Since(start))
	return result, nil
}

func (s *importServiceImpl) Discard(ctx context.Context, sessionID string) bool {
	discarded := s.staging.Delete(sessionID)
	if discarded {
		logger.FromContext(ctx).Info("Staged batch discarded")
	}
	return discarded
}

func isDuplicate(c models.DuplicateCandidate, duplicates []models.DuplicateCandidate) bool {
	for _, d := range duplicates {
		if d.Matches(c) {
			return true
		}
	}
	return false
}
