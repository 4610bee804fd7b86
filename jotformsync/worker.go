package jotformsync

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stageworks/roster_backend/config"
	"github.com/stageworks/roster_backend/models"
	"github.com/stageworks/roster_backend/utils"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"gorm.io/gorm"
)

var errInvalidSubmission = errors.New("could not map submission to a member (invalid or missing email)")

type itemOutcome int

const (
	itemImported itemOutcome = iota
	itemDuplicate
	itemFailed
)

// Importer runs one import over a submission source. Batches run sequentially
// with a pause between them; items inside a batch are independent.
type Importer struct {
	db         *gorm.DB
	source     SubmissionSource
	logger     *logrus.Logger
	batchSize  int
	batchDelay time.Duration
	now        func() time.Time
	sleep      func(time.Duration)
}

func NewImporter(db *gorm.DB, source SubmissionSource) *Importer {
	return &Importer{
		db:         db,
		source:     source,
		logger:     config.GetLogger(),
		batchSize:  config.ImportBatchSize(),
		batchDelay: config.ImportBatchDelay(),
		now:        time.Now,
		sleep:      time.Sleep,
	}
}

func (i *Importer) WithBatching(size int, delay time.Duration) *Importer {
	if size > 0 {
		i.batchSize = size
	}
	if delay >= 0 {
		i.batchDelay = delay
	}
	return i
}

func (i *Importer) WithClock(now func() time.Time) *Importer {
	i.now = now
	return i
}

func validateOptions(opts ImportOptions) error {
	if strings.TrimSpace(opts.FormID) == "" {
		return ErrMissingFormID
	}
	if len(opts.Mappings) == 0 {
		return ErrNoFieldMappings
	}
	return nil
}

// Run executes the import. Configuration errors return before a log row exists.
// Any failure outside a single item finalizes the log as error and is returned.
func (i *Importer) Run(ctx context.Context, opts ImportOptions) (result *ImportResult, err error) {
	if err := validateOptions(opts); err != nil {
		return nil, err
	}
	// a run is not cancelled by its caller going away
	ctx = context.WithoutCancel(ctx)

	ctx, span := otel.Tracer("jotformsync").Start(ctx, "jotformsync.RunImport")
	span.SetAttributes(attribute.String("jotform.form_id", opts.FormID), attribute.Bool("jotform.incremental", opts.Incremental))
	defer span.End()

	mode := models.ImportModeFull
	if opts.Incremental {
		mode = models.ImportModeIncremental
	}
	triggeredBy := opts.TriggeredBy
	if triggeredBy == "" {
		triggeredBy = utils.ActorFromContext(ctx)
	}
	season := opts.DefaultSeason
	if season == "" {
		season = config.DefaultSeason()
	}
	tuition := utils.DefaultTuition()
	if opts.DefaultTuition != nil {
		tuition = *opts.DefaultTuition
	}

	log, err := models.CreateImportLog(ctx, i.db, opts.FormID, mode, triggeredBy, i.now())
	if err != nil {
		return nil, fmt.Errorf("create import log: %w", err)
	}
	result = &ImportResult{LogId: log.ID, Errors: []string{}}
	i.logger.WithFields(logrus.Fields{"module": "jotformsync", "logId": log.ID, "formId": opts.FormID, "mode": mode}).
		Info("import started")

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("import aborted: %v", r)
		}
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			i.abort(ctx, log.ID, result, err)
		}
	}()

	subs, err := i.resolveSubmissions(ctx, opts)
	if err != nil {
		return result, err
	}

	for start := 0; start < len(subs); start += i.batchSize {
		if start > 0 && i.batchDelay > 0 {
			i.sleep(i.batchDelay)
		}
		end := start + i.batchSize
		if end > len(subs) {
			end = len(subs)
		}
		for _, sub := range subs[start:end] {
			outcome, itemErr := i.importOne(ctx, sub, opts.Mappings, season, tuition)
			switch outcome {
			case itemImported:
				result.ImportedCount++
			case itemDuplicate:
				result.DuplicateCount++
			default:
				msg := fmt.Sprintf("Submission %s: %v", sub.ID, itemErr)
				result.Errors = append(result.Errors, msg)
				config.LogError(i.logger, "jotformsync", "Importer.Run", "item failed", sub.ID, itemErr)
			}
		}
	}
	result.ErrorCount = len(result.Errors)

	if err := models.TouchLastSyncDate(ctx, i.db, opts.FormID, i.now()); err != nil {
		return result, fmt.Errorf("update last sync date: %w", err)
	}

	status := models.ImportLogStatusSuccess
	if result.ErrorCount > 0 {
		status = models.ImportLogStatusPartial
	}
	if err := models.FinalizeImportLog(ctx, i.db, log.ID, models.ImportLogOutcome{
		Status:            status,
		MembersImported:   result.ImportedCount,
		DuplicatesSkipped: result.DuplicateCount,
		Errors:            result.Errors,
		CompletedAt:       i.now(),
	}); err != nil {
		return result, fmt.Errorf("finalize import log: %w", err)
	}
	result.Success = result.ErrorCount == 0

	span.SetAttributes(
		attribute.Int("jotform.imported", result.ImportedCount),
		attribute.Int("jotform.duplicates", result.DuplicateCount),
		attribute.Int("jotform.errors", result.ErrorCount),
	)
	i.logger.WithFields(logrus.Fields{
		"module":     "jotformsync",
		"logId":      log.ID,
		"status":     status,
		"imported":   result.ImportedCount,
		"duplicates": result.DuplicateCount,
		"errors":     result.ErrorCount,
	}).Info("import finished")
	return result, nil
}

// abort records the run-level failure. The log may already be final if finalize itself failed late.
func (i *Importer) abort(ctx context.Context, logId int, result *ImportResult, cause error) {
	result.Errors = append(result.Errors, cause.Error())
	result.ErrorCount = len(result.Errors)
	result.Success = false
	ferr := models.FinalizeImportLog(ctx, i.db, logId, models.ImportLogOutcome{
		Status:            models.ImportLogStatusError,
		MembersImported:   result.ImportedCount,
		DuplicatesSkipped: result.DuplicateCount,
		Errors:            result.Errors,
		CompletedAt:       i.now(),
	})
	if ferr != nil && !errors.Is(ferr, models.ErrImportLogFinalized) {
		config.LogError(i.logger, "jotformsync", "Importer.abort", "finalize failed", logId, ferr)
	}
	config.LogError(i.logger, "jotformsync", "Importer.Run", "import aborted", logId, cause)
}

func (i *Importer) resolveSubmissions(ctx context.Context, opts ImportOptions) ([]Submission, error) {
	q := SubmissionQuery{OrderBy: "created_at"}
	if opts.Incremental {
		since := time.Unix(0, 0).UTC()
		settings, err := models.GetIntegrationSettings(ctx, i.db, opts.FormID)
		if err != nil && !errors.Is(err, utils.ErrorRecordNotFound) {
			return nil, err
		}
		if settings != nil && settings.LastSyncDate != nil {
			since = *settings.LastSyncDate
		}
		q.Since = &since
	}
	subs, err := i.source.ListSubmissions(ctx, opts.FormID, q)
	if err != nil {
		return nil, fmt.Errorf("fetch submissions: %w", err)
	}
	return subs, nil
}

func (i *Importer) importOne(ctx context.Context, sub Submission, mappings []FieldMapping, season string, tuition decimal.Decimal) (outcome itemOutcome, err error) {
	defer func() {
		if r := recover(); r != nil {
			outcome, err = itemFailed, fmt.Errorf("unexpected failure: %v", r)
		}
	}()

	candidate := MapSubmissionToMember(sub, mappings, season)
	if candidate == nil {
		return itemFailed, errInvalidSubmission
	}
	existing, err := FindExistingMember(ctx, i.db, candidate)
	if err != nil {
		return itemFailed, err
	}
	if existing != nil {
		return itemDuplicate, nil
	}

	member := candidate.ToMember(tuition)
	if err := i.db.WithContext(ctx).Create(&member).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return itemFailed, fmt.Errorf("member already exists (unique constraint): %w", err)
		}
		return itemFailed, err
	}
	return itemImported, nil
}

// RunImport resolves settings and credentials for opts.FormID (or the default
// active form) from the database and runs the import against the Jotform API.
func RunImport(ctx context.Context, opts ImportOptions) (*ImportResult, error) {
	db := config.GetDB()

	var settings *models.IntegrationSettings
	var err error
	if strings.TrimSpace(opts.FormID) != "" {
		settings, err = models.GetIntegrationSettings(ctx, db, opts.FormID)
	} else {
		settings, err = models.GetDefaultIntegrationSettings(ctx, db)
	}
	if err != nil && !errors.Is(err, utils.ErrorRecordNotFound) {
		return nil, err
	}

	if settings != nil {
		if opts.FormID == "" {
			opts.FormID = settings.FormId
		}
		if opts.APIKey == "" {
			opts.APIKey = settings.ApiKey
		}
		if len(opts.Mappings) == 0 {
			mappings, err := DecodeFieldMappings(settings.FieldMappings)
			if err != nil {
				return nil, fmt.Errorf("decode field mappings: %w", err)
			}
			opts.Mappings = mappings
		}
		if opts.DefaultSeason == "" {
			opts.DefaultSeason = settings.DefaultSeason
		}
		if opts.DefaultTuition == nil && !settings.DefaultTuition.IsZero() {
			t := settings.DefaultTuition
			opts.DefaultTuition = &t
		}
	}

	if strings.TrimSpace(opts.FormID) == "" {
		return nil, ErrMissingFormID
	}
	if strings.TrimSpace(opts.APIKey) == "" {
		return nil, ErrMissingAPIKey
	}
	if err := validateOptions(opts); err != nil {
		return nil, err
	}
	client, err := NewClient(opts.APIKey)
	if err != nil {
		return nil, err
	}

	release, err := utils.ObtainLock(ctx, "JotformImport", opts.FormID, "jotformsync", "RunImport")
	if err != nil {
		if errors.Is(err, utils.ErrResourceLocked) {
			return nil, ErrImportInProgress
		}
		return nil, err
	}
	defer release()
	return NewImporter(db, client).Run(ctx, opts)
}
