package models

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/stageworks/roster_backend/config"
	"github.com/stageworks/roster_backend/utils"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

var ErrImportLogFinalized = errors.New("import log is already finalized")

// ImportLog is the audit row of one import run. It moves from running to a terminal status exactly once.
type ImportLog struct {
	ID                int             `gorm:"primary_key" json:"id"`
	Source            string          `gorm:"size:30;not null" json:"source"`
	FormId            string          `gorm:"size:64;index" json:"form_id"`
	Mode              ImportMode      `gorm:"size:20" json:"mode"`
	Status            ImportLogStatus `gorm:"size:20;not null;index" json:"status"`
	MembersImported   int             `gorm:"not null;default:0" json:"members_imported"`
	DuplicatesSkipped int             `gorm:"not null;default:0" json:"duplicates_skipped"`
	ErrorsCount       int             `gorm:"not null;default:0" json:"errors_count"`
	Errors            datatypes.JSON  `json:"errors"`
	StartedAt         time.Time       `gorm:"not null" json:"started_at"`
	CompletedAt       *time.Time      `json:"completed_at"`
	TriggeredBy       string          `gorm:"size:100" json:"triggered_by"`
	CreatedAt         time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt         time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

type ImportLogOutcome struct {
	Status            ImportLogStatus
	MembersImported   int
	DuplicatesSkipped int
	Errors            []string
	CompletedAt       time.Time
}

func (l ImportLog) ErrorList() []string {
	list, err := utils.DecodeJSONList[string](l.Errors)
	if err != nil {
		return []string{string(l.Errors)}
	}
	return list
}

func CreateImportLog(ctx context.Context, db *gorm.DB, formId string, mode ImportMode, triggeredBy string, startedAt time.Time) (*ImportLog, error) {
	log := ImportLog{
		Source:      ImportSourceJotform,
		FormId:      formId,
		Mode:        mode,
		Status:      ImportLogStatusRunning,
		StartedAt:   startedAt,
		TriggeredBy: triggeredBy,
	}
	if err := db.WithContext(ctx).Create(&log).Error; err != nil {
		return nil, err
	}
	return &log, nil
}

// FinalizeImportLog writes the terminal state. Only rows still running are touched.
func FinalizeImportLog(ctx context.Context, db *gorm.DB, id int, outcome ImportLogOutcome) error {
	if !outcome.Status.IsTerminal() {
		return fmt.Errorf("finalize import log %d: %q is not a terminal status", id, outcome.Status)
	}
	var errorsJSON interface{}
	if len(outcome.Errors) > 0 {
		b, err := json.Marshal(outcome.Errors)
		if err != nil {
			return err
		}
		errorsJSON = datatypes.JSON(b)
	}

	res := db.WithContext(ctx).Model(&ImportLog{}).
		Where("id = ? AND status = ?", id, ImportLogStatusRunning).
		Updates(map[string]interface{}{
			"status":             outcome.Status,
			"members_imported":   outcome.MembersImported,
			"duplicates_skipped": outcome.DuplicatesSkipped,
			"errors_count":       len(outcome.Errors),
			"errors":             errorsJSON,
			"completed_at":       outcome.CompletedAt,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrImportLogFinalized
	}
	return nil
}

func GetImportLog(ctx context.Context, id int) (*ImportLog, error) {
	var log ImportLog
	if err := config.GetDB().WithContext(ctx).First(&log, id).Error; err != nil {
		return nil, notFoundOr(err)
	}
	return &log, nil
}

func ListImportLogs(ctx context.Context, formId string, limit int) ([]*ImportLog, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	q := config.GetDB().WithContext(ctx).Model(&ImportLog{})
	if formId != "" {
		q = q.Where("form_id = ?", formId)
	}
	var results []*ImportLog
	if err := q.Order("started_at DESC, id DESC").Limit(limit).Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}
