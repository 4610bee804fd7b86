package models

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stageworks/roster_backend/config"
	"github.com/stageworks/roster_backend/utils"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// IntegrationSettings is the per-form Jotform configuration; FormId is unique.
type IntegrationSettings struct {
	ID             int             `gorm:"primary_key" json:"id"`
	Provider       string          `gorm:"size:30;not null;default:jotform" json:"provider"`
	ApiKey         string          `gorm:"size:255" json:"-"`
	FormId         string          `gorm:"size:64;not null;uniqueIndex" json:"form_id"`
	FormTitle      string          `gorm:"size:255" json:"form_title"`
	FieldMappings  datatypes.JSON  `json:"field_mappings"`
	LastSyncDate   *time.Time      `json:"last_sync_date"`
	IsActive       *bool           `gorm:"not null;default:true" json:"is_active"`
	DefaultSeason  string          `gorm:"size:20" json:"default_season"`
	DefaultTuition decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0" json:"default_tuition"`
	CreatedAt      time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewIntegrationSettings struct {
	ApiKey         string           `json:"api_key"`
	FormId         string           `json:"form_id"`
	FormTitle      string           `json:"form_title"`
	FieldMappings  datatypes.JSON   `json:"field_mappings"`
	IsActive       *bool            `json:"is_active"`
	DefaultSeason  string           `json:"default_season"`
	DefaultTuition *decimal.Decimal `json:"default_tuition"`
}

func (s IntegrationSettings) Active() bool {
	return s.IsActive == nil || *s.IsActive
}

// MaskedApiKey keeps the last four characters for display.
func (s IntegrationSettings) MaskedApiKey() string {
	if len(s.ApiKey) <= 4 {
		return strings.Repeat("*", len(s.ApiKey))
	}
	return strings.Repeat("*", len(s.ApiKey)-4) + s.ApiKey[len(s.ApiKey)-4:]
}

func GetIntegrationSettings(ctx context.Context, db *gorm.DB, formId string) (*IntegrationSettings, error) {
	var settings IntegrationSettings
	if err := db.WithContext(ctx).Where("form_id = ?", formId).First(&settings).Error; err != nil {
		return nil, notFoundOr(err)
	}
	return &settings, nil
}

// GetDefaultIntegrationSettings returns the most recently updated active form.
func GetDefaultIntegrationSettings(ctx context.Context, db *gorm.DB) (*IntegrationSettings, error) {
	var settings IntegrationSettings
	if err := db.WithContext(ctx).Where("is_active = ?", true).Order("updated_at DESC, id DESC").First(&settings).Error; err != nil {
		return nil, notFoundOr(err)
	}
	return &settings, nil
}

func ListIntegrationSettings(ctx context.Context) ([]*IntegrationSettings, error) {
	var results []*IntegrationSettings
	if err := config.GetDB().WithContext(ctx).Order("id").Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

// SaveIntegrationSettings upserts by form id. An empty ApiKey on update keeps the stored key.
func SaveIntegrationSettings(ctx context.Context, input *NewIntegrationSettings) (*IntegrationSettings, error) {
	input.FormId = strings.TrimSpace(input.FormId)
	input.ApiKey = strings.TrimSpace(input.ApiKey)
	if input.FormId == "" {
		return nil, errors.New("form id is required")
	}

	db := config.GetDB()
	settings, err := GetIntegrationSettings(ctx, db, input.FormId)
	if err != nil && !errors.Is(err, utils.ErrorRecordNotFound) {
		return nil, err
	}
	if settings == nil {
		if input.ApiKey == "" {
			return nil, errors.New("api key is required")
		}
		settings = &IntegrationSettings{
			Provider: ImportSourceJotform,
			FormId:   input.FormId,
			IsActive: utils.NewTrue(),
		}
	}
	if input.ApiKey != "" {
		settings.ApiKey = input.ApiKey
	}
	if input.FormTitle != "" {
		settings.FormTitle = input.FormTitle
	}
	if input.FieldMappings != nil {
		settings.FieldMappings = input.FieldMappings
	}
	if input.IsActive != nil {
		settings.IsActive = input.IsActive
	}
	if input.DefaultSeason != "" {
		settings.DefaultSeason = input.DefaultSeason
	}
	if input.DefaultTuition != nil {
		settings.DefaultTuition = *input.DefaultTuition
	}

	if err := db.WithContext(ctx).Save(settings).Error; err != nil {
		return nil, err
	}
	return settings, nil
}

// TouchLastSyncDate records the end of a successful sync, creating the row if the form has none yet.
func TouchLastSyncDate(ctx context.Context, db *gorm.DB, formId string, at time.Time) error {
	res := db.WithContext(ctx).Model(&IntegrationSettings{}).Where("form_id = ?", formId).Update("last_sync_date", at)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected > 0 {
		return nil
	}
	return db.WithContext(ctx).Create(&IntegrationSettings{
		Provider:     ImportSourceJotform,
		FormId:       formId,
		LastSyncDate: &at,
		IsActive:     utils.NewTrue(),
	}).Error
}
