package jotformsync

import (
	"bytes"
	"encoding/json"
	"errors"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/stageworks/roster_backend/models"
	"github.com/stageworks/roster_backend/utils"
)

var (
	ErrMissingAPIKey   = errors.New("jotform api key is not configured")
	ErrMissingFormID   = errors.New("jotform form id is not configured")
	ErrNoFieldMappings = errors.New("no field mappings configured for this form")

	ErrImportInProgress = errors.New("an import for this form is already running")
)

// flexString accepts both JSON strings and numbers; Jotform is not consistent about which it sends.
type flexString string

func (f *flexString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || string(b) == "null" {
		*f = ""
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = flexString(s)
		return nil
	}
	*f = flexString(string(b))
	return nil
}

type Form struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Status    string `json:"status"`
	Count     string `json:"count"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

// Question is one field definition of a form.
type Question struct {
	QID   string `json:"qid"`
	Type  string `json:"type"`
	Text  string `json:"text"`
	Name  string `json:"name"`
	Order int    `json:"order"`
}

type rawQuestion struct {
	QID   flexString `json:"qid"`
	Type  string     `json:"type"`
	Text  string     `json:"text"`
	Name  string     `json:"name"`
	Order flexString `json:"order"`
}

func (r rawQuestion) toQuestion(key string) Question {
	q := Question{
		QID:  string(r.QID),
		Type: r.Type,
		Text: r.Text,
		Name: r.Name,
	}
	if q.QID == "" {
		q.QID = key
	}
	if n, err := strconv.Atoi(strings.TrimSpace(string(r.Order))); err == nil {
		q.Order = n
	}
	return q
}

// Submission is one respondent's answers keyed by question id. Absent questions have no key.
type Submission struct {
	ID        string         `json:"id"`
	FormID    string         `json:"form_id"`
	CreatedAt string         `json:"created_at"`
	Answers   map[string]any `json:"answers"`
}

type rawAnswer struct {
	Answer json.RawMessage `json:"answer"`
}

type rawSubmission struct {
	ID        flexString           `json:"id"`
	FormID    flexString           `json:"form_id"`
	CreatedAt string               `json:"created_at"`
	Status    string               `json:"status"`
	Answers   map[string]rawAnswer `json:"answers"`
}

func (r rawSubmission) toSubmission() Submission {
	sub := Submission{
		ID:        string(r.ID),
		FormID:    string(r.FormID),
		CreatedAt: r.CreatedAt,
		Answers:   make(map[string]any, len(r.Answers)),
	}
	for qid, a := range r.Answers {
		if len(a.Answer) == 0 {
			continue
		}
		var v any
		if err := json.Unmarshal(a.Answer, &v); err != nil || v == nil {
			continue
		}
		sub.Answers[qid] = v
	}
	return sub
}

// FieldMapping pairs an external question with a member attribute.
type FieldMapping struct {
	ExternalFieldId    string `json:"externalFieldId"`
	ExternalFieldLabel string `json:"externalFieldLabel"`
	MemberField        string `json:"memberField"`
	MemberFieldLabel   string `json:"memberFieldLabel"`
	Required           bool   `json:"required"`
}

func DecodeFieldMappings(raw []byte) ([]FieldMapping, error) {
	return utils.DecodeJSONList[FieldMapping](raw)
}

func EncodeFieldMappings(mappings []FieldMapping) []byte {
	b, _ := utils.EncodeJSONList(mappings)
	return b
}

// MemberCandidate is a mapped submission not yet persisted.
type MemberCandidate struct {
	ExternalSubmissionId string `json:"externalSubmissionId"`
	Source               string `json:"source"`
	Season               string `json:"season"`

	FirstName    string `json:"firstName,omitempty"`
	LastName     string `json:"lastName,omitempty"`
	LegalName    string `json:"legalName,omitempty"`
	Email        string `json:"email,omitempty"`
	Phone        string `json:"phone,omitempty"`
	ParentName   string `json:"parentName,omitempty"`
	ParentEmail  string `json:"parentEmail,omitempty"`
	ParentPhone  string `json:"parentPhone,omitempty"`
	Address      string `json:"address,omitempty"`
	Birthday     string `json:"birthday,omitempty"`
	Age          *int   `json:"age,omitempty"`
	Section      string `json:"section,omitempty"`
	Instrument   string `json:"instrument,omitempty"`
	SerialNumber string `json:"serialNumber,omitempty"`
}

func (c MemberCandidate) ToMember(tuition decimal.Decimal) models.Member {
	return models.Member{
		FirstName:            c.FirstName,
		LastName:             c.LastName,
		LegalName:            c.LegalName,
		Email:                c.Email,
		Phone:                c.Phone,
		ParentName:           c.ParentName,
		ParentEmail:          c.ParentEmail,
		ParentPhone:          c.ParentPhone,
		Address:              c.Address,
		Birthday:             c.Birthday,
		Age:                  c.Age,
		Section:              c.Section,
		Instrument:           c.Instrument,
		SerialNumber:         c.SerialNumber,
		Season:               c.Season,
		TuitionAmount:        tuition,
		Source:               models.MemberSource(c.Source),
		ExternalSubmissionId: utils.NilIfEmpty(c.ExternalSubmissionId),
	}
}

type ImportOptions struct {
	FormID         string
	APIKey         string
	Incremental    bool
	Mappings       []FieldMapping
	DefaultSeason  string
	DefaultTuition *decimal.Decimal
	TriggeredBy    string
}

type ImportResult struct {
	Success        bool     `json:"success"`
	ImportedCount  int      `json:"importedCount"`
	ErrorCount     int      `json:"errorCount"`
	Errors         []string `json:"errors"`
	DuplicateCount int      `json:"duplicateCount"`
	LogId          int      `json:"logId"`
}

type SettingsRequest struct {
	ApiKey         string           `json:"apiKey"`
	FormId         string           `json:"formId"`
	FormTitle      string           `json:"formTitle"`
	FieldMappings  []FieldMapping   `json:"fieldMappings"`
	IsActive       *bool            `json:"isActive"`
	DefaultSeason  string           `json:"defaultSeason"`
	DefaultTuition *decimal.Decimal `json:"defaultTuition"`
}

type SettingsResponse struct {
	ID             int             `json:"id"`
	FormId         string          `json:"formId"`
	FormTitle      string          `json:"formTitle"`
	ApiKey         string          `json:"apiKey"`
	FieldMappings  []FieldMapping  `json:"fieldMappings"`
	LastSyncDate   *string         `json:"lastSyncDate"`
	IsActive       bool            `json:"isActive"`
	DefaultSeason  string          `json:"defaultSeason"`
	DefaultTuition decimal.Decimal `json:"defaultTuition"`
}

type QuestionsResponse struct {
	Questions   []Question     `json:"questions"`
	Mappable    []Question     `json:"mappable"`
	Suggestions []FieldMapping `json:"suggestions"`
}

type TriggerImportRequest struct {
	FormId      string `json:"formId"`
	Incremental bool   `json:"incremental"`
	Async       *bool  `json:"async"`
}

type ImportLogResponse struct {
	ID                int      `json:"id"`
	FormId            string   `json:"formId"`
	Mode              string   `json:"mode"`
	Status            string   `json:"status"`
	MembersImported   int      `json:"membersImported"`
	DuplicatesSkipped int      `json:"duplicatesSkipped"`
	ErrorsCount       int      `json:"errorsCount"`
	StartedAt         string   `json:"startedAt"`
	CompletedAt       *string  `json:"completedAt"`
	TriggeredBy       string   `json:"triggeredBy"`
	Errors            []string `json:"errors,omitempty"`
}

type PubSubPushEnvelope struct {
	Message struct {
		Data []byte `json:"data"`
		ID   string `json:"messageId"`
	} `json:"message"`
	Subscription string `json:"subscription"`
}

type ImportPubSubPayload struct {
	FormId      string `json:"form_id"`
	Incremental bool   `json:"incremental"`
	TriggeredBy string `json:"triggered_by"`
}
