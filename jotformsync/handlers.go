package jotformsync

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stageworks/roster_backend/config"
	"github.com/stageworks/roster_backend/middlewares"
	"github.com/stageworks/roster_backend/models"
	"github.com/stageworks/roster_backend/utils"
)

const (
	apiKeyHeader      = "X-Jotform-Api-Key"
	questionsCacheTTL = 5 * time.Minute
)

// RegisterRoutes mounts the Jotform integration under rg. Reads need staff, writes need admin.
func RegisterRoutes(rg *gin.RouterGroup) {
	staff := middlewares.RequireRole(models.UserRoleStaff)
	admin := middlewares.RequireRole(models.UserRoleAdmin)

	rg.GET("/settings", staff, listSettingsHandler())
	rg.GET("/settings/:formId", staff, getSettingsHandler())
	rg.PUT("/settings", admin, saveSettingsHandler())
	rg.GET("/forms", staff, listFormsHandler())
	rg.GET("/forms/:formId/questions", staff, questionsHandler())
	rg.GET("/member-fields", staff, func(c *gin.Context) { c.JSON(http.StatusOK, MemberFields) })
	rg.POST("/import", staff, triggerImportHandler())
	rg.GET("/logs", staff, listLogsHandler())
	rg.GET("/logs/:id", staff, getLogHandler())
}

func isConfigError(err error) bool {
	return errors.Is(err, ErrMissingAPIKey) || errors.Is(err, ErrMissingFormID) || errors.Is(err, ErrNoFieldMappings)
}

func toSettingsResponse(s *models.IntegrationSettings) (SettingsResponse, error) {
	mappings, err := DecodeFieldMappings(s.FieldMappings)
	if err != nil {
		return SettingsResponse{}, err
	}
	if mappings == nil {
		mappings = []FieldMapping{}
	}
	resp := SettingsResponse{
		ID:             s.ID,
		FormId:         s.FormId,
		FormTitle:      s.FormTitle,
		ApiKey:         s.MaskedApiKey(),
		FieldMappings:  mappings,
		IsActive:       s.Active(),
		DefaultSeason:  s.DefaultSeason,
		DefaultTuition: s.DefaultTuition,
	}
	if s.LastSyncDate != nil {
		v := s.LastSyncDate.UTC().Format(time.RFC3339)
		resp.LastSyncDate = &v
	}
	return resp, nil
}

func toImportLogResponse(l *models.ImportLog, withErrors bool) ImportLogResponse {
	resp := ImportLogResponse{
		ID:                l.ID,
		FormId:            l.FormId,
		Mode:              string(l.Mode),
		Status:            string(l.Status),
		MembersImported:   l.MembersImported,
		DuplicatesSkipped: l.DuplicatesSkipped,
		ErrorsCount:       l.ErrorsCount,
		StartedAt:         l.StartedAt.UTC().Format(time.RFC3339),
		TriggeredBy:       l.TriggeredBy,
	}
	if l.CompletedAt != nil {
		v := l.CompletedAt.UTC().Format(time.RFC3339)
		resp.CompletedAt = &v
	}
	if withErrors {
		resp.Errors = l.ErrorList()
	}
	return resp
}

func listSettingsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		list, err := models.ListIntegrationSettings(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		out := make([]SettingsResponse, 0, len(list))
		for _, s := range list {
			resp, err := toSettingsResponse(s)
			if err != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
				return
			}
			out = append(out, resp)
		}
		c.JSON(http.StatusOK, out)
	}
}

func getSettingsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		s, err := models.GetIntegrationSettings(c.Request.Context(), config.GetDB(), c.Param("formId"))
		if err != nil {
			if errors.Is(err, utils.ErrorRecordNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "settings not found"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		resp, err := toSettingsResponse(s)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, resp)
	}
}

func saveSettingsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req SettingsRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}
		input := &models.NewIntegrationSettings{
			ApiKey:         req.ApiKey,
			FormId:         req.FormId,
			FormTitle:      req.FormTitle,
			IsActive:       req.IsActive,
			DefaultSeason:  req.DefaultSeason,
			DefaultTuition: req.DefaultTuition,
		}
		if req.FieldMappings != nil {
			for i, m := range req.FieldMappings {
				if m.ExternalFieldId == "" || !IsMemberField(m.MemberField) {
					c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("invalid field mapping at index %d", i)})
					return
				}
				req.FieldMappings[i].MemberFieldLabel = memberFieldLabel(m.MemberField)
			}
			input.FieldMappings = EncodeFieldMappings(req.FieldMappings)
		}

		s, err := models.SaveIntegrationSettings(c.Request.Context(), input)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		_ = config.RemoveRedisKey("JotformQuestions:" + s.FormId)
		resp, err := toSettingsResponse(s)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, resp)
	}
}

// resolveAPIKey prefers an explicit header (first-time setup), then the form's stored key,
// then the default active form's.
func resolveAPIKey(c *gin.Context, formId string) (string, error) {
	if key := c.GetHeader(apiKeyHeader); key != "" {
		return key, nil
	}
	db := config.GetDB()
	var s *models.IntegrationSettings
	var err error
	if formId != "" {
		s, err = models.GetIntegrationSettings(c.Request.Context(), db, formId)
	}
	if s == nil {
		s, err = models.GetDefaultIntegrationSettings(c.Request.Context(), db)
	}
	if err != nil && !errors.Is(err, utils.ErrorRecordNotFound) {
		return "", err
	}
	if s == nil || s.ApiKey == "" {
		return "", ErrMissingAPIKey
	}
	return s.ApiKey, nil
}

func listFormsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		apiKey, err := resolveAPIKey(c, "")
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		client, err := NewClient(apiKey)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		forms, err := client.ListForms(c.Request.Context())
		if err != nil {
			config.LogError(config.GetLogger(), "jotformsync", "listFormsHandler", "ListForms", nil, err)
			c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, forms)
	}
}

func questionsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		formId := c.Param("formId")
		cacheKey := "JotformQuestions:" + formId

		var questions []Question
		exists, err := config.GetRedisObject(cacheKey, &questions)
		if err != nil || !exists {
			apiKey, err := resolveAPIKey(c, formId)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			client, err := NewClient(apiKey)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			questions, err = client.ListQuestions(c.Request.Context(), formId)
			if err != nil {
				config.LogError(config.GetLogger(), "jotformsync", "questionsHandler", "ListQuestions", formId, err)
				c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
				return
			}
			_ = config.SetRedisObject(cacheKey, questions, questionsCacheTTL)
		}

		c.JSON(http.StatusOK, QuestionsResponse{
			Questions:   questions,
			Mappable:    FilterMappableQuestions(questions),
			Suggestions: GenerateFieldMappingSuggestions(questions),
		})
	}
}

func triggerImportHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req TriggerImportRequest
		if c.Request.ContentLength != 0 {
			if err := c.ShouldBindJSON(&req); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
				return
			}
		}
		ctx := c.Request.Context()
		actor := utils.ActorFromContext(ctx)

		async := config.AsyncImportEnabled()
		if req.Async != nil {
			async = *req.Async
		}
		if async {
			msgId, err := PublishImportRequest(ctx, ImportPubSubPayload{
				FormId:      req.FormId,
				Incremental: req.Incremental,
				TriggeredBy: actor,
			})
			if err != nil {
				config.LogError(config.GetLogger(), "jotformsync", "triggerImportHandler", "PublishImportRequest", req, err)
				c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
				return
			}
			c.JSON(http.StatusAccepted, gin.H{"queued": true, "messageId": msgId})
			return
		}

		result, err := RunImport(ctx, ImportOptions{
			FormID:      req.FormId,
			Incremental: req.Incremental,
			TriggeredBy: actor,
		})
		if err != nil {
			if isConfigError(err) {
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			if errors.Is(err, ErrImportInProgress) {
				c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
				return
			}
			if result != nil {
				c.JSON(http.StatusBadGateway, gin.H{"error": err.Error(), "result": result})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, result)
	}
}

func listLogsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		limit, _ := strconv.Atoi(c.Query("limit"))
		logs, err := models.ListImportLogs(c.Request.Context(), c.Query("formId"), limit)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		out := make([]ImportLogResponse, 0, len(logs))
		for _, l := range logs {
			out = append(out, toImportLogResponse(l, false))
		}
		c.JSON(http.StatusOK, out)
	}
}

func getLogHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := strconv.Atoi(c.Param("id"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
			return
		}
		l, err := models.GetImportLog(c.Request.Context(), id)
		if err != nil {
			if errors.Is(err, utils.ErrorRecordNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "import log not found"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, toImportLogResponse(l, true))
	}
}
