package jotformsync

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"os"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/stageworks/roster_backend/config"
	"github.com/stageworks/roster_backend/utils"
)

var errNoImportTopic = errors.New("JOTFORM_IMPORT_TOPIC is not configured")

// PublishImportRequest queues an import for the push subscriber.
func PublishImportRequest(ctx context.Context, payload ImportPubSubPayload) (string, error) {
	topic := os.Getenv("JOTFORM_IMPORT_TOPIC")
	if topic == "" {
		return "", errNoImportTopic
	}
	return config.PublishJSON(ctx, topic, payload)
}

// PubSubPushHandler runs queued imports. Malformed messages and configuration errors
// are acked; an import already in progress is nacked so Pub/Sub redelivers later.
// Run failures are recorded on the import log and acked.
func PubSubPushHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		logger := config.GetLogger()

		body, err := io.ReadAll(c.Request.Body)
		if err != nil {
			config.LogError(logger, "jotformsync", "PubSubPushHandler", "io.ReadAll", nil, err)
			c.Status(http.StatusNoContent)
			return
		}
		var msg PubSubPushEnvelope
		// byte slice unmarshalling handles base64 decoding.
		if err := json.Unmarshal(body, &msg); err != nil {
			config.LogError(logger, "jotformsync", "PubSubPushHandler", "Unmarshal body", string(body), err)
			c.Status(http.StatusNoContent)
			return
		}
		var payload ImportPubSubPayload
		if err := json.Unmarshal(msg.Message.Data, &payload); err != nil {
			config.LogError(logger, "jotformsync", "PubSubPushHandler", "Unmarshal payload", string(msg.Message.Data), err)
			c.Status(http.StatusNoContent)
			return
		}

		ctx := c.Request.Context()
		if payload.TriggeredBy != "" {
			ctx = utils.SetUsernameInContext(ctx, payload.TriggeredBy)
		}
		if _, ok := utils.GetCorrelationIdFromContext(ctx); !ok {
			ctx = utils.SetCorrelationIdInContext(ctx, msg.Message.ID)
		}

		result, err := RunImport(ctx, ImportOptions{
			FormID:      payload.FormId,
			Incremental: payload.Incremental,
			TriggeredBy: payload.TriggeredBy,
		})
		if errors.Is(err, ErrImportInProgress) {
			c.Status(http.StatusServiceUnavailable)
			return
		}
		if err != nil {
			config.LogError(logger, "jotformsync", "PubSubPushHandler", "RunImport", payload, err)
			c.Status(http.StatusNoContent)
			return
		}
		logger.WithFields(logrus.Fields{
			"module":     "jotformsync",
			"messageId":  msg.Message.ID,
			"logId":      result.LogId,
			"imported":   result.ImportedCount,
			"duplicates": result.DuplicateCount,
			"errors":     result.ErrorCount,
		}).Info("queued import finished")
		c.Status(http.StatusNoContent)
	}
}
