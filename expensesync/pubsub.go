package expensesync

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"bitbucket.org/mmdatafocus/expenses_backend/config"
	"bitbucket.org/mmdatafocus/expenses_backend/models"
	"bitbucket.org/mmdatafocus/expenses_backend/utils"
	"cloud.google.com/go/pubsub"
	"github.com/gin-gonic/gin"
)

// PublishSyncRun enqueues a scheduled sync for one source. Cloud Scheduler
// publishes to the topic; the push subscription delivers to PubSubPushHandler.
func PublishSyncRun(ctx context.Context, source models.SourceSystem, fromDate time.Time) error {
	topicName := strings.TrimSpace(os.Getenv("EXPENSE_SYNC_TOPIC"))
	if topicName == "" {
		topicName = "expense-sync"
	}

	client, err := config.GetClient(ctx)
	if err != nil {
		return err
	}

	topic := client.Topic(topicName)
	if utils.BoolFromEnv("EXPENSE_SYNC_CREATE_TOPIC", false) {
		topic, err = config.CreateTopicIfNotExists(client, topicName)
		if err != nil {
			return err
		}
	}

	correlationId, _ := utils.GetCorrelationIdFromContext(ctx)
	payload := SyncPubSubPayload{
		Source:        string(source),
		FromDate:      fromDate.UTC().Format("2006-01-02"),
		CorrelationId: correlationId,
	}
	data, _ := json.Marshal(payload)
	res := topic.Publish(ctx, &pubsub.Message{Data: data})
	_, err = res.Get(ctx)
	return err
}

// ScheduleSyncHandler enqueues a sync through Pub/Sub instead of running it
// inline; the push subscription delivers it back to PubSubPushHandler. Used by
// operators to kick a run without holding the HTTP connection open.
func ScheduleSyncHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		source := models.SourceSystem(strings.ToUpper(strings.TrimSpace(c.Query("source"))))
		if source != models.SourceSystemERP && source != models.SourceSystemCard {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "source must be ERP or CARD"})
			return
		}

		fromDate := time.Now().AddDate(0, 0, -defaultSyncWindowDays)
		if raw := strings.TrimSpace(c.Query("fromDate")); raw != "" {
			parsed, err := time.Parse("2006-01-02", raw)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "fromDate must be YYYY-MM-DD"})
				return
			}
			fromDate = parsed
		}

		if err := PublishSyncRun(c.Request.Context(), source, fromDate); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": err.Error()})
			return
		}
		c.JSON(http.StatusAccepted, gin.H{"success": true, "message": "sync scheduled"})
	}
}

// PubSubPushHandler runs a scheduled sync delivered over a Pub/Sub push
// subscription. Always acks (204); a failed run is recorded in its run log,
// and redelivery would only repeat an idempotent sync.
func (s *Service) PubSubPushHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !utils.BoolFromEnv("ENABLE_EXPENSE_SYNC_PUSH_ENDPOINT", true) {
			c.Status(204)
			return
		}

		body, err := io.ReadAll(c.Request.Body)
		if err != nil {
			c.Status(204)
			return
		}

		var envelope PubSubPushEnvelope
		if err := json.Unmarshal(body, &envelope); err != nil {
			c.Status(204)
			return
		}

		var payload SyncPubSubPayload
		if err := json.Unmarshal(envelope.Message.Data, &payload); err != nil {
			c.Status(204)
			return
		}

		var adapter SourceAdapter
		switch models.SourceSystem(payload.Source) {
		case models.SourceSystemERP:
			adapter = s.erp
		case models.SourceSystemCard:
			adapter = s.card
		default:
			c.Status(204)
			return
		}

		fromDate := time.Now().AddDate(0, 0, -defaultSyncWindowDays)
		if payload.FromDate != "" {
			if parsed, err := time.Parse("2006-01-02", payload.FromDate); err == nil {
				fromDate = parsed
			}
		}

		ctx := c.Request.Context()
		if payload.CorrelationId != "" {
			ctx = utils.SetCorrelationIdInContext(ctx, payload.CorrelationId)
		}
		ctx = utils.SetTriggeredByInContext(ctx, models.SyncTriggeredScheduled)

		_, _ = s.worker.Run(ctx, adapter, fromDate, models.SyncTriggeredScheduled)
		c.Status(204)
	}
}
