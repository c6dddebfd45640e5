package main

import (
	"context"
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/pavitra93/go-rental-marketplace/shared/delivery"
	"github.com/pavitra93/go-rental-marketplace/shared/events"
	"github.com/pavitra93/go-rental-marketplace/shared/metrics"
	"github.com/pavitra93/go-rental-marketplace/shared/utils"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// failureRecorder keeps events the webhook rejected for the retry consumer
type failureRecorder interface {
	Record(ctx context.Context, event events.Event, cause error) error
}

type failureStore struct {
	db *gorm.DB
}

func (s *failureStore) Record(ctx context.Context, event events.Event, cause error) error {
	return delivery.RecordFailure(ctx, s.db, event, cause)
}

// forwardEvent delivers each consumed event to the webhook and parks failures
func forwardEvent(sender delivery.Sender, failures failureRecorder, logger *logrus.Entry) events.HandlerFunc {
	return func(ctx context.Context, event events.Event) error {
		log := logger.WithFields(logrus.Fields{
			"event_id":    event.ID,
			"event_type":  event.Type,
			"property_id": event.PropertyID,
		})

		err := sender.Deliver(ctx, event)
		if err == nil {
			metrics.ObserveDelivery("stream", "delivered")
			log.Debug("Event delivered")
			return nil
		}

		metrics.ObserveDelivery("stream", "failed")
		log.WithError(err).Warn("Webhook delivery failed, scheduling retry")

		if recordErr := failures.Record(ctx, event, err); recordErr != nil {
			return fmt.Errorf("event %s lost: %w", event.ID, recordErr)
		}
		return nil
	}
}

// handleHealth reports service health along with the webhook status
func handleHealth(client webhookControl) gin.HandlerFunc {
	return func(c *gin.Context) {
		utils.OKResponse(c, "Notifier is healthy", gin.H{
			"webhook": client.GetStatus(),
		})
	}
}

// handleResetWebhook closes the webhook circuit after an outage has been fixed
func handleResetWebhook(client webhookControl) gin.HandlerFunc {
	return func(c *gin.Context) {
		client.Reset()
		utils.OKResponse(c, "Webhook circuit reset", client.GetStatus())
	}
}
