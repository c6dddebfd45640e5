package delivery

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/pavitra93/go-rental-marketplace/shared/events"
	"github.com/pavitra93/go-rental-marketplace/shared/metrics"
	"github.com/pavitra93/go-rental-marketplace/shared/models"
	"github.com/sirupsen/logrus"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	DefaultMaxRetries = 8
	DefaultBatchSize  = 100
	baseDelay         = time.Minute
)

// Sender delivers one event
type Sender interface {
	Deliver(ctx context.Context, event events.Event) error
}

// Backoff is the wait before retry attempt n (1-based): 1m, 2m, 4m, ...
func Backoff(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	return baseDelay * time.Duration(1<<(attempt-1))
}

// RecordFailure stores an event the webhook did not accept; the first retry is due after one backoff step
func RecordFailure(ctx context.Context, db *gorm.DB, event events.Event, cause error) error {
	payload, err := jsonPayload(event)
	if err != nil {
		return err
	}
	next := time.Now().UTC().Add(Backoff(1))
	failed := models.FailedDelivery{
		EventID:      event.ID,
		EventType:    string(event.Type),
		PropertyID:   event.PropertyID,
		Payload:      payload,
		ErrorMessage: cause.Error(),
		Status:       models.DeliveryStatusPending,
		NextRetryAt:  &next,
	}
	if err := db.WithContext(ctx).Create(&failed).Error; err != nil {
		return fmt.Errorf("failed to store failed delivery: %w", err)
	}
	return nil
}

func jsonPayload(event events.Event) (datatypes.JSON, error) {
	data, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("failed to encode event: %w", err)
	}
	return datatypes.JSON(data), nil
}

// Retrier redelivers pending failures in batches
type Retrier struct {
	db         *gorm.DB
	sender     Sender
	maxRetries int
	batchSize  int
	now        func() time.Time
	log        *logrus.Entry
}

// NewRetrier creates a retrier with the default limits
func NewRetrier(db *gorm.DB, sender Sender) *Retrier {
	return &Retrier{
		db:         db,
		sender:     sender,
		maxRetries: DefaultMaxRetries,
		batchSize:  DefaultBatchSize,
		now:        func() time.Time { return time.Now().UTC() },
		log:        logrus.WithField("component", "retrier"),
	}
}

// RunOnce processes every pending failure that is due. It returns how many were attempted.
func (r *Retrier) RunOnce(ctx context.Context) (int, error) {
	var due []models.FailedDelivery
	err := r.db.WithContext(ctx).
		Where("status = ? AND next_retry_at <= ?", models.DeliveryStatusPending, r.now()).
		Order("created_at ASC").
		Limit(r.batchSize).
		Find(&due).Error
	if err != nil {
		return 0, fmt.Errorf("failed to fetch pending deliveries: %w", err)
	}

	for i := range due {
		if err := r.retry(ctx, &due[i]); err != nil {
			r.log.WithError(err).WithField("delivery_id", due[i].ID).Error("Failed to update delivery")
		}
	}

	r.exportPending(ctx)
	return len(due), nil
}

func (r *Retrier) retry(ctx context.Context, failed *models.FailedDelivery) error {
	event, err := events.Decode(failed.Payload)
	if err != nil {
		return r.markPermanentlyFailed(ctx, failed, fmt.Sprintf("undecodable payload: %v", err))
	}

	if err := r.sender.Deliver(ctx, event); err != nil {
		metrics.ObserveDelivery("retry", "failed")
		return r.updateRetryStatus(ctx, failed, err)
	}

	metrics.ObserveDelivery("retry", "delivered")
	return r.markResolved(ctx, failed)
}

// updateRetryStatus counts the attempt and schedules the next one with exponential backoff
func (r *Retrier) updateRetryStatus(ctx context.Context, failed *models.FailedDelivery, cause error) error {
	failed.RetryCount++

	if failed.RetryCount >= r.maxRetries {
		r.log.WithField("event_id", failed.EventID).Warn("Delivery permanently failed")
		return r.markPermanentlyFailed(ctx, failed, fmt.Sprintf("max retries reached: %v", cause))
	}

	next := r.now().Add(Backoff(failed.RetryCount + 1))
	failed.NextRetryAt = &next
	failed.ErrorMessage = cause.Error()
	return r.db.WithContext(ctx).Save(failed).Error
}

func (r *Retrier) markResolved(ctx context.Context, failed *models.FailedDelivery) error {
	now := r.now()
	failed.Status = models.DeliveryStatusResolved
	failed.ResolvedAt = &now
	return r.db.WithContext(ctx).Save(failed).Error
}

func (r *Retrier) markPermanentlyFailed(ctx context.Context, failed *models.FailedDelivery, reason string) error {
	now := r.now()
	failed.Status = models.DeliveryStatusPermanentlyFailed
	failed.ResolvedAt = &now
	failed.ErrorMessage = reason
	return r.db.WithContext(ctx).Save(failed).Error
}

func (r *Retrier) exportPending(ctx context.Context) {
	var pending int64
	if err := r.db.WithContext(ctx).Model(&models.FailedDelivery{}).
		Where("status = ?", models.DeliveryStatusPending).Count(&pending).Error; err == nil {
		metrics.SetPendingDeliveries(pending)
	}
}

// Stats counts deliveries per status
type Stats struct {
	Pending           int64 `json:"pending"`
	Resolved          int64 `json:"resolved"`
	PermanentlyFailed int64 `json:"permanently_failed"`
}

// GetStats returns retry statistics
func (r *Retrier) GetStats(ctx context.Context) (Stats, error) {
	var rows []struct {
		Status models.DeliveryStatus
		Count  int64
	}
	err := r.db.WithContext(ctx).Model(&models.FailedDelivery{}).
		Select("status, COUNT(*) AS count").
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return Stats{}, fmt.Errorf("failed to count deliveries: %w", err)
	}

	var stats Stats
	for _, row := range rows {
		switch row.Status {
		case models.DeliveryStatusPending:
			stats.Pending = row.Count
		case models.DeliveryStatusResolved:
			stats.Resolved = row.Count
		case models.DeliveryStatusPermanentlyFailed:
			stats.PermanentlyFailed = row.Count
		}
	}
	return stats, nil
}

// Config describes the retrier limits for the stats endpoint
func (r *Retrier) Config() map[string]interface{} {
	return map[string]interface{}{
		"max_retries": r.maxRetries,
		"batch_size":  r.batchSize,
		"base_delay":  baseDelay.String(),
	}
}
