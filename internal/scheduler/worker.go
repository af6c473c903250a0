package scheduler

import (
	"context"
	"fmt"
	"time"

	"voice_sales_backend/internal/events"
	"voice_sales_backend/platform/config"
	"voice_sales_backend/platform/logger"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

// Worker turns due tasks into domain events. Delivery itself is done by the
// handlers subscribed to the bus.
type Worker struct {
	server *asynq.Server
	mux    *asynq.ServeMux
	bus    events.Bus
	log    *logger.Logger
}

func NewWorker(cfg config.SchedulerConfig, bus events.Bus, log *logger.Logger) (*Worker, error) {
	redisURL := cfg.GetRedisURL()
	if redisURL == "" {
		return nil, fmt.Errorf("redis url not configured")
	}

	opt, err := redisClientOpt(redisURL, cfg.GetRedisTLSInsecure())
	if err != nil {
		return nil, err
	}

	concurrency := cfg.GetAsynqConcurrency()
	if concurrency < 1 {
		concurrency = 10
	}

	w := newWorker(bus, log)
	w.server = asynq.NewServer(opt, asynq.Config{
		Concurrency: concurrency,
		Queues: map[string]int{
			queueName(cfg): 1,
		},
		ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
			log.Error("scheduler task failed", "task", task.Type(), "error", err)
		}),
	})
	return w, nil
}

func newWorker(bus events.Bus, log *logger.Logger) *Worker {
	mux := asynq.NewServeMux()
	w := &Worker{mux: mux, bus: bus, log: log}

	mux.HandleFunc(TaskCallbackReminder, w.handleCallbackReminder)
	mux.HandleFunc(TaskLeadFollowUp, w.handleLeadFollowUp)

	return w
}

// Run processes tasks until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	if w == nil || w.server == nil {
		return nil
	}

	if err := w.server.Start(w.mux); err != nil {
		return fmt.Errorf("start scheduler worker: %w", err)
	}
	w.log.Info("scheduler worker started")

	<-ctx.Done()
	w.server.Shutdown()
	w.log.Info("scheduler worker stopped")
	return nil
}

func (w *Worker) handleCallbackReminder(ctx context.Context, task *asynq.Task) error {
	payload, err := ParseCallbackReminderPayload(task)
	if err != nil {
		return fmt.Errorf("%w: %v", asynq.SkipRetry, err)
	}

	callbackID, err := uuid.Parse(payload.CallbackID)
	if err != nil {
		return fmt.Errorf("%w: %v", asynq.SkipRetry, err)
	}

	event := events.CallbackDue{
		BaseEvent:  events.NewBaseEvent(),
		CallbackID: callbackID,
	}
	if payload.ScheduledAt > 0 {
		at := time.Unix(payload.ScheduledAt, 0).UTC()
		event.ScheduledAt = &at
	}
	return w.bus.PublishSync(ctx, event)
}

func (w *Worker) handleLeadFollowUp(ctx context.Context, task *asynq.Task) error {
	payload, err := ParseLeadFollowUpPayload(task)
	if err != nil {
		return fmt.Errorf("%w: %v", asynq.SkipRetry, err)
	}
	if payload.Phone == "" {
		return fmt.Errorf("%w: follow-up without phone", asynq.SkipRetry)
	}

	return w.bus.PublishSync(ctx, events.FollowUpDue{
		BaseEvent: events.NewBaseEvent(),
		Phone:     payload.Phone,
	})
}
