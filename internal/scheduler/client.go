package scheduler

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"time"

	"voice_sales_backend/platform/config"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
)

type enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
	Close() error
}

type Client struct {
	client enqueuer
	queue  string
}

func NewClient(cfg config.SchedulerConfig) (*Client, error) {
	redisURL := cfg.GetRedisURL()
	if redisURL == "" {
		return nil, fmt.Errorf("redis url not configured")
	}

	opt, err := redisClientOpt(redisURL, cfg.GetRedisTLSInsecure())
	if err != nil {
		return nil, err
	}

	return &Client{
		client: asynq.NewClient(opt),
		queue:  queueName(cfg),
	}, nil
}

func (c *Client) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}

// ScheduleFollowUp enqueues the follow-up message for a COLD lead. A lead has
// at most one follow-up in flight.
func (c *Client) ScheduleFollowUp(ctx context.Context, phone string, runAt time.Time) error {
	if c == nil || c.client == nil {
		return nil
	}

	task, err := NewLeadFollowUpTask(LeadFollowUpPayload{Phone: phone})
	if err != nil {
		return err
	}

	return c.enqueue(ctx, task, runAt, "followup:"+phone)
}

// ScheduleCallbackReminder enqueues the desk reminder for a callback due at
// scheduledAt. Reminders are keyed by callback and due time, so publishing
// the same schedule twice enqueues one task.
func (c *Client) ScheduleCallbackReminder(ctx context.Context, callbackID uuid.UUID, scheduledAt, runAt time.Time) error {
	if c == nil || c.client == nil {
		return nil
	}

	task, err := NewCallbackReminderTask(CallbackReminderPayload{
		CallbackID:  callbackID.String(),
		ScheduledAt: scheduledAt.Unix(),
	})
	if err != nil {
		return err
	}

	return c.enqueue(ctx, task, runAt, fmt.Sprintf("callback-reminder:%s:%d", callbackID, scheduledAt.Unix()))
}

func (c *Client) enqueue(ctx context.Context, task *asynq.Task, runAt time.Time, taskID string) error {
	_, err := c.client.EnqueueContext(ctx, task,
		asynq.ProcessAt(runAt),
		asynq.Queue(c.queue),
		asynq.TaskID(taskID),
		asynq.MaxRetry(5),
	)
	if errors.Is(err, asynq.ErrTaskIDConflict) {
		return nil
	}
	return err
}

func queueName(cfg config.SchedulerConfig) string {
	if queue := cfg.GetAsynqQueueName(); queue != "" {
		return queue
	}
	return "default"
}

func redisClientOpt(redisURL string, tlsInsecure bool) (asynq.RedisClientOpt, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return asynq.RedisClientOpt{}, err
	}

	var tlsConfig *tls.Config
	if opt.TLSConfig != nil {
		clone := opt.TLSConfig.Clone()
		if tlsInsecure {
			clone.InsecureSkipVerify = true
		}
		tlsConfig = clone
	} else if tlsInsecure {
		tlsConfig = &tls.Config{InsecureSkipVerify: true}
	}

	return asynq.RedisClientOpt{
		Addr:      opt.Addr,
		Password:  opt.Password,
		DB:        opt.DB,
		TLSConfig: tlsConfig,
	}, nil
}
