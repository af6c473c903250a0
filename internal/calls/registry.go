package calls

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"
)

const activeCallsKey = "active_calls"

// ActiveCall is one live call as seen by every API instance.
type ActiveCall struct {
	CallID    string    `json:"callId"`
	Phone     string    `json:"phone,omitempty"`
	StartedAt time.Time `json:"startedAt"`
	Instance  string    `json:"instance,omitempty"`
}

// Registry mirrors active calls to Redis: a hash per call that expires after
// ttl plus a set of call ids.
type Registry struct {
	client   redis.UniversalClient
	ttl      time.Duration
	instance string
}

func NewRegistry(client redis.UniversalClient, ttl time.Duration, instance string) *Registry {
	return &Registry{client: client, ttl: ttl, instance: instance}
}

// NewRedisClient connects to redisURL.
func NewRedisClient(ctx context.Context, redisURL string) (*redis.Client, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opt)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

func callKey(callID string) string {
	return "call:" + callID
}

func (r *Registry) Register(ctx context.Context, call ActiveCall) error {
	key := callKey(call.CallID)
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key, map[string]any{
			"phone":      call.Phone,
			"started_at": call.StartedAt.UTC().Format(time.RFC3339Nano),
			"instance":   r.instance,
			"status":     "active",
		})
		pipe.Expire(ctx, key, r.ttl)
		pipe.SAdd(ctx, activeCallsKey, call.CallID)
		return nil
	})
	if err != nil {
		return fmt.Errorf("register call %s: %w", call.CallID, err)
	}
	return nil
}

// Touch pushes the call's expiry ttl into the future. Calls that keep
// reporting activity stay listed however long they run.
func (r *Registry) Touch(ctx context.Context, callID string) error {
	if err := r.client.Expire(ctx, callKey(callID), r.ttl).Err(); err != nil {
		return fmt.Errorf("touch call %s: %w", callID, err)
	}
	return nil
}

func (r *Registry) Remove(ctx context.Context, callID string) error {
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, callKey(callID))
		pipe.SRem(ctx, activeCallsKey, callID)
		return nil
	})
	if err != nil {
		return fmt.Errorf("remove call %s: %w", callID, err)
	}
	return nil
}

// List returns the active calls sorted by start time. Ids whose hash has
// expired are pruned from the set.
func (r *Registry) List(ctx context.Context) ([]ActiveCall, error) {
	ids, err := r.client.SMembers(ctx, activeCallsKey).Result()
	if err != nil {
		return nil, fmt.Errorf("list active calls: %w", err)
	}

	calls := make([]ActiveCall, 0, len(ids))
	var stale []any
	for _, id := range ids {
		fields, err := r.client.HGetAll(ctx, callKey(id)).Result()
		if err != nil {
			return nil, fmt.Errorf("load call %s: %w", id, err)
		}
		if len(fields) == 0 {
			stale = append(stale, id)
			continue
		}
		call := ActiveCall{CallID: id, Phone: fields["phone"], Instance: fields["instance"]}
		if t, err := time.Parse(time.RFC3339Nano, fields["started_at"]); err == nil {
			call.StartedAt = t
		}
		calls = append(calls, call)
	}

	if len(stale) > 0 {
		if err := r.client.SRem(ctx, activeCallsKey, stale...).Err(); err != nil {
			return nil, fmt.Errorf("prune active calls: %w", err)
		}
	}

	sort.Slice(calls, func(i, j int) bool {
		if calls[i].StartedAt.Equal(calls[j].StartedAt) {
			return calls[i].CallID < calls[j].CallID
		}
		return calls[i].StartedAt.Before(calls[j].StartedAt)
	})
	return calls, nil
}
