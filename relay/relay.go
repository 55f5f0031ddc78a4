// Package relay implements the Event Relay: per-subscriber bounded
// queues with worker-id/event-type filtering, fanned out locally and
// synchronized across processes over Redis pub/sub. A process with Redis
// disabled or unreachable falls back to local-only broadcast rather than
// failing the publish.
package relay

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog"

	"github.com/cml-fleet/worker-engine/domain/event"
	"github.com/cml-fleet/worker-engine/internal/metrics"
)

// channel is the Redis pub/sub channel every worker-engine process
// subscribes to, so any process's publish reaches every other process's
// locally registered subscribers.
const channel = "worker-engine:events"

// Relay implements repository.EventPublisher. It is safe for concurrent
// use; Publish is called from repository persist paths and must never
// block on a slow subscriber.
type Relay struct {
	mu          sync.RWMutex
	subscribers map[string]*Subscriber

	redisClient *redis.Client
	cancelPump  context.CancelFunc
	wg          sync.WaitGroup

	log   zerolog.Logger
	stats *metrics.Metrics
}

// New builds a Relay. redisClient may be nil, in which case every publish
// is local-only (mirrors the original's "Redis disabled" fallback, just
// decided at construction instead of by a settings flag check per call).
func New(redisClient *redis.Client, log zerolog.Logger, stats *metrics.Metrics) *Relay {
	return &Relay{
		subscribers: make(map[string]*Subscriber),
		redisClient: redisClient,
		log:         log.With().Str("component", "relay").Logger(),
		stats:       stats,
	}
}

// Start begins listening on the Redis pub/sub channel, forwarding every
// message it receives to local subscribers. A no-op when redisClient is
// nil.
func (r *Relay) Start(ctx context.Context) {
	if r.redisClient == nil {
		r.log.Warn().Msg("redis disabled, events will not be synchronized across processes")
		return
	}
	pumpCtx, cancel := context.WithCancel(ctx)
	r.cancelPump = cancel

	pubsub := r.redisClient.Subscribe(pumpCtx, channel)
	ch := pubsub.Channel()

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer pubsub.Close()
		for {
			select {
			case <-pumpCtx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				r.handleRemoteMessage(msg.Payload)
			}
		}
	}()
	r.log.Info().Str("channel", channel).Msg("subscribed to relay channel")
}

// Stop cancels the Redis listener and waits for it to exit.
func (r *Relay) Stop() {
	if r.cancelPump != nil {
		r.cancelPump()
	}
	r.wg.Wait()
}

// Publish implements repository.EventPublisher: it publishes to Redis
// when available, falling back to a local-only broadcast if the Redis
// publish itself fails (mirrors the original's "publish, fallback to
// local broadcast on error" policy rather than dropping the event).
func (r *Relay) Publish(ctx context.Context, e event.Event) error {
	env := event.NewEnvelope(e)

	if r.redisClient != nil {
		data, err := json.Marshal(env)
		if err != nil {
			r.log.Error().Err(err).Str("type", string(env.Type)).Msg("failed to marshal event")
			r.broadcastLocal(env)
			return nil
		}
		if err := r.redisClient.Publish(ctx, channel, data).Err(); err != nil {
			r.log.Error().Err(err).Str("type", string(env.Type)).Msg("failed to publish event to redis, falling back to local broadcast")
			r.broadcastLocal(env)
			return nil
		}
		if r.stats != nil {
			r.stats.RecordEventPublished(string(env.Type))
		}
		return nil
	}

	r.broadcastLocal(env)
	if r.stats != nil {
		r.stats.RecordEventPublished(string(env.Type))
	}
	return nil
}

func (r *Relay) handleRemoteMessage(payload string) {
	var env event.Envelope
	if err := json.Unmarshal([]byte(payload), &env); err != nil {
		r.log.Error().Err(err).Msg("failed to unmarshal relay message")
		return
	}
	r.broadcastLocal(env)
}

// broadcastLocal delivers env to every matching subscriber's queue,
// dropping (and logging + counting) rather than blocking when a
// subscriber's queue is full.
func (r *Relay) broadcastLocal(env event.Envelope) {
	r.mu.RLock()
	matching := make([]*Subscriber, 0, len(r.subscribers))
	for _, sub := range r.subscribers {
		if sub.Matches(env) {
			matching = append(matching, sub)
		}
	}
	r.mu.RUnlock()

	for _, sub := range matching {
		select {
		case sub.Queue <- env:
		default:
			r.log.Warn().Str("subscriber_id", sub.ID).Str("type", string(env.Type)).Msg("subscriber queue full, event dropped")
			if r.stats != nil {
				r.stats.RecordEventDropped(string(env.Type))
			}
		}
	}
}

// Register adds sub to the relay's subscriber set.
func (r *Relay) Register(sub *Subscriber) {
	r.mu.Lock()
	r.subscribers[sub.ID] = sub
	count := len(r.subscribers)
	r.mu.Unlock()

	if r.stats != nil {
		r.stats.SubscribersGauge.Set(float64(count))
	}
	r.log.Info().Str("subscriber_id", sub.ID).Int("total", count).Msg("subscriber registered")
}

// Unregister removes a subscriber by id.
func (r *Relay) Unregister(id string) {
	r.mu.Lock()
	delete(r.subscribers, id)
	count := len(r.subscribers)
	r.mu.Unlock()

	if r.stats != nil {
		r.stats.SubscribersGauge.Set(float64(count))
	}
	r.log.Info().Str("subscriber_id", id).Int("remaining", count).Msg("subscriber unregistered")
}

// SubscriberCount reports the number of currently registered subscribers.
func (r *Relay) SubscriberCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.subscribers)
}
