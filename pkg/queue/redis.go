package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"FinFuse/pkg/logger"

	"github.com/redis/go-redis/v9"
)

// QueueMode defines the operation mode of the queue.
type QueueMode int

const (
	ModeProducerConsumer QueueMode = iota
	ModeProducerOnly
	ModeConsumerOnly
)

func (m QueueMode) String() string {
	switch m {
	case ModeProducerOnly:
		return "producer-only"
	case ModeConsumerOnly:
		return "consumer-only"
	default:
		return "producer-consumer"
	}
}

// RedisQueue is a Redis-backed work queue. Pending messages live in a list,
// scheduled retries in a sorted set keyed by due time, and exhausted messages
// in a dead-letter list.
type RedisQueue struct {
	logger *logger.Logger
	config *QueueConfig
	client *redis.Client
	mode   QueueMode

	keyPrefix string

	mu      sync.RWMutex
	jobs    map[string]Job
	running bool

	wg     sync.WaitGroup
	stop   chan struct{}
	ctx    context.Context
	cancel context.CancelFunc
}

// RedisQueueOption configures RedisQueue.
type RedisQueueOption func(*RedisQueue)

// WithKeyPrefix moves every queue key under the given namespace.
func WithKeyPrefix(prefix string) RedisQueueOption {
	return func(r *RedisQueue) {
		r.keyPrefix = prefix
	}
}

// NewRedisQueue creates a new Redis queue.
func NewRedisQueue(lgr *logger.Logger, config *QueueConfig, client *redis.Client, mode QueueMode, opts ...RedisQueueOption) *RedisQueue {
	if config == nil {
		config = &QueueConfig{}
	}
	config.applyDefaults()

	ctx, cancel := context.WithCancel(context.Background())
	rq := &RedisQueue{
		logger:    lgr,
		config:    config,
		client:    client,
		mode:      mode,
		keyPrefix: "finfuse:queue",
		jobs:      make(map[string]Job),
		stop:      make(chan struct{}),
		ctx:       ctx,
		cancel:    cancel,
	}
	for _, opt := range opts {
		opt(rq)
	}
	return rq
}

// RegisterJob binds a job to its message type. Duplicate registrations and
// registrations on a producer-only queue are ignored with a warning.
func (r *RedisQueue) RegisterJob(job Job) {
	if r.mode == ModeProducerOnly {
		r.logger.Warn("job registration ignored in producer-only mode",
			logger.String("job", job.Name()))
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.jobs[job.Type()]; exists {
		r.logger.Warn("job already registered", logger.String("job", job.Name()))
		return
	}
	r.jobs[job.Type()] = job
	r.logger.Info("job registered",
		logger.String("job", job.Name()),
		logger.String("type", job.Type()))
}

// Start pings Redis and, outside producer-only mode, launches the worker pool
// and the retry promoter.
func (r *RedisQueue) Start() error {
	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		return fmt.Errorf("queue already running")
	}
	r.running = true
	r.mu.Unlock()

	if err := r.ping(); err != nil {
		r.mu.Lock()
		r.running = false
		r.mu.Unlock()
		return err
	}

	if r.mode == ModeProducerOnly {
		r.logger.Info("redis publisher ready",
			logger.String("addr", r.client.Options().Addr))
		return nil
	}

	for i := 0; i < r.config.Workers; i++ {
		r.wg.Add(1)
		go r.workLoop(i)
	}
	r.wg.Add(1)
	go r.promoteLoop()

	r.logger.Info("redis queue started",
		logger.Int("workers", r.config.Workers),
		logger.String("mode", r.mode.String()),
		logger.String("addr", r.client.Options().Addr))
	return nil
}

func (r *RedisQueue) ping() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := r.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}
	return nil
}

// Stop drains the worker pool, waiting at most until ctx expires.
func (r *RedisQueue) Stop(ctx context.Context) error {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return nil
	}
	r.running = false
	r.cancel()
	if r.mode != ModeProducerOnly {
		close(r.stop)
	}
	r.mu.Unlock()

	r.logger.Info("draining redis queue workers")

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		r.logger.Info("redis queue stopped")
		return nil
	case <-ctx.Done():
		r.logger.Warn("queue workers still busy at shutdown deadline", logger.Error(ctx.Err()))
		return fmt.Errorf("timeout: %w", ctx.Err())
	}
}

// Enqueue pushes one message onto the pending list. Outside producer-only
// mode the message type must have a registered job.
func (r *RedisQueue) Enqueue(ctx context.Context, msgType string, payload interface{}) error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if !r.running {
		return fmt.Errorf("queue not running")
	}
	if r.mode != ModeProducerOnly {
		if _, ok := r.jobs[msgType]; !ok {
			return fmt.Errorf("no job registered for type: %s", msgType)
		}
	}

	data, err := json.Marshal(Message{
		ID:        strconv.FormatInt(time.Now().UnixNano(), 10),
		Type:      msgType,
		Payload:   payload,
		Timestamp: time.Now(),
	})
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}
	if err := r.client.LPush(ctx, r.pendingKey(), data).Err(); err != nil {
		return fmt.Errorf("push pending: %w", err)
	}
	return nil
}

// PublishMessage publishes a message (implements QueueService).
func (r *RedisQueue) PublishMessage(ctx context.Context, msgType string, payload interface{}) error {
	return r.Enqueue(ctx, msgType, payload)
}

func (r *RedisQueue) workLoop(id int) {
	defer r.wg.Done()
	r.logger.Info("queue worker started", logger.Int("worker_id", id))

	for {
		select {
		case <-r.stop:
			r.logger.Info("queue worker stopping", logger.Int("worker_id", id))
			return
		case <-r.ctx.Done():
			return
		default:
		}
		if msg, ok := r.nextMessage(); ok {
			r.dispatch(msg)
		}
	}
}

// nextMessage blocks up to a second for a pending message.
func (r *RedisQueue) nextMessage() (Message, bool) {
	ctx, cancel := context.WithTimeout(r.ctx, time.Second)
	defer cancel()

	res, err := r.client.BRPop(ctx, time.Second, r.pendingKey()).Result()
	switch {
	case err == nil:
	case errors.Is(err, redis.Nil),
		errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, context.Canceled):
		return Message{}, false
	default:
		r.logger.Error("pop pending", logger.Error(err))
		time.Sleep(time.Second)
		return Message{}, false
	}
	if len(res) < 2 {
		return Message{}, false
	}

	var msg Message
	if err := json.Unmarshal([]byte(res[1]), &msg); err != nil {
		r.logger.Error("unmarshal message", logger.Error(err))
		return Message{}, false
	}
	return msg, true
}

func (r *RedisQueue) dispatch(msg Message) {
	job, ok := r.jobs[msg.Type]
	if !ok {
		r.logger.Error("no job for message",
			logger.String("type", msg.Type),
			logger.String("id", msg.ID))
		return
	}

	start := time.Now()
	err := job.Handle(r.ctx, normalizePayload(r.logger, msg.Payload))
	switch {
	case err == nil:
	case errors.Is(err, context.Canceled):
		r.logger.Warn("message cancelled",
			logger.String("id", msg.ID),
			logger.String("job", job.Name()),
			logger.Int64("elapsed_ms", time.Since(start).Milliseconds()))
	default:
		r.retryOrBury(msg, job, err)
	}
}

// normalizePayload re-encodes decoded JSON maps as RawMessage so jobs can
// unmarshal into their own types.
func normalizePayload(lgr *logger.Logger, payload interface{}) interface{} {
	m, ok := payload.(map[string]interface{})
	if !ok {
		return payload
	}
	b, err := json.Marshal(m)
	if err != nil {
		lgr.Error("convert payload", logger.Error(err))
		return payload
	}
	return json.RawMessage(b)
}

// retryOrBury schedules another attempt, or moves the message to the
// dead-letter list once the retry limit is spent.
func (r *RedisQueue) retryOrBury(msg Message, job Job, err error) {
	r.logger.Error("message processing error",
		logger.String("id", msg.ID),
		logger.String("job", job.Name()),
		logger.Int("attempt", msg.Attempts+1),
		logger.Error(err))

	if msg.Attempts >= r.config.RetryLimit {
		r.logger.Error("max retries reached",
			logger.String("id", msg.ID),
			logger.String("job", job.Name()))
		r.bury(msg)
		return
	}

	msg.Attempts++
	retryAt := time.Now().Add(r.config.RetryDelay)
	r.pushRetry(msg, retryAt)
	r.logger.Info("scheduled retry",
		logger.String("id", msg.ID),
		logger.String("job", job.Name()),
		logger.Int("attempt", msg.Attempts),
		logger.String("retry_at", retryAt.Format(time.RFC3339)))
}

func (r *RedisQueue) pushRetry(msg Message, retryAt time.Time) {
	data, err := json.Marshal(msg)
	if err != nil {
		r.logger.Error("marshal retry", logger.Error(err))
		return
	}
	entry := redis.Z{Score: float64(retryAt.Unix()), Member: data}
	if err := r.client.ZAdd(context.Background(), r.retryKey(), entry).Err(); err != nil {
		r.logger.Error("zadd retry", logger.Error(err))
	}
}

func (r *RedisQueue) bury(msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		r.logger.Error("marshal dlq", logger.Error(err))
		return
	}
	if err := r.client.LPush(context.Background(), r.dlqKey(), data).Err(); err != nil {
		r.logger.Error("lpush dlq", logger.Error(err))
	}
}

func (r *RedisQueue) promoteLoop() {
	defer r.wg.Done()
	r.logger.Info("retry promoter started")

	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-r.stop:
			r.logger.Info("retry promoter stopping")
			return
		case <-r.ctx.Done():
			return
		case <-ticker.C:
			r.promoteDue()
		}
	}
}

// promoteDue moves retry entries whose due time has passed back onto the
// pending list.
func (r *RedisQueue) promoteDue() {
	max := strconv.FormatInt(time.Now().Unix(), 10)
	due, err := r.client.ZRangeByScoreWithScores(r.ctx, r.retryKey(), &redis.ZRangeBy{
		Min: "0",
		Max: max,
	}).Result()
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			r.logger.Error("fetch due retries", logger.Error(err))
		}
		return
	}

	for _, z := range due {
		if r.ctx.Err() != nil {
			return
		}
		data, ok := z.Member.(string)
		if !ok {
			continue
		}
		if err := r.promote(data); err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			r.logger.Error("promote retry", logger.Error(err))
		}
	}
}

// promote moves one due entry back to pending. ZRem and LPush run in a single
// transaction so an entry cannot be promoted twice.
func (r *RedisQueue) promote(data string) error {
	pipe := r.client.TxPipeline()
	pipe.ZRem(r.ctx, r.retryKey(), data)
	pipe.LPush(r.ctx, r.pendingKey(), data)
	_, err := pipe.Exec(r.ctx)
	return err
}

func (r *RedisQueue) pendingKey() string { return r.keyPrefix + ":pending" }

func (r *RedisQueue) retryKey() string { return r.keyPrefix + ":retry" }

func (r *RedisQueue) dlqKey() string { return r.keyPrefix + ":dlq" }
