package kafka

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/rand"
	"runtime"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/segmentio/kafka-go"
)

// MessageHandler handles messages from a specific topic.
type MessageHandler interface {
	Topic() string
	Handle(context.Context, []byte) error
}

// ConsumerOption configures Consumer.
type ConsumerOption func(*ConsumerConfig)

// ConsumerConfig holds consumer configuration.
type ConsumerConfig struct {
	Brokers         []string
	GroupID         string
	AutoOffsetReset string
	WorkerCount     int
	BufferSize      int
	RetryMax        int
	BackoffMin      time.Duration
	BackoffMax      time.Duration
	DLQTopic        string
	MinBytes        int
	MaxBytes        int
}

func defaultConsumerConfig() *ConsumerConfig {
	return &ConsumerConfig{
		GroupID:         "default",
		AutoOffsetReset: "earliest",
		WorkerCount:     1,
		BufferSize:      10,
		RetryMax:        3,
		BackoffMin:      50 * time.Millisecond,
		BackoffMax:      2 * time.Second,
		MinBytes:        10e3, // 10KB
		MaxBytes:        10e6, // 10MB
	}
}

// WithConsumerBrokers points the consumer at the given brokers.
func WithConsumerBrokers(brokers []string) ConsumerOption {
	return func(c *ConsumerConfig) { c.Brokers = brokers }
}

// WithConsumerGroupID names the consumer group.
func WithConsumerGroupID(groupID string) ConsumerOption {
	return func(c *ConsumerConfig) { c.GroupID = groupID }
}

// WithConsumerAutoOffsetReset picks where a fresh group starts reading,
// "earliest" or "latest".
func WithConsumerAutoOffsetReset(reset string) ConsumerOption {
	return func(c *ConsumerConfig) {
		if reset != "" {
			c.AutoOffsetReset = reset
		}
	}
}

// WithConsumerWorkers sizes the worker pool.
func WithConsumerWorkers(count int) ConsumerOption {
	return func(c *ConsumerConfig) { c.WorkerCount = count }
}

// WithConsumerRetry bounds per-message attempts and the backoff range
// between them.
func WithConsumerRetry(max int, backoffMin, backoffMax time.Duration) ConsumerOption {
	return func(c *ConsumerConfig) {
		c.RetryMax = max
		c.BackoffMin = backoffMin
		c.BackoffMax = backoffMax
	}
}

// WithConsumerDLQ routes exhausted messages to the named topic.
func WithConsumerDLQ(topic string) ConsumerOption {
	return func(c *ConsumerConfig) { c.DLQTopic = topic }
}

// WithConsumerFetch sets fetch min/max bytes.
func WithConsumerFetch(minBytes, maxBytes int) ConsumerOption {
	return func(c *ConsumerConfig) {
		c.MinBytes = minBytes
		c.MaxBytes = maxBytes
	}
}

// WithConsumerBufferSize sets the internal channel buffer size.
func WithConsumerBufferSize(n int) ConsumerOption {
	return func(c *ConsumerConfig) {
		if n > 0 {
			c.BufferSize = n
		}
	}
}

// Consumer reads registered topics through a shared worker pool. Handling is
// serialized per (topic, partition) so envelope order within a partition holds.
type Consumer struct {
	cfg      *ConsumerConfig
	readers  map[string]*kafka.Reader
	handlers map[string]MessageHandler
	work     chan inbound
	quit     chan struct{}
	wg       sync.WaitGroup
	stopOnce sync.Once
	dlq      *kafka.Writer
	serial   map[string]map[int]*sync.Mutex
	hook     ConsumerHook
}

type inbound struct {
	topic string
	msg   kafka.Message
}

// NewConsumer creates a new Kafka consumer.
func NewConsumer(opts ...ConsumerOption) (*Consumer, error) {
	cfg := defaultConsumerConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("brokers are required")
	}

	c := &Consumer{
		cfg:      cfg,
		readers:  make(map[string]*kafka.Reader),
		handlers: make(map[string]MessageHandler),
		work:     make(chan inbound, cfg.BufferSize),
		quit:     make(chan struct{}),
		serial:   make(map[string]map[int]*sync.Mutex),
		hook:     NoopHook{},
	}

	consumerMetricsOnce.Do(registerConsumerMetrics)

	if cfg.DLQTopic != "" {
		c.dlq = &kafka.Writer{Addr: kafka.TCP(cfg.Brokers...), Balancer: &kafka.LeastBytes{}}
	}
	return c, nil
}

// WithConsumerHook sets a hook implementation for lifecycle events.
func (c *Consumer) WithConsumerHook(h ConsumerHook) {
	if h != nil {
		c.hook = h
	}
}

// RegisterHandler registers a message handler for a specific topic.
func (c *Consumer) RegisterHandler(handler MessageHandler) {
	topic := handler.Topic()
	if _, ok := c.handlers[topic]; ok {
		log.Printf("warn: handler already registered for topic %s", topic)
		return
	}
	c.handlers[topic] = handler
}

// Start opens one reader per registered topic and launches the worker pool.
func (c *Consumer) Start() error {
	for topic := range c.handlers {
		c.readers[topic] = c.buildReader(topic)
		log.Printf("kafka consumer: watching topic=%s", topic)
	}

	for i := 0; i < c.cfg.WorkerCount; i++ {
		c.wg.Add(1)
		go c.workLoop()
	}

	for topic, reader := range c.readers {
		c.wg.Add(1)
		go c.readLoop(topic, reader)
	}

	log.Printf("kafka consumer: running topics=%d workers=%d", len(c.readers), c.cfg.WorkerCount)
	return nil
}

func (c *Consumer) buildReader(topic string) *kafka.Reader {
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers:     c.cfg.Brokers,
		Topic:       topic,
		GroupID:     c.cfg.GroupID,
		MinBytes:    c.cfg.MinBytes,
		MaxBytes:    c.cfg.MaxBytes,
		StartOffset: startOffset(c.cfg.AutoOffsetReset),
	})
}

// startOffset maps the offset reset strategy onto kafka-go start offsets.
// The value only matters the first time a group sees a partition.
func startOffset(reset string) int64 {
	if reset == "latest" {
		return kafka.LastOffset
	}
	return kafka.FirstOffset
}

// Stop stops the Kafka consumer gracefully.
func (c *Consumer) Stop(ctx context.Context) error {
	var stopErr error

	c.stopOnce.Do(func() {
		log.Println("kafka consumer: stopping...")

		close(c.quit)
		close(c.work)

		stopErr = c.awaitDone(ctx)
		c.closeEndpoints()

		if stopErr == nil {
			log.Println("kafka consumer: stopped")
		}
	})

	return stopErr
}

func (c *Consumer) awaitDone(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()

	select {
	case <-ctx.Done():
		return fmt.Errorf("timeout waiting for consumer to stop: %w", ctx.Err())
	case <-done:
		return nil
	}
}

func (c *Consumer) closeEndpoints() {
	for topic, reader := range c.readers {
		if err := reader.Close(); err != nil {
			log.Printf("error closing reader for topic %s: %v", topic, err)
		}
	}
	if c.dlq != nil {
		if err := c.dlq.Close(); err != nil {
			log.Printf("error closing dlq writer: %v", err)
		}
	}
}

func (c *Consumer) readLoop(topic string, reader *kafka.Reader) {
	defer c.wg.Done()

	for {
		select {
		case <-c.quit:
			return
		default:
		}

		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		msg, err := reader.ReadMessage(ctx)
		cancel()
		if err != nil {
			if !errors.Is(err, context.DeadlineExceeded) {
				log.Printf("error reading message from topic %s: %v", topic, err)
			}
			continue
		}

		if !c.enqueue(inbound{topic: topic, msg: msg}) {
			return
		}
	}
}

// enqueue hands a message to the worker pool. It never drops: when the channel
// is saturated it backs off and retries until space frees or shutdown begins.
func (c *Consumer) enqueue(in inbound) bool {
	for {
		select {
		case c.work <- in:
			consumerQueueDepth.WithLabelValues(in.topic).Set(float64(len(c.work)))
			consumerQueueFullness.WithLabelValues(in.topic).Set(float64(len(c.work)) / float64(cap(c.work)))
			return true
		case <-c.quit:
			return false
		default:
			full := float64(len(c.work)) / float64(cap(c.work))
			consumerQueueFullness.WithLabelValues(in.topic).Set(full)
			if full > 0.8 {
				time.Sleep(10 * time.Millisecond)
			} else {
				runtime.Gosched()
			}
		}
	}
}

func (c *Consumer) workLoop() {
	defer c.wg.Done()

	for in := range c.work {
		handler, ok := c.handlers[in.topic]
		if !ok {
			continue
		}
		c.process(handler, in)
	}
}

// process runs one message through hooks, the handler, bounded retries, and
// the DLQ. A panicking handler fails the message instead of killing the worker.
func (c *Consumer) process(handler MessageHandler, in inbound) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("panic in message handler for topic %s: %v", in.topic, r)
		}
	}()

	// One in-flight message per (topic, partition).
	lock := c.serialFor(in.topic, in.msg.Partition)
	lock.Lock()
	defer lock.Unlock()

	start := time.Now()
	var err error
	attempts := 0
	for {
		attempts++
		hctx, hmsg, hdata, berr := c.hook.BeforeHandle(context.Background(), in.topic, in.msg, in.msg.Value)
		if berr != nil {
			err = berr
			break
		}

		err = handler.Handle(hctx, hdata)
		c.hook.AfterHandle(hctx, in.topic, hmsg, hdata, err)
		if err == nil || attempts > c.cfg.RetryMax {
			break
		}

		c.hook.OnError(hctx, in.topic, hmsg, hdata, err)
		select {
		case <-time.After(retryDelay(c.cfg.BackoffMin, c.cfg.BackoffMax, attempts)):
		case <-c.quit:
			return
		}
	}

	if err != nil {
		c.hook.OnError(context.Background(), in.topic, in.msg, in.msg.Value, err)
		log.Printf("error handling message from topic %s after %d attempts: %v", in.topic, attempts-1, err)
		c.deadLetter(in)
	}

	// Commit on success, or after the DLQ hand-off so a poison message
	// cannot wedge its partition.
	if err == nil || c.dlq != nil {
		if reader := c.readers[in.topic]; reader != nil {
			_ = c.commit(reader, in.msg, 3)
		}
	}

	consumerHandleLatency.WithLabelValues(in.topic).Observe(time.Since(start).Seconds())
}

func (c *Consumer) deadLetter(in inbound) {
	if c.dlq == nil || c.cfg.DLQTopic == "" {
		return
	}
	err := c.dlq.WriteMessages(context.Background(), kafka.Message{
		Topic:   c.cfg.DLQTopic,
		Value:   in.msg.Value,
		Time:    time.Now(),
		Headers: []kafka.Header{{Key: "source_topic", Value: []byte(in.topic)}},
	})
	if err != nil {
		log.Printf("error writing to DLQ topic %s: %v", c.cfg.DLQTopic, err)
	}
}

// commit commits a single message offset with bounded retries.
func (c *Consumer) commit(reader *kafka.Reader, km kafka.Message, max int) error {
	if max <= 0 {
		max = 1
	}
	var err error
	for attempt := 1; attempt <= max; attempt++ {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		err = reader.CommitMessages(ctx, km)
		cancel()
		if err == nil {
			return nil
		}
		time.Sleep(retryDelay(50*time.Millisecond, 500*time.Millisecond, attempt))
	}
	log.Printf("error committing message after %d attempts: %v", max, err)
	return err
}

// serialFor returns the mutex guarding a (topic, partition) pair. Workers are
// the only callers and each message passes through exactly one worker, so the
// lazy map fill needs no extra locking beyond the mutexes themselves.
func (c *Consumer) serialFor(topic string, partition int) *sync.Mutex {
	byPart, ok := c.serial[topic]
	if !ok {
		byPart = make(map[int]*sync.Mutex)
		c.serial[topic] = byPart
	}
	lock, ok := byPart[partition]
	if !ok {
		lock = &sync.Mutex{}
		byPart[partition] = lock
	}
	return lock
}

// retryDelay returns an exponential backoff with up to 50% jitter shaved off.
func retryDelay(min, max time.Duration, attempt int) time.Duration {
	if min <= 0 {
		min = 50 * time.Millisecond
	}
	if max < min {
		max = min
	}
	exp := min * time.Duration(1<<uint(attempt-1))
	if exp > max {
		exp = max
	}
	jitter := time.Duration(rand.Int63n(int64(exp) / 2))
	return exp - jitter
}

var (
	consumerQueueDepth    *prometheus.GaugeVec
	consumerQueueFullness *prometheus.GaugeVec
	consumerHandleLatency *prometheus.HistogramVec
	consumerMetricsOnce   sync.Once
	consumerRegisterer    prometheus.Registerer
)

// SetConsumerMetricsRegisterer overrides the Prometheus registerer used for
// consumer metrics. Call it before NewConsumer; tests use it to isolate
// registries.
func SetConsumerMetricsRegisterer(reg prometheus.Registerer) { consumerRegisterer = reg }

func registerConsumerMetrics() {
	depthOpts := prometheus.GaugeOpts{Name: "finfuse_kafka_consumer_queue_depth", Help: "Number of messages waiting in consumer queue"}
	fullOpts := prometheus.GaugeOpts{Name: "finfuse_kafka_consumer_queue_fullness", Help: "Queue utilization ratio (len/cap)"}
	latOpts := prometheus.HistogramOpts{Name: "finfuse_kafka_consumer_handle_seconds", Help: "Handling time per message"}
	labels := []string{"topic"}

	if consumerRegisterer != nil {
		consumerQueueDepth = prometheus.NewGaugeVec(depthOpts, labels)
		consumerQueueFullness = prometheus.NewGaugeVec(fullOpts, labels)
		consumerHandleLatency = prometheus.NewHistogramVec(latOpts, labels)
		consumerRegisterer.MustRegister(consumerQueueDepth, consumerQueueFullness, consumerHandleLatency)
		return
	}
	consumerQueueDepth = promauto.NewGaugeVec(depthOpts, labels)
	consumerQueueFullness = promauto.NewGaugeVec(fullOpts, labels)
	consumerHandleLatency = promauto.NewHistogramVec(latOpts, labels)
}
