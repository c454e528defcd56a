package logger

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"sync"
	"time"
)

type Publisher interface {
	PublishMessage(ctx context.Context, topic string, payload interface{}) error
}

type CollectionConfig struct {
	TimeInterval   time.Duration // flush interval
	CountThreshold int           // max unique entries before an early flush
	Topic          string        // topic the aggregated batch goes to
	Publisher      Publisher
}

type AggregatedLogEntry struct {
	Level     string                 `json:"level"`
	Message   string                 `json:"message"`
	Fields    map[string]interface{} `json:"fields"`
	Caller    string                 `json:"caller"`
	Count     int                    `json:"count"`
	FirstSeen time.Time              `json:"first_seen"`
	LastSeen  time.Time              `json:"last_seen"`
}

// LogCollector dedupes identical error lines and ships them in batches, so a
// wedged downstream cannot flood the log topic with one repeated failure.
type LogCollector struct {
	config *CollectionConfig
	logMap map[string]*AggregatedLogEntry
	mutex  sync.Mutex
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewLogCollector(config *CollectionConfig) *LogCollector {
	ctx, cancel := context.WithCancel(context.Background())
	c := &LogCollector{
		config: config,
		logMap: make(map[string]*AggregatedLogEntry),
		ctx:    ctx,
		cancel: cancel,
	}

	c.wg.Add(1)
	go c.periodicFlush()

	return c
}

func (c *LogCollector) AddLog(level, message string, fields map[string]interface{}, caller string) {
	now := time.Now()
	key := c.entryKey(level, message, fields, caller)

	c.mutex.Lock()
	defer c.mutex.Unlock()

	entry := c.logMap[key]
	if entry == nil {
		entry = &AggregatedLogEntry{
			Level:     level,
			Message:   message,
			Fields:    fields,
			Caller:    caller,
			FirstSeen: now,
		}
		c.logMap[key] = entry
	}
	entry.Count++
	entry.LastSeen = now

	if len(c.logMap) >= c.config.CountThreshold {
		c.flushLocked()
	}
}

// entryKey is a stable digest of everything that identifies a log line.
func (c *LogCollector) entryKey(level, message string, fields map[string]interface{}, caller string) string {
	data := struct {
		Level   string                 `json:"level"`
		Message string                 `json:"message"`
		Fields  map[string]interface{} `json:"fields"`
		Caller  string                 `json:"caller"`
	}{level, message, fields, caller}

	raw, _ := json.Marshal(data)
	return fmt.Sprintf("%x", sha256.Sum256(raw))
}

func (c *LogCollector) periodicFlush() {
	defer c.wg.Done()

	ticker := time.NewTicker(c.config.TimeInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.flush()
		case <-c.ctx.Done():
			// final flush on shutdown
			c.flush()
			return
		}
	}
}

func (c *LogCollector) flush() {
	c.mutex.Lock()
	c.flushLocked()
	c.mutex.Unlock()
}

// flushLocked swaps out the map and publishes the snapshot off the lock.
func (c *LogCollector) flushLocked() {
	if len(c.logMap) == 0 {
		return
	}

	snapshot := c.logMap
	c.logMap = make(map[string]*AggregatedLogEntry)

	go func() {
		logs := make([]AggregatedLogEntry, 0, len(snapshot))
		for _, entry := range snapshot {
			logs = append(logs, *entry)
		}

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := c.config.Publisher.PublishMessage(ctx, c.config.Topic, logs); err != nil {
			// can't use the logger from inside its own collector
			fmt.Printf("log collector flush failed: %v\n", err)
		}
	}()
}

func (c *LogCollector) Close() {
	c.cancel()
	c.wg.Wait()
}
