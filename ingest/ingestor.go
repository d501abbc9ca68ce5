package ingest

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	sentinel_errors "github.com/hearthguard/sentinel/errors"
	logger "github.com/hearthguard/sentinel/logging"
	"github.com/hearthguard/sentinel/metrics"
	"github.com/hearthguard/sentinel/model"
)

type Config struct {
	QueueSize          int
	Workers            int
	SubmitTimeout      time.Duration
	DropAlertThreshold int
	DropAlertWindow    time.Duration
}

// Handler processes one event asynchronously (scoring, correlation).
type Handler func(ctx context.Context, event model.SecurityEvent)

// DropAlertFunc is invoked at most once per drop-rate threshold crossing.
type DropAlertFunc func(droppedInWindow int)

// Ingestor validates and normalizes inbound events, then feeds a bounded
// producer/consumer pipeline. On saturation the oldest queued entry is
// dropped so producers are never starved.
type Ingestor struct {
	cfg     Config
	handler Handler
	onDrops DropAlertFunc

	queue chan model.SecurityEvent
	wg    sync.WaitGroup

	mu     sync.RWMutex
	events map[string]model.SecurityEvent

	dropMu      sync.Mutex
	dropTotal   uint64
	dropTimes   []time.Time
	dropAlerted bool
}

func NewIngestor(cfg Config, handler Handler, onDrops DropAlertFunc) *Ingestor {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 1024
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if cfg.SubmitTimeout <= 0 {
		cfg.SubmitTimeout = 250 * time.Millisecond
	}
	return &Ingestor{
		cfg:     cfg,
		handler: handler,
		onDrops: onDrops,
		queue:   make(chan model.SecurityEvent, cfg.QueueSize),
		events:  make(map[string]model.SecurityEvent),
	}
}

// Start launches the worker pool. Workers exit when Stop closes the queue or
// the context is canceled.
func (i *Ingestor) Start(ctx context.Context) {
	for n := 0; n < i.cfg.Workers; n++ {
		i.wg.Add(1)
		go func() {
			defer i.wg.Done()
			for {
				select {
				case event, ok := <-i.queue:
					if !ok {
						return
					}
					i.handler(ctx, event)
				case <-ctx.Done():
					return
				}
			}
		}()
	}
}

// Stop drains the pipeline and waits for in-flight work.
func (i *Ingestor) Stop() {
	close(i.queue)
	i.wg.Wait()
}

// Submit validates, persists and enqueues an event. Malformed submissions
// are rejected with a validation error, never silently dropped.
func (i *Ingestor) Submit(ctx context.Context, source, category string, severity model.Severity, principalID string, details map[string]string) (model.SecurityEvent, error) {
	if source == "" {
		return model.SecurityEvent{}, fmt.Errorf("%w: source is required", sentinel_errors.ErrEventValidation)
	}
	if category == "" {
		return model.SecurityEvent{}, fmt.Errorf("%w: category is required", sentinel_errors.ErrEventValidation)
	}
	if !severity.Valid() {
		return model.SecurityEvent{}, fmt.Errorf("%w: severity %q is not one of low|medium|high|critical",
			sentinel_errors.ErrEventValidation, severity)
	}

	event := model.SecurityEvent{
		ID:          uuid.New().String(),
		Source:      source,
		Category:    category,
		Severity:    severity,
		PrincipalID: principalID,
		Details:     details,
		Timestamp:   time.Now().UTC(),
	}

	i.mu.Lock()
	i.events[event.ID] = event
	i.mu.Unlock()
	metrics.EventsIngested.Inc()

	i.enqueue(event)
	return event, nil
}

// enqueue pushes with a drop-oldest policy: when the queue is full the head
// entry is discarded and counted, keeping producers unblocked.
func (i *Ingestor) enqueue(event model.SecurityEvent) {
	deadline := time.NewTimer(i.cfg.SubmitTimeout)
	defer deadline.Stop()

	for {
		select {
		case i.queue <- event:
			return
		default:
		}

		select {
		case old := <-i.queue:
			i.recordDrop(old)
		case i.queue <- event:
			return
		case <-deadline.C:
			// could not place the event within the submit budget; it is
			// persisted but skips async processing
			i.recordDrop(event)
			return
		}
	}
}

func (i *Ingestor) recordDrop(event model.SecurityEvent) {
	metrics.EventsDropped.Inc()
	logger.Warn("Event dropped on queue saturation",
		zap.String("eventID", event.ID),
		zap.String("source", event.Source))

	i.dropMu.Lock()
	i.dropTotal++
	now := time.Now()
	cutoff := now.Add(-i.cfg.DropAlertWindow)
	kept := i.dropTimes[:0]
	for _, ts := range i.dropTimes {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	i.dropTimes = append(kept, now)

	var fire int
	if len(i.dropTimes) >= i.cfg.DropAlertThreshold && i.cfg.DropAlertThreshold > 0 {
		if !i.dropAlerted {
			i.dropAlerted = true
			fire = len(i.dropTimes)
		}
	} else {
		i.dropAlerted = false
	}
	i.dropMu.Unlock()

	if fire > 0 && i.onDrops != nil {
		i.onDrops(fire)
	}
}

// Event looks up a persisted event by id.
func (i *Ingestor) Event(id string) (model.SecurityEvent, bool) {
	i.mu.RLock()
	defer i.mu.RUnlock()
	event, ok := i.events[id]
	return event, ok
}

// DroppedCount reports events dropped since start.
func (i *Ingestor) DroppedCount() uint64 {
	i.dropMu.Lock()
	defer i.dropMu.Unlock()
	return i.dropTotal
}
