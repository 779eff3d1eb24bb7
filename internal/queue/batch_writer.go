package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/smukkama/energy-workshop/internal/database"
	"github.com/smukkama/energy-workshop/internal/events"
)

// MessageSource is the consuming side of a topic
type MessageSource interface {
	Consume(ctx context.Context) (kafka.Message, error)
	Commit(ctx context.Context, msgs ...kafka.Message) error
}

// EventStore persists journaled events
type EventStore interface {
	InsertEvents(ctx context.Context, records []*database.EventRecord) error
}

// BatchWriter consumes mirrored events and batch-writes them to the event
// journal. Offsets are committed only after a batch was stored.
type BatchWriter struct {
	source        MessageSource
	store         EventStore
	batchSize     int
	flushInterval time.Duration
	logger        *slog.Logger
	stopCh        chan struct{}
	wg            sync.WaitGroup
}

// NewBatchWriter creates a new batch writer
func NewBatchWriter(source MessageSource, store EventStore, batchSize int, flushInterval time.Duration, logger *slog.Logger) *BatchWriter {
	return &BatchWriter{
		source:        source,
		store:         store,
		batchSize:     batchSize,
		flushInterval: flushInterval,
		logger:        logger.With("component", "journal"),
		stopCh:        make(chan struct{}),
	}
}

// Start begins consuming and writing to database
func (bw *BatchWriter) Start(ctx context.Context) {
	bw.wg.Add(1)
	go bw.run(ctx)
}

// Stop flushes the pending batch and stops the writer
func (bw *BatchWriter) Stop() {
	close(bw.stopCh)
	bw.wg.Wait()
}

func (bw *BatchWriter) run(ctx context.Context) {
	defer bw.wg.Done()

	consumeCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var batch []kafka.Message
	ticker := time.NewTicker(bw.flushInterval)
	defer ticker.Stop()

	msgChan := make(chan kafka.Message, bw.batchSize)
	go func() {
		defer close(msgChan)
		for {
			msg, err := bw.source.Consume(consumeCtx)
			if err != nil {
				if consumeCtx.Err() != nil {
					return
				}
				bw.logger.Warn("consumer error", "error", err)
				time.Sleep(retryDelay)
				continue
			}
			select {
			case msgChan <- msg:
			case <-consumeCtx.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-bw.stopCh:
			bw.flush(context.WithoutCancel(ctx), batch)
			return

		case <-ticker.C:
			if len(batch) > 0 {
				bw.flush(ctx, batch)
				batch = nil
			}

		case msg, ok := <-msgChan:
			if !ok {
				bw.flush(context.WithoutCancel(ctx), batch)
				return
			}
			batch = append(batch, msg)
			if len(batch) >= bw.batchSize {
				bw.flush(ctx, batch)
				batch = nil
			}
		}
	}
}

func (bw *BatchWriter) flush(ctx context.Context, batch []kafka.Message) {
	if len(batch) == 0 {
		return
	}

	records := make([]*database.EventRecord, 0, len(batch))
	for _, msg := range batch {
		record, err := EventRecordFromMessage(msg)
		if err != nil {
			// Undecodable messages are skipped but still committed.
			bw.logger.Warn("skipping message", "partition", msg.Partition, "offset", msg.Offset, "error", err)
			continue
		}
		records = append(records, record)
	}

	if len(records) > 0 {
		if err := bw.store.InsertEvents(ctx, records); err != nil {
			bw.logger.Error("failed to store events, offsets not committed", "count", len(records), "error", err)
			return
		}
	}

	if err := bw.source.Commit(ctx, batch...); err != nil {
		bw.logger.Warn("failed to commit offsets", "error", err)
	}

	bw.logger.Debug("flushed events", "stored", len(records), "consumed", len(batch))
}

// EventRecordFromMessage decodes a mirrored event into a journal record
func EventRecordFromMessage(msg kafka.Message) (*database.EventRecord, error) {
	e, err := events.Decode(msg.Value)
	if err != nil {
		return nil, fmt.Errorf("failed to decode event: %w", err)
	}

	record := &database.EventRecord{
		EventType:  string(e.Type),
		Payload:    msg.Value,
		OccurredAt: e.Timestamp,
		ReceivedAt: msg.Time,
	}
	if e.TeamID != 0 {
		teamID := e.TeamID
		record.TeamID = &teamID
	}
	if e.BatchID != "" {
		batchID := e.BatchID
		record.BatchID = &batchID
	}
	if record.OccurredAt.IsZero() {
		return nil, errors.New("event without timestamp")
	}
	if record.ReceivedAt.IsZero() {
		record.ReceivedAt = time.Now().UTC()
	}
	return record, nil
}
