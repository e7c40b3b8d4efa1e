package processor

import (
	"context"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/noamzilo/whatsapp-miner/internal/classifier"
	"github.com/noamzilo/whatsapp-miner/internal/repository"
)

// RunStats aggregates counters for one poll iteration.
type RunStats struct {
	MessagesFound     int
	MessagesProcessed int
	ShortSkipped      int
	LeadsDetected     int
	Deferred          int
	Errors            int
	Duration          time.Duration
}

// Runner polls for unclassified messages and feeds them through the
// orchestrator, forever. One failing message or iteration never stops
// the loop.
type Runner struct {
	orchestrator *Orchestrator
	messageRepo  repository.MessageRepository
	batchSize    int
	pollInterval time.Duration
	logger       *zap.Logger

	mu        sync.Mutex
	lastStats RunStats
	totals    RunStats
}

// NewRunner creates a poll-mode runner.
func NewRunner(orchestrator *Orchestrator, messageRepo repository.MessageRepository, batchSize int, pollInterval time.Duration, logger *zap.Logger) *Runner {
	if batchSize <= 0 {
		batchSize = 50
	}
	if pollInterval <= 0 {
		pollInterval = 30 * time.Second
	}
	return &Runner{
		orchestrator: orchestrator,
		messageRepo:  messageRepo,
		batchSize:    batchSize,
		pollInterval: pollInterval,
		logger:       logger,
	}
}

// Run loops until ctx is cancelled. The in-flight message is finished
// before the loop exits; no mid-message cancellation.
func (r *Runner) Run(ctx context.Context) {
	r.logger.Info("Message classification runner started",
		zap.Int("batch_size", r.batchSize),
		zap.Duration("poll_interval", r.pollInterval))

	for {
		stats := r.runOnce(ctx)
		r.recordStats(stats)

		r.logger.Info("Classification iteration finished",
			zap.Int("found", stats.MessagesFound),
			zap.Int("processed", stats.MessagesProcessed),
			zap.Int("short_skipped", stats.ShortSkipped),
			zap.Int("leads", stats.LeadsDetected),
			zap.Int("deferred", stats.Deferred),
			zap.Int("errors", stats.Errors),
			zap.Duration("duration", stats.Duration))

		select {
		case <-ctx.Done():
			r.logger.Info("Message classification runner stopped")
			return
		case <-time.After(r.pollInterval):
		}
	}
}

// runOnce fetches one batch of unclassified messages and classifies each
// sequentially. Short messages never reach the LLM: they are terminal
// non-leads marked processed locally.
func (r *Runner) runOnce(ctx context.Context) RunStats {
	start := time.Now()
	stats := RunStats{}

	messages, err := r.messageRepo.GetUnclassifiedMessages(r.batchSize)
	if err != nil {
		r.logger.Error("Failed to fetch unclassified messages", zap.Error(err))
		stats.Errors++
		stats.Duration = time.Since(start)
		return stats
	}
	stats.MessagesFound = len(messages)
	if len(messages) == 0 {
		stats.Duration = time.Since(start)
		return stats
	}

	for _, msg := range messages {
		select {
		case <-ctx.Done():
			stats.Duration = time.Since(start)
			return stats
		default:
		}

		if utf8.RuneCountInString(strings.TrimSpace(msg.RawText)) < classifier.MinClassifiableLength {
			if err := r.messageRepo.MarkProcessed(msg.ID); err != nil {
				r.logger.Error("Failed to mark short message processed",
					zap.Int64("message_id", msg.ID), zap.Error(err))
				stats.Errors++
				continue
			}
			stats.ShortSkipped++
			stats.MessagesProcessed++
			continue
		}

		outcome, err := r.orchestrator.HandleMessage(ctx, msg)
		if err != nil {
			// Failure isolation at message granularity: log, leave the
			// message unprocessed, move on.
			r.logger.Error("Failed to process message",
				zap.Int64("message_id", msg.ID), zap.Error(err))
			stats.Errors++
			continue
		}

		switch outcome {
		case OutcomeLead:
			stats.LeadsDetected++
			stats.MessagesProcessed++
		case OutcomeNonLead, OutcomeAlreadyProcessed:
			stats.MessagesProcessed++
		case OutcomeDeferred:
			stats.Deferred++
		}
	}

	stats.Duration = time.Since(start)
	return stats
}

func (r *Runner) recordStats(stats RunStats) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lastStats = stats
	r.totals.MessagesFound += stats.MessagesFound
	r.totals.MessagesProcessed += stats.MessagesProcessed
	r.totals.ShortSkipped += stats.ShortSkipped
	r.totals.LeadsDetected += stats.LeadsDetected
	r.totals.Deferred += stats.Deferred
	r.totals.Errors += stats.Errors
}

// Stats returns the last iteration's counters and running totals.
func (r *Runner) Stats() (last RunStats, totals RunStats) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastStats, r.totals
}
