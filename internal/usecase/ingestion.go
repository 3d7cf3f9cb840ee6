package usecase

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/praxos/assistant-core/internal/adapter/observability"
	"github.com/praxos/assistant-core/internal/domain"
)

// IngestionService moves persisted turns into the project's file store,
// vector index, and snapshot history. Enqueue is the only piece on the
// serving path and must stay O(1); the fanout runs in the worker.
type IngestionService struct {
	Queue     domain.IngestionQueueRepository
	Turns     domain.TurnRepository
	Files     domain.FileStore
	Vectors   domain.VectorStore
	Snapshots domain.SnapshotStore
}

func NewIngestionService(
	queue domain.IngestionQueueRepository,
	turns domain.TurnRepository,
	files domain.FileStore,
	vectors domain.VectorStore,
	snapshots domain.SnapshotStore,
) *IngestionService {
	return &IngestionService{Queue: queue, Turns: turns, Files: files, Vectors: vectors, Snapshots: snapshots}
}

// Enqueue inserts one pending row. Duplicate message ids return false without
// error; a replayed request must not ingest twice.
func (s *IngestionService) Enqueue(ctx domain.Context, messageID, projectID, userID string) (bool, error) {
	if messageID == "" || projectID == "" || userID == "" {
		return false, fmt.Errorf("op=usecase.IngestEnqueue: ids required: %w", domain.ErrInvalidArgument)
	}
	inserted, err := s.Queue.Enqueue(ctx, messageID, projectID, userID)
	if err != nil {
		return false, fmt.Errorf("op=usecase.IngestEnqueue: %w", err)
	}
	return inserted, nil
}

// ProcessBatch claims up to batch pending rows and runs the fanout for each.
// Returns how many rows were claimed.
func (s *IngestionService) ProcessBatch(ctx domain.Context, batch int) (int, error) {
	items, err := s.Queue.ClaimPending(ctx, batch)
	if err != nil {
		return 0, fmt.Errorf("op=usecase.ProcessBatch: %w", err)
	}
	for _, item := range items {
		s.processItem(ctx, item)
	}
	return len(items), nil
}

// processItem runs the three best-effort sinks for one claimed row. Any
// single success completes the row; only a full miss fails it.
func (s *IngestionService) processItem(ctx domain.Context, item domain.IngestionItem) {
	turn, err := s.Turns.GetByID(ctx, item.MessageID, item.UserID)
	if err != nil {
		slog.Error("ingestion: turn load failed",
			slog.String("message_id", item.MessageID), slog.Any("error", err))
		if err := s.Queue.MarkFailed(ctx, item.ID, fmt.Sprintf("load turn: %v", err)); err != nil {
			slog.Error("ingestion: mark failed failed", slog.Int64("id", item.ID), slog.Any("error", err))
		}
		return
	}

	doc := renderTurnDocument(turn)
	collection := projectCollection(item.ProjectID)

	type fanout struct {
		sink string
		run  func() error
	}
	fanouts := []fanout{
		{"file", func() error {
			_, err := s.Files.SaveFile(ctx, item.ProjectID, conversationPath(item.MessageID), doc)
			return err
		}},
		{"vector", func() error {
			return s.Vectors.AddDocuments(ctx, collection, []string{doc}, []map[string]any{turnMetadata(turn)})
		}},
		{"snapshot", func() error {
			_, err := s.Snapshots.CreateSnapshot(ctx, item.ProjectID, item.UserID, "ingest turn "+item.MessageID)
			return err
		}},
	}

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		failures []string
	)
	for _, f := range fanouts {
		wg.Add(1)
		go func(f fanout) {
			defer wg.Done()
			if err := f.run(); err != nil {
				observability.RecordFanout(f.sink, "failure")
				slog.Warn("ingestion sink failed",
					slog.String("sink", f.sink),
					slog.String("message_id", item.MessageID),
					slog.Any("error", err))
				mu.Lock()
				failures = append(failures, fmt.Sprintf("%s: %v", f.sink, err))
				mu.Unlock()
				return
			}
			observability.RecordFanout(f.sink, "success")
		}(f)
	}
	wg.Wait()

	if len(failures) < len(fanouts) {
		if err := s.Queue.MarkComplete(ctx, item.ID); err != nil {
			slog.Error("ingestion: mark complete failed", slog.Int64("id", item.ID), slog.Any("error", err))
		}
		return
	}
	if err := s.Queue.MarkFailed(ctx, item.ID, strings.Join(failures, "; ")); err != nil {
		slog.Error("ingestion: mark failed failed", slog.Int64("id", item.ID), slog.Any("error", err))
	}
}

// RequeueStale returns rows claimed by a worker that died mid-flight to
// pending.
func (s *IngestionService) RequeueStale(ctx domain.Context, olderThan time.Duration) (int64, error) {
	n, err := s.Queue.RequeueStale(ctx, time.Now().UTC().Add(-olderThan))
	if err != nil {
		return 0, fmt.Errorf("op=usecase.RequeueStale: %w", err)
	}
	if n > 0 {
		slog.Warn("ingestion: requeued stale claims", slog.Int64("count", n))
	}
	return n, nil
}

// PublishQueueDepth refreshes the per-status depth gauges.
func (s *IngestionService) PublishQueueDepth(ctx domain.Context) error {
	counts, err := s.Queue.CountByStatus(ctx)
	if err != nil {
		return fmt.Errorf("op=usecase.PublishQueueDepth: %w", err)
	}
	for _, status := range []domain.IngestionStatus{
		domain.IngestionPending, domain.IngestionInProgress, domain.IngestionComplete, domain.IngestionFailed,
	} {
		observability.SetIngestionDepth(string(status), counts[status])
	}
	return nil
}
