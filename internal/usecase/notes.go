package usecase

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/praxos/assistant-core/internal/adapter/events"
	"github.com/praxos/assistant-core/internal/domain"
	"github.com/praxos/assistant-core/internal/saga"
)

// NoteResult identifies where a saved note landed.
type NoteResult struct {
	Path       string `json:"path"`
	SnapshotID string `json:"snapshot_id"`
}

// NoteService promotes one turn into a durable note: file, vector document,
// and snapshot, all-or-nothing. Unlike the best-effort ingestion fanout, the
// user asked for this copy explicitly, so partial success is not acceptable.
type NoteService struct {
	Sessions  *SessionService
	Files     domain.FileStore
	Vectors   domain.VectorStore
	Snapshots domain.SnapshotStore
	Events    domain.EventPublisher
}

// NewNoteService wires the note fanout.
func NewNoteService(
	sessions *SessionService,
	files domain.FileStore,
	vectors domain.VectorStore,
	snapshots domain.SnapshotStore,
	pub domain.EventPublisher,
) *NoteService {
	return &NoteService{
		Sessions:  sessions,
		Files:     files,
		Vectors:   vectors,
		Snapshots: snapshots,
		Events:    pub,
	}
}

// SaveAsNote loads the turn (ownership folded into ErrNotFound), renders the
// note document, and runs the three-step saga.
func (s *NoteService) SaveAsNote(ctx domain.Context, messageID, userID string) (NoteResult, error) {
	turn, err := s.Sessions.GetTurn(ctx, messageID, userID)
	if err != nil {
		return NoteResult{}, fmt.Errorf("op=usecase.SaveAsNote: %w", err)
	}

	doc := renderTurnDocument(turn)
	path := notePath(messageID)
	meta := turnMetadata(turn)
	meta["kind"] = "note"

	var savedPath, snapshotID string

	saveFile := saga.Step{
		Name: "save-note-file",
		Forward: func(stepCtx context.Context) (any, error) {
			sf, err := s.Files.SaveFile(stepCtx, turn.ProjectID, path, doc)
			if err != nil {
				return nil, err
			}
			savedPath = sf.Path
			return sf, nil
		},
		Compensate: func(stepCtx context.Context, result any) error {
			sf, _ := result.(domain.SavedFile)
			return s.Files.DeleteFile(stepCtx, turn.ProjectID, sf.Path)
		},
	}
	addVector := saga.Step{
		Name: "add-note-vector",
		Forward: func(stepCtx context.Context) (any, error) {
			return nil, s.Vectors.AddDocuments(stepCtx, projectCollection(turn.ProjectID),
				[]string{doc}, []map[string]any{meta})
		},
		// The add/query contract has no delete. An orphaned note document
		// only pads retrieval context, so rollback leaves it in place.
		Compensate: nil,
	}
	createSnapshot := saga.Step{
		Name: "create-note-snapshot",
		Forward: func(stepCtx context.Context) (any, error) {
			id, err := s.Snapshots.CreateSnapshot(stepCtx, turn.ProjectID, userID,
				fmt.Sprintf("Note saved: %s", path))
			if err != nil {
				return nil, err
			}
			snapshotID = id
			return id, nil
		},
		Compensate: func(stepCtx context.Context, result any) error {
			id, _ := result.(string)
			return s.Snapshots.DeleteSnapshot(stepCtx, turn.ProjectID, id)
		},
	}

	sg := saga.New("note:"+messageID, saveFile, addVector, createSnapshot)
	if err := sg.Run(ctx); err != nil {
		if st := sg.Status(); st.State == saga.StateFailed {
			events.Emit(ctx, s.Events, domain.Event{
				Kind:      domain.EventCompensationFailed,
				Severity:  domain.SeverityCritical,
				UserID:    userID,
				MessageID: messageID,
				Detail:    fmt.Sprintf("note saga left partial state at step %d: %s", st.FailingStep, st.Error),
			})
		}
		return NoteResult{}, fmt.Errorf("op=usecase.SaveAsNote: %w", err)
	}

	slog.Info("turn saved as note",
		slog.String("message_id", messageID),
		slog.String("project_id", turn.ProjectID),
		slog.String("path", savedPath),
		slog.String("snapshot_id", snapshotID))
	return NoteResult{Path: savedPath, SnapshotID: snapshotID}, nil
}
