package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/praxos/assistant-core/internal/adapter/events"
	"github.com/praxos/assistant-core/internal/domain"
	"github.com/praxos/assistant-core/internal/saga"
)

// WikiTaskRef is the job-registry key for wiki generation.
const WikiTaskRef = "wiki.generate"

// WikiResult is the payload stored on the COMPLETED job row.
type WikiResult struct {
	FilesCreated           int    `json:"files_created"`
	SnapshotID             string `json:"snapshot_id"`
	RelationshipsExtracted int    `json:"relationships_extracted"`
}

// WikiService turns a project's ingested documents into wiki pages plus a
// snapshot. Graph relationships are written before the saga: the graph
// collaborator is idempotent, so a later rollback can safely leave them in
// place. File saves and the snapshot are all-or-nothing.
type WikiService struct {
	Vectors   domain.VectorStore
	Extractor domain.Extractor
	Graph     domain.GraphStore
	Files     domain.FileStore
	Snapshots domain.SnapshotStore
	Events    domain.EventPublisher

	// FetchLimit bounds the project-document fetch from the vector store.
	FetchLimit int
}

// NewWikiService wires the generation task.
func NewWikiService(
	vectors domain.VectorStore,
	extractor domain.Extractor,
	graph domain.GraphStore,
	files domain.FileStore,
	snapshots domain.SnapshotStore,
	pub domain.EventPublisher,
	fetchLimit int,
) *WikiService {
	if fetchLimit <= 0 {
		fetchLimit = 500
	}
	return &WikiService{
		Vectors:    vectors,
		Extractor:  extractor,
		Graph:      graph,
		Files:      files,
		Snapshots:  snapshots,
		Events:     pub,
		FetchLimit: fetchLimit,
	}
}

// Generate is the wiki.generate task body. Project and user travel on the job
// row; the result is the marshaled WikiResult.
func (s *WikiService) Generate(ctx domain.Context, job domain.Job) ([]byte, error) {
	projectID, userID := job.ProjectID, job.UserID

	docs, err := s.Vectors.Query(ctx, projectCollection(projectID), "", s.FetchLimit)
	if err != nil {
		return nil, fmt.Errorf("op=usecase.WikiGenerate: fetch documents: %w", err)
	}
	if len(docs) == 0 {
		return nil, fmt.Errorf("op=usecase.WikiGenerate: project %s has no ingested documents: %w",
			projectID, domain.ErrNotFound)
	}

	extraction, err := s.Extractor.Extract(ctx, projectID, docs)
	if err != nil {
		return nil, fmt.Errorf("op=usecase.WikiGenerate: extract: %w", err)
	}
	if len(extraction.Files) == 0 {
		return nil, fmt.Errorf("op=usecase.WikiGenerate: extractor produced no files from %d documents", len(docs))
	}

	if err := s.Graph.WriteRelationships(ctx, projectID, extraction.Relationships); err != nil {
		return nil, fmt.Errorf("op=usecase.WikiGenerate: graph write: %w", err)
	}

	var snapshotID string
	saveFiles := saga.Step{
		Name: "save-files",
		Forward: func(stepCtx context.Context) (any, error) {
			saved := make([]domain.SavedFile, 0, len(extraction.Files))
			for _, f := range extraction.Files {
				sf, err := s.Files.SaveFile(stepCtx, projectID, f.Path, f.Content)
				if err != nil {
					// The saga only compensates committed steps; partial
					// progress inside this step is ours to undo.
					if cleanErr := s.deleteFiles(stepCtx, projectID, saved); cleanErr != nil {
						return nil, fmt.Errorf("save %s: %w (cleanup also failed: %v)", f.Path, err, cleanErr)
					}
					return nil, fmt.Errorf("save %s: %w", f.Path, err)
				}
				saved = append(saved, sf)
			}
			return saved, nil
		},
		Compensate: func(stepCtx context.Context, result any) error {
			saved, _ := result.([]domain.SavedFile)
			return s.deleteFiles(stepCtx, projectID, saved)
		},
	}
	createSnapshot := saga.Step{
		Name: "create-snapshot",
		Forward: func(stepCtx context.Context) (any, error) {
			message := fmt.Sprintf("Wiki generated: %d pages", len(extraction.Files))
			id, err := s.Snapshots.CreateSnapshot(stepCtx, projectID, userID, message)
			if err != nil {
				return nil, err
			}
			snapshotID = id
			return id, nil
		},
		Compensate: func(stepCtx context.Context, result any) error {
			id, _ := result.(string)
			return s.Snapshots.DeleteSnapshot(stepCtx, projectID, id)
		},
	}

	sg := saga.New("wiki:"+job.JobID, saveFiles, createSnapshot)
	if err := sg.Run(ctx); err != nil {
		if st := sg.Status(); st.State == saga.StateFailed {
			events.Emit(ctx, s.Events, domain.Event{
				Kind:     domain.EventCompensationFailed,
				Severity: domain.SeverityCritical,
				UserID:   userID,
				JobID:    job.JobID,
				Detail:   fmt.Sprintf("wiki saga left partial state at step %d: %s", st.FailingStep, st.Error),
			})
		}
		return nil, fmt.Errorf("op=usecase.WikiGenerate: %w", err)
	}

	slog.Info("wiki generated",
		slog.String("project_id", projectID),
		slog.String("job_id", job.JobID),
		slog.Int("files", len(extraction.Files)),
		slog.Int("relationships", len(extraction.Relationships)),
		slog.String("snapshot_id", snapshotID))

	return json.Marshal(WikiResult{
		FilesCreated:           len(extraction.Files),
		SnapshotID:             snapshotID,
		RelationshipsExtracted: len(extraction.Relationships),
	})
}

// deleteFiles removes saved wiki pages in reverse save order. All deletions
// are attempted; any failure is reported so the saga can flag partial state.
func (s *WikiService) deleteFiles(ctx domain.Context, projectID string, saved []domain.SavedFile) error {
	failed := 0
	for i := len(saved) - 1; i >= 0; i-- {
		if err := s.Files.DeleteFile(ctx, projectID, saved[i].Path); err != nil {
			failed++
			slog.Error("wiki cleanup: delete file",
				slog.String("project_id", projectID),
				slog.String("path", saved[i].Path),
				slog.Any("error", err))
		}
	}
	if failed > 0 {
		return fmt.Errorf("op=usecase.deleteFiles: %d of %d deletions failed", failed, len(saved))
	}
	return nil
}
