// Package usecase contains the application services behind the HTTP surface
// and the workers: billing holds, chat orchestration, ingestion fanout,
// registration retry, jobs, wiki generation, notes, and feedback.
package usecase

import (
	"fmt"
	"strings"

	"github.com/praxos/assistant-core/internal/domain"
	"github.com/praxos/assistant-core/pkg/textx"
)

// projectCollection names the per-project vector collection. Every retrieval
// and every ingest must scope to this name; cross-project reads are a tenancy
// violation.
func projectCollection(projectID string) string {
	return "project_" + projectID
}

func conversationPath(messageID string) string {
	return fmt.Sprintf("conversations/%s.md", messageID)
}

func notePath(messageID string) string {
	return fmt.Sprintf("notes/%s.md", messageID)
}

// renderTurnDocument formats one turn as the markdown document pushed to the
// file store and the vector index. Control characters are stripped so a
// hostile query cannot smuggle terminal escapes into stored documents.
func renderTurnDocument(t domain.Turn) string {
	var b strings.Builder
	b.WriteString("# Conversation Turn\n\n")
	fmt.Fprintf(&b, "- message_id: %s\n", t.MessageID)
	fmt.Fprintf(&b, "- project_id: %s\n", t.ProjectID)
	fmt.Fprintf(&b, "- created_at: %s\n\n", t.CreatedAt.UTC().Format("2006-01-02T15:04:05Z07:00"))
	b.WriteString("## User\n\n")
	b.WriteString(textx.SanitizeText(t.UserQuery))
	b.WriteString("\n\n## Assistant\n\n")
	b.WriteString(textx.SanitizeText(t.AssistantResponse))
	b.WriteString("\n")
	return b.String()
}

func turnMetadata(t domain.Turn) map[string]any {
	return map[string]any{
		"message_id": t.MessageID,
		"project_id": t.ProjectID,
		"user_id":    t.UserID,
		"created_at": t.CreatedAt.UTC().Unix(),
	}
}
