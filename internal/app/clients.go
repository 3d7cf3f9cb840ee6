package app

import (
	"github.com/praxos/assistant-core/internal/adapter/authsvc"
	"github.com/praxos/assistant-core/internal/adapter/billing"
	"github.com/praxos/assistant-core/internal/adapter/extractor"
	"github.com/praxos/assistant-core/internal/adapter/filestore"
	"github.com/praxos/assistant-core/internal/adapter/graphstore"
	"github.com/praxos/assistant-core/internal/adapter/snapstore"
	"github.com/praxos/assistant-core/internal/adapter/vectorstore"
	"github.com/praxos/assistant-core/internal/config"
	"github.com/praxos/assistant-core/internal/resilience"
)

// Clients bundles every collaborator adapter behind its own circuit breaker.
// The server and worker build the same set; which ones a process exercises
// depends on the usecases it runs.
type Clients struct {
	Auth      *authsvc.Client
	Billing   *billing.Client
	Files     *filestore.Client
	Vectors   *vectorstore.Client
	Snapshots *snapstore.Client
	Graph     *graphstore.Client
	Extractor *extractor.Client
}

func policyFrom(p config.ClientPolicy) resilience.Policy {
	return resilience.Policy{
		Timeout:          p.Timeout,
		MaxRetries:       p.MaxRetries,
		FailureThreshold: p.FailureThreshold,
		RecoveryDelay:    p.RecoveryDelay,
	}
}

// BuildClients constructs the collaborator clients and registers their
// breakers so /status/services can report them.
func BuildClients(cfg config.Config, reg *resilience.Registry) Clients {
	mk := func(name, baseURL string, p config.ClientPolicy) *resilience.Client {
		return reg.Register(resilience.NewClient(name, baseURL, cfg.InternalToken, policyFrom(p)))
	}
	return Clients{
		Auth:      authsvc.New(mk("auth", cfg.AuthServiceURL, cfg.AuthClient)),
		Billing:   billing.New(mk("billing", cfg.BillingURL, cfg.BillingClient)),
		Files:     filestore.New(mk("file_store", cfg.FileStoreURL, cfg.FileClient)),
		Vectors:   vectorstore.New(mk("vector_store", cfg.VectorStoreURL, cfg.VectorClient)),
		Snapshots: snapstore.New(mk("snapshot_store", cfg.SnapshotStoreURL, cfg.SnapshotClient)),
		Graph:     graphstore.New(mk("graph_store", cfg.GraphStoreURL, cfg.GraphClient)),
		Extractor: extractor.New(mk("extractor", cfg.ExtractorURL, cfg.ExtractorClient)),
	}
}
