package services

import (
	"context"

	"github.com/dope-context/dope/pkg/database"
	"github.com/dope-context/dope/pkg/models"
)

// EventSink receives lifecycle events emitted by the store. Implemented by
// the event bus; a nil sink disables emission (tests, bootstrap).
type EventSink interface {
	Publish(ctx context.Context, event models.Event) error
}

// Store bundles the per-entity services over one database client with a
// shared per-workspace write lock table.
type Store struct {
	Context    *ContextService
	Decisions  *DecisionService
	Progress   *ProgressService
	Patterns   *PatternService
	CustomData *CustomDataService
	Glossary   *GlossaryService
	Links      *LinkService
	Activity   *ActivityService
	Attention  *AttentionSampleService
}

// NewStore wires the store services. sink may be nil.
func NewStore(client *database.Client, sink EventSink) *Store {
	db := client.DB()
	locks := newWorkspaceLocks()
	decisions := &DecisionService{db: db, locks: locks, sink: sink}
	progress := &ProgressService{db: db, locks: locks, sink: sink}
	patterns := &PatternService{db: db, locks: locks}
	return &Store{
		Context:    &ContextService{db: db, locks: locks},
		Decisions:  decisions,
		Progress:   progress,
		Patterns:   patterns,
		CustomData: &CustomDataService{db: db, locks: locks},
		Glossary:   &GlossaryService{db: db, locks: locks},
		Links:      &LinkService{db: db, locks: locks},
		Activity:   &ActivityService{db: db},
		Attention:  &AttentionSampleService{db: db},
	}
}
