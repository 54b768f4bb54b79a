package config

import (
	"context"
	"log/slog"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/recall/pkg/domain/interfaces"
	"github.com/secmon-lab/recall/pkg/repository/firestore"
	"github.com/secmon-lab/recall/pkg/repository/memory"
	"github.com/secmon-lab/recall/pkg/utils/logging"
	"github.com/urfave/cli/v3"
)

// Repository selects and configures the persistence backend. The memory
// backend keeps everything in process and is meant for development only.
type Repository struct {
	backend    string
	projectID  string
	databaseID string
}

// Flags returns CLI flags for repository configuration
func (r *Repository) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "repository-backend",
			Usage:       "Repository backend type (firestore or memory)",
			Value:       "firestore",
			Sources:     cli.EnvVars("RECALL_REPOSITORY_BACKEND"),
			Destination: &r.backend,
		},
		&cli.StringFlag{
			Name:        "firestore-project-id",
			Usage:       "Firestore Project ID (required when using firestore backend)",
			Sources:     cli.EnvVars("RECALL_FIRESTORE_PROJECT_ID"),
			Destination: &r.projectID,
		},
		&cli.StringFlag{
			Name:        "firestore-database-id",
			Usage:       "Firestore Database ID",
			Sources:     cli.EnvVars("RECALL_FIRESTORE_DATABASE_ID"),
			Destination: &r.databaseID,
		},
	}
}

// LogValue implements slog.LogValuer so the backend selection can be
// logged as a structured group.
func (r Repository) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("backend", r.backend),
		slog.String("project_id", r.projectID),
		slog.String("database_id", r.databaseID),
	)
}

// Configure builds the repository for the selected backend. The caller
// owns the returned repository and must Close() it.
func (r *Repository) Configure(ctx context.Context) (interfaces.Repository, error) {
	switch r.backend {
	case "firestore":
		return r.newFirestore(ctx)

	case "memory":
		logging.Default().Info("Using in-memory repository (development mode)")
		return memory.New(), nil

	default:
		return nil, goerr.New("invalid repository backend", goerr.V("backend", r.backend))
	}
}

func (r *Repository) newFirestore(ctx context.Context) (interfaces.Repository, error) {
	if r.projectID == "" {
		return nil, goerr.New("firestore-project-id is required when using firestore backend")
	}

	repo, err := firestore.New(ctx, r.projectID, r.databaseID)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to initialize firestore repository")
	}

	logging.Default().Info("Using Firestore repository", "repository", r)
	return repo, nil
}
