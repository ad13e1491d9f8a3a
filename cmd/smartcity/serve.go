package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/smart-mobility/smartcity-go/pkg/ai"
	"github.com/smart-mobility/smartcity-go/pkg/answer"
	"github.com/smart-mobility/smartcity-go/pkg/api"
	"github.com/smart-mobility/smartcity-go/pkg/auth"
	"github.com/smart-mobility/smartcity-go/pkg/config"
	"github.com/smart-mobility/smartcity-go/pkg/images"
	"github.com/smart-mobility/smartcity-go/pkg/metrics"
	"github.com/smart-mobility/smartcity-go/pkg/nlq"
	"github.com/smart-mobility/smartcity-go/pkg/rdf"
	"github.com/smart-mobility/smartcity-go/pkg/rewrite"
	"github.com/smart-mobility/smartcity-go/pkg/smartcity"
	"github.com/smart-mobility/smartcity-go/pkg/snapshot"
)

func newServeCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(*configPath)
		},
	}
}

func runServe(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logger, err := newLogger()
	if err != nil {
		return err
	}
	defer logger.Sync()

	store, err := loadGraph(cfg, logger)
	if err != nil {
		return err
	}

	authStore, err := auth.NewStore(cfg.Auth.DatabasePath, logger)
	if err != nil {
		return err
	}
	defer authStore.Close()
	if err := authStore.EnsureUser(cfg.Auth.AdminUsername, cfg.Auth.AdminPassword, "Administrator"); err != nil {
		return err
	}

	model, err := buildModel(cfg, logger)
	if err != nil {
		return err
	}

	rewriter := rewrite.New(store, logger)
	normalizer := answer.NewNormalizer(store, rdf.RDFSLabel, smartcity.PropNom, smartcity.PropNomStation)
	controller := answer.NewController(store, rewriter, normalizer, logger)
	bridge := nlq.NewBridge(store, model, rewriter, controller, logger)
	service := smartcity.NewService(store, cfg.Graph.OntologyPath, logger)

	var uploader *images.Client
	if up, err := images.NewClient(cfg.Cloudinary, logger); err != nil {
		logger.Warn("image uploads disabled", zap.Error(err))
	} else {
		uploader = up
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Snapshot.Enabled {
		path := cfg.Snapshot.Path
		if path == "" {
			path = cfg.Graph.OntologyPath
		}
		scheduler := snapshot.NewScheduler(store, path, logger)
		if err := scheduler.Start(cfg.Snapshot.Schedule); err != nil {
			return err
		}
		defer scheduler.Stop()
	}

	if cfg.Graph.Watch {
		go func() {
			err := rdf.WatchFile(ctx, cfg.Graph.OntologyPath, logger, func() {
				if err := store.LoadFile(cfg.Graph.OntologyPath); err != nil {
					logger.Error("graph reload failed", zap.Error(err))
					return
				}
				metrics.GraphTriples.Set(float64(store.Len()))
			})
			if err != nil && ctx.Err() == nil {
				logger.Error("file watcher stopped", zap.Error(err))
			}
		}()
	}

	server := api.NewServer(api.Deps{
		Config:     cfg,
		Store:      store,
		Service:    service,
		Rewriter:   rewriter,
		Controller: controller,
		Bridge:     bridge,
		Auth:       authStore,
		Uploader:   uploader,
		Logger:     logger,
	})
	return server.Start(ctx)
}

// loadGraph opens the ontology file and falls back to an empty graph
// seeded with the class hierarchy when the file does not exist yet.
func loadGraph(cfg *config.Config, logger *zap.Logger) (*rdf.Store, error) {
	store := rdf.NewStore(logger)
	store.Bind("smartcity", smartcity.NS)
	store.Bind("ont", smartcity.OntNS)
	store.Bind("rdf", rdf.RDFNS)
	store.Bind("rdfs", rdf.RDFSNS)
	store.Bind("xsd", rdf.XSDNS)

	if _, err := os.Stat(cfg.Graph.OntologyPath); os.IsNotExist(err) {
		logger.Warn("ontology file missing, starting with schema only",
			zap.String("path", cfg.Graph.OntologyPath))
		seedHierarchy(store)
		metrics.GraphTriples.Set(float64(store.Len()))
		return store, nil
	}

	if err := store.LoadFile(cfg.Graph.OntologyPath); err != nil {
		return nil, fmt.Errorf("failed to load ontology: %w", err)
	}
	seedHierarchy(store)
	metrics.GraphTriples.Set(float64(store.Len()))
	return store, nil
}

// seedHierarchy asserts the subclass triples the query rewriter depends
// on, regardless of what the data file declares.
func seedHierarchy(store *rdf.Store) {
	for parent, children := range smartcity.ClassHierarchy {
		for _, child := range children {
			store.Add(rdf.Triple{
				Subject:   rdf.IRI(child),
				Predicate: rdf.IRI(rdf.RDFSSubClass),
				Object:    rdf.IRI(parent),
			})
		}
	}
}

// buildModel returns the configured generative client, degrading to the
// scripted mock when no API key is present so the server still starts.
func buildModel(cfg *config.Config, logger *zap.Logger) (ai.Client, error) {
	if cfg.Model.APIKey == "" {
		logger.Warn("no model API key configured, natural-language answers degraded")
		return ai.NewMockClient(), nil
	}
	return ai.NewClient(cfg.Model)
}
