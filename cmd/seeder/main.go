package main

import (
	"context"
	"flag"

	"strategist/internal/adapters/config"
	pgclient "strategist/internal/adapters/postgres"
	kg "strategist/internal/domain/knowledge"
	memrepo "strategist/internal/repository/memory"
	pgrepo "strategist/internal/repository/postgres"
	"strategist/pkg/logger"
)

// seeder loads a knowledge graph YAML file into Postgres.
func main() {
	file := flag.String("file", "", "Knowledge graph YAML (bundled graph when empty)")
	dryRun := flag.Bool("dry-run", false, "Parse and validate the graph without writing")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	if err := logger.Init(cfg.App.LogLevel, cfg.App.Env); err != nil {
		panic("failed to init logger: " + err.Error())
	}
	defer logger.Sync()

	log := logger.Get()

	log.Infow("Starting seeder",
		"file", *file,
		"dry_run", *dryRun,
		"database", cfg.Postgres.Database,
	)

	graph, err := loadGraph(*file)
	if err != nil {
		log.Fatalf("Failed to load knowledge graph: %v", err)
	}

	log.Infow("Knowledge graph parsed", "nodes", len(graph.Nodes), "edges", len(graph.Edges))

	if *dryRun {
		log.Info("✅ Dry-run mode: graph validated")
		return
	}

	ctx := context.Background()
	client, err := pgclient.NewClient(ctx, cfg.Postgres)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer client.Close()

	repo := pgrepo.NewKnowledgeRepository(client.DB())
	if err := repo.Migrate(ctx); err != nil {
		log.Fatalf("Failed to migrate knowledge schema: %v", err)
	}

	if err := repo.Seed(ctx, graph); err != nil {
		log.Errorw("Failed to seed knowledge graph", "error", err)
		return
	}

	log.Info("✅ Knowledge graph seeded successfully")
}

func loadGraph(path string) (*kg.Graph, error) {
	if path == "" {
		return memrepo.DefaultGraph()
	}
	return memrepo.LoadGraph(path)
}
