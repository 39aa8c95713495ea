// Package app assembles the databases, stores, and pipeline shared by the
// API server and the uxpulse CLI.
package app

import (
	"context"
	"errors"
	"fmt"
	"os"

	"uxpulse/api/database"
	"uxpulse/api/goals"
	"uxpulse/api/hypothesis"
	"uxpulse/api/pipeline"
	"uxpulse/api/store"
)

type App struct {
	Postgres   *database.DBClient
	ClickHouse *database.ClickHouseClient

	Users    *store.UserStore
	Events   *store.EventStore
	Stats    *store.StatsStore
	Versions *store.VersionStore
	Funnels  *store.FunnelStore
	Issues   *store.IssueStore
	Pages    *store.PageStore
	Cohorts  *store.CohortStore

	Goals  *goals.Registry
	Runner *pipeline.Runner
}

// Bootstrap connects both databases, ensures their schemas, and wires the
// stores into a pipeline runner. Callers own Close.
func Bootstrap(ctx context.Context) (*App, error) {
	pg, err := database.NewPostgresDB()
	if err != nil {
		return nil, fmt.Errorf("postgres: %w", err)
	}
	if err := pg.EnsureSchema(ctx); err != nil {
		pg.Close()
		return nil, fmt.Errorf("postgres schema: %w", err)
	}

	ch, err := database.NewClickHouseDB()
	if err != nil {
		pg.Close()
		return nil, fmt.Errorf("clickhouse: %w", err)
	}
	if err := ch.EnsureSchema(ctx); err != nil {
		pg.Close()
		ch.Close()
		return nil, fmt.Errorf("clickhouse schema: %w", err)
	}

	registry, err := loadGoals()
	if err != nil {
		pg.Close()
		ch.Close()
		return nil, fmt.Errorf("goals: %w", err)
	}

	a := &App{
		Postgres:   pg,
		ClickHouse: ch,
		Users:      store.NewUserStore(pg.DB),
		Events:     store.NewEventStore(ch),
		Stats:      store.NewStatsStore(ch),
		Versions:   store.NewVersionStore(pg.DB),
		Funnels:    store.NewFunnelStore(pg.DB),
		Issues:     store.NewIssueStore(pg.DB),
		Pages:      store.NewPageStore(pg.DB),
		Cohorts:    store.NewCohortStore(pg.DB),
		Goals:      registry,
	}
	a.Runner = &pipeline.Runner{
		Events:   a.Events,
		Versions: a.Versions,
		Funnels:  a.Funnels,
		Issues:   a.Issues,
		Pages:    a.Pages,
		Cohorts:  a.Cohorts,
		Goals:    a.Goals,
		Hypo:     hypothesis.NewFromEnv(),
		BaseURL:  os.Getenv("SITE_BASE_URL"),
	}
	return a, nil
}

func (a *App) Close() {
	a.ClickHouse.Close()
	a.Postgres.Close()
}

func loadGoals() (*goals.Registry, error) {
	path := os.Getenv("GOALS_FILE")
	if path == "" {
		path = "goals.yaml"
	}
	registry, err := goals.Load(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return goals.Empty(), nil
		}
		return nil, err
	}
	return registry, nil
}
