package main

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/signalsfoundry/fsoc-linkbudget/core"
	"github.com/signalsfoundry/fsoc-linkbudget/internal/config"
	"github.com/signalsfoundry/fsoc-linkbudget/internal/logging"
	"github.com/signalsfoundry/fsoc-linkbudget/internal/observability"
	"github.com/signalsfoundry/fsoc-linkbudget/kb"
)

// rootOptions are the persistent flags shared by every command.
type rootOptions struct {
	configPath  string
	catalogPath string
	selections  map[string]string
	distanceM   float64
	bitrateGbps float64
	jsonOut     bool
}

// app is the wired state of one CLI invocation.
type app struct {
	file      config.File
	log       logging.Logger
	catalog   *kb.KnowledgeBase
	summary   *kb.CatalogSummary
	svc       *core.LinkService
	registry  *prometheus.Registry
	collector *observability.EngineCollector
	shutdown  func(context.Context) error
}

func newApp(ctx context.Context, opts *rootOptions, stderr io.Writer) (*app, error) {
	file := config.DefaultFile()
	if opts.configPath != "" {
		var err error
		if file, err = config.LoadFile(opts.configPath); err != nil {
			return nil, err
		}
	}
	if opts.catalogPath != "" {
		file.Catalog = opts.catalogPath
	}
	if opts.distanceM >= 0 {
		file.Link.Global.DistanceM = opts.distanceM
	}
	if opts.bitrateGbps > 0 {
		file.Link.Global.BitrateGbps = opts.bitrateGbps
	}

	logCfg := file.Logging
	logCfg.Output = stderr
	log := logging.NewFromEnv(logCfg)

	traceCfg := observability.TracingConfigFromEnv(file.Tracing)
	traceCfg.Writer = stderr
	shutdown, err := observability.InitTracing(ctx, traceCfg, log)
	if err != nil {
		return nil, err
	}

	catalog := kb.NewKnowledgeBase()
	var summary *kb.CatalogSummary
	if file.Catalog != "" {
		summary, err = kb.LoadCatalogFile(catalog, file.Catalog)
	} else {
		summary, err = kb.LoadDefault(catalog)
	}
	if err != nil {
		return nil, err
	}

	selections := make(map[string]string, len(file.Selection)+len(opts.selections))
	for k, v := range file.Selection {
		selections[k] = v
	}
	for k, v := range opts.selections {
		selections[strings.ToLower(strings.TrimSpace(k))] = strings.TrimSpace(v)
	}
	keys := make([]string, 0, len(selections))
	for k := range selections {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, category := range keys {
		if err := catalog.Select(category, selections[category]); err != nil {
			return nil, fmt.Errorf("select %s: %w", category, err)
		}
	}

	registry := prometheus.NewRegistry()
	collector, err := observability.NewEngineCollector(registry)
	if err != nil {
		return nil, err
	}

	svc := core.NewLinkService(catalog,
		core.WithLogger(log),
		core.WithMetrics(collector),
		core.WithTunables(file.Tunables),
	)

	log.Debug(ctx, "catalog loaded",
		logging.String("schema_version", summary.SchemaVersion),
		logging.Int("categories", len(summary.Categories)),
		logging.Int("records", summary.Records),
	)
	return &app{
		file:      file,
		log:       log,
		catalog:   catalog,
		summary:   summary,
		svc:       svc,
		registry:  registry,
		collector: collector,
		shutdown:  shutdown,
	}, nil
}

func (a *app) close(ctx context.Context) {
	observability.ShutdownWithTimeout(ctx, a.shutdown, a.log)
}
