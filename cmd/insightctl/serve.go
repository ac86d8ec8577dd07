package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/rcourtman/insightctl/internal/connectors"
	"github.com/rcourtman/insightctl/internal/logging"
	"github.com/rcourtman/insightctl/internal/modelrun"
	"github.com/rcourtman/insightctl/internal/persistence"
	"github.com/rcourtman/insightctl/internal/reports"
	"github.com/rcourtman/insightctl/internal/reports/channels"
	"github.com/rcourtman/insightctl/internal/runs"
	"github.com/rcourtman/insightctl/internal/scheduler"
	"github.com/rcourtman/insightctl/internal/settings"
	"github.com/rcourtman/insightctl/internal/skills"
	"github.com/rcourtman/insightctl/internal/sources"
	"github.com/rcourtman/insightctl/internal/state"
)

var (
	flagBackend      string
	flagSnapshotPath string
	flagJSONLogs     bool
	flagSeedDemo     bool
	flagMetricsAddr  string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Boot the core: state store, persistence, and scheduler",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe()
	},
}

func init() {
	serveCmd.Flags().StringVar(&flagBackend, "persistence", "file", "persistence backend: memory | file | sqlite")
	serveCmd.Flags().StringVar(&flagSnapshotPath, "snapshot-path", "./data/snapshot.json", "path for the file/sqlite backend")
	serveCmd.Flags().BoolVar(&flagJSONLogs, "json-logs", false, "emit logs as JSON instead of console output")
	serveCmd.Flags().BoolVar(&flagSeedDemo, "seed-demo", true, "seed a demo tenant when no snapshot exists")
	serveCmd.Flags().StringVar(&flagMetricsAddr, "metrics-addr", ":9090", "address to serve Prometheus metrics on; empty disables it")
}

func runServe() error {
	_ = godotenv.Load()
	logging.Init("insightctl", flagJSONLogs)
	log := logging.Named("main")

	port, err := newPort()
	if err != nil {
		return err
	}
	if err := port.Init(); err != nil {
		return err
	}

	store := state.New(connectors.DefaultBlueprints())

	snap, err := port.Load()
	if err != nil {
		return err
	}
	if snap != nil {
		store.ImportSnapshot(*snap)
		log.Info().Msg("hydrated state from persisted snapshot")
	} else if flagSeedDemo {
		seedDemoTenant(store)
		log.Info().Msg("no snapshot found, seeded demo tenant")
	}

	store.SetMutateHook(func(snap state.Snapshot) {
		if err := port.Save(snap); err != nil {
			log.Error().Err(err).Msg("failed to persist snapshot")
		}
	})

	sourcesSvc := sources.New(store)
	modelSvc := modelrun.New(store)
	skillsSvc := skills.New(store)
	reportsSvc := reports.New(store)
	settingsSvc := settings.New(store)
	runsSvc := runs.New(store, runs.Capabilities{
		Sources: sourcesSvc,
		Model:   modelSvc,
		Skills:  skillsSvc,
		Reports: reportsSvc,
	})
	// runsSvc is exercised by whichever transport adapter (REST, RPC, ...)
	// sits in front of this core; the core itself is transport-neutral and
	// doesn't serve analysis-run operations on its own.
	_ = runsSvc

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if flagMetricsAddr != "" {
		startMetricsServer(ctx, flagMetricsAddr)
	}

	sched := scheduler.New(store, func(ctx context.Context, sch state.ReportSchedule, tick time.Time) error {
		t, err := store.GetTenant(sch.TenantID)
		if err != nil {
			return err
		}
		report, err := reportsSvc.Generate(*t, reports.GenerateInput{MetricIDs: sch.MetricIDs, Format: sch.Format})
		if err != nil {
			return err
		}
		settingsSnapshot, err := settingsSvc.Get(sch.TenantID)
		if err != nil {
			return err
		}
		for _, ch := range sch.Channels {
			event := channels.Deliver(*t, &settingsSnapshot, report, ch, "", channels.TemplateContext{
				ReportTitle:   report.Title,
				ReportSummary: report.Summary,
				TenantID:      sch.TenantID,
				Channel:       ch,
			}, nil)
			store.AppendChannelEvent(event)
		}
		return nil
	})
	go sched.Run(ctx)

	log.Info().Str("persistence", flagBackend).Msg("insightctl core started")

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	<-sig

	log.Info().Msg("shutting down")
	cancel()
	return nil
}

func newPort() (persistence.Port, error) {
	switch flagBackend {
	case "memory":
		return persistence.NewMemory(), nil
	case "sqlite":
		return persistence.NewSQLite(flagSnapshotPath), nil
	default:
		return persistence.NewFile(flagSnapshotPath), nil
	}
}

func seedDemoTenant(store *state.Store) {
	tenant, err := store.CreateTenant("Demo Co", "bp_growth")
	if err != nil {
		logging.Named("main").Error().Err(err).Msg("failed to seed demo tenant")
		return
	}
	store.CreateConnection(state.SourceConnection{
		TenantID:   tenant.ID,
		SourceType: "google_ads",
		Mode:       "ingest",
		Metadata:   state.ConnectionMetadata{Label: "Demo Google Ads", QualityChecks: []string{"non_negative", "non_null"}},
	})
}
