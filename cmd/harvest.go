package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	gpubsub "cloud.google.com/go/pubsub"
	gcstorage "cloud.google.com/go/storage"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	gcsarchive "github.com/filmdata/critic-harvester/internal/archive/gcs"
	localarchive "github.com/filmdata/critic-harvester/internal/archive/local"
	"github.com/filmdata/critic-harvester/internal/clock/system"
	"github.com/filmdata/critic-harvester/internal/config"
	"github.com/filmdata/critic-harvester/internal/harvest"
	"github.com/filmdata/critic-harvester/internal/httpapi"
	"github.com/filmdata/critic-harvester/internal/notify"
	notifypubsub "github.com/filmdata/critic-harvester/internal/notify/pubsub"
	"github.com/filmdata/critic-harvester/internal/progress"
	"github.com/filmdata/critic-harvester/internal/provider/metacritic"
	"github.com/filmdata/critic-harvester/internal/queryset"
	"github.com/filmdata/critic-harvester/internal/report"
	"github.com/filmdata/critic-harvester/internal/resolver"
	"github.com/filmdata/critic-harvester/internal/scheduler"
	"github.com/filmdata/critic-harvester/internal/sink"
	"github.com/filmdata/critic-harvester/internal/sink/postgres"
	"github.com/filmdata/critic-harvester/internal/sink/seendb"
)

type harvestFlags struct {
	input    string
	statuses []string
	yearMin  int
	yearMax  int
}

// newHarvestCmd creates the 'harvest' subcommand.
func newHarvestCmd() *cobra.Command {
	var flags harvestFlags
	cmd := &cobra.Command{
		Use:   "harvest",
		Short: "Resolves and harvests critic reviews for every movie in the input CSV",
		Long: `Reads the movie list, resolves each title to its source page through
the listing, direct-guess, and search strategies, then walks the critic
review feed until the declared total is reached or the feed stops
growing. Results land in per-year CSV files under the output directory.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runHarvest(cmd.Context(), flags)
		},
	}
	cmd.Flags().StringVarP(&flags.input, "input", "i", "", "query set CSV (movie_title, release_year[, status])")
	cmd.Flags().StringSliceVar(&flags.statuses, "status", nil, "only harvest rows with these status values")
	cmd.Flags().IntVar(&flags.yearMin, "year-min", 0, "skip movies released before this year")
	cmd.Flags().IntVar(&flags.yearMax, "year-max", 0, "skip movies released after this year")
	_ = cmd.MarkFlagRequired("input")
	return cmd
}

func runHarvest(parent context.Context, flags harvestFlags) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger, err := buildLogger(cfg)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck // best-effort flush
	zap.ReplaceGlobals(logger)

	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	queries, err := queryset.Load(flags.input, queryset.Options{
		Statuses: flags.statuses,
		YearMin:  flags.yearMin,
		YearMax:  flags.yearMax,
	})
	if err != nil {
		return err
	}
	if len(queries) == 0 {
		logger.Warn("query set is empty, nothing to do")
		return nil
	}
	logger.Info("query set loaded",
		zap.Int("movies", len(queries)),
		zap.Ints("years", queryset.Years(queries)))

	snapshot := progress.NewSnapshot()
	sinks := []progress.Sink{progress.NewLogSink(logger.Named("progress")), snapshot}
	if cfg.Server.Enabled {
		promSink, err := progress.NewPrometheusSink(nil)
		if err != nil {
			return err
		}
		sinks = append(sinks, promSink)
	}
	hub := progress.NewHub(logger, sinks...)
	defer hub.Close()

	if cfg.Server.Enabled {
		srv := httpapi.New(cfg.Server.Port, snapshot, logger.Named("httpapi"))
		srv.Start()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				logger.Warn("status server shutdown", zap.Error(err))
			}
		}()
	}

	providerOpts, err := archiverOptions(ctx, cfg)
	if err != nil {
		return err
	}
	provider, err := metacritic.New(cfg.ProviderSettings(), logger.Named("provider"), providerOpts...)
	if err != nil {
		return fmt.Errorf("init provider: %w", err)
	}
	defer provider.Close() //nolint:errcheck // teardown

	out, err := buildSinks(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := out.Close(context.WithoutCancel(ctx)); cerr != nil {
			logger.Warn("close sinks", zap.Error(cerr))
		}
	}()

	pipeline := &scheduler.HarvestPipeline{
		Resolver: resolver.NewDefault(cfg.ResolverConfig(), logger.Named("resolver")),
		Engine:   harvest.NewEngine(cfg.EngineConfig(), logger.Named("engine")),
		Provider: provider,
		KeyFn:    harvest.FieldKey("publication", "author", "score"),
	}
	// Persist each movie as soon as its harvest finishes so an aborted
	// run keeps everything completed up to that point.
	writing := scheduler.PipelineFunc(func(ctx context.Context, q harvest.Query) (harvest.Result, error) {
		res, err := pipeline.Run(ctx, q)
		if err != nil {
			return res, err
		}
		if werr := out.Write(ctx, sink.Records(res)); werr != nil {
			logger.Error("write results",
				zap.String("movie", q.Name),
				zap.Error(werr))
		}
		return res, nil
	})

	sched := scheduler.New(cfg.SchedulerConfig(), writing, system.New(), hub, logger.Named("scheduler"))
	outcome := sched.RunAll(ctx, queries)

	report.Write(os.Stdout, outcome, isatty.IsTerminal(os.Stdout.Fd()))

	if cfg.Notify.TopicName != "" {
		if err := publishSummary(ctx, cfg, outcome, logger); err != nil {
			logger.Warn("run notification failed", zap.Error(err))
		}
	}

	if err := ctx.Err(); err != nil && errors.Is(err, context.Canceled) {
		logger.Warn("run interrupted, partial results written")
	}
	return nil
}

func archiverOptions(ctx context.Context, cfg config.Config) ([]metacritic.Option, error) {
	switch {
	case cfg.Sink.GCSBucket != "":
		client, err := gcstorage.NewClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("init storage client: %w", err)
		}
		archiver, err := gcsarchive.New(client, gcsarchive.Config{
			Bucket: cfg.Sink.GCSBucket,
			Prefix: cfg.Sink.GCSPrefix,
		})
		if err != nil {
			return nil, err
		}
		return []metacritic.Option{metacritic.WithArchiver(archiver)}, nil
	case cfg.Sink.SnapshotDir != "":
		archiver, err := localarchive.New(cfg.Sink.SnapshotDir)
		if err != nil {
			return nil, err
		}
		return []metacritic.Option{metacritic.WithArchiver(archiver)}, nil
	default:
		return nil, nil
	}
}

func buildSinks(ctx context.Context, cfg config.Config, logger *zap.Logger) (sink.Multi, error) {
	var csvOpts []sink.CSVOption
	if cfg.Sink.SeenDBPath != "" {
		seen, err := seendb.Open(ctx, cfg.Sink.SeenDBPath)
		if err != nil {
			return nil, err
		}
		csvOpts = append(csvOpts, sink.WithSeenStore(seen))
	}
	csvSink, err := sink.NewCSV(cfg.Sink.OutputDir, logger.Named("csv"), csvOpts...)
	if err != nil {
		return nil, err
	}
	out := sink.Multi{csvSink}

	if cfg.Sink.Postgres.DSN != "" {
		store, err := postgres.New(ctx, cfg.PostgresSettings())
		if err != nil {
			return nil, fmt.Errorf("init postgres sink: %w", err)
		}
		out = append(out, store)
	}
	return out, nil
}

func publishSummary(ctx context.Context, cfg config.Config, outcome harvest.RunOutcome, logger *zap.Logger) error {
	client, err := gpubsub.NewClient(ctx, cfg.Notify.ProjectID)
	if err != nil {
		return fmt.Errorf("init pubsub client: %w", err)
	}
	pub := notifypubsub.New(client)
	defer pub.Close() //nolint:errcheck // teardown

	return notify.New(pub, cfg.Notify.TopicName, logger.Named("notify")).RunComplete(ctx, outcome)
}
