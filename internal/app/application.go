// Package app assembles the gapfill application with uber-fx and runs the
// command selected on the command line: schema migration, a gap fill sweep,
// a training sweep, or an audit log export.
package app

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/fx"

	storage "github.com/tigerroll/gapfill/pkg/impute/adapter/storage"
	config "github.com/tigerroll/gapfill/pkg/impute/core/config"
	engine "github.com/tigerroll/gapfill/pkg/impute/engine"
	sweep "github.com/tigerroll/gapfill/pkg/impute/engine/sweep"
	export "github.com/tigerroll/gapfill/pkg/impute/infrastructure/export"
	inframetrics "github.com/tigerroll/gapfill/pkg/impute/infrastructure/metrics"
	migration "github.com/tigerroll/gapfill/pkg/impute/infrastructure/migration"
	gormrepo "github.com/tigerroll/gapfill/pkg/impute/infrastructure/repository/gorm"
	telemetry "github.com/tigerroll/gapfill/pkg/impute/infrastructure/telemetry"
	logger "github.com/tigerroll/gapfill/pkg/impute/support/util/logger"

	gormadapter "github.com/tigerroll/gapfill/pkg/impute/adapter/database/gorm"
)

// Command names accepted by RunApplication.
const (
	CommandMigrate = "migrate"
	CommandFill    = "fill"
	CommandTrain   = "train"
	CommandExport  = "export"
)

// RunApplication sets up the fx container and executes the given command.
func RunApplication(appCtx context.Context, envFilePath string, embeddedConfig config.EmbeddedConfig, command string) {
	app := fx.New(
		fx.Supply(
			embeddedConfig,
			fx.Annotate(envFilePath, fx.ResultTags(`name:"envFilePath"`)),
			fx.Annotate(
				appCtx,
				fx.As(new(context.Context)),
				fx.ResultTags(`name:"appCtx"`),
			),
		),

		config.Module,
		gormadapter.Module,
		gormrepo.Module,
		storage.Module,
		inframetrics.Module,
		telemetry.Module,
		engine.Module,
		sweep.Module,
		export.Module,
		migration.Module,

		fx.Invoke(fx.Annotate(startCommand(command), fx.ParamTags(
			"",              // lc fx.Lifecycle
			"",              // shutdowner fx.Shutdowner
			"",              // runner *sweep.Runner
			"",              // exporter *export.AuditExporter
			"",              // migrator *migration.Migrator
			"",              // cfg *config.Config
			`name:"appCtx"`, // appCtx context.Context
		))),
	)

	app.Run()

	if app.Err() != nil {
		logger.Fatalf("Application run failed: %v", app.Err())
	}
}

// startCommand returns the fx.Invoke target that launches the command in a
// goroutine and shuts the container down when it finishes.
func startCommand(command string) func(
	fx.Lifecycle, fx.Shutdowner, *sweep.Runner, *export.AuditExporter, *migration.Migrator, *config.Config, context.Context,
) {
	return func(
		lc fx.Lifecycle,
		shutdowner fx.Shutdowner,
		runner *sweep.Runner,
		exporter *export.AuditExporter,
		migrator *migration.Migrator,
		cfg *config.Config,
		appCtx context.Context,
	) {
		lc.Append(fx.Hook{
			OnStart: func(ctx context.Context) error {
				go func() {
					defer func() {
						if r := recover(); r != nil {
							logger.Errorf("Panic recovered in command execution: %v", r)
						}
						if err := shutdowner.Shutdown(); err != nil {
							logger.Errorf("Failed to shutdown application: %v", err)
						}
					}()

					if err := execute(appCtx, command, runner, exporter, migrator, cfg); err != nil {
						logger.Errorf("Command '%s' failed: %v", command, err)
						return
					}
					logger.Infof("Command '%s' completed.", command)
				}()
				return nil
			},
		})
	}
}

// execute dispatches to the selected command.
func execute(
	ctx context.Context,
	command string,
	runner *sweep.Runner,
	exporter *export.AuditExporter,
	migrator *migration.Migrator,
	cfg *config.Config,
) error {
	start, end := sweepRange(cfg)

	switch command {
	case CommandMigrate:
		return migrator.Up(ctx)

	case CommandFill:
		report, err := runner.GapFillSweep(ctx, start, end)
		if report != nil {
			logReport(report)
		}
		return err

	case CommandTrain:
		report, err := runner.TrainSweep(ctx, start, end)
		if report != nil {
			logReport(report)
		}
		return err

	case CommandExport:
		n, err := exporter.Export(ctx, start)
		logger.Infof("Exported %d imputation log rows.", n)
		return err

	default:
		return fmt.Errorf("unknown command: %s (expected %s, %s, %s or %s)",
			command, CommandMigrate, CommandFill, CommandTrain, CommandExport)
	}
}

// sweepRange derives the [start, end] hourly range scanned by sweeps and
// exports from the configured lookback.
func sweepRange(cfg *config.Config) (time.Time, time.Time) {
	lookback := cfg.Gapfill.Sweep.LookbackHours
	if lookback <= 0 {
		lookback = 720
	}
	end := time.Now().UTC().Truncate(time.Hour)
	return end.Add(-time.Duration(lookback) * time.Hour), end
}

func logReport(report *sweep.Report) {
	logger.Infof("%s sweep finished in %s: %d succeeded, %d failed, %d skipped (interrupted=%t).",
		report.Kind, report.Duration.Round(time.Millisecond), report.Succeeded, report.Failed, report.Skipped, report.Interrupted)
	for _, st := range report.Stations {
		if st.Outcome == sweep.OutcomeFailed {
			logger.Warnf("Station '%s' failed: %s", st.StationID, st.Message)
		}
	}
}
