// Package main runs the campaign orchestration engine as a tick daemon.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	cli "github.com/urfave/cli/v3"

	"github.com/outdialhq/outdial/pkg/automation"
	"github.com/outdialhq/outdial/pkg/cmd"
	"github.com/outdialhq/outdial/pkg/compliance"
	"github.com/outdialhq/outdial/pkg/dialqueue"
	"github.com/outdialhq/outdial/pkg/dnc"
	"github.com/outdialhq/outdial/pkg/engine"
	"github.com/outdialhq/outdial/pkg/log"
	"github.com/outdialhq/outdial/pkg/otelhelper"
	"github.com/outdialhq/outdial/pkg/workflow"
)

func main() {
	command := newCommand()

	err := command.Run(context.Background(), os.Args)
	if err != nil {
		panic(err)
	}
}

func newCommand() *cli.Command {
	return &cli.Command{
		Name:                  "outdial-engine",
		Usage:                 "Run the outbound campaign orchestration engine",
		EnableShellCompletion: true,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "database-url",
				Usage:    "Database connection URL for persistence",
				Required: true,
				Sources:  cli.EnvVars("DATABASE_URL"),
			},
			&cli.StringFlag{
				Name:    "event-bus",
				Usage:   "Event bus provider (kafka, gochannel)",
				Value:   "gochannel",
				Sources: cli.EnvVars("EVENT_BUS"),
			},
			&cli.StringFlag{
				Name:    "redis-url",
				Usage:   "Redis URL for the shared do-not-call registry",
				Sources: cli.EnvVars("REDIS_URL"),
			},
			&cli.StringFlag{
				Name:    "tick-schedule",
				Usage:   "Cron expression for the engine tick",
				Value:   "* * * * *",
				Sources: cli.EnvVars("TICK_SCHEDULE"),
			},
			&cli.BoolFlag{
				Name:    "fail-closed",
				Usage:   "Treat compliance sub-check failures as violations",
				Sources: cli.EnvVars("COMPLIANCE_FAIL_CLOSED"),
			},
			&cli.BoolFlag{
				Name:    "tracing",
				Usage:   "Enable OTLP trace export",
				Sources: cli.EnvVars("TRACING_ENABLED"),
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				Value:   "info",
				Sources: cli.EnvVars("LOG_LEVEL"),
			},
			&cli.StringFlag{
				Name:    "log-format",
				Usage:   "Log format (text, json)",
				Value:   "text",
				Sources: cli.EnvVars("LOG_FORMAT"),
			},
		},
		Action: run,
	}
}

func run(ctx context.Context, command *cli.Command) error {
	log.Setup(command.String("log-level"), command.String("log-format"))

	logger := log.WithModule("engine")
	logger.InfoContext(ctx, "Initializing Outdial engine")

	persist, err := cmd.NewPersistence(ctx, logger, command.String("database-url"))
	if err != nil {
		return err
	}

	defer func() {
		err := persist.Close(ctx)
		if err != nil {
			logger.ErrorContext(ctx, "Failed to close persistence", "error", err)
		}
	}()

	eventBus, err := cmd.NewEventBus(command.String("event-bus"), "outdial-engine", logger)
	if err != nil {
		return err
	}

	defer func() {
		if err := eventBus.Close(); err != nil {
			logger.ErrorContext(ctx, "Failed to close event bus", "error", err)
		}
	}()

	var evaluatorOpts []automation.Option

	if redisURL := command.String("redis-url"); redisURL != "" {
		registry, err := dnc.NewRedisRegistry(ctx, logger, redisURL)
		if err != nil {
			return err
		}

		defer func() {
			if err := registry.Close(); err != nil {
				logger.ErrorContext(ctx, "Failed to close do-not-call registry", "error", err)
			}
		}()

		evaluatorOpts = append(evaluatorOpts, automation.WithDNCRegistry(registry))
	}

	evaluator := automation.NewEvaluator(persist, logger, evaluatorOpts...)
	queue := dialqueue.NewService(persist, logger)

	var monitorOpts []compliance.Option
	if command.Bool("fail-closed") {
		monitorOpts = append(monitorOpts, compliance.WithFailClosed())
	}

	monitor := compliance.NewMonitor(persist, eventBus, logger, monitorOpts...)
	stateMachine := workflow.NewStateMachine(persist, queue, eventBus, logger)

	var engineOpts []engine.Option

	if command.Bool("tracing") {
		tracer, err := otelhelper.NewTracer(ctx, "outdial-engine")
		if err != nil {
			return err
		}

		engineOpts = append(engineOpts, engine.WithTracer(tracer))
	}

	eng := engine.New(persist, evaluator, queue, stateMachine, monitor, logger, engineOpts...)

	runner := cron.New()

	_, err = runner.AddFunc(command.String("tick-schedule"), func() {
		_, err := eng.Tick(ctx, time.Now().UTC())
		if err != nil {
			logger.ErrorContext(ctx, "Tick failed", "error", err)
		}
	})
	if err != nil {
		return err
	}

	runner.Start()
	logger.InfoContext(ctx, "Engine tick loop started", "schedule", command.String("tick-schedule"))

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.InfoContext(ctx, "Shutting down")
	<-runner.Stop().Done()

	return nil
}
