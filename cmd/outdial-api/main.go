package main

import (
	"context"
	"os"

	cli "github.com/urfave/cli/v3"

	"github.com/outdialhq/outdial/pkg/automation"
	"github.com/outdialhq/outdial/pkg/cmd"
	"github.com/outdialhq/outdial/pkg/compliance"
	"github.com/outdialhq/outdial/pkg/dialqueue"
	"github.com/outdialhq/outdial/pkg/engine"
	"github.com/outdialhq/outdial/pkg/log"
	"github.com/outdialhq/outdial/pkg/workflow"
)

const defaultPort = 9080

func main() {
	logger := log.WithModule("api")

	command := &cli.Command{
		Name:                  "outdial-api",
		Usage:                 "Inspect and drive the campaign orchestration engine",
		EnableShellCompletion: true,
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Usage:   "Port to run the API server on",
				Value:   defaultPort,
				Sources: cli.EnvVars("PORT"),
			},
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
		Action: func(ctx context.Context, command *cli.Command) error {
			log.Setup(command.String("log-level"), command.String("log-format"))

			logger.InfoContext(ctx, "Initializing Outdial API")

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

			eventBus, err := cmd.NewEventBus(command.String("event-bus"), "outdial-api", logger)
			if err != nil {
				return err
			}

			defer func() {
				if err := eventBus.Close(); err != nil {
					logger.ErrorContext(ctx, "Failed to close event bus", "error", err)
				}
			}()

			evaluator := automation.NewEvaluator(persist, logger)
			queue := dialqueue.NewService(persist, logger)
			monitor := compliance.NewMonitor(persist, eventBus, logger)
			stateMachine := workflow.NewStateMachine(persist, queue, eventBus, logger)
			eng := engine.New(persist, evaluator, queue, stateMachine, monitor, logger)

			api := NewAPI(logger, persist, eng, monitor, queue, stateMachine)

			return api.Start(command.Int("port"))
		},
	}

	err := command.Run(context.Background(), os.Args)
	if err != nil {
		panic(err)
	}
}
