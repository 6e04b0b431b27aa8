package main

import (
	"context"

	"github.com/urfave/cli/v3"

	"github.com/allisson/secretbroker/cmd/app/commands"
	"github.com/allisson/secretbroker/internal/app"
)

func getSystemCommands(version string) []*cli.Command {
	return []*cli.Command{
		{
			Name:  "server",
			Usage: "Start the HTTP server and background workers",
			Action: func(ctx context.Context, cmd *cli.Command) error {
				return commands.RunServer(ctx, version)
			},
		},
		{
			Name:  "migrate",
			Usage: "Run database migrations",
			Action: func(ctx context.Context, cmd *cli.Command) error {
				return withContainer(ctx, func(container *app.Container) error {
					cfg := container.Config()
					return commands.RunMigrations(container.Logger(), cfg.DBDriver, cfg.DBConnectionString)
				})
			},
		},
		{
			Name:  "clean-outbox-events",
			Usage: "Delete delivered and failed outbox events older than specified days",
			Flags: []cli.Flag{daysFlag("outbox events"), dryRunFlag("events"), formatFlag()},
			Action: func(ctx context.Context, cmd *cli.Command) error {
				return withContainer(ctx, func(container *app.Container) error {
					outbox, err := container.OutboxDispatcher()
					if err != nil {
						return err
					}
					return commands.RunCleanOutboxEvents(
						ctx,
						outbox,
						container.Logger(),
						commands.DefaultIO().Writer,
						int(cmd.Int("days")),
						cmd.Bool("dry-run"),
						cmd.String("format"),
					)
				})
			},
		},
		{
			Name:  "clean-idempotency-keys",
			Usage: "Delete idempotency records past their TTL",
			Flags: []cli.Flag{dryRunFlag("records"), formatFlag()},
			Action: func(ctx context.Context, cmd *cli.Command) error {
				return withContainer(ctx, func(container *app.Container) error {
					secretUseCase, err := container.SecretUseCase()
					if err != nil {
						return err
					}
					return commands.RunCleanIdempotencyKeys(
						ctx,
						secretUseCase,
						container.Logger(),
						commands.DefaultIO().Writer,
						cmd.Bool("dry-run"),
						cmd.String("format"),
					)
				})
			},
		},
	}
}
