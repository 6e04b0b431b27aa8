package main

import (
	"context"
	"log/slog"

	"github.com/urfave/cli/v3"

	"github.com/allisson/secretbroker/cmd/app/commands"
	"github.com/allisson/secretbroker/internal/app"
	authUseCase "github.com/allisson/secretbroker/internal/auth/usecase"
)

// clientEnv is what client management commands need from the container.
type clientEnv struct {
	clients authUseCase.ClientUseCase
	logger  *slog.Logger
}

// clientAction resolves the client use case and hands it to run.
func clientAction(run func(ctx context.Context, cmd *cli.Command, env clientEnv) error) cli.ActionFunc {
	return func(ctx context.Context, cmd *cli.Command) error {
		return withContainer(ctx, func(container *app.Container) error {
			clients, err := container.ClientUseCase()
			if err != nil {
				return err
			}
			return run(ctx, cmd, clientEnv{clients: clients, logger: container.Logger()})
		})
	}
}

func clientIDFlag() cli.Flag {
	return &cli.StringFlag{Name: "id", Aliases: []string{"i"}, Required: true, Usage: "Client ID (UUID)"}
}

// clientFlags are shared by create-client and update-client.
func clientFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "name", Aliases: []string{"n"}, Required: true, Usage: "Human-readable client name"},
		&cli.BoolFlag{Name: "active", Aliases: []string{"a"}, Value: true, Usage: "Whether the client can authenticate"},
		&cli.StringFlag{
			Name:    "scopes",
			Aliases: []string{"s"},
			Usage:   "Comma-separated scopes such as secret:read:bot1 (omit for interactive mode)",
		},
		formatFlag(),
	}
}

func getAuthCommands() []*cli.Command {
	return []*cli.Command{
		{
			Name:  "create-client",
			Usage: "Create a client and print its secret once",
			Flags: clientFlags(),
			Action: clientAction(func(ctx context.Context, cmd *cli.Command, env clientEnv) error {
				return commands.RunCreateClient(ctx, env.clients, env.logger, commands.DefaultIO(),
					cmd.String("name"), cmd.Bool("active"), cmd.String("scopes"), cmd.String("format"))
			}),
		},
		{
			Name:  "update-client",
			Usage: "Replace the name, status and scopes of a client",
			Flags: append([]cli.Flag{clientIDFlag()}, clientFlags()...),
			Action: clientAction(func(ctx context.Context, cmd *cli.Command, env clientEnv) error {
				return commands.RunUpdateClient(ctx, env.clients, env.logger, commands.DefaultIO(),
					cmd.String("id"), cmd.String("name"), cmd.Bool("active"), cmd.String("scopes"), cmd.String("format"))
			}),
		},
		{
			Name:  "rotate-client-secret",
			Usage: "Issue a new client secret and revoke the client's tokens",
			Flags: []cli.Flag{clientIDFlag(), formatFlag()},
			Action: clientAction(func(ctx context.Context, cmd *cli.Command, env clientEnv) error {
				return commands.RunRotateClientSecret(ctx, env.clients, env.logger, commands.DefaultIO(),
					cmd.String("id"), cmd.String("format"))
			}),
		},
		{
			Name:  "unlock-client",
			Usage: "Clear the lockout of a client after repeated failed logins",
			Flags: []cli.Flag{clientIDFlag()},
			Action: clientAction(func(ctx context.Context, cmd *cli.Command, env clientEnv) error {
				return commands.RunUnlockClient(ctx, env.clients, env.logger, commands.DefaultIO(), cmd.String("id"))
			}),
		},
		{
			Name:  "clean-expired-tokens",
			Usage: "Delete expired tokens older than specified days",
			Flags: []cli.Flag{daysFlag("expired tokens"), dryRunFlag("tokens"), formatFlag()},
			Action: func(ctx context.Context, cmd *cli.Command) error {
				return withContainer(ctx, func(container *app.Container) error {
					tokenUseCase, err := container.TokenUseCase()
					if err != nil {
						return err
					}
					return commands.RunCleanExpiredTokens(ctx, tokenUseCase, container.Logger(),
						commands.DefaultIO().Writer, int(cmd.Int("days")), cmd.Bool("dry-run"), cmd.String("format"))
				})
			},
		},
	}
}
