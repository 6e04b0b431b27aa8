package main

import (
	"context"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/allisson/secretbroker/cmd/app/commands"
	"github.com/allisson/secretbroker/internal/app"
	"github.com/allisson/secretbroker/internal/config"
	cryptoService "github.com/allisson/secretbroker/internal/crypto/service"
)

func kekFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "id",
			Aliases: []string{"i"},
			Usage:   "KEK ID (default kek-YYYY-MM-DD)",
		},
		&cli.StringFlag{
			Name:  "kms-key-uri",
			Usage: "Encrypt the KEK with this KMS key (e.g. gcpkms://..., awskms://..., base64key://...)",
		},
		&cli.DurationFlag{
			Name:  "kms-timeout",
			Value: 10 * time.Second,
			Usage: "Timeout of the KMS call",
		},
	}
}

func kekOptions(cmd *cli.Command) commands.KekOptions {
	return commands.KekOptions{
		KeyID:      cmd.String("id"),
		KMSKeyURI:  cmd.String("kms-key-uri"),
		KMSTimeout: cmd.Duration("kms-timeout"),
	}
}

func getKeyCommands() []*cli.Command {
	return []*cli.Command{
		{
			Name:  "create-kek",
			Usage: "Generate a Key Encryption Key (KEK) and print its configuration",
			Flags: kekFlags(),
			Action: func(ctx context.Context, cmd *cli.Command) error {
				return commands.RunCreateKek(
					ctx,
					cryptoService.NewKMSService(),
					commands.DefaultIO().Writer,
					kekOptions(cmd),
				)
			},
		},
		{
			Name:  "rotate-kek",
			Usage: "Generate a new KEK, append it to KEKS and make it active",
			Flags: kekFlags(),
			Action: func(ctx context.Context, cmd *cli.Command) error {
				opts := kekOptions(cmd)
				cfg := config.Load()
				if opts.KMSKeyURI == "" {
					opts.KMSKeyURI = cfg.KMSKeyURI
				}
				return commands.RunRotateKek(
					ctx,
					cryptoService.NewKMSService(),
					commands.DefaultIO().Writer,
					cfg.KEKs,
					opts,
				)
			},
		},
		{
			Name:  "rewrap-deks",
			Usage: "Re-wrap every DEK under the active KEK",
			Flags: []cli.Flag{
				&cli.IntFlag{
					Name:    "batch-size",
					Aliases: []string{"b"},
					Value:   100,
					Usage:   "Number of DEKs to process per batch",
				},
			},
			Action: func(ctx context.Context, cmd *cli.Command) error {
				return withContainer(ctx, func(container *app.Container) error {
					envelopeUseCase, err := container.EnvelopeUseCase()
					if err != nil {
						return err
					}
					return commands.RunRewrapDeks(
						ctx,
						envelopeUseCase,
						container.Logger(),
						commands.DefaultIO().Writer,
						int(cmd.Int("batch-size")),
					)
				})
			},
		},
		{
			Name:  "rotate-dek",
			Usage: "Rotate the DEK of an owner, or every expired DEK when --owner is omitted",
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:    "owner",
					Aliases: []string{"o"},
					Usage:   "Owner ID whose DEK is rotated",
				},
				formatFlag(),
			},
			Action: func(ctx context.Context, cmd *cli.Command) error {
				return withContainer(ctx, func(container *app.Container) error {
					envelopeUseCase, err := container.EnvelopeUseCase()
					if err != nil {
						return err
					}
					return commands.RunRotateDek(
						ctx,
						envelopeUseCase,
						container.Logger(),
						commands.DefaultIO().Writer,
						cmd.String("owner"),
						cmd.String("format"),
					)
				})
			},
		},
	}
}
