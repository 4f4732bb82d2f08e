package cli

import (
	"context"
	"errors"

	"github.com/spf13/cobra"

	"github.com/example/orbit/internal/bot"
	"github.com/example/orbit/internal/reminder"
)

func newBotCommand(open func() (*app, error)) *cobra.Command {
	return &cobra.Command{
		Use:   "bot",
		Short: "Run the Telegram review bot",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := open()
			if err != nil {
				return err
			}
			defer a.Close()

			b, err := bot.New(a.config.Telegram, a.manager, a.log)
			if err != nil {
				return err
			}

			if a.config.Reminders.Enabled {
				reminders := reminder.New(a.manager, b, reminder.Config{
					StartHour: a.config.Reminders.StartHour,
					EndHour:   a.config.Reminders.EndHour,
				}, a.log)
				if err := reminders.Start(); err != nil {
					return err
				}
				defer reminders.Stop()
				a.log.Info("reminder scheduler started")
			}

			a.log.Info("bot started, press Ctrl+C to stop")
			err = b.Start(cmd.Context())
			if errors.Is(err, context.Canceled) {
				a.log.Info("bot stopped")
				return nil
			}
			return err
		},
	}
}
