package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"modrelay/internal/notifications"
	"modrelay/internal/telegram"
)

func newTestNotifyCommand(ctx *commandContext) *cobra.Command {
	var chatID string
	cmd := &cobra.Command{
		Use:   "test-notify",
		Short: "Send a test notification through ntfy or to a Telegram chat",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if chat := strings.TrimSpace(chatID); chat != "" {
				if err := cfg.RequireBotToken(); err != nil {
					return err
				}
				client := telegram.NewFromConfig(cfg)
				if err := client.Send(cmd.Context(), chat, "🔔 modrelay test message"); err != nil {
					return fmt.Errorf("send test message: %w", err)
				}
				fmt.Fprintf(out, "Test message sent to chat %s\n", chat)
				return nil
			}
			if strings.TrimSpace(cfg.Notifications.NtfyTopic) == "" {
				return errors.New("notifications.ntfy_topic is not configured; pass --chat to test Telegram delivery")
			}
			if err := notifications.NewService(cfg).TestNotification(cmd.Context()); err != nil {
				return fmt.Errorf("send test notification: %w", err)
			}
			fmt.Fprintln(out, "Test notification sent")
			return nil
		},
	}
	cmd.Flags().StringVar(&chatID, "chat", "", "Telegram chat id to message instead of the ntfy topic")
	return cmd
}
