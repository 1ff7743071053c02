package main

import (
	"github.com/spf13/cobra"

	"github.com/pscheid92/leavenotify/internal/platform/config"
	"github.com/pscheid92/leavenotify/internal/platform/logging"
)

func newRootCmd() *cobra.Command {
	var cfg *config.Config

	rootCmd := &cobra.Command{
		Use:           "leavenotify",
		Short:         "Realtime leave-request notifications in the terminal",
		Long:          "leavenotify signs in to the leave-request backend, keeps the live notification connection open and shows notifications, toasts and the leave request list.",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Name() == "version" {
				return nil
			}
			loaded, err := config.Load()
			if err != nil {
				return err
			}
			logging.InitLoggerTo(cmd.ErrOrStderr(), loaded.LogLevel, loaded.LogFormat)
			cfg = loaded
			return nil
		},
	}

	getConfig := func() *config.Config { return cfg }

	rootCmd.AddCommand(
		newVersionCmd(),
		newLoginCmd(getConfig),
		newRegisterCmd(getConfig),
		newGoogleLoginCmd(getConfig),
		newCallbackCmd(getConfig),
		newLogoutCmd(getConfig),
		newStatusCmd(getConfig),
		newRunCmd(getConfig),
	)

	return rootCmd
}
