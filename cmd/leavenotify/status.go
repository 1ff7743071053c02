package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/pscheid92/leavenotify/internal/app"
	"github.com/pscheid92/leavenotify/internal/platform/config"
)

func newStatusCmd(cfg func() *config.Config) *cobra.Command {
	var (
		jsonOutput bool
		validate   bool
	)

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the stored session",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withRuntime(cmd, cfg(), func(rt *runtime) error {
				if validate && rt.app.Session().Authenticated() {
					if _, err := rt.app.Validate(cmd.Context()); err != nil {
						return err
					}
				}
				st, err := rt.app.Status(cmd.Context())
				if err != nil {
					return err
				}
				if jsonOutput {
					enc := json.NewEncoder(cmd.OutOrStdout())
					enc.SetIndent("", "  ")
					return enc.Encode(st)
				}
				printStatus(cmd.OutOrStdout(), st)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	cmd.Flags().BoolVar(&validate, "validate", false, "Check the credential against the backend first")

	return cmd
}

func printStatus(w io.Writer, st app.Status) {
	if !st.Authenticated {
		_, _ = fmt.Fprintln(w, "session: logged out")
		return
	}
	printIdentity(w, "session: logged in as", st.Identity)
	if st.Identity != nil && st.Identity.Role != "" {
		_, _ = fmt.Fprintf(w, "role: %s\n", st.Identity.Role)
	}
	_, _ = fmt.Fprintf(w, "connection: %s\n", st.Connection.StateName)
}
