package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/pscheid92/leavenotify/internal/domain"
	"github.com/pscheid92/leavenotify/internal/platform/config"
)

const shutdownTimeout = 10 * time.Second

// withRuntime wires a passive runtime around fn and always shuts it down.
func withRuntime(cmd *cobra.Command, cfg *config.Config, fn func(rt *runtime) error) error {
	rt, err := wire(cmd.Context(), cfg, cmd.OutOrStdout(), true)
	if err != nil {
		return err
	}
	runErr := fn(rt)

	ctx, cancel := context.WithTimeout(context.WithoutCancel(cmd.Context()), shutdownTimeout)
	defer cancel()
	return errors.Join(runErr, rt.shutdown(ctx))
}

func newLoginCmd(cfg func() *config.Config) *cobra.Command {
	var email, password string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in with email and password",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if password == "" {
				read, err := readLine(cmd.InOrStdin())
				if err != nil {
					return fmt.Errorf("read password from stdin: %w", err)
				}
				password = read
			}
			return withRuntime(cmd, cfg(), func(rt *runtime) error {
				identity, err := rt.app.Login(cmd.Context(), email, password)
				if errors.Is(err, domain.ErrUnauthorized) {
					return errors.New("login failed: incorrect email or password")
				}
				if err != nil && identity == nil {
					return err
				}
				printIdentity(cmd.OutOrStdout(), "Logged in as", identity)
				return err
			})
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "Account email")
	cmd.Flags().StringVar(&password, "password", "", "Account password (read from stdin when empty)")
	_ = cmd.MarkFlagRequired("email")

	return cmd
}

func newRegisterCmd(cfg func() *config.Config) *cobra.Command {
	var name, email, password string

	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an account; the backend mails a confirmation token",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withRuntime(cmd, cfg(), func(rt *runtime) error {
				res, err := rt.app.Register(cmd.Context(), name, email, password)
				if err != nil {
					return err
				}
				_, err = fmt.Fprintln(cmd.OutOrStdout(), res.Message)
				return err
			})
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "Full name")
	cmd.Flags().StringVar(&email, "email", "", "Account email")
	cmd.Flags().StringVar(&password, "password", "", "Account password")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")

	cmd.AddCommand(newRegisterConfirmCmd(cfg))
	return cmd
}

func newRegisterConfirmCmd(cfg func() *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "confirm <token>",
		Short: "Confirm a registration with the mailed token",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd, cfg(), func(rt *runtime) error {
				res, err := rt.app.ConfirmRegistration(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				_, err = fmt.Fprintln(cmd.OutOrStdout(), res.Message)
				return err
			})
		},
	}
}

func newGoogleLoginCmd(cfg func() *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "google-login",
		Short: "Print the Google sign-in URL",
		Long:  "Prints the Google sign-in URL. After signing in, pass the address the browser was redirected to to `leavenotify callback`.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withRuntime(cmd, cfg(), func(rt *runtime) error {
				authURL, err := rt.app.GoogleAuthURL(cmd.Context())
				if err != nil {
					return err
				}
				_, err = fmt.Fprintln(cmd.OutOrStdout(), authURL)
				return err
			})
		},
	}
}

func newCallbackCmd(cfg func() *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "callback <redirect-url|token>",
		Short: "Finish a Google sign-in from the redirect URL",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd, cfg(), func(rt *runtime) error {
				identity, err := rt.app.CompleteOAuth(cmd.Context(), args[0])
				if err != nil && identity == nil {
					return err
				}
				printIdentity(cmd.OutOrStdout(), "Logged in as", identity)
				return err
			})
		},
	}
}

func newLogoutCmd(cfg func() *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "End the session and forget the stored credential",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withRuntime(cmd, cfg(), func(rt *runtime) error {
				ended, err := rt.app.Logout(cmd.Context())
				if err != nil {
					return err
				}
				msg := "Not logged in"
				if ended {
					msg = "Logged out"
				}
				_, err = fmt.Fprintln(cmd.OutOrStdout(), msg)
				return err
			})
		},
	}
}

func printIdentity(w io.Writer, prefix string, identity *domain.Identity) {
	if identity == nil {
		_, _ = fmt.Fprintln(w, prefix, "unknown user")
		return
	}
	switch {
	case identity.Name != "" && identity.Email != "":
		_, _ = fmt.Fprintf(w, "%s %s <%s>\n", prefix, identity.Name, identity.Email)
	case identity.Email != "":
		_, _ = fmt.Fprintf(w, "%s %s\n", prefix, identity.Email)
	default:
		_, _ = fmt.Fprintf(w, "%s user %d\n", prefix, identity.ID)
	}
}

func readLine(r io.Reader) (string, error) {
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	line = strings.TrimRight(line, "\r\n")
	if line == "" {
		return "", errors.New("empty password")
	}
	return line, nil
}
