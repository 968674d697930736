package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/brandon/mail-agent/internal/credential"
)

var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:          "mail-agent",
		Short:        "Natural-language access to an IMAP mailbox over MCP",
		Version:      version,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), configPath)
		},
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", os.Getenv("MAIL_AGENT_CONFIG"), "Path to a YAML config file")

	root.AddCommand(
		&cobra.Command{
			Use:   "serve",
			Short: "Serve MCP over stdin/stdout",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return runServe(cmd.Context(), configPath)
			},
		},
		newSearchCmd(&configPath),
		newPasswordCmd(&configPath),
	)
	return root
}

func newSearchCmd(configPath *string) *cobra.Command {
	var folder string
	cmd := &cobra.Command{
		Use:   "search <request>",
		Short: "Run one natural-language search and print the result as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(*configPath)
			if err != nil {
				return err
			}
			defer a.close()

			if !a.cfg.HasMailbox() {
				return fmt.Errorf("IMAP_HOST, IMAP_USER and a password are required")
			}
			if a.agent == nil {
				return fmt.Errorf("ANTHROPIC_API_KEY is required")
			}
			if folder == "" {
				folder = a.cfg.DefaultFolder
			}

			outcome, err := a.agent.Run(signalContext(cmd.Context()), a.manager, args[0], folder)
			if err != nil {
				return err
			}
			a.manager.CacheResults(cmd.Context(), folder, outcome.Matches)

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(outcome)
		},
	}
	cmd.Flags().StringVarP(&folder, "folder", "f", "", "Folder to search (default INBOX)")
	return cmd
}

func newPasswordCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "password",
		Short: "Manage the IMAP password stored in the system keyring",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "set <user>",
			Short: "Store a password read from stdin",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				store, err := openCredentials(*configPath)
				if err != nil {
					return err
				}
				var secret string
				if _, err := fmt.Fscanln(cmd.InOrStdin(), &secret); err != nil {
					return fmt.Errorf("reading password: %w", err)
				}
				return store.Set(credential.IMAPKey(args[0]), secret)
			},
		},
		&cobra.Command{
			Use:   "delete <user>",
			Short: "Remove a stored password",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				store, err := openCredentials(*configPath)
				if err != nil {
					return err
				}
				return store.Delete(credential.IMAPKey(args[0]))
			},
		},
	)
	return cmd
}

func runServe(ctx context.Context, configPath string) error {
	a, err := newApp(configPath)
	if err != nil {
		return err
	}
	defer a.close()

	a.logger.WithField("version", version).Info("Starting mail agent")
	a.connectAtStartup()

	server, err := a.server()
	if err != nil {
		return err
	}

	ctx = signalContext(ctx)
	if err := server.Run(ctx, os.Stdin, os.Stdout); err != nil {
		a.logger.WithError(err).Error("Server error")
		return err
	}

	a.logger.Info("Shutting down mail agent")
	return nil
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext(parent context.Context) context.Context {
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithCancel(parent)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		select {
		case sig := <-sigChan:
			logrus.WithField("signal", sig).Info("Received shutdown signal")
			cancel()
			// stdin reads do not observe ctx; a second signal exits.
			<-sigChan
			os.Exit(1)
		case <-ctx.Done():
		}
		signal.Stop(sigChan)
	}()
	return ctx
}
