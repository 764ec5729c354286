package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/redmonkez12/loan-advisor-api/cmd/loanctl/ui"
	"github.com/redmonkez12/loan-advisor-api/internal/app"
	"github.com/redmonkez12/loan-advisor-api/internal/config"
	"github.com/redmonkez12/loan-advisor-api/internal/contact"
	"github.com/redmonkez12/loan-advisor-api/internal/logging"
)

const commandTimeout = 30 * time.Second

func main() {
	rootCmd := &cobra.Command{
		Use:           "loanctl",
		Short:         "Administer the loan advisor backend",
		Long:          "Operator CLI for the loan advisor API: triage contact messages and prepare the database.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	contactsCmd := &cobra.Command{
		Use:   "contacts",
		Short: "Inspect and triage contact messages",
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List contact messages, newest first",
		Args:  cobra.NoArgs,
		RunE:  runList,
	}
	listCmd.Flags().String("status", "", "Only show messages with this status (new, read, replied)")
	listCmd.Flags().Int("limit", contact.DefaultListLimit, "Maximum number of messages")

	setStatusCmd := &cobra.Command{
		Use:   "set-status <id> <status>",
		Short: "Change the status of a contact message",
		Args:  cobra.ExactArgs(2),
		RunE:  runSetStatus,
	}
	setStatusCmd.Flags().BoolP("yes", "y", false, "Skip confirmation prompt")

	dbCmd := &cobra.Command{
		Use:   "db",
		Short: "Database maintenance",
	}

	dbInitCmd := &cobra.Command{
		Use:   "init",
		Short: "Create tables (Postgres) or indexes (MongoDB)",
		Args:  cobra.NoArgs,
		RunE:  runDBInit,
	}

	contactsCmd.AddCommand(listCmd, setStatusCmd)
	dbCmd.AddCommand(dbInitCmd)
	rootCmd.AddCommand(contactsCmd, dbCmd)

	if err := rootCmd.Execute(); err != nil {
		ui.PrintError(os.Stderr, err.Error())
		os.Exit(1)
	}
}

// env holds what every command needs. close must be called when done.
type env struct {
	stores  *app.Stores
	contact *contact.Service
}

func open(ctx context.Context) (*env, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}

	logger := logging.NewLogger(cfg.Server.IsDevelopment())

	stores, err := app.OpenStores(ctx, cfg.Database)
	if err != nil {
		return nil, nil, err
	}

	closeFn := func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = stores.Close(closeCtx)
	}

	return &env{
		stores:  stores,
		contact: contact.NewService(stores.Contacts, nil, logger),
	}, closeFn, nil
}

func runList(cmd *cobra.Command, _ []string) error {
	status, _ := cmd.Flags().GetString("status")
	limit, _ := cmd.Flags().GetInt("limit")

	ctx, cancel := context.WithTimeout(cmd.Context(), commandTimeout)
	defer cancel()

	e, closeFn, err := open(ctx)
	if err != nil {
		return err
	}
	defer closeFn()

	messages, err := e.contact.List(ctx, contact.ListOptions{
		Status: contact.Status(status),
		Limit:  limit,
	})
	if err != nil {
		return fmt.Errorf("list messages: %w", err)
	}

	ui.PrintMessages(cmd.OutOrStdout(), messages)
	return nil
}

func runSetStatus(cmd *cobra.Command, args []string) error {
	id, status := args[0], contact.Status(args[1])
	yes, _ := cmd.Flags().GetBool("yes")

	if !status.Valid() {
		return fmt.Errorf("invalid status %q, expected new, read or replied", status)
	}

	if !yes {
		ok, err := ui.Confirm(fmt.Sprintf("Mark message %s as %s?", id, status))
		if err != nil {
			return fmt.Errorf("confirmation cancelled: %w", err)
		}
		if !ok {
			fmt.Fprintln(cmd.OutOrStdout(), "Aborted.")
			return nil
		}
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), commandTimeout)
	defer cancel()

	e, closeFn, err := open(ctx)
	if err != nil {
		return err
	}
	defer closeFn()

	m, err := e.contact.UpdateStatus(ctx, id, status)
	if err != nil {
		if errors.Is(err, contact.ErrNotFound) {
			return fmt.Errorf("message %s not found", id)
		}
		return fmt.Errorf("update status: %w", err)
	}

	ui.PrintUpdated(cmd.OutOrStdout(), m)
	return nil
}

func runDBInit(cmd *cobra.Command, _ []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), commandTimeout)
	defer cancel()

	e, closeFn, err := open(ctx)
	if err != nil {
		return err
	}
	defer closeFn()

	if err := e.stores.InitSchema(ctx); err != nil {
		return fmt.Errorf("init schema: %w", err)
	}

	ui.PrintSuccess(cmd.OutOrStdout(), fmt.Sprintf("Schema ready (%s)", e.stores.Driver()))
	return nil
}
