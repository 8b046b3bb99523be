// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package main implements feedadminctl, a command line client for the
// content backend the feedadmin dashboard manages.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/goccy/go-json"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/olegiv/feedadmin/internal/backend"
	"github.com/olegiv/feedadmin/internal/config"
	"github.com/olegiv/feedadmin/internal/resource"
	"github.com/olegiv/feedadmin/internal/version"
)

// Version information - injected at build time via ldflags
var (
	appVersion   = "dev"
	appGitCommit = "unknown"
	appBuildTime = "unknown"
)

var (
	// apiBase overrides FEEDADMIN_API_BASE when set
	apiBase string
	// timeout bounds each backend request
	timeout time.Duration
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "feedadminctl",
		Short: "Command line client for the feed content backend",
		Long: `feedadminctl talks to the same content backend as the feedadmin dashboard.
It lists and inspects records and previews placement slots without a browser.

Configuration is read from FEEDADMIN_* environment variables and a .env file.`,
		Version:      version.New(appVersion, appGitCommit, appBuildTime).String(),
		SilenceUsage: true,
	}

	root.PersistentFlags().StringVar(&apiBase, "api", "", "content backend origin (default: $FEEDADMIN_API_BASE)")
	root.PersistentFlags().DurationVar(&timeout, "timeout", 10*time.Second, "per request timeout")

	registry := resource.Default()
	root.AddCommand(newResourcesCmd(registry))
	root.AddCommand(newListCmd(registry, newClient))
	root.AddCommand(newGetCmd(registry, newClient))
	root.AddCommand(newDeleteCmd(registry, newClient))
	root.AddCommand(newSlotsCmd())
	return root
}

// recordStore is the part of the backend client the record commands use.
type recordStore interface {
	List(ctx context.Context, endpoint string) ([]backend.Record, error)
	Get(ctx context.Context, endpoint, id string) (backend.Record, error)
	Delete(ctx context.Context, endpoint, id string) error
}

type clientFactory func() (recordStore, error)

func newClient() (recordStore, error) {
	_ = godotenv.Load()

	cfg, err := config.LoadClient()
	if err != nil {
		return nil, err
	}
	base := cfg.APIBase
	if apiBase != "" {
		base = apiBase
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	client, err := backend.New(backend.Options{
		BaseURL: base,
		Token:   cfg.APIToken,
		Timeout: timeout,
		Retries: cfg.BackendRetries,
		Logger:  logger,
	})
	if err != nil {
		return nil, fmt.Errorf("creating backend client: %w", err)
	}
	return client, nil
}

func lookup(registry *resource.Registry, name string) (*resource.Resource, error) {
	res, ok := registry.Get(name)
	if !ok {
		var names []string
		for _, r := range registry.List() {
			names = append(names, r.Name)
		}
		return nil, fmt.Errorf("unknown resource %q (known: %s)", name, strings.Join(names, ", "))
	}
	return res, nil
}

func newResourcesCmd(registry *resource.Registry) *cobra.Command {
	return &cobra.Command{
		Use:   "resources",
		Short: "List the resources the dashboard manages",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			_, _ = fmt.Fprintln(tw, "NAME\tENDPOINT\tUPDATE\tPLACEMENT")
			for _, res := range registry.List() {
				rule := "-"
				if res.Placement != nil {
					rule = res.Placement.ZeroCount.String()
				}
				_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", res.Name, res.Endpoint, res.Method(), rule)
			}
			return tw.Flush()
		},
	}
}

func newListCmd(registry *resource.Registry, connect clientFactory) *cobra.Command {
	var query string
	cmd := &cobra.Command{
		Use:   "list <resource>",
		Short: "List the records of a resource",
		Long: `List the records of a resource with their placement rule.

Examples:
  feedadminctl list banners
  feedadminctl list banners --query sale`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := lookup(registry, args[0])
			if err != nil {
				return err
			}
			client, err := connect()
			if err != nil {
				return err
			}
			records, err := client.List(cmd.Context(), res.Endpoint)
			if err != nil {
				return errors.New(backend.UserMessage(err))
			}
			return writeList(cmd.OutOrStdout(), res, records, query)
		},
	}
	cmd.Flags().StringVarP(&query, "query", "q", "", "only show records whose text fields contain this")
	return cmd
}

func writeList(w io.Writer, res *resource.Resource, records []backend.Record, query string) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	header := "ID\tTITLE"
	if res.Placement != nil {
		header += "\tPLACEMENT"
	}
	_, _ = fmt.Fprintln(tw, header)

	for _, rec := range records {
		item := res.NewItem(rec)
		if !item.Matches(query) {
			continue
		}
		line := item.ID() + "\t" + item.Title()
		if res.Placement != nil {
			line += "\t" + ruleText(item)
		}
		_, _ = fmt.Fprintln(tw, line)
	}
	return tw.Flush()
}

func ruleText(item resource.Item) string {
	rule, ok := item.Rule()
	if !ok || rule.IsZero() {
		return "-"
	}
	text := fmt.Sprintf("after #%d", rule.AfterNth)
	if rule.Every > 0 {
		text += fmt.Sprintf(", every %d, %s", rule.Every, rule.Repeat.Kind)
		if rule.Repeat.Count > 0 {
			text += fmt.Sprintf(" %d", rule.Repeat.Count)
		}
	}
	return text
}

func newGetCmd(registry *resource.Registry, connect clientFactory) *cobra.Command {
	return &cobra.Command{
		Use:   "get <resource> <id>",
		Short: "Print one record as JSON",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := lookup(registry, args[0])
			if err != nil {
				return err
			}
			client, err := connect()
			if err != nil {
				return err
			}
			rec, err := client.Get(cmd.Context(), res.Endpoint, args[1])
			if err != nil {
				return errors.New(backend.UserMessage(err))
			}
			out, err := json.MarshalIndent(rec, "", "  ")
			if err != nil {
				return fmt.Errorf("encoding record: %w", err)
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), string(out))
			return err
		},
	}
}

func newDeleteCmd(registry *resource.Registry, connect clientFactory) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "delete <resource> <id>",
		Short: "Delete one record",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := lookup(registry, args[0])
			if err != nil {
				return err
			}
			if !yes {
				return fmt.Errorf("refusing to delete %s %s without --yes", res.Singular, args[1])
			}
			client, err := connect()
			if err != nil {
				return err
			}
			if err := client.Delete(cmd.Context(), res.Endpoint, args[1]); err != nil {
				return errors.New(backend.UserMessage(err))
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s %s\n", res.Singular, args[1])
			return err
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "confirm the deletion")
	return cmd
}
