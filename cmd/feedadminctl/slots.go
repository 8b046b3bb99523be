// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/olegiv/feedadmin/internal/placement"
)

// maxPrintedSlots caps bounded rules when --max is not given.
const maxPrintedSlots = 1000

type slotsOptions struct {
	after, every, count int
	zero                string
	total, max          int
}

func newSlotsCmd() *cobra.Command {
	var opts slotsOptions
	cmd := &cobra.Command{
		Use:   "slots",
		Short: "Preview the feed positions of a placement rule",
		Long: `Resolve a placement rule to the 1-based feed positions it occupies.

The rule uses the flat backend form: first position, repeat interval and
repeat count. How a count of 0 is read depends on the collection, so pass
--zero-count=forever for collections that repeat until the feed ends.

Examples:
  # after card 10, then every 5 cards, 3 more times
  feedadminctl slots --after 10 --every 5 --count 3

  # repeat forever, cut at a feed of 40 cards
  feedadminctl slots --after 2 --every 6 --zero-count forever --total 40`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out, err := resolveSlots(opts)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), out)
			return err
		},
	}
	cmd.Flags().IntVar(&opts.after, "after", 0, "first position (afterNth)")
	cmd.Flags().IntVar(&opts.every, "every", 0, "repeat interval (repeatEvery)")
	cmd.Flags().IntVar(&opts.count, "count", 0, "repeat count (repeatCount)")
	cmd.Flags().StringVar(&opts.zero, "zero-count", "once", "meaning of count 0: once|forever")
	cmd.Flags().IntVar(&opts.total, "total", 0, "number of cards in the feed (0 = unknown)")
	cmd.Flags().IntVar(&opts.max, "max", 0, "maximum number of slots to print (0 = default cap)")
	return cmd
}

func resolveSlots(opts slotsOptions) (string, error) {
	var zero placement.ZeroCount
	switch opts.zero {
	case "once", "":
		zero = placement.ZeroMeansOnce
	case "forever":
		zero = placement.ZeroMeansUnbounded
	default:
		return "", fmt.Errorf("--zero-count must be once or forever, got %q", opts.zero)
	}
	if opts.after < 0 || opts.every < 0 || opts.count < 0 {
		return "", fmt.Errorf("positions and counts must not be negative")
	}

	rule := placement.FromLegacy(opts.after, opts.every, opts.count, zero)
	if err := rule.Validate(); err != nil {
		return "", err
	}
	openEnded := rule.Repeat.Kind == placement.Unbounded && opts.total == 0
	bound := placement.Bound{TotalCards: opts.total, MaxSlots: opts.max}
	if bound.MaxSlots == 0 && !openEnded {
		bound.MaxSlots = maxPrintedSlots
	}
	truncated := openEnded || placement.Count(rule, placement.Bound{TotalCards: opts.total}) > bound.MaxSlots
	slots := placement.Slots(rule, bound)
	if len(slots) == 0 {
		return "no slots", nil
	}

	parts := make([]string, len(slots))
	for i, s := range slots {
		parts[i] = strconv.Itoa(s)
	}
	line := strings.Join(parts, ", ")
	if truncated {
		line += ", ..."
	}
	unit := "slots"
	if len(slots) == 1 {
		unit = "slot"
	}
	return fmt.Sprintf("%s (%d %s)", line, len(slots), unit), nil
}
