package main

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/livrasand/gitdeposit/internal/stats"
)

var (
	weekdays = []string{"", "Mon", "Tue", "Wed", "Thu", "Fri", "Sat", "Sun"}
	months   = []string{"", "Jan", "Feb", "Mar", "Apr", "May", "Jun", "Jul", "Aug", "Sep", "Oct", "Nov", "Dec"}
)

// countLabel formats a histogram count, muting zeroes.
func countLabel(n int) string {
	if n == 0 {
		return mutedStyle.Render("0")
	}
	return strconv.Itoa(n)
}

// bucketLabel names a histogram key: weekday and month numbers get their
// short names, daily keys are printed as they are.
func bucketLabel(interval, key string) string {
	n, err := strconv.Atoi(key)
	if err != nil {
		return key
	}
	switch {
	case interval == stats.Weekly && n >= 1 && n <= 7:
		return weekdays[n]
	case interval == stats.Monthly && n >= 1 && n <= 12:
		return months[n]
	}
	return key
}

// sortedKeys orders numeric keys numerically and daily "Y-M-D" keys by date.
func sortedKeys(counts map[string]int) []string {
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		a, b := strings.Split(keys[i], "-"), strings.Split(keys[j], "-")
		for n := 0; n < len(a) && n < len(b); n++ {
			x, _ := strconv.Atoi(a[n])
			y, _ := strconv.Atoi(b[n])
			if x != y {
				return x < y
			}
		}
		return len(a) < len(b)
	})
	return keys
}

func newStatsCmd(a *app) *cobra.Command {
	var (
		interval string
		rev      string
	)
	cmd := &cobra.Command{
		Use:   "stats <owner>/<name>",
		Short: "Show commit counts of the current year by day, week day or month",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			owner, name, err := splitRepository(args[0])
			if err != nil {
				return err
			}
			if _, err := a.service.Store.GetRepository(cmd.Context(), owner, name); err != nil {
				return err
			}

			engine := stats.NewEngine(a.service.Hooks.Handle(owner, name), rev)
			engine.Concurrency = a.cfg.StatsConcurrency
			counts, err := engine.ByInterval(cmd.Context(), interval)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, renderHeader(fmt.Sprintf("%s/%s %s commits", owner, name, interval)))
			table := tablewriter.NewWriter(out)
			table.Header("Bucket", "Commits")
			total := 0
			for _, key := range sortedKeys(counts) {
				total += counts[key]
				table.Append(bucketLabel(interval, key), countLabel(counts[key]))
			}
			table.Footer("Total", strconv.Itoa(total))
			return table.Render()
		},
	}
	cmd.Flags().StringVar(&interval, "by", stats.Weekly, "Interval: daily, weekly or monthly")
	cmd.Flags().StringVar(&rev, "rev", "", "Revision to count from (default HEAD)")
	return cmd
}
