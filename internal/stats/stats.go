package stats

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/livrasand/gitdeposit/internal/git"
	"github.com/livrasand/gitdeposit/internal/utils"
)

// Interval names accepted by Engine.ByInterval.
const (
	Daily   = "daily"
	Weekly  = "weekly"
	Monthly = "monthly"
)

// CommitSource lists the commits reachable from a revision.
type CommitSource interface {
	Commits(ctx context.Context, rev string) []*git.Commit
}

// Engine computes commit-count histograms for one revision of a repository.
type Engine struct {
	source CommitSource
	rev    string

	// Concurrency bounds the git processes spawned while reading dates.
	Concurrency int
	// Now is the clock the current year and week are taken from.
	Now func() time.Time
}

func NewEngine(source CommitSource, rev string) *Engine {
	if rev == "" {
		rev = git.DefaultRevision
	}
	return &Engine{source: source, rev: rev, Concurrency: 8, Now: time.Now}
}

// Dates returns the committer date of every commit reachable from the
// revision, in UTC. Commits whose date cannot be read are skipped.
func (e *Engine) Dates(ctx context.Context) ([]time.Time, error) {
	commits := e.source.Commits(ctx, e.rev)
	dates := make([]time.Time, len(commits))
	ok := make([]bool, len(commits))

	g, gctx := errgroup.WithContext(ctx)
	if e.Concurrency > 0 {
		g.SetLimit(e.Concurrency)
	}
	for i, c := range commits {
		g.Go(func() error {
			d, err := c.CommitterDate(gctx)
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				utils.LogDebug("skipping commit %s: %v", c.Hash, err)
				return nil
			}
			dates[i], ok[i] = d, true
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make([]time.Time, 0, len(dates))
	for i, d := range dates {
		if ok[i] {
			out = append(out, d)
		}
	}
	return out, nil
}

func (e *Engine) now() time.Time {
	if e.Now == nil {
		return time.Now().UTC()
	}
	return e.Now().UTC()
}

// DailyCounts maps "Y-M-D" (no zero padding) to commits on that day of the
// current year. Days without commits are absent.
func DailyCounts(dates []time.Time, now time.Time) map[string]int {
	year := now.UTC().Year()
	counts := map[string]int{}
	for _, d := range dates {
		d = d.UTC()
		if d.Year() != year {
			continue
		}
		counts[fmt.Sprintf("%d-%d-%d", d.Year(), int(d.Month()), d.Day())]++
	}
	return counts
}

// WeeklyCounts maps ISO weekday 1 (Monday) to 7 (Sunday) to commits in the
// current ISO week. Every weekday is present.
func WeeklyCounts(dates []time.Time, now time.Time) map[int]int {
	year, week := now.UTC().ISOWeek()
	counts := make(map[int]int, 7)
	for wd := 1; wd <= 7; wd++ {
		counts[wd] = 0
	}
	for _, d := range dates {
		d = d.UTC()
		if y, w := d.ISOWeek(); y != year || w != week {
			continue
		}
		counts[isoWeekday(d)]++
	}
	return counts
}

// MonthlyCounts maps month 1 to 12 to commits in the current year. Every
// month is present.
func MonthlyCounts(dates []time.Time, now time.Time) map[int]int {
	year := now.UTC().Year()
	counts := make(map[int]int, 12)
	for m := 1; m <= 12; m++ {
		counts[m] = 0
	}
	for _, d := range dates {
		d = d.UTC()
		if d.Year() != year {
			continue
		}
		counts[int(d.Month())]++
	}
	return counts
}

func isoWeekday(t time.Time) int {
	wd := int(t.Weekday())
	if wd == 0 {
		return 7
	}
	return wd
}

func (e *Engine) Daily(ctx context.Context) (map[string]int, error) {
	dates, err := e.Dates(ctx)
	if err != nil {
		return nil, err
	}
	return DailyCounts(dates, e.now()), nil
}

func (e *Engine) Weekly(ctx context.Context) (map[int]int, error) {
	dates, err := e.Dates(ctx)
	if err != nil {
		return nil, err
	}
	return WeeklyCounts(dates, e.now()), nil
}

func (e *Engine) Monthly(ctx context.Context) (map[int]int, error) {
	dates, err := e.Dates(ctx)
	if err != nil {
		return nil, err
	}
	return MonthlyCounts(dates, e.now()), nil
}

// Summary is the payload of the commits_stats endpoint.
type Summary struct {
	Weekly  map[int]int `json:"weekly"`
	Monthly map[int]int `json:"monthly"`
}

// Summary reads the commit dates once and builds both histograms from them.
func (e *Engine) Summary(ctx context.Context) (*Summary, error) {
	dates, err := e.Dates(ctx)
	if err != nil {
		return nil, err
	}
	now := e.now()
	return &Summary{Weekly: WeeklyCounts(dates, now), Monthly: MonthlyCounts(dates, now)}, nil
}

// ByInterval returns the histogram for interval with string keys, ready for
// rendering.
func (e *Engine) ByInterval(ctx context.Context, interval string) (map[string]int, error) {
	switch interval {
	case Daily:
		return e.Daily(ctx)
	case Weekly:
		counts, err := e.Weekly(ctx)
		return stringKeys(counts), err
	case Monthly:
		counts, err := e.Monthly(ctx)
		return stringKeys(counts), err
	}
	return nil, fmt.Errorf("unknown interval %q", interval)
}

func stringKeys(in map[int]int) map[string]int {
	if in == nil {
		return nil
	}
	out := make(map[string]int, len(in))
	for k, v := range in {
		out[fmt.Sprint(k)] = v
	}
	return out
}
