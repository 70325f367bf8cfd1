package sql

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/syssam/storm/dialect"
)

// Statement kinds recorded by StatsDriver.
const (
	KindSelect = "SELECT"
	KindInsert = "INSERT"
	KindUpdate = "UPDATE"
	KindDelete = "DELETE"
	KindDDL    = "DDL"
	KindOther  = "OTHER"
)

// StatementKind classifies a statement by its leading keyword.
func StatementKind(query string) string {
	word, _, _ := strings.Cut(strings.TrimSpace(query), " ")
	switch w := strings.ToUpper(word); w {
	case KindSelect, KindInsert, KindUpdate, KindDelete:
		return w
	case "CREATE", "DROP", "ALTER":
		return KindDDL
	case "WITH":
		return KindSelect
	default:
		return KindOther
	}
}

// KindStats are the counters of one statement kind.
type KindStats struct {
	Kind     string
	Count    int64
	Errors   int64
	Slow     int64
	Duration time.Duration
}

// Avg returns the mean duration of the recorded statements.
func (k KindStats) Avg() time.Duration {
	if k.Count == 0 {
		return 0
	}
	return k.Duration / time.Duration(k.Count)
}

// Stats is a point-in-time copy of the counters of a StatsDriver.
type Stats []KindStats

// Total sums the counters of all kinds.
func (s Stats) Total() KindStats {
	t := KindStats{Kind: "TOTAL"}
	for _, k := range s {
		t.Count += k.Count
		t.Errors += k.Errors
		t.Slow += k.Slow
		t.Duration += k.Duration
	}
	return t
}

// Kind returns the counters of one kind; zero when nothing was recorded.
func (s Stats) Kind(kind string) KindStats {
	for _, k := range s {
		if k.Kind == kind {
			return k
		}
	}
	return KindStats{Kind: kind}
}

func (s Stats) String() string {
	t := s.Total()
	return fmt.Sprintf("statements=%d errors=%d slow=%d duration=%s avg=%s", t.Count, t.Errors, t.Slow, t.Duration, t.Avg())
}

// Format renders the counters as a table, one row per kind and a total.
func (s Stats) Format(w io.Writer) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Kind", "Count", "Errors", "Slow", "Total", "Avg"})
	for _, k := range s {
		t.AppendRow(table.Row{k.Kind, k.Count, k.Errors, k.Slow, k.Duration, k.Avg()})
	}
	total := s.Total()
	t.AppendFooter(table.Row{total.Kind, total.Count, total.Errors, total.Slow, total.Duration, total.Avg()})
	t.Render()
}

// SlowQueryHook is called for every statement slower than the threshold.
type SlowQueryHook func(ctx context.Context, query string, args []any, duration time.Duration)

// StatsDriver wraps a Driver and records per-kind statement statistics.
// It is safe for concurrent use.
type StatsDriver struct {
	dialect.Driver
	threshold time.Duration
	hook      SlowQueryHook

	mu    sync.Mutex
	kinds map[string]*KindStats
}

// StatsOption configures a StatsDriver.
type StatsOption func(*StatsDriver)

// WithSlowThreshold sets the duration above which statements count as
// slow. Defaults to 100ms.
func WithSlowThreshold(d time.Duration) StatsOption {
	return func(s *StatsDriver) {
		s.threshold = d
	}
}

// WithSlowQueryHook sets the callback for slow statements.
func WithSlowQueryHook(hook SlowQueryHook) StatsOption {
	return func(s *StatsDriver) {
		s.hook = hook
	}
}

// WithSlowQueryLog logs slow statements to the given logger.
func WithSlowQueryLog(logger *slog.Logger) StatsOption {
	return WithSlowQueryHook(func(ctx context.Context, query string, args []any, duration time.Duration) {
		logger.WarnContext(ctx, "slow statement", "kind", StatementKind(query), "duration", duration, "sql", query, "args", args)
	})
}

// NewStatsDriver wraps drv with statistics collection.
//
//	drv := sql.NewStatsDriver(base, sql.WithSlowQueryLog(logger))
//	client := entity.NewClient(drv)
//	...
//	drv.Stats().Format(os.Stdout)
func NewStatsDriver(drv dialect.Driver, opts ...StatsOption) *StatsDriver {
	s := &StatsDriver{
		Driver:    drv,
		threshold: 100 * time.Millisecond,
		kinds:     make(map[string]*KindStats),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Query implements dialect.Driver.
func (d *StatsDriver) Query(ctx context.Context, query string, args, v any) error {
	start := time.Now()
	err := d.Driver.Query(ctx, query, args, v)
	d.record(ctx, query, args, time.Since(start), err)
	return err
}

// Exec implements dialect.Driver.
func (d *StatsDriver) Exec(ctx context.Context, query string, args, v any) error {
	start := time.Now()
	err := d.Driver.Exec(ctx, query, args, v)
	d.record(ctx, query, args, time.Since(start), err)
	return err
}

func (d *StatsDriver) record(ctx context.Context, query string, args any, took time.Duration, err error) {
	kind := StatementKind(query)
	slow := took > d.threshold
	d.mu.Lock()
	k, ok := d.kinds[kind]
	if !ok {
		k = &KindStats{Kind: kind}
		d.kinds[kind] = k
	}
	k.Count++
	k.Duration += took
	if err != nil {
		k.Errors++
	}
	if slow {
		k.Slow++
	}
	d.mu.Unlock()
	if slow && d.hook != nil {
		a, _ := args.([]any)
		d.hook(ctx, query, a, took)
	}
}

// Stats returns a copy of the counters, sorted by kind.
func (d *StatsDriver) Stats() Stats {
	d.mu.Lock()
	defer d.mu.Unlock()
	s := make(Stats, 0, len(d.kinds))
	for _, k := range d.kinds {
		s = append(s, *k)
	}
	slices.SortFunc(s, func(a, b KindStats) int { return strings.Compare(a.Kind, b.Kind) })
	return s
}

// Reset clears the counters.
func (d *StatsDriver) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	clear(d.kinds)
}

var _ dialect.Driver = (*StatsDriver)(nil)
