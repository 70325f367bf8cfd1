package gen

import (
	"cmp"
	"errors"
	"fmt"
	"slices"
	"strings"
)

// Report aggregates every problem found during one generation run, so a
// single pass surfaces all of them. A Report with problems is returned as
// an error; warnings alone never fail a run.
type Report struct {
	Problems []Problem
	Warnings []*Warning
}

// Error implements the error interface.
func (r *Report) Error() string {
	var b strings.Builder
	switch n := len(r.Problems); n {
	case 0:
		return "storm: no problems"
	case 1:
		return r.Problems[0].Error()
	default:
		fmt.Fprintf(&b, "storm: %d problems found:", n)
	}
	for _, p := range r.Problems {
		b.WriteString("\n\t")
		b.WriteString(p.Error())
	}
	return b.String()
}

// Unwrap returns the collected problems, which lets errors.Is and errors.As
// match any of them.
func (r *Report) Unwrap() []error {
	errs := make([]error, len(r.Problems))
	for i, p := range r.Problems {
		errs[i] = p
	}
	return errs
}

// Add records a problem.
func (r *Report) Add(p Problem) {
	r.Problems = append(r.Problems, p)
}

// Warn records a warning.
func (r *Report) Warn(w *Warning) {
	r.Warnings = append(r.Warnings, w)
}

// Merge appends the problems and warnings of o.
func (r *Report) Merge(o *Report) {
	if o == nil {
		return
	}
	r.Problems = append(r.Problems, o.Problems...)
	r.Warnings = append(r.Warnings, o.Warnings...)
}

// Err sorts the report and returns it if it holds any problem, or nil.
func (r *Report) Err() error {
	r.sort()
	if len(r.Problems) == 0 {
		return nil
	}
	return r
}

func (r *Report) sort() {
	slices.SortStableFunc(r.Problems, func(a, b Problem) int {
		la, lb := a.Location(), b.Location()
		return cmp.Or(
			cmp.Compare(la.Entity, lb.Entity),
			cmp.Compare(la.Field, lb.Field),
			cmp.Compare(la.Rule, lb.Rule),
			cmp.Compare(a.Error(), b.Error()),
		)
	})
	slices.SortStableFunc(r.Warnings, func(a, b *Warning) int {
		return cmp.Or(
			cmp.Compare(a.Entity, b.Entity),
			cmp.Compare(a.Field, b.Field),
			cmp.Compare(a.Rule, b.Rule),
			cmp.Compare(a.Message, b.Message),
		)
	})
}

// AsReport returns the Report carried by err. Errors that are a single
// Problem are wrapped into a one-entry report.
func AsReport(err error) (*Report, bool) {
	var r *Report
	if errors.As(err, &r) {
		return r, true
	}
	var p Problem
	if errors.As(err, &p) {
		return &Report{Problems: []Problem{p}}, true
	}
	return nil, false
}
