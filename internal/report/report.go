// Package report renders a KPI bundle for people: a plain-text digest, an
// Excel workbook and console tables.
package report

import (
	"golang.org/x/text/cases"

	"github.com/okian/kpiboard/internal/domain/kpi"
)

// Section titles shared by every format.
const (
	titleCompleted   = "Completed Tasks"
	titleTeam        = "Team Performance"
	titleIndividual  = "Individual Performance"
	titleEstimation  = "Estimation Accuracy"
	titleUserHours   = "User Hours"
	titleUserDone    = "User Done Tasks"
	titleSummary     = "Summary"
	hoursFormat      = "%.1f"
	timestampLayout  = "2006-01-02 15:04"
	noCurrentSprint  = "none"
	emptyPlaceholder = "-"
)

// Reporter renders bundles. Names are ordered and labels cased with the
// engine's locale.
type Reporter struct {
	engine *kpi.Engine
}

// Option configures a Reporter.
type Option func(*Reporter)

// WithEngine sets the engine whose locale orders sprint and user names.
func WithEngine(e *kpi.Engine) Option {
	return func(r *Reporter) {
		if e != nil {
			r.engine = e
		}
	}
}

// New creates a Reporter with configuration options.
func New(opts ...Option) *Reporter {
	r := &Reporter{engine: kpi.New()}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// header title-cases column labels. Casers are stateful so one is built per
// call.
func (r *Reporter) header(labels ...string) []string {
	c := cases.Title(r.engine.Locale())
	out := make([]string, len(labels))
	for i, l := range labels {
		out[i] = c.String(l)
	}
	return out
}

var defaultReporter = New()
