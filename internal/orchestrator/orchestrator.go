// Package orchestrator runs the per-application upgrade check: diff the
// current release against its predecessor, merge the result into each
// application's upgrade record and either report or persist the gaps.
package orchestrator

import (
	"fmt"
	"sort"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"appupgen/internal/appdiff"
	"appupgen/internal/appup"
	"appupgen/internal/release"
)

// Mode selects whether gaps are reported or written.
type Mode string

const (
	ModeCheck Mode = "check"
	ModeWrite Mode = "write"
)

// ParseMode validates a mode name.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeCheck, ModeWrite:
		return Mode(s), nil
	}
	return "", errors.Errorf("unknown mode %q (want check or write)", s)
}

// State is where an application ended up.
type State string

const (
	StateUnchanged State = "unchanged"
	StateReported  State = "reported"  // needed an update, check mode
	StatePersisted State = "persisted" // needed an update, written
	StateFailed    State = "failed"    // needed an update, nowhere to write it
)

// MissingRecordForRequiredUpdate is reported for an application that needs
// upgrade actions but has neither a record nor an app.src to place one next to.
const MissingRecordForRequiredUpdate appdiff.ViolationKind = "missing_record_for_required_update"

// AppResult is the outcome for one application.
type AppResult struct {
	App           string       `json:"app" yaml:"app"`
	FromVersion   string       `json:"fromVersion" yaml:"fromVersion"`
	ToVersion     string       `json:"toVersion" yaml:"toVersion"`
	State         State        `json:"state" yaml:"state"`
	UpgradeDiff   appdiff.Diff `json:"upgradeDiff" yaml:"upgradeDiff"`
	DowngradeDiff appdiff.Diff `json:"downgradeDiff" yaml:"downgradeDiff"`
	Path          string       `json:"path,omitempty" yaml:"path,omitempty"`
	Before        string       `json:"-" yaml:"-"` // rendered record before the merge
	After         string       `json:"-" yaml:"-"` // rendered record after the merge
}

// RunReport accumulates the outcome of a run. Valid starts true and only ever
// goes false.
type RunReport struct {
	Valid      bool                `json:"valid" yaml:"valid"`
	Mode       Mode                `json:"mode" yaml:"mode"`
	Apps       []AppResult         `json:"apps" yaml:"apps"`
	Skipped    []string            `json:"skipped,omitempty" yaml:"skipped,omitempty"` // only in the current release
	Violations []appdiff.Violation `json:"violations" yaml:"violations"`
}

// NewRunReport returns an empty, valid report.
func NewRunReport(mode Mode) *RunReport {
	return &RunReport{Valid: true, Mode: mode, Apps: []AppResult{}, Violations: []appdiff.Violation{}}
}

// AddViolation records v and invalidates the run.
func (r *RunReport) AddViolation(v appdiff.Violation) {
	r.Violations = append(r.Violations, v)
	r.Valid = false
}

// Gaps returns the applications whose records are out of date.
func (r *RunReport) Gaps() []AppResult {
	var out []AppResult
	for _, a := range r.Apps {
		if a.State == StateReported || a.State == StateFailed {
			out = append(out, a)
		}
	}
	return out
}

// RecordStore loads and saves upgrade records.
type RecordStore interface {
	Load(path string) (appup.Record, error)
	Save(path string, r appup.Record) error
}

// Locator finds where an application's record lives. exists reports whether
// the file is already there; ok is false when there is nowhere to put it.
type Locator interface {
	RecordPath(app string) (path string, exists bool, ok bool)
}

// Orchestrator runs one check or write pass.
type Orchestrator struct {
	Store   RecordStore
	Sources Locator
	Logger  *zap.SugaredLogger
	Mode    Mode
}

// Run processes every application present in both releases, in name order.
// Recoverable problems are accumulated in the report; a malformed record or a
// failed write aborts the run and is returned.
//
// An application whose version did not change is not merged at all: there is
// no predecessor entry to write, and changed code under the same version is
// already reported as a version_not_bumped violation.
func (o *Orchestrator) Run(curr, pred map[string]release.AppIndex) (*RunReport, error) {
	log := o.Logger
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	mode := o.Mode
	if mode == "" {
		mode = ModeCheck
	}
	report := NewRunReport(mode)

	names := make([]string, 0, len(curr))
	for name := range curr {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		old, ok := pred[name]
		if !ok {
			log.Debugw("new application, no upgrade path needed", "app", name)
			report.Skipped = append(report.Skipped, name)
			continue
		}
		res, err := o.runApp(name, curr[name], old, report, log)
		if err != nil {
			return report, err
		}
		report.Apps = append(report.Apps, res)
	}
	return report, nil
}

func (o *Orchestrator) runApp(name string, cur, old release.AppIndex, report *RunReport, log *zap.SugaredLogger) (AppResult, error) {
	res := AppResult{App: name, FromVersion: old.Version, ToVersion: cur.Version, State: StateUnchanged}

	up := appdiff.Compute(name, cur, old)
	down := appdiff.Compute(name, old, cur)
	res.UpgradeDiff = up.Diff
	res.DowngradeDiff = down.Diff
	if up.Violation != nil {
		log.Warnw("code changed without a version bump", "app", name, "vsn", cur.Version, "modules", up.Diff.Modules())
		report.AddViolation(*up.Violation)
	}

	path, exists, located := o.Sources.RecordPath(name)
	res.Path = path

	existing := appup.NewRecord()
	if exists {
		rec, err := o.Store.Load(path)
		switch {
		case err == nil:
			existing = rec
		case errors.Is(err, appup.ErrRecordNotFound):
			exists = false
		default:
			return res, errors.Wrapf(err, "application %s", name)
		}
	}

	// baseline is the record with an entry for the predecessor in place. An
	// inserted empty entry alone is not worth writing.
	baseline := existing
	if cur.Version != old.Version {
		baseline.Upgrade, _ = appup.EnsureEntry(baseline.Upgrade, old.Version)
		baseline.Downgrade, _ = appup.EnsureEntry(baseline.Downgrade, old.Version)
	}
	merged := baseline
	if cur.Version != old.Version {
		merged.Upgrade = appup.MergeEntry(baseline.Upgrade, old.Version, up.Diff)
		merged.Downgrade = appup.MergeEntry(baseline.Downgrade, old.Version, down.Diff)
	}

	if appup.Equal(baseline, merged) {
		log.Debugw("record up to date", "app", name)
		return res, nil
	}

	res.After = string(appup.Encode(merged))
	if exists {
		res.Before = string(appup.Encode(existing))
	}

	if !located {
		res.State = StateFailed
		report.AddViolation(appdiff.Violation{
			Kind:    MissingRecordForRequiredUpdate,
			App:     name,
			Version: cur.Version,
			Message: fmt.Sprintf("%s: needs upgrade instructions from %s but has no %s or app.src to place one next to", name, old.Version, appup.FileName(name)),
		})
		log.Errorw("no location for upgrade record", "app", name)
		return res, nil
	}

	if report.Mode == ModeWrite {
		if err := o.Store.Save(path, merged); err != nil {
			return res, errors.Wrapf(err, "application %s", name)
		}
		res.State = StatePersisted
		log.Infow("wrote upgrade record", "app", name, "path", path, "from", old.Version, "to", cur.Version)
		return res, nil
	}

	res.State = StateReported
	report.Valid = false
	log.Infow("upgrade record out of date", "app", name, "path", path, "from", old.Version, "to", cur.Version)
	return res, nil
}
