// Package report renders a RunReport for terminals, CI annotations and
// machine consumers.
package report

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"appupgen/internal/appdiff"
	"appupgen/internal/orchestrator"
)

// Format names an output format.
type Format string

const (
	Text Format = "text"
	CI   Format = "ci" // GitHub Actions annotations
	JSON Format = "json"
	YAML Format = "yaml"
)

// Formats lists the accepted format names.
var Formats = []Format{Text, CI, JSON, YAML}

// ParseFormat validates a format name.
func ParseFormat(s string) (Format, error) {
	for _, f := range Formats {
		if string(f) == s {
			return f, nil
		}
	}
	names := make([]string, len(Formats))
	for i, f := range Formats {
		names[i] = string(f)
	}
	return "", errors.Errorf("unknown format %q (want one of: %s)", s, strings.Join(names, ", "))
}

// Render formats r in the given format.
func Render(r *orchestrator.RunReport, f Format) (string, error) {
	switch f {
	case CI:
		return FormatCI(r), nil
	case JSON:
		return FormatJSON(r)
	case YAML:
		return FormatYAML(r)
	}
	return FormatCLI(r), nil
}

// FormatCLI formats the run for terminal output, including a unified diff of
// every record that is out of date.
func FormatCLI(r *orchestrator.RunReport) string {
	var sb strings.Builder

	for _, a := range r.Apps {
		switch a.State {
		case orchestrator.StateUnchanged:
			continue
		case orchestrator.StatePersisted:
			sb.WriteString(fmt.Sprintf("✓ %s %s → %s: wrote %s\n", a.App, a.FromVersion, a.ToVersion, a.Path))
			writeDiffSummary(&sb, a)
		case orchestrator.StateReported:
			sb.WriteString(fmt.Sprintf("✗ %s %s → %s: %s is out of date\n", a.App, a.FromVersion, a.ToVersion, a.Path))
			writeDiffSummary(&sb, a)
			if d := UnifiedDiff(a.Path, a.Before, a.After); d != "" {
				sb.WriteString(indent(d, "    "))
			}
		case orchestrator.StateFailed:
			sb.WriteString(fmt.Sprintf("✗ %s %s → %s: no place to write upgrade instructions\n", a.App, a.FromVersion, a.ToVersion))
			writeDiffSummary(&sb, a)
		}
	}

	if len(r.Violations) > 0 {
		sb.WriteString("\nViolations:\n")
		for _, v := range r.Violations {
			sb.WriteString(fmt.Sprintf("  - [%s] %s\n", v.Kind, v.Message))
		}
	}

	sb.WriteString("\n")
	sb.WriteString(summary(r))
	sb.WriteString("\n")
	return sb.String()
}

func writeDiffSummary(sb *strings.Builder, a orchestrator.AppResult) {
	writeGroup(sb, "+", a.UpgradeDiff.Added)
	writeGroup(sb, "~", a.UpgradeDiff.Changed)
	writeGroup(sb, "-", a.UpgradeDiff.Deleted)
}

func writeGroup(sb *strings.Builder, mark string, modules []string) {
	for _, m := range modules {
		sb.WriteString(fmt.Sprintf("  %s %s\n", mark, m))
	}
}

func indent(s, prefix string) string {
	lines := strings.SplitAfter(s, "\n")
	var sb strings.Builder
	for _, l := range lines {
		if l == "" {
			continue
		}
		sb.WriteString(prefix)
		sb.WriteString(l)
	}
	if !strings.HasSuffix(s, "\n") {
		sb.WriteString("\n")
	}
	return sb.String()
}

func summary(r *orchestrator.RunReport) string {
	var persisted, reported, failed int
	for _, a := range r.Apps {
		switch a.State {
		case orchestrator.StatePersisted:
			persisted++
		case orchestrator.StateReported:
			reported++
		case orchestrator.StateFailed:
			failed++
		}
	}

	if r.Valid {
		if persisted > 0 {
			return fmt.Sprintf("Upgrade records updated: %d of %d application(s)", persisted, len(r.Apps))
		}
		return fmt.Sprintf("Upgrade records up to date: %d application(s) checked", len(r.Apps))
	}
	return fmt.Sprintf("Upgrade check failed: %d out of date, %d without a record location, %d violation(s)",
		reported, failed, len(r.Violations))
}

// FormatCI formats problems as GitHub Actions error annotations.
func FormatCI(r *orchestrator.RunReport) string {
	var sb strings.Builder

	for _, a := range r.Gaps() {
		file := a.Path
		if file == "" {
			file = a.App
		}
		msg := fmt.Sprintf("Upgrade instructions for %s %s → %s are out of date (%d module(s) differ)",
			a.App, a.FromVersion, a.ToVersion, a.UpgradeDiff.Len())
		sb.WriteString(fmt.Sprintf("::error file=%s::%s\n", file, msg))
	}
	for _, v := range r.Violations {
		if v.Kind == orchestrator.MissingRecordForRequiredUpdate {
			continue // already annotated as a gap
		}
		sb.WriteString(fmt.Sprintf("::error title=%s::%s\n", violationTitle(v), v.Message))
	}

	if !r.Valid {
		sb.WriteString("\n")
		sb.WriteString(summary(r))
		sb.WriteString("\n")
	}
	return sb.String()
}

func violationTitle(v appdiff.Violation) string {
	switch v.Kind {
	case appdiff.VersionNotBumped:
		return "Version not bumped"
	case orchestrator.MissingRecordForRequiredUpdate:
		return "Missing upgrade record"
	}
	return string(v.Kind)
}

// FormatJSON formats the run as JSON.
func FormatJSON(r *orchestrator.RunReport) (string, error) {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// FormatYAML formats the run as YAML.
func FormatYAML(r *orchestrator.RunReport) (string, error) {
	data, err := yaml.Marshal(r)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
