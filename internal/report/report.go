// Package report implements the flat JSON finding list every command can
// emit on request (spec §7): `{code, severity, message, optional
// location}`, plus a run-scoped summary suitable for a status line,
// grounded on the teacher's internal/output/json.go marshal-to-string
// idiom.
package report

import (
	"encoding/json"

	"github.com/google/uuid"

	"dumpkit/internal/differ"
	"dumpkit/internal/validator"
)

// Severity is a finding's level, serialized as a lowercase string.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
	SeverityInfo    Severity = "info"
)

// Location pinpoints where a finding was found; every field is optional,
// per spec §7.
type Location struct {
	Table          string  `json:"table,omitempty"`
	StatementIndex *uint64 `json:"statement_index,omitempty"`
	ApproxLine     *uint64 `json:"approx_line,omitempty"`
}

// Finding is one non-fatal or fatal issue discovered during a run.
type Finding struct {
	Code     string    `json:"code"`
	Severity Severity  `json:"severity"`
	Message  string    `json:"message"`
	Location *Location `json:"location,omitempty"`
}

// Report is the JSON document one command run produces on request.
type Report struct {
	RunID    string    `json:"run_id"`
	Command  string    `json:"command"`
	Findings []Finding `json:"findings"`
}

// New starts a report for command, stamped with a fresh run ID.
func New(command string) *Report {
	return &Report{RunID: uuid.NewString(), Command: command, Findings: []Finding{}}
}

// Add appends one finding.
func (r *Report) Add(f Finding) {
	r.Findings = append(r.Findings, f)
}

// AddSimple appends a finding with no location.
func (r *Report) AddSimple(code string, severity Severity, message string) {
	r.Add(Finding{Code: code, Severity: severity, Message: message})
}

// HasErrors reports whether any finding is error severity; callers use
// this to decide the process exit code (spec §7).
func (r *Report) HasErrors() bool {
	for _, f := range r.Findings {
		if f.Severity == SeverityError {
			return true
		}
	}
	return false
}

// Counts returns the number of findings at each severity.
func (r *Report) Counts() (errors, warnings, info int) {
	for _, f := range r.Findings {
		switch f.Severity {
		case SeverityError:
			errors++
		case SeverityWarning:
			warnings++
		default:
			info++
		}
	}
	return
}

// JSON renders the report as indented JSON, terminated by a newline.
func (r *Report) JSON() (string, error) {
	b, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return "", err
	}
	return string(b) + "\n", nil
}

// AddValidatorIssue converts and appends a validator.Issue.
func (r *Report) AddValidatorIssue(issue validator.Issue) {
	r.Add(Finding{
		Code:     issue.Code,
		Severity: fromValidatorSeverity(issue.Severity),
		Message:  issue.Message,
		Location: fromValidatorLocation(issue.Location),
	})
}

// AddDifferWarning converts and appends a differ.Warning. The differ
// carries no issue code, so warnings are tagged generically.
func (r *Report) AddDifferWarning(w differ.Warning) {
	r.Add(Finding{
		Code:     "DIFFER_WARNING",
		Severity: SeverityWarning,
		Message:  w.Message,
		Location: &Location{Table: w.Table},
	})
}

func fromValidatorSeverity(s validator.Severity) Severity {
	switch s {
	case validator.Error:
		return SeverityError
	case validator.Warning:
		return SeverityWarning
	default:
		return SeverityInfo
	}
}

func fromValidatorLocation(loc validator.Location) *Location {
	if loc.Table == "" && !loc.HasStatement {
		return nil
	}
	out := &Location{Table: loc.Table}
	if loc.HasStatement {
		idx := loc.StatementIndex
		out.StatementIndex = &idx
	}
	return out
}
