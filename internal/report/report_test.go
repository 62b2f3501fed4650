package report

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"dumpkit/internal/differ"
	"dumpkit/internal/validator"
)

func TestNewStampsRunIDAndCommand(t *testing.T) {
	r := New("validate")
	require.Equal(t, "validate", r.Command)
	require.NotEmpty(t, r.RunID)
	require.Empty(t, r.Findings)
}

func TestHasErrorsOnlyTrueForErrorSeverity(t *testing.T) {
	r := New("validate")
	r.AddSimple("SOMETHING", SeverityWarning, "just a warning")
	require.False(t, r.HasErrors())

	r.AddSimple("BAD_THING", SeverityError, "something failed")
	require.True(t, r.HasErrors())

	errors, warnings, info := r.Counts()
	require.Equal(t, 1, errors)
	require.Equal(t, 1, warnings)
	require.Equal(t, 0, info)
}

func TestAddValidatorIssuePreservesCodeAndLocation(t *testing.T) {
	r := New("validate")
	r.AddValidatorIssue(validator.Issue{
		Code:     "DUPLICATE_PK",
		Severity: validator.Error,
		Message:  "duplicate primary key in table \"t\"",
		Location: validator.Location{Table: "t", StatementIndex: 5, HasStatement: true},
	})

	require.Len(t, r.Findings, 1)
	f := r.Findings[0]
	require.Equal(t, "DUPLICATE_PK", f.Code)
	require.Equal(t, SeverityError, f.Severity)
	require.NotNil(t, f.Location)
	require.Equal(t, "t", f.Location.Table)
	require.NotNil(t, f.Location.StatementIndex)
	require.Equal(t, uint64(5), *f.Location.StatementIndex)
}

func TestAddValidatorIssueOmitsLocationWhenEmpty(t *testing.T) {
	r := New("validate")
	r.AddValidatorIssue(validator.Issue{Code: "SYNTAX", Severity: validator.Error, Message: "bad"})
	require.Nil(t, r.Findings[0].Location)
}

func TestAddDifferWarning(t *testing.T) {
	r := New("diff")
	r.AddDifferWarning(differ.Warning{Table: "orders", Message: "no primary key"})

	require.Len(t, r.Findings, 1)
	f := r.Findings[0]
	require.Equal(t, "DIFFER_WARNING", f.Code)
	require.Equal(t, SeverityWarning, f.Severity)
	require.Equal(t, "orders", f.Location.Table)
}

func TestJSONRendersIndentedWithTrailingNewline(t *testing.T) {
	r := New("validate")
	r.AddSimple("X", SeverityInfo, "hello")

	out, err := r.JSON()
	require.NoError(t, err)
	require.True(t, strings.HasSuffix(out, "\n"))
	require.Contains(t, out, `"code": "X"`)
	require.Contains(t, out, `"run_id"`)
}
