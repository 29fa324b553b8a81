package postgres

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fastygo/taskpilot/repository/row"
)

func TestStoredVersionAgreesWithRowDecode(t *testing.T) {
	pattern := regexp.MustCompile(numericVersion)
	for _, stored := range []string{"3", " 3 ", "3.0", "+3", "2.6", "1e1", "", "abc", "3 4", "v3"} {
		t.Run(strconv.Quote(stored), func(t *testing.T) {
			cells := make(row.Row, len(row.Columns))
			cells[len(cells)-1] = stored
			decoded := row.Decode(cells).Version

			trimmed := strings.TrimSpace(stored)
			want := 1
			if pattern.MatchString(trimmed) {
				f, err := strconv.ParseFloat(trimmed, 64)
				require.NoError(t, err)
				want = int(math.Round(f))
			}
			assert.Equal(t, want, decoded)
		})
	}
}

func TestStoredVersionExpression(t *testing.T) {
	expr := storedVersion()
	assert.Contains(t, expr, "ROUND(CAST(TRIM(version) AS numeric))")
	assert.Contains(t, expr, "'"+numericVersion+"'")
	assert.NotContains(t, numericVersion, "'")
}

func TestAssignmentsCoverEveryColumn(t *testing.T) {
	got := assignments(1)
	for i, col := range row.Columns {
		assert.Contains(t, got, col+" = $"+strconv.Itoa(i+1))
	}
	assert.Equal(t, "$3, $4, $5", placeholders(3, 3))
}
