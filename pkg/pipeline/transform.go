package pipeline

import (
	"strconv"
	"strings"
	"time"

	"github.com/ballotflow/mailballot/pkg/dataset"
)

// partyMapping collapses the upstream party codes into the three buckets
// used by the county comparison. Codes not listed here map to "Other".
var partyMapping = map[string]string{
	"D":   "DEM",
	"R":   "REP",
	"NOP": "Other",
	"3RD": "Other",
	"AC":  "Other",
}

// dateLayouts are tried in order when parsing upstream date cells. The
// first is Socrata's floating timestamp format; the rest cover values
// seen after a round-trip through external CSV tooling.
var dateLayouts = []string{
	"2006-01-02T15:04:05.000",
	"2006-01-02T15:04:05",
	"2006-01-02",
	"01/02/2006",
	"1/2/2006",
}

// SplitNulls partitions the table into rows with no null cells (valid)
// and rows with at least one (invalid). A cell is null when the field is
// absent or empty in any of the table's columns.
func SplitNulls(t *dataset.Table) (valid, invalid *dataset.Table) {
	hasNull := func(r dataset.Record) bool {
		for _, col := range t.Columns {
			if r.Null(col) {
				return true
			}
		}
		return false
	}

	valid = t.Filter(func(r dataset.Record) bool { return !hasNull(r) })
	invalid = t.Filter(hasNull)
	return valid, invalid
}

// SnakeCaseColumn rewrites a column's values to snake_case (spaces to
// underscores, lowercased). Returns false when the column is missing.
func SnakeCaseColumn(t *dataset.Table, col string) bool {
	if !t.HasColumn(col) {
		return false
	}

	for _, r := range t.Rows {
		if v, ok := r.Get(col); ok {
			r[col] = strings.ToLower(strings.ReplaceAll(v, " ", "_"))
		}
	}
	return true
}

// DeriveYearBorn adds a yr_born column holding the year of the
// dateofbirth cell, placed directly after dateofbirth. Unparseable
// dates yield a null yr_born. Returns false when dateofbirth is
// missing.
func DeriveYearBorn(t *dataset.Table) bool {
	if !t.HasColumn(ColDateOfBirth) {
		return false
	}

	t.InsertColumnAfter(ColDateOfBirth, ColYearBorn)
	for _, r := range t.Rows {
		v, ok := r.Get(ColDateOfBirth)
		if !ok {
			continue
		}
		if born, ok := parseDate(v); ok {
			r[ColYearBorn] = strconv.Itoa(born.Year())
		}
	}
	return true
}

// MapParties rewrites the party column in place using partyMapping;
// unknown codes become "Other". A missing party column is a no-op.
func MapParties(t *dataset.Table) {
	if !t.HasColumn(ColParty) {
		return
	}

	for _, r := range t.Rows {
		v, ok := r.Get(ColParty)
		if !ok {
			continue
		}
		mapped, known := partyMapping[v]
		if !known {
			mapped = "Other"
		}
		r[ColParty] = mapped
	}
}

// parseDate parses an upstream date cell.
func parseDate(s string) (time.Time, bool) {
	for _, layout := range dateLayouts {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts, true
		}
	}
	return time.Time{}, false
}
