package pipeline

import (
	"sort"
	"strconv"
	"time"

	"github.com/ballotflow/mailballot/pkg/dataset"
)

// AgePartyCounts derives an age column (referenceYear minus yr_born)
// and returns request counts grouped by (party, age), sorted by party
// then age. Returns nil when party or yr_born is missing. Rows whose
// yr_born is null are left out of the grouping.
func AgePartyCounts(t *dataset.Table, referenceYear int) []AgePartyCount {
	if !t.HasColumns(ColParty, ColYearBorn) {
		return nil
	}

	t.AddColumn(ColAge)

	type key struct {
		party string
		age   int
	}
	counts := make(map[key]int)

	for _, r := range t.Rows {
		party, ok := r.Get(ColParty)
		if !ok {
			continue
		}
		yearStr, ok := r.Get(ColYearBorn)
		if !ok {
			continue
		}
		year, err := strconv.Atoi(yearStr)
		if err != nil {
			continue
		}

		age := referenceYear - year
		r[ColAge] = strconv.Itoa(age)
		counts[key{party, age}]++
	}

	out := make([]AgePartyCount, 0, len(counts))
	for k, n := range counts {
		out = append(out, AgePartyCount{Party: k.party, Age: k.age, Requests: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Party != out[j].Party {
			return out[i].Party < out[j].Party
		}
		return out[i].Age < out[j].Age
	})
	return out
}

// ReturnLatency computes the median days between application issue and
// ballot return per legislative district, sorted by district. Rows
// whose issue or return date does not parse are dropped from the table;
// the remaining rows gain a latency_days column. Returns nil when any
// required column is missing.
func ReturnLatency(t *dataset.Table) []DistrictLatency {
	if !t.HasColumns(ColAppIssueDate, ColBallotReturned, ColLegislative) {
		return nil
	}

	t.AddColumn(ColLatencyDays)

	kept := t.Rows[:0]
	byDistrict := make(map[string][]int)

	for _, r := range t.Rows {
		issued, ok := parseCell(r, ColAppIssueDate)
		if !ok {
			continue
		}
		returned, ok := parseCell(r, ColBallotReturned)
		if !ok {
			continue
		}

		days := int(returned.Sub(issued) / (24 * time.Hour))
		r[ColLatencyDays] = strconv.Itoa(days)
		kept = append(kept, r)

		if district, ok := r.Get(ColLegislative); ok {
			byDistrict[district] = append(byDistrict[district], days)
		}
	}
	t.Rows = kept

	out := make([]DistrictLatency, 0, len(byDistrict))
	for district, latencies := range byDistrict {
		out = append(out, DistrictLatency{
			District:          district,
			MedianLatencyDays: median(latencies),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].District < out[j].District })
	return out
}

// TopCongressional returns the congressional district with the most
// requests, or nil when the column is missing. Ties break toward the
// lexically smaller district name.
func TopCongressional(t *dataset.Table) *DistrictCount {
	if !t.HasColumn(ColCongressional) {
		return nil
	}

	counts := make(map[string]int)
	for _, r := range t.Rows {
		if district, ok := r.Get(ColCongressional); ok {
			counts[district]++
		}
	}
	if len(counts) == 0 {
		return nil
	}

	var top DistrictCount
	for district, n := range counts {
		if n > top.Requests || (n == top.Requests && district < top.District) {
			top = DistrictCount{District: district, Requests: n}
		}
	}
	return &top
}

// CountyPartyCounts returns per-county Democratic and Republican
// application counts, sorted by Democratic count descending and capped
// at topN. Expects MapParties to have run. Returns nil when countyname
// or party is missing, or when the dataset has no Democratic or no
// Republican applications at all.
func CountyPartyCounts(t *dataset.Table, topN int) []CountyPartyCount {
	if !t.HasColumns(ColCountyName, ColParty) {
		return nil
	}

	dem := make(map[string]int)
	rep := make(map[string]int)
	counties := make(map[string]bool)

	totalDem, totalRep := 0, 0
	for _, r := range t.Rows {
		county, ok := r.Get(ColCountyName)
		if !ok {
			continue
		}
		party, ok := r.Get(ColParty)
		if !ok {
			continue
		}
		counties[county] = true
		switch party {
		case "DEM":
			dem[county]++
			totalDem++
		case "REP":
			rep[county]++
			totalRep++
		}
	}

	if totalDem == 0 || totalRep == 0 {
		return nil
	}

	out := make([]CountyPartyCount, 0, len(counties))
	for county := range counties {
		out = append(out, CountyPartyCount{
			County: county,
			Dem:    dem[county],
			Rep:    rep[county],
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Dem != out[j].Dem {
			return out[i].Dem > out[j].Dem
		}
		return out[i].County < out[j].County
	})

	if len(out) > topN {
		out = out[:topN]
	}
	return out
}

func parseCell(r dataset.Record, col string) (time.Time, bool) {
	v, ok := r.Get(col)
	if !ok {
		return time.Time{}, false
	}
	return parseDate(v)
}

// median of a non-empty slice; the even case averages the middle pair.
func median(values []int) float64 {
	sort.Ints(values)
	n := len(values)
	if n%2 == 1 {
		return float64(values[n/2])
	}
	return float64(values[n/2-1]+values[n/2]) / 2
}
