// Package pipeline implements the batch transform over a fetched
// ballot-request dataset: null filtering, column normalization and
// derivation, and the descriptive aggregates.
//
// Every step is lenient about schema: when a step's columns are missing
// from the table it logs a notice and is skipped, so a dataset with a
// reduced schema still flows through the rest of the pipeline.
package pipeline

import (
	"github.com/rs/zerolog/log"

	"github.com/ballotflow/mailballot/pkg/dataset"
)

// Column names of the upstream resource used by the pipeline.
const (
	ColSenate         = "senate"
	ColDateOfBirth    = "dateofbirth"
	ColYearBorn       = "yr_born"
	ColAge            = "age"
	ColParty          = "party"
	ColAppIssueDate   = "appissuedate"
	ColBallotReturned = "ballotreturneddate"
	ColLatencyDays    = "latency_days"
	ColLegislative    = "legislative"
	ColCongressional  = "congressional"
	ColCountyName     = "countyname"
)

// Config holds pipeline configuration.
type Config struct {
	// ReferenceYear is the election year ages are computed against.
	ReferenceYear int

	// TopCounties is how many counties the county/party ranking keeps.
	TopCounties int
}

// DefaultConfig returns the configuration for the 2020 general election.
func DefaultConfig() Config {
	return Config{
		ReferenceYear: 2020,
		TopCounties:   20,
	}
}

// AgePartyCount is the number of requests for one (party, age) pair.
type AgePartyCount struct {
	Party    string
	Age      int
	Requests int
}

// DistrictLatency is the median request-to-return latency for one
// legislative district.
type DistrictLatency struct {
	District          string
	MedianLatencyDays float64
}

// DistrictCount is the number of requests for one district.
type DistrictCount struct {
	District string
	Requests int
}

// CountyPartyCount is the number of Democratic and Republican
// applications for one county.
type CountyPartyCount struct {
	County string
	Dem    int
	Rep    int
}

// Report collects the aggregates of one pipeline run. Slices are nil
// when the columns a step needed were missing.
type Report struct {
	TotalRows   int
	InvalidRows int
	ValidRows   int

	AgeParty         []AgePartyCount
	MedianLatency    []DistrictLatency
	TopCongressional *DistrictCount
	CountyParty      []CountyPartyCount
}

// Run executes the full pipeline over the table and returns the
// processed table (valid rows with derived columns) and the report.
// The processed table shares record storage with the input: derived
// and normalized cells are written into the input's records, so save
// the raw dataset before running the pipeline.
func Run(t *dataset.Table, cfg Config) (*dataset.Table, *Report) {
	if cfg.ReferenceYear == 0 {
		cfg.ReferenceYear = 2020
	}
	if cfg.TopCounties <= 0 {
		cfg.TopCounties = 20
	}

	report := &Report{TotalRows: t.Len()}

	valid, invalid := SplitNulls(t)
	report.InvalidRows = invalid.Len()
	report.ValidRows = valid.Len()
	log.Info().
		Int("valid", valid.Len()).
		Int("invalid", invalid.Len()).
		Msg("Separated rows with null values")

	if SnakeCaseColumn(valid, ColSenate) {
		log.Info().Msg("Normalized senate district names")
	} else {
		log.Warn().Str("column", ColSenate).Msg("Column not found - skipping normalization")
	}

	if DeriveYearBorn(valid) {
		log.Info().Msg("Derived birth year column")
	} else {
		log.Warn().Str("column", ColDateOfBirth).Msg("Column not found - skipping birth year derivation")
	}

	report.AgeParty = AgePartyCounts(valid, cfg.ReferenceYear)
	if report.AgeParty == nil {
		log.Warn().Msg("Missing columns for age/party analysis - skipped")
	}

	report.MedianLatency = ReturnLatency(valid)
	if report.MedianLatency == nil {
		log.Warn().Msg("Missing columns for return latency analysis - skipped")
	}

	report.TopCongressional = TopCongressional(valid)
	if report.TopCongressional == nil {
		log.Warn().Str("column", ColCongressional).Msg("Column not found - skipping congressional ranking")
	}

	MapParties(valid)

	report.CountyParty = CountyPartyCounts(valid, cfg.TopCounties)
	if report.CountyParty == nil {
		log.Warn().Msg("Missing columns for county/party counts - skipped")
	}

	return valid, report
}
