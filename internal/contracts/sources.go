package contracts

import "fmt"

// Market data sources feeding the raw fact table.
const (
	SourceENTSOE          = "ENTSOE"
	SourceELEXON          = "ELEXON"
	SourceTAIPOWER        = "TAIPOWER"
	SourceNVE             = "NVE"
	SourceENERGISTYRELSEN = "ENERGISTYRELSEN"
)

// Raw source_type values this engine cares about. Everything not listed
// is treated as metered generation.
const (
	SourceTypeAPI              = "api"
	SourceTypeCSV              = "csv"
	SourceTypeBOAVBid          = "boav_bid"
	SourceTypeBOAVOffer        = "boav_offer"
	SourceTypeAPIConsumption   = "api_consumption"
	SourceTypeExcelConsumption = "excel_consumption"
)

// AllSources lists every known source, including monthly-only ones.
func AllSources() []string {
	return []string{
		SourceENTSOE,
		SourceELEXON,
		SourceTAIPOWER,
		SourceNVE,
		SourceENERGISTYRELSEN,
	}
}

// DailySources lists the sources the daily engine can process.
// ENERGISTYRELSEN publishes monthly totals and needs the monthly pipeline.
func DailySources() []string {
	return []string{
		SourceENTSOE,
		SourceELEXON,
		SourceTAIPOWER,
		SourceNVE,
	}
}

// ParseSource validates a source name supplied on the command line.
func ParseSource(s string) (string, error) {
	for _, known := range AllSources() {
		if s == known {
			return known, nil
		}
	}
	return "", fmt.Errorf("unknown source %q (expected one of %v)", s, AllSources())
}

// IsConsumptionType reports whether a raw source_type carries
// consumption readings rather than generation.
func IsConsumptionType(sourceType string) bool {
	return sourceType == SourceTypeAPIConsumption || sourceType == SourceTypeExcelConsumption
}
