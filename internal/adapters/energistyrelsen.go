package adapters

import (
	"github.com/energyexe/harmonizer/internal/contracts"
)

// ENERGISTYRELSEN publishes monthly totals. Spreading a monthly figure
// across hours would fabricate precision, so the daily engine skips the
// source entirely; a separate monthly pipeline owns it. The day
// processor logs the skip.
type ENERGISTYRELSEN struct{}

// NewENERGISTYRELSEN creates the ENERGISTYRELSEN adapter.
func NewENERGISTYRELSEN() *ENERGISTYRELSEN {
	return &ENERGISTYRELSEN{}
}

func (a *ENERGISTYRELSEN) Source() string       { return contracts.SourceENERGISTYRELSEN }
func (a *ENERGISTYRELSEN) Resolution() string   { return ResolutionP1M }
func (a *ENERGISTYRELSEN) FetchSpec() FetchSpec { return FetchSpec{} }

func (a *ENERGISTYRELSEN) Transform(win contracts.DayWindow, rows []contracts.RawRecord) []contracts.HourlyCandidate {
	return nil
}
