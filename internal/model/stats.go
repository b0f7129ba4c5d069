package model

// FeeBand identifies one of the six fixed MTOW landing-fee bands.
type FeeBand string

const (
	Band0_749     FeeBand = "fee_band_0_749kg"
	Band750_1199  FeeBand = "fee_band_750_1199kg"
	Band1200_1999 FeeBand = "fee_band_1200_1999kg"
	Band2000_3499 FeeBand = "fee_band_2000_3499kg"
	Band3500_5699 FeeBand = "fee_band_3500_5699kg"
	Band5700Plus  FeeBand = "fee_band_5700kg_plus"
)

// AllFeeBands lists the six bands in ascending MTOW order.
var AllFeeBands = []FeeBand{
	Band0_749,
	Band750_1199,
	Band1200_1999,
	Band2000_3499,
	Band3500_5699,
	Band5700Plus,
}

// BandForMTOW buckets a maximum takeoff weight (kg) into its fee band.
func BandForMTOW(mtowKg float64) FeeBand {
	switch {
	case mtowKg < 750:
		return Band0_749
	case mtowKg < 1200:
		return Band750_1199
	case mtowKg < 2000:
		return Band1200_1999
	case mtowKg < 3500:
		return Band2000_3499
	case mtowKg < 5700:
		return Band3500_5699
	default:
		return Band5700Plus
	}
}

// aircraftMTOW maps common GA type designators to MTOW in kilograms.
// Static lookup; unknown types have no band and their fees are dropped.
var aircraftMTOW = map[string]float64{
	"C150": 726,
	"C152": 757,
	"C172": 1111,
	"C182": 1406,
	"C206": 1633,
	"C210": 1814,
	"PA18": 794,
	"PA28": 1157,
	"PA32": 1633,
	"PA46": 1950,
	"DA20": 800,
	"DA40": 1280,
	"DA42": 1999,
	"DA62": 2300,
	"SR20": 1386,
	"SR22": 1633,
	"M20P": 1315,
	"BE36": 1656,
	"BE58": 2495,
	"TBM9": 3354,
	"PC12": 4740,
	"C510": 3930,
	"C25A": 5670,
	"E55P": 8150,
}

// MTOWForType returns the MTOW for a type designator, if known.
func MTOWForType(aircraftType string) (float64, bool) {
	mtow, ok := aircraftMTOW[aircraftType]
	return mtow, ok
}

// FeeRecord is one reported landing fee for an aircraft type at an
// airport, as yielded by fee-capable sources.
type FeeRecord struct {
	ICAO         string  `json:"icao"`
	AircraftType string  `json:"aircraft_type"`
	Amount       float64 `json:"amount"`
}

// BandAggregate is the fee aggregate for one MTOW band at one airport.
type BandAggregate struct {
	Count   int     `json:"count"`
	FeeMean float64 `json:"fee_mean"`
}

// AirportStats holds per-airport review and fee aggregates.
type AirportStats struct {
	ICAO        string                    `json:"icao"`
	ReviewCount int                       `json:"review_count"`
	RatingMean  float64                   `json:"rating_mean"` // 0 when no ratings
	RatingCount int                       `json:"rating_count"`
	FeeBands    map[FeeBand]BandAggregate `json:"fee_bands,omitempty"`
}
