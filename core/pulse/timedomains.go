package pulse

import "time"

// Time-scale constants for the derived display domains. The conversions are
// deliberately simple fixed-offset approximations; the monotonic counter is
// the only authoritative field on a pulse.
const (
	// j2000JulianDate is the Julian Date of the J2000.0 epoch.
	j2000JulianDate = 2451545.0
	// j2000Unix is the Unix timestamp of J2000.0.
	j2000Unix = 946728000.0
	// leapSeconds is the cumulative UTC leap-second count (TAI - UTC).
	leapSeconds = 37.0
	// taiToTT is the fixed TAI to Terrestrial Time offset in seconds.
	taiToTT = 32.184
	secondsPerDay = 86400.0
)

// Domains holds every wall-derived time representation of a pulse. All values
// are computed from one wall reading so the fields of a single pulse are
// mutually consistent.
type Domains struct {
	UTCISO     string
	UTCUnix    float64
	TAINS      int64
	ETSeconds  float64
	EpochDays  float64
	JulianDate float64
}

// DeriveDomains converts a single UTC wall reading into every display domain.
// Pure function: same input, same output, no clock access.
func DeriveDomains(utc time.Time) Domains {
	utc = utc.UTC()
	unixSeconds := float64(utc.UnixNano()) / 1e9
	return Domains{
		UTCISO:     utc.Format(time.RFC3339Nano),
		UTCUnix:    unixSeconds,
		TAINS:      utc.UnixNano() + int64(leapSeconds*1e9),
		ETSeconds:  (unixSeconds - j2000Unix) + leapSeconds + taiToTT,
		EpochDays:  (unixSeconds - j2000Unix) / secondsPerDay,
		JulianDate: j2000JulianDate + (unixSeconds-j2000Unix)/secondsPerDay,
	}
}
