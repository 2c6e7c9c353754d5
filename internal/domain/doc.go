// Package domain models hourly station weather and traffic-collision records,
// and the pure stages that reconcile, normalize, and join them.
//
// # Data Sources
//
// Weather comes from the Environment and Climate Change Canada (ECCC) bulk
// climate data service, one CSV per station, year, and month (timeframe=1 is
// hourly). The relevant columns are:
//
//	"Date/Time (LST)"       "2022-01-01 14:00", local standard time, no zone
//	"Temp (°C)"             degrees Celsius
//	"Precip. Amount (mm)"   millimetres in the hour
//	"Visibility (km)"       kilometres
//	"Weather"               free text, e.g. "Moderate Rain,Fog"; often blank
//
// Blank cells are absent measurements and are modeled as nil pointers on
// [Observation], never as zero.
//
// Collisions come from a police open-data CSV with an event identifier
// (EVENT_UNIQUE_ID), an occurrence date (OCC_DATE) and an occurrence hour
// (OCC_HOUR, 0-23). Other columns are carried through untouched.
//
// # Time Domain
//
// Both sides use the same naive hourly timestamps stored as UTC: weather
// stamps are LST wall-clock values and collision join keys are
// date-at-midnight plus the hour. No zone conversion happens anywhere, so a
// collision at hour 14 on 2022-01-01 matches the "2022-01-01 14:00" reading.
//
// # Reconciliation
//
// The primary station (Pearson Airport, 51459) is patched attribute by
// attribute from the backup station (City Centre Airport, 48549). See [Reconcile].
//
// # Gap Filling
//
// [Normalize] resamples onto a contiguous hourly grid and fills in order:
//
//	1. forward fill, at most ShortGapLimit (4) hours into any gap
//	2. remaining precipitation set to 0.0 (no report means no rain)
//	3. unbounded backward fill for everything still absent
//
// Zero-filling precipitation before the backward fill keeps a long dry gap
// from inheriting rain recorded days later.
package domain
