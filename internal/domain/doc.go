// Package domain models hourly dry-bulb temperature series read from EPW
// (EnergyPlus Weather) files and the aggregations computed over them.
//
// # Data Source
//
// Scenario files are typical-year EPW files: one for the present-day baseline
// and one per projection year (2050, 2080) produced by morphing the baseline
// with a climate model. Users may upload further EPW files for comparison.
//
// # EPW Layout
//
// Header:
//
//	8 lines (LOCATION, DESIGN CONDITIONS, TYPICAL/EXTREME PERIODS, GROUND
//	TEMPERATURES, HOLIDAYS/DAYLIGHT SAVINGS, COMMENTS 1, COMMENTS 2,
//	DATA PERIODS). Skipped unconditionally, never validated.
//
// Data rows (comma separated, 0-indexed):
//
//	0 Year | 1 Month | 2 Day | 3 Hour | 4 Minute | 5 Data source flags |
//	6 Dry bulb temperature (°C) | 7 Dew point | ...
//
//	The year column is ignored: typical-year files mix source years, so
//	every row is anchored on a caller-supplied nominal year instead.
//	Some producers shift columns, hence [Columns] is configurable.
//
// Hour encoding:
//
//	Hours run 1–24 and label the END of the hourly interval. Hour h maps to
//	wall-clock h-1 on the same day; hour 24 maps to 00:00 of the next day,
//	so "12,31,24" becomes Jan 1 00:00 of the following year. Under this
//	rule hour 24 of one day and hour 1 of the next share a timestamp; the
//	later row wins. [HourIntervalStart] maps every hour to h-1 instead.
//
// Missing values:
//
//	The EPW convention for a missing dry bulb temperature is 99.9. Rows are
//	only treated as missing when [ParseOptions.MissingSentinel] is set, or
//	when the field is empty or non-numeric.
//
// Encoding:
//
//	Header comment lines frequently carry Latin-1 station names. Input that
//	is not valid UTF-8 is decoded as ISO-8859-1.
//
// # Aggregation
//
// [Align] outer-joins series on timestamp without filling gaps.
// [CountAboveThreshold] counts strictly greater observations, matching the
// "hours above X °C" reading of the dashboard.
package domain
