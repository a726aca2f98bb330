// Package domain models lightning strike observations published by the
// Finnish Meteorological Institute (FMI) open data WFS service.
//
// # Data Source
//
// Strikes come from the stored query fmi::observations::lightning::simple,
// documented at https://en.ilmatieteenlaitos.fi/open-data-manual. The query
// takes a bounding box, a time window and a parameter list, and answers with
// a WFS FeatureCollection in "simple features" form.
//
// # Feed Layout
//
// The simple form is flat. Every member carries exactly one parameter, so a
// single strike spans four consecutive members that repeat the same time and
// position:
//
//	member 4i+0: Time, pos "lat lon", peak_current    (kA, signed)
//	member 4i+1: Time, pos "lat lon", multiplicity    (return strokes)
//	member 4i+2: Time, pos "lat lon", cloud_indicator (1 intra-cloud, 0 ground)
//	member 4i+3: Time, pos "lat lon", ellipse_major   (location error, km)
//
// The decoder keeps one time and position per group, yielding a [RawFeed].
// [Reassemble] zips the groups back into [Observation] values. Field identity
// is positional; the parameter names only confirm that the order held.
//
// # Time Windows
//
// Window bounds use the pattern 2006-01-02T15:04:05 and are treated as
// calendar-naive instants. [NormalizeWindow] clamps windows longer than
// [MaxWindow] to [ClampSpan] after the start and rebases reversed windows to
// [RebaseSpan] before the end. Observation timestamps carry a trailing Z and
// are converted to epoch seconds for storage by [NewStoredRows].
package domain
