// Package domain models a SWMM flood simulation request and the per-node
// flooding summary derived from the engine's artifacts.
//
// # Request Shape
//
// A request carries three optional parts:
//
//	nodes:    node id -> {inv_elev, init_depth, ponding_area, surcharge_depth}
//	links:    link id -> {init_flow, flow_limit, upstrm_offset_depth,
//	                      downstrm_offset_depth, avg_conduit_loss}
//	rainfall: {total_precip (mm), duration_hr, interval_min, pattern}
//
// init_flow sets the conduit's flow limit, the meaning existing clients rely
// on; flow_limit overrides it when both are given. Unset parameters leave the
// base network untouched. An empty rainfall object
// keeps the network's own rain series.
//
// # Synthetic Rainfall
//
// The hyetograph spreads total_precip over duration_hr in interval_min steps
// using one of three shapes:
//
//	uniform:    constant intensity
//	triangular: linear rise to the midpoint, linear fall
//	chicago:    linear rise to 40% of the event, linear fall
//
// Depths are normalised so the event total equals total_precip, then
// converted to mm/h. Times and intensities are rounded to two decimals,
// matching what the engine reads back from the input file.
//
// # Flooding Metrics
//
// Per-node statistics come from the report's "Node Flooding Summary" table.
// Time_After_Raining_min is derived from the binary output: minutes from the
// first reporting period to the first period with a positive flooding rate.
// Nodes absent from the table are reported with zero values so every node in
// the output file appears in the summary.
//
// # Vulnerability
//
// When a clustering model is loaded each node is labelled from five features:
// hours flooded, maximum rate, time of maximum (hours), total flood volume and
// time after raining. See [FeatureNames].
package domain
