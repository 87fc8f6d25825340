// Package profile generates normalised motion profiles for servo valves.
//
// A profile is a list of waypoints in [0, 1] sampled at evenly spaced
// positions t_i = i/(n-1). The first waypoint is always exactly 0 and the
// last exactly 1. Callers scale the waypoints to actuator units and play
// them out at a fixed interval.
//
//	linear       value(t) = t
//	instant      0 until the final sample, then 1
//	stepped      floor(t*N)/N, N plateaus (default 5)
//	exponential  (e^{kt} - 1) / (e^k - 1), slow start (default k = 5)
//	logarithmic  ln(1 + kt) / ln(1 + k), fast start (default k = 5)
//
// Generation is pure. Unknown kinds are an error; there is no fallback.
package profile
