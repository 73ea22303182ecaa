// Package detection finds bright spots and dark shadows in stored images and
// reduces them to positions.
//
// # Spot Pipeline
//
// Spot analysis runs in four stages:
//
//  1. Threshold: a threshold string is interpreted against the region
//     statistics (see ParseThreshold).
//  2. Extract: every 4-connected set of pixels at or above the threshold
//     becomes a Spot, subject to pixel-count and eccentricity limits.
//  3. Estimate: a Method reduces each spot to a position. Centroid weights
//     pixels by intensity above threshold, Ellipse fits second moments, and
//     VerticalLine fits a straight line through the per-row centroids.
//  4. Rank: a SortCode orders the spots and the list is cut to the number
//     requested.
//
// FindSpots, CountHits and FindWires combine these stages and format the
// one-line-per-result text stored back into the image results.
//
// # Shadows
//
// FindShadowsIn looks for vertical bands darker (or lighter) than the
// background. A coarse pass works on the column-mean profile; each
// candidate is then refined by fitting a Gaussian band whose centre moves
// linearly with row.
//
// # Units
//
// Positions are reported in µm: pixel-corner coordinates multiplied by the
// caller's pixel size. Rotations are radians on the Go types and mrad in
// result text.
//
// # Cooperative Yield
//
// Long extractions call Options.Yield every YieldInterval components so a
// host loop can stay responsive. The callback runs synchronously and must
// not touch the image store.
package detection
