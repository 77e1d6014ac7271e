// Package analysis implements the artwork composition scoring model: a pure
// distance-from-center base score with verdict thresholds, plus the sampler
// that draws the randomized parts of a simulated analysis run (computation
// delay, success indicator, score noise).
package analysis
