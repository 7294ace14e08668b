// Package synthetic produces labeled train observations for training and
// backend-shaped sample trains for when live data is missing.
//
// All draws come from a single PCG source seeded by the caller so that two
// runs with the same seed produce identical records.
package synthetic
