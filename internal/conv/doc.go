// Package conv provides checked integer conversions.
//
// File header counts are fixed-width unsigned integers while the rest of
// the code works in int. Values read back from disk go through Checked so
// a corrupt count fails instead of wrapping.
package conv
