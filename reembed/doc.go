// Package reembed recomputes the vector triples of every stored capability,
// typically after switching embedding models.
//
// Capabilities are read in batches, re-vectorized with retry and exponential
// backoff, and written back in place. Disabled capabilities are included so
// that re-enabling one never brings back vectors from an old model. Progress
// is reported to an io.Writer.
package reembed
