// Package similarity scores query vectors against candidate vectors.
//
// Cosine is the single canonical implementation of the math. Engine ranks a
// candidate pool either through a store's native vector operations or through
// Cosine directly, with identical ordering rules in both cases.
package similarity
