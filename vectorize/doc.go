// Package vectorize turns capabilities into the three canonical text
// encodings and their embedding vectors.
//
// Encodings are built from labelled key:value fragments in a fixed field
// order, so unchanged input always produces byte-identical gateway requests:
//
//	semantic:   concept:<c> domain:<d> type:<t> description:<s> example:<e>...
//	functional: operation:<op> input:<name>:<type>... output:<o>
//	contextual: usage:<u> prereq:<p>... constraint:<c>... topic:<t>...
//
// Missing profile fields fall back to kind-specific defaults taken from the
// capability's payload and finally to its name, so no encoding is ever empty.
package vectorize
