// Package vector implements the local semantic index used by the answer
// pipeline. Chunks of curated health content live in a sqlite file together
// with their embeddings; retrieval is a brute-force cosine scan, which is
// fast enough at the corpus sizes this service carries. A corrupt or missing
// index degrades to empty retrieval instead of failing the request.
//
// This package is internal and should not be imported by external projects.
package vector
