// Package htshard erasure-codes a payload into shards
// and commits to the shards with a hash tree,
// so that a receiver can check every shard against the root
// before any reconstruction work happens.
//
// [Prepare] is the sending side.
// A [Collector] is the receiving side:
// it accepts shards with their proofs in any order,
// and reconstructs the payload once enough shards have arrived.
package htshard
