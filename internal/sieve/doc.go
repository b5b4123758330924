// Package sieve implements the filter-dispatch-and-sort engine.
//
// The engine takes one finite record stream and a list of compiled group
// specs, and produces one filtered, projected, optionally sorted record
// set per group.
//
// ARCHITECTURE:
//
// Two bounded worker pools, two phases, one hard barrier between them:
//
//  1. Filter phase: a producer reads rows from the Source, tags each
//     with its input sequence number, and feeds a bounded channel. A
//     fixed pool of workers drains the channel; each worker evaluates
//     every group spec against each row it owns and appends accepted
//     projections to per-group accumulators (worker-local batches,
//     merged under a short-held mutex). Groups are independent: no
//     locking between groups, only the per-group merge serializes.
//  2. Finalize phase: begins only after every filter worker has
//     finished (the barrier - sorting a partial result set would be
//     incorrect). Each group becomes one task on a bounded pool: stable
//     multi-key sort (when requested and not globally disabled), then
//     sink write. Pool size bounds peak sort memory: at most
//     sort-parallelism groups are held for sorting at once. Operators
//     size that knob to their memory budget. A group failure cancels
//     the remaining finalize tasks; outputs committed before the
//     failure are kept, nothing further is committed.
//
// ORDERING:
//
// Every row carries its input sequence number through the accumulators.
// After the barrier each group's buffer is reordered by that number,
// which restores original input order regardless of worker interleaving.
// Unsorted groups are emitted in exactly that order; sorted groups feed
// it to a stable sort, so equal-key rows keep input-relative order.
//
// All comparisons are byte-wise on the raw string values. No numeric
// coercion, no locale awareness, no unicode normalization.
package sieve
