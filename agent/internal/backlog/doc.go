// Package backlog implements the durable, bounded, order-preserving queue of
// undelivered snapshots.
//
// The queue is FIFO with positional identity: Enqueue appends, PeekAll
// returns an ordered copy, RemoveFront drops the delivered prefix. When the
// queue is at capacity, Enqueue evicts the oldest entry first — the producer
// never blocks and memory stays bounded.
//
// Every mutation rewrites the on-disk record file (JSON Lines, one versioned
// record per line) through a temp-file + rename, so an ungraceful kill loses
// at most the in-flight mutation. Open tolerates a missing or corrupt file:
// the readable prefix is kept and the rest discarded, so a damaged queue
// file never prevents agent startup. A failed durable write is logged and
// the queue keeps operating in memory until the next successful write.
package backlog
