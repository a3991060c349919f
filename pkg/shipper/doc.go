// Package shipper is the asynchronous submission pipeline behind the statsd
// client.
//
// Ship() is non-blocking: a formatted line is appended to a bounded FIFO
// queue, or dropped when the queue is full. A single worker, started by New
// through an injectable Spawner, is the only consumer. It takes lines with a
// bounded wait (PollTimeout), sends each through the Transport and flushes the
// Transport once the queue is observed empty, so a burst of lines costs one
// flush.
//
// Stop() requests shutdown, lets the worker drain everything already queued
// and waits at most StopGrace for it to exit. The Transport is closed on
// every path out of Stop, including a timeout.
//
// Failures never reach the caller of Ship or Stop. Send, flush, close and
// shutdown-timeout failures go to the configured ErrorHandler (a no-op by
// default); queue overflow is only counted.
package shipper
