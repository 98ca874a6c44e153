// Package progress carries run, instance, and fetch milestones from the search
// loop to pluggable sinks. Emitters never block: a Hub buffers events, batches
// them on a background goroutine, and drops on overflow.
package progress
