// Package workflow drives the pipeline: it polls the queue for runnable
// jobs, leases them to a worker pool, executes the owning stage through
// the executor, and applies the outcome with the store's compare-and-swap
// operations. Every mutation goes through a lease, so a crashed or stalled
// worker simply loses its claim and another picks the job up after the
// lease expires.
package workflow
