// Package stores provides the SQLite run journal. Every apply records the
// run, the target tokens it was given and the outcome of each work item on
// each host, so operators can review what frycooker did after the fact. The
// journal is never consulted to decide what to apply.
package stores
