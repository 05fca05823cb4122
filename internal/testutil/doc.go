// Package testutil contains helper builders used across tests to reduce
// boilerplate when constructing candidates, snapshots and tasks. They are
// not intended for production usage.
package testutil
