// Package driver implements a connection and cursor layer over a
// pluggable SQL engine. A Connection owns one physical engine connection;
// any number of cursors share it, and all statement execution funnels through
// a single serialized pipeline. Transaction boundaries are inferred from the
// configured autocommit mode and isolation level unless the caller manages
// them explicitly.
package driver

// Version is the driver version, process-wide and immutable.
const Version = "0.1.0"
