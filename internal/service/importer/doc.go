// Package importer loads roster exports in bulk.
//
// Rows reference each other through their external row number, so an
// import runs in two passes: every row is inserted without relationships
// and its new id recorded in a per-run map, then relationships are written
// for the references that resolved. References to rows that were absent or
// failed to insert are dropped and only listed in the report.
package importer
