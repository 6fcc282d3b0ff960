// Package sqlstore implements the roster, notification log and settings
// repositories on database/sql.
//
// Two dialects are supported: PostgreSQL through lib/pq for shared
// deployments and SQLite through ncruces/go-sqlite3 for a single-file
// install. Queries are written with '?' placeholders and rebound for
// PostgreSQL. Timestamps are always generated in Go so both dialects store
// the same values.
package sqlstore
