// Package database provides the PostgreSQL connection pool for the catch log.
//
// The catch log is optional: when database.enabled is false no pool is
// created and fishing sessions live only in memory.
package database
