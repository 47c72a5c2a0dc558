// Package db provides the embedded database schema and the seed course catalog.
package db

import _ "embed"

// Schema contains the DDL statements for all application tables.
//
//go:embed migrations/001_schema.sql
var Schema string

// SeedCourses is the built-in course catalog in JSON form. It backs the static
// catalog source and is what cmd/seed-db writes into PostgreSQL.
//
//go:embed seed/courses.json
var SeedCourses []byte
