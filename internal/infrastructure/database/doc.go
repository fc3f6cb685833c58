// Package database provides SQLite connectivity for the beamline core.
//
// The database holds the connection journal written after each batch
// connect and the per-directory collection counters used by the SQLite
// directory service. Neither is device state: devices are always
// rebuilt from their factories.
//
// This package manages:
//   - Connection setup with WAL mode and a busy timeout
//   - Schema migrations embedded into the binary (see package migrations)
//   - Transaction helpers
//
// Usage:
//
//	db, err := database.Open(ctx, database.FromConfig(cfg.Database))
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx); err != nil {
//	    return err
//	}
//
// Migration files are named YYYYMMDD_HHMMSS_description.up.sql with an
// optional matching .down.sql. Migrations are additive: new columns must
// be nullable or carry a default.
package database
