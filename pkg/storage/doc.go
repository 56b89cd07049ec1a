// Package storage persists check results in a relational issue store.
//
// # Tables
//
// Two tables are created on first use:
//
//	entities(guid_obfuscated PK, guid, name, project, type, file, classification, creation_date)
//	issues(creation_date, guid, description, issue_type, property_set, attribute, value, project, file)
//
// GUIDs are written through ObfuscateGUID, which puts a zero-width space
// after every upper-case letter. Spreadsheet tools compare text case
// insensitively and would otherwise merge distinct IFC GUIDs.
//
// # Writing
//
// Store.WriteFile handles one checked file in one transaction. It first
// deletes the issues of the same project, file and creation date, so running
// a check twice on one day replaces the earlier rows. Every entity and issue
// row is then inserted inside its own SAVEPOINT; a row that fails is rolled
// back, logged and counted in WriteStats.Failed. An entity whose GUID was
// already stored for a different file on the same creation date is not
// inserted and produces a GUID_COLLISION issue instead. Entities from
// earlier dates are taken over by the new file.
//
// # Backends
//
// Open selects the driver from Config: "sqlite3" (default; an empty Path
// creates a temporary database file) or "postgres". CachedStore puts a redis
// cache in front of IssueCounts.
//
// # Usage
//
//	store, err := storage.Open(ctx, storage.DefaultConfig(), storage.WithLogger(logger))
//	if err != nil {
//		return err
//	}
//	defer store.Close()
//
//	stats, err := store.WriteFile(ctx, storage.FileBatch{
//		Project:  "Neubau",
//		File:     "Haus.ifc",
//		Entities: entities,
//		Issues:   issues,
//	})
package storage
