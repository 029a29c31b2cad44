package scribe

import (
	"context"
	"errors"

	"gorm.io/gorm"
)

// schemaVersion is the expected logical schema version. v1 stored a single
// summary per entry; v2 stores an ordered list of summary versions.
const schemaVersion = 2

// SchemaInfo is the single-row table gating open-time migration.
type SchemaInfo struct {
	ID      uint `gorm:"primaryKey"`
	Version int
}

// migrateSchema brings the store up to schemaVersion. Forward-only and
// idempotent: re-running against rows already migrated is a no-op, and a
// failure on one row never aborts migration of the rest.
func migrateSchema(db *gorm.DB, log Logger) error {
	var info SchemaInfo
	err := db.First(&info).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		var n int64
		if err := db.Model(&HistoryEntry{}).Count(&n).Error; err != nil {
			return err
		}
		if n > 0 {
			// Entries exist but no version row: a pre-versioning store.
			// Run the full upgrade before stamping the current version.
			migrateLegacySummaries(db, log)
		}
		return db.Create(&SchemaInfo{Version: schemaVersion}).Error
	}
	if err != nil {
		return err
	}
	if info.Version >= schemaVersion {
		return nil
	}
	if info.Version < 2 {
		migrateLegacySummaries(db, log)
	}
	info.Version = schemaVersion
	return db.Save(&info).Error
}

// migrateLegacySummaries rewrites every v1 row: the singular summary becomes
// a one-element versions list (version 1, generated_at = processed_at), and
// the legacy column is emptied. Rows that already carry a summaries list are
// left alone; rows that fail to convert are logged and skipped.
func migrateLegacySummaries(db *gorm.DB, log Logger) {
	ctx := context.Background()
	var entries []HistoryEntry
	if err := db.Find(&entries).Error; err != nil {
		log.Warn(ctx, "migrate: listing entries failed: %v", err)
		return
	}
	for i := range entries {
		e := &entries[i]
		if e.SummariesJSON != "" {
			continue
		}
		if err := NormalizeEntry(e); err != nil {
			log.Warn(ctx, "migrate: skipping entry %s: %v", e.Fingerprint, err)
			continue
		}
		err := db.Model(&HistoryEntry{}).
			Where("fingerprint = ?", e.Fingerprint).
			Updates(map[string]any{"summaries_json": e.SummariesJSON, "summary_json": ""}).Error
		if err != nil {
			log.Warn(ctx, "migrate: updating entry %s failed: %v", e.Fingerprint, err)
		}
	}
}
