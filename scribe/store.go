package scribe

import (
	"context"
	"errors"
	"fmt"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"
)

// DefaultCapacity bounds the history to the N most recently processed entries.
const DefaultCapacity = 50

// HistoryStore is the content-addressed result cache. The SQLite handle is
// acquired per operation and released on every exit path, so a store value
// carries no open resources and is cheap to share.
type HistoryStore struct {
	path     string
	capacity int
	log      Logger
}

func NewHistoryStore(path string, capacity int, log Logger) *HistoryStore {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &HistoryStore{path: path, capacity: capacity, log: log}
}

// openDB opens the SQLite store, ensures the physical schema, and runs the
// logical migration when the persisted schema version is behind.
func (s *HistoryStore) openDB(ctx context.Context) (*gorm.DB, func(), error) {
	db, err := gorm.Open(sqlite.Open(s.path), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrStoreOpen, err)
	}
	release := func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}
	if err := db.AutoMigrate(&HistoryEntry{}, &SchemaInfo{}); err != nil {
		release()
		return nil, nil, fmt.Errorf("%w: automigrate: %v", ErrStoreOpen, err)
	}
	if err := migrateSchema(db, s.log); err != nil {
		release()
		return nil, nil, fmt.Errorf("%w: migrate: %v", ErrStoreOpen, err)
	}
	return db.WithContext(ctx), release, nil
}

func (s *HistoryStore) withDB(ctx context.Context, fn func(db *gorm.DB) error) error {
	db, release, err := s.openDB(ctx)
	if err != nil {
		return err
	}
	defer release()
	return fn(db)
}

// Put upserts an entry by fingerprint (total replace of any existing row)
// and then enforces the capacity bound. Eviction is best-effort cleanup:
// its failure never fails the write, and an over-capacity store left behind
// by a crash is corrected on the next write.
func (s *HistoryStore) Put(ctx context.Context, entry *HistoryEntry) error {
	if entry == nil || entry.Fingerprint == "" {
		return fmt.Errorf("%w: entry without fingerprint", ErrTransaction)
	}
	return s.withDB(ctx, func(db *gorm.DB) error {
		if err := db.Clauses(clause.OnConflict{UpdateAll: true}).Create(entry).Error; err != nil {
			return fmt.Errorf("%w: put %s: %v", ErrTransaction, entry.Fingerprint, err)
		}
		s.evict(ctx, db)
		return nil
	})
}

// evict deletes every entry beyond the capacity most recent processed_at.
func (s *HistoryStore) evict(ctx context.Context, db *gorm.DB) {
	var count int64
	if err := db.Model(&HistoryEntry{}).Count(&count).Error; err != nil {
		s.log.Warn(ctx, "evict: count failed: %v", err)
		return
	}
	if count <= int64(s.capacity) {
		return
	}
	var surplus []HistoryEntry
	err := db.Select("fingerprint").
		Order("processed_at desc").
		Limit(int(count)).
		Offset(s.capacity).
		Find(&surplus).Error
	if err != nil {
		s.log.Warn(ctx, "evict: listing surplus failed: %v", err)
		return
	}
	for _, e := range surplus {
		if err := db.Delete(&HistoryEntry{}, "fingerprint = ?", e.Fingerprint).Error; err != nil {
			s.log.Warn(ctx, "evict: delete %s failed: %v", e.Fingerprint, err)
			continue
		}
		s.log.Debug(ctx, "evicted entry %s", e.Fingerprint)
	}
}

// Get returns the normalized entry for a fingerprint, or ErrEntryNotFound.
// A record that cannot be normalized is logged and treated as absent.
func (s *HistoryStore) Get(ctx context.Context, fingerprint string) (*HistoryEntry, error) {
	var entry HistoryEntry
	err := s.withDB(ctx, func(db *gorm.DB) error {
		return db.First(&entry, "fingerprint = ?", fingerprint).Error
	})
	switch {
	case err == nil:
	case errors.Is(err, gorm.ErrRecordNotFound):
		return nil, fmt.Errorf("%w: %s", ErrEntryNotFound, fingerprint)
	case errors.Is(err, ErrStoreOpen):
		return nil, err
	default:
		return nil, fmt.Errorf("%w: get %s: %v", ErrTransaction, fingerprint, err)
	}
	if err := NormalizeEntry(&entry); err != nil {
		s.log.Warn(ctx, "get: entry %s failed normalization: %v", fingerprint, err)
		return nil, fmt.Errorf("%w: %s", ErrEntryNotFound, fingerprint)
	}
	return &entry, nil
}

// GetAll returns all entries, most recently processed first. Entries that
// fail normalization are dropped and logged so one malformed record cannot
// make the whole history invisible.
func (s *HistoryStore) GetAll(ctx context.Context) ([]HistoryEntry, error) {
	var entries []HistoryEntry
	err := s.withDB(ctx, func(db *gorm.DB) error {
		return db.Order("processed_at desc").Find(&entries).Error
	})
	if err != nil {
		if errors.Is(err, ErrStoreOpen) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: get all: %v", ErrTransaction, err)
	}
	out := make([]HistoryEntry, 0, len(entries))
	for i := range entries {
		if err := NormalizeEntry(&entries[i]); err != nil {
			s.log.Warn(ctx, "get all: dropping entry %s: %v", entries[i].Fingerprint, err)
			continue
		}
		out = append(out, entries[i])
	}
	return out, nil
}

// Delete removes one entry. Deleting an absent fingerprint is not an error.
func (s *HistoryStore) Delete(ctx context.Context, fingerprint string) error {
	err := s.withDB(ctx, func(db *gorm.DB) error {
		return db.Delete(&HistoryEntry{}, "fingerprint = ?", fingerprint).Error
	})
	if err != nil {
		if errors.Is(err, ErrStoreOpen) {
			return err
		}
		return fmt.Errorf("%w: delete %s: %v", ErrTransaction, fingerprint, err)
	}
	return nil
}

// Clear removes all entries.
func (s *HistoryStore) Clear(ctx context.Context) error {
	err := s.withDB(ctx, func(db *gorm.DB) error {
		return db.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&HistoryEntry{}).Error
	})
	if err != nil {
		if errors.Is(err, ErrStoreOpen) {
			return err
		}
		return fmt.Errorf("%w: clear: %v", ErrTransaction, err)
	}
	return nil
}

// Count returns the number of stored entries.
func (s *HistoryStore) Count(ctx context.Context) (int64, error) {
	var count int64
	err := s.withDB(ctx, func(db *gorm.DB) error {
		return db.Model(&HistoryEntry{}).Count(&count).Error
	})
	if err != nil {
		if errors.Is(err, ErrStoreOpen) {
			return 0, err
		}
		return 0, fmt.Errorf("%w: count: %v", ErrTransaction, err)
	}
	return count, nil
}

// AppendSummaryVersion adds a new summary revision to an existing entry,
// leaving prior revisions untouched, and refreshes metadata.llm_model. The
// read-modify-write runs inside one transaction, so concurrent appends to
// the same fingerprint cannot lose an update.
func (s *HistoryStore) AppendSummaryVersion(ctx context.Context, fingerprint string, summary SummaryResult, generatedAt int64) (*HistoryEntry, error) {
	var entry HistoryEntry
	err := s.withDB(ctx, func(db *gorm.DB) error {
		return db.Transaction(func(tx *gorm.DB) error {
			if err := tx.First(&entry, "fingerprint = ?", fingerprint).Error; err != nil {
				return err
			}
			if err := NormalizeEntry(&entry); err != nil {
				return err
			}
			versions, err := entry.DecodeSummaries()
			if err != nil {
				return err
			}
			versions = append(versions, SummaryVersion{
				Summary:     summary,
				GeneratedAt: generatedAt,
				Version:     len(versions) + 1,
			})
			if err := entry.SetSummaries(versions); err != nil {
				return err
			}
			meta, err := entry.DecodeMetadata()
			if err != nil {
				meta = EntryMetadata{}
			}
			meta.LLMModel = summary.LLMModel
			if err := entry.SetMetadata(meta); err != nil {
				return err
			}
			return tx.Save(&entry).Error
		})
	})
	switch {
	case err == nil:
		return &entry, nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return nil, fmt.Errorf("%w: %s", ErrEntryNotFound, fingerprint)
	case errors.Is(err, ErrStoreOpen), errors.Is(err, ErrNormalization):
		return nil, err
	default:
		return nil, fmt.Errorf("%w: append summary %s: %v", ErrTransaction, fingerprint, err)
	}
}
