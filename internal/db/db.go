package db

import (
	"fmt"

	"gorm.io/gorm"
)

type DB struct {
	*gorm.DB
}

func New(gormDB *gorm.DB) *DB { return &DB{gormDB} }

func (db *DB) AutoMigrate() error {
	if err := db.DB.AutoMigrate(&Bucket{}, &Blob{}, &Object{}, &MultipartUpload{}, &MultipartPart{}); err != nil {
		return err
	}
	return db.ensureIndexes()
}

func (db *DB) ensureIndexes() error {
	stmts := []string{
		// --- blobs ---
		`CREATE INDEX IF NOT EXISTS ix_blobs_created ON blobs (created_at)`,

		// --- objects ---
		`CREATE INDEX IF NOT EXISTS ix_objects_blob ON objects (blob_id)`,

		// --- multipart ---
		`CREATE INDEX IF NOT EXISTS ix_mpu_bucket_key ON multipart_uploads (bucket_id, object_key)`,
		`CREATE INDEX IF NOT EXISTS ix_mpp_blob ON multipart_parts (blob_id)`,
	}

	for i, s := range stmts {
		if err := db.DB.Exec(s).Error; err != nil {
			return fmt.Errorf("ensureIndexes step %d failed: %w", i, err)
		}
	}
	return nil
}

// DSN enables WAL, foreign keys and a busy timeout for the pure-Go driver.
func (db *DB) DSN(path string) string {
	return fmt.Sprintf("%s?_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)", path)
}

func (db *DB) Close() error {
	sqlDB, err := db.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
