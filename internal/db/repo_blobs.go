package db

import (
	"time"

	"gorm.io/gorm"
)

type GCBlob struct {
	ID   string
	Size int64
}

func (db *DB) CreateBlobTx(tx *gorm.DB, id string, size int64, checksum string) error {
	return tx.Create(&Blob{ID: id, Size: size, Checksum: checksum}).Error
}

func (db *DB) DeleteBlobRecordTx(tx *gorm.DB, id string) error {
	return tx.Delete(&Blob{ID: id}).Error
}

// BlobsForGC returns up to limit blobs no object or pending part refers to
// and that are older than minAge.
func (db *DB) BlobsForGC(limit int, minAge time.Duration) ([]GCBlob, error) {
	var rows []GCBlob
	err := db.DB.Raw(`
		SELECT b.id, b.size
		FROM blobs b
		LEFT JOIN objects o ON o.blob_id = b.id
		LEFT JOIN multipart_parts p ON p.blob_id = b.id
		WHERE o.blob_id IS NULL AND p.blob_id IS NULL AND b.created_at < ?
		LIMIT ?
	`, time.Now().Add(-minAge), limit).Scan(&rows).Error
	return rows, err
}
