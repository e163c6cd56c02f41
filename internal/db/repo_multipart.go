package db

import (
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

func (db *DB) CreateUpload(uploadID string, bucketID uint, key, contentType string) error {
	return db.DB.Omit(clause.Associations).Create(&MultipartUpload{
		UploadID: uploadID, BucketID: bucketID, Key: key, ContentType: contentType,
	}).Error
}

func (db *DB) FindUploadTx(tx *gorm.DB, uploadID string) (*MultipartUpload, error) {
	var u MultipartUpload
	if err := tx.Where("upload_id = ?", uploadID).Take(&u).Error; err != nil {
		return nil, notFound(err)
	}
	return &u, nil
}

// PutPartTx records a part and returns the blob of the part it replaced, if any.
func (db *DB) PutPartTx(tx *gorm.DB, p MultipartPart) (replaced string, err error) {
	var prev MultipartPart
	err = tx.Where("upload_id = ? AND part_number = ?", p.UploadID, p.PartNumber).Take(&prev).Error
	switch notFound(err) {
	case nil:
		replaced = prev.BlobID
	case ErrNotFound:
	default:
		return "", err
	}
	err = tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "upload_id"}, {Name: "part_number"}},
		DoUpdates: clause.AssignmentColumns([]string{"blob_id", "size", "e_tag"}),
	}).Omit(clause.Associations).Create(&p).Error
	return replaced, err
}

func (db *DB) ListPartsTx(tx *gorm.DB, uploadID string) ([]MultipartPart, error) {
	var parts []MultipartPart
	err := tx.Where("upload_id = ?", uploadID).Order("part_number ASC").Find(&parts).Error
	return parts, err
}

// DeleteUploadTx drops the upload and its parts, returning the part blobs.
func (db *DB) DeleteUploadTx(tx *gorm.DB, uploadID string) ([]string, error) {
	parts, err := db.ListPartsTx(tx, uploadID)
	if err != nil {
		return nil, err
	}
	if err := tx.Where("upload_id = ?", uploadID).Delete(&MultipartPart{}).Error; err != nil {
		return nil, err
	}
	if err := tx.Where("upload_id = ?", uploadID).Delete(&MultipartUpload{}).Error; err != nil {
		return nil, err
	}
	blobs := make([]string, 0, len(parts))
	for _, p := range parts {
		blobs = append(blobs, p.BlobID)
	}
	return blobs, nil
}

func (db *DB) ListUploadIDs(bucketID uint, key string) ([]string, error) {
	var ids []string
	err := db.DB.Model(&MultipartUpload{}).
		Where("bucket_id = ? AND object_key = ?", bucketID, key).
		Order("created_at ASC").
		Pluck("upload_id", &ids).Error
	return ids, err
}
