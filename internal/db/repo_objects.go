package db

import (
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ObjectMeta struct {
	BlobID      string
	Size        int64
	ETag        string
	ContentType string
	ACL         string
}

func (db *DB) FindObjectTx(tx *gorm.DB, bucketID uint, key string) (*ObjectMeta, error) {
	var o Object
	if err := tx.Where("bucket_id = ? AND object_key = ?", bucketID, key).Take(&o).Error; err != nil {
		return nil, notFound(err)
	}
	return &ObjectMeta{
		BlobID: o.BlobID, Size: o.Size, ETag: o.ETag, ContentType: o.ContentType, ACL: o.ACL,
	}, nil
}

func (db *DB) FindObject(bucketID uint, key string) (*ObjectMeta, error) {
	return db.FindObjectTx(db.DB, bucketID, key)
}

// UpsertObjectTx points key at blobID and returns the blob it replaced, if any.
func (db *DB) UpsertObjectTx(tx *gorm.DB, bucketID uint, key, blobID string, size int64, etag, contentType string) (replaced string, err error) {
	if prev, err := db.FindObjectTx(tx, bucketID, key); err == nil {
		replaced = prev.BlobID
	} else if !errors.Is(err, ErrNotFound) {
		return "", err
	}
	obj := Object{
		BucketID: bucketID, Key: key,
		BlobID: blobID, Size: size, ETag: etag, ContentType: contentType,
	}
	err = tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "bucket_id"}, {Name: "object_key"}},
		DoUpdates: clause.AssignmentColumns([]string{"blob_id", "size", "e_tag", "content_type", "updated_at"}),
	}).Omit(clause.Associations).Create(&obj).Error
	return replaced, err
}

// DeleteObjectTx removes key and returns its blob; ErrNotFound when absent.
func (db *DB) DeleteObjectTx(tx *gorm.DB, bucketID uint, key string) (string, error) {
	prev, err := db.FindObjectTx(tx, bucketID, key)
	if err != nil {
		return "", err
	}
	if err := tx.Where("bucket_id = ? AND object_key = ?", bucketID, key).Delete(&Object{}).Error; err != nil {
		return "", err
	}
	return prev.BlobID, nil
}

func (db *DB) SetObjectACL(bucketID uint, key, acl string) error {
	res := db.DB.Model(&Object{}).Where("bucket_id = ? AND object_key = ?", bucketID, key).Update("acl", acl)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
