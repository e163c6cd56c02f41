package db

import (
	"gorm.io/gorm"
)

// EnsureBucket finds or creates the named bucket.
func (db *DB) EnsureBucket(name string) (uint, error) {
	b := Bucket{Name: name}
	if err := db.DB.Where("name = ?", name).FirstOrCreate(&b).Error; err != nil {
		return 0, err
	}
	return b.ID, nil
}

func (db *DB) BucketByName(tx *gorm.DB, name string) (*Bucket, error) {
	var b Bucket
	if err := tx.Where("name = ?", name).Take(&b).Error; err != nil {
		return nil, notFound(err)
	}
	return &b, nil
}

func (db *DB) SetBucketACL(bucketID uint, acl string) error {
	return db.DB.Model(&Bucket{}).Where("id = ?", bucketID).Update("acl", acl).Error
}
