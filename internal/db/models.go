package db

import "time"

// Bucket is one row per name.
type Bucket struct {
	ID        uint      `gorm:"primaryKey"`
	Name      string    `gorm:"uniqueIndex;size:255;not null"`
	ACL       string    `gorm:"size:32;default:private"` // grant for the AllUsers group
	CreatedAt time.Time `gorm:"autoCreateTime"`
}

// Blob records bytes held by the storage driver.
type Blob struct {
	ID        string    `gorm:"primaryKey;size:64"`
	Size      int64     `gorm:"not null"`
	Checksum  string    `gorm:"size:80"` // "sha256:...."
	CreatedAt time.Time `gorm:"autoCreateTime"`
}

// Object is a logical key; it points at exactly one Blob
type Object struct {
	ID          uint      `gorm:"primaryKey"`
	BucketID    uint      `gorm:"uniqueIndex:ux_bucket_key,priority:1;not null"`
	Key         string    `gorm:"column:object_key;uniqueIndex:ux_bucket_key,priority:2;size:2048;not null"`
	BlobID      string    `gorm:"size:64;not null"`
	Size        int64     `gorm:"not null"`
	ETag        string    `gorm:"size:96;not null"`
	ContentType string    `gorm:"size:255"`
	ACL         string    `gorm:"size:32"`
	CreatedAt   time.Time `gorm:"autoCreateTime"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime"`

	Bucket Bucket `gorm:"foreignKey:BucketID;constraint:OnDelete:CASCADE"`
}

// MultipartUpload is an open session assembling a new version of Key
type MultipartUpload struct {
	UploadID    string    `gorm:"primaryKey;size:64"`
	BucketID    uint      `gorm:"not null"`
	Key         string    `gorm:"column:object_key;size:2048;not null"`
	ContentType string    `gorm:"size:255"`
	CreatedAt   time.Time `gorm:"autoCreateTime"`

	Bucket Bucket `gorm:"foreignKey:BucketID;constraint:OnDelete:CASCADE"`
}

// MultipartPart is one uploaded or copied part. Re-uploading a number replaces it
type MultipartPart struct {
	UploadID   string    `gorm:"primaryKey;size:64"`
	PartNumber int32     `gorm:"primaryKey;autoIncrement:false"`
	BlobID     string    `gorm:"size:64;not null"`
	Size       int64     `gorm:"not null"`
	ETag       string    `gorm:"size:96;not null"`
	CreatedAt  time.Time `gorm:"autoCreateTime"`

	Upload MultipartUpload `gorm:"foreignKey:UploadID;references:UploadID;constraint:OnDelete:CASCADE"`
}
