package db

import (
	"crypto/rand"
	"encoding/hex"
	"errors"

	"gorm.io/gorm"
)

var ErrNotFound = errors.New("not found")

func genHex(n int) string {
	b := make([]byte, n)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}

func (db *DB) GenBlobID() string { return genHex(20) } // 40 hex

func (db *DB) WithTx(fn func(tx *gorm.DB) error) error {
	return db.DB.Transaction(func(tx *gorm.DB) error { return fn(tx) })
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}
