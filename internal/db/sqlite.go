package db

import (
	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func OpenSQLite(path string) (*DB, error) {
	g, err := gorm.Open(sqlite.Open((&DB{}).DSN(path)), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, err
	}
	sqlDB, err := g.DB()
	if err != nil {
		return nil, err
	}
	// sqlite allows a single writer; one connection keeps transactions serial
	sqlDB.SetMaxOpenConns(1)

	db := New(g)
	if err := db.AutoMigrate(); err != nil {
		_ = sqlDB.Close()
		return nil, err
	}
	return db, nil
}
