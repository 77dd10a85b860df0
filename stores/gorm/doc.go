// Package gorm provides a GORM-backed secretshare.UserStore. It supports any
// database GORM supports; cmd/secretshare wires it to PostgreSQL.
//
// # Database Schema
//
// The package auto-migrates a single users table. username_key, google_id and
// facebook_id are nullable unique columns, so each is an alternative key onto
// the same row space and an unset key never collides with another.
//
// # Usage
//
//	db, _ := gorm.Open(postgres.Open(dsn), &gorm.Config{})
//	_ = gormstore.AutoMigrate(db)
//	userStore := gormstore.NewUserStore(db)
package gorm
