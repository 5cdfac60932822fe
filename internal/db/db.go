package db

import (
	"log"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"haven/internal/config"
	"haven/internal/knowledge"
	"haven/internal/memory"
)

var DB *gorm.DB

func Init(cfg *config.Config) error {
	db, err := gorm.Open(postgres.Open(cfg.Postgres.DSN), &gorm.Config{})
	if err != nil {
		return err
	}

	// Auto-migrate memory models
	if err := db.AutoMigrate(&memory.Record{}, &memory.Conversation{}, &memory.Profile{}); err != nil {
		return err
	}

	// Auto-migrate knowledge base and vector ledger
	if err := db.AutoMigrate(&knowledge.Item{}, &memory.VectorRef{}); err != nil {
		return err
	}

	DB = db
	log.Printf("Database connected and migrated")
	return nil
}
