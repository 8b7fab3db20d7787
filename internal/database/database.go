// Package database provides the persisted key/value store backing all
// service state. A single get/set is atomic; there are no cross-key
// transactions, and callers are expected to tolerate that.
package database

import (
	"fmt"
	"log"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/hzleung/readsync/internal/entities"
)

type Database struct {
	DB *gorm.DB
}

func NewDatabase(dbPath string) (*Database, error) {
	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := db.AutoMigrate(&entities.Setting{}); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	log.Printf("Database initialized successfully at %s", dbPath)

	return &Database{DB: db}, nil
}

func (d *Database) Close() error {
	sqlDB, err := d.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// GetSetting retrieves a setting by key.
func (d *Database) GetSetting(key string) (*entities.Setting, error) {
	var setting entities.Setting
	err := d.DB.Where("key = ?", key).First(&setting).Error
	if err != nil {
		return nil, err
	}
	return &setting, nil
}

// SetSetting creates or updates a setting.
func (d *Database) SetSetting(key, value string) error {
	var setting entities.Setting
	result := d.DB.Where("key = ?", key).First(&setting)

	if result.Error == gorm.ErrRecordNotFound {
		setting = entities.Setting{
			Key:   key,
			Value: value,
		}
		return d.DB.Create(&setting).Error
	} else if result.Error != nil {
		return result.Error
	}

	setting.Value = value
	return d.DB.Save(&setting).Error
}

// DeleteSetting removes a setting by key. Deleting a missing key is not an
// error.
func (d *Database) DeleteSetting(key string) error {
	return d.DB.Where("key = ?", key).Delete(&entities.Setting{}).Error
}

// KeysWithPrefix returns all keys starting with the given prefix.
func (d *Database) KeysWithPrefix(prefix string) ([]string, error) {
	var keys []string
	err := d.DB.Model(&entities.Setting{}).
		Where("key LIKE ?", prefix+"%").
		Pluck("key", &keys).Error
	return keys, err
}

// GetAllSettings returns the entire namespace as a flat key->value mapping.
func (d *Database) GetAllSettings() (map[string]string, error) {
	var settings []entities.Setting
	if err := d.DB.Find(&settings).Error; err != nil {
		return nil, err
	}

	all := make(map[string]string, len(settings))
	for _, s := range settings {
		all[s.Key] = s.Value
	}
	return all, nil
}

// ReplaceAllSettings swaps the entire namespace for the given mapping.
func (d *Database) ReplaceAllSettings(data map[string]string) error {
	return d.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("1 = 1").Delete(&entities.Setting{}).Error; err != nil {
			return err
		}
		for key, value := range data {
			if err := tx.Create(&entities.Setting{Key: key, Value: value}).Error; err != nil {
				return fmt.Errorf("failed to write key %s: %w", key, err)
			}
		}
		return nil
	})
}
