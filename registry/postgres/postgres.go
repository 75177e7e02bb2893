// Package postgres is the optional persistent registry.Registry backing,
// grounded on the teacher's db/postgres.go gorm.Open/AutoMigrate/
// connection-pool pattern. Field configs and entity types are tagged
// unions (spec.md §9 "Polymorphic tagged unions"); rather than modeling
// every variant as its own table, each row stores its payload as a JSON
// column, the same "structured blob behind a typed wrapper row" shape
// the teacher uses for RabbitLog.Log.
package postgres

import (
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"rulesengine/registry"
	"rulesengine/rule"
)

// fieldConfigRow is the GORM-mapped row backing one rule.FieldConfig.
type fieldConfigRow struct {
	gorm.Model
	FieldName string `gorm:"uniqueIndex"`
	Payload   []byte `gorm:"type:text"`
}

// entityTypeRow is the GORM-mapped row backing one rule.EntityType.
type entityTypeRow struct {
	gorm.Model
	TypeName string `gorm:"uniqueIndex"`
	Payload  []byte `gorm:"type:text"`
}

// Registry is a gorm/PostgreSQL-backed registry.Registry.
type Registry struct {
	db *gorm.DB
}

// Open connects to dsn and runs AutoMigrate for the registry tables,
// configuring the connection pool per maxConnections/timeout.
func Open(dsn string, maxConnections int, timeout time.Duration) (*Registry, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("connecting to registry database: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("obtaining underlying sql.DB: %w", err)
	}
	sqlDB.SetMaxOpenConns(maxConnections)
	sqlDB.SetMaxIdleConns(maxConnections / 2)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := db.AutoMigrate(&fieldConfigRow{}, &entityTypeRow{}); err != nil {
		return nil, fmt.Errorf("migrating registry schema: %w", err)
	}
	return &Registry{db: db}, nil
}

// RegisterField upserts a field configuration.
func (r *Registry) RegisterField(cfg rule.FieldConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	payload, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling field config %q: %w", cfg.FieldName, err)
	}
	row := fieldConfigRow{FieldName: cfg.FieldName, Payload: payload}
	return r.db.Where(fieldConfigRow{FieldName: cfg.FieldName}).
		Assign(fieldConfigRow{Payload: payload}).
		FirstOrCreate(&row).Error
}

// RegisterEntityType upserts an entity type.
func (r *Registry) RegisterEntityType(et rule.EntityType) error {
	payload, err := json.Marshal(et)
	if err != nil {
		return fmt.Errorf("marshaling entity type %q: %w", et.TypeName, err)
	}
	row := entityTypeRow{TypeName: et.TypeName, Payload: payload}
	return r.db.Where(entityTypeRow{TypeName: et.TypeName}).
		Assign(entityTypeRow{Payload: payload}).
		FirstOrCreate(&row).Error
}

// FindFieldConfigsByName implements registry.FieldConfigRegistry.
func (r *Registry) FindFieldConfigsByName(names []string) ([]rule.FieldConfigSnapshot, error) {
	if len(names) == 0 {
		return nil, nil
	}
	var rows []fieldConfigRow
	if err := r.db.Where("field_name IN ?", names).Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]rule.FieldConfigSnapshot, 0, len(rows))
	for _, row := range rows {
		var cfg rule.FieldConfig
		if err := json.Unmarshal(row.Payload, &cfg); err != nil {
			return nil, fmt.Errorf("decoding field config %q: %w", row.FieldName, err)
		}
		out = append(out, cfg)
	}
	return out, nil
}

// FindFieldConfig implements registry.FieldConfigRegistry.
func (r *Registry) FindFieldConfig(name string) (*rule.FieldConfigSnapshot, error) {
	var row fieldConfigRow
	err := r.db.Where("field_name = ?", name).First(&row).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var cfg rule.FieldConfig
	if err := json.Unmarshal(row.Payload, &cfg); err != nil {
		return nil, fmt.Errorf("decoding field config %q: %w", name, err)
	}
	return &cfg, nil
}

// ExistsFieldName implements registry.FieldConfigRegistry.
func (r *Registry) ExistsFieldName(name string) (bool, error) {
	var count int64
	err := r.db.Model(&fieldConfigRow{}).Where("field_name = ?", name).Count(&count).Error
	return count > 0, err
}

// FindEntityType implements registry.EntityTypeRegistry.
func (r *Registry) FindEntityType(typeName string) (*rule.EntityTypeSnapshot, error) {
	var row entityTypeRow
	err := r.db.Where("type_name = ?", typeName).First(&row).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var et rule.EntityType
	if err := json.Unmarshal(row.Payload, &et); err != nil {
		return nil, fmt.Errorf("decoding entity type %q: %w", typeName, err)
	}
	return &et, nil
}

var _ registry.Registry = (*Registry)(nil)
