package models

import "time"

// CacheItem backs the durable key-value tier when Redis is not used.
type CacheItem struct {
	Key       string    `gorm:"column:cache_key;primaryKey;size:191" json:"key"`
	Value     string    `gorm:"type:text;not null" json:"value"`
	UpdatedAt time.Time `gorm:"index" json:"updated_at"`
}

// TableName pins the table name.
func (CacheItem) TableName() string { return "cache_items" }

// All lists every model the schema migration manages.
func All() []interface{} {
	return []interface{}{&User{}, &MoodEntry{}, &DetailedMoodEntry{}, &CacheItem{}}
}
