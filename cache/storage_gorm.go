package cache

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/cppla/moodlog/models"
)

// GormStorage keeps durable items in the cache_items table.
type GormStorage struct {
	db  *gorm.DB
	now func() time.Time
}

// NewGormStorage uses db for the durable tier. The cache_items table must be migrated.
func NewGormStorage(db *gorm.DB) *GormStorage {
	return &GormStorage{db: db, now: time.Now}
}

func (g *GormStorage) GetItem(ctx context.Context, key string) (string, bool, error) {
	var item models.CacheItem
	err := g.db.WithContext(ctx).Where("cache_key = ?", key).First(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return item.Value, true, nil
}

func (g *GormStorage) SetItem(ctx context.Context, key, value string) error {
	item := models.CacheItem{Key: key, Value: value, UpdatedAt: g.now()}
	return g.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "cache_key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&item).Error
}

func (g *GormStorage) RemoveItem(ctx context.Context, key string) error {
	return g.db.WithContext(ctx).Where("cache_key = ?", key).Delete(&models.CacheItem{}).Error
}

func (g *GormStorage) RemovePrefix(ctx context.Context, prefix string) error {
	return g.db.WithContext(ctx).Where(likePrefixClause, likePrefix(prefix)).Delete(&models.CacheItem{}).Error
}

// Sweep deletes items under prefix last written before the cutoff and returns how many went.
func (g *GormStorage) Sweep(ctx context.Context, prefix string, before time.Time) (int64, error) {
	res := g.db.WithContext(ctx).
		Where(likePrefixClause+" AND updated_at < ?", likePrefix(prefix), before).
		Delete(&models.CacheItem{})
	return res.RowsAffected, res.Error
}

// '!' escapes LIKE wildcards; a backslash would need dialect-specific quoting.
const likePrefixClause = "cache_key LIKE ? ESCAPE '!'"

var likeEscaper = strings.NewReplacer("!", "!!", "%", "!%", "_", "!_")

func likePrefix(prefix string) string {
	return likeEscaper.Replace(prefix) + "%"
}
