package gormstore

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"fincore/internal/pkg/jsonutil"
	"fincore/internal/schema"
	"fincore/internal/store"
	storemodel "fincore/internal/store/model"
)

type cachedResponseModel = storemodel.CachedResponseModel
type streamEventModel = storemodel.StreamEventModel

// MemoryPath opens a private in-memory database.
const MemoryPath = ":memory:"

const defaultStreamCap = 10000

// GormStore is the sqlite-backed response cache and stream log.
type GormStore struct {
	db        *gorm.DB
	streamCap int
	now       func() time.Time
}

var (
	_ store.ResponseCache = (*GormStore)(nil)
	_ store.StreamLog     = (*GormStore)(nil)
)

// NewGormStore opens or creates the database at path. streamCap bounds the
// rows kept per stream client; non-positive means the default.
func NewGormStore(path string, streamCap int) (*GormStore, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("gorm store: path is required")
	}
	var dsn string
	if path == MemoryPath {
		dsn = fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	} else {
		if err := ensureDir(path); err != nil {
			return nil, err
		}
		dsn = fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&cache=shared", path)
	}
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:                                   logger.Default.LogMode(logger.Silent),
		DisableForeignKeyConstraintWhenMigrating: true,
	})
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(&cachedResponseModel{}, &streamEventModel{}); err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	// SQLite + WAL: a little read parallelism, low lock contention.
	sqlDB.SetMaxOpenConns(2)
	sqlDB.SetMaxIdleConns(2)
	if streamCap <= 0 {
		streamCap = defaultStreamCap
	}
	return &GormStore{db: db, streamCap: streamCap, now: time.Now}, nil
}

func (s *GormStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// SQLDB exposes the underlying *sql.DB for shared connections.
func (s *GormStore) SQLDB() (*sql.DB, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("gorm store not initialized")
	}
	return s.db.DB()
}

// --------------------- ResponseCache -------------------------

func (s *GormStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if s == nil || s.db == nil {
		return nil, false, fmt.Errorf("gorm store not initialized")
	}
	var m cachedResponseModel
	res := s.db.WithContext(ctx).Where("cache_key = ?", key).Limit(1).Find(&m)
	if res.Error != nil {
		return nil, false, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, false, nil
	}
	if m.ExpiresAtUnix > 0 && s.now().Unix() >= m.ExpiresAtUnix {
		if err := s.db.WithContext(ctx).Where("cache_key = ?", key).Delete(&cachedResponseModel{}).Error; err != nil {
			return nil, false, err
		}
		return nil, false, nil
	}
	return m.Body, true, nil
}

func (s *GormStore) Put(ctx context.Context, key string, body []byte, ttl time.Duration) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("gorm store not initialized")
	}
	now := s.now()
	m := cachedResponseModel{Key: key, Body: body, CreatedAtUnix: now.Unix()}
	if ttl > 0 {
		m.ExpiresAtUnix = now.Add(ttl).Unix()
	}
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "cache_key"}},
			DoUpdates: clause.AssignmentColumns([]string{"body", "expires_at", "created_at"}),
		}).
		Create(&m).Error
}

func (s *GormStore) Purge(ctx context.Context) error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.WithContext(ctx).Where("1 = 1").Delete(&cachedResponseModel{}).Error
}

// PurgeExpired drops entries whose TTL has elapsed.
func (s *GormStore) PurgeExpired(ctx context.Context) (int64, error) {
	if s == nil || s.db == nil {
		return 0, nil
	}
	res := s.db.WithContext(ctx).
		Where("expires_at > 0 AND expires_at <= ?", s.now().Unix()).
		Delete(&cachedResponseModel{})
	return res.RowsAffected, res.Error
}

// --------------------- StreamLog -------------------------

// Append stores rows for clientID, then trims the client's log to the cap.
func (s *GormStore) Append(ctx context.Context, clientID, standard string, rows []schema.Record) error {
	if s == nil || s.db == nil || len(rows) == 0 {
		return nil
	}
	now := s.now().UnixMilli()
	models := make([]streamEventModel, 0, len(rows))
	for _, row := range rows {
		raw, err := jsonutil.Marshal(row)
		if err != nil {
			return fmt.Errorf("stream log: encode row: %w", err)
		}
		models = append(models, streamEventModel{
			ClientID:      clientID,
			Standard:      standard,
			RowJSON:       datatypes.JSON(raw),
			CreatedAtUnix: now,
		})
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&models).Error; err != nil {
			return err
		}
		keep := tx.Model(&streamEventModel{}).
			Select("id").
			Where("client_id = ?", clientID).
			Order("id DESC").
			Limit(s.streamCap)
		return tx.Where("client_id = ? AND id NOT IN (?)", clientID, keep).
			Delete(&streamEventModel{}).Error
	})
}

// List returns the client's most recent rows, oldest first.
func (s *GormStore) List(ctx context.Context, clientID string, limit int) ([]store.StreamEvent, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("gorm store not initialized")
	}
	if limit <= 0 {
		limit = s.streamCap
	}
	var models []streamEventModel
	if err := s.db.WithContext(ctx).
		Where("client_id = ?", clientID).
		Order("id DESC").
		Limit(limit).
		Find(&models).Error; err != nil {
		return nil, err
	}
	out := make([]store.StreamEvent, len(models))
	for i, m := range models {
		var row schema.Record
		if err := jsonutil.Unmarshal(m.RowJSON, &row); err != nil {
			return nil, fmt.Errorf("stream log: decode row %d: %w", m.ID, err)
		}
		out[len(models)-1-i] = store.StreamEvent{
			ClientID:  m.ClientID,
			Standard:  m.Standard,
			Row:       row,
			CreatedAt: time.UnixMilli(m.CreatedAtUnix),
		}
	}
	return out, nil
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "" || dir == "." {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}
