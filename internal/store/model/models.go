package model

import (
	"time"

	"gorm.io/datatypes"
)

// CachedResponseModel is one cached vendor response body.
type CachedResponseModel struct {
	Key           string `gorm:"column:cache_key;primaryKey"`
	Body          []byte `gorm:"column:body"`
	ExpiresAtUnix int64  `gorm:"column:expires_at;index"`
	CreatedAtUnix int64  `gorm:"column:created_at"`

	CreatedAt time.Time `gorm:"-"`
}

func (CachedResponseModel) TableName() string { return "response_cache" }

// StreamEventModel is one stream row as JSON.
type StreamEventModel struct {
	ID            int64          `gorm:"column:id;primaryKey;autoIncrement"`
	ClientID      string         `gorm:"column:client_id;index:idx_stream_client,priority:1"`
	Standard      string         `gorm:"column:standard"`
	RowJSON       datatypes.JSON `gorm:"column:row_json;type:TEXT"`
	CreatedAtUnix int64          `gorm:"column:created_at;index:idx_stream_client,priority:2"`

	CreatedAt time.Time `gorm:"-"`
}

func (StreamEventModel) TableName() string { return "stream_events" }
