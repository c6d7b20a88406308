// Package recordingdb indexes DVTool captures written by the recorder
// flow (C11) in a local SQLite database, so the player and other tools can
// look a capture up by stream id or source reflector instead of scanning
// the filesystem. Uses gorm over modernc.org/sqlite (pure Go, no cgo).
package recordingdb

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	_ "modernc.org/sqlite"

	"dstar-toolkit/pkg/logger"
)

// Recording is one flushed DVTool capture: a complete stream from header
// to its last frame.
type Recording struct {
	ID              uint `gorm:"primarykey"`
	StreamID        uint16 `gorm:"index"`
	SourceReflector string `gorm:"index"`
	PeerCallsign    string
	FilePath        string
	FrameCount      int
	RecordedAt      time.Time `gorm:"index"`
}

// DB wraps the GORM connection to the recordings index.
type DB struct {
	db  *gorm.DB
	log *logger.Logger
}

// Config holds the recordings database's settings.
type Config struct {
	Path string // path to the SQLite file; defaults to "recordings.db"
}

// Open creates or migrates the recordings database at cfg.Path.
func Open(cfg Config, log *logger.Logger) (*DB, error) {
	if cfg.Path == "" {
		cfg.Path = "recordings.db"
	}

	dir := filepath.Dir(cfg.Path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("recordingdb: create directory %s: %w", dir, err)
		}
	}

	gormLog := gormlogger.New(
		&gormLogAdapter{log: log},
		gormlogger.Config{
			SlowThreshold:             200 * time.Millisecond,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)

	dialector := sqlite.Dialector{DriverName: "sqlite", DSN: cfg.Path}
	gdb, err := gorm.Open(dialector, &gorm.Config{Logger: gormLog})
	if err != nil {
		return nil, fmt.Errorf("recordingdb: open %s: %w", cfg.Path, err)
	}

	sqlDB, err := gdb.DB()
	if err != nil {
		return nil, fmt.Errorf("recordingdb: underlying *sql.DB: %w", err)
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
	} {
		if _, err := sqlDB.Exec(pragma); err != nil {
			return nil, fmt.Errorf("recordingdb: %s: %w", pragma, err)
		}
	}

	if err := gdb.AutoMigrate(&Recording{}); err != nil {
		return nil, fmt.Errorf("recordingdb: migrate: %w", err)
	}

	log.Info("recordings index ready", logger.String("path", cfg.Path))

	return &DB{db: gdb, log: log}, nil
}

// Close releases the underlying SQLite connection.
func (d *DB) Close() error {
	sqlDB, err := d.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Record inserts a row for a freshly flushed capture.
func (d *DB) Record(r *Recording) error {
	return d.db.Create(r).Error
}

// ByStreamID returns captures matching streamID, most recent first.
func (d *DB) ByStreamID(streamID uint16) ([]Recording, error) {
	var out []Recording
	err := d.db.Where("stream_id = ?", streamID).Order("recorded_at DESC").Find(&out).Error
	return out, err
}

// ByReflector returns the most recent captures from a given reflector
// callsign, newest first, bounded by limit.
func (d *DB) ByReflector(reflector string, limit int) ([]Recording, error) {
	var out []Recording
	err := d.db.Where("source_reflector = ?", reflector).
		Order("recorded_at DESC").
		Limit(limit).
		Find(&out).Error
	return out, err
}

// Recent returns the most recently flushed captures, newest first.
func (d *DB) Recent(limit int) ([]Recording, error) {
	var out []Recording
	err := d.db.Order("recorded_at DESC").Limit(limit).Find(&out).Error
	return out, err
}

// gormLogAdapter bridges gorm's logger.Writer interface onto pkg/logger.
type gormLogAdapter struct {
	log *logger.Logger
}

func (l *gormLogAdapter) Printf(format string, args ...interface{}) {
	l.log.Info(fmt.Sprintf(format, args...))
}
