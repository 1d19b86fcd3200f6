package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

var ErrSettingsNotFound = errors.New("settings not found")

// Settings is the single-row application configuration shared by the
// sender and receiver commands. Command-line flags override individual
// fields at startup without touching the stored values.
type Settings struct {
	ReceiverHost      string
	ReceiverPort      int
	ListenHost        string
	ListenPort        int
	PollingRate       int
	DeadZone          float64
	RetryInterval     time.Duration
	MaxRetryAttempts  int
	MaxControllers    int
	AutoCreateVirtual bool
	VirtualDriver     string
}

// DefaultSettings returns the values written on first run.
func DefaultSettings() *Settings {
	return &Settings{
		ReceiverHost:      "127.0.0.1",
		ReceiverPort:      8765,
		ListenHost:        "0.0.0.0",
		ListenPort:        8765,
		PollingRate:       60,
		DeadZone:          0.1,
		RetryInterval:     time.Second,
		MaxRetryAttempts:  10,
		MaxControllers:    4,
		AutoCreateVirtual: true,
		VirtualDriver:     "null",
	}
}

// SettingsStore provides settings read/write operations.
type SettingsStore interface {
	Get(ctx context.Context) (*Settings, error)
	Update(ctx context.Context, s *Settings) error
}

// Settings returns a SettingsStore for this database.
func (db *DB) Settings() SettingsStore {
	return &settingsStore{db: db}
}

type settingsStore struct {
	db *DB
}

func (s *settingsStore) Get(ctx context.Context) (*Settings, error) {
	out := &Settings{}
	var retryMs int64
	var autoCreate int

	err := s.db.QueryRowContext(ctx, `
		SELECT receiver_host, receiver_port, listen_host, listen_port,
		       polling_rate, dead_zone, retry_interval_ms, max_retry_attempts,
		       max_controllers, auto_create_virtual, virtual_driver
		FROM settings WHERE id = 1
	`).Scan(
		&out.ReceiverHost, &out.ReceiverPort, &out.ListenHost, &out.ListenPort,
		&out.PollingRate, &out.DeadZone, &retryMs, &out.MaxRetryAttempts,
		&out.MaxControllers, &autoCreate, &out.VirtualDriver,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrSettingsNotFound
	}
	if err != nil {
		return nil, err
	}

	out.RetryInterval = time.Duration(retryMs) * time.Millisecond
	out.AutoCreateVirtual = autoCreate != 0
	return out, nil
}

func (s *settingsStore) Update(ctx context.Context, in *Settings) error {
	autoCreate := 0
	if in.AutoCreateVirtual {
		autoCreate = 1
	}

	_, err := s.db.ExecContext(ctx, `
		UPDATE settings SET
			receiver_host = ?, receiver_port = ?, listen_host = ?, listen_port = ?,
			polling_rate = ?, dead_zone = ?, retry_interval_ms = ?, max_retry_attempts = ?,
			max_controllers = ?, auto_create_virtual = ?, virtual_driver = ?,
			updated_at = datetime('now')
		WHERE id = 1
	`,
		in.ReceiverHost, in.ReceiverPort, in.ListenHost, in.ListenPort,
		in.PollingRate, in.DeadZone, in.RetryInterval.Milliseconds(), in.MaxRetryAttempts,
		in.MaxControllers, autoCreate, in.VirtualDriver,
	)
	if err != nil {
		return fmt.Errorf("failed to update settings: %w", err)
	}
	return nil
}

// NeedsBootstrap returns true if the database needs initial setup.
func (db *DB) NeedsBootstrap(ctx context.Context) (bool, error) {
	var count int
	err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM settings`).Scan(&count)
	if err != nil {
		return false, err
	}
	return count == 0, nil
}

// Bootstrap initializes the database with default settings if it's empty.
// This is called after migrations and handles first-run setup.
func (db *DB) Bootstrap(ctx context.Context) error {
	needs, err := db.NeedsBootstrap(ctx)
	if err != nil {
		return fmt.Errorf("failed to check settings: %w", err)
	}
	if !needs {
		return nil // Already bootstrapped
	}

	def := DefaultSettings()
	autoCreate := 0
	if def.AutoCreateVirtual {
		autoCreate = 1
	}

	_, err = db.ExecContext(ctx, `
		INSERT INTO settings (
			id, receiver_host, receiver_port, listen_host, listen_port,
			polling_rate, dead_zone, retry_interval_ms, max_retry_attempts,
			max_controllers, auto_create_virtual, virtual_driver
		) VALUES (1, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		def.ReceiverHost, def.ReceiverPort, def.ListenHost, def.ListenPort,
		def.PollingRate, def.DeadZone, def.RetryInterval.Milliseconds(), def.MaxRetryAttempts,
		def.MaxControllers, autoCreate, def.VirtualDriver,
	)
	if err != nil {
		return fmt.Errorf("failed to create default settings: %w", err)
	}

	return nil
}
