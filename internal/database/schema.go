package database

import (
	"context"
	"database/sql"
	"fmt"
)

// schema creates the tables this service reads and writes.  Users and
// spaces are owned by other services in production; they are declared
// here so a fresh database is usable on its own.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id BIGINT UNSIGNED NOT NULL AUTO_INCREMENT PRIMARY KEY,
		email VARCHAR(255) NOT NULL UNIQUE,
		name VARCHAR(255) NOT NULL DEFAULT '',
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS spaces (
		id BIGINT UNSIGNED NOT NULL AUTO_INCREMENT PRIMARY KEY,
		user_id BIGINT UNSIGNED NOT NULL,
		title VARCHAR(255) NOT NULL,
		address VARCHAR(512) NOT NULL DEFAULT '',
		price_per_hour VARCHAR(32) NOT NULL DEFAULT '0',
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		KEY idx_spaces_user (user_id)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS payments (
		id BIGINT UNSIGNED NOT NULL AUTO_INCREMENT PRIMARY KEY,
		user_id BIGINT UNSIGNED NOT NULL,
		account_type VARCHAR(64) NOT NULL,
		account_name VARCHAR(255) NOT NULL,
		account_number VARCHAR(64) NOT NULL,
		withdraw_amount VARCHAR(32) NOT NULL,
		reservation_count INT NOT NULL,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		KEY idx_payments_user (user_id)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS reservations (
		id BIGINT UNSIGNED NOT NULL AUTO_INCREMENT PRIMARY KEY,
		space_id BIGINT UNSIGNED NOT NULL,
		user_id BIGINT UNSIGNED NOT NULL,
		arrival_date VARCHAR(10) NOT NULL,
		arrival_time VARCHAR(8) NOT NULL,
		leave_date VARCHAR(10) NOT NULL,
		leave_time VARCHAR(8) NOT NULL,
		total_price VARCHAR(32) NOT NULL,
		state ENUM('pending','confirmed','reserved','completed','cancelled') NOT NULL DEFAULT 'pending',
		withdrawn TINYINT(1) NOT NULL DEFAULT 0,
		payment_id BIGINT UNSIGNED NULL,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
		KEY idx_reservations_state (state),
		KEY idx_reservations_space (space_id, state, withdrawn),
		KEY idx_reservations_user (user_id),
		KEY idx_reservations_payment (payment_id)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS reviews (
		id BIGINT UNSIGNED NOT NULL AUTO_INCREMENT PRIMARY KEY,
		reservation_id BIGINT UNSIGNED NOT NULL UNIQUE,
		user_id BIGINT UNSIGNED NOT NULL,
		space_id BIGINT UNSIGNED NOT NULL,
		rating TINYINT NOT NULL,
		comment TEXT NOT NULL,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		KEY idx_reviews_space (space_id)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
}

// EnsureSchema creates any missing table.  Existing tables are left alone.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	for i, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("schema statement %d: %w", i, err)
		}
	}
	return nil
}
