package database

import (
	"context"
	"database/sql"
	"fmt"
)

// schema holds the DDL for every table the service owns.  Statements are
// idempotent so Migrate can run on every start.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id            CHAR(36)     NOT NULL PRIMARY KEY,
		email         VARCHAR(255) NOT NULL,
		name          VARCHAR(255) NOT NULL,
		gender        ENUM('male','female') NOT NULL,
		password_hash VARCHAR(255) NOT NULL,
		is_active     TINYINT(1)   NOT NULL DEFAULT 1,
		created_at    DATETIME     NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at    DATETIME     NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
		UNIQUE KEY uq_users_email (email)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS refresh_tokens (
		id         BIGINT UNSIGNED NOT NULL AUTO_INCREMENT PRIMARY KEY,
		user_id    CHAR(36)    NOT NULL,
		token_hash CHAR(64)    NOT NULL,
		expires_at DATETIME    NOT NULL,
		revoked_at DATETIME    NULL,
		created_at DATETIME    NOT NULL DEFAULT CURRENT_TIMESTAMP,
		UNIQUE KEY uq_refresh_token_hash (token_hash),
		KEY idx_refresh_user (user_id),
		CONSTRAINT fk_refresh_user FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS trips (
		id         VARCHAR(64) NOT NULL PRIMARY KEY,
		seat_rows  INT UNSIGNED NOT NULL,
		seat_cols  INT UNSIGNED NOT NULL,
		created_at DATETIME    NOT NULL DEFAULT CURRENT_TIMESTAMP
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS seats (
		id             CHAR(36)     NOT NULL PRIMARY KEY,
		trip_id        VARCHAR(64)  NOT NULL,
		seat_row       INT UNSIGNED NOT NULL,
		seat_col       INT UNSIGNED NOT NULL,
		number         VARCHAR(16)  NOT NULL,
		gender         ENUM('any','male','female') NOT NULL DEFAULT 'any',
		status         ENUM('available','locked','booked') NOT NULL DEFAULT 'available',
		lock_holder    CHAR(36)     NULL,
		lock_deadline  DATETIME(3)  NULL,
		booking_holder CHAR(36)     NULL,
		version        INT UNSIGNED NOT NULL DEFAULT 0,
		updated_at     DATETIME(3)  NOT NULL DEFAULT CURRENT_TIMESTAMP(3),
		UNIQUE KEY uq_seats_position (trip_id, seat_row, seat_col),
		KEY idx_seats_status (trip_id, status),
		CONSTRAINT fk_seats_trip FOREIGN KEY (trip_id) REFERENCES trips(id)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS bookings (
		id           CHAR(36)    NOT NULL PRIMARY KEY,
		user_id      CHAR(36)    NOT NULL,
		seat_id      CHAR(36)    NOT NULL,
		trip_id      VARCHAR(64) NOT NULL,
		created_at   DATETIME(3) NOT NULL,
		confirmed_at DATETIME(3) NOT NULL,
		recovered    TINYINT(1)  NOT NULL DEFAULT 0,
		UNIQUE KEY uq_bookings_seat (trip_id, seat_id),
		KEY idx_bookings_user (user_id, confirmed_at)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
}

// Migrate creates any missing tables.
func Migrate(ctx context.Context, db *sql.DB) error {
	for i, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate statement %d: %w", i, err)
		}
	}
	return nil
}
