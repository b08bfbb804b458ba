package database

import (
	"context"
	"database/sql"
	"fmt"
)

// schema is applied statement by statement so the DSN does not need
// multiStatements enabled.  Every statement is idempotent.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS resources (
		id                CHAR(36)     NOT NULL PRIMARY KEY,
		name              VARCHAR(200) NOT NULL,
		booking_type      ENUM('equipment','space','workshop','person') NOT NULL,
		capacity          INT          NOT NULL DEFAULT 1,
		location          VARCHAR(255) NOT NULL DEFAULT '',
		timezone          VARCHAR(64)  NOT NULL DEFAULT 'UTC',
		opens_at_minutes  INT          NOT NULL DEFAULT 540,
		closes_at_minutes INT          NOT NULL DEFAULT 1020,
		created_at        DATETIME     NOT NULL DEFAULT CURRENT_TIMESTAMP,
		INDEX idx_resources_type (booking_type)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	`CREATE TABLE IF NOT EXISTS services (
		id               CHAR(36)     NOT NULL PRIMARY KEY,
		resource_id      CHAR(36)     NOT NULL,
		name             VARCHAR(200) NOT NULL,
		price_cents      BIGINT       NOT NULL DEFAULT 0,
		duration_minutes INT          NOT NULL,
		sort_order       INT          NOT NULL DEFAULT 0,
		active           TINYINT(1)   NOT NULL DEFAULT 1,
		CONSTRAINT fk_services_resource FOREIGN KEY (resource_id) REFERENCES resources(id) ON DELETE CASCADE
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	`CREATE TABLE IF NOT EXISTS staff (
		id          CHAR(36)     NOT NULL PRIMARY KEY,
		resource_id CHAR(36)     NOT NULL,
		name        VARCHAR(200) NOT NULL,
		available   TINYINT(1)   NOT NULL DEFAULT 1,
		CONSTRAINT fk_staff_resource FOREIGN KEY (resource_id) REFERENCES resources(id) ON DELETE CASCADE
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	`CREATE TABLE IF NOT EXISTS reservations (
		id              CHAR(36)     NOT NULL PRIMARY KEY,
		resource_id     CHAR(36)     NOT NULL,
		title           VARCHAR(255) NOT NULL,
		description     TEXT         NULL,
		start_time      DATETIME     NOT NULL,
		end_time        DATETIME     NOT NULL,
		capacity        INT          NOT NULL DEFAULT 1,
		location        VARCHAR(255) NOT NULL DEFAULT '',
		notes           TEXT         NULL,
		user_name       VARCHAR(200) NOT NULL,
		user_email      VARCHAR(255) NOT NULL,
		metadata        JSON         NULL,
		status          ENUM('CONFIRMED','CANCELLED','FINISHED') NOT NULL DEFAULT 'CONFIRMED',
		idempotency_key VARCHAR(64)  NOT NULL,
		reminded_at     DATETIME     NULL,
		created_at      DATETIME     NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at      DATETIME     NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
		UNIQUE KEY uq_reservations_idempotency (idempotency_key),
		INDEX idx_reservations_resource_time (resource_id, start_time, end_time),
		INDEX idx_reservations_email (user_email),
		CONSTRAINT fk_reservations_resource FOREIGN KEY (resource_id) REFERENCES resources(id)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
}

// Migrate creates any missing tables.
func Migrate(ctx context.Context, db *sql.DB) error {
	for i, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migration %d: %w", i, err)
		}
	}
	return nil
}
