package repository

import (
	"context"
	"database/sql"
)

// applyMigrations creates the schema if missing. Safe to run on every boot.
func applyMigrations(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, schemaSQL)
	return err
}

const schemaSQL = `
CREATE TABLE IF NOT EXISTS links (
    id              UUID        PRIMARY KEY,
    original_url    TEXT        NOT NULL,
    short_code      TEXT        NOT NULL UNIQUE,
    custom_alias    TEXT        UNIQUE,
    password_secret TEXT,
    max_clicks      BIGINT      NOT NULL DEFAULT 0 CHECK (max_clicks >= 0),
    click_count     BIGINT      NOT NULL DEFAULT 0 CHECK (click_count >= 0),
    expire_at       TIMESTAMPTZ,
    owner_id        TEXT        NOT NULL,
    created_at      TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_links_owner_created ON links(owner_id, created_at DESC);

CREATE TABLE IF NOT EXISTS click_events (
    id             UUID        PRIMARY KEY,
    link_id        UUID        NOT NULL REFERENCES links(id) ON DELETE CASCADE,
    clicked_at     TIMESTAMPTZ NOT NULL,
    referrer       TEXT        NOT NULL,
    source_address TEXT        NOT NULL,
    country        TEXT        NOT NULL,
    city           TEXT        NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_click_events_link_ts ON click_events(link_id, clicked_at DESC);
`
