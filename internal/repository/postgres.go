package repository

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"log"
	"net"
	"strings"
	"time"

	"github.com/lib/pq"

	"github.com/Siddarth2230/linklytics/internal/models"
	"github.com/Siddarth2230/linklytics/pkg/metrics"
)

// Postgres is a LinkRepository backed by PostgreSQL through lib/pq.
type Postgres struct {
	db *sql.DB
}

// OpenPostgres connects to dsn, pings it and applies the schema.
func OpenPostgres(ctx context.Context, dsn string) (*Postgres, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("db ping failed: %w", classify(err))
	}
	if err := applyMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply migrations: %w", err)
	}
	return &Postgres{db: db}, nil
}

// NewPostgres wraps an already opened pool. The schema is assumed to exist.
func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

func (r *Postgres) Close() error { return r.db.Close() }

const linkColumns = `id, original_url, short_code, custom_alias, password_secret, max_clicks, click_count, expire_at, owner_id, created_at`

// queryer is the subset shared by *sql.DB and *sql.Tx.
type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func (r *Postgres) Create(ctx context.Context, link *models.Link) error {
	defer observe("create")()
	query := `
        INSERT INTO links (` + linkColumns + `)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
    `
	_, err := r.db.ExecContext(ctx, query,
		link.ID, link.OriginalURL, link.ShortCode, nullString(link.CustomAlias), nullString(link.PasswordSecret),
		link.MaxClicks, link.ClickCount, nullTime(link.ExpireAt), link.OwnerID, link.CreatedAt,
	)
	if err != nil {
		err = classify(err)
		if !errors.Is(err, ErrDuplicateCode) {
			log.Printf("Error saving link %s: %v", link.ShortCode, err)
		}
		return err
	}
	return nil
}

func (r *Postgres) FindByCode(ctx context.Context, code string) (*models.Link, error) {
	defer observe("find_by_code")()
	query := `SELECT ` + linkColumns + ` FROM links WHERE short_code = $1`
	return scanLink(r.db.QueryRowContext(ctx, query, code))
}

func (r *Postgres) FindByOwnerAndCode(ctx context.Context, ownerID, code string) (*models.Link, error) {
	defer observe("find_by_owner_and_code")()
	return findByOwnerAndCode(ctx, r.db, ownerID, code)
}

func findByOwnerAndCode(ctx context.Context, q queryer, ownerID, code string) (*models.Link, error) {
	query := `SELECT ` + linkColumns + ` FROM links WHERE short_code = $1 AND owner_id = $2`
	return scanLink(q.QueryRowContext(ctx, query, code, ownerID))
}

func (r *Postgres) ListByOwner(ctx context.Context, ownerID string, asOf time.Time, limit int) ([]models.Link, error) {
	defer observe("list_by_owner")()
	query := `
        SELECT ` + linkColumns + `
        FROM links
        WHERE owner_id = $1 AND (expire_at IS NULL OR expire_at > $2)
        ORDER BY created_at DESC, id DESC
        LIMIT $3
    `
	rows, err := r.db.QueryContext(ctx, query, ownerID, asOf, pgLimit(limit))
	if err != nil {
		log.Printf("Error listing links for owner %s: %v", ownerID, err)
		return nil, classify(err)
	}
	defer rows.Close()

	var links []models.Link
	for rows.Next() {
		link, err := scanLink(rows)
		if err != nil {
			return nil, err
		}
		links = append(links, *link)
	}
	if err := rows.Err(); err != nil {
		return nil, classify(err)
	}
	return links, nil
}

// IncrementClickCount relies on the row lock taken by UPDATE, so concurrent
// callers each see a distinct post-increment value.
func (r *Postgres) IncrementClickCount(ctx context.Context, id string) (int64, error) {
	defer observe("increment_click_count")()
	query := `UPDATE links SET click_count = click_count + 1 WHERE id = $1 RETURNING click_count`

	var count int64
	if err := r.db.QueryRowContext(ctx, query, id).Scan(&count); err != nil {
		return 0, classify(err)
	}
	return count, nil
}

func (r *Postgres) DeleteCascade(ctx context.Context, id string) (err error) {
	defer observe("delete_cascade")()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return classify(err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, `DELETE FROM click_events WHERE link_id = $1`, id); err != nil {
		log.Printf("Error deleting click events for link %s: %v", id, err)
		return classify(err)
	}
	result, err := tx.ExecContext(ctx, `DELETE FROM links WHERE id = $1`, id)
	if err != nil {
		log.Printf("Error deleting link %s: %v", id, err)
		return classify(err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return classify(err)
	}
	if rowsAffected == 0 {
		err = ErrNotFound
		return err
	}
	if err = tx.Commit(); err != nil {
		return classify(err)
	}
	return nil
}

func (r *Postgres) InsertClickEvent(ctx context.Context, event *models.ClickEvent) error {
	defer observe("insert_click_event")()
	query := `
        INSERT INTO click_events (id, link_id, clicked_at, referrer, source_address, country, city)
        VALUES ($1, $2, $3, $4, $5, $6, $7)
    `
	_, err := r.db.ExecContext(ctx, query,
		event.ID, event.LinkID, event.Timestamp, event.Referrer, event.SourceAddress, event.Country, event.City,
	)
	return classify(err)
}

func (r *Postgres) ListClickEvents(ctx context.Context, linkID string, limit int, newestFirst bool) ([]models.ClickEvent, error) {
	defer observe("list_click_events")()
	return listClickEvents(ctx, r.db, linkID, limit, newestFirst)
}

func listClickEvents(ctx context.Context, q queryer, linkID string, limit int, newestFirst bool) ([]models.ClickEvent, error) {
	order := "ASC"
	if newestFirst {
		order = "DESC"
	}
	query := `
        SELECT id, link_id, clicked_at, referrer, source_address, country, city
        FROM click_events
        WHERE link_id = $1
        ORDER BY clicked_at ` + order + `
        LIMIT $2
    `
	rows, err := q.QueryContext(ctx, query, linkID, pgLimit(limit))
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()

	var events []models.ClickEvent
	for rows.Next() {
		var e models.ClickEvent
		if err := rows.Scan(&e.ID, &e.LinkID, &e.Timestamp, &e.Referrer, &e.SourceAddress, &e.Country, &e.City); err != nil {
			return nil, classify(err)
		}
		e.Timestamp = e.Timestamp.UTC()
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, classify(err)
	}
	return events, nil
}

// Analytics runs both reads in one REPEATABLE READ snapshot so a concurrent
// cascade delete is seen either entirely or not at all.
func (r *Postgres) Analytics(ctx context.Context, ownerID, code string, limit int) (*models.Link, []models.ClickEvent, error) {
	defer observe("analytics")()

	tx, err := r.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true})
	if err != nil {
		return nil, nil, classify(err)
	}
	defer func() { _ = tx.Rollback() }()

	link, err := findByOwnerAndCode(ctx, tx, ownerID, code)
	if err != nil {
		return nil, nil, err
	}
	events, err := listClickEvents(ctx, tx, link.ID, limit, true)
	if err != nil {
		return nil, nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, nil, classify(err)
	}
	return link, events, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanLink(row scanner) (*models.Link, error) {
	var (
		link           models.Link
		customAlias    sql.NullString
		passwordSecret sql.NullString
		expireAt       sql.NullTime
	)
	err := row.Scan(&link.ID, &link.OriginalURL, &link.ShortCode, &customAlias, &passwordSecret,
		&link.MaxClicks, &link.ClickCount, &expireAt, &link.OwnerID, &link.CreatedAt)
	if err != nil {
		return nil, classify(err)
	}
	if customAlias.Valid {
		link.CustomAlias = &customAlias.String
	}
	if passwordSecret.Valid {
		link.PasswordSecret = &passwordSecret.String
	}
	if expireAt.Valid {
		t := expireAt.Time.UTC()
		link.ExpireAt = &t
	}
	link.CreatedAt = link.CreatedAt.UTC()
	return &link, nil
}

// classify maps driver errors onto the repository's sentinel errors.
func classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrNotFound) || errors.Is(err, ErrDuplicateCode) || errors.Is(err, ErrUnavailable) {
		return err
	}
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch {
		case pqErr.Code == "23505": // unique_violation
			return ErrDuplicateCode
		case pqErr.Code == "23503": // foreign_key_violation
			return ErrNotFound
		case strings.HasPrefix(string(pqErr.Code), "08"), // connection_exception
			strings.HasPrefix(string(pqErr.Code), "53"), // insufficient_resources
			strings.HasPrefix(string(pqErr.Code), "57P"): // operator_intervention (shutdown)
			return fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		return err
	}

	var netErr net.Error
	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, sql.ErrConnDone) ||
		errors.Is(err, context.DeadlineExceeded) || errors.As(err, &netErr) {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return err
}

func observe(operation string) func() {
	start := time.Now()
	return func() {
		metrics.DatabaseQueryDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
	}
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

// pgLimit turns "no limit" into NULL, which LIMIT treats as unbounded.
func pgLimit(limit int) sql.NullInt64 {
	if limit <= 0 {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(limit), Valid: true}
}

// Compile-time check: *Postgres implements LinkRepository.
var _ LinkRepository = (*Postgres)(nil)
