package cache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	// sqlite driver
	_ "github.com/mattn/go-sqlite3"
)

// Entry is one rendered file known to the cache.
type Entry struct {
	Fingerprint string
	Path        string
	Size        int64
	CreatedAt   time.Time
	LastAccess  time.Time
}

// index records cache entries in sqlite so sizes and access times survive
// restarts.
type index struct {
	db *sql.DB
}

const schema = `
create table if not exists entries (
	fingerprint text primary key not null,
	path        text not null,
	size        integer not null,
	created_at  integer not null,
	last_access integer not null
);

create index if not exists entries_last_access on entries (last_access);`

func openIndex(path string) (*index, error) {
	dsn := fmt.Sprintf("file:%s?_busy_timeout=10000&_journal_mode=WAL&_synchronous=NORMAL", path)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open cache index: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create cache index schema: %w", err)
	}

	return &index{db: db}, nil
}

func (x *index) close() error {
	return x.db.Close()
}

// put inserts or replaces an entry.
func (x *index) put(ctx context.Context, e Entry) error {
	_, err := x.db.ExecContext(ctx, `
		insert into entries (fingerprint, path, size, created_at, last_access)
		values ($1, $2, $3, $4, $5)
		on conflict (fingerprint) do update set
			path = excluded.path,
			size = excluded.size,
			last_access = excluded.last_access`,
		e.Fingerprint, e.Path, e.Size, e.CreatedAt.UnixNano(), e.LastAccess.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("put cache entry %s: %w", e.Fingerprint, err)
	}
	return nil
}

// touch updates the access time of an entry and reports whether it exists.
func (x *index) touch(ctx context.Context, fingerprint string, at time.Time) (bool, error) {
	res, err := x.db.ExecContext(ctx,
		"update entries set last_access = $1 where fingerprint = $2",
		at.UnixNano(), fingerprint,
	)
	if err != nil {
		return false, fmt.Errorf("touch cache entry %s: %w", fingerprint, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("touch cache entry %s: %w", fingerprint, err)
	}
	return n > 0, nil
}

func (x *index) get(ctx context.Context, fingerprint string) (Entry, bool, error) {
	var (
		e                 Entry
		created, accessed int64
	)
	err := x.db.QueryRowContext(ctx,
		"select fingerprint, path, size, created_at, last_access from entries where fingerprint = $1",
		fingerprint,
	).Scan(&e.Fingerprint, &e.Path, &e.Size, &created, &accessed)
	if errors.Is(err, sql.ErrNoRows) {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, fmt.Errorf("get cache entry %s: %w", fingerprint, err)
	}
	e.CreatedAt = time.Unix(0, created)
	e.LastAccess = time.Unix(0, accessed)
	return e, true, nil
}

func (x *index) remove(ctx context.Context, fingerprint string) error {
	if _, err := x.db.ExecContext(ctx, "delete from entries where fingerprint = $1", fingerprint); err != nil {
		return fmt.Errorf("remove cache entry %s: %w", fingerprint, err)
	}
	return nil
}

func (x *index) totalSize(ctx context.Context) (int64, error) {
	var total int64
	if err := x.db.QueryRowContext(ctx, "select coalesce(sum(size), 0) from entries").Scan(&total); err != nil {
		return 0, fmt.Errorf("sum cache size: %w", err)
	}
	return total, nil
}

// leastRecent returns all entries, least recently accessed first.
func (x *index) leastRecent(ctx context.Context) ([]Entry, error) {
	rows, err := x.db.QueryContext(ctx,
		"select fingerprint, path, size, created_at, last_access from entries order by last_access asc, fingerprint asc",
	)
	if err != nil {
		return nil, fmt.Errorf("list cache entries: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var (
			e                 Entry
			created, accessed int64
		)
		if err := rows.Scan(&e.Fingerprint, &e.Path, &e.Size, &created, &accessed); err != nil {
			return nil, fmt.Errorf("scan cache entry: %w", err)
		}
		e.CreatedAt = time.Unix(0, created)
		e.LastAccess = time.Unix(0, accessed)
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list cache entries: %w", err)
	}
	return out, nil
}
