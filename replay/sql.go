package replay

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	"sairedis/sai"
)

// SQLSink mirrors the capture log into a table, one row per line. Any
// database/sql driver works; sqlite3 and postgres are linked in.
type SQLSink struct {
	db  *sql.DB
	ctx context.Context
	seq int64
}

// OpenSQL opens the capture table, creating it when missing.
func OpenSQL(driver, dsn string) (*SQLSink, error) {
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}
	ctx := context.Background()
	if err := createTables(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("create capture table: %w", err)
	}
	s := &SQLSink{db: db, ctx: ctx}
	if err := db.QueryRowContext(ctx, `select coalesce(max(seq), 0) from capture`).Scan(&s.seq); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func createTables(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `create table if not exists capture (seq bigint primary key, ts varchar(32), op varchar(1), obj_key text, fields text)`)
	return err
}

// Write appends l. Fields are stored as a JSON array of [field, value].
func (s *SQLSink) Write(l Line) error {
	fields := make([][2]string, len(l.Fields))
	for i, f := range l.Fields {
		fields[i] = [2]string{f.Field, f.Value}
	}
	d, err := json.Marshal(fields)
	if err != nil {
		return err
	}
	s.seq++
	_, err = s.db.ExecContext(s.ctx, `insert into capture (seq, ts, op, obj_key, fields) values ($1, $2, $3, $4, $5)`,
		s.seq, l.Time.Format(TimeFormat), string(l.Op), l.Key, string(d))
	return err
}

func (s *SQLSink) Close() error {
	return s.db.Close()
}

// LoadSQL reads a capture table in write order.
func LoadSQL(driver, dsn string) ([]Line, error) {
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}
	defer db.Close()
	rows, err := db.Query(`select ts, op, obj_key, fields from capture order by seq`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []Line
	for rows.Next() {
		var ts, op, key, fields string
		if err := rows.Scan(&ts, &op, &key, &fields); err != nil {
			return nil, err
		}
		if len(op) != 1 {
			return nil, fmt.Errorf("op %q: %w", op, ErrBadLine)
		}
		l := Line{Op: op[0], Key: key}
		if l.Time, err = time.ParseInLocation(TimeFormat, ts, time.Local); err != nil {
			return nil, fmt.Errorf("%v: %w", err, ErrBadLine)
		}
		var fs [][2]string
		if err := json.Unmarshal([]byte(fields), &fs); err != nil {
			return nil, fmt.Errorf("fields %q: %w", fields, ErrBadLine)
		}
		for _, f := range fs {
			l.Fields = append(l.Fields, sai.FieldValue{Field: f[0], Value: f[1]})
		}
		res = append(res, l)
	}
	return res, rows.Err()
}
