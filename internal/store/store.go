package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"
)

// Store wraps the Postgres connection backing users, trackers and their
// rank history.
type Store struct {
	DB *sql.DB
}

// Tracker is a standing watch on one (keyword, blog URL) pair, exclusively
// owned by UserID. CurrentRank/CurrentArea hold the most recent known
// position; both are nil when the target was not ranked at the last check.
type Tracker struct {
	ID            string     `json:"id"`
	UserID        string     `json:"user_id"`
	BlogURL       string     `json:"blog_url"`
	TargetKeyword string     `json:"target_keyword"`
	PostTitle     string     `json:"post_title,omitempty"`
	CurrentRank   *int       `json:"current_rank"`
	CurrentArea   *string    `json:"current_area"`
	LastChecked   *time.Time `json:"last_checked"`
	CreatedAt     time.Time  `json:"created_at"`
}

// HistoryEntry is one historical rank sample. Entries are append-only and
// ordered by CheckedAt ascending; they are never edited or reordered.
type HistoryEntry struct {
	Rank      *int      `json:"rank"`
	Area      *string   `json:"area"`
	CheckedAt time.Time `json:"checked_at"`
}

// Quota is the structured result of a tracker-quota check. Limit -1 means
// unlimited.
type Quota struct {
	Plan    string `json:"plan"`
	Current int    `json:"current"`
	Limit   int    `json:"limit"`
	CanAdd  bool   `json:"can_add"`
}

func New(ctx context.Context) (*Store, error) {
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		host := getenvDefault("POSTGRES_HOST", "localhost")
		port := getenvDefault("POSTGRES_PORT", "5432")
		user := os.Getenv("POSTGRES_USER")
		pass := os.Getenv("POSTGRES_PASSWORD")
		db := os.Getenv("POSTGRES_DB")
		ssl := getenvDefault("POSTGRES_SSLMODE", "disable")
		dsn = fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s", user, pass, host, port, db, ssl)
	}
	return NewWithDSN(ctx, dsn)
}

// NewWithDSN constructs the Store using an explicit Postgres DSN.
func NewWithDSN(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		return nil, err
	}
	return &Store{DB: db}, nil
}

func getenvDefault(k, def string) string {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	return v
}

// User operations

func (s *Store) CreateUser(ctx context.Context, email, hash string) error {
	_, err := s.DB.ExecContext(ctx, `INSERT INTO users (email, password_hash) VALUES ($1,$2)`, email, hash)
	return err
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (id string, hash string, err error) {
	err = s.DB.QueryRowContext(ctx, `SELECT id, password_hash FROM users WHERE email=$1`, email).Scan(&id, &hash)
	return
}

func (s *Store) GetUserPlan(ctx context.Context, userID string) (string, error) {
	var plan string
	err := s.DB.QueryRowContext(ctx, `SELECT plan FROM users WHERE id=$1`, userID).Scan(&plan)
	return plan, err
}

func (s *Store) SetUserPlan(ctx context.Context, userID, plan string) error {
	res, err := s.DB.ExecContext(ctx, `UPDATE users SET plan=$1 WHERE id=$2`, plan, userID)
	if err != nil {
		return err
	}
	if rows, err := res.RowsAffected(); err == nil && rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Tracker operations

// CreateTracker inserts a new tracker with no rank yet. The caller is
// responsible for checking the quota first; the unique (user, url, keyword)
// constraint guards against duplicates.
func (s *Store) CreateTracker(ctx context.Context, userID, blogURL, targetKeyword, postTitle string) (Tracker, error) {
	if strings.TrimSpace(blogURL) == "" || strings.TrimSpace(targetKeyword) == "" {
		return Tracker{}, fmt.Errorf("blog url and target keyword required")
	}
	t := Tracker{
		ID:            uuid.NewString(),
		UserID:        userID,
		BlogURL:       strings.TrimSpace(blogURL),
		TargetKeyword: strings.TrimSpace(targetKeyword),
		PostTitle:     strings.TrimSpace(postTitle),
	}
	err := s.DB.QueryRowContext(ctx,
		`INSERT INTO trackers (id, user_id, blog_url, target_keyword, post_title) VALUES ($1,$2,$3,$4,$5) RETURNING created_at`,
		t.ID, t.UserID, t.BlogURL, t.TargetKeyword, t.PostTitle,
	).Scan(&t.CreatedAt)
	if err != nil {
		return Tracker{}, err
	}
	return t, nil
}

const trackerColumns = `id, user_id, blog_url, target_keyword, COALESCE(post_title,''), current_rank, current_area, last_checked, created_at`

func scanTracker(row interface{ Scan(...interface{}) error }) (Tracker, error) {
	var t Tracker
	var rank sql.NullInt64
	var area sql.NullString
	var checked sql.NullTime
	err := row.Scan(&t.ID, &t.UserID, &t.BlogURL, &t.TargetKeyword, &t.PostTitle, &rank, &area, &checked, &t.CreatedAt)
	if err != nil {
		return Tracker{}, err
	}
	if rank.Valid {
		v := int(rank.Int64)
		t.CurrentRank = &v
	}
	if area.Valid {
		v := area.String
		t.CurrentArea = &v
	}
	if checked.Valid {
		v := checked.Time
		t.LastChecked = &v
	}
	return t, nil
}

func (s *Store) GetTracker(ctx context.Context, id, userID string) (Tracker, error) {
	row := s.DB.QueryRowContext(ctx,
		`SELECT `+trackerColumns+` FROM trackers WHERE id=$1 AND user_id=$2`, id, userID)
	return scanTracker(row)
}

func (s *Store) ListTrackers(ctx context.Context, userID string) ([]Tracker, error) {
	rows, err := s.DB.QueryContext(ctx,
		`SELECT `+trackerColumns+` FROM trackers WHERE user_id=$1 ORDER BY created_at ASC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Tracker
	for rows.Next() {
		t, err := scanTracker(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// ListAllTrackers returns every tracker in the system, for the refresh
// scheduler.
func (s *Store) ListAllTrackers(ctx context.Context) ([]Tracker, error) {
	rows, err := s.DB.QueryContext(ctx,
		`SELECT `+trackerColumns+` FROM trackers ORDER BY created_at ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Tracker
	for rows.Next() {
		t, err := scanTracker(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (s *Store) DeleteTracker(ctx context.Context, id, userID string) error {
	res, err := s.DB.ExecContext(ctx, `DELETE FROM trackers WHERE id=$1 AND user_id=$2`, id, userID)
	if err != nil {
		return err
	}
	if rows, err := res.RowsAffected(); err == nil && rows == 0 {
		return sql.ErrNoRows
	} else if err != nil {
		return err
	}
	return nil
}

func (s *Store) CountTrackers(ctx context.Context, userID string) (int, error) {
	var n int
	err := s.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM trackers WHERE user_id=$1`, userID).Scan(&n)
	return n, err
}

// QuotaFor resolves the user's plan and reports whether another tracker may
// be added under limits. Unknown plans fall back to the "free" limit.
func (s *Store) QuotaFor(ctx context.Context, userID string, limits map[string]int) (Quota, error) {
	plan, err := s.GetUserPlan(ctx, userID)
	if err != nil {
		return Quota{}, err
	}
	limit, ok := limits[plan]
	if !ok {
		limit = limits["free"]
	}
	current, err := s.CountTrackers(ctx, userID)
	if err != nil {
		return Quota{}, err
	}
	return Quota{
		Plan:    plan,
		Current: current,
		Limit:   limit,
		CanAdd:  limit == -1 || current < limit,
	}, nil
}

// RecordCheck appends one history entry and updates the tracker's current
// rank fields in a single transaction, so a concurrent refresh can never
// leave history and current state disagreeing. rank and area are nil when
// the target was not found anywhere.
func (s *Store) RecordCheck(ctx context.Context, trackerID string, rank *int, area *string, checkedAt time.Time) error {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var rankVal sql.NullInt64
	if rank != nil {
		rankVal = sql.NullInt64{Int64: int64(*rank), Valid: true}
	}
	var areaVal sql.NullString
	if area != nil {
		areaVal = sql.NullString{String: *area, Valid: true}
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO tracker_history (tracker_id, rank, area, checked_at) VALUES ($1,$2,$3,$4)`,
		trackerID, rankVal, areaVal, checkedAt,
	); err != nil {
		return err
	}

	res, err := tx.ExecContext(ctx,
		`UPDATE trackers SET current_rank=$1, current_area=$2, last_checked=$3 WHERE id=$4`,
		rankVal, areaVal, checkedAt, trackerID,
	)
	if err != nil {
		return err
	}
	if rows, err := res.RowsAffected(); err == nil && rows == 0 {
		return sql.ErrNoRows
	} else if err != nil {
		return err
	}

	return tx.Commit()
}

// ListTrackerHistory returns the tracker's full rank history, oldest first.
func (s *Store) ListTrackerHistory(ctx context.Context, trackerID string) ([]HistoryEntry, error) {
	rows, err := s.DB.QueryContext(ctx,
		`SELECT rank, area, checked_at FROM tracker_history WHERE tracker_id=$1 ORDER BY checked_at ASC, id ASC`,
		trackerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []HistoryEntry
	for rows.Next() {
		var e HistoryEntry
		var rank sql.NullInt64
		var area sql.NullString
		if err := rows.Scan(&rank, &area, &e.CheckedAt); err != nil {
			return nil, err
		}
		if rank.Valid {
			v := int(rank.Int64)
			e.Rank = &v
		}
		if area.Valid {
			v := area.String
			e.Area = &v
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
