// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/lib/pq"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/danielhkuo/fuelwatch/models"
)

// Supported DATABASE_TYPE values
const (
	DialectPostgres = "postgres"
	DialectSQLite   = "sqlite"
)

// SQLStore implements Store on database/sql. Queries are written with
// $N placeholders, each used once and in order, and rebound to ? for SQLite.
type SQLStore struct {
	db      *sql.DB
	dialect string
}

func NewSQLStore(db *sql.DB, dialect string) *SQLStore {
	return &SQLStore{db: db, dialect: dialect}
}

func (s *SQLStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

var placeholder = regexp.MustCompile(`\$\d+`)

func (s *SQLStore) q(query string) string {
	if s.dialect == DialectSQLite {
		return placeholder.ReplaceAllString(query, "?")
	}
	return query
}

// isUniqueViolation reports whether err is a unique constraint failure
// from either driver
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		code := liteErr.Code()
		return code == sqlite3.SQLITE_CONSTRAINT_UNIQUE ||
			(code&0xff == sqlite3.SQLITE_CONSTRAINT && strings.Contains(liteErr.Error(), "UNIQUE"))
	}
	return false
}

func micros(t time.Time) int64 {
	return t.UnixMicro()
}

func fromMicros(v int64) time.Time {
	return time.UnixMicro(v).UTC()
}

func nullMicros(t *time.Time) sql.NullInt64 {
	if t == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: t.UnixMicro(), Valid: true}
}

func nullInt(v *int) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*v), Valid: true}
}

func nullString(v string) sql.NullString {
	return sql.NullString{String: v, Valid: v != ""}
}

// ── Users ──

const userColumns = `id, trust_score, total_reports, accurate_reports, disputed_reports,
	helpful_interactions, version, created_at, last_active`

func scanUser(row interface{ Scan(...any) error }) (models.User, error) {
	var u models.User
	var createdAt, lastActive int64
	err := row.Scan(&u.ID, &u.TrustScore, &u.TotalReports, &u.AccurateReports, &u.DisputedReports,
		&u.HelpfulInteractions, &u.Version, &createdAt, &lastActive)
	if err != nil {
		return models.User{}, err
	}
	u.CreatedAt = fromMicros(createdAt)
	u.LastActive = fromMicros(lastActive)
	return u, nil
}

func (s *SQLStore) EnsureUser(ctx context.Context, userID string, initialScore float64, now time.Time) (models.User, error) {
	_, err := s.db.ExecContext(ctx, s.q(`
		INSERT INTO app_user (id, trust_score, created_at, last_active)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO NOTHING
	`), userID, initialScore, micros(now), micros(now))
	if err != nil {
		return models.User{}, fmt.Errorf("ensure user: %w", err)
	}
	return s.GetUser(ctx, userID)
}

func (s *SQLStore) GetUser(ctx context.Context, userID string) (models.User, error) {
	row := s.db.QueryRowContext(ctx, s.q(`SELECT `+userColumns+` FROM app_user WHERE id = $1`), userID)
	u, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.User{}, fmt.Errorf("user %s: %w", userID, models.ErrNotFound)
	}
	if err != nil {
		return models.User{}, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

func (s *SQLStore) ApplyTrustChange(ctx context.Context, user models.User, entry models.TrustScoreHistory) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin trust change: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, s.q(`
		UPDATE app_user
		SET trust_score = $1, version = $2, last_active = $3
		WHERE id = $4 AND version = $5
	`), entry.NewScore, user.Version+1, micros(entry.CreatedAt), user.ID, user.Version)
	if err != nil {
		return fmt.Errorf("update trust score: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("user %s: %w", user.ID, models.ErrConflict)
	}

	_, err = tx.ExecContext(ctx, s.q(`
		INSERT INTO trust_score_history
			(id, user_id, seq, previous_score, new_score, change, reason, related_report_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`), entry.ID, user.ID, user.Version+1, entry.PreviousScore, entry.NewScore, entry.Change,
		entry.Reason, nullString(entry.RelatedReportID), micros(entry.CreatedAt))
	if isUniqueViolation(err) {
		return fmt.Errorf("trust entry %s/%s for %s exists: %w", entry.Reason, entry.RelatedReportID, user.ID, models.ErrConflict)
	}
	if err != nil {
		return fmt.Errorf("insert trust history: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit trust change: %w", err)
	}
	return nil
}

func (s *SQLStore) HasTrustEntry(ctx context.Context, userID, reason, reportID string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx, s.q(`
		SELECT EXISTS(
			SELECT 1 FROM trust_score_history
			WHERE user_id = $1 AND reason = $2 AND related_report_id = $3
		)
	`), userID, reason, reportID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("lookup trust entry: %w", err)
	}
	return exists, nil
}

func (s *SQLStore) ListTrustHistory(ctx context.Context, userID string) ([]models.TrustScoreHistory, error) {
	rows, err := s.db.QueryContext(ctx, s.q(`
		SELECT id, user_id, previous_score, new_score, change, reason, related_report_id, created_at
		FROM trust_score_history
		WHERE user_id = $1
		ORDER BY seq
	`), userID)
	if err != nil {
		return nil, fmt.Errorf("list trust history: %w", err)
	}
	defer rows.Close()

	var out []models.TrustScoreHistory
	for rows.Next() {
		var e models.TrustScoreHistory
		var related sql.NullString
		var createdAt int64
		if err := rows.Scan(&e.ID, &e.UserID, &e.PreviousScore, &e.NewScore, &e.Change, &e.Reason, &related, &createdAt); err != nil {
			return nil, fmt.Errorf("scan trust history: %w", err)
		}
		e.RelatedReportID = related.String
		e.CreatedAt = fromMicros(createdAt)
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *SQLStore) BumpUserCounters(ctx context.Context, userID string, delta models.UserCounters, now time.Time) error {
	res, err := s.db.ExecContext(ctx, s.q(`
		UPDATE app_user
		SET total_reports = total_reports + $1,
		    accurate_reports = accurate_reports + $2,
		    disputed_reports = disputed_reports + $3,
		    helpful_interactions = helpful_interactions + $4,
		    last_active = $5
		WHERE id = $6
	`), delta.TotalReports, delta.AccurateReports, delta.DisputedReports, delta.HelpfulInteractions, micros(now), userID)
	if err != nil {
		return fmt.Errorf("bump user counters: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("user %s: %w", userID, models.ErrNotFound)
	}
	return nil
}

// ── Reports ──

const reportColumns = `id, station_id, reporter_id, report_type, status, station_status,
	available_fuels, queue_length, estimated_wait_minutes, latitude, longitude, accuracy,
	photo_urls, reported_at, expires_at, confirmations, disputes, weighted_confirmations,
	weighted_disputes, confidence_score, reporter_trust_score, resolved_status, resolved_at,
	resolution_scale, settled_at, created_at, updated_at, version`

func scanReport(row interface{ Scan(...any) error }) (models.Report, error) {
	var r models.Report
	var fuels, photos string
	var queue, wait, resolvedAt, settledAt sql.NullInt64
	var accuracy sql.NullFloat64
	var reportedAt, expiresAt, createdAt, updatedAt int64

	err := row.Scan(&r.ID, &r.StationID, &r.ReporterID, &r.ReportType, &r.Status, &r.StationStatus,
		&fuels, &queue, &wait, &r.Latitude, &r.Longitude, &accuracy,
		&photos, &reportedAt, &expiresAt, &r.Confirmations, &r.Disputes, &r.WeightedConfirmations,
		&r.WeightedDisputes, &r.ConfidenceScore, &r.ReporterTrustScore, &r.ResolvedStatus, &resolvedAt,
		&r.ResolutionScale, &settledAt, &createdAt, &updatedAt, &r.Version)
	if err != nil {
		return models.Report{}, err
	}

	if err := json.Unmarshal([]byte(fuels), &r.AvailableFuels); err != nil {
		return models.Report{}, fmt.Errorf("decode available_fuels: %w", err)
	}
	if err := json.Unmarshal([]byte(photos), &r.PhotoURLs); err != nil {
		return models.Report{}, fmt.Errorf("decode photo_urls: %w", err)
	}
	if queue.Valid {
		v := int(queue.Int64)
		r.QueueLength = &v
	}
	if wait.Valid {
		v := int(wait.Int64)
		r.EstimatedWaitMinutes = &v
	}
	if accuracy.Valid {
		v := accuracy.Float64
		r.Accuracy = &v
	}
	if resolvedAt.Valid {
		t := fromMicros(resolvedAt.Int64)
		r.ResolvedAt = &t
	}
	if settledAt.Valid {
		t := fromMicros(settledAt.Int64)
		r.SettledAt = &t
	}
	r.ReportedAt = fromMicros(reportedAt)
	r.ExpiresAt = fromMicros(expiresAt)
	r.CreatedAt = fromMicros(createdAt)
	r.UpdatedAt = fromMicros(updatedAt)
	return r, nil
}

func (s *SQLStore) CreateReport(ctx context.Context, r models.Report) error {
	fuels, err := json.Marshal(r.AvailableFuels)
	if err != nil {
		return fmt.Errorf("encode available_fuels: %w", err)
	}
	photos, err := json.Marshal(r.PhotoURLs)
	if err != nil {
		return fmt.Errorf("encode photo_urls: %w", err)
	}
	var accuracy sql.NullFloat64
	if r.Accuracy != nil {
		accuracy = sql.NullFloat64{Float64: *r.Accuracy, Valid: true}
	}

	_, err = s.db.ExecContext(ctx, s.q(`
		INSERT INTO status_report (`+reportColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14,
		        $15, $16, $17, $18, $19, $20, $21, $22, $23, $24, $25, $26, $27, $28)
	`), r.ID, r.StationID, r.ReporterID, r.ReportType, r.Status, r.StationStatus,
		string(fuels), nullInt(r.QueueLength), nullInt(r.EstimatedWaitMinutes), r.Latitude, r.Longitude, accuracy,
		string(photos), micros(r.ReportedAt), micros(r.ExpiresAt), r.Confirmations, r.Disputes, r.WeightedConfirmations,
		r.WeightedDisputes, r.ConfidenceScore, r.ReporterTrustScore, r.ResolvedStatus, nullMicros(r.ResolvedAt),
		r.ResolutionScale, nullMicros(r.SettledAt), micros(r.CreatedAt), micros(r.UpdatedAt), r.Version)
	if err != nil {
		return fmt.Errorf("insert report: %w", err)
	}
	return nil
}

func (s *SQLStore) GetReport(ctx context.Context, id string) (models.Report, error) {
	row := s.db.QueryRowContext(ctx, s.q(`SELECT `+reportColumns+` FROM status_report WHERE id = $1`), id)
	r, err := scanReport(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Report{}, fmt.Errorf("report %s: %w", id, models.ErrNotFound)
	}
	if err != nil {
		return models.Report{}, fmt.Errorf("get report: %w", err)
	}
	return r, nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (s *SQLStore) updateReport(ctx context.Context, ex execer, r *models.Report) error {
	res, err := ex.ExecContext(ctx, s.q(`
		UPDATE status_report
		SET status = $1, confirmations = $2, disputes = $3, weighted_confirmations = $4,
		    weighted_disputes = $5, confidence_score = $6, resolved_status = $7, resolved_at = $8,
		    resolution_scale = $9, settled_at = $10, updated_at = $11, version = $12
		WHERE id = $13 AND version = $14
	`), r.Status, r.Confirmations, r.Disputes, r.WeightedConfirmations,
		r.WeightedDisputes, r.ConfidenceScore, r.ResolvedStatus, nullMicros(r.ResolvedAt),
		r.ResolutionScale, nullMicros(r.SettledAt), micros(r.UpdatedAt), r.Version+1,
		r.ID, r.Version)
	if err != nil {
		return fmt.Errorf("update report: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("report %s: %w", r.ID, models.ErrConflict)
	}
	return nil
}

func (s *SQLStore) UpdateReport(ctx context.Context, r *models.Report) error {
	if err := s.updateReport(ctx, s.db, r); err != nil {
		return err
	}
	r.Version++
	return nil
}

func (s *SQLStore) queryReports(ctx context.Context, query string, args ...any) ([]models.Report, error) {
	rows, err := s.db.QueryContext(ctx, s.q(query), args...)
	if err != nil {
		return nil, fmt.Errorf("query reports: %w", err)
	}
	defer rows.Close()

	var out []models.Report
	for rows.Next() {
		r, err := scanReport(rows)
		if err != nil {
			return nil, fmt.Errorf("scan report: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *SQLStore) ListReports(ctx context.Context, q models.ReportQuery) ([]models.Report, int, error) {
	q = NormalizeQuery(q)

	var where []string
	var args []any
	add := func(column string, value any) {
		args = append(args, value)
		where = append(where, column+" = $"+strconv.Itoa(len(args)))
	}
	if q.StationID != "" {
		add("station_id", q.StationID)
	}
	if q.ReporterID != "" {
		add("reporter_id", q.ReporterID)
	}
	if q.Status != "" {
		add("status", q.Status)
	}
	if q.ReportType != "" {
		add("report_type", q.ReportType)
	}
	clause := ""
	if len(where) > 0 {
		clause = " WHERE " + strings.Join(where, " AND ")
	}

	var total int
	if err := s.db.QueryRowContext(ctx, s.q(`SELECT COUNT(*) FROM status_report`+clause), args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count reports: %w", err)
	}

	n := len(args)
	page := append(args, q.Limit, q.Offset)
	reports, err := s.queryReports(ctx, `SELECT `+reportColumns+` FROM status_report`+clause+
		` ORDER BY reported_at DESC, id LIMIT $`+strconv.Itoa(n+1)+` OFFSET $`+strconv.Itoa(n+2), page...)
	if err != nil {
		return nil, 0, err
	}
	if reports == nil {
		reports = []models.Report{}
	}
	return reports, total, nil
}

func (s *SQLStore) ListStationReports(ctx context.Context, stationID string, since time.Time) ([]models.Report, error) {
	return s.queryReports(ctx, `
		SELECT `+reportColumns+` FROM status_report
		WHERE station_id = $1 AND reported_at >= $2
		ORDER BY reported_at, id
	`, stationID, micros(since))
}

func (s *SQLStore) ListDueForExpiry(ctx context.Context, now time.Time) ([]models.Report, error) {
	return s.queryReports(ctx, `
		SELECT `+reportColumns+` FROM status_report
		WHERE status <> 'EXPIRED' AND expires_at <= $1
		ORDER BY reported_at, id
	`, micros(now))
}

func (s *SQLStore) ListPendingBefore(ctx context.Context, cutoff time.Time) ([]models.Report, error) {
	return s.queryReports(ctx, `
		SELECT `+reportColumns+` FROM status_report
		WHERE status = 'PENDING' AND reported_at <= $1
		ORDER BY reported_at, id
	`, micros(cutoff))
}

func (s *SQLStore) ListUnsettled(ctx context.Context) ([]models.Report, error) {
	return s.queryReports(ctx, `
		SELECT `+reportColumns+` FROM status_report
		WHERE resolved_status <> '' AND settled_at IS NULL
		ORDER BY reported_at, id
	`)
}

func (s *SQLStore) ListActiveStations(ctx context.Context, since time.Time) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, s.q(`
		SELECT DISTINCT station_id FROM status_report
		WHERE reported_at >= $1
		ORDER BY station_id
	`), micros(since))
	if err != nil {
		return nil, fmt.Errorf("list active stations: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan station id: %w", err)
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

func (s *SQLStore) CountReportsSince(ctx context.Context, userID, stationID string, since time.Time) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, s.q(`
		SELECT COUNT(*) FROM status_report
		WHERE reporter_id = $1 AND station_id = $2 AND reported_at >= $3
	`), userID, stationID, micros(since)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count recent reports: %w", err)
	}
	return n, nil
}

// ── Interactions ──

const interactionColumns = `id, report_id, user_id, interaction_type, user_trust_score, weight, created_at, updated_at`

func scanInteraction(row interface{ Scan(...any) error }) (models.ReportInteraction, error) {
	var in models.ReportInteraction
	var createdAt, updatedAt int64
	err := row.Scan(&in.ID, &in.ReportID, &in.UserID, &in.InteractionType, &in.UserTrustScore, &in.Weight, &createdAt, &updatedAt)
	if err != nil {
		return models.ReportInteraction{}, err
	}
	in.CreatedAt = fromMicros(createdAt)
	in.UpdatedAt = fromMicros(updatedAt)
	return in, nil
}

func (s *SQLStore) GetInteraction(ctx context.Context, reportID, userID string) (models.ReportInteraction, error) {
	row := s.db.QueryRowContext(ctx, s.q(`
		SELECT `+interactionColumns+` FROM report_interaction
		WHERE report_id = $1 AND user_id = $2
	`), reportID, userID)
	in, err := scanInteraction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.ReportInteraction{}, fmt.Errorf("interaction %s/%s: %w", reportID, userID, models.ErrNotFound)
	}
	if err != nil {
		return models.ReportInteraction{}, fmt.Errorf("get interaction: %w", err)
	}
	return in, nil
}

func (s *SQLStore) ListInteractions(ctx context.Context, reportID string) ([]models.ReportInteraction, error) {
	rows, err := s.db.QueryContext(ctx, s.q(`
		SELECT `+interactionColumns+` FROM report_interaction
		WHERE report_id = $1
		ORDER BY created_at, user_id
	`), reportID)
	if err != nil {
		return nil, fmt.Errorf("list interactions: %w", err)
	}
	defer rows.Close()

	out := []models.ReportInteraction{}
	for rows.Next() {
		in, err := scanInteraction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan interaction: %w", err)
		}
		out = append(out, in)
	}
	return out, rows.Err()
}

func (s *SQLStore) SaveInteraction(ctx context.Context, r *models.Report, in models.ReportInteraction) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin interaction: %w", err)
	}
	defer tx.Rollback()

	if err := s.updateReport(ctx, tx, r); err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, s.q(`
		INSERT INTO report_interaction (`+interactionColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (report_id, user_id) DO UPDATE
		SET interaction_type = excluded.interaction_type,
		    user_trust_score = excluded.user_trust_score,
		    weight = excluded.weight,
		    updated_at = excluded.updated_at
	`), in.ID, in.ReportID, in.UserID, in.InteractionType, in.UserTrustScore, in.Weight, micros(in.CreatedAt), micros(in.UpdatedAt))
	if err != nil {
		return fmt.Errorf("upsert interaction: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit interaction: %w", err)
	}
	r.Version++
	return nil
}
