package audit

import (
	"database/sql"
	"encoding/json"
	"log/slog"

	_ "modernc.org/sqlite"
)

// SQLiteSink persists decisions and vetoes using modernc.org/sqlite
// (pure Go). Writes are fire-and-forget: storage errors are logged, not
// returned, because audit logging must never fail admission.
type SQLiteSink struct {
	db *sql.DB
}

// NewSQLiteSink opens or creates the audit database at the given path
// and ensures the schema exists.
func NewSQLiteSink(path string) (*SQLiteSink, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// Enable WAL mode for concurrent reads.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, err
	}

	schema := `
	CREATE TABLE IF NOT EXISTS routing_decisions (
		id          INTEGER PRIMARY KEY AUTOINCREMENT,
		agent       TEXT NOT NULL DEFAULT '',
		task_type   TEXT NOT NULL DEFAULT '',
		provider    TEXT NOT NULL DEFAULT '',
		sensitivity TEXT NOT NULL DEFAULT '',
		policy      TEXT NOT NULL DEFAULT '',
		allowed     INTEGER NOT NULL DEFAULT 0,
		reason      TEXT NOT NULL DEFAULT '',
		decided_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS veto_events (
		id              INTEGER PRIMARY KEY AUTOINCREMENT,
		reason          TEXT NOT NULL DEFAULT '',
		policy_violated TEXT NOT NULL DEFAULT '',
		severity        TEXT NOT NULL DEFAULT '',
		details         TEXT NOT NULL DEFAULT '{}',
		context         TEXT NOT NULL DEFAULT '',
		vetoed_at       DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	);
	`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, err
	}

	return &SQLiteSink{db: db}, nil
}

// LogRoutingDecision inserts one decision row.
func (s *SQLiteSink) LogRoutingDecision(d Decision) {
	_, err := s.db.Exec(
		`INSERT INTO routing_decisions (agent, task_type, provider, sensitivity, policy, allowed, reason, decided_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		d.Agent, d.TaskType, d.Provider, d.Sensitivity, d.Policy, boolToInt(d.Allowed), d.Reason, d.Time)
	if err != nil {
		slog.Warn("audit: store routing decision failed", "error", err)
	}
}

// LogVetoEvent inserts one veto row with details serialized as JSON.
func (s *SQLiteSink) LogVetoEvent(v Veto, context string) {
	details, err := json.Marshal(v.Details)
	if err != nil {
		details = []byte("{}")
	}
	_, err = s.db.Exec(
		`INSERT INTO veto_events (reason, policy_violated, severity, details, context, vetoed_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		v.Reason, v.PolicyViolated, v.Severity, string(details), context, v.Time)
	if err != nil {
		slog.Warn("audit: store veto event failed", "error", err)
	}
}

// RecentDecisions returns up to limit decisions, newest first.
func (s *SQLiteSink) RecentDecisions(limit int) ([]Decision, error) {
	rows, err := s.db.Query(
		`SELECT agent, task_type, provider, sensitivity, policy, allowed, reason, decided_at
		 FROM routing_decisions ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Decision
	for rows.Next() {
		var d Decision
		var allowed int
		if err := rows.Scan(&d.Agent, &d.TaskType, &d.Provider, &d.Sensitivity, &d.Policy, &allowed, &d.Reason, &d.Time); err != nil {
			return nil, err
		}
		d.Allowed = allowed != 0
		out = append(out, d)
	}
	return out, rows.Err()
}

// Close closes the underlying database.
func (s *SQLiteSink) Close() error {
	return s.db.Close()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
