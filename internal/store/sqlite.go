package store

import (
	"database/sql"
	"encoding/json"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

type DB struct {
	*sql.DB
}

func Open(path string) (*DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}

	// Create events table
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS events(
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		ts REAL,
		level TEXT,
		code TEXT,
		msg TEXT,
		meta TEXT
	)`); err != nil {
		return nil, err
	}

	// Create predictions table with per-request telemetry
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS predictions(
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		ts REAL,
		trace_id TEXT,
		req_id TEXT,
		worker_id TEXT,
		source TEXT,
		reply_to TEXT,
		features_json TEXT,
		feature_count INTEGER,
		probability REAL,
		risk_level TEXT,
		attribution_method TEXT,
		dur_ms REAL,
		status TEXT,
		error TEXT
	)`); err != nil {
		return nil, err
	}

	return &DB{db}, nil
}

func (db *DB) Event(level, code, msg string, meta map[string]interface{}) {
	m := ""
	if meta != nil {
		b, _ := json.Marshal(meta)
		m = string(b)
	}
	_, _ = db.Exec(`INSERT INTO events(ts,level,code,msg,meta) VALUES(?,?,?,?,?)`,
		float64(time.Now().UnixNano())/1e9, level, code, msg, m)
}

func (db *DB) Prediction(start time.Time, traceID, reqID, workerID, source, replyTo, featuresJSON string,
	featureCount int, probability float64, riskLevel, attributionMethod string,
	dur time.Duration, status, errStr string) {
	_, _ = db.Exec(`INSERT INTO predictions(
		ts, trace_id, req_id, worker_id, source, reply_to, features_json, feature_count, probability, risk_level, attribution_method, dur_ms, status, error)
		VALUES(?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		float64(start.UnixNano())/1e9, traceID, reqID, workerID, source, replyTo, featuresJSON, featureCount, probability, riskLevel, attributionMethod, float64(dur.Milliseconds()), status, errStr)
}
