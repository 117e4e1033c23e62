package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	log "github.com/sirupsen/logrus"

	"feedflow/internal/models"
)

// Store is the local persistence layer: plain settings, community lists,
// content-addressed snapshots of topic lists and thread details, bookmarks
// and AI summaries. All snapshot rows carry a timestamp; freshness is the
// caller's policy, checked as now - timestamp < maxAge.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the database file and ensures the schema.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// Single writer avoids SQLITE_BUSY under concurrent adapter writes.
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	s := &Store{db: db}
	if err := s.createTables(); err != nil {
		return nil, fmt.Errorf("create tables: %w", err)
	}
	log.Infof("store ready at %s", path)
	return s, nil
}

func (s *Store) createTables() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS settings (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS communities (
			id TEXT NOT NULL,
			source_id TEXT NOT NULL,
			name TEXT NOT NULL,
			description TEXT NOT NULL,
			category TEXT NOT NULL,
			active_today INTEGER DEFAULT 0,
			online_now INTEGER DEFAULT 0,
			PRIMARY KEY (id, source_id)
		)`,
		`CREATE TABLE IF NOT EXISTS cached_topics (
			cache_key TEXT PRIMARY KEY,
			data TEXT NOT NULL,
			timestamp INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS cached_threads (
			thread_id TEXT PRIMARY KEY,
			data TEXT NOT NULL,
			timestamp INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS bookmarks (
			thread_id TEXT NOT NULL,
			source_id TEXT NOT NULL,
			data TEXT NOT NULL,
			timestamp INTEGER NOT NULL,
			PRIMARY KEY (thread_id, source_id)
		)`,
		`CREATE TABLE IF NOT EXISTS url_bookmarks (
			url TEXT PRIMARY KEY,
			title TEXT NOT NULL,
			timestamp INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS ai_summaries (
			key TEXT PRIMARY KEY,
			summary TEXT NOT NULL,
			created_at INTEGER NOT NULL
		)`,
	}
	for _, q := range queries {
		if _, err := s.db.Exec(q); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// --- settings ---

func (s *Store) GetSetting(key string) (string, bool) {
	var v string
	err := s.db.QueryRow(`SELECT value FROM settings WHERE key = ?`, key).Scan(&v)
	if err != nil {
		return "", false
	}
	return v, true
}

func (s *Store) SetSetting(key, value string) error {
	_, err := s.db.Exec(`INSERT OR REPLACE INTO settings (key, value) VALUES (?, ?)`, key, value)
	return err
}

func (s *Store) DeleteSetting(key string) error {
	_, err := s.db.Exec(`DELETE FROM settings WHERE key = ?`, key)
	return err
}

// --- communities ---

// SaveCommunities replaces the community list for a source in one
// transaction so readers never observe a half-written list.
func (s *Store) SaveCommunities(sourceID string, communities []models.Community) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM communities WHERE source_id = ?`, sourceID); err != nil {
		return err
	}
	stmt, err := tx.Prepare(`INSERT OR REPLACE INTO communities
		(id, source_id, name, description, category, active_today, online_now)
		VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for _, c := range communities {
		if _, err := stmt.Exec(c.ID, sourceID, c.Name, c.Description, c.Category, c.ActiveToday, c.OnlineNow); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *Store) Communities(sourceID string) ([]models.Community, error) {
	rows, err := s.db.Query(`SELECT id, name, description, category, active_today, online_now
		FROM communities WHERE source_id = ?`, sourceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Community
	for rows.Next() {
		c := models.Community{SourceID: sourceID}
		if err := rows.Scan(&c.ID, &c.Name, &c.Description, &c.Category, &c.ActiveToday, &c.OnlineNow); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// --- topic list cache ---

// TopicKey builds the cache key for a (source, community, page) listing.
func TopicKey(sourceID, communityID string, page int) string {
	return fmt.Sprintf("%s_%s_page%d", sourceID, communityID, page)
}

func (s *Store) SaveTopicList(cacheKey string, threads []models.Thread) error {
	data, err := json.Marshal(threads)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(`INSERT OR REPLACE INTO cached_topics (cache_key, data, timestamp) VALUES (?, ?, ?)`,
		cacheKey, string(data), time.Now().Unix())
	return err
}

// TopicList returns the cached listing if present and fresh. A maxAge of
// zero or less disables the freshness check, which serves the stale-over-
// error policy.
func (s *Store) TopicList(cacheKey string, maxAge time.Duration) ([]models.Thread, bool) {
	var data string
	var ts int64
	err := s.db.QueryRow(`SELECT data, timestamp FROM cached_topics WHERE cache_key = ?`, cacheKey).Scan(&data, &ts)
	if err != nil {
		return nil, false
	}
	if maxAge > 0 && time.Since(time.Unix(ts, 0)) >= maxAge {
		return nil, false
	}
	var threads []models.Thread
	if err := json.Unmarshal([]byte(data), &threads); err != nil {
		log.Warnf("cached topic list %s undecodable: %v", cacheKey, err)
		return nil, false
	}
	return threads, true
}

func (s *Store) DeleteTopicList(cacheKey string) error {
	_, err := s.db.Exec(`DELETE FROM cached_topics WHERE cache_key = ?`, cacheKey)
	return err
}

// --- thread detail cache ---

func (s *Store) SaveThreadDetail(threadID string, detail models.ThreadDetail) error {
	data, err := json.Marshal(detail)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(`INSERT OR REPLACE INTO cached_threads (thread_id, data, timestamp) VALUES (?, ?, ?)`,
		threadID, string(data), time.Now().Unix())
	return err
}

func (s *Store) ThreadDetail(threadID string, maxAge time.Duration) (models.ThreadDetail, bool) {
	var data string
	var ts int64
	err := s.db.QueryRow(`SELECT data, timestamp FROM cached_threads WHERE thread_id = ?`, threadID).Scan(&data, &ts)
	if err != nil {
		return models.ThreadDetail{}, false
	}
	if maxAge > 0 && time.Since(time.Unix(ts, 0)) >= maxAge {
		return models.ThreadDetail{}, false
	}
	var detail models.ThreadDetail
	if err := json.Unmarshal([]byte(data), &detail); err != nil {
		log.Warnf("cached thread %s undecodable: %v", threadID, err)
		return models.ThreadDetail{}, false
	}
	return detail, true
}

func (s *Store) HasThreadDetail(threadID string) bool {
	var one int
	err := s.db.QueryRow(`SELECT 1 FROM cached_threads WHERE thread_id = ?`, threadID).Scan(&one)
	return err == nil
}

func (s *Store) DeleteThreadDetail(threadID string) error {
	_, err := s.db.Exec(`DELETE FROM cached_threads WHERE thread_id = ?`, threadID)
	return err
}

// --- bookmarks ---

// ToggleBookmark adds the thread snapshot if absent, removes it if present,
// and reports the resulting state. Bookmarks never expire and survive cache
// eviction because they carry the full snapshot.
func (s *Store) ToggleBookmark(sourceID string, thread models.Thread) (bool, error) {
	var one int
	err := s.db.QueryRow(`SELECT 1 FROM bookmarks WHERE thread_id = ? AND source_id = ?`,
		thread.ID, sourceID).Scan(&one)
	if err == nil {
		_, err = s.db.Exec(`DELETE FROM bookmarks WHERE thread_id = ? AND source_id = ?`, thread.ID, sourceID)
		return false, err
	}
	if err != sql.ErrNoRows {
		return false, err
	}
	data, err := json.Marshal(thread)
	if err != nil {
		return false, err
	}
	_, err = s.db.Exec(`INSERT OR REPLACE INTO bookmarks (thread_id, source_id, data, timestamp) VALUES (?, ?, ?, ?)`,
		thread.ID, sourceID, string(data), time.Now().Unix())
	return true, err
}

func (s *Store) IsBookmarked(sourceID, threadID string) bool {
	var one int
	err := s.db.QueryRow(`SELECT 1 FROM bookmarks WHERE thread_id = ? AND source_id = ?`, threadID, sourceID).Scan(&one)
	return err == nil
}

// Bookmark pairs a thread snapshot with the source it came from.
type Bookmark struct {
	SourceID string        `json:"source_id"`
	Thread   models.Thread `json:"thread"`
	SavedAt  time.Time     `json:"saved_at"`
}

func (s *Store) Bookmarks() ([]Bookmark, error) {
	rows, err := s.db.Query(`SELECT source_id, data, timestamp FROM bookmarks ORDER BY timestamp DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Bookmark
	for rows.Next() {
		var b Bookmark
		var data string
		var ts int64
		if err := rows.Scan(&b.SourceID, &data, &ts); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(data), &b.Thread); err != nil {
			log.Warnf("bookmark snapshot undecodable, skipping: %v", err)
			continue
		}
		b.SavedAt = time.Unix(ts, 0)
		out = append(out, b)
	}
	return out, rows.Err()
}

// --- url bookmarks ---

type URLBookmark struct {
	URL     string    `json:"url"`
	Title   string    `json:"title"`
	SavedAt time.Time `json:"saved_at"`
}

func (s *Store) SaveURLBookmark(url, title string) error {
	_, err := s.db.Exec(`INSERT OR REPLACE INTO url_bookmarks (url, title, timestamp) VALUES (?, ?, ?)`,
		url, title, time.Now().Unix())
	return err
}

func (s *Store) DeleteURLBookmark(url string) error {
	_, err := s.db.Exec(`DELETE FROM url_bookmarks WHERE url = ?`, url)
	return err
}

func (s *Store) URLBookmarks() ([]URLBookmark, error) {
	rows, err := s.db.Query(`SELECT url, title, timestamp FROM url_bookmarks ORDER BY timestamp DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []URLBookmark
	for rows.Next() {
		var b URLBookmark
		var ts int64
		if err := rows.Scan(&b.URL, &b.Title, &ts); err != nil {
			return nil, err
		}
		b.SavedAt = time.Unix(ts, 0)
		out = append(out, b)
	}
	return out, rows.Err()
}

// --- AI summaries ---

func (s *Store) SaveSummary(key, summary string) error {
	_, err := s.db.Exec(`INSERT OR REPLACE INTO ai_summaries (key, summary, created_at) VALUES (?, ?, ?)`,
		key, summary, time.Now().Unix())
	return err
}

func (s *Store) SummaryIfFresh(key string, maxAge time.Duration) (string, bool) {
	var summary string
	var ts int64
	err := s.db.QueryRow(`SELECT summary, created_at FROM ai_summaries WHERE key = ?`, key).Scan(&summary, &ts)
	if err != nil {
		return "", false
	}
	if maxAge > 0 && time.Since(time.Unix(ts, 0)) >= maxAge {
		return "", false
	}
	return summary, true
}
