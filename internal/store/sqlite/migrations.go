package sqlite

// RunMigrations creates the run_items table used by a single run's
// SQLite database.
var RunMigrations = []string{
	`CREATE TABLE run_items (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL,
		query_id TEXT NOT NULL DEFAULT '',
		query_text TEXT NOT NULL DEFAULT '',
		search_query TEXT NOT NULL DEFAULT '',
		domain TEXT NOT NULL DEFAULT '',
		raw_url TEXT NOT NULL DEFAULT '',
		final_url TEXT NOT NULL DEFAULT '',
		normalized_url TEXT NOT NULL DEFAULT '',
		title TEXT NOT NULL DEFAULT '',
		snippet TEXT NOT NULL DEFAULT '',
		visible_text TEXT NOT NULL DEFAULT '',
		raw_html_path TEXT NOT NULL DEFAULT '',
		fetch_error TEXT NOT NULL DEFAULT '',
		extract_error TEXT NOT NULL DEFAULT '',
		normalization_error TEXT NOT NULL DEFAULT '',
		skip_reason TEXT NOT NULL DEFAULT '',
		relevance_score REAL,
		score_version TEXT NOT NULL DEFAULT '',
		scored_at TEXT,
		is_duplicate INTEGER NOT NULL DEFAULT 0,
		is_hidden INTEGER NOT NULL DEFAULT 0,
		canonical_id INTEGER,
		duplicate_count INTEGER NOT NULL DEFAULT 0,
		cache_key TEXT NOT NULL DEFAULT '',
		cached_at TEXT,
		cache_expires_at TEXT,
		last_seen_at TEXT,
		created_at TEXT NOT NULL
	)`,
	`CREATE INDEX idx_run_items_normalized_url ON run_items(normalized_url)`,
	`CREATE INDEX idx_run_items_cache_key ON run_items(cache_key)`,
	`CREATE INDEX idx_run_items_raw_url ON run_items(raw_url)`,
}

// EvaluationMigrations creates the shared evaluations.db schema:
// evaluation runs/results, the active-model pointer, activation
// history, and retrain jobs.
var EvaluationMigrations = []string{
	`CREATE TABLE evaluation_runs (
		evaluation_id TEXT PRIMARY KEY,
		dataset_id TEXT NOT NULL,
		eval_workers INTEGER NOT NULL,
		total_models INTEGER NOT NULL,
		completed_models INTEGER NOT NULL DEFAULT 0,
		failed_models INTEGER NOT NULL DEFAULT 0,
		status TEXT NOT NULL,
		started_at TEXT NOT NULL,
		completed_at TEXT
	)`,
	`CREATE TABLE evaluation_results (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		evaluation_id TEXT NOT NULL,
		model_id TEXT NOT NULL,
		model_version TEXT NOT NULL,
		dataset_id TEXT NOT NULL,
		status TEXT NOT NULL,
		metrics_json TEXT NOT NULL,
		error TEXT NOT NULL DEFAULT '',
		duration_ms INTEGER NOT NULL DEFAULT 0,
		created_at TEXT NOT NULL
	)`,
	`CREATE TABLE active_model (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		model_id TEXT NOT NULL,
		model_version TEXT NOT NULL,
		activated_by TEXT NOT NULL,
		activated_at TEXT NOT NULL
	)`,
	`CREATE TABLE activation_history (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		model_id TEXT NOT NULL,
		model_version TEXT NOT NULL,
		action TEXT NOT NULL,
		activated_by TEXT NOT NULL,
		created_at TEXT NOT NULL
	)`,
	`CREATE TABLE retrain_jobs (
		id TEXT PRIMARY KEY,
		model_id TEXT NOT NULL,
		triggered_by TEXT NOT NULL,
		status TEXT NOT NULL,
		new_version TEXT NOT NULL DEFAULT '',
		reason TEXT NOT NULL DEFAULT '',
		started_at TEXT NOT NULL,
		completed_at TEXT
	)`,
	`CREATE TABLE quota_usage (
		day TEXT NOT NULL,
		run_id TEXT NOT NULL,
		count INTEGER NOT NULL DEFAULT 0,
		PRIMARY KEY (day, run_id)
	)`,
}
