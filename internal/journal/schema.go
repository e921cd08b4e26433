package journal

const Schema = `
CREATE TABLE IF NOT EXISTS runs (
	run_id TEXT PRIMARY KEY,
	model TEXT NOT NULL,
	mode TEXT NOT NULL,
	parse_mode TEXT NOT NULL,
	started_at DATETIME NOT NULL,
	instructions INTEGER NOT NULL,
	rejections INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS outcomes (
	run_id TEXT NOT NULL,
	row_num INTEGER NOT NULL,
	action TEXT NOT NULL,
	ticker TEXT NOT NULL,
	state TEXT NOT NULL,
	protection TEXT NOT NULL,
	dry_run INTEGER NOT NULL,
	message TEXT NOT NULL,
	order_ids TEXT NOT NULL,
	recorded_at DATETIME NOT NULL,
	PRIMARY KEY (run_id, row_num)
);

CREATE INDEX IF NOT EXISTS idx_outcomes_ticker ON outcomes(ticker, recorded_at);
`
