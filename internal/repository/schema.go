package repository

// Times are unix milliseconds in both dialects. Options are a JSON array.

var postgresSchema = []string{
	`CREATE TABLE IF NOT EXISTS markets (
		id                  TEXT PRIMARY KEY,
		seq                 BIGINT  NOT NULL UNIQUE,
		subject             TEXT    NOT NULL,
		question            TEXT    NOT NULL,
		options             TEXT    NOT NULL,
		status              TEXT    NOT NULL DEFAULT 'open',
		created_at          BIGINT  NOT NULL,
		expires_at          BIGINT  NOT NULL,
		outcome             TEXT,
		price_at_resolution NUMERIC,
		resolved_at         BIGINT
	)`,
	`CREATE TABLE IF NOT EXISTS stakes (
		id          TEXT PRIMARY KEY,
		market_id   TEXT    NOT NULL REFERENCES markets(id),
		seq         INTEGER NOT NULL,
		agent_id    TEXT    NOT NULL,
		position    TEXT    NOT NULL,
		amount      NUMERIC NOT NULL,
		confidence  INTEGER NOT NULL,
		reasoning   TEXT    NOT NULL DEFAULT '',
		created_at  BIGINT  NOT NULL,
		UNIQUE (market_id, seq)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_stakes_agent ON stakes(agent_id)`,
}

// SQLite has no arbitrary-precision numeric type, so amounts are kept as
// their decimal string.
var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS markets (
		id                  TEXT PRIMARY KEY,
		seq                 INTEGER NOT NULL UNIQUE,
		subject             TEXT    NOT NULL,
		question            TEXT    NOT NULL,
		options             TEXT    NOT NULL,
		status              TEXT    NOT NULL DEFAULT 'open',
		created_at          INTEGER NOT NULL,
		expires_at          INTEGER NOT NULL,
		outcome             TEXT,
		price_at_resolution TEXT,
		resolved_at         INTEGER
	)`,
	`CREATE TABLE IF NOT EXISTS stakes (
		id          TEXT PRIMARY KEY,
		market_id   TEXT    NOT NULL REFERENCES markets(id),
		seq         INTEGER NOT NULL,
		agent_id    TEXT    NOT NULL,
		position    TEXT    NOT NULL,
		amount      TEXT    NOT NULL,
		confidence  INTEGER NOT NULL,
		reasoning   TEXT    NOT NULL DEFAULT '',
		created_at  INTEGER NOT NULL,
		UNIQUE (market_id, seq)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_stakes_agent ON stakes(agent_id)`,
}
