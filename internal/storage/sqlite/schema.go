package sqlite

// schema defines all tables. Timestamps are stored as RFC3339 UTC strings.
// Every table carries team_id so reads and writes can be scoped in one
// WHERE clause; name/key uniqueness is per team.
const schema = `
CREATE TABLE IF NOT EXISTS teams (
	id         TEXT PRIMARY KEY,
	name       TEXT NOT NULL,
	key        TEXT NOT NULL,
	created_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS memberships (
	team_id   TEXT NOT NULL REFERENCES teams(id) ON DELETE CASCADE,
	user_id   TEXT NOT NULL,
	user_name TEXT NOT NULL DEFAULT '',
	email     TEXT NOT NULL DEFAULT '',
	role      TEXT NOT NULL,
	joined_at TEXT NOT NULL,
	PRIMARY KEY (team_id, user_id)
);

CREATE TABLE IF NOT EXISTS workflow_states (
	id       TEXT PRIMARY KEY,
	team_id  TEXT NOT NULL REFERENCES teams(id) ON DELETE CASCADE,
	name     TEXT NOT NULL COLLATE NOCASE,
	type     TEXT NOT NULL,
	color    TEXT NOT NULL DEFAULT '',
	position INTEGER NOT NULL DEFAULT 0,
	UNIQUE (team_id, name)
);

CREATE TABLE IF NOT EXISTS labels (
	id      TEXT PRIMARY KEY,
	team_id TEXT NOT NULL REFERENCES teams(id) ON DELETE CASCADE,
	name    TEXT NOT NULL COLLATE NOCASE,
	color   TEXT NOT NULL DEFAULT '',
	UNIQUE (team_id, name)
);

CREATE TABLE IF NOT EXISTS projects (
	id        TEXT PRIMARY KEY,
	team_id   TEXT NOT NULL REFERENCES teams(id) ON DELETE CASCADE,
	name      TEXT NOT NULL COLLATE NOCASE,
	key       TEXT NOT NULL,
	color     TEXT NOT NULL DEFAULT '',
	icon      TEXT NOT NULL DEFAULT '',
	status    TEXT NOT NULL DEFAULT 'active',
	lead_id   TEXT NOT NULL DEFAULT '',
	lead_name TEXT NOT NULL DEFAULT '',
	UNIQUE (team_id, name),
	UNIQUE (team_id, key)
);

CREATE TABLE IF NOT EXISTS issues (
	id            TEXT PRIMARY KEY,
	team_id       TEXT NOT NULL REFERENCES teams(id) ON DELETE CASCADE,
	number        INTEGER NOT NULL,
	title         TEXT NOT NULL,
	description   TEXT NOT NULL DEFAULT '',
	priority      TEXT NOT NULL DEFAULT 'none',
	estimate      REAL,
	project_id    TEXT NOT NULL DEFAULT '',
	state_id      TEXT NOT NULL,
	assignee_id   TEXT NOT NULL DEFAULT '',
	assignee_name TEXT NOT NULL DEFAULT '',
	creator_id    TEXT NOT NULL,
	creator_name  TEXT NOT NULL DEFAULT '',
	completed_at  TEXT,
	created_at    TEXT NOT NULL,
	updated_at    TEXT NOT NULL,
	UNIQUE (team_id, number)
);

CREATE INDEX IF NOT EXISTS idx_issues_team ON issues(team_id);
CREATE INDEX IF NOT EXISTS idx_issues_team_state ON issues(team_id, state_id);

CREATE TABLE IF NOT EXISTS issue_labels (
	team_id  TEXT NOT NULL,
	issue_id TEXT NOT NULL REFERENCES issues(id) ON DELETE CASCADE,
	label_id TEXT NOT NULL REFERENCES labels(id) ON DELETE CASCADE,
	PRIMARY KEY (issue_id, label_id)
);

CREATE TABLE IF NOT EXISTS comments (
	id          TEXT PRIMARY KEY,
	team_id     TEXT NOT NULL,
	issue_id    TEXT NOT NULL REFERENCES issues(id) ON DELETE CASCADE,
	author_id   TEXT NOT NULL,
	author_name TEXT NOT NULL DEFAULT '',
	body        TEXT NOT NULL,
	created_at  TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_comments_issue ON comments(team_id, issue_id);

CREATE TABLE IF NOT EXISTS invitations (
	id         TEXT PRIMARY KEY,
	team_id    TEXT NOT NULL REFERENCES teams(id) ON DELETE CASCADE,
	email      TEXT NOT NULL COLLATE NOCASE,
	role       TEXT NOT NULL,
	status     TEXT NOT NULL DEFAULT 'pending',
	inviter_id TEXT NOT NULL,
	expires_at TEXT NOT NULL,
	created_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS sessions (
	id         TEXT PRIMARY KEY,
	team_id    TEXT NOT NULL REFERENCES teams(id) ON DELETE CASCADE,
	user_id    TEXT NOT NULL,
	title      TEXT NOT NULL DEFAULT '',
	messages   TEXT NOT NULL DEFAULT '[]',
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_sessions_owner ON sessions(team_id, user_id);
`
