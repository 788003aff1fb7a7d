package journal

const schema = `
CREATE TABLE IF NOT EXISTS attempts (
    id TEXT PRIMARY KEY,
    task TEXT NOT NULL,
    target_idx INTEGER NOT NULL,
    step_idx INTEGER NOT NULL,
    step_kind TEXT NOT NULL,
    detail TEXT NOT NULL,
    outcome TEXT NOT NULL,
    started_at TIMESTAMP NOT NULL,
    finished_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_attempts_task ON attempts(task, started_at);
`
