package store

import "context"

const schema = `
CREATE TABLE IF NOT EXISTS definitions (
	constant TEXT PRIMARY KEY,
	path     TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_definitions_path ON definitions(path);
`

func (s *SQLiteStore) initSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, schema)
	return err
}
