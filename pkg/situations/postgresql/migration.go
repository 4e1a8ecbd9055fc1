package postgresql

// migrations returns the schema migrations for the situation store, keyed by
// version.
func migrations() map[int]string {
	return map[int]string{
		1: `
			CREATE TABLE IF NOT EXISTS situations (
				id TEXT PRIMARY KEY,
				type TEXT NOT NULL,
				severity TEXT NOT NULL,
				subject TEXT NOT NULL DEFAULT '',
				description TEXT NOT NULL DEFAULT '',
				timestamp TIMESTAMP WITH TIME ZONE NOT NULL,
				situation_properties JSONB NOT NULL DEFAULT '{}',
				properties JSONB NOT NULL DEFAULT '{}'
			);

			CREATE INDEX IF NOT EXISTS idx_situations_type ON situations (type);
			CREATE INDEX IF NOT EXISTS idx_situations_severity ON situations (severity);
			CREATE INDEX IF NOT EXISTS idx_situations_timestamp ON situations (timestamp DESC);
			CREATE INDEX IF NOT EXISTS idx_situations_resolution
				ON situations ((properties ->> 'resolutionState'));
		`,
	}
}
