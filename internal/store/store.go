package store

import "context"

// Store defines the interface for reference case and check run storage
type Store interface {
	// Reference cases
	AddCase(ctx context.Context, c *ReferenceCase) (*ReferenceCase, error)
	GetCase(ctx context.Context, id int64) (*ReferenceCase, error)
	ListCases(ctx context.Context) ([]*ReferenceCase, error)
	DeleteCase(ctx context.Context, id int64) error
	ImportCases(ctx context.Context, cases []*ReferenceCase) (int, error)
	CountCases(ctx context.Context) (int, error)

	// Check runs
	SaveRun(ctx context.Context, run *CheckRun, results []*CheckResult) error
	GetRun(ctx context.Context, id string) (*CheckRun, error)
	ListRuns(ctx context.Context) ([]*CheckRun, error)
	GetResults(ctx context.Context, runID string) ([]*CheckResult, error)

	// Settings
	GetSetting(ctx context.Context, key string) (string, error)
	SetSetting(ctx context.Context, key, value string) error

	// Lifecycle
	Close() error
}

var _ Store = (*SQLiteStore)(nil)
