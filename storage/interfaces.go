package storage

import (
	"context"

	"flipscout/models"
)

// TableWriter appends named tables to an append-only tabular store. Each
// Append writes the header row and the data rows of one table as a single
// unit; existing rows are never updated, so reruns add duplicate rows.
type TableWriter interface {
	Append(ctx context.Context, t models.Table) error
	Close() error
}
