package postgresql

import (
	"database/sql"
	"fmt"

	json "github.com/goccy/go-json"
)

// scanDocuments decodes the single JSONB column of every row.
func scanDocuments[T any](rows *sql.Rows) ([]*T, error) {
	defer func() { _ = rows.Close() }()

	records := make([]*T, 0)

	for rows.Next() {
		var document []byte

		err := rows.Scan(&document)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		var record T

		err = json.Unmarshal(document, &record)
		if err != nil {
			return nil, fmt.Errorf("failed to unmarshal document: %w", err)
		}

		records = append(records, &record)
	}

	err := rows.Err()
	if err != nil {
		return nil, fmt.Errorf("failed to iterate rows: %w", err)
	}

	return records, nil
}

func scanDocument[T any](row *sql.Row) (*T, error) {
	var document []byte

	err := row.Scan(&document)
	if err != nil {
		return nil, err
	}

	var record T

	err = json.Unmarshal(document, &record)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal document: %w", err)
	}

	return &record, nil
}
