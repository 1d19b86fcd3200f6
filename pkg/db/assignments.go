package db

import (
	"context"
	"database/sql"
	"fmt"
)

// Assignment is a persisted controller number binding, keyed by the
// stable hardware identifier (GUID plus instance id).
type Assignment struct {
	Identifier     string
	AssignedNumber int
	InputMethod    string
	DisplayName    string
	LastSeen       string
}

// Assignments returns the assignment store for this database.
// It satisfies controller.AssignmentStore.
func (db *DB) Assignments() *AssignmentDB {
	return &AssignmentDB{db: db}
}

// AssignmentDB provides controller assignment persistence.
type AssignmentDB struct {
	db *DB
}

// SaveAssignment upserts an assignment. Because assigned numbers are
// unique, any other controller currently holding the number loses it
// in the same transaction.
func (a *AssignmentDB) SaveAssignment(ctx context.Context, identifier string, number int, method string) error {
	return a.db.Tx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			DELETE FROM controller_assignments
			WHERE assigned_number = ? AND identifier != ?
		`, number, identifier)
		if err != nil {
			return fmt.Errorf("failed to free controller number: %w", err)
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO controller_assignments (identifier, assigned_number, input_method, last_seen)
			VALUES (?, ?, ?, datetime('now'))
			ON CONFLICT(identifier) DO UPDATE SET
				assigned_number = excluded.assigned_number,
				input_method = excluded.input_method,
				last_seen = datetime('now')
		`, identifier, number, method)
		if err != nil {
			return fmt.Errorf("failed to save assignment: %w", err)
		}

		return nil
	})
}

// DeleteAssignment removes an assignment. Deleting a missing identifier
// is not an error.
func (a *AssignmentDB) DeleteAssignment(ctx context.Context, identifier string) error {
	_, err := a.db.ExecContext(ctx, `
		DELETE FROM controller_assignments WHERE identifier = ?
	`, identifier)
	if err != nil {
		return fmt.Errorf("failed to delete assignment: %w", err)
	}
	return nil
}

// LoadAssignments returns all persisted identifier to number bindings.
func (a *AssignmentDB) LoadAssignments(ctx context.Context) (map[string]int, error) {
	rows, err := a.db.QueryContext(ctx, `
		SELECT identifier, assigned_number FROM controller_assignments
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to load assignments: %w", err)
	}
	defer rows.Close()

	out := make(map[string]int)
	for rows.Next() {
		var identifier string
		var number int
		if err := rows.Scan(&identifier, &number); err != nil {
			return nil, fmt.Errorf("failed to scan assignment: %w", err)
		}
		out[identifier] = number
	}
	return out, rows.Err()
}

// List returns all assignments with full metadata, ordered by number.
func (a *AssignmentDB) List(ctx context.Context) ([]*Assignment, error) {
	rows, err := a.db.QueryContext(ctx, `
		SELECT identifier, assigned_number, input_method, display_name, last_seen
		FROM controller_assignments
		ORDER BY assigned_number
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list assignments: %w", err)
	}
	defer rows.Close()

	var out []*Assignment
	for rows.Next() {
		asn := &Assignment{}
		if err := rows.Scan(&asn.Identifier, &asn.AssignedNumber, &asn.InputMethod, &asn.DisplayName, &asn.LastSeen); err != nil {
			return nil, fmt.Errorf("failed to scan assignment: %w", err)
		}
		out = append(out, asn)
	}
	return out, rows.Err()
}
