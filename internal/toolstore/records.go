package toolstore

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
)

// Record is a generic row payload returned by every operation.
type Record = map[string]any

// GetRecord fetches one customer by ID. Returns ErrNotFound if absent.
// Reads never mutate the store, calling twice with the same ID is safe.
func (s *Store) GetRecord(ctx context.Context, id int64) (Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.conn.QueryRowContext(ctx, `
		SELECT id, name, email, phone, status, plan FROM customers WHERE id = ?
	`, id)
	rec, err := scanCustomer(row)
	if err == sql.ErrNoRows {
		return nil, NotFoundf("customer %d", id)
	}
	if err != nil {
		return nil, fmt.Errorf("get customer %d: %w", id, err)
	}
	return rec, nil
}

// ListFilter narrows ListRecords results.
type ListFilter struct {
	// Status filters customers by status when non-empty.
	Status string
	// Plan filters customers by plan when non-empty.
	Plan string
	// Limit caps the number of rows; non-positive means the default of 20.
	Limit int
}

// ListRecords returns customers matching the filter, ordered by ID.
func (s *Store) ListRecords(ctx context.Context, filter ListFilter) ([]Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}

	query := "SELECT id, name, email, phone, status, plan FROM customers"
	var args []any
	switch {
	case filter.Status != "" && filter.Plan != "":
		query += " WHERE status = ? AND plan = ?"
		args = append(args, filter.Status, filter.Plan)
	case filter.Status != "":
		query += " WHERE status = ?"
		args = append(args, filter.Status)
	case filter.Plan != "":
		query += " WHERE plan = ?"
		args = append(args, filter.Plan)
	}
	query += " ORDER BY id LIMIT ?"
	args = append(args, limit)

	rows, err := s.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list customers: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		rec, err := scanCustomer(rows)
		if err != nil {
			return nil, fmt.Errorf("scan customer: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// updatableCustomerFields whitelists what UpdateRecord may change.
var updatableCustomerFields = map[string]bool{
	"name":   true,
	"email":  true,
	"phone":  true,
	"status": true,
	"plan":   true,
}

// UpdateRecord changes the given fields of one customer and returns the
// updated row. Unknown fields are rejected with a ValidationError.
func (s *Store) UpdateRecord(ctx context.Context, id int64, fields map[string]any) (Record, error) {
	if len(fields) == 0 {
		return nil, &ValidationError{Field: "fields", Reason: "no fields to update"}
	}
	for name := range fields {
		if !updatableCustomerFields[name] {
			return nil, &ValidationError{Field: name, Reason: "field is not updatable"}
		}
	}

	s.mu.Lock()
	query := "UPDATE customers SET "
	var args []any
	first := true
	for _, name := range []string{"name", "email", "phone", "status", "plan"} {
		val, ok := fields[name]
		if !ok {
			continue
		}
		if !first {
			query += ", "
		}
		query += name + " = ?"
		args = append(args, val)
		first = false
	}
	query += " WHERE id = ?"
	args = append(args, id)

	res, err := s.conn.ExecContext(ctx, query, args...)
	s.mu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("update customer %d: %w", id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("update customer %d: %w", id, err)
	}
	if affected == 0 {
		return nil, NotFoundf("customer %d", id)
	}

	return s.GetRecord(ctx, id)
}

// CreateEntry inserts a ticket for a customer and returns it with its
// assigned ID. The customer must exist.
func (s *Store) CreateEntry(ctx context.Context, fields map[string]any) (Record, error) {
	customerID, err := toInt64(fields["customer_id"])
	if err != nil {
		return nil, &ValidationError{Field: "customer_id", Reason: "must be an integer"}
	}
	issue, _ := fields["issue"].(string)
	if issue == "" {
		return nil, &ValidationError{Field: "issue", Reason: "must be a non-empty string"}
	}
	priority, _ := fields["priority"].(string)
	if priority == "" {
		priority = "normal"
	}

	if _, err := s.GetRecord(ctx, customerID); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.conn.ExecContext(ctx, `
		INSERT INTO tickets (customer_id, issue, priority, status)
		VALUES (?, ?, ?, 'open')
	`, customerID, issue, priority)
	if err != nil {
		return nil, fmt.Errorf("create ticket: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("create ticket: %w", err)
	}

	return Record{
		"id":          id,
		"customer_id": customerID,
		"issue":       issue,
		"priority":    priority,
		"status":      "open",
	}, nil
}

// GetRelated returns the tickets belonging to a customer, newest first.
// Returns ErrNotFound if the customer does not exist.
func (s *Store) GetRelated(ctx context.Context, id int64) ([]Record, error) {
	if _, err := s.GetRecord(ctx, id); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.conn.QueryContext(ctx, `
		SELECT id, customer_id, issue, priority, status FROM tickets
		WHERE customer_id = ? ORDER BY id DESC
	`, id)
	if err != nil {
		return nil, fmt.Errorf("get tickets for customer %d: %w", id, err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var (
			tid, cid         int64
			issue, pri, stat string
		)
		if err := rows.Scan(&tid, &cid, &issue, &pri, &stat); err != nil {
			return nil, fmt.Errorf("scan ticket: %w", err)
		}
		records = append(records, Record{
			"id":          tid,
			"customer_id": cid,
			"issue":       issue,
			"priority":    pri,
			"status":      stat,
		})
	}
	return records, rows.Err()
}

// RecordsByAttr returns the tickets matching one attribute filter, newest
// first. Only priority and status can be filtered on.
func (s *Store) RecordsByAttr(ctx context.Context, attr, value string) ([]Record, error) {
	var column string
	switch attr {
	case "priority", "status":
		column = attr
	default:
		return nil, &ValidationError{Field: "attr", Reason: fmt.Sprintf("cannot filter tickets by %q", attr)}
	}
	if value == "" {
		return nil, &ValidationError{Field: "value", Reason: "must be a non-empty string"}
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.conn.QueryContext(ctx, `
		SELECT id, customer_id, issue, priority, status FROM tickets
		WHERE `+column+` = ? ORDER BY id DESC
	`, value)
	if err != nil {
		return nil, fmt.Errorf("tickets by %s: %w", attr, err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var (
			tid, cid         int64
			issue, pri, stat string
		)
		if err := rows.Scan(&tid, &cid, &issue, &pri, &stat); err != nil {
			return nil, fmt.Errorf("scan ticket: %w", err)
		}
		records = append(records, Record{
			"id":          tid,
			"customer_id": cid,
			"issue":       issue,
			"priority":    pri,
			"status":      stat,
		})
	}
	return records, rows.Err()
}

// scanner covers both sql.Row and sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanCustomer(row scanner) (Record, error) {
	var (
		id           int64
		name, status string
		plan         string
		email, phone sql.NullString
	)
	if err := row.Scan(&id, &name, &email, &phone, &status, &plan); err != nil {
		return nil, err
	}
	rec := Record{
		"id":     id,
		"name":   name,
		"status": status,
		"plan":   plan,
	}
	if email.Valid {
		rec["email"] = email.String
	}
	if phone.Valid {
		rec["phone"] = phone.String
	}
	return rec, nil
}

// toInt64 accepts the numeric shapes JSON decoding and direct calls produce.
func toInt64(v any) (int64, error) {
	switch n := v.(type) {
	case int64:
		return n, nil
	case int:
		return int64(n), nil
	case float64:
		return int64(n), nil
	case string:
		return strconv.ParseInt(n, 10, 64)
	default:
		return 0, fmt.Errorf("not a number: %v", v)
	}
}
