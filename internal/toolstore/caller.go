package toolstore

import (
	"context"
	"fmt"
)

// Caller exposes the store through the generic tool-call contract the data
// worker consumes, so in-process and remote access look identical.
type Caller struct {
	store *Store
}

// NewCaller wraps a store.
func NewCaller(store *Store) *Caller {
	return &Caller{store: store}
}

// Tools lists the operations this service exposes, with short descriptions
// for discovery surfaces.
func Tools() []map[string]string {
	return []map[string]string{
		{"name": "get_record", "description": "Fetch one customer record by ID"},
		{"name": "list_records", "description": "List customer records with optional status, plan and limit filters"},
		{"name": "update_record", "description": "Update fields of one customer record"},
		{"name": "create_entry", "description": "Create a ticket for a customer"},
		{"name": "get_related", "description": "Fetch the tickets related to a customer"},
		{"name": "records_by_attr", "description": "List tickets matching a priority or status value"},
	}
}

// Call dispatches one named operation. Unknown tools and bad arguments
// come back as ValidationError; missing records as ErrNotFound.
func (c *Caller) Call(ctx context.Context, tool string, args map[string]any) (map[string]any, error) {
	switch tool {
	case "get_record":
		id, err := argInt64(args, "record_id")
		if err != nil {
			return nil, err
		}
		rec, err := c.store.GetRecord(ctx, id)
		if err != nil {
			return nil, err
		}
		return map[string]any{"record": rec}, nil

	case "list_records":
		filter := ListFilter{}
		if s, ok := args["status"].(string); ok {
			filter.Status = s
		}
		if p, ok := args["plan"].(string); ok {
			filter.Plan = p
		}
		if n, err := toInt64(args["limit"]); err == nil {
			filter.Limit = int(n)
		}
		records, err := c.store.ListRecords(ctx, filter)
		if err != nil {
			return nil, err
		}
		return map[string]any{"records": records, "count": len(records)}, nil

	case "update_record":
		id, err := argInt64(args, "record_id")
		if err != nil {
			return nil, err
		}
		fields, ok := args["fields"].(map[string]any)
		if !ok {
			return nil, &ValidationError{Field: "fields", Reason: "must be an object"}
		}
		rec, err := c.store.UpdateRecord(ctx, id, fields)
		if err != nil {
			return nil, err
		}
		return map[string]any{"record": rec}, nil

	case "create_entry":
		rec, err := c.store.CreateEntry(ctx, args)
		if err != nil {
			return nil, err
		}
		return map[string]any{"entry": rec}, nil

	case "get_related":
		id, err := argInt64(args, "record_id")
		if err != nil {
			return nil, err
		}
		records, err := c.store.GetRelated(ctx, id)
		if err != nil {
			return nil, err
		}
		return map[string]any{"related": records, "count": len(records)}, nil

	case "records_by_attr":
		attr, _ := args["attr"].(string)
		value, _ := args["value"].(string)
		records, err := c.store.RecordsByAttr(ctx, attr, value)
		if err != nil {
			return nil, err
		}
		return map[string]any{"records": records, "count": len(records)}, nil

	default:
		return nil, &ValidationError{Field: "tool", Reason: fmt.Sprintf("unknown tool %q", tool)}
	}
}

func argInt64(args map[string]any, name string) (int64, error) {
	v, ok := args[name]
	if !ok {
		return 0, &ValidationError{Field: name, Reason: "required"}
	}
	n, err := toInt64(v)
	if err != nil {
		return 0, &ValidationError{Field: name, Reason: "must be an integer"}
	}
	return n, nil
}
