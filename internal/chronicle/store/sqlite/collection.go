package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/chronicled/chronicle/internal/chronicle/idgen"
	"github.com/chronicled/chronicle/internal/chronicle/store"
)

type collection struct {
	db   *sql.DB
	name string
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func jsonPath(field string) string {
	return "$." + field
}

// whereClause translates a Filter into a parameterized SQL predicate
// over the doc column's JSON.
func whereClause(filter store.Filter) (string, []any) {
	if len(filter) == 0 {
		return "1=1", nil
	}
	var clauses []string
	var args []any
	for field, v := range filter {
		expr := fmt.Sprintf("json_extract(doc, '%s')", jsonPath(field))
		switch val := v.(type) {
		case store.Gt:
			clauses = append(clauses, expr+" > ?")
			args = append(args, val.Value)
		case store.Gte:
			clauses = append(clauses, expr+" >= ?")
			args = append(args, val.Value)
		case store.Lt:
			clauses = append(clauses, expr+" < ?")
			args = append(args, val.Value)
		case store.Lte:
			clauses = append(clauses, expr+" <= ?")
			args = append(args, val.Value)
		case store.Ne:
			clauses = append(clauses, expr+" IS NOT ?")
			args = append(args, val.Value)
		case nil:
			clauses = append(clauses, expr+" IS NULL")
		case bool:
			n := 0
			if val {
				n = 1
			}
			clauses = append(clauses, expr+" = ?")
			args = append(args, n)
		default:
			clauses = append(clauses, expr+" = ?")
			args = append(args, v)
		}
	}
	return strings.Join(clauses, " AND "), args
}

func orderClause(sort store.Sort) string {
	if len(sort) == 0 {
		return ""
	}
	var parts []string
	for _, f := range sort {
		dir := "ASC"
		if !f.Ascending {
			dir = "DESC"
		}
		parts = append(parts, fmt.Sprintf("json_extract(doc, '%s') %s", jsonPath(f.Field), dir))
	}
	return " ORDER BY " + strings.Join(parts, ", ")
}

func docID(doc store.Doc) (string, error) {
	raw, ok := doc["_id"]
	if !ok || raw == nil || raw == "" {
		return "", nil
	}
	id, ok := raw.(string)
	if !ok {
		return "", fmt.Errorf("_id must be a string, got %T", raw)
	}
	return id, nil
}

func (c *collection) InsertOne(ctx context.Context, doc store.Doc) error {
	id, err := docID(doc)
	if err != nil {
		return fmt.Errorf("sqlite: %s: insertOne: %w", c.name, err)
	}
	if id == "" {
		id = idgen.New()
		doc["_id"] = id
	}
	blob, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("sqlite: %s: insertOne: marshal: %w", c.name, err)
	}
	_, err = c.db.ExecContext(ctx,
		fmt.Sprintf(`INSERT INTO %s (id, doc) VALUES (?, ?)`, quoteIdent(c.name)),
		id, string(blob),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return fmt.Errorf("sqlite: %s: insertOne: %w", c.name, err)
		}
		return fmt.Errorf("sqlite: %s: insertOne: %w", c.name, err)
	}
	return nil
}

func (c *collection) UpdateOne(ctx context.Context, filter store.Filter, update store.Update, opts store.UpdateOptions) error {
	existing, err := c.FindOne(ctx, filter, store.FindOptions{})
	if err != nil {
		return fmt.Errorf("sqlite: %s: updateOne: %w", c.name, err)
	}
	if existing == nil {
		if !opts.Upsert {
			return nil
		}
		fresh := store.Doc{}
		for k, v := range filter {
			if isScalarFilterValue(v) {
				fresh[k] = v
			}
		}
		for k, v := range update {
			fresh[k] = v
		}
		return c.InsertOne(ctx, fresh)
	}
	for k, v := range update {
		existing[k] = v
	}
	id, err := docID(existing)
	if err != nil || id == "" {
		return fmt.Errorf("sqlite: %s: updateOne: matched row has no _id", c.name)
	}
	blob, err := json.Marshal(existing)
	if err != nil {
		return fmt.Errorf("sqlite: %s: updateOne: marshal: %w", c.name, err)
	}
	_, err = c.db.ExecContext(ctx,
		fmt.Sprintf(`UPDATE %s SET doc = ? WHERE id = ?`, quoteIdent(c.name)),
		string(blob), id,
	)
	if err != nil {
		return fmt.Errorf("sqlite: %s: updateOne: %w", c.name, err)
	}
	return nil
}

func isScalarFilterValue(v any) bool {
	switch v.(type) {
	case store.Gt, store.Gte, store.Lt, store.Lte, store.Ne:
		return false
	default:
		return true
	}
}

func (c *collection) UpdateMany(ctx context.Context, filter store.Filter, update store.Update) (int, error) {
	docs, err := c.Find(ctx, filter, store.FindOptions{})
	if err != nil {
		return 0, fmt.Errorf("sqlite: %s: updateMany: %w", c.name, err)
	}
	for _, d := range docs {
		for k, v := range update {
			d[k] = v
		}
		id, _ := docID(d)
		blob, err := json.Marshal(d)
		if err != nil {
			return 0, fmt.Errorf("sqlite: %s: updateMany: marshal: %w", c.name, err)
		}
		if _, err := c.db.ExecContext(ctx,
			fmt.Sprintf(`UPDATE %s SET doc = ? WHERE id = ?`, quoteIdent(c.name)),
			string(blob), id,
		); err != nil {
			return 0, fmt.Errorf("sqlite: %s: updateMany: %w", c.name, err)
		}
	}
	return len(docs), nil
}

func (c *collection) DeleteOne(ctx context.Context, filter store.Filter) error {
	doc, err := c.FindOne(ctx, filter, store.FindOptions{})
	if err != nil {
		return fmt.Errorf("sqlite: %s: deleteOne: %w", c.name, err)
	}
	if doc == nil {
		return nil
	}
	id, _ := docID(doc)
	if _, err := c.db.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s WHERE id = ?`, quoteIdent(c.name)), id); err != nil {
		return fmt.Errorf("sqlite: %s: deleteOne: %w", c.name, err)
	}
	return nil
}

func (c *collection) DeleteMany(ctx context.Context, filter store.Filter) (int, error) {
	where, args := whereClause(filter)
	res, err := c.db.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s WHERE %s`, quoteIdent(c.name), where), args...)
	if err != nil {
		return 0, fmt.Errorf("sqlite: %s: deleteMany: %w", c.name, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("sqlite: %s: deleteMany: rows affected: %w", c.name, err)
	}
	return int(n), nil
}

func (c *collection) FindOne(ctx context.Context, filter store.Filter, opts store.FindOptions) (store.Doc, error) {
	opts.Limit = 1
	docs, err := c.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return nil, nil
	}
	return docs[0], nil
}

func (c *collection) Find(ctx context.Context, filter store.Filter, opts store.FindOptions) ([]store.Doc, error) {
	where, args := whereClause(filter)
	query := fmt.Sprintf(`SELECT doc FROM %s WHERE %s`, quoteIdent(c.name), where)
	query += orderClause(opts.Sort)
	if opts.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", opts.Limit)
	}
	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: %s: find: %w", c.name, err)
	}
	defer func() { _ = rows.Close() }()

	var out []store.Doc
	for rows.Next() {
		var blob string
		if err := rows.Scan(&blob); err != nil {
			return nil, fmt.Errorf("sqlite: %s: find: scan: %w", c.name, err)
		}
		var doc store.Doc
		if err := json.Unmarshal([]byte(blob), &doc); err != nil {
			return nil, fmt.Errorf("sqlite: %s: find: unmarshal: %w", c.name, err)
		}
		out = append(out, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: %s: find: %w", c.name, err)
	}
	return out, nil
}

func (c *collection) CountDocuments(ctx context.Context, filter store.Filter) (int, error) {
	where, args := whereClause(filter)
	var n int
	err := c.db.QueryRowContext(ctx,
		fmt.Sprintf(`SELECT COUNT(*) FROM %s WHERE %s`, quoteIdent(c.name), where), args...,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("sqlite: %s: countDocuments: %w", c.name, err)
	}
	return n, nil
}

func (c *collection) CreateIndex(ctx context.Context, spec store.IndexSpec) error {
	var cols []string
	for _, f := range spec.Fields {
		cols = append(cols, fmt.Sprintf("json_extract(doc, '%s')", jsonPath(f.Field)))
	}
	unique := ""
	if spec.Unique {
		unique = "UNIQUE "
	}
	stmt := fmt.Sprintf("CREATE %sINDEX IF NOT EXISTS %s ON %s (%s)",
		unique, quoteIdent(spec.Name), quoteIdent(c.name), strings.Join(cols, ", "))
	if len(spec.Partial) > 0 {
		where, args := whereClause(spec.Partial)
		if len(args) > 0 {
			// SQLite partial index WHERE clauses must be constant
			// expressions, not bind parameters; inline literal
			// equality values (booleans/strings/numbers only).
			where = inlineLiterals(where, args)
		}
		stmt += " WHERE " + where
	}
	if _, err := c.db.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("sqlite: %s: createIndex %s: %w", c.name, spec.Name, err)
	}
	return nil
}

// inlineLiterals substitutes each "?" placeholder with its literal
// SQL representation, used only for partial-index WHERE clauses where
// SQLite requires a constant expression at CREATE INDEX time.
func inlineLiterals(where string, args []any) string {
	var b strings.Builder
	argIdx := 0
	for i := 0; i < len(where); i++ {
		if where[i] == '?' && argIdx < len(args) {
			b.WriteString(literal(args[argIdx]))
			argIdx++
			continue
		}
		b.WriteByte(where[i])
	}
	return b.String()
}

func literal(v any) string {
	switch val := v.(type) {
	case bool:
		if val {
			return "1"
		}
		return "0"
	case string:
		return "'" + strings.ReplaceAll(val, "'", "''") + "'"
	case int:
		return fmt.Sprintf("%d", val)
	default:
		return fmt.Sprintf("%v", val)
	}
}

func isUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") || strings.Contains(msg, "constraint failed: UNIQUE")
}
