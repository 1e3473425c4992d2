package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/ayusman/mudra/internal/action"
	"github.com/ayusman/mudra/internal/gesture"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Binding is a stored gesture to action binding.
type Binding struct {
	ID        string            `json:"id"`
	Label     gesture.Label     `json:"label"`
	Action    action.Descriptor `json:"action"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`
}

// ActionBinding returns b as an action binding.
func (b *Binding) ActionBinding() action.Binding {
	return action.Binding{Label: b.Label, Action: b.Action}
}

type bindingRow struct {
	ID         string        `db:"id"`
	Label      string        `db:"label"`
	ActionID   string        `db:"action_id"`
	Kind       string        `db:"kind"`
	Name       string        `db:"name"`
	Plugin     string        `db:"plugin"`
	Params     string        `db:"params"`
	CooldownMS sql.NullInt64 `db:"cooldown_ms"`
	Enabled    bool          `db:"enabled"`
	CreatedAt  int64         `db:"created_at"`
	UpdatedAt  int64         `db:"updated_at"`
}

const bindingColumns = `id, label, action_id, kind, name, plugin, params, cooldown_ms, enabled, created_at, updated_at`

func toBindingRow(b *Binding) (bindingRow, error) {
	params := "{}"
	if len(b.Action.Params) > 0 {
		data, err := json.Marshal(b.Action.Params)
		if err != nil {
			return bindingRow{}, fmt.Errorf("encode params: %w", err)
		}
		params = string(data)
	}

	row := bindingRow{
		ID:        b.ID,
		Label:     string(b.Label),
		ActionID:  b.Action.ID,
		Kind:      string(b.Action.Kind),
		Name:      b.Action.Name,
		Plugin:    b.Action.Plugin,
		Params:    params,
		Enabled:   b.Action.Enabled,
		CreatedAt: toMillis(b.CreatedAt),
		UpdatedAt: toMillis(b.UpdatedAt),
	}
	if b.Action.Cooldown != nil {
		row.CooldownMS = sql.NullInt64{Int64: b.Action.Cooldown.Milliseconds(), Valid: true}
	}
	return row, nil
}

func (r bindingRow) binding() (*Binding, error) {
	var params map[string]string
	if err := json.Unmarshal([]byte(r.Params), &params); err != nil {
		return nil, fmt.Errorf("decode params of %s: %w", r.ID, err)
	}
	if len(params) == 0 {
		params = nil
	}

	b := &Binding{
		ID:    r.ID,
		Label: gesture.Label(r.Label),
		Action: action.Descriptor{
			ID:      r.ActionID,
			Kind:    action.Kind(r.Kind),
			Name:    r.Name,
			Plugin:  r.Plugin,
			Params:  params,
			Enabled: r.Enabled,
		},
		CreatedAt: fromMillis(r.CreatedAt),
		UpdatedAt: fromMillis(r.UpdatedAt),
	}
	if r.CooldownMS.Valid {
		cd := time.Duration(r.CooldownMS.Int64) * time.Millisecond
		b.Action.Cooldown = &cd
	}
	return b, nil
}

// BindingRepository provides CRUD operations for bindings.
type BindingRepository struct {
	db *sqlx.DB
}

// Bindings returns the binding repository for this store.
func (s *Store) Bindings() *BindingRepository {
	return &BindingRepository{db: s.db}
}

// validateBinding applies the same rules the dispatcher's table enforces.
func validateBinding(b *Binding) error {
	_, err := action.NewTable([]action.Binding{b.ActionBinding()})
	return err
}

// Create validates b, assigns its ID and timestamps, and inserts it.
// It returns action.ErrDuplicateLabel if the label is already bound.
func (r *BindingRepository) Create(ctx context.Context, b *Binding) error {
	if err := validateBinding(b); err != nil {
		return err
	}
	now := time.Now()
	b.ID = uuid.New().String()
	b.CreatedAt, b.UpdatedAt = now, now
	return insertBinding(ctx, r.db, b)
}

func insertBinding(ctx context.Context, db sqlx.ExtContext, b *Binding) error {
	row, err := toBindingRow(b)
	if err != nil {
		return err
	}
	_, err = sqlx.NamedExecContext(ctx, db,
		`INSERT INTO bindings (`+bindingColumns+`)
		 VALUES (:id, :label, :action_id, :kind, :name, :plugin, :params, :cooldown_ms, :enabled, :created_at, :updated_at)`,
		row,
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("%w: %s", action.ErrDuplicateLabel, b.Label)
	}
	return err
}

// Get retrieves a binding by its ID.
func (r *BindingRepository) Get(ctx context.Context, id string) (*Binding, error) {
	var row bindingRow
	err := r.db.GetContext(ctx, &row, `SELECT `+bindingColumns+` FROM bindings WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return row.binding()
}

// GetByLabel retrieves the binding for a gesture label.
func (r *BindingRepository) GetByLabel(ctx context.Context, label gesture.Label) (*Binding, error) {
	var row bindingRow
	err := r.db.GetContext(ctx, &row, `SELECT `+bindingColumns+` FROM bindings WHERE label = ?`, string(label))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return row.binding()
}

// List returns every binding ordered by label.
func (r *BindingRepository) List(ctx context.Context) ([]*Binding, error) {
	var rows []bindingRow
	if err := r.db.SelectContext(ctx, &rows, `SELECT `+bindingColumns+` FROM bindings ORDER BY label`); err != nil {
		return nil, err
	}

	bindings := make([]*Binding, 0, len(rows))
	for _, row := range rows {
		b, err := row.binding()
		if err != nil {
			return nil, err
		}
		bindings = append(bindings, b)
	}
	return bindings, nil
}

// Update replaces the stored binding with b's ID.
func (r *BindingRepository) Update(ctx context.Context, b *Binding) error {
	if err := validateBinding(b); err != nil {
		return err
	}
	b.UpdatedAt = time.Now()

	row, err := toBindingRow(b)
	if err != nil {
		return err
	}
	result, err := r.db.NamedExecContext(ctx,
		`UPDATE bindings SET label = :label, action_id = :action_id, kind = :kind, name = :name,
		 plugin = :plugin, params = :params, cooldown_ms = :cooldown_ms, enabled = :enabled, updated_at = :updated_at
		 WHERE id = :id`,
		row,
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("%w: %s", action.ErrDuplicateLabel, b.Label)
	}
	if err != nil {
		return err
	}
	return expectOne(result)
}

// SetEnabled toggles a binding without touching the rest of it.
func (r *BindingRepository) SetEnabled(ctx context.Context, id string, enabled bool) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE bindings SET enabled = ?, updated_at = ? WHERE id = ?`,
		enabled, toMillis(time.Now()), id,
	)
	if err != nil {
		return err
	}
	return expectOne(result)
}

// Delete removes a binding by its ID.
func (r *BindingRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM bindings WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return expectOne(result)
}

// Seed inserts bindings when the table is empty and reports how many were
// inserted. An existing table is left untouched so edits survive restarts.
func (r *BindingRepository) Seed(ctx context.Context, seeds []action.Binding) (int, error) {
	if _, err := action.NewTable(seeds); err != nil {
		return 0, err
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	var count int
	if err := tx.GetContext(ctx, &count, `SELECT COUNT(*) FROM bindings`); err != nil {
		return 0, err
	}
	if count > 0 {
		return 0, nil
	}

	now := time.Now()
	for _, s := range seeds {
		b := &Binding{
			ID:        uuid.New().String(),
			Label:     s.Label,
			Action:    s.Action,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := insertBinding(ctx, tx, b); err != nil {
			return 0, err
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return len(seeds), nil
}

// Table builds the dispatcher's lookup table from the stored bindings.
func (r *BindingRepository) Table(ctx context.Context) (*action.Table, error) {
	bindings, err := r.List(ctx)
	if err != nil {
		return nil, err
	}
	ab := make([]action.Binding, 0, len(bindings))
	for _, b := range bindings {
		ab = append(ab, b.ActionBinding())
	}
	return action.NewTable(ab)
}

func expectOne(result sql.Result) error {
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
