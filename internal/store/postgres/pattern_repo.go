package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/kimjw0623/find-angel-sub000/internal/domain/model"
	"github.com/kimjw0623/find-angel-sub000/internal/store"
)

type PatternRepo struct {
	db *DB
}

func NewPatternRepo(db *DB) *PatternRepo {
	return &PatternRepo{db: db}
}

var _ store.PatternRepository = (*PatternRepo)(nil)

const generationColumns = `id, as_of, is_active, created_at`

func scanGeneration(row interface{ Scan(...any) error }) (*model.Generation, error) {
	var g model.Generation
	if err := row.Scan(&g.ID, &g.AsOf, &g.IsActive, &g.CreatedAt); err != nil {
		return nil, err
	}
	return &g, nil
}

func (r *PatternRepo) queryGeneration(ctx context.Context, query string, args ...interface{}) (*model.Generation, error) {
	ctx, cancel := withTimeout(ctx, DefaultQueryTimeout)
	defer cancel()

	g, err := scanGeneration(r.db.QueryRowContext(ctx, query, args...))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return g, nil
}

func (r *PatternRepo) ActiveGeneration(ctx context.Context) (*model.Generation, error) {
	g, err := r.queryGeneration(ctx, `SELECT `+generationColumns+` FROM pattern_generations WHERE is_active LIMIT 1`)
	if err != nil {
		return nil, fmt.Errorf("get active generation: %w", err)
	}
	return g, nil
}

func (r *PatternRepo) LatestGeneration(ctx context.Context) (*model.Generation, error) {
	g, err := r.queryGeneration(ctx, `
		SELECT `+generationColumns+` FROM pattern_generations
		ORDER BY as_of DESC, created_at DESC
		LIMIT 1
	`)
	if err != nil {
		return nil, fmt.Errorf("get latest generation: %w", err)
	}
	return g, nil
}

func (r *PatternRepo) ListGenerations(ctx context.Context, limit int) ([]model.Generation, error) {
	ctx, cancel := withTimeout(ctx, DefaultQueryTimeout)
	defer cancel()

	rows, err := r.db.QueryContext(ctx, `
		SELECT `+generationColumns+` FROM pattern_generations
		ORDER BY as_of DESC, created_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list generations: %w", err)
	}
	defer rows.Close()

	var out []model.Generation
	for rows.Next() {
		g, err := scanGeneration(rows)
		if err != nil {
			return nil, fmt.Errorf("scan generation: %w", err)
		}
		out = append(out, *g)
	}
	return out, rows.Err()
}

// LoadGeneration returns nil, nil when the generation does not exist.
func (r *PatternRepo) LoadGeneration(ctx context.Context, id uuid.UUID) (*model.PatternSet, error) {
	ctx, cancel := withTimeout(ctx, LongQueryTimeout)
	defer cancel()

	var set *model.PatternSet
	opts := &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true}
	err := r.db.withTx(ctx, opts, func(tx *sql.Tx) error {
		gen, err := scanGeneration(tx.QueryRowContext(ctx,
			`SELECT `+generationColumns+` FROM pattern_generations WHERE id = $1`, id))
		if err == sql.ErrNoRows {
			return nil
		}
		if err != nil {
			return fmt.Errorf("get generation: %w", err)
		}
		set = &model.PatternSet{Generation: *gen}
		if set.Accessories, err = loadAccessories(ctx, tx, id); err != nil {
			return err
		}
		if set.Bracelets, err = loadBracelets(ctx, tx, id); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("load generation %s: %w", id, err)
	}
	return set, nil
}

func loadAccessories(ctx context.Context, tx *sql.Tx, id uuid.UUID) ([]model.AccessoryPattern, error) {
	rows, err := tx.QueryContext(ctx, `
		SELECT grade, category, level, role, exclusive, quality_prices, common_options,
		       sample_count, success_rate, sold_count, expired_count
		FROM accessory_patterns
		WHERE generation_id = $1
		ORDER BY pattern_key
	`, id)
	if err != nil {
		return nil, fmt.Errorf("query accessory patterns: %w", err)
	}
	defer rows.Close()

	var out []model.AccessoryPattern
	for rows.Next() {
		var (
			p                       model.AccessoryPattern
			grade, category, role   string
			exclusive, prices, opts []byte
			rate                    sql.NullFloat64
			sold, expired           sql.NullInt64
		)
		if err := rows.Scan(
			&grade, &category, &p.Key.Level, &role, &exclusive, &prices, &opts,
			&p.SampleCount, &rate, &sold, &expired,
		); err != nil {
			return nil, fmt.Errorf("scan accessory pattern: %w", err)
		}
		p.Key.Grade = model.Grade(grade)
		p.Key.Category = model.Category(category)
		p.Key.Role = model.Role(role)
		if err := json.Unmarshal(exclusive, &p.Key.Exclusive); err != nil {
			return nil, fmt.Errorf("decode exclusive options: %w", err)
		}
		if err := json.Unmarshal(prices, &p.QualityPrices); err != nil {
			return nil, fmt.Errorf("decode quality prices: %w", err)
		}
		if err := json.Unmarshal(opts, &p.CommonOptions); err != nil {
			return nil, fmt.Errorf("decode common options: %w", err)
		}
		p.Success = successFrom(rate, sold, expired)
		out = append(out, p)
	}
	return out, rows.Err()
}

func loadBracelets(ctx context.Context, tx *sql.Tx, id uuid.UUID) ([]model.BraceletPattern, error) {
	rows, err := tx.QueryContext(ctx, `
		SELECT grade, pattern_type, signature, stat_values, extra_slots,
		       price, sample_count, success_rate, sold_count, expired_count
		FROM bracelet_patterns
		WHERE generation_id = $1
		ORDER BY pattern_key
	`, id)
	if err != nil {
		return nil, fmt.Errorf("query bracelet patterns: %w", err)
	}
	defer rows.Close()

	var out []model.BraceletPattern
	for rows.Next() {
		var (
			p             model.BraceletPattern
			grade, typ    string
			rate          sql.NullFloat64
			sold, expired sql.NullInt64
		)
		if err := rows.Scan(
			&grade, &typ, &p.Key.Signature, &p.Key.Values, &p.Key.ExtraSlots,
			&p.Price, &p.SampleCount, &rate, &sold, &expired,
		); err != nil {
			return nil, fmt.Errorf("scan bracelet pattern: %w", err)
		}
		p.Key.Grade = model.Grade(grade)
		p.Key.Type = model.BraceletPatternType(typ)
		p.Success = successFrom(rate, sold, expired)
		out = append(out, p)
	}
	return out, rows.Err()
}

func successFrom(rate sql.NullFloat64, sold, expired sql.NullInt64) *model.SuccessStats {
	if !rate.Valid {
		return nil
	}
	return &model.SuccessStats{Rate: rate.Float64, Sold: int(sold.Int64), Expired: int(expired.Int64)}
}

func successArgs(s *model.SuccessStats) (interface{}, interface{}, interface{}) {
	if s == nil {
		return nil, nil, nil
	}
	return s.Rate, s.Sold, s.Expired
}

// beginGeneration serializes generation writers, applies the activation rule
// and inserts the generation row. A generation older than the newest one is
// stored but not activated.
func beginGeneration(ctx context.Context, tx *sql.Tx, gen model.Generation, source *uuid.UUID) (bool, error) {
	if _, err := tx.ExecContext(ctx, `LOCK TABLE pattern_generations IN SHARE ROW EXCLUSIVE MODE`); err != nil {
		return false, fmt.Errorf("lock generations: %w", err)
	}

	var newest sql.NullTime
	if err := tx.QueryRowContext(ctx, `SELECT max(as_of) FROM pattern_generations`).Scan(&newest); err != nil {
		return false, fmt.Errorf("get newest generation: %w", err)
	}
	activate := !newest.Valid || !newest.Time.After(gen.AsOf)

	if activate {
		if _, err := tx.ExecContext(ctx, `UPDATE pattern_generations SET is_active = false WHERE is_active`); err != nil {
			return false, fmt.Errorf("deactivate generation: %w", err)
		}
	}

	createdAt := gen.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO pattern_generations (id, as_of, is_active, source_id, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, gen.ID, gen.AsOf, activate, source, createdAt); err != nil {
		return false, fmt.Errorf("insert generation: %w", err)
	}
	return activate, nil
}

func (r *PatternRepo) WriteGeneration(ctx context.Context, set *model.PatternSet) (bool, error) {
	ctx, cancel := withTimeout(ctx, LongQueryTimeout)
	defer cancel()

	var activated bool
	err := r.db.withTx(ctx, nil, func(tx *sql.Tx) error {
		var err error
		activated, err = beginGeneration(ctx, tx, set.Generation, nil)
		if err != nil {
			return err
		}
		if err := copyAccessories(ctx, tx, set.Generation.ID, set.Accessories); err != nil {
			return err
		}
		return copyBracelets(ctx, tx, set.Generation.ID, set.Bracelets)
	})
	if err != nil {
		return false, fmt.Errorf("write generation %s: %w", set.Generation.ID, err)
	}
	return activated, nil
}

func copyAccessories(ctx context.Context, tx *sql.Tx, id uuid.UUID, rows []model.AccessoryPattern) error {
	if len(rows) == 0 {
		return nil
	}
	stmt, err := tx.PrepareContext(ctx, pq.CopyIn("accessory_patterns",
		"generation_id", "pattern_key", "grade", "category", "level", "role",
		"exclusive", "quality_prices", "common_options",
		"sample_count", "success_rate", "sold_count", "expired_count",
	))
	if err != nil {
		return fmt.Errorf("prepare accessory copy: %w", err)
	}
	defer stmt.Close()

	for _, p := range rows {
		exclusive := p.Key.Exclusive
		if exclusive == nil {
			exclusive = []model.ExclusiveOption{}
		}
		excl, err := json.Marshal(exclusive)
		if err != nil {
			return err
		}
		prices, err := json.Marshal(p.QualityPrices)
		if err != nil {
			return err
		}
		common := p.CommonOptions
		if common == nil {
			common = map[model.OptionName][]model.TierPrice{}
		}
		opts, err := json.Marshal(common)
		if err != nil {
			return err
		}
		rate, sold, expired := successArgs(p.Success)
		if _, err := stmt.ExecContext(ctx,
			id, p.Key.String(), string(p.Key.Grade), string(p.Key.Category), p.Key.Level, string(p.Key.Role),
			string(excl), string(prices), string(opts),
			p.SampleCount, rate, sold, expired,
		); err != nil {
			return fmt.Errorf("copy accessory pattern %s: %w", p.Key, err)
		}
	}
	if _, err := stmt.ExecContext(ctx); err != nil {
		return fmt.Errorf("flush accessory copy: %w", err)
	}
	return nil
}

func copyBracelets(ctx context.Context, tx *sql.Tx, id uuid.UUID, rows []model.BraceletPattern) error {
	if len(rows) == 0 {
		return nil
	}
	stmt, err := tx.PrepareContext(ctx, pq.CopyIn("bracelet_patterns",
		"generation_id", "pattern_key", "grade", "pattern_type", "signature", "stat_values", "extra_slots",
		"price", "sample_count", "success_rate", "sold_count", "expired_count",
	))
	if err != nil {
		return fmt.Errorf("prepare bracelet copy: %w", err)
	}
	defer stmt.Close()

	for _, p := range rows {
		rate, sold, expired := successArgs(p.Success)
		if _, err := stmt.ExecContext(ctx,
			id, p.Key.String(), string(p.Key.Grade), string(p.Key.Type), p.Key.Signature, p.Key.Values, p.Key.ExtraSlots,
			p.Price, p.SampleCount, rate, sold, expired,
		); err != nil {
			return fmt.Errorf("copy bracelet pattern %s: %w", p.Key, err)
		}
	}
	if _, err := stmt.ExecContext(ctx); err != nil {
		return fmt.Errorf("flush bracelet copy: %w", err)
	}
	return nil
}

func (r *PatternRepo) CopyGeneration(ctx context.Context, from uuid.UUID, gen model.Generation) (bool, error) {
	ctx, cancel := withTimeout(ctx, LongQueryTimeout)
	defer cancel()

	var activated bool
	err := r.db.withTx(ctx, nil, func(tx *sql.Tx) error {
		var exists bool
		if err := tx.QueryRowContext(ctx,
			`SELECT EXISTS(SELECT 1 FROM pattern_generations WHERE id = $1)`, from,
		).Scan(&exists); err != nil {
			return fmt.Errorf("check source generation: %w", err)
		}
		if !exists {
			return fmt.Errorf("source generation %s not found", from)
		}

		var err error
		activated, err = beginGeneration(ctx, tx, gen, &from)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO accessory_patterns (generation_id, pattern_key, grade, category, level, role,
				exclusive, quality_prices, common_options, sample_count, success_rate, sold_count, expired_count)
			SELECT $1, pattern_key, grade, category, level, role,
				exclusive, quality_prices, common_options, sample_count, success_rate, sold_count, expired_count
			FROM accessory_patterns WHERE generation_id = $2
		`, gen.ID, from); err != nil {
			return fmt.Errorf("copy accessory patterns: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO bracelet_patterns (generation_id, pattern_key, grade, pattern_type, signature, stat_values,
				extra_slots, price, sample_count, success_rate, sold_count, expired_count)
			SELECT $1, pattern_key, grade, pattern_type, signature, stat_values,
				extra_slots, price, sample_count, success_rate, sold_count, expired_count
			FROM bracelet_patterns WHERE generation_id = $2
		`, gen.ID, from); err != nil {
			return fmt.Errorf("copy bracelet patterns: %w", err)
		}
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("copy generation %s: %w", from, err)
	}
	return activated, nil
}
