package catalog

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// Repository persists catalog data in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// InsertIngredient creates a new ingredient row.
func (r *Repository) InsertIngredient(ctx context.Context, in CreateIngredientInput) (Ingredient, error) {
	var ing Ingredient
	err := r.pool.QueryRow(ctx, `INSERT INTO ingredients (name, unit_type, unit_label, created_at)
VALUES ($1,$2,$3,NOW()) RETURNING id, name, unit_type, unit_label, created_at`,
		in.Name, string(in.UnitType), in.UnitLabel).
		Scan(&ing.ID, &ing.Name, &ing.UnitType, &ing.UnitLabel, &ing.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return Ingredient{}, ErrNameTaken
		}
		return Ingredient{}, err
	}
	return ing, nil
}

// GetIngredient loads a single ingredient.
func (r *Repository) GetIngredient(ctx context.Context, id int64) (Ingredient, error) {
	var ing Ingredient
	err := r.pool.QueryRow(ctx, `SELECT id, name, unit_type, unit_label, created_at FROM ingredients WHERE id=$1`, id).
		Scan(&ing.ID, &ing.Name, &ing.UnitType, &ing.UnitLabel, &ing.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Ingredient{}, ErrIngredientNotFound
		}
		return Ingredient{}, err
	}
	return ing, nil
}

// IngredientsByID loads the named ingredients keyed by id. Missing ids are
// simply absent from the result; callers decide whether that is an error.
func (r *Repository) IngredientsByID(ctx context.Context, ids []int64) (map[int64]Ingredient, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, name, unit_type, unit_label, created_at FROM ingredients WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make(map[int64]Ingredient, len(ids))
	for rows.Next() {
		var ing Ingredient
		if err := rows.Scan(&ing.ID, &ing.Name, &ing.UnitType, &ing.UnitLabel, &ing.CreatedAt); err != nil {
			return nil, err
		}
		out[ing.ID] = ing
	}
	return out, rows.Err()
}

// ListIngredients returns all ingredients ordered by name.
func (r *Repository) ListIngredients(ctx context.Context) ([]Ingredient, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, name, unit_type, unit_label, created_at FROM ingredients ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Ingredient
	for rows.Next() {
		var ing Ingredient
		if err := rows.Scan(&ing.ID, &ing.Name, &ing.UnitType, &ing.UnitLabel, &ing.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, ing)
	}
	return out, rows.Err()
}

// IngredientHasBatches reports whether any batch references the ingredient.
func (r *Repository) IngredientHasBatches(ctx context.Context, id int64) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM batches WHERE ingredient_id=$1)`, id).Scan(&exists)
	return exists, err
}

// UpdateIngredient updates mutable ingredient fields.
func (r *Repository) UpdateIngredient(ctx context.Context, ing Ingredient) error {
	tag, err := r.pool.Exec(ctx, `UPDATE ingredients SET name=$2, unit_type=$3, unit_label=$4 WHERE id=$1`,
		ing.ID, ing.Name, string(ing.UnitType), ing.UnitLabel)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrIngredientNotFound
	}
	return nil
}

// InsertVariant creates a variant with its recipe lines in one transaction.
func (r *Repository) InsertVariant(ctx context.Context, in CreateVariantInput) (ProductVariant, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead})
	if err != nil {
		return ProductVariant{}, err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	var variant ProductVariant
	err = tx.QueryRow(ctx, `INSERT INTO product_variants (product_id, name, price, is_active, created_at)
VALUES ($1,$2,$3,TRUE,NOW()) RETURNING id, COALESCE(product_id, 0), name, price, is_active, created_at`,
		nullInt(in.ProductID), in.Name, in.Price).
		Scan(&variant.ID, &variant.ProductID, &variant.Name, &variant.Price, &variant.Active, &variant.CreatedAt)
	if err != nil {
		return ProductVariant{}, err
	}
	for _, line := range in.Recipe {
		if _, err := tx.Exec(ctx, `INSERT INTO recipe_lines (variant_id, ingredient_id, quantity_per_unit, is_primary)
VALUES ($1,$2,$3,$4)`, variant.ID, line.IngredientID, line.QuantityPerUnit, line.IsPrimary); err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == "23503" {
				return ProductVariant{}, ErrIngredientNotFound
			}
			return ProductVariant{}, err
		}
	}
	variant.Recipe = in.Recipe
	if err := tx.Commit(ctx); err != nil {
		return ProductVariant{}, err
	}
	return variant, nil
}

// GetVariant loads a variant with its recipe.
func (r *Repository) GetVariant(ctx context.Context, id int64) (ProductVariant, error) {
	var variant ProductVariant
	err := r.pool.QueryRow(ctx, `SELECT id, COALESCE(product_id, 0), name, price, is_active, created_at FROM product_variants WHERE id=$1`, id).
		Scan(&variant.ID, &variant.ProductID, &variant.Name, &variant.Price, &variant.Active, &variant.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ProductVariant{}, ErrVariantNotFound
		}
		return ProductVariant{}, err
	}
	recipe, err := r.recipeLines(ctx, []int64{id})
	if err != nil {
		return ProductVariant{}, err
	}
	variant.Recipe = recipe[id]
	return variant, nil
}

// ListActiveVariants returns every active variant with its recipe, ordered by id.
func (r *Repository) ListActiveVariants(ctx context.Context) ([]ProductVariant, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, COALESCE(product_id, 0), name, price, is_active, created_at
FROM product_variants WHERE is_active ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var variants []ProductVariant
	var ids []int64
	for rows.Next() {
		var v ProductVariant
		if err := rows.Scan(&v.ID, &v.ProductID, &v.Name, &v.Price, &v.Active, &v.CreatedAt); err != nil {
			return nil, err
		}
		variants = append(variants, v)
		ids = append(ids, v.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	recipes, err := r.recipeLines(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range variants {
		variants[i].Recipe = recipes[variants[i].ID]
	}
	return variants, nil
}

// SetVariantActive flips the active flag.
func (r *Repository) SetVariantActive(ctx context.Context, id int64, active bool) error {
	tag, err := r.pool.Exec(ctx, `UPDATE product_variants SET is_active=$2 WHERE id=$1`, id, active)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrVariantNotFound
	}
	return nil
}

func (r *Repository) recipeLines(ctx context.Context, variantIDs []int64) (map[int64][]RecipeLine, error) {
	if len(variantIDs) == 0 {
		return map[int64][]RecipeLine{}, nil
	}
	rows, err := r.pool.Query(ctx, `SELECT variant_id, ingredient_id, quantity_per_unit, is_primary
FROM recipe_lines WHERE variant_id = ANY($1) ORDER BY variant_id, ingredient_id`, variantIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make(map[int64][]RecipeLine)
	for rows.Next() {
		var variantID int64
		var line RecipeLine
		var qty decimal.Decimal
		if err := rows.Scan(&variantID, &line.IngredientID, &qty, &line.IsPrimary); err != nil {
			return nil, err
		}
		line.QuantityPerUnit = qty
		out[variantID] = append(out[variantID], line)
	}
	return out, rows.Err()
}

func nullInt(value int64) any {
	if value == 0 {
		return nil
	}
	return value
}
