package repo

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wirejam/wirejam/internal/models"
)

const createShapesTable = `
CREATE TABLE IF NOT EXISTS wireframe_shapes (
	room_id    TEXT    NOT NULL,
	shape_id   TEXT    NOT NULL,
	shape_type TEXT    NOT NULL,
	x          INTEGER NOT NULL,
	y          INTEGER NOT NULL,
	width      INTEGER NOT NULL,
	height     INTEGER NOT NULL,
	content    TEXT,
	PRIMARY KEY (room_id, shape_id)
)`

// PostgresShapeRepo keeps snapshots in a single table keyed by (room_id, shape_id).
type PostgresShapeRepo struct {
	pool *pgxpool.Pool
}

func NewPostgresShapeRepo(pool *pgxpool.Pool) *PostgresShapeRepo {
	return &PostgresShapeRepo{pool: pool}
}

// Migrate creates the table when missing.
func (pr *PostgresShapeRepo) Migrate(ctx context.Context) error {
	_, err := pr.pool.Exec(ctx, createShapesTable)
	return err
}

func (pr *PostgresShapeRepo) Upsert(ctx context.Context, roomId string, s models.Shape) error {
	_, err := pr.pool.Exec(ctx, `
		INSERT INTO wireframe_shapes (room_id, shape_id, shape_type, x, y, width, height, content)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (room_id, shape_id) DO UPDATE SET
			shape_type = EXCLUDED.shape_type,
			x = EXCLUDED.x,
			y = EXCLUDED.y,
			width = EXCLUDED.width,
			height = EXCLUDED.height,
			content = EXCLUDED.content`,
		roomId, s.ID, s.Type, s.X, s.Y, s.Width, s.Height, s.Content)
	return err
}

func (pr *PostgresShapeRepo) Replace(ctx context.Context, roomId string, s models.Shape) (bool, error) {
	tag, err := pr.pool.Exec(ctx, `
		UPDATE wireframe_shapes
		SET shape_type = $3, x = $4, y = $5, width = $6, height = $7, content = $8
		WHERE room_id = $1 AND shape_id = $2`,
		roomId, s.ID, s.Type, s.X, s.Y, s.Width, s.Height, s.Content)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (pr *PostgresShapeRepo) Remove(ctx context.Context, roomId, shapeId string) error {
	_, err := pr.pool.Exec(ctx, `DELETE FROM wireframe_shapes WHERE room_id = $1 AND shape_id = $2`, roomId, shapeId)
	return err
}

func (pr *PostgresShapeRepo) Clear(ctx context.Context, roomId string) error {
	_, err := pr.pool.Exec(ctx, `DELETE FROM wireframe_shapes WHERE room_id = $1`, roomId)
	return err
}

func (pr *PostgresShapeRepo) ReplaceAll(ctx context.Context, roomId string, shapes []models.Shape) error {
	tx, err := pr.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM wireframe_shapes WHERE room_id = $1`, roomId); err != nil {
		return err
	}
	rows := make([][]any, 0, len(shapes))
	seen := make(map[string]int, len(shapes))
	for _, s := range shapes {
		row := []any{roomId, s.ID, s.Type, s.X, s.Y, s.Width, s.Height, s.Content}
		if i, ok := seen[s.ID]; ok {
			rows[i] = row
			continue
		}
		seen[s.ID] = len(rows)
		rows = append(rows, row)
	}
	if _, err := tx.CopyFrom(ctx, pgx.Identifier{"wireframe_shapes"},
		[]string{"room_id", "shape_id", "shape_type", "x", "y", "width", "height", "content"},
		pgx.CopyFromRows(rows)); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (pr *PostgresShapeRepo) Snapshot(ctx context.Context, roomId string) ([]models.Shape, error) {
	rows, err := pr.pool.Query(ctx, `
		SELECT shape_id, shape_type, x, y, width, height, content
		FROM wireframe_shapes WHERE room_id = $1`, roomId)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.Shape, error) {
		var s models.Shape
		err := row.Scan(&s.ID, &s.Type, &s.X, &s.Y, &s.Width, &s.Height, &s.Content)
		return s, err
	})
}

func (pr *PostgresShapeRepo) Count(ctx context.Context, roomId string) (int, error) {
	var n int
	err := pr.pool.QueryRow(ctx, `SELECT count(*) FROM wireframe_shapes WHERE room_id = $1`, roomId).Scan(&n)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	return n, err
}
