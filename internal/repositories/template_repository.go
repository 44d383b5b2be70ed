package repositories

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"

	"sdbooth/internal/models"
)

// TemplateRepository reads portrait templates from PostgreSQL.
type TemplateRepository struct {
	db DBTX
}

func NewTemplateRepository(db DBTX) *TemplateRepository {
	return &TemplateRepository{db: db}
}

func (r *TemplateRepository) FindTemplatesBySex(ctx context.Context, sex string) ([]models.Portrait, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, image, sex, type_of_function, crop
		FROM portraits
		WHERE sex = $1
		ORDER BY created_at ASC, id ASC
	`, sex)
	if err != nil {
		return nil, fmt.Errorf("query portraits: %w", err)
	}
	defer rows.Close()

	var out []models.Portrait
	for rows.Next() {
		var (
			p        models.Portrait
			cropJSON []byte
		)
		if err := rows.Scan(&p.ID, &p.Image, &p.Sex, &p.TypeOfFunction, &cropJSON); err != nil {
			return nil, fmt.Errorf("scan portrait: %w", err)
		}
		if len(cropJSON) > 0 {
			if err := json.Unmarshal(cropJSON, &p.Crop); err != nil {
				return nil, fmt.Errorf("invalid crop for portrait %s: %w", p.ID, err)
			}
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *TemplateRepository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(1) FROM portraits`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count portraits: %w", err)
	}
	return n, nil
}

func (r *TemplateRepository) InsertMany(ctx context.Context, portraits []models.Portrait) error {
	b := &pgx.Batch{}
	for _, p := range portraits {
		cropJSON, err := json.Marshal(p.Crop)
		if err != nil {
			return fmt.Errorf("encode crop for %s: %w", p.Image, err)
		}
		b.Queue(`
			INSERT INTO portraits (id, image, sex, type_of_function, crop)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (id) DO NOTHING
		`, p.ID, p.Image, p.Sex, p.TypeOfFunction, cropJSON)
	}

	br := r.db.SendBatch(ctx, b)
	defer br.Close()
	for range portraits {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("insert portrait: %w", err)
		}
	}
	return nil
}
