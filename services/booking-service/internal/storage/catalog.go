package storage

import (
	"context"

	"github.com/okorolenko/masterbook/services/booking-service/internal/model"
)

// CatalogRepository covers providers, clients and the service catalog.
// Services are read-only from the engines' perspective; they are loaded by a
// seeding script, never mutated by booking flows.
type CatalogRepository struct {
	db DB
}

func NewCatalogRepository(database DB) *CatalogRepository {
	return &CatalogRepository{db: database}
}

func (r *CatalogRepository) CreateProvider(ctx context.Context, chatID int64, name, description string) (int64, error) {
	var id int64
	err := r.db.QueryRow(ctx, `
		INSERT INTO providers (chat_id, name, description)
		VALUES ($1, $2, $3)
		RETURNING id
	`, chatID, name, description).Scan(&id)
	if err != nil {
		if isUniqueViolation(err) {
			return 0, model.ErrDuplicate
		}
		return 0, err
	}
	return id, nil
}

func (r *CatalogRepository) ListProviders(ctx context.Context) ([]model.Provider, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, chat_id, name, description, min_lead_hours
		FROM providers
		ORDER BY id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var providers []model.Provider
	for rows.Next() {
		var p model.Provider
		if err := rows.Scan(&p.ID, &p.ChatID, &p.Name, &p.Description, &p.MinLeadHours); err != nil {
			return nil, err
		}
		providers = append(providers, p)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return providers, nil
}

func (r *CatalogRepository) GetProvider(ctx context.Context, id int64) (model.Provider, error) {
	var p model.Provider
	err := r.db.QueryRow(ctx, `
		SELECT id, chat_id, name, description, min_lead_hours
		FROM providers
		WHERE id = $1
	`, id).Scan(&p.ID, &p.ChatID, &p.Name, &p.Description, &p.MinLeadHours)
	if err != nil {
		if isNoRows(err) {
			return model.Provider{}, model.ErrNotFound
		}
		return model.Provider{}, err
	}
	return p, nil
}

func (r *CatalogRepository) SetMinLeadHours(ctx context.Context, providerID int64, hours int) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE providers
		SET min_lead_hours = $2
		WHERE id = $1
	`, providerID, hours)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return model.ErrNotFound
	}
	return nil
}

func (r *CatalogRepository) UpsertClient(ctx context.Context, c model.Client) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO clients (id, username, full_name)
		VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE
		SET username = EXCLUDED.username,
			full_name = EXCLUDED.full_name
	`, c.ID, c.Username, c.FullName)
	return err
}

func (r *CatalogRepository) ListCategories(ctx context.Context, providerID int64) ([]string, error) {
	rows, err := r.db.Query(ctx, `
		SELECT DISTINCT category
		FROM services
		WHERE provider_id = $1
		ORDER BY category
	`, providerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var categories []string
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, err
		}
		categories = append(categories, c)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return categories, nil
}

func (r *CatalogRepository) ListSubcategories(ctx context.Context, providerID int64, category string) ([]string, error) {
	rows, err := r.db.Query(ctx, `
		SELECT DISTINCT subcategory
		FROM services
		WHERE provider_id = $1 AND category = $2 AND subcategory IS NOT NULL
		ORDER BY subcategory
	`, providerID, category)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var subcategories []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		subcategories = append(subcategories, s)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return subcategories, nil
}

// ListServices filters by category and, when subcategory is non-nil, by exact
// subcategory; a nil subcategory selects services that have none.
func (r *CatalogRepository) ListServices(ctx context.Context, providerID int64, category string, subcategory *string) ([]model.Service, error) {
	query := `
		SELECT id, provider_id, category, subcategory, name, price::text, duration_minutes, description
		FROM services
		WHERE provider_id = $1 AND category = $2 AND subcategory IS NULL
		ORDER BY name
	`
	args := []any{providerID, category}
	if subcategory != nil {
		query = `
			SELECT id, provider_id, category, subcategory, name, price::text, duration_minutes, description
			FROM services
			WHERE provider_id = $1 AND category = $2 AND subcategory = $3
			ORDER BY name
		`
		args = append(args, *subcategory)
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var services []model.Service
	for rows.Next() {
		var s model.Service
		if err := rows.Scan(&s.ID, &s.ProviderID, &s.Category, &s.Subcategory, &s.Name, &s.Price, &s.DurationMinutes, &s.Description); err != nil {
			return nil, err
		}
		services = append(services, s)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return services, nil
}

func (r *CatalogRepository) GetService(ctx context.Context, id int64) (model.Service, error) {
	var s model.Service
	err := r.db.QueryRow(ctx, `
		SELECT id, provider_id, category, subcategory, name, price::text, duration_minutes, description
		FROM services
		WHERE id = $1
	`, id).Scan(&s.ID, &s.ProviderID, &s.Category, &s.Subcategory, &s.Name, &s.Price, &s.DurationMinutes, &s.Description)
	if err != nil {
		if isNoRows(err) {
			return model.Service{}, model.ErrNotFound
		}
		return model.Service{}, err
	}
	return s, nil
}
