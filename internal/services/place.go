package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"hinan-bknd/internal/models"

	"github.com/uptrace/bun"
)

var ErrPlaceNotFound = errors.New("place not found")

type PlaceService struct {
	db *bun.DB
}

func NewPlaceService(db *bun.DB) *PlaceService {
	return &PlaceService{db: db}
}

// Create inserts one place and fills in its ID.
func (s *PlaceService) Create(ctx context.Context, place *models.Place) error {
	_, err := s.db.NewInsert().Model(place).Exec(ctx)
	return err
}

// DeleteAll removes every place and returns how many rows went.
func (s *PlaceService) DeleteAll(ctx context.Context) (int, error) {
	res, err := s.db.NewDelete().
		Model((*models.Place)(nil)).
		Where("1 = 1").
		Exec(ctx)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

func (s *PlaceService) Count(ctx context.Context) (int, error) {
	return s.db.NewSelect().Model((*models.Place)(nil)).Count(ctx)
}

// Query returns every place matching params, ordered by category, name and id.
// The free-text query matches name or address case-insensitively.
func (s *PlaceService) Query(ctx context.Context, params models.PlaceFilterParams) ([]models.Place, error) {
	places := []models.Place{}
	q := s.db.NewSelect().Model(&places)

	if params.Category != "" {
		q = q.Where("p.category = ?", params.Category)
	}
	if len(params.Sources) > 0 {
		q = q.Where("p.source IN (?)", bun.In(params.Sources))
	}
	if term := strings.TrimSpace(params.Query); term != "" {
		pattern := "%" + escapeLike(strings.ToLower(term)) + "%"
		q = q.WhereGroup(" AND ", func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.
				Where("LOWER(p.name) LIKE ? ESCAPE '!'", pattern).
				WhereOr("LOWER(p.address) LIKE ? ESCAPE '!'", pattern)
		})
	}

	q = q.OrderExpr("p.category ASC, p.name ASC, p.id ASC")

	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("query places: %w", err)
	}
	return places, nil
}

func (s *PlaceService) GetPlaceByID(ctx context.Context, id int64) (*models.Place, error) {
	var place models.Place
	err := s.db.NewSelect().Model(&place).Where("p.id = ?", id).Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrPlaceNotFound
		}
		return nil, err
	}
	return &place, nil
}

// Categories is the fixed filter list; it does not depend on stored data.
func (s *PlaceService) Categories() []string {
	return models.Categories()
}

// escapeLike makes LIKE wildcards in user input match literally, using '!' as escape.
func escapeLike(s string) string {
	return strings.NewReplacer("!", "!!", "%", "!%", "_", "!_").Replace(s)
}
