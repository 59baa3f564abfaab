package ops

import (
	"context"
	"database/sql"

	"github.com/hpungsan/cap2cal/internal/db"
)

// FavoriteInput contains parameters for the SetFavorite operation.
type FavoriteInput struct {
	ID       string
	Favorite *bool // nil toggles the current value
}

// FavoriteOutput contains the result of the SetFavorite operation.
type FavoriteOutput struct {
	ID         string `json:"id"`
	IsFavorite bool   `json:"isFavorite"`
}

// SetFavorite marks or unmarks an active event as a favorite.
func SetFavorite(ctx context.Context, database *sql.DB, input FavoriteInput) (*FavoriteOutput, error) {
	id, err := requireID(input.ID)
	if err != nil {
		return nil, err
	}

	var favorite bool
	if input.Favorite != nil {
		favorite = *input.Favorite
	} else {
		current, err := db.GetByID(ctx, database, id, false)
		if err != nil {
			return nil, err
		}
		favorite = !current.IsFavorite
	}

	if err := db.SetFavorite(ctx, database, id, favorite); err != nil {
		return nil, err
	}

	return &FavoriteOutput{ID: id, IsFavorite: favorite}, nil
}
