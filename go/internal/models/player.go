package models

import (
	"time"

	"github.com/google/uuid"
)

// Player is the auction pool entry for a player in a season
type Player struct {
	ID        uuid.UUID `json:"id"`
	SeasonID  uuid.UUID `json:"season_id"`
	FullName  string    `json:"full_name"`
	Position  string    `json:"position"`
	CreatedAt time.Time `json:"created_at"`
}
