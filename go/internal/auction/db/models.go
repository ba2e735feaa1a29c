package db

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sqlc-dev/pqtype"
)

type RoundStatus string

const (
	RoundStatusACTIVE     RoundStatus = "ACTIVE"
	RoundStatusFINALIZING RoundStatus = "FINALIZING"
	RoundStatusCOMPLETED  RoundStatus = "COMPLETED"
)

func (e *RoundStatus) Scan(src interface{}) error {
	switch s := src.(type) {
	case []byte:
		*e = RoundStatus(s)
	case string:
		*e = RoundStatus(s)
	default:
		return fmt.Errorf("unsupported scan type for RoundStatus: %T", src)
	}
	return nil
}

type RoundType string

const (
	RoundTypeSINGLE RoundType = "SINGLE"
	RoundTypeBULK   RoundType = "BULK"
)

func (e *RoundType) Scan(src interface{}) error {
	switch s := src.(type) {
	case []byte:
		*e = RoundType(s)
	case string:
		*e = RoundType(s)
	default:
		return fmt.Errorf("unsupported scan type for RoundType: %T", src)
	}
	return nil
}

type TiebreakerStatus string

const (
	TiebreakerStatusACTIVE    TiebreakerStatus = "ACTIVE"
	TiebreakerStatusCOMPLETED TiebreakerStatus = "COMPLETED"
)

func (e *TiebreakerStatus) Scan(src interface{}) error {
	switch s := src.(type) {
	case []byte:
		*e = TiebreakerStatus(s)
	case string:
		*e = TiebreakerStatus(s)
	default:
		return fmt.Errorf("unsupported scan type for TiebreakerStatus: %T", src)
	}
	return nil
}

type Allocation struct {
	ID           uuid.UUID
	PlayerID     uuid.UUID
	SeasonID     uuid.UUID
	TeamID       uuid.UUID
	RoundID      uuid.UUID
	TiebreakerID uuid.NullUUID
	Amount       decimal.Decimal
	CreatedAt    time.Time
}

type AuctionOutbox struct {
	ID        uuid.UUID
	RoundID   uuid.UUID
	EventType string
	Payload   json.RawMessage
	CreatedAt time.Time
	SentAt    sql.NullTime
}

type Bid struct {
	ID          uuid.UUID
	RoundID     uuid.UUID
	PlayerID    uuid.UUID
	TeamID      uuid.UUID
	Amount      decimal.Decimal
	SubmittedAt time.Time
	IsWinning   sql.NullBool
}

type Player struct {
	ID        uuid.UUID
	SeasonID  uuid.UUID
	FullName  string
	Position  string
	CreatedAt time.Time
}

type Round struct {
	ID              uuid.UUID
	SeasonID        uuid.UUID
	Position        string
	RoundType       RoundType
	PlayerID        uuid.NullUUID
	Status          RoundStatus
	StartTime       time.Time
	EndTime         time.Time
	MinBid          decimal.Decimal
	Metadata        pqtype.NullRawMessage
	FinalizingAt    sql.NullTime
	PassCompletedAt sql.NullTime
	CompletedAt     sql.NullTime
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

type TeamBudget struct {
	TeamID          uuid.UUID
	SeasonID        uuid.UUID
	TeamName        string
	StartingBudget  decimal.Decimal
	RemainingBudget decimal.Decimal
	SquadUsed       int32
	SquadCap        int32
	UpdatedAt       time.Time
}

type Tiebreaker struct {
	ID            uuid.UUID
	RoundID       uuid.UUID
	PlayerID      uuid.UUID
	ParentID      uuid.NullUUID
	TiedAmount    decimal.Decimal
	Status        TiebreakerStatus
	Deadline      time.Time
	WinnerTeamID  uuid.NullUUID
	WinningAmount decimal.NullDecimal
	CreatedAt     time.Time
	ResolvedAt    sql.NullTime
}

type TiebreakerEntry struct {
	TiebreakerID        uuid.UUID
	TeamID              uuid.UUID
	OriginalSubmittedAt time.Time
	NewAmount           decimal.NullDecimal
	SubmittedAt         sql.NullTime
}
