package history

import "time"

// Sale is one transfer of a player to a team. Revoked sales stay in the
// table with RevokedAt set.
type Sale struct {
	ID              uint64     `gorm:"primaryKey;autoIncrement" json:"id"`
	TournamentCode  string     `gorm:"type:varchar(64);not null;index:idx_sales_tournament" json:"tournamentCode"`
	PlayerID        string     `gorm:"type:varchar(64);not null;index:idx_sales_player" json:"playerId"`
	PlayerName      string     `gorm:"type:text" json:"playerName"`
	TeamID          string     `gorm:"type:varchar(64);not null" json:"teamId"`
	TeamName        string     `gorm:"type:text" json:"teamName"`
	Price           int64      `gorm:"not null" json:"price"`
	TransactionType string     `gorm:"type:varchar(16);not null" json:"transactionType"`
	Version         int64      `gorm:"not null" json:"version"`
	SoldAt          time.Time  `gorm:"type:timestamptz;not null" json:"soldAt"`
	RevokedAt       *time.Time `gorm:"type:timestamptz" json:"revokedAt,omitempty"`
	RevokeReason    string     `gorm:"type:text" json:"revokeReason,omitempty"`
}

func (Sale) TableName() string { return "auction_sales" }

// Summary is the completion record of a tournament's auction. A later
// completion overwrites it.
type Summary struct {
	TournamentCode string    `gorm:"primaryKey;type:varchar(64)" json:"tournamentCode"`
	CompletedAt    time.Time `gorm:"type:timestamptz;not null" json:"completedAt"`
	Round          int       `json:"round"`
	Sold           int       `json:"sold"`
	Unsold         int       `json:"unsold"`
	Withdrawn      int       `json:"withdrawn"`
	TotalSpent     int64     `json:"totalSpent"`
	Teams          string    `gorm:"type:jsonb" json:"-"`
	UpdatedAt      time.Time `gorm:"type:timestamptz;autoUpdateTime" json:"updatedAt"`
}

func (Summary) TableName() string { return "auction_summaries" }
