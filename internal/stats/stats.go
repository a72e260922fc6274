package stats

import "time"

// GameRecord is one finished game for a user.
type GameRecord struct {
	GameID string `json:"gameId" db:"game_id"`
	Win    bool   `json:"win" db:"win"`
}

type GameSummary struct {
	GameName string `json:"gameName"`
	Wins     int    `json:"wins"`
	Losses   int    `json:"losses"`
}

type UserStats struct {
	FirstJoined string        `json:"firstJoined"`
	TimeSpent   int           `json:"timeSpent"`
	GameRecords []GameSummary `json:"gameRecords"`
}

type TownVisit struct {
	TownID    string    `db:"town_id"`
	VisitedAt time.Time `db:"visited_at"`
}

type TownVisitSummary struct {
	TownID      string    `json:"townId"`
	LastVisited time.Time `json:"lastVisited"`
}
