package user

type RegisterPlayerRequest struct {
	DisplayName string `json:"displayName"`
}

// EndSessionRequest carries the session length in seconds.
type EndSessionRequest struct {
	Duration float64 `json:"duration"`
}

type RecordVisitRequest struct {
	TownID string `json:"townId"`
}

type RecordGameRequest struct {
	GameID string `json:"gameId"`
	Win    bool   `json:"win"`
}
