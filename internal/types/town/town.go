package town

import "time"

type Town struct {
	TownID             string    `json:"townID"`
	FriendlyName       string    `json:"friendlyName"`
	IsPublic           bool      `json:"isPublic"`
	TownUpdatePassword string    `json:"townUpdatePassword,omitempty"`
	CreatedAt          time.Time `json:"createdAt"`
}

type Summary struct {
	TownID       string `json:"townID"`
	FriendlyName string `json:"friendlyName"`
}

type CreateTownRequest struct {
	FriendlyName string `json:"friendlyName"`
	IsPublic     bool   `json:"isPublic"`
}

type DeleteTownRequest struct {
	TownUpdatePassword string `json:"townUpdatePassword"`
}
