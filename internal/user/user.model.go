package user

import "time"

type User struct {
	ID               string     `json:"id"`
	Email            *string    `json:"email"`
	DisplayName      *string    `json:"displayName"`
	SignUpDate       time.Time  `json:"signUpDate"`
	LastLogin        *time.Time `json:"lastLogin"`
	TotalTimeSpent   int        `json:"totalTimeSpent"`
	TotalGamesPlayed int        `json:"totalGamesPlayed"`
}
