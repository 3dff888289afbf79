package domain

import "time"

type UserProfile struct {
	ID          int
	Username    string
	Email       string
	ProfileData string
	CreatedAt   time.Time
}
