package domain

import "time"

type Item struct {
	ID        int
	Name      string
	Data      string
	CreatedAt time.Time
}
