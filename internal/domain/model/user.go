package model

import "time"

type User struct {
	ID          int64     `json:"id"`
	DisplayName string    `json:"display_name"`
	AvatarKey   string    `json:"avatar_key"`
	CreatedAt   time.Time `json:"created_at"`
}
