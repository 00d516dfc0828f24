package models

import "github.com/google/uuid"

// Category groups products for the shopping and inventory views.
type Category struct {
	ID           uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	CategoryName string    `gorm:"column:category_name;not null;uniqueIndex"`
}
