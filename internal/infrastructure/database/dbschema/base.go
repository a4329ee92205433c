package dbschema

import "time"

// BaseModel is the common column set shared by every entity.
type BaseModel struct {
	ID        uint `gorm:"primarykey"`
	CreatedAt time.Time
	UpdatedAt time.Time
}
