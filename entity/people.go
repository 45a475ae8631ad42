package entity

import "time"

// User is a registry account. Personal details live in the personnel file, not in this table.
type User struct {
	ID       uint      `gorm:"primaryKey;column:id" json:"id"`
	Username string    `gorm:"column:username;size:150;uniqueIndex;not null" json:"username"`
	Joined   time.Time `gorm:"column:date_joined;autoCreateTime" json:"date_joined"`
}

func (User) TableName() string {
	return "users"
}

type Author struct {
	ID          uint      `gorm:"primaryKey;column:id" json:"id"`
	Name        string    `gorm:"column:name;size:255;not null" json:"name"`
	Identifier  *string   `gorm:"column:identifier;size:255" json:"identifier"`
	UUID        string    `gorm:"column:uuid;size:36" json:"uuid"`
	LastUpdated time.Time `gorm:"column:last_updated;autoUpdateTime" json:"last_updated"`
	UpdatedByID uint      `gorm:"column:updated_by_id" json:"updated_by"`
}

func (Author) TableName() string {
	return "authors"
}

// UserAuthor links a registry user to the Author record that represents them.
type UserAuthor struct {
	ID       uint    `gorm:"primaryKey;column:id" json:"id"`
	UserID   uint    `gorm:"column:user_id;uniqueIndex;not null" json:"user"`
	AuthorID uint    `gorm:"column:author_id;not null" json:"author"`
	Author   *Author `gorm:"foreignKey:AuthorID" json:"-"`
}

func (UserAuthor) TableName() string {
	return "user_authors"
}

type Licence struct {
	ID          uint      `gorm:"primaryKey;column:id" json:"id"`
	ObjectID    uint      `gorm:"column:object_id;index;not null" json:"object"`
	LicenceInfo string    `gorm:"column:licence_info;type:text" json:"licence_info"`
	Identifier  *string   `gorm:"column:identifier;size:255" json:"identifier"`
	LastUpdated time.Time `gorm:"column:last_updated;autoUpdateTime" json:"last_updated"`
	UpdatedByID uint      `gorm:"column:updated_by_id" json:"updated_by"`
}

func (Licence) TableName() string {
	return "licences"
}
