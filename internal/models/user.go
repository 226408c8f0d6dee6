package models

// User is a registered account. Rows are never updated after registration.
type User struct {
	ID       uint   `gorm:"primarykey" json:"id"`
	Username string `gorm:"uniqueIndex;not null" json:"username"`
	Password string `gorm:"not null" json:"-"`
	Name     string `json:"name"`
}

// TableName pins the table name.
func (User) TableName() string {
	return "users"
}
