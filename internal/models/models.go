package models

const (
	StatusToDo       = "To Do"
	StatusInProgress = "In Progress"
	StatusDone       = "Done"
)

// User holds at most one live refresh token; login and refresh overwrite it,
// logout clears it. Username and Email are stored lowercase.
type User struct {
	ID           uint    `gorm:"primaryKey;autoIncrement" json:"id"`
	Username     string  `gorm:"uniqueIndex;not null"     json:"username"`
	Email        string  `gorm:"uniqueIndex;not null"     json:"email"`
	PasswordHash string  `gorm:"not null"                 json:"-"`
	RefreshToken *string `json:"-"`
}

type Project struct {
	ID          uint   `gorm:"primaryKey;autoIncrement" json:"id"`
	Name        string `gorm:"not null"                 json:"name"`
	Description string `json:"description"`
}

type Task struct {
	ID        uint   `gorm:"primaryKey;autoIncrement" json:"id"`
	Title     string `gorm:"not null"                 json:"title"`
	Status    string `gorm:"not null;default:'To Do'" json:"status"`
	ProjectID uint   `gorm:"index;not null"           json:"project_id"`
}

type ProjectMember struct {
	ID        uint `gorm:"primaryKey"                       json:"id"`
	ProjectID uint `gorm:"uniqueIndex:idx_member;not null"  json:"project_id"`
	UserID    uint `gorm:"uniqueIndex:idx_member;not null"  json:"user_id"`
}

func ValidStatus(s string) bool {
	return s == StatusToDo || s == StatusInProgress || s == StatusDone
}
