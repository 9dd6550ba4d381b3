package models

// User - только то, что нужно платежам (получатель чека).
// Регистрация и пароли живут в auth-сервисе.
type User struct {
	BaseModel
	Email string `gorm:"uniqueIndex;not null" json:"email"`
	Name  string `json:"name"`
}
