package domain

// Identity - аутентифицированный пользователь из токена
type Identity struct {
	UserID   int64  `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
}
