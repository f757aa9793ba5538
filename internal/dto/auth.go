package dto

type RegisterRequest struct {
	Email    string `json:"email"`
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type OperatorResponse struct {
	OperatorID string `json:"operatorId"`
	Email      string `json:"email"`
	Username   string `json:"username"`
	Role       string `json:"role,omitempty"`
}

type AuthResponse struct {
	AccessToken  string           `json:"accessToken"`
	RefreshToken string           `json:"refreshToken,omitempty"`
	Operator     OperatorResponse `json:"operator"`
}
