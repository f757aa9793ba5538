package jwt

import "golang.org/x/crypto/bcrypt"

func NewOperator(operator RegisterOperator) (Operator, error) {
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(operator.Password), 10)
	if err != nil {
		return Operator{}, err
	}

	return Operator{
		Email:        operator.Email,
		Username:     operator.Username,
		PasswordHash: string(hashedPassword),
	}, nil
}

func ValidatePassword(hashedPassword, password string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hashedPassword), []byte(password))
	return err == nil
}
