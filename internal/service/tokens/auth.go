// Package tokens выпуск и проверка jwt токенов пользователей.
package tokens

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var ErrInvalidClaims = errors.New("invalid claims")

type UserClaims struct {
	jwt.RegisteredClaims
	ID int64
}

func GenerateUserJWT(id int64, expire time.Duration, key []byte) (string, error) {
	now := time.Now()
	userClaims := UserClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(expire)),
		},
		ID: id,
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, userClaims).SignedString(key)
	if err != nil {
		return "", fmt.Errorf("generating user jwt token: %s", err.Error())
	}
	return token, nil
}

func ValidateUserJWT(tokenString string, key []byte) (*jwt.Token, error) {
	token, err := jwt.ParseWithClaims(tokenString, new(UserClaims), func(_ *jwt.Token) (any, error) {
		return key, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, fmt.Errorf("validating user jwt token: %w", err)
	}

	if _, ok := token.Claims.(*UserClaims); !ok {
		return nil, ErrInvalidClaims
	}
	return token, nil
}

// UserIDFromJWT проверяет токен и возвращает id счета из его claims.
func UserIDFromJWT(tokenString string, key []byte) (int64, error) {
	token, err := ValidateUserJWT(tokenString, key)
	if err != nil {
		return 0, err
	}
	claims, _ := token.Claims.(*UserClaims)
	if claims.ID <= 0 {
		return 0, ErrInvalidClaims
	}
	return claims.ID, nil
}
