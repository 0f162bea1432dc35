package service

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// tokenExpired: протух ли access-токен по claim exp. Подпись не проверяем:
// нужно только не слать заведомо мёртвый init. Непрозрачный токен считаем живым.
func tokenExpired(token string, now time.Time) bool {
	if token == "" {
		return true
	}
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return false
	}
	return !now.Before(exp.Time)
}
