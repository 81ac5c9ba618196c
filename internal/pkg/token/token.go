package token

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TicketClaims ws 连接的一次性短时票据。
// 浏览器无法在 WebSocket 握手里带自定义 Header，先换票再连
type TicketClaims struct {
	Topic string `json:"topic"`
	jwt.RegisteredClaims
}

var ErrInvalidTicket = errors.New("invalid ticket")

// GenerateTicket 签发订阅 topic 的票据
func GenerateTicket(topic, secret string, expireSec int) (string, error) {
	now := time.Now()
	claims := TicketClaims{
		Topic: topic,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Duration(expireSec) * time.Second)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

// ParseTicket 校验票据并取回 topic
func ParseTicket(tokenStr, secret string) (*TicketClaims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &TicketClaims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidTicket
		}
		return []byte(secret), nil
	})
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*TicketClaims)
	if !ok || !token.Valid {
		return nil, ErrInvalidTicket
	}
	return claims, nil
}
