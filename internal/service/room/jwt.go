package room

import (
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

type rejoinClaims struct {
	RoomId   string `json:"room_id"`
	Nickname string `json:"nickname"`
	jwt.RegisteredClaims
}

func (s *service) generateJWT(memberId, roomId, nickname string) (string, error) {
	if len(s.secret) == 0 {
		return "", nil
	}

	now := s.now()
	claims := rejoinClaims{
		RoomId:   roomId,
		Nickname: nickname,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   memberId,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.tokenTTL)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	return token.SignedString(s.secret)
}

func (s *service) parseJWT(tokenString string) (*rejoinClaims, error) {
	if len(s.secret) == 0 {
		return nil, ErrInvalidToken
	}

	token, err := jwt.ParseWithClaims(tokenString, &rejoinClaims{}, func(token *jwt.Token) (any, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(*rejoinClaims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}

	return claims, nil
}
