// Package token encodes reservation ids into signed confirmation codes and
// renders them as QR images.
package token

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/skip2/go-qrcode"
)

const issuer = "parkease"

var ErrInvalidCode = errors.New("invalid code")

type Codec struct {
	secret []byte
	now    func() time.Time
}

func NewCodec(secret string) *Codec {
	return &Codec{secret: []byte(secret), now: time.Now}
}

// Encode signs the reservation id. The code does not expire: it stays valid
// for scanning as long as the reservation exists.
func (c *Codec) Encode(reservationID int) ([]byte, error) {
	claims := jwt.RegisteredClaims{
		Issuer:   issuer,
		Subject:  strconv.Itoa(reservationID),
		IssuedAt: jwt.NewNumericDate(c.now()),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secret)
	if err != nil {
		return nil, fmt.Errorf("sign confirmation code: %w", err)
	}
	return []byte(signed), nil
}

// Decode returns ErrInvalidCode for anything that is not a code this Codec issued.
func (c *Codec) Decode(code []byte) (int, error) {
	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(string(code), claims, func(t *jwt.Token) (interface{}, error) {
		return c.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithIssuer(issuer))
	if err != nil {
		return 0, ErrInvalidCode
	}
	id, err := strconv.Atoi(claims.Subject)
	if err != nil || id <= 0 {
		return 0, ErrInvalidCode
	}
	return id, nil
}

// QRCodePNG renders payload as a 256px PNG.
func QRCodePNG(payload []byte) ([]byte, error) {
	png, err := qrcode.Encode(string(payload), qrcode.Medium, 256)
	if err != nil {
		return nil, fmt.Errorf("render qr code: %w", err)
	}
	return png, nil
}
