package auth

import (
	"crypto/rand"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/render"
	"github.com/golang-jwt/jwt/v5"
	"github.com/sirupsen/logrus"
)

var jwtSecret []byte

// AppClaims are the claims carried by a pairing token.
type AppClaims struct {
	jwt.RegisteredClaims
	Surface string `json:"surface"`
}

// InitAuth prepares the signing secret. With no AUTH_SECRET configured a
// random per-run secret is used, so tokens do not survive a daemon restart.
func InitAuth() {
	if secret := os.Getenv("AUTH_SECRET"); secret != "" {
		jwtSecret = []byte(secret)
		return
	}
	jwtSecret = make([]byte, 32)
	if _, err := rand.Read(jwtSecret); err != nil {
		logrus.WithError(err).Fatal("Failed to generate auth secret")
	}
	logrus.Info("Using per-run auth secret")
}

// ParseJWT validates a pairing token and returns its claims.
func ParseJWT(tokenString string) (*AppClaims, error) {
	claims := &AppClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return jwtSecret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Name}))
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, jwt.ErrTokenInvalidClaims
	}
	return claims, nil
}

// HandleToken issues a pairing token to local callers. Pages cannot read the
// response cross-origin, so this gates the API to surfaces the user actually
// opened. Non-loopback callers are refused outright.
func HandleToken(w http.ResponseWriter, r *http.Request) {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil || !net.ParseIP(host).IsLoopback() {
		render.Status(r, http.StatusForbidden)
		render.JSON(w, r, map[string]string{"error": "Tokens are only issued locally"})
		return
	}

	surface := r.URL.Query().Get("surface")
	if surface == "" {
		surface = "picker"
	}

	now := time.Now()
	claims := AppClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(24 * time.Hour)),
			Issuer:    "excalisave",
		},
		Surface: surface,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(jwtSecret)
	if err != nil {
		logrus.WithError(err).Error("Failed to sign token")
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, map[string]string{"error": "Failed to issue token"})
		return
	}

	render.JSON(w, r, map[string]string{"token": signed})
}
