package identity

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"git.solsynth.dev/hypernet/confession/pkg/internal/models"
	"github.com/golang-jwt/jwt/v5"
	"github.com/samber/lo"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrWeakSecret   = errors.New("identity secret is too weak")
)

const MinSecretLength = 32

var placeholderSecrets = []string{"change-me", "changeme", "secret", "example"}

// CheckSecret rejects signing secrets that are short or shipped as placeholders.
func CheckSecret(secret string) error {
	if lo.Contains(placeholderSecrets, strings.ToLower(strings.TrimSpace(secret))) {
		return fmt.Errorf("%w: %q is a placeholder", ErrWeakSecret, secret)
	}
	if len(secret) < MinSecretLength {
		return fmt.Errorf("%w: need at least %d bytes, got %d", ErrWeakSecret, MinSecretLength, len(secret))
	}
	return nil
}

type Claims struct {
	jwt.RegisteredClaims
	Anonymous bool   `json:"anon,omitempty"`
	Name      string `json:"name,omitempty"`
}

// Verifier checks HS256 tokens issued by the identity provider.
type Verifier struct {
	secret []byte
	issuer string
}

func NewVerifier(secret, issuer string) *Verifier {
	return &Verifier{secret: []byte(secret), issuer: issuer}
}

func (v *Verifier) Verify(token string) (models.Actor, error) {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if len(v.issuer) > 0 {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}

	var claims Claims
	parsed, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (any, error) {
		return v.secret, nil
	}, opts...)
	if err != nil {
		return models.Actor{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !parsed.Valid || len(claims.Subject) == 0 {
		return models.Actor{}, ErrInvalidToken
	}

	return models.Actor{
		ID:          claims.Subject,
		IsAnonymous: claims.Anonymous,
		DisplayName: claims.Name,
	}, nil
}

// Sign issues a token for actor, used by tooling and tests.
func (v *Verifier) Sign(actor models.Actor, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   actor.ID,
			Issuer:    v.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Anonymous: actor.IsAnonymous,
		Name:      actor.DisplayName,
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
}
