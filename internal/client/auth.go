package client

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"net/http"
	"time"

	"github.com/learnup/learnup/internal/model"
)

// Session is what a successful login returns.
type Session struct {
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expires_at"`
	User      model.Author `json:"user"`
}

type Registration struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Avatar   string `json:"avatar,omitempty"`
	Role     string `json:"role,omitempty"`
}

func (c *Client) Register(ctx context.Context, r Registration) (model.Author, error) {
	var out model.Author
	err := c.do(ctx, call{method: http.MethodPost, path: "/auth/register", body: r, result: &out})
	return out, err
}

func (c *Client) Login(ctx context.Context, email, password string) (Session, error) {
	var out Session
	err := c.do(ctx, call{
		method: http.MethodPost,
		path:   "/auth/login",
		body:   map[string]string{"email": email, "password": password},
		result: &out,
	})
	return out, err
}

// Credentials is an ed25519 keypair used for key-based login.
type Credentials struct {
	PublicKey  string
	PrivateKey ed25519.PrivateKey
}

func GenerateCredentials() (*Credentials, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, err
	}
	return &Credentials{
		PublicKey:  base64.StdEncoding.EncodeToString(pub),
		PrivateKey: priv,
	}, nil
}

// CredentialsFromKey rebuilds credentials from a base64 private key.
func CredentialsFromKey(privKeyB64 string) (*Credentials, error) {
	privBytes, err := base64.StdEncoding.DecodeString(privKeyB64)
	if err != nil {
		return nil, fmt.Errorf("decode private key: %w", err)
	}
	if len(privBytes) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("private key must be %d bytes", ed25519.PrivateKeySize)
	}
	priv := ed25519.PrivateKey(privBytes)
	return &Credentials{
		PublicKey:  base64.StdEncoding.EncodeToString(priv.Public().(ed25519.PublicKey)),
		PrivateKey: priv,
	}, nil
}

func (creds *Credentials) PrivateKeyString() string {
	return base64.StdEncoding.EncodeToString(creds.PrivateKey)
}

func (creds *Credentials) Sign(message string) string {
	return base64.StdEncoding.EncodeToString(ed25519.Sign(creds.PrivateKey, []byte(message)))
}

func (c *Client) Challenge(ctx context.Context, alg string) (string, error) {
	var out struct {
		Challenge string `json:"challenge"`
	}
	err := c.do(ctx, call{
		method: http.MethodPost,
		path:   "/auth/challenge",
		body:   map[string]string{"alg": alg},
		result: &out,
	})
	return out.Challenge, err
}

func (c *Client) Verify(ctx context.Context, alg, publicKey, challenge, signature string) (Session, error) {
	var out Session
	err := c.do(ctx, call{
		method: http.MethodPost,
		path:   "/auth/verify",
		body: map[string]string{
			"alg":        alg,
			"public_key": publicKey,
			"challenge":  challenge,
			"signature":  signature,
		},
		result: &out,
	})
	return out, err
}

// LoginWithKey signs a fresh challenge with creds.
func (c *Client) LoginWithKey(ctx context.Context, creds *Credentials) (Session, error) {
	challenge, err := c.Challenge(ctx, "ed25519")
	if err != nil {
		return Session{}, fmt.Errorf("get challenge: %w", err)
	}
	return c.Verify(ctx, "ed25519", creds.PublicKey, challenge, creds.Sign(challenge))
}

// AddKey registers a public key for the signed-in user.
func (c *Client) AddKey(ctx context.Context, alg, publicKey string) error {
	return c.do(ctx, call{
		method: http.MethodPost,
		path:   "/auth/keys",
		body:   map[string]string{"alg": alg, "public_key": publicKey},
		authed: true,
	})
}
