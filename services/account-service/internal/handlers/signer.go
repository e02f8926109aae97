package handlers

import (
	"crypto/rsa"
	"errors"
	"strings"

	"github.com/md-rashed-zaman/oneonone/libs/auth"
)

// TokenSigner issues and checks access tokens.
type TokenSigner interface {
	Sign(claims auth.Claims) (string, error)
	Verify(token string) (*auth.Claims, error)
	// JWKS is empty for symmetric signers.
	JWKS() []auth.JWK
}

type hs256Signer struct {
	secret string
}

func NewHS256Signer(secret string) TokenSigner {
	return &hs256Signer{secret: secret}
}

func (s *hs256Signer) Sign(claims auth.Claims) (string, error) {
	return auth.SignHS256(claims, s.secret)
}

func (s *hs256Signer) Verify(token string) (*auth.Claims, error) {
	return auth.ParseAndVerifyHS256(token, s.secret)
}

func (s *hs256Signer) JWKS() []auth.JWK { return nil }

// rs256Signer signs with the active key and verifies and publishes every
// loaded key, so tokens signed before a rotation stay valid.
type rs256Signer struct {
	activeKid string
	keys      map[string]*rsa.PrivateKey
	order     []string
}

// NewRS256Signer loads one or more PEM private keys. activeKid picks the
// signing key; empty means the first key.
func NewRS256Signer(pemBlobs string, activeKid string) (TokenSigner, error) {
	s := &rs256Signer{keys: map[string]*rsa.PrivateKey{}}
	for _, block := range splitPEMBlocks(pemBlobs) {
		key, err := auth.ParseRSAPrivateKey([]byte(block))
		if err != nil {
			return nil, err
		}
		kid := auth.KeyID(&key.PublicKey)
		if _, dup := s.keys[kid]; dup {
			continue
		}
		s.keys[kid] = key
		s.order = append(s.order, kid)
	}
	if len(s.order) == 0 {
		return nil, errors.New("no valid rsa keys found")
	}
	if activeKid == "" {
		activeKid = s.order[0]
	}
	if s.keys[activeKid] == nil {
		return nil, errors.New("active kid not found")
	}
	s.activeKid = activeKid
	return s, nil
}

func (s *rs256Signer) Sign(claims auth.Claims) (string, error) {
	return auth.SignRS256(claims, s.keys[s.activeKid], s.activeKid)
}

func (s *rs256Signer) Verify(token string) (*auth.Claims, error) {
	header, err := auth.ParseHeader(token)
	if err != nil {
		return nil, err
	}
	key := s.keys[header.Kid]
	if header.Alg != "RS256" || key == nil {
		return nil, auth.ErrInvalidToken
	}
	return auth.VerifyRS256(token, &key.PublicKey)
}

func (s *rs256Signer) JWKS() []auth.JWK {
	out := make([]auth.JWK, 0, len(s.order))
	for _, kid := range s.order {
		out = append(out, auth.PublicJWK(&s.keys[kid].PublicKey, kid))
	}
	return out
}

func splitPEMBlocks(raw string) []string {
	var blocks []string
	var current strings.Builder
	inBlock := false
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimRight(line, "\r")
		if strings.HasPrefix(line, "-----BEGIN ") {
			inBlock = true
			current.Reset()
		}
		if inBlock {
			current.WriteString(line)
			current.WriteString("\n")
		}
		if strings.HasPrefix(line, "-----END ") && inBlock {
			inBlock = false
			blocks = append(blocks, current.String())
		}
	}
	return blocks
}
