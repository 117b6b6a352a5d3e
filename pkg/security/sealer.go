package security

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/angelmondragon/ordo-backend/pkg/config"
	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/nacl/secretbox"
)

const (
	sealScheme  = "ordoseal"
	saltLen     = 16
	nonceLen    = 24
	sealedParts = 6
)

// ErrInvalidSealed signals a malformed sealed value.
var ErrInvalidSealed = errors.New("invalid sealed value")

// ErrUnsealFailed is returned when the secret does not open the box.
var ErrUnsealFailed = errors.New("sealed value could not be opened")

// ArgonParams captures the Argon2id parameters embedded into each sealed value.
type ArgonParams struct {
	Memory      uint32
	Time        uint32
	Parallelism uint8
}

// Sealer encrypts vendor passwords at rest. Each value carries its own salt
// and the Argon2id parameters used to derive the secretbox key from the
// configured secret, so parameters can change without re-sealing old rows.
type Sealer struct {
	secret []byte
	params ArgonParams

	mu   sync.Mutex
	keys map[string]*[32]byte
}

// NewSealer builds a Sealer from config. An empty secret is rejected.
func NewSealer(cfg config.CredentialsConfig) (*Sealer, error) {
	if strings.TrimSpace(cfg.Secret) == "" {
		return nil, errors.New("credentials secret is required")
	}
	return &Sealer{
		secret: []byte(cfg.Secret),
		params: paramsFromConfig(cfg),
		keys:   make(map[string]*[32]byte),
	}, nil
}

// Seal encrypts plaintext and returns the encoded value.
func (s *Sealer) Seal(plaintext string) (string, error) {
	if plaintext == "" {
		return "", fmt.Errorf("plaintext cannot be empty")
	}
	salt := make([]byte, saltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("generate salt: %w", err)
	}
	var nonce [nonceLen]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}

	key := s.key(s.params, salt)
	box := secretbox.Seal(nonce[:], []byte(plaintext), &nonce, key)

	return fmt.Sprintf("$%s$v=1$m=%d,t=%d,p=%d$%s$%s",
		sealScheme,
		s.params.Memory, s.params.Time, s.params.Parallelism,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(box),
	), nil
}

// Open decrypts a value produced by Seal.
func (s *Sealer) Open(sealed string) (string, error) {
	params, salt, box, err := decodeSealed(sealed)
	if err != nil {
		return "", err
	}
	if len(box) < nonceLen+secretbox.Overhead {
		return "", ErrInvalidSealed
	}
	var nonce [nonceLen]byte
	copy(nonce[:], box[:nonceLen])

	plain, ok := secretbox.Open(nil, box[nonceLen:], &nonce, s.key(params, salt))
	if !ok {
		return "", ErrUnsealFailed
	}
	return string(plain), nil
}

// key derives (and caches) the box key for one salt and parameter set.
func (s *Sealer) key(params ArgonParams, salt []byte) *[32]byte {
	cacheKey := fmt.Sprintf("%d:%d:%d:%x", params.Memory, params.Time, params.Parallelism, salt)
	s.mu.Lock()
	defer s.mu.Unlock()
	if k, ok := s.keys[cacheKey]; ok {
		return k
	}
	derived := argon2.IDKey(s.secret, salt, params.Time, params.Memory, params.Parallelism, 32)
	var k [32]byte
	copy(k[:], derived)
	s.keys[cacheKey] = &k
	return &k
}

func paramsFromConfig(cfg config.CredentialsConfig) ArgonParams {
	return ArgonParams{
		Memory:      clampUint32(cfg.ArgonMemoryKB, 8, 512*1024),
		Time:        clampUint32(cfg.ArgonTime, 1, 10),
		Parallelism: uint8(clampInt(cfg.ArgonParallelism, 1, 255)),
	}
}

func decodeSealed(encoded string) (ArgonParams, []byte, []byte, error) {
	parts := strings.Split(encoded, "$")
	if len(parts) != sealedParts || parts[1] != sealScheme || parts[2] != "v=1" {
		return ArgonParams{}, nil, nil, ErrInvalidSealed
	}

	var params ArgonParams
	for _, token := range strings.Split(parts[3], ",") {
		keyValue := strings.SplitN(token, "=", 2)
		if len(keyValue) != 2 {
			return ArgonParams{}, nil, nil, ErrInvalidSealed
		}
		key, value := keyValue[0], keyValue[1]
		bits := 32
		if key == "p" {
			bits = 8
		}
		v, err := strconv.ParseUint(value, 10, bits)
		if err != nil {
			return ArgonParams{}, nil, nil, ErrInvalidSealed
		}
		switch key {
		case "m":
			params.Memory = uint32(v)
		case "t":
			params.Time = uint32(v)
		case "p":
			params.Parallelism = uint8(v)
		}
	}
	if params.Memory == 0 || params.Time == 0 || params.Parallelism == 0 {
		return ArgonParams{}, nil, nil, ErrInvalidSealed
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil || len(salt) != saltLen {
		return ArgonParams{}, nil, nil, ErrInvalidSealed
	}
	box, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil {
		return ArgonParams{}, nil, nil, ErrInvalidSealed
	}
	return params, salt, box, nil
}

func clampInt(value, min, max int) int {
	if value < min {
		return min
	}
	if value > max {
		return max
	}
	return value
}

func clampUint32(value, min, max int) uint32 {
	return uint32(clampInt(value, min, max))
}
