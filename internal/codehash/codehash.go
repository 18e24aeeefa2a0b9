package codehash

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"golang.org/x/crypto/argon2"
)

const (
	algorithmID = "argon2id"

	// Backup codes carry ~41 bits of entropy from a CSPRNG, so the work
	// factor can sit well below interactive-password settings and still
	// dominate online guessing costs.
	defaultMemoryKB    uint32 = 16 * 1024
	defaultTimeCost    uint32 = 2
	defaultParallelism uint8  = 1
	saltLength                = 16
	keyLength          uint32 = 32
)

// Hasher produces and verifies salted argon2id hashes of one-time codes,
// encoded in PHC string format for storage alongside other string
// attributes.
type Hasher struct {
	memory      uint32
	time        uint32
	parallelism uint8
}

// New returns a Hasher with the package defaults.
func New() *Hasher {
	return &Hasher{
		memory:      defaultMemoryKB,
		time:        defaultTimeCost,
		parallelism: defaultParallelism,
	}
}

// Hash derives a fresh-salted argon2id hash of code.
func (h *Hasher) Hash(code string) (string, error) {
	salt := make([]byte, saltLength)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return "", err
	}

	sum := argon2.IDKey([]byte(code), salt, h.time, h.memory, h.parallelism, keyLength)

	return fmt.Sprintf(
		"$%s$v=%d$m=%d,t=%d,p=%d$%s$%s",
		algorithmID,
		argon2.Version,
		h.memory,
		h.time,
		h.parallelism,
		base64.StdEncoding.EncodeToString(salt),
		base64.StdEncoding.EncodeToString(sum),
	), nil
}

// Verify reports whether code matches the PHC-encoded hash. Unparseable
// hashes return an error; a clean mismatch returns (false, nil).
func (h *Hasher) Verify(code, encoded string) (bool, error) {
	memory, timeCost, parallelism, salt, sum, err := parsePHC(encoded)
	if err != nil {
		return false, err
	}

	computed := argon2.IDKey([]byte(code), salt, timeCost, memory, parallelism, uint32(len(sum)))
	return subtle.ConstantTimeCompare(computed, sum) == 1, nil
}

func parsePHC(encoded string) (memory, timeCost uint32, parallelism uint8, salt, sum []byte, err error) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[0] != "" {
		return 0, 0, 0, nil, nil, errors.New("invalid PHC format")
	}
	if parts[1] != algorithmID {
		return 0, 0, 0, nil, nil, errors.New("unsupported algorithm")
	}

	if !strings.HasPrefix(parts[2], "v=") {
		return 0, 0, 0, nil, nil, errors.New("missing argon2 version")
	}
	version, err := strconv.Atoi(strings.TrimPrefix(parts[2], "v="))
	if err != nil || version != argon2.Version {
		return 0, 0, 0, nil, nil, errors.New("unsupported argon2 version")
	}

	for _, pair := range strings.Split(parts[3], ",") {
		kv := strings.SplitN(pair, "=", 2)
		if len(kv) != 2 {
			return 0, 0, 0, nil, nil, errors.New("invalid parameter entry")
		}
		v, perr := strconv.ParseUint(kv[1], 10, 32)
		if perr != nil {
			return 0, 0, 0, nil, nil, errors.New("invalid parameter value")
		}
		switch kv[0] {
		case "m":
			memory = uint32(v)
		case "t":
			timeCost = uint32(v)
		case "p":
			if v > 255 {
				return 0, 0, 0, nil, nil, errors.New("invalid parallelism")
			}
			parallelism = uint8(v)
		default:
			return 0, 0, 0, nil, nil, errors.New("unsupported parameter")
		}
	}
	if memory == 0 || timeCost == 0 || parallelism == 0 {
		return 0, 0, 0, nil, nil, errors.New("missing parameters")
	}

	salt, err = base64.StdEncoding.DecodeString(parts[4])
	if err != nil || len(salt) == 0 {
		return 0, 0, 0, nil, nil, errors.New("invalid salt encoding")
	}
	sum, err = base64.StdEncoding.DecodeString(parts[5])
	if err != nil || len(sum) == 0 {
		return 0, 0, 0, nil, nil, errors.New("invalid hash encoding")
	}

	return memory, timeCost, parallelism, salt, sum, nil
}
