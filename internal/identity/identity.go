package identity

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Identity is the persistent pseudonymous identity of one client
// profile: generated once, stable across reconnects and restarts, never
// validated by the server.
type Identity struct {
	UserID string `yaml:"user_id"`
	Name   string `yaml:"name"`
}

var adjectives = []string{
	"amber", "breezy", "cosmic", "dreamy", "electric", "foggy",
	"gentle", "hazy", "lunar", "mellow", "neon", "quiet",
	"rustic", "silver", "tranquil", "velvet", "wandering", "zesty",
}

var nouns = []string{
	"badger", "comet", "dune", "ember", "fern", "glacier",
	"heron", "iris", "juniper", "koala", "lantern", "meadow",
	"nimbus", "otter", "pebble", "quill", "raven", "willow",
}

// LoadOrCreate reads the identity file at path, generating and
// persisting a fresh identity if none exists yet.
func LoadOrCreate(path string) (Identity, error) {
	data, err := os.ReadFile(path)
	if err == nil {
		var id Identity
		if err := yaml.Unmarshal(data, &id); err == nil && id.UserID != "" {
			if id.Name == "" {
				id.Name = id.UserID
			}
			return id, nil
		}
		// Corrupt file: regenerate below.
	} else if !os.IsNotExist(err) {
		return Identity{}, fmt.Errorf("read identity: %w", err)
	}

	id := Generate()
	if err := save(path, id); err != nil {
		return Identity{}, err
	}
	return id, nil
}

func save(path string, id Identity) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create identity dir: %w", err)
		}
	}
	data, err := yaml.Marshal(id)
	if err != nil {
		return fmt.Errorf("marshal identity: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write identity: %w", err)
	}
	return nil
}

// Generate mints a fresh identity: a random user id plus an
// adjective+noun+3-digit display name. Collisions are possible but
// acceptable for a casual pseudonymous chat.
func Generate() Identity {
	return Identity{
		UserID: newUserID(),
		Name:   GenerateName(),
	}
}

// GenerateName returns a display name like "mellow-otter-042".
func GenerateName() string {
	adjective := adjectives[randomInt(len(adjectives))]
	noun := nouns[randomInt(len(nouns))]
	return fmt.Sprintf("%s-%s-%03d", adjective, noun, randomInt(1000))
}

func newUserID() string {
	buf := make([]byte, 12)
	if _, err := rand.Read(buf); err == nil {
		return hex.EncodeToString(buf)
	}
	// Fallback to timestamp if crypto/rand is unavailable.
	return strconv.FormatInt(time.Now().UnixNano(), 10)
}

func randomInt(n int) int {
	v, err := rand.Int(rand.Reader, big.NewInt(int64(n)))
	if err != nil {
		return int(time.Now().UnixNano()) % n
	}
	return int(v.Int64())
}
