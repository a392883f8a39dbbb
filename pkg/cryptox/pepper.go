package cryptox

import (
	"crypto/rand"
	"encoding/base64"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
)

// Configuration for Argon2id hashing.
const (
	memory      = 19 * 1024 // KiB
	iterations  = 2
	parallelism = 1
	keyLength   = 32
	saltLength  = 16
)

var (
	pepperMu   sync.Mutex
	pepper     string
	pepperFile string
)

// SetPepperPath sets the file the pepper is persisted to. It must be called
// before the first hash is computed; an empty path keeps the pepper in memory.
func SetPepperPath(file string) {
	pepperMu.Lock()
	defer pepperMu.Unlock()
	pepperFile = file
	pepper = ""
}

func GetPepper() string {
	pepperMu.Lock()
	defer pepperMu.Unlock()

	if pepper != "" {
		return pepper
	}

	if pepperFile == "" {
		slog.Warn("no pepper file configured, using an in-memory pepper")
		pepper = randomSecret()
		return pepper
	}

	p, err := loadOrGenerateSecret(pepperFile)
	if err != nil {
		slog.Error("failed to load or generate pepper", slog.Any("err", err))
		os.Exit(1)
	}
	pepper = string(p)
	return pepper
}

// loadOrGenerateSecret reads a secret from file, creating the file with a
// fresh random secret on first use.
func loadOrGenerateSecret(file string) ([]byte, error) {
	file = filepath.Clean(file)
	if err := os.MkdirAll(filepath.Dir(file), 0750); err != nil {
		return nil, err
	}

	if _, err := os.Stat(file); os.IsNotExist(err) {
		secret := randomSecret()
		if err := os.WriteFile(file, []byte(secret), 0600); err != nil {
			return nil, err
		}
		return []byte(secret), nil
	}

	return os.ReadFile(file)
}

func randomSecret() string {
	b := make([]byte, keyLength)
	if _, err := rand.Read(b); err != nil {
		panic("cryptox: random source failed: " + err.Error())
	}
	return base64.RawURLEncoding.EncodeToString(b)
}
