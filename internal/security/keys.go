package security

import (
	"context"
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha1"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
)

const (
	PrivateKeyFile = "private.pem"
	PublicKeyFile  = "public.pem"

	MinKeyBits = 2048
)

var SigningUnavailable = errors.New("the signing key is not loaded")

var randomReader = rand.Reader

type keyPair struct {
	private   *rsa.PrivateKey
	publicPem string
}

// KeyManager owns the service keypair. The keypair is generated once, persisted to Dir
// and loaded on every later start. Existing key files are never overwritten.
type KeyManager struct {
	Dir  string
	Bits int

	mu   sync.Mutex
	keys atomic.Pointer[keyPair]
}

func NewKeyManager(dir string, bits int) *KeyManager {
	return &KeyManager{
		Dir:  dir,
		Bits: bits,
	}
}

// Load generates the keypair on the first call against an empty directory and loads
// the persisted one otherwise. It is safe to call Load multiple times.
func (m *KeyManager) Load() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.keys.Load() != nil {
		return nil
	}

	privatePath := filepath.Join(m.Dir, PrivateKeyFile)
	publicPath := filepath.Join(m.Dir, PublicKeyFile)

	privatePem, err := os.ReadFile(privatePath)
	if errors.Is(err, fs.ErrNotExist) {
		if _, err := os.Stat(publicPath); err == nil {
			return fmt.Errorf("%s exists without %s, refusing to generate a new keypair", publicPath, privatePath)
		}

		return m.generate(privatePath, publicPath)
	}

	if err != nil {
		return fmt.Errorf("unable to read the private key: %w", err)
	}

	privateKey, err := ParsePrivateKey(privatePem)
	if err != nil {
		return fmt.Errorf("unable to parse %s: %w", privatePath, err)
	}

	publicPem, err := os.ReadFile(publicPath)
	if errors.Is(err, fs.ErrNotExist) {
		slog.Warn("Public key is missing, restoring it from the private key", slog.String("path", publicPath))
		encoded, err := encodePublicKey(&privateKey.PublicKey)
		if err != nil {
			return err
		}

		if err := writeNewFile(publicPath, encoded, 0644); err != nil {
			return err
		}

		publicPem = encoded
	} else if err != nil {
		return fmt.Errorf("unable to read the public key: %w", err)
	} else if err := ensureKeysMatch(privateKey, publicPem); err != nil {
		return fmt.Errorf("%s doesn't match %s: %w", publicPath, privatePath, err)
	}

	m.keys.Store(&keyPair{private: privateKey, publicPem: string(publicPem)})

	return nil
}

// LoadPem uses the passed private key instead of the key files. Nothing is persisted.
func (m *KeyManager) LoadPem(privatePem []byte) error {
	privateKey, err := ParsePrivateKey(privatePem)
	if err != nil {
		return err
	}

	publicPem, err := encodePublicKey(&privateKey.PublicKey)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.keys.Store(&keyPair{private: privateKey, publicPem: string(publicPem)})

	return nil
}

func (m *KeyManager) generate(privatePath string, publicPath string) error {
	bits := m.Bits
	if bits == 0 {
		bits = MinKeyBits
	}

	if bits < MinKeyBits {
		return fmt.Errorf("the key size must be at least %d bits, %d given", MinKeyBits, bits)
	}

	slog.Info("Generating a new signing keypair", slog.String("dir", m.Dir), slog.Int("bits", bits))

	// rsa.GenerateKey always uses 65537 as the public exponent
	privateKey, err := rsa.GenerateKey(randomReader, bits)
	if err != nil {
		return err
	}

	privateDer, err := x509.MarshalPKCS8PrivateKey(privateKey)
	if err != nil {
		return err
	}

	publicPem, err := encodePublicKey(&privateKey.PublicKey)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(m.Dir, 0700); err != nil {
		return err
	}

	privatePem := pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: privateDer})
	if err := writeNewFile(privatePath, privatePem, 0600); err != nil {
		return err
	}

	if err := writeNewFile(publicPath, publicPem, 0644); err != nil {
		return err
	}

	m.keys.Store(&keyPair{private: privateKey, publicPem: string(publicPem)})

	return nil
}

func (m *KeyManager) IsLoaded() bool {
	return m.keys.Load() != nil
}

// Sign produces RSA PKCS#1 v1.5 signature over the SHA-1 digest of the data
func (m *KeyManager) Sign(data []byte) ([]byte, error) {
	keys := m.keys.Load()
	if keys == nil {
		return nil, SigningUnavailable
	}

	messageHash := sha1.New()
	_, err := messageHash.Write(data)
	if err != nil {
		return nil, err
	}

	return rsa.SignPKCS1v15(randomReader, keys.private, crypto.SHA1, messageHash.Sum(nil))
}

// SignTextures signs the UTF-8 bytes of the already base64 encoded textures value
// and returns the base64 encoded signature
func (m *KeyManager) SignTextures(ctx context.Context, textures string) (string, error) {
	signature, err := m.Sign([]byte(textures))
	if err != nil {
		return "", err
	}

	return base64.StdEncoding.EncodeToString(signature), nil
}

// PublicKeyPem returns the full PEM document, including the header, the footer and line breaks
func (m *KeyManager) PublicKeyPem() (string, error) {
	keys := m.keys.Load()
	if keys == nil {
		return "", SigningUnavailable
	}

	return keys.publicPem, nil
}

func (m *KeyManager) GetPublicKey(ctx context.Context) (*rsa.PublicKey, error) {
	keys := m.keys.Load()
	if keys == nil {
		return nil, SigningUnavailable
	}

	return &keys.private.PublicKey, nil
}

// ParsePrivateKey accepts PKCS#1 and PKCS#8 PEM documents. A value prefixed with "base64:"
// is decoded first, which allows passing the key through a single-line env variable.
func ParsePrivateKey(value []byte) (*rsa.PrivateKey, error) {
	if base64Value, found := strings.CutPrefix(string(value), "base64:"); found {
		decoded, err := base64.URLEncoding.DecodeString(base64Value)
		if err != nil {
			return nil, err
		}

		value = decoded
	}

	block, _ := pem.Decode(value)
	if block == nil {
		return nil, errors.New("no PEM data found")
	}

	switch block.Type {
	case "RSA PRIVATE KEY":
		return x509.ParsePKCS1PrivateKey(block.Bytes)
	case "PRIVATE KEY":
		key, err := x509.ParsePKCS8PrivateKey(block.Bytes)
		if err != nil {
			return nil, err
		}

		rsaKey, ok := key.(*rsa.PrivateKey)
		if !ok {
			return nil, errors.New("the private key is not an RSA key")
		}

		return rsaKey, nil
	default:
		return nil, fmt.Errorf("unsupported PEM block %q", block.Type)
	}
}

func encodePublicKey(key *rsa.PublicKey) ([]byte, error) {
	der, err := x509.MarshalPKIXPublicKey(key)
	if err != nil {
		return nil, err
	}

	return pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der}), nil
}

func ensureKeysMatch(privateKey *rsa.PrivateKey, publicPem []byte) error {
	block, _ := pem.Decode(publicPem)
	if block == nil {
		return errors.New("no PEM data found")
	}

	publicKey, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return err
	}

	if !privateKey.PublicKey.Equal(publicKey) {
		return errors.New("the keys are not a pair")
	}

	return nil
}

// writeNewFile fails when the file already exists
func writeNewFile(path string, content []byte, perm os.FileMode) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, perm)
	if err != nil {
		return err
	}

	if _, err := f.Write(content); err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return err
	}

	if err := f.Sync(); err != nil {
		_ = f.Close()
		return err
	}

	return f.Close()
}
