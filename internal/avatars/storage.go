package avatars

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
)

var fingerprintRegex = regexp.MustCompile(`^[a-f0-9]{64}$`)

var InvalidFingerprint = errors.New("invalid texture fingerprint")

// Storage keeps rendered heads as {fingerprint}.png files
type Storage struct {
	Dir string
}

func NewStorage(dir string) (*Storage, error) {
	err := os.MkdirAll(dir, 0o755)
	if err != nil {
		return nil, fmt.Errorf("unable to create avatars dir: %w", err)
	}

	return &Storage{Dir: dir}, nil
}

func (s *Storage) Path(fingerprint string) (string, error) {
	if !fingerprintRegex.MatchString(fingerprint) {
		return "", InvalidFingerprint
	}

	return filepath.Join(s.Dir, fingerprint+".png"), nil
}

func (s *Storage) Exists(fingerprint string) bool {
	path, err := s.Path(fingerprint)
	if err != nil {
		return false
	}

	_, err = os.Stat(path)

	return err == nil
}

// Save writes the avatar through a temporary file, so a reader never sees a partial image.
// An existing avatar is kept as is.
func (s *Storage) Save(fingerprint string, data []byte) error {
	path, err := s.Path(fingerprint)
	if err != nil {
		return err
	}

	if s.Exists(fingerprint) {
		return nil
	}

	tmp, err := os.CreateTemp(s.Dir, fingerprint+".*.tmp")
	if err != nil {
		return err
	}

	_, err = tmp.Write(data)
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}

	if err != nil {
		_ = os.Remove(tmp.Name())
		return err
	}

	err = os.Rename(tmp.Name(), path)
	if err != nil {
		_ = os.Remove(tmp.Name())
		return err
	}

	return nil
}

func (s *Storage) Remove(fingerprint string) error {
	path, err := s.Path(fingerprint)
	if err != nil {
		return err
	}

	err = os.Remove(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}

	return err
}
