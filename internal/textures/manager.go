package textures

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"image/png"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"

	"github.com/go-playground/validator/v10"

	"github.com/authskin/authskin/internal/avatars"
	"github.com/authskin/authskin/internal/db"
	"github.com/authskin/authskin/internal/dispatcher"
	"github.com/authskin/authskin/internal/yggdrasil"
)

// MaxTextureSize limits the accepted PNG file size in bytes
const MaxTextureSize = 1 << 20

var (
	TextureNotFound = errors.New("texture not found")
	PlayerNotFound  = errors.New("player not found")
	AccountNotFound = errors.New("account not found")
)

var fingerprintRegex = regexp.MustCompile(`^[a-f0-9]{64}$`)

type TexturesRepository interface {
	FindTextureById(ctx context.Context, id int64) (*db.Texture, error)
	FindTextureByHash(ctx context.Context, accountId int64, kind db.TextureKind, hash string, model string) (*db.Texture, error)
	FindTexturesByAccount(ctx context.Context, accountId int64) ([]*db.Texture, error)
	CountTexturesByHash(ctx context.Context, hash string) (int, error)
	CreateTexture(ctx context.Context, texture *db.Texture) error
	RemoveTexture(ctx context.Context, id int64) (int, error)
	AssignTexture(ctx context.Context, playerUuid string, kind db.TextureKind, textureId int64) error
}

type IdentityRepository interface {
	FindAccountById(ctx context.Context, id int64) (*db.Account, error)
	FindPlayerByUuid(ctx context.Context, uuid string) (*db.Player, error)
	RemoveAccount(ctx context.Context, id int64) error
}

type Upload struct {
	AccountId int64          `validate:"required,min=1"`
	Kind      db.TextureKind `validate:"required,oneof=skin cape"`
	Model     string         `validate:"omitempty,oneof=classic slim"`
	Content   []byte         `validate:"required,max=1048576"`
}

func NewManager(repository TexturesRepository, identity IdentityRepository, emitter dispatcher.Emitter, dir string) (*Manager, error) {
	err := os.MkdirAll(dir, 0o755)
	if err != nil {
		return nil, fmt.Errorf("unable to create textures dir: %w", err)
	}

	return &Manager{
		TexturesRepository: repository,
		IdentityRepository: identity,
		Emitter:            emitter,
		Dir:                dir,
		validator:          validator.New(),
	}, nil
}

// Manager owns the uploaded texture files and their records
type Manager struct {
	TexturesRepository
	IdentityRepository
	Emitter dispatcher.Emitter
	Dir     string

	validator *validator.Validate
}

// Upload stores a new texture. An upload that repeats an existing texture of the account
// with the same model reuses its record. Records never change once created since other
// accounts' players may reference them.
func (m *Manager) Upload(ctx context.Context, upload *Upload) (*db.Texture, error) {
	err := m.validator.Struct(upload)
	if err != nil {
		var validationErrors validator.ValidationErrors
		if errors.As(err, &validationErrors) {
			return nil, mapValidationErrorsToCommonError(validationErrors)
		}

		return nil, err
	}

	account, err := m.FindAccountById(ctx, upload.AccountId)
	if err != nil {
		return nil, err
	}

	if account == nil {
		return nil, AccountNotFound
	}

	width, height, err := checkImage(upload.Kind, upload.Content)
	if err != nil {
		return nil, err
	}

	model := ""
	if upload.Kind == db.KindSkin {
		model = yggdrasil.ModelClassic
		if upload.Model == yggdrasil.ModelSlim {
			model = yggdrasil.ModelSlim
		}
	}

	digest := sha256.Sum256(upload.Content)
	fingerprint := hex.EncodeToString(digest[:])

	texture, err := m.FindTextureByHash(ctx, account.Id, upload.Kind, fingerprint, model)
	if err != nil {
		return nil, err
	}

	if texture != nil {
		return texture, nil
	}

	path, err := m.writeFile(fingerprint, upload.Content)
	if err != nil {
		return nil, err
	}

	texture = &db.Texture{
		Hash:      fingerprint,
		Kind:      upload.Kind,
		Path:      path,
		Width:     width,
		Height:    height,
		Model:     model,
		AccountId: account.Id,
	}
	err = m.CreateTexture(ctx, texture)
	if err != nil {
		return nil, err
	}

	m.Emitter.Emit("textures:uploaded", texture)

	return texture, nil
}

// Assign makes the texture active for the player. Zero textureId clears the slot.
// Any stored texture of the matching kind may be assigned, including textures of other accounts.
func (m *Manager) Assign(ctx context.Context, playerUuid string, kind db.TextureKind, textureId int64) error {
	if kind != db.KindSkin && kind != db.KindCape {
		return &ValidationError{Errors: map[string][]string{
			"Kind": {"Kind must be one of [skin cape]"},
		}}
	}

	player, err := m.FindPlayerByUuid(ctx, yggdrasil.NormalizeUuid(playerUuid))
	if err != nil {
		return err
	}

	if player == nil {
		return PlayerNotFound
	}

	if textureId != 0 {
		texture, err := m.FindTextureById(ctx, textureId)
		if err != nil {
			return err
		}

		if texture == nil || texture.Kind != kind {
			return TextureNotFound
		}
	}

	return m.AssignTexture(ctx, player.Uuid, kind, textureId)
}

// Remove deletes the texture record and, when no other record shares the fingerprint, its file.
// It fails with db.TextureInUse while a player references the texture.
func (m *Manager) Remove(ctx context.Context, id int64) error {
	texture, err := m.FindTextureById(ctx, id)
	if err != nil {
		return err
	}

	if texture == nil {
		return TextureNotFound
	}

	remaining, err := m.RemoveTexture(ctx, id)
	if err != nil {
		return err
	}

	if remaining > 0 {
		return nil
	}

	err = os.Remove(texture.Path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}

	m.Emitter.Emit("textures:removed", texture)

	return nil
}

// DeleteAccount removes the account together with its players and textures.
// Files no longer referenced by any record are deleted.
func (m *Manager) DeleteAccount(ctx context.Context, accountId int64) error {
	account, err := m.FindAccountById(ctx, accountId)
	if err != nil {
		return err
	}

	if account == nil {
		return AccountNotFound
	}

	textures, err := m.FindTexturesByAccount(ctx, account.Id)
	if err != nil {
		return err
	}

	err = m.RemoveAccount(ctx, account.Id)
	if err != nil {
		return err
	}

	checked := map[string]bool{}
	for _, texture := range textures {
		if checked[texture.Hash] {
			continue
		}

		checked[texture.Hash] = true
		remaining, err := m.CountTexturesByHash(ctx, texture.Hash)
		if err != nil {
			return err
		}

		if remaining > 0 {
			continue
		}

		err = os.Remove(texture.Path)
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return err
		}

		m.Emitter.Emit("textures:removed", texture)
	}

	return nil
}

// Path returns the file of the stored texture or fs.ErrNotExist
func (m *Manager) Path(fingerprint string) (string, error) {
	if !fingerprintRegex.MatchString(fingerprint) {
		return "", fs.ErrNotExist
	}

	path := filepath.Join(m.Dir, fingerprint+".png")
	_, err := os.Stat(path)
	if err != nil {
		return "", err
	}

	return path, nil
}

func (m *Manager) writeFile(fingerprint string, content []byte) (string, error) {
	path := filepath.Join(m.Dir, fingerprint+".png")
	if _, err := os.Stat(path); err == nil {
		return path, nil
	}

	tmp, err := os.CreateTemp(m.Dir, fingerprint+".*.tmp")
	if err != nil {
		return "", err
	}

	_, err = tmp.Write(content)
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}

	if err == nil {
		err = os.Rename(tmp.Name(), path)
	}

	if err != nil {
		_ = os.Remove(tmp.Name())
		return "", err
	}

	return path, nil
}

// checkImage accepts only PNG files with the layouts the clients can render:
// skins are 64n x 64n or 64n x 32n, capes are 64n x 32n or 22n x 17n.
func checkImage(kind db.TextureKind, content []byte) (int, int, error) {
	config, err := png.DecodeConfig(bytes.NewReader(content))
	if err != nil {
		return 0, 0, errors.Join(avatars.InvalidTextureImage, err)
	}

	width, height := config.Width, config.Height
	if width == 0 || height == 0 {
		return 0, 0, fmt.Errorf("%w: degenerate size", avatars.InvalidTextureImage)
	}

	valid := false
	switch kind {
	case db.KindSkin:
		valid = width%64 == 0 && (height == width || height*2 == width)
	case db.KindCape:
		valid = (width%64 == 0 && height*2 == width) || (width%22 == 0 && height*22 == width*17)
	}

	if !valid {
		return 0, 0, fmt.Errorf("%w: unsupported %s size %dx%d", avatars.InvalidTextureImage, kind, width, height)
	}

	// DecodeConfig reads only the header, the full decode catches truncated files
	_, err = png.Decode(bytes.NewReader(content))
	if err != nil {
		return 0, 0, errors.Join(avatars.InvalidTextureImage, err)
	}

	return width, height, nil
}
