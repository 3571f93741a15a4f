package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/authskin/authskin/internal/db"
)

//go:embed schema.sql
var schema string

type Sqlite struct {
	db *sql.DB
}

func New(ctx context.Context, path string) (*Sqlite, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("storage path is required")
	}

	dsn := "file:" + filepath.Clean(path) + "?_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
	conn, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	if err := conn.PingContext(ctx); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}

	if _, err := conn.ExecContext(ctx, schema); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &Sqlite{db: conn}, nil
}

func (s *Sqlite) Close() error {
	return s.db.Close()
}

func (s *Sqlite) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

const accountColumns = "id, uuid, username, password"

func (s *Sqlite) FindAccountByUsername(ctx context.Context, username string) (*db.Account, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+accountColumns+" FROM accounts WHERE username = ?", username)

	return scanAccount(row)
}

func (s *Sqlite) FindAccountById(ctx context.Context, id int64) (*db.Account, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+accountColumns+" FROM accounts WHERE id = ?", id)

	return scanAccount(row)
}

func (s *Sqlite) CreateAccount(ctx context.Context, account *db.Account) error {
	result, err := s.db.ExecContext(
		ctx,
		"INSERT INTO accounts (uuid, username, password) VALUES (?, ?, ?)",
		account.Uuid,
		account.Username,
		account.PasswordHash,
	)
	if err != nil {
		return err
	}

	account.Id, err = result.LastInsertId()

	return err
}

func (s *Sqlite) RemoveAccount(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM accounts WHERE id = ?", id)

	return err
}

const playerColumns = "id, account_id, uuid, name, skin_texture_id, cape_texture_id"

func (s *Sqlite) FindPlayerByUuid(ctx context.Context, uuid string) (*db.Player, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+playerColumns+" FROM players WHERE uuid = ?", uuid)

	return scanPlayer(row)
}

func (s *Sqlite) FindPlayerByName(ctx context.Context, name string) (*db.Player, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+playerColumns+" FROM players WHERE name = ?", name)

	return scanPlayer(row)
}

func (s *Sqlite) FindPlayersByAccount(ctx context.Context, accountId int64) ([]*db.Player, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT "+playerColumns+" FROM players WHERE account_id = ? ORDER BY id", accountId)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var players []*db.Player
	for rows.Next() {
		player, err := scanPlayer(rows)
		if err != nil {
			return nil, err
		}

		players = append(players, player)
	}

	return players, rows.Err()
}

func (s *Sqlite) CreatePlayer(ctx context.Context, player *db.Player) error {
	result, err := s.db.ExecContext(
		ctx,
		"INSERT INTO players (account_id, uuid, name, skin_texture_id, cape_texture_id) VALUES (?, ?, ?, ?, ?)",
		player.AccountId,
		player.Uuid,
		player.Name,
		nullableId(player.SkinTextureId),
		nullableId(player.CapeTextureId),
	)
	if err != nil {
		return err
	}

	player.Id, err = result.LastInsertId()

	return err
}

func (s *Sqlite) RemovePlayerByUuid(ctx context.Context, uuid string) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM players WHERE uuid = ?", uuid)

	return err
}

// AssignTexture sets the active texture of the given kind. Zero textureId clears the slot.
func (s *Sqlite) AssignTexture(ctx context.Context, playerUuid string, kind db.TextureKind, textureId int64) error {
	var column string
	switch kind {
	case db.KindSkin:
		column = "skin_texture_id"
	case db.KindCape:
		column = "cape_texture_id"
	default:
		return fmt.Errorf("unknown texture kind %q", kind)
	}

	_, err := s.db.ExecContext(ctx, "UPDATE players SET "+column+" = ? WHERE uuid = ?", nullableId(textureId), playerUuid)

	return err
}

const textureColumns = "id, hash, kind, path, width, height, model, account_id"

func (s *Sqlite) FindTextureById(ctx context.Context, id int64) (*db.Texture, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+textureColumns+" FROM textures WHERE id = ?", id)

	return scanTexture(row)
}

// FindTextureByHash looks for the account's record of the same image uploaded with the same model
func (s *Sqlite) FindTextureByHash(ctx context.Context, accountId int64, kind db.TextureKind, hash string, model string) (*db.Texture, error) {
	row := s.db.QueryRowContext(
		ctx,
		"SELECT "+textureColumns+" FROM textures WHERE account_id = ? AND kind = ? AND hash = ? AND model = ? ORDER BY id LIMIT 1",
		accountId,
		kind,
		hash,
		model,
	)

	return scanTexture(row)
}

func (s *Sqlite) FindTexturesByAccount(ctx context.Context, accountId int64) ([]*db.Texture, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT "+textureColumns+" FROM textures WHERE account_id = ? ORDER BY id", accountId)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var textures []*db.Texture
	for rows.Next() {
		texture, err := scanTexture(rows)
		if err != nil {
			return nil, err
		}

		textures = append(textures, texture)
	}

	return textures, rows.Err()
}

func (s *Sqlite) CountTexturesByHash(ctx context.Context, hash string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM textures WHERE hash = ?", hash).Scan(&count)

	return count, err
}

func (s *Sqlite) FindActiveSkin(ctx context.Context, player *db.Player) (*db.Texture, error) {
	if player.SkinTextureId == 0 {
		return nil, nil
	}

	return s.FindTextureById(ctx, player.SkinTextureId)
}

func (s *Sqlite) FindActiveCape(ctx context.Context, player *db.Player) (*db.Texture, error) {
	if player.CapeTextureId == 0 {
		return nil, nil
	}

	return s.FindTextureById(ctx, player.CapeTextureId)
}

func (s *Sqlite) CreateTexture(ctx context.Context, texture *db.Texture) error {
	result, err := s.db.ExecContext(
		ctx,
		"INSERT INTO textures (hash, kind, path, width, height, model, account_id) VALUES (?, ?, ?, ?, ?, ?, ?)",
		texture.Hash,
		texture.Kind,
		texture.Path,
		texture.Width,
		texture.Height,
		texture.Model,
		texture.AccountId,
	)
	if err != nil {
		return err
	}

	texture.Id, err = result.LastInsertId()

	return err
}

// RemoveTexture deletes the texture record unless a player still references it.
// It returns the number of records that share the same hash after the removal.
func (s *Sqlite) RemoveTexture(ctx context.Context, id int64) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	var hash string
	err = tx.QueryRowContext(ctx, "SELECT hash FROM textures WHERE id = ?", id).Scan(&hash)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}

	if err != nil {
		return 0, err
	}

	var references int
	err = tx.QueryRowContext(
		ctx,
		"SELECT COUNT(*) FROM players WHERE skin_texture_id = ? OR cape_texture_id = ?",
		id,
		id,
	).Scan(&references)
	if err != nil {
		return 0, err
	}

	if references > 0 {
		return 0, db.TextureInUse
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM textures WHERE id = ?", id); err != nil {
		return 0, err
	}

	var remaining int
	if err := tx.QueryRowContext(ctx, "SELECT COUNT(*) FROM textures WHERE hash = ?", hash).Scan(&remaining); err != nil {
		return 0, err
	}

	return remaining, tx.Commit()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanAccount(row scanner) (*db.Account, error) {
	account := &db.Account{}
	err := row.Scan(&account.Id, &account.Uuid, &account.Username, &account.PasswordHash)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}

	if err != nil {
		return nil, err
	}

	return account, nil
}

func scanPlayer(row scanner) (*db.Player, error) {
	player := &db.Player{}
	var skinId, capeId sql.NullInt64
	err := row.Scan(&player.Id, &player.AccountId, &player.Uuid, &player.Name, &skinId, &capeId)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}

	if err != nil {
		return nil, err
	}

	player.SkinTextureId = skinId.Int64
	player.CapeTextureId = capeId.Int64

	return player, nil
}

func scanTexture(row scanner) (*db.Texture, error) {
	texture := &db.Texture{}
	var kind string
	err := row.Scan(
		&texture.Id,
		&texture.Hash,
		&kind,
		&texture.Path,
		&texture.Width,
		&texture.Height,
		&texture.Model,
		&texture.AccountId,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}

	if err != nil {
		return nil, err
	}

	texture.Kind = db.TextureKind(kind)

	return texture, nil
}

func nullableId(id int64) sql.NullInt64 {
	return sql.NullInt64{Int64: id, Valid: id != 0}
}
