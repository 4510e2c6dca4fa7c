// Package storage handles database connections, schema migrations, and data operations using SQLite.
package storage

import (
	"database/sql"
	"errors"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/woozymasta/srcrelay/internal/models"
	_ "modernc.org/sqlite" // Driver sqlite
)

// Repository manages the SQLite database connection.
type Repository struct {
	db *sql.DB
}

// New initializes a new SQLite connection, sets connection pool parameters, and runs migrations.
func New(dbPath string) (*Repository, error) {
	dsn := dbPath + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(1 * time.Hour)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}

	applied, err := runMigrations(db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	if applied > 0 {
		log.Info().Int("count", applied).Msg("Database migrations applied")
	}

	return &Repository{db: db}, nil
}

// Close closes the underlying database connection.
func (r *Repository) Close() error {
	return r.db.Close()
}

// GetAvatar returns the stored avatar URL of a SteamID64.
func (r *Repository) GetAvatar(steamID uint64) (string, bool, error) {
	var url string
	err := r.db.QueryRow(`SELECT url FROM avatars WHERE steam_id = ?`, int64(steamID)).Scan(&url)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}

	return url, true, nil
}

// PutAvatar stores or replaces the avatar URL of a SteamID64.
func (r *Repository) PutAvatar(steamID uint64, url string) error {
	_, err := r.db.Exec(`
	INSERT INTO avatars (steam_id, url, fetched_at) VALUES (?, ?, ?)
	ON CONFLICT(steam_id) DO UPDATE SET url = excluded.url, fetched_at = excluded.fetched_at`,
		int64(steamID), url, time.Now().UTC(),
	)

	return err
}

// DeleteAvatars removes every stored avatar.
func (r *Repository) DeleteAvatars() (int64, error) {
	res, err := r.db.Exec(`DELETE FROM avatars`)
	if err != nil {
		return 0, err
	}

	return res.RowsAffected()
}

// UpsertActivity records the latest status of a route. last_active only
// moves forward: a nil LastActive keeps the stored value.
func (r *Repository) UpsertActivity(s models.RouteStatus) error {
	query := `
	INSERT INTO activity (
		route, address, country_code, server_name, map_name, game_name, server_os,
		players, max_players, online, last_active, last_checked
	)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(route) DO UPDATE SET
		address = excluded.address,
		online = excluded.online,
		players = excluded.players,
		last_checked = excluded.last_checked,
		last_active = COALESCE(excluded.last_active, activity.last_active),

		-- Keep last known A2S details while the server is down
		country_code = CASE WHEN excluded.country_code != '' THEN excluded.country_code ELSE activity.country_code END,
		server_name  = CASE WHEN excluded.online THEN excluded.server_name ELSE activity.server_name END,
		map_name     = CASE WHEN excluded.online THEN excluded.map_name ELSE activity.map_name END,
		game_name    = CASE WHEN excluded.online THEN excluded.game_name ELSE activity.game_name END,
		server_os    = CASE WHEN excluded.online THEN excluded.server_os ELSE activity.server_os END,
		max_players  = CASE WHEN excluded.online THEN excluded.max_players ELSE activity.max_players END;
	`

	var lastActive any
	if s.LastActive != nil {
		lastActive = s.LastActive.UTC()
	}

	_, err := r.db.Exec(query,
		s.Route, s.Address, s.CountryCode, s.ServerName, s.MapName, s.GameName, s.ServerOS,
		s.Players, s.MaxPlayers, s.Online, lastActive, s.LastChecked.UTC(),
	)

	return err
}

// GetActivity returns the stored status of every route ordered by name.
func (r *Repository) GetActivity() ([]models.RouteStatus, error) {
	rows, err := r.db.Query(`
		SELECT route, address, country_code, server_name, map_name, game_name, server_os,
		       players, max_players, online, last_active, last_checked
		FROM activity
		ORDER BY route
	`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var list []models.RouteStatus
	for rows.Next() {
		var (
			s          models.RouteStatus
			lastActive sql.NullTime
		)
		if err := rows.Scan(
			&s.Route, &s.Address, &s.CountryCode, &s.ServerName, &s.MapName, &s.GameName, &s.ServerOS,
			&s.Players, &s.MaxPlayers, &s.Online, &lastActive, &s.LastChecked,
		); err != nil {
			return nil, err
		}
		if lastActive.Valid {
			t := lastActive.Time
			s.LastActive = &t
		}
		list = append(list, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return list, nil
}
