package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"coveyTownAPI/internal/stats"
	"coveyTownAPI/internal/user"
)

// firstJoinedLayout renders dates as "Tue Mar 05 2024".
const firstJoinedLayout = "Mon Jan 02 2006"

type UserService struct {
	db    *pgxpool.Pool
	towns TownRegistry
}

func NewUserService(db *pgxpool.Pool, towns TownRegistry) *UserService {
	return &UserService{db: db, towns: towns}
}

const userColumns = `id, email, display_name, sign_up_date, last_login, total_time_spent, total_games_played`

func scanUser(row pgx.Row) (*user.User, error) {
	u := &user.User{}
	err := row.Scan(
		&u.ID,
		&u.Email,
		&u.DisplayName,
		&u.SignUpDate,
		&u.LastLogin,
		&u.TotalTimeSpent,
		&u.TotalGamesPlayed,
	)
	if err != nil {
		return nil, err
	}
	return u, nil
}

func (s *UserService) GetUserByID(ctx context.Context, userID string) (*user.User, error) {
	u, err := scanUser(s.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return u, nil
}

// RegisterPlayer creates the user on first join to a town, or refreshes last_login when the
// user already exists. An existing display name is kept.
func (s *UserService) RegisterPlayer(ctx context.Context, userID, displayName string) (*user.User, error) {
	query := `
	INSERT INTO users (id, display_name, sign_up_date, last_login)
	VALUES ($1, NULLIF($2, ''), NOW(), NOW())
	ON CONFLICT (id) DO UPDATE
	SET last_login = NOW(),
	    display_name = COALESCE(users.display_name, EXCLUDED.display_name)
	RETURNING ` + userColumns

	u, err := scanUser(s.db.QueryRow(ctx, query, userID, displayName))
	if err != nil {
		return nil, fmt.Errorf("failed to register player: %w", err)
	}

	log.Printf("RegisterPlayer: Player %s joined", userID)
	return u, nil
}

// UpsertUser records an authenticated account. Email and display name only fill gaps.
func (s *UserService) UpsertUser(ctx context.Context, userID, email, displayName string) (*user.User, error) {
	query := `
	INSERT INTO users (id, email, display_name, sign_up_date, last_login)
	VALUES ($1, NULLIF($2, ''), NULLIF($3, ''), NOW(), NOW())
	ON CONFLICT (id) DO UPDATE
	SET last_login = NOW(),
	    email = COALESCE(EXCLUDED.email, users.email),
	    display_name = COALESCE(users.display_name, EXCLUDED.display_name)
	RETURNING ` + userColumns

	u, err := scanUser(s.db.QueryRow(ctx, query, userID, email, displayName))
	if err != nil {
		return nil, fmt.Errorf("failed to upsert user: %w", err)
	}
	return u, nil
}

func (s *UserService) UpdateDisplayName(ctx context.Context, userID, displayName string) error {
	tag, err := s.db.Exec(ctx, `UPDATE users SET display_name = $2 WHERE id = $1`, userID, displayName)
	if err != nil {
		return fmt.Errorf("failed to update display name: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

// maxSessionSeconds caps a single session; totals are stored as BIGINT.
const maxSessionSeconds = math.MaxInt32

// EndSession adds the whole seconds of a finished session to the user's time spent.
func (s *UserService) EndSession(ctx context.Context, userID string, seconds float64) error {
	if math.IsNaN(seconds) || seconds < 0 || seconds > maxSessionSeconds {
		return ErrInvalidDuration
	}

	tag, err := s.db.Exec(ctx, `
		UPDATE users
		SET last_login = NOW(),
		    total_time_spent = total_time_spent + $2
		WHERE id = $1
	`, userID, int64(math.Floor(seconds)))
	if err != nil {
		return fmt.Errorf("failed to end session: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

func (s *UserService) UsernameExists(ctx context.Context, username string) (bool, error) {
	var exists bool
	err := s.db.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM users WHERE display_name = $1)`, username).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check username: %w", err)
	}
	return exists, nil
}

// RecordGame appends a finished game and bumps the user's game counter.
func (s *UserService) RecordGame(ctx context.Context, userID, gameID string, win bool) error {
	if gameID == "" {
		return ErrInvalidGame
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `UPDATE users SET total_games_played = total_games_played + 1 WHERE id = $1`, userID)
	if err != nil {
		return fmt.Errorf("failed to update games played: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrUserNotFound
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO game_records (user_id, game_id, win, played_at)
		VALUES ($1, $2, $3, NOW())
	`, userID, gameID, win)
	if err != nil {
		return fmt.Errorf("failed to record game: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (s *UserService) RecordTownVisit(ctx context.Context, userID, townID string) error {
	if s.towns != nil && !s.towns.IsLive(townID) {
		return ErrTownNotFound
	}

	_, err := s.db.Exec(ctx, `
		INSERT INTO town_visits (user_id, town_id, visited_at)
		VALUES ($1, $2, NOW())
	`, userID, townID)
	if err != nil {
		if isPgError(err, pgForeignKeyViolation) {
			return ErrUserNotFound
		}
		return fmt.Errorf("failed to record town visit: %w", err)
	}

	townVisitsTotal.Inc()
	return nil
}

// GetUserStats summarizes a user's profile and game history. Unknown users are an error.
func (s *UserService) GetUserStats(ctx context.Context, userID string) (*stats.UserStats, error) {
	var signUpDate time.Time
	var timeSpent int
	err := s.db.QueryRow(ctx, `
		SELECT sign_up_date, total_time_spent FROM users WHERE id = $1
	`, userID).Scan(&signUpDate, &timeSpent)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			log.Printf("GetUserStats: User %s not found", userID)
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	rows, err := s.db.Query(ctx, `
		SELECT game_id, win
		FROM game_records
		WHERE user_id = $1
		ORDER BY played_at, id
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch game records: %w", err)
	}
	defer rows.Close()

	var records []stats.GameRecord
	for rows.Next() {
		var r stats.GameRecord
		if err := rows.Scan(&r.GameID, &r.Win); err != nil {
			return nil, fmt.Errorf("failed to scan game record: %w", err)
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating game records: %w", err)
	}

	return &stats.UserStats{
		FirstJoined: FormatFirstJoined(signUpDate),
		TimeSpent:   timeSpent,
		GameRecords: AggregateGameRecords(records),
	}, nil
}

// ListRecentlyVisited returns each live town the user has visited with its latest visit
// time. Unknown users get an empty list.
func (s *UserService) ListRecentlyVisited(ctx context.Context, userID string) ([]stats.TownVisitSummary, error) {
	rows, err := s.db.Query(ctx, `
		SELECT town_id, visited_at
		FROM town_visits
		WHERE user_id = $1
		ORDER BY id
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch town visits: %w", err)
	}
	defer rows.Close()

	var visits []stats.TownVisit
	for rows.Next() {
		var v stats.TownVisit
		if err := rows.Scan(&v.TownID, &v.VisitedAt); err != nil {
			return nil, fmt.Errorf("failed to scan town visit: %w", err)
		}
		visits = append(visits, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating town visits: %w", err)
	}

	live := func(string) bool { return true }
	if s.towns != nil {
		live = s.towns.IsLive
	}
	return CollapseRecentVisits(visits, live), nil
}

func FormatFirstJoined(t time.Time) string {
	return t.UTC().Format(firstJoinedLayout)
}

// AggregateGameRecords counts wins and losses per game, in the order each game first
// appears in records.
func AggregateGameRecords(records []stats.GameRecord) []stats.GameSummary {
	summaries := []stats.GameSummary{}
	index := make(map[string]int)

	for _, r := range records {
		i, ok := index[r.GameID]
		if !ok {
			i = len(summaries)
			index[r.GameID] = i
			summaries = append(summaries, stats.GameSummary{GameName: r.GameID})
		}
		if r.Win {
			summaries[i].Wins++
		} else {
			summaries[i].Losses++
		}
	}

	return summaries
}

// CollapseRecentVisits keeps one entry per live town holding its latest visit time.
// Towns are ordered by their first appearance in visits.
func CollapseRecentVisits(visits []stats.TownVisit, live func(string) bool) []stats.TownVisitSummary {
	summaries := []stats.TownVisitSummary{}
	index := make(map[string]int)

	for _, v := range visits {
		if !live(v.TownID) {
			continue
		}
		i, ok := index[v.TownID]
		if !ok {
			index[v.TownID] = len(summaries)
			summaries = append(summaries, stats.TownVisitSummary{TownID: v.TownID, LastVisited: v.VisitedAt})
			continue
		}
		if v.VisitedAt.After(summaries[i].LastVisited) {
			summaries[i].LastVisited = v.VisitedAt
		}
	}

	return summaries
}

// DeleteUser removes the user row; friendships, requests and history go with it.
func (s *UserService) DeleteUser(ctx context.Context, userID string) error {
	_, err := s.db.Exec(ctx, `DELETE FROM users WHERE id = $1`, userID)
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}
	return nil
}
