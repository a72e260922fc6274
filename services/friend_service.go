package services

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"

	"coveyTownAPI/internal/types/friendship"
)

const searchResultLimit = 10

type ResolveOutcome int

const (
	ResolveRequestDeleted ResolveOutcome = iota
	ResolveFriendshipCreated
)

type FriendService struct {
	db                  *pgxpool.Pool
	notificationService *NotificationService
}

func NewFriendService(db *pgxpool.Pool, notificationService *NotificationService) *FriendService {
	return &FriendService{db: db, notificationService: notificationService}
}

// CanonicalPair orders two user ids so the smaller one comes first.
func CanonicalPair(a, b string) (string, string) {
	if a < b {
		return a, b
	}
	return b, a
}

func (s *FriendService) CreateRequest(ctx context.Context, requesterID, receiverID string) error {
	if requesterID == receiverID {
		log.Printf("CreateRequest: User %s attempted to befriend themselves", requesterID)
		return ErrSelfRequest
	}

	var found int
	err := s.db.QueryRow(ctx, `SELECT COUNT(*) FROM users WHERE id = $1 OR id = $2`, requesterID, receiverID).Scan(&found)
	if err != nil {
		return fmt.Errorf("failed to look up users: %w", err)
	}
	if found < 2 {
		log.Printf("CreateRequest: Missing user in pair %s -> %s", requesterID, receiverID)
		return ErrUserNotFound
	}

	user1, user2 := CanonicalPair(requesterID, receiverID)
	var friends bool
	err = s.db.QueryRow(ctx, `
		SELECT EXISTS(
			SELECT 1 FROM friendships WHERE user_id1 = $1 AND user_id2 = $2
		)
	`, user1, user2).Scan(&friends)
	if err != nil {
		return fmt.Errorf("failed to check existing friendship: %w", err)
	}
	if friends {
		return ErrAlreadyFriends
	}

	var pending bool
	err = s.db.QueryRow(ctx, `
		SELECT EXISTS(
			SELECT 1 FROM friend_requests
			WHERE (user_id1 = $1 AND user_id2 = $2)
			   OR (user_id1 = $2 AND user_id2 = $1)
		)
	`, requesterID, receiverID).Scan(&pending)
	if err != nil {
		return fmt.Errorf("failed to check existing friend request: %w", err)
	}
	if pending {
		return ErrRequestExists
	}

	_, err = s.db.Exec(ctx, `
		INSERT INTO friend_requests (user_id1, user_id2, accepted, created_at)
		VALUES ($1, $2, FALSE, NOW())
	`, requesterID, receiverID)
	if err != nil {
		// a concurrent request for the same pair won the insert
		if isPgError(err, pgUniqueViolation) {
			return ErrRequestExists
		}
		if isPgError(err, pgForeignKeyViolation) {
			return ErrUserNotFound
		}
		return fmt.Errorf("failed to create friend request: %w", err)
	}

	friendRequestsTotal.WithLabelValues("created").Inc()
	log.Printf("CreateRequest: %s sent a friend request to %s", requesterID, receiverID)

	if s.notificationService != nil {
		s.notificationService.NotifyFriendRequest(ctx, requesterID, receiverID)
	}
	return nil
}

// ResolveRequest deletes the pending request and, when accept is set, creates the
// friendship in the same transaction.
func (s *FriendService) ResolveRequest(ctx context.Context, requesterID, receiverID string, accept bool) (ResolveOutcome, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return ResolveRequestDeleted, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `DELETE FROM friend_requests WHERE user_id1 = $1 AND user_id2 = $2`, requesterID, receiverID)
	if err != nil {
		return ResolveRequestDeleted, fmt.Errorf("failed to delete friend request: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ResolveRequestDeleted, ErrRequestNotFound
	}

	outcome := ResolveRequestDeleted
	if accept {
		user1, user2 := CanonicalPair(requesterID, receiverID)
		_, err = tx.Exec(ctx, `
			INSERT INTO friendships (user_id1, user_id2, created_at)
			VALUES ($1, $2, NOW())
			ON CONFLICT (user_id1, user_id2) DO NOTHING
		`, user1, user2)
		if err != nil {
			return ResolveRequestDeleted, fmt.Errorf("error creating friendship: %w", err)
		}
		outcome = ResolveFriendshipCreated
	}

	if err := tx.Commit(ctx); err != nil {
		return ResolveRequestDeleted, fmt.Errorf("failed to commit transaction: %w", err)
	}

	if outcome == ResolveFriendshipCreated {
		friendRequestsTotal.WithLabelValues("accepted").Inc()
		log.Printf("ResolveRequest: %s and %s are now friends", requesterID, receiverID)
		if s.notificationService != nil {
			s.notificationService.NotifyFriendAccepted(ctx, requesterID, receiverID)
		}
	} else {
		friendRequestsTotal.WithLabelValues("rejected").Inc()
	}

	return outcome, nil
}

func (s *FriendService) ListRequests(ctx context.Context, userID string) (*friendship.RequestList, error) {
	list := &friendship.RequestList{
		Incoming: []friendship.IncomingRequest{},
		Outgoing: []friendship.OutgoingRequest{},
	}

	rows, err := s.db.Query(ctx, `
		SELECT u.id, u.display_name
		FROM friend_requests fr
		INNER JOIN users u ON u.id = fr.user_id1
		WHERE fr.user_id2 = $1
		ORDER BY fr.created_at
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch incoming requests: %w", err)
	}
	for rows.Next() {
		var sender friendship.UserSummary
		if err := rows.Scan(&sender.ID, &sender.DisplayName); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan incoming request: %w", err)
		}
		list.Incoming = append(list.Incoming, friendship.IncomingRequest{Sender: sender})
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating incoming requests: %w", err)
	}

	rows, err = s.db.Query(ctx, `
		SELECT u.id, u.display_name
		FROM friend_requests fr
		INNER JOIN users u ON u.id = fr.user_id2
		WHERE fr.user_id1 = $1
		ORDER BY fr.created_at
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch outgoing requests: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var receiver friendship.UserSummary
		if err := rows.Scan(&receiver.ID, &receiver.DisplayName); err != nil {
			return nil, fmt.Errorf("failed to scan outgoing request: %w", err)
		}
		list.Outgoing = append(list.Outgoing, friendship.OutgoingRequest{Receiver: receiver})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating outgoing requests: %w", err)
	}

	return list, nil
}

// ListFriends returns the other party of every friendship userID is part of.
func (s *FriendService) ListFriends(ctx context.Context, userID string) ([]friendship.UserSummary, error) {
	rows, err := s.db.Query(ctx, `
		SELECT u.id, u.display_name
		FROM friendships f
		INNER JOIN users u ON u.id = CASE WHEN f.user_id1 = $1 THEN f.user_id2 ELSE f.user_id1 END
		WHERE f.user_id1 = $1 OR f.user_id2 = $1
		ORDER BY f.created_at, u.id
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("error retrieving friendships: %w", err)
	}
	defer rows.Close()

	friends := []friendship.UserSummary{}
	for rows.Next() {
		var f friendship.UserSummary
		if err := rows.Scan(&f.ID, &f.DisplayName); err != nil {
			return nil, fmt.Errorf("failed to scan friend: %w", err)
		}
		friends = append(friends, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating friends: %w", err)
	}

	return friends, nil
}

func (s *FriendService) RemoveFriend(ctx context.Context, userID, friendID string) error {
	user1, user2 := CanonicalPair(userID, friendID)

	tag, err := s.db.Exec(ctx, `DELETE FROM friendships WHERE user_id1 = $1 AND user_id2 = $2`, user1, user2)
	if err != nil {
		log.Printf("RemoveFriend: Failed to delete friendship: %v", err)
		return fmt.Errorf("failed to remove friendship: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrFriendshipNotFound
	}

	friendRequestsTotal.WithLabelValues("removed").Inc()
	log.Printf("RemoveFriend: Removed friendship between %s and %s", userID, friendID)
	return nil
}

// SearchUsers matches display names containing term, at most ten results.
func (s *FriendService) SearchUsers(ctx context.Context, term string) ([]friendship.UserSummary, error) {
	pattern := "%" + escapeLike(term) + "%"

	rows, err := s.db.Query(ctx, `
		SELECT id, display_name
		FROM users
		WHERE display_name LIKE $1 ESCAPE '\'
		ORDER BY display_name, id
		LIMIT $2
	`, pattern, searchResultLimit)
	if err != nil {
		return nil, fmt.Errorf("error searching users: %w", err)
	}
	defer rows.Close()

	users := []friendship.UserSummary{}
	for rows.Next() {
		var u friendship.UserSummary
		if err := rows.Scan(&u.ID, &u.DisplayName); err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return users, nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(term string) string {
	return likeEscaper.Replace(term)
}
