package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"coveyTownAPI/internal/notification"
)

type NotificationService struct {
	db         *pgxpool.Pool
	dispatcher *NotificationDispatcher
}

func NewNotificationService(db *pgxpool.Pool) *NotificationService {
	return &NotificationService{db: db}
}

// SetDispatcher wires the worker pool that delivers pushes. Without one, notifications
// are dropped.
func (s *NotificationService) SetDispatcher(d *NotificationDispatcher) {
	s.dispatcher = d
}

func (s *NotificationService) RegisterDevice(ctx context.Context, userID string, req notification.RegisterDeviceRequest) error {
	token := strings.TrimSpace(req.Token)
	platform := strings.ToLower(strings.TrimSpace(req.Platform))
	if platform == "" {
		platform = "android"
	}
	if token == "" || !notification.ValidPlatform(platform) {
		return ErrInvalidDevice
	}

	query := `
	INSERT INTO device_tokens (user_id, token, platform, created_at)
	VALUES ($1, $2, $3, NOW())
	ON CONFLICT (user_id, token) DO UPDATE SET platform = EXCLUDED.platform
	`

	_, err := s.db.Exec(ctx, query, userID, token, platform)
	if err != nil {
		if isPgError(err, pgForeignKeyViolation) {
			return ErrUserNotFound
		}
		return fmt.Errorf("failed to register device: %w", err)
	}

	log.Printf("RegisterDevice: Registered %s device for user %s", platform, userID)
	return nil
}

func (s *NotificationService) GetDeviceTokens(ctx context.Context, userID string) ([]notification.DeviceToken, error) {
	rows, err := s.db.Query(ctx, `
		SELECT token, platform
		FROM device_tokens
		WHERE user_id = $1
		ORDER BY created_at
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch device tokens: %w", err)
	}
	defer rows.Close()

	tokens, err := pgx.CollectRows(rows, pgx.RowToStructByName[notification.DeviceToken])
	if err != nil {
		return nil, fmt.Errorf("failed to scan device tokens: %w", err)
	}
	return tokens, nil
}

// NotifyFriendRequest tells receiverID that requesterID wants to be friends.
func (s *NotificationService) NotifyFriendRequest(ctx context.Context, requesterID, receiverID string) {
	name := s.displayName(ctx, requesterID)
	s.enqueue(&notification.Notification{
		UserID: receiverID,
		Type:   notification.NotificationFriendRequest,
		Title:  "New friend request",
		Body:   fmt.Sprintf("%s wants to be your friend", name),
		Data: map[string]any{
			"type":        string(notification.NotificationFriendRequest),
			"requesterID": requesterID,
		},
		CreatedAt: time.Now(),
	})
}

// NotifyFriendAccepted tells requesterID that receiverID accepted their request.
func (s *NotificationService) NotifyFriendAccepted(ctx context.Context, requesterID, receiverID string) {
	name := s.displayName(ctx, receiverID)
	s.enqueue(&notification.Notification{
		UserID: requesterID,
		Type:   notification.NotificationFriendAccepted,
		Title:  "Friend request accepted",
		Body:   fmt.Sprintf("%s accepted your friend request", name),
		Data: map[string]any{
			"type":     string(notification.NotificationFriendAccepted),
			"friendID": receiverID,
		},
		CreatedAt: time.Now(),
	})
}

func (s *NotificationService) enqueue(notif *notification.Notification) {
	if s.dispatcher == nil {
		return
	}
	s.dispatcher.Dispatch(notif)
}

func (s *NotificationService) displayName(ctx context.Context, userID string) string {
	var name *string
	err := s.db.QueryRow(ctx, `SELECT display_name FROM users WHERE id = $1`, userID).Scan(&name)
	if err != nil {
		if !errors.Is(err, pgx.ErrNoRows) {
			log.Printf("displayName: Failed to look up user %s: %v", userID, err)
		}
		return "Someone"
	}
	if name == nil || *name == "" {
		return "Someone"
	}
	return *name
}
