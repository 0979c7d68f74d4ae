package storage

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"anonpair/backend/internal/models"
)

// Store is the persistence boundary consumed by the chathub. Every call
// is best-effort from the hub's perspective: failures are logged by the
// caller and never block or roll back in-memory matchmaking state.
type Store interface {
	SaveParticipant(p *models.Participant) error
	UpdateParticipant(id string, fields map[string]any) error
	DeleteParticipant(id string) error

	CreateSession(s *models.ChatSession) error
	AppendMessage(msg *models.ChatMessage) error
	CloseSession(sessionID string, endedAt time.Time) error

	AddToSearchQueue(id string) error
	RemoveFromSearchQueue(id string) error
}

// Redis keys.
const (
	searchQueueKey = "search_queue"
	messageChannel = "chat:messages"
)

// Service implements Store on PostgreSQL (via GORM) with a Redis mirror
// of the search queue and Pub/Sub fan-out of stored messages for
// external observers.
type Service struct {
	DB    *gorm.DB
	Redis *redis.Client
	Ctx   context.Context
}

func NewService(db *gorm.DB, rdb *redis.Client) *Service {
	return &Service{
		DB:    db,
		Redis: rdb,
		Ctx:   context.Background(),
	}
}

func (s *Service) SaveParticipant(p *models.Participant) error {
	return s.DB.Save(p).Error
}

func (s *Service) UpdateParticipant(id string, fields map[string]any) error {
	return s.DB.Model(&models.Participant{}).
		Where("id = ?", id).
		Updates(fields).Error
}

func (s *Service) DeleteParticipant(id string) error {
	return s.DB.Delete(&models.Participant{}, "id = ?", id).Error
}

func (s *Service) CreateSession(session *models.ChatSession) error {
	return s.DB.Create(session).Error
}

// AppendMessage stores the message and publishes it on the shared
// Pub/Sub channel so moderation or analytics consumers can tail the
// stream without touching the hub.
func (s *Service) AppendMessage(msg *models.ChatMessage) error {
	if err := s.DB.Create(msg).Error; err != nil {
		return err
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return s.Redis.Publish(s.Ctx, messageChannel, payload).Err()
}

// CloseSession marks the session inactive and records when it ended.
func (s *Service) CloseSession(sessionID string, endedAt time.Time) error {
	return s.DB.Model(&models.ChatSession{}).
		Where("session_id = ?", sessionID).
		Updates(map[string]any{
			"is_active": false,
			"ended_at":  endedAt,
		}).Error
}

func (s *Service) AddToSearchQueue(id string) error {
	return s.Redis.SAdd(s.Ctx, searchQueueKey, id).Err()
}

func (s *Service) RemoveFromSearchQueue(id string) error {
	return s.Redis.SRem(s.Ctx, searchQueueKey, id).Err()
}

// SubscribeMessages returns a subscription on the message fan-out
// channel. Callers own the returned PubSub and must Close it.
func (s *Service) SubscribeMessages() *redis.PubSub {
	return s.Redis.Subscribe(s.Ctx, messageChannel)
}

// SearchQueueMembers lists the identities currently mirrored in the
// Redis search queue.
func (s *Service) SearchQueueMembers() ([]string, error) {
	return s.Redis.SMembers(s.Ctx, searchQueueKey).Result()
}

// ActiveSessionIDs returns the IDs of all sessions still marked active.
// Used at boot to sweep sessions orphaned by an unclean shutdown.
func (s *Service) ActiveSessionIDs() ([]string, error) {
	var ids []string
	err := s.DB.Model(&models.ChatSession{}).
		Where("is_active = ?", true).
		Pluck("session_id", &ids).Error
	return ids, err
}

// ClearSearchQueue drops the Redis search-queue mirror. The in-memory
// pool is empty after a restart, so the mirror must be too.
func (s *Service) ClearSearchQueue() error {
	return s.Redis.Del(s.Ctx, searchQueueKey).Err()
}
