package storage

import (
	"context"

	"github.com/hidenkeys/innkeeper/models"
)

func (s *Store) CreateTask(ctx context.Context, t *models.HousekeepingTask) error {
	return duplicate(s.conn(ctx).Create(t).Error)
}

func (s *Store) GetTask(ctx context.Context, id uint) (*models.HousekeepingTask, error) {
	var t models.HousekeepingTask
	if err := s.conn(ctx).First(&t, id).Error; err != nil {
		return nil, notFound(err, "no housekeeping task with the id of %d", id)
	}
	return &t, nil
}

func (s *Store) TaskByKey(ctx context.Context, key string) (*models.HousekeepingTask, error) {
	var t models.HousekeepingTask
	if err := s.conn(ctx).Where("idempotency_key = ?", key).First(&t).Error; err != nil {
		return nil, notFound(err, "no housekeeping task with key %s", key)
	}
	return &t, nil
}

// TransitionTask is a conditional status update; false means the task moved
// underneath the caller.
func (s *Store) TransitionTask(ctx context.Context, id uint, from, to models.TaskStatus, fields map[string]any) (bool, error) {
	updates := map[string]any{"status": to}
	for k, v := range fields {
		updates[k] = v
	}
	res := s.conn(ctx).Model(&models.HousekeepingTask{}).
		Where("id = ? AND status = ?", id, from).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (s *Store) ListTasks(ctx context.Context, roomID uint, status string) ([]models.HousekeepingTask, error) {
	q := s.conn(ctx).Model(&models.HousekeepingTask{})
	if roomID != 0 {
		q = q.Where("room_id = ?", roomID)
	}
	if status != "" {
		q = q.Where("status = ?", status)
	}
	var out []models.HousekeepingTask
	err := q.Order("created_at DESC").Find(&out).Error
	return out, err
}
