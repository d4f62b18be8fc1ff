package storage

import (
	"context"
	"time"

	"github.com/hidenkeys/innkeeper/models"
	"gorm.io/gorm"
)

func (s *Store) GetRoom(ctx context.Context, id uint) (*models.Room, error) {
	var r models.Room
	if err := s.conn(ctx).First(&r, id).Error; err != nil {
		return nil, notFound(err, "no room with the id of %d", id)
	}
	return &r, nil
}

func (s *Store) CreateRoom(ctx context.Context, r *models.Room) error {
	return duplicate(s.conn(ctx).Create(r).Error)
}

// ListRooms filters by category and status when they are non-empty.
func (s *Store) ListRooms(ctx context.Context, category, status string) ([]models.Room, error) {
	q := s.conn(ctx).Model(&models.Room{})
	if category != "" {
		q = q.Where("category = ?", category)
	}
	if status != "" {
		q = q.Where("status = ?", status)
	}
	var out []models.Room
	err := q.Order("number ASC").Find(&out).Error
	return out, err
}

func (s *Store) RoomCategories(ctx context.Context) ([]string, error) {
	var out []string
	err := s.conn(ctx).Model(&models.Room{}).Distinct().Pluck("category", &out).Error
	return out, err
}

// SetRoomStatus is the single atomic write of the derived room status.
func (s *Store) SetRoomStatus(ctx context.Context, id uint, status models.RoomStatus) error {
	res := s.conn(ctx).Model(&models.Room{}).Where("id = ?", id).Update("status", status)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return notFound(gorm.ErrRecordNotFound, "no room with the id of %d", id)
	}
	return nil
}

func (s *Store) SetRoomOverride(ctx context.Context, id uint, override *models.RoomStatus, note string) error {
	res := s.conn(ctx).Model(&models.Room{}).Where("id = ?", id).
		Updates(map[string]any{"override": override, "override_note": note})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return notFound(gorm.ErrRecordNotFound, "no room with the id of %d", id)
	}
	return nil
}

// CountStaysOn counts the checked-in bookings of roomID whose stay covers day.
func (s *Store) CountStaysOn(ctx context.Context, roomID uint, day time.Time) (int64, error) {
	var n int64
	err := s.conn(ctx).Model(&models.Booking{}).
		Where("room_id = ? AND status = ?", roomID, models.BookingCheckedIn).
		Where("check_in <= ? AND check_out > ?", day, day).
		Count(&n).Error
	return n, err
}

func (s *Store) CountCheckedIn(ctx context.Context, roomID uint) (int64, error) {
	var n int64
	err := s.conn(ctx).Model(&models.Booking{}).
		Where("room_id = ? AND status = ?", roomID, models.BookingCheckedIn).
		Count(&n).Error
	return n, err
}

// OpenTasks returns the housekeeping tasks of roomID that still hold it.
func (s *Store) OpenTasks(ctx context.Context, roomID uint) ([]models.HousekeepingTask, error) {
	var out []models.HousekeepingTask
	err := s.conn(ctx).
		Where("room_id = ? AND status IN ?", roomID, []models.TaskStatus{
			models.TaskRequested, models.TaskAssigned, models.TaskInProgress, models.TaskDelayed,
		}).
		Find(&out).Error
	return out, err
}
