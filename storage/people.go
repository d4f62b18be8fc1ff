package storage

import (
	"context"

	"github.com/hidenkeys/innkeeper/models"
	"gorm.io/gorm"
)

func (s *Store) CreateUser(ctx context.Context, u *models.User) error {
	return duplicate(s.conn(ctx).Create(u).Error)
}

func (s *Store) UserByEmail(ctx context.Context, email string) (*models.User, error) {
	var u models.User
	if err := s.conn(ctx).Where("email = ?", email).First(&u).Error; err != nil {
		return nil, notFound(err, "no user with email %s", email)
	}
	return &u, nil
}

func (s *Store) GetUser(ctx context.Context, id uint) (*models.User, error) {
	var u models.User
	if err := s.conn(ctx).First(&u, id).Error; err != nil {
		return nil, notFound(err, "no user with the id of %d", id)
	}
	return &u, nil
}

func (s *Store) CreateGuest(ctx context.Context, g *models.Guest) error {
	return duplicate(s.conn(ctx).Create(g).Error)
}

func (s *Store) GetGuest(ctx context.Context, id uint) (*models.Guest, error) {
	var g models.Guest
	if err := s.conn(ctx).First(&g, id).Error; err != nil {
		return nil, notFound(err, "no guest with the id of %d", id)
	}
	return &g, nil
}

// SearchGuests matches name, email or phone; an empty query lists everyone.
func (s *Store) SearchGuests(ctx context.Context, query string) ([]models.Guest, error) {
	q := s.conn(ctx).Model(&models.Guest{})
	if query != "" {
		like := "%" + query + "%"
		q = q.Where("first_name LIKE @q OR last_name LIKE @q OR email LIKE @q OR phone LIKE @q",
			map[string]any{"q": like})
	}
	var out []models.Guest
	err := q.Order("last_name ASC").Find(&out).Error
	return out, err
}

func (s *Store) UpdateGuest(ctx context.Context, id uint, fields map[string]any) error {
	res := s.conn(ctx).Model(&models.Guest{}).Where("id = ?", id).Updates(fields)
	if res.Error != nil {
		return duplicate(res.Error)
	}
	if res.RowsAffected == 0 {
		return notFound(gorm.ErrRecordNotFound, "no guest with the id of %d", id)
	}
	return nil
}

// SearchUsers filters accounts by role and matches q against name and email.
func (s *Store) SearchUsers(ctx context.Context, role, query string) ([]models.User, error) {
	q := s.conn(ctx).Model(&models.User{})
	if role != "" {
		q = q.Where("role = ?", role)
	}
	if query != "" {
		like := "%" + query + "%"
		q = q.Where("first_name LIKE @q OR last_name LIKE @q OR email LIKE @q", map[string]any{"q": like})
	}
	var out []models.User
	err := q.Order("id ASC").Find(&out).Error
	return out, err
}

// SetUserPassword stores an already hashed password.
func (s *Store) SetUserPassword(ctx context.Context, id uint, hash string) error {
	res := s.conn(ctx).Model(&models.User{}).Where("id = ?", id).Update("password", hash)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return notFound(gorm.ErrRecordNotFound, "no user with the id of %d", id)
	}
	return nil
}
