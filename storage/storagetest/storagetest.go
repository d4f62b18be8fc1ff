// Package storagetest opens throwaway in-memory stores for tests.
package storagetest

import (
	"fmt"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/hidenkeys/innkeeper/models"
	"github.com/hidenkeys/innkeeper/storage"
)

var seq atomic.Int64

// New returns a migrated store backed by a private in-memory sqlite database.
func New(t testing.TB) *storage.Store {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s_%d?mode=memory&cache=shared", name, seq.Add(1))

	db, err := storage.ConnectDB("sqlite", dsn, "silent")
	if err != nil {
		t.Fatal(err)
	}
	if err := storage.Migrate(db); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return storage.New(db)
}

// Room inserts a room with the given nightly price and capacity.
func Room(t testing.TB, s *storage.Store, number string, price float64, capacity int) *models.Room {
	t.Helper()
	r := &models.Room{Number: number, Category: "standard", Price: price, Capacity: capacity, Status: models.RoomAvailable}
	if err := s.DB().Create(r).Error; err != nil {
		t.Fatal(err)
	}
	return r
}

// User inserts an account with the given role.
func User(t testing.TB, s *storage.Store, email string, role models.Role) *models.User {
	t.Helper()
	u := &models.User{Email: email, Password: "password", Role: role, FirstName: "Test"}
	if err := s.DB().Create(u).Error; err != nil {
		t.Fatal(err)
	}
	return u
}

// Guest inserts a guest record.
func Guest(t testing.TB, s *storage.Store, email string) *models.Guest {
	t.Helper()
	g := &models.Guest{FirstName: "Ada", LastName: "Guest", Email: email, Phone: "555-0100"}
	if err := s.DB().Create(g).Error; err != nil {
		t.Fatal(err)
	}
	return g
}
