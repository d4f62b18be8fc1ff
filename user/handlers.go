// Package user manages staff and guest accounts and issues login tokens.
package user

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/hidenkeys/innkeeper/apperr"
	"github.com/hidenkeys/innkeeper/auth"
	"github.com/hidenkeys/innkeeper/models"
	"github.com/sirupsen/logrus"
)

const cookieName = "authtoken"

type Store interface {
	CreateUser(ctx context.Context, u *models.User) error
	UserByEmail(ctx context.Context, email string) (*models.User, error)
	GetUser(ctx context.Context, id uint) (*models.User, error)
	SearchUsers(ctx context.Context, role, query string) ([]models.User, error)
	SetUserPassword(ctx context.Context, id uint, hash string) error
}

type Handler struct {
	store    Store
	secret   string
	tokenTTL time.Duration
}

func NewHandler(store Store, secret string, tokenTTL time.Duration) *Handler {
	if tokenTTL <= 0 {
		tokenTTL = 72 * time.Hour
	}
	return &Handler{store: store, secret: secret, tokenTTL: tokenTTL}
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

func (h *Handler) Login(c fiber.Ctx) error {
	req := new(loginRequest)
	if err := c.Bind().JSON(req); err != nil {
		return apperr.Validation("invalid request body")
	}
	if err := apperr.Validate(req); err != nil {
		return err
	}

	u, err := h.store.UserByEmail(c.UserContext(), req.Email)
	if apperr.Is(err, apperr.KindNotFound) {
		return apperr.Unauthorized("incorrect email or password")
	}
	if err != nil {
		return err
	}
	if !u.CheckPassword(req.Password) {
		return apperr.Unauthorized("incorrect email or password")
	}

	token, err := auth.Issue(h.secret, u, h.tokenTTL)
	if err != nil {
		return err
	}
	c.Cookie(&fiber.Cookie{
		Name:     cookieName,
		Value:    token,
		Expires:  time.Now().Add(h.tokenTTL),
		HTTPOnly: true,
		SameSite: fiber.CookieSameSiteLaxMode,
	})
	return c.Status(http.StatusOK).JSON(fiber.Map{
		"success": true,
		"data":    fiber.Map{"token": token, "user": u},
	})
}

func (h *Handler) Logout(c fiber.Ctx) error {
	c.Cookie(&fiber.Cookie{
		Name:     cookieName,
		Value:    "",
		Expires:  time.Now().Add(-time.Hour),
		HTTPOnly: true,
	})
	return c.Status(http.StatusOK).JSON(fiber.Map{"success": true, "message": "Successfully logged out"})
}

type createUserRequest struct {
	Email     string      `json:"email" validate:"required,email"`
	Password  string      `json:"password" validate:"required,min=8"`
	FirstName string      `json:"firstName" validate:"required,max=50"`
	LastName  string      `json:"lastName" validate:"max=50"`
	Phone     string      `json:"phone" validate:"max=20"`
	Role      models.Role `json:"role"`
}

// Register opens a guest account. It is public.
func (h *Handler) Register(c fiber.Ctx) error {
	req := new(createUserRequest)
	if err := c.Bind().JSON(req); err != nil {
		return apperr.Validation("invalid request body")
	}
	req.Role = models.RoleGuest
	return h.create(c, req)
}

// Create opens an account with any role. Admin only.
func (h *Handler) Create(c fiber.Ctx) error {
	req := new(createUserRequest)
	if err := c.Bind().JSON(req); err != nil {
		return apperr.Validation("invalid request body")
	}
	if req.Role == "" {
		req.Role = models.RoleReceptionist
	}
	if !req.Role.Valid() {
		return apperr.Validation("unknown role %q", req.Role)
	}
	return h.create(c, req)
}

func (h *Handler) create(c fiber.Ctx, req *createUserRequest) error {
	if err := apperr.Validate(req); err != nil {
		return err
	}
	u := &models.User{
		Email:     req.Email,
		Password:  req.Password,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Phone:     req.Phone,
		Role:      req.Role,
	}
	if err := h.store.CreateUser(c.UserContext(), u); err != nil {
		if errors.Is(err, apperr.ErrDuplicate) {
			return apperr.Conflict("an account with email %s already exists", req.Email)
		}
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"success": true, "data": u})
}

// Search filters by ?role= and ?q=.
func (h *Handler) Search(c fiber.Ctx) error {
	role := c.Query("role")
	if role != "" && !models.Role(role).Valid() {
		return apperr.Validation("unknown role %q", role)
	}
	users, err := h.store.SearchUsers(c.UserContext(), role, c.Query("q"))
	if err != nil {
		return err
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"success": true, "count": len(users), "data": users})
}

func (h *Handler) Me(c fiber.Ctx) error {
	u, err := h.store.GetUser(c.UserContext(), auth.ActorFrom(c).UserID)
	if err != nil {
		return err
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"success": true, "data": u})
}

func (h *Handler) GetByID(c fiber.Ctx) error {
	id, err := userID(c)
	if err != nil {
		return err
	}
	if a := auth.ActorFrom(c); !a.Admin() && a.UserID != id {
		return apperr.Unauthorized("not allowed to view user %d", id)
	}
	u, err := h.store.GetUser(c.UserContext(), id)
	if err != nil {
		return err
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"success": true, "data": u})
}

type changePasswordRequest struct {
	Current         string `json:"currentPassword"`
	Password        string `json:"password" validate:"required,min=8"`
	ConfirmPassword string `json:"confirmPassword" validate:"required,eqfield=Password"`
}

// ChangePassword lets users change their own password; admins may reset
// anyone's without the current one.
func (h *Handler) ChangePassword(c fiber.Ctx) error {
	id, err := userID(c)
	if err != nil {
		return err
	}
	actor := auth.ActorFrom(c)
	if !actor.Admin() && actor.UserID != id {
		return apperr.Unauthorized("not allowed to change the password of user %d", id)
	}
	req := new(changePasswordRequest)
	if err := c.Bind().JSON(req); err != nil {
		return apperr.Validation("invalid request body")
	}
	if err := apperr.Validate(req); err != nil {
		return err
	}

	u, err := h.store.GetUser(c.UserContext(), id)
	if err != nil {
		return err
	}
	if actor.UserID == id && !u.CheckPassword(req.Current) {
		return apperr.Unauthorized("current password is incorrect")
	}
	hash, err := models.HashPassword(req.Password)
	if err != nil {
		return err
	}
	if err := h.store.SetUserPassword(c.UserContext(), id, hash); err != nil {
		return err
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"success": true})
}

// SeedAdmin creates the first admin account unless the email is taken.
func SeedAdmin(ctx context.Context, store Store, email, password string, log *logrus.Logger) error {
	if email == "" || password == "" {
		return nil
	}
	_, err := store.UserByEmail(ctx, email)
	if err == nil {
		return nil
	}
	if !apperr.Is(err, apperr.KindNotFound) {
		return err
	}
	u := &models.User{Email: email, Password: password, FirstName: "Admin", Role: models.RoleAdmin}
	if err := store.CreateUser(ctx, u); err != nil {
		return err
	}
	log.WithField("email", email).Info("admin seeded")
	return nil
}

func userID(c fiber.Ctx) (uint, error) {
	id, err := strconv.ParseUint(c.Params("id"), 10, 64)
	if err != nil || id == 0 {
		return 0, apperr.Validation("invalid user id")
	}
	return uint(id), nil
}
