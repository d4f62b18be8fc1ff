// Package report exports bookings as spreadsheets for the back office.
package report

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/hidenkeys/innkeeper/apperr"
	"github.com/hidenkeys/innkeeper/booking"
	"github.com/hidenkeys/innkeeper/models"
	"github.com/xuri/excelize/v2"
)

const (
	bookingsSheet = "Bookings"
	summarySheet  = "Summary"
)

var headers = []string{
	"Booking", "Room", "Guest", "Phone", "Email", "Check-in", "Check-out", "Nights",
	"Status", "Total", "Paid", "Outstanding", "Payment Status", "Source",
}

type Store interface {
	BookingsInRange(ctx context.Context, start, end time.Time) ([]models.Booking, error)
	ListRooms(ctx context.Context, category, status string) ([]models.Room, error)
	GetGuest(ctx context.Context, id uint) (*models.Guest, error)
}

type Handler struct {
	store Store
}

func NewHandler(store Store) *Handler {
	return &Handler{store: store}
}

// Bookings serves GET /reports/bookings.xlsx?startDate=&endDate=.
func (h *Handler) Bookings(c fiber.Ctx) error {
	start, err := booking.ParseDate(c.Query("startDate"))
	if err != nil {
		return err
	}
	end, err := booking.ParseDate(c.Query("endDate"))
	if err != nil {
		return err
	}
	if end.Before(start) {
		return apperr.Validation("endDate must not be before startDate")
	}

	buf, err := Build(c.UserContext(), h.store, start, end)
	if err != nil {
		return err
	}
	name := fmt.Sprintf("bookings_%s_%s.xlsx", start.Format(time.DateOnly), end.Format(time.DateOnly))
	c.Set(fiber.HeaderContentType, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Set(fiber.HeaderContentDisposition, fmt.Sprintf(`attachment; filename="%s"`, name))
	return c.Status(http.StatusOK).Send(buf.Bytes())
}

// Build renders every booking touching [start, end] plus a per-status summary.
func Build(ctx context.Context, store Store, start, end time.Time) (*bytes.Buffer, error) {
	bookings, err := store.BookingsInRange(ctx, start, end)
	if err != nil {
		return nil, err
	}
	rooms, err := store.ListRooms(ctx, "", "")
	if err != nil {
		return nil, err
	}
	numbers := make(map[uint]string, len(rooms))
	for _, r := range rooms {
		numbers[r.ID] = r.Number
	}
	guests := map[uint]*models.Guest{}

	f := excelize.NewFile()
	defer f.Close()
	if err := f.SetSheetName("Sheet1", bookingsSheet); err != nil {
		return nil, err
	}
	for i, header := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(bookingsSheet, cell, header)
	}

	type total struct {
		count        int
		amount, paid float64
	}
	totals := map[models.BookingStatus]*total{}
	var order []models.BookingStatus

	for i, b := range bookings {
		var g models.Guest
		if b.GuestID != 0 {
			cached, ok := guests[b.GuestID]
			if !ok {
				cached, err = store.GetGuest(ctx, b.GuestID)
				if err != nil && !apperr.Is(err, apperr.KindNotFound) {
					return nil, err
				}
				guests[b.GuestID] = cached
			}
			if cached != nil {
				g = *cached
			}
		}

		row := []any{
			b.ID, numbers[b.RoomID], fullName(g), g.Phone, g.Email,
			b.CheckIn.Format(time.DateOnly), b.CheckOut.Format(time.DateOnly), b.Nights(),
			string(b.Status), b.TotalAmount, b.AmountPaid, b.TotalAmount - b.AmountPaid,
			string(b.PaymentStatus), b.Source,
		}
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := f.SetSheetRow(bookingsSheet, cell, &row); err != nil {
			return nil, err
		}

		t, ok := totals[b.Status]
		if !ok {
			t = &total{}
			totals[b.Status] = t
			order = append(order, b.Status)
		}
		t.count++
		t.amount += b.TotalAmount
		t.paid += b.AmountPaid
	}

	if _, err := f.NewSheet(summarySheet); err != nil {
		return nil, err
	}
	f.SetSheetRow(summarySheet, "A1", &[]any{"Status", "Bookings", "Total", "Paid"})
	for i, status := range order {
		t := totals[status]
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		f.SetSheetRow(summarySheet, cell, &[]any{string(status), t.count, t.amount, t.paid})
	}
	f.SetCellValue(summarySheet, fmt.Sprintf("A%d", len(order)+3), "Period")
	f.SetCellValue(summarySheet, fmt.Sprintf("B%d", len(order)+3),
		start.Format(time.DateOnly)+" to "+end.Format(time.DateOnly))

	return f.WriteToBuffer()
}

func fullName(g models.Guest) string {
	switch {
	case g.FirstName == "":
		return g.LastName
	case g.LastName == "":
		return g.FirstName
	}
	return g.FirstName + " " + g.LastName
}
