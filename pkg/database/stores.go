package database

import (
	"context"
	"time"

	"github.com/busify/busify/pkg/ctdf"
)

type VehicleStore interface {
	GetVehicle(ctx context.Context, vehicleID string) (*ctdf.Vehicle, error)
	ListVehicles(ctx context.Context) ([]*ctdf.Vehicle, error)
	// SearchVehicles returns vehicles calling at both stops
	SearchVehicles(ctx context.Context, pickup string, destination string) ([]*ctdf.Vehicle, error)
	UpsertVehicles(ctx context.Context, vehicles []*ctdf.Vehicle) error
}

type BookingStore interface {
	SaveTicket(ctx context.Context, ticket *ctdf.Ticket) error
	LatestTicket(ctx context.Context, passengerID string, vehicleID string) (*ctdf.Ticket, error)
	LiveTickets(ctx context.Context, vehicleID string, since time.Time) ([]*ctdf.Ticket, error)
	FindTicket(ctx context.Context, vehicleID string, code string, since time.Time) (*ctdf.Ticket, error)
	ListTickets(ctx context.Context) ([]*ctdf.Ticket, error)
}

type AlertStore interface {
	CreateAlert(ctx context.Context, alert *ctdf.Alert) error
	ResolveAlert(ctx context.Context, alertID string, resolvedAt time.Time) (*ctdf.Alert, error)
	// ListAlerts returns newest first, an empty vehicle lists every alert
	ListAlerts(ctx context.Context, vehicleID string) ([]*ctdf.Alert, error)
}

type LostItemStore interface {
	CreateLostItem(ctx context.Context, item *ctdf.LostItem) error
	DeleteLostItem(ctx context.Context, itemID string) error
	ListLostItems(ctx context.Context, vehicleID string) ([]*ctdf.LostItem, error)
}

type PushTargetStore interface {
	SavePushTarget(ctx context.Context, target *ctdf.UserPushNotificationTarget) error
	GetPushTargets(ctx context.Context, userID string) ([]*ctdf.UserPushNotificationTarget, error)
}

type Stores struct {
	Vehicles    VehicleStore
	Bookings    BookingStore
	Alerts      AlertStore
	LostItems   LostItemStore
	PushTargets PushTargetStore
}
