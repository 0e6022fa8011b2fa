package database

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/busify/busify/pkg/ctdf"
	"github.com/busify/busify/pkg/util"
	"github.com/jinzhu/copier"
)

// NewMemoryStores keeps everything in process, used for local development and tests
func NewMemoryStores() *Stores {
	return &Stores{
		Vehicles:    NewMemoryVehicleStore(),
		Bookings:    &MemoryBookingStore{},
		Alerts:      &MemoryAlertStore{},
		LostItems:   &MemoryLostItemStore{},
		PushTargets: &MemoryPushTargetStore{},
	}
}

type MemoryVehicleStore struct {
	mutex    sync.RWMutex
	vehicles map[string]*ctdf.Vehicle
}

func NewMemoryVehicleStore(vehicles ...*ctdf.Vehicle) *MemoryVehicleStore {
	store := &MemoryVehicleStore{vehicles: map[string]*ctdf.Vehicle{}}
	store.UpsertVehicles(context.Background(), vehicles)

	return store
}

func (s *MemoryVehicleStore) GetVehicle(_ context.Context, vehicleID string) (*ctdf.Vehicle, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	if vehicle, ok := s.vehicles[vehicleID]; ok {
		return cloneVehicle(vehicle), nil
	}
	for _, vehicle := range s.vehicles {
		if vehicle.Number == vehicleID {
			return cloneVehicle(vehicle), nil
		}
	}

	return nil, ctdf.NewNotFoundError("vehicle", vehicleID)
}

func (s *MemoryVehicleStore) ListVehicles(_ context.Context) ([]*ctdf.Vehicle, error) {
	return s.filter(func(*ctdf.Vehicle) bool { return true }), nil
}

func (s *MemoryVehicleStore) SearchVehicles(_ context.Context, pickup string, destination string) ([]*ctdf.Vehicle, error) {
	return s.filter(func(vehicle *ctdf.Vehicle) bool { return vehicle.Serves(pickup, destination) }), nil
}

func (s *MemoryVehicleStore) UpsertVehicles(_ context.Context, vehicles []*ctdf.Vehicle) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	for _, vehicle := range vehicles {
		s.vehicles[vehicle.PrimaryIdentifier] = cloneVehicle(vehicle)
	}

	return nil
}

func (s *MemoryVehicleStore) filter(predicate func(*ctdf.Vehicle) bool) []*ctdf.Vehicle {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	vehicles := []*ctdf.Vehicle{}
	for _, vehicle := range s.vehicles {
		if predicate(vehicle) {
			vehicles = append(vehicles, cloneVehicle(vehicle))
		}
	}
	sort.Slice(vehicles, func(i, j int) bool { return vehicles[i].PrimaryIdentifier < vehicles[j].PrimaryIdentifier })

	return vehicles
}

func cloneVehicle(vehicle *ctdf.Vehicle) *ctdf.Vehicle {
	clone := &ctdf.Vehicle{}
	copier.CopyWithOption(clone, vehicle, copier.Option{DeepCopy: true})

	return clone
}

type MemoryBookingStore struct {
	mutex   sync.RWMutex
	tickets []ctdf.Ticket
}

func (s *MemoryBookingStore) SaveTicket(_ context.Context, ticket *ctdf.Ticket) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.tickets = append(s.tickets, *ticket)

	return nil
}

func (s *MemoryBookingStore) LatestTicket(_ context.Context, passengerID string, vehicleID string) (*ctdf.Ticket, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	for i := len(s.tickets) - 1; i >= 0; i-- {
		if s.tickets[i].PassengerID == passengerID && s.tickets[i].VehicleID == vehicleID {
			ticket := s.tickets[i]
			return &ticket, nil
		}
	}

	return nil, ctdf.NewNotFoundError("booking", passengerID+"/"+vehicleID)
}

func (s *MemoryBookingStore) LiveTickets(_ context.Context, vehicleID string, since time.Time) ([]*ctdf.Ticket, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	tickets := []*ctdf.Ticket{}
	for _, ticket := range s.tickets {
		if ticket.VehicleID == vehicleID && !ticket.IssuedAt.Before(since) {
			tickets = append(tickets, &ticket)
		}
	}

	return tickets, nil
}

func (s *MemoryBookingStore) FindTicket(_ context.Context, vehicleID string, code string, since time.Time) (*ctdf.Ticket, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	for i := len(s.tickets) - 1; i >= 0; i-- {
		ticket := s.tickets[i]
		if ticket.VehicleID == vehicleID && ticket.Code == code && !ticket.IssuedAt.Before(since) {
			return &ticket, nil
		}
	}

	return nil, ctdf.NewNotFoundError("ticket", vehicleID+"/"+code)
}

func (s *MemoryBookingStore) ListTickets(_ context.Context) ([]*ctdf.Ticket, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	tickets := make([]*ctdf.Ticket, 0, len(s.tickets))
	for _, ticket := range s.tickets {
		tickets = append(tickets, &ticket)
	}

	return tickets, nil
}

type MemoryAlertStore struct {
	mutex  sync.RWMutex
	alerts []ctdf.Alert
}

func (s *MemoryAlertStore) CreateAlert(_ context.Context, alert *ctdf.Alert) error {
	if alert.PrimaryIdentifier == "" {
		alert.PrimaryIdentifier = NewIdentifier("alert")
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.alerts = append(s.alerts, *alert)

	return nil
}

func (s *MemoryAlertStore) ResolveAlert(_ context.Context, alertID string, resolvedAt time.Time) (*ctdf.Alert, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	for i := range s.alerts {
		if s.alerts[i].PrimaryIdentifier == alertID {
			s.alerts[i].Resolved = true
			s.alerts[i].ResolvedAt = resolvedAt

			alert := s.alerts[i]
			return &alert, nil
		}
	}

	return nil, ctdf.NewNotFoundError("alert", alertID)
}

func (s *MemoryAlertStore) ListAlerts(_ context.Context, vehicleID string) ([]*ctdf.Alert, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	alerts := []*ctdf.Alert{}
	for _, alert := range s.alerts {
		if vehicleID == "" || alert.VehicleID == vehicleID {
			alerts = append(alerts, &alert)
		}
	}
	sort.SliceStable(alerts, func(i, j int) bool { return alerts[i].CreationDateTime.After(alerts[j].CreationDateTime) })

	return alerts, nil
}

type MemoryLostItemStore struct {
	mutex sync.RWMutex
	items []ctdf.LostItem
}

func (s *MemoryLostItemStore) CreateLostItem(_ context.Context, item *ctdf.LostItem) error {
	if item.PrimaryIdentifier == "" {
		item.PrimaryIdentifier = NewIdentifier("lostitem")
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.items = append(s.items, *item)

	return nil
}

func (s *MemoryLostItemStore) DeleteLostItem(_ context.Context, itemID string) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	before := len(s.items)
	util.InPlaceFilter(&s.items, func(item ctdf.LostItem) bool { return item.PrimaryIdentifier != itemID })

	if len(s.items) == before {
		return ctdf.NewNotFoundError("lost item", itemID)
	}

	return nil
}

func (s *MemoryLostItemStore) ListLostItems(_ context.Context, vehicleID string) ([]*ctdf.LostItem, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	items := []*ctdf.LostItem{}
	for _, item := range s.items {
		if vehicleID == "" || item.VehicleID == vehicleID {
			items = append(items, &item)
		}
	}
	sort.SliceStable(items, func(i, j int) bool { return items[i].CreationDateTime.After(items[j].CreationDateTime) })

	return items, nil
}

type MemoryPushTargetStore struct {
	mutex   sync.RWMutex
	targets []ctdf.UserPushNotificationTarget
}

func (s *MemoryPushTargetStore) SavePushTarget(_ context.Context, target *ctdf.UserPushNotificationTarget) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	for i := range s.targets {
		if s.targets[i].UserID == target.UserID && s.targets[i].PushNotificationToken == target.PushNotificationToken {
			s.targets[i] = *target
			return nil
		}
	}
	s.targets = append(s.targets, *target)

	return nil
}

func (s *MemoryPushTargetStore) GetPushTargets(_ context.Context, userID string) ([]*ctdf.UserPushNotificationTarget, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	targets := []*ctdf.UserPushNotificationTarget{}
	for _, target := range s.targets {
		if target.UserID == userID {
			targets = append(targets, &target)
		}
	}

	return targets, nil
}
