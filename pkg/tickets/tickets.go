package tickets

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/busify/busify/pkg/ctdf"
	"github.com/rs/zerolog/log"
)

const (
	DefaultLifetime    = 24 * time.Hour
	DefaultMaxAttempts = 16
)

type VehicleDirectory interface {
	GetVehicle(ctx context.Context, vehicleID string) (*ctdf.Vehicle, error)
}

// BookingStore persists issued tickets. Lookups return an error wrapping ctdf.ErrNotFound when nothing matches.
type BookingStore interface {
	SaveTicket(ctx context.Context, ticket *ctdf.Ticket) error
	LatestTicket(ctx context.Context, passengerID string, vehicleID string) (*ctdf.Ticket, error)
	// LiveTickets returns the vehicle's tickets issued at or after since
	LiveTickets(ctx context.Context, vehicleID string, since time.Time) ([]*ctdf.Ticket, error)
	FindTicket(ctx context.Context, vehicleID string, code string, since time.Time) (*ctdf.Ticket, error)
}

// Confirmer is a best effort side effect run after a ticket has been persisted
type Confirmer interface {
	ConfirmTicket(ctx context.Context, ticket ctdf.Ticket) error
}

type ConfirmerFunc func(ctx context.Context, ticket ctdf.Ticket) error

func (f ConfirmerFunc) ConfirmTicket(ctx context.Context, ticket ctdf.Ticket) error {
	return f(ctx, ticket)
}

type Options struct {
	Directory  VehicleDirectory
	Store      BookingStore
	Confirmers []Confirmer

	// Lifetime of zero keeps codes live for the life of the process
	Lifetime    time.Duration
	MaxAttempts int

	Now        func() time.Time
	CodeSource func() int
}

type passengerVehicle struct {
	passengerID string
	vehicleID   string
}

type Service struct {
	directory  VehicleDirectory
	store      BookingStore
	confirmers []Confirmer

	lifetime    time.Duration
	maxAttempts int
	now         func() time.Time
	codeSource  func() int

	vehicleLocksMutex sync.Mutex
	vehicleLocks      map[string]*sync.Mutex

	stateMutex sync.RWMutex
	liveCodes  map[string]map[string]ctdf.Ticket
	loaded     map[string]bool
	latest     map[passengerVehicle]ctdf.Ticket
}

func RandomCode() int {
	return ctdf.TicketCodeMin + rand.IntN(ctdf.TicketCodeMax-ctdf.TicketCodeMin+1)
}

func NewService(options Options) *Service {
	if options.MaxAttempts <= 0 {
		options.MaxAttempts = DefaultMaxAttempts
	}
	if options.Now == nil {
		options.Now = time.Now
	}
	if options.CodeSource == nil {
		options.CodeSource = RandomCode
	}

	return &Service{
		directory:    options.Directory,
		store:        options.Store,
		confirmers:   options.Confirmers,
		lifetime:     options.Lifetime,
		maxAttempts:  options.MaxAttempts,
		now:          options.Now,
		codeSource:   options.CodeSource,
		vehicleLocks: map[string]*sync.Mutex{},
		liveCodes:    map[string]map[string]ctdf.Ticket{},
		loaded:       map[string]bool{},
		latest:       map[passengerVehicle]ctdf.Ticket{},
	}
}

func (s *Service) AddConfirmer(confirmer Confirmer) {
	s.confirmers = append(s.confirmers, confirmer)
}

func (s *Service) ValidateCode(code string) error {
	return ctdf.ValidateTicketCode(code)
}

// IssueTicket books the passenger onto the vehicle between two of its stops.
// Every call allocates a new code, use GetTicketFor to show an existing one again.
func (s *Service) IssueTicket(ctx context.Context, passengerID string, vehicleID string, pickup string, drop string) (ctdf.Ticket, error) {
	if passengerID == "" {
		return ctdf.Ticket{}, ctdf.NewValidationError("passenger identifier is required")
	}
	if pickup == "" || drop == "" {
		return ctdf.Ticket{}, ctdf.NewInvalidSelectionError("pickup and drop stops are required")
	}
	if pickup == drop {
		return ctdf.Ticket{}, ctdf.NewInvalidSelectionError(fmt.Sprintf("pickup and drop are both %q", pickup))
	}

	vehicle, err := s.directory.GetVehicle(ctx, vehicleID)
	if errors.Is(err, ctdf.ErrNotFound) {
		return ctdf.Ticket{}, err
	} else if err != nil {
		return ctdf.Ticket{}, ctdf.NewDependencyError("vehicle directory", err)
	}

	for _, stop := range []string{pickup, drop} {
		if !vehicle.HasStop(stop) {
			return ctdf.Ticket{}, ctdf.NewInvalidSelectionError(fmt.Sprintf("stop %q is not served by vehicle %s", stop, vehicleID))
		}
	}

	ticket, err := s.allocate(ctx, passengerID, primaryIdentifier(vehicle, vehicleID), pickup, drop)
	if err != nil {
		return ctdf.Ticket{}, err
	}

	s.confirm(ctx, ticket)

	return ticket, nil
}

func (s *Service) allocate(ctx context.Context, passengerID string, vehicleID string, pickup string, drop string) (ctdf.Ticket, error) {
	lock := s.vehicleLock(vehicleID)
	lock.Lock()
	defer lock.Unlock()

	now := s.now()
	if err := s.loadLiveCodes(ctx, vehicleID, now); err != nil {
		return ctdf.Ticket{}, err
	}
	s.pruneExpired(vehicleID, now)

	code := ""
	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		candidate := fmt.Sprintf("%05d", s.codeSource())

		if s.isLive(vehicleID, candidate, now) {
			log.Debug().Str("vehicle", vehicleID).Int("attempt", attempt).Msg("Ticket code collision")
			continue
		}

		code = candidate
		break
	}
	if code == "" {
		return ctdf.Ticket{}, fmt.Errorf("%w: no free ticket code for vehicle %s after %d attempts", ctdf.ErrResourceExhausted, vehicleID, s.maxAttempts)
	}

	ticket := ctdf.Ticket{
		Code:        code,
		PassengerID: passengerID,
		VehicleID:   vehicleID,
		PickupStop:  pickup,
		DropStop:    drop,
		IssuedAt:    now,
	}

	if err := s.store.SaveTicket(ctx, &ticket); err != nil {
		return ctdf.Ticket{}, ctdf.NewDependencyError("booking store", err)
	}

	s.stateMutex.Lock()
	s.remember(ticket)
	s.latest[passengerVehicle{passengerID, vehicleID}] = ticket
	s.stateMutex.Unlock()

	return ticket, nil
}

func (s *Service) confirm(ctx context.Context, ticket ctdf.Ticket) {
	for _, confirmer := range s.confirmers {
		if err := confirmer.ConfirmTicket(ctx, ticket); err != nil {
			log.Error().Err(err).
				Str("vehicle", ticket.VehicleID).
				Str("code", ticket.Code).
				Msg("Failed to confirm booking")
		}
	}
}

// GetTicketFor returns the most recent ticket for the pair without issuing a new one
func (s *Service) GetTicketFor(ctx context.Context, passengerID string, vehicleID string) (ctdf.Ticket, error) {
	vehicleID, err := s.canonicalVehicleID(ctx, vehicleID)
	if err != nil {
		return ctdf.Ticket{}, err
	}

	s.stateMutex.RLock()
	ticket, ok := s.latest[passengerVehicle{passengerID, vehicleID}]
	s.stateMutex.RUnlock()

	if ok {
		return ticket, nil
	}

	stored, err := s.store.LatestTicket(ctx, passengerID, vehicleID)
	if errors.Is(err, ctdf.ErrNotFound) {
		return ctdf.Ticket{}, err
	} else if err != nil {
		return ctdf.Ticket{}, ctdf.NewDependencyError("booking store", err)
	}

	lock := s.vehicleLock(vehicleID)
	lock.Lock()
	defer lock.Unlock()

	s.stateMutex.Lock()
	defer s.stateMutex.Unlock()

	key := passengerVehicle{passengerID, vehicleID}
	if cached, ok := s.latest[key]; ok && cached.IssuedAt.After(stored.IssuedAt) {
		return cached, nil
	}

	s.latest[key] = *stored
	if s.isLiveLocked(*stored, s.now()) {
		s.remember(*stored)
	}

	return *stored, nil
}

// VerifyTicket is the conductor check of a presented code.
// Codes issued before a restart are found through the booking store.
func (s *Service) VerifyTicket(ctx context.Context, vehicleID string, code string) (ctdf.Ticket, error) {
	if err := ctdf.ValidateTicketCode(code); err != nil {
		return ctdf.Ticket{}, err
	}

	vehicleID, err := s.canonicalVehicleID(ctx, vehicleID)
	if err != nil {
		return ctdf.Ticket{}, err
	}

	now := s.now()

	s.stateMutex.RLock()
	ticket, ok := s.liveCodes[vehicleID][code]
	s.stateMutex.RUnlock()

	if ok && s.isLiveLocked(ticket, now) {
		return ticket, nil
	}

	stored, err := s.store.FindTicket(ctx, vehicleID, code, s.liveSince(now))
	if errors.Is(err, ctdf.ErrNotFound) {
		return ctdf.Ticket{}, ctdf.NewNotFoundError("ticket", vehicleID+"/"+code)
	} else if err != nil {
		return ctdf.Ticket{}, ctdf.NewDependencyError("booking store", err)
	}
	if !s.isLiveLocked(*stored, now) {
		return ctdf.Ticket{}, ctdf.NewNotFoundError("ticket", vehicleID+"/"+code)
	}

	s.stateMutex.Lock()
	s.remember(*stored)
	s.stateMutex.Unlock()

	return *stored, nil
}

func (s *Service) LiveCodeCount(vehicleID string) int {
	now := s.now()

	s.stateMutex.RLock()
	defer s.stateMutex.RUnlock()

	count := 0
	for _, ticket := range s.liveCodes[vehicleID] {
		if s.isLiveLocked(ticket, now) {
			count++
		}
	}

	return count
}

// canonicalVehicleID maps a vehicle number onto the primary identifier codes are scoped by.
// Unknown vehicles keep the identifier they were asked for so stored bookings stay reachable.
func (s *Service) canonicalVehicleID(ctx context.Context, vehicleID string) (string, error) {
	vehicle, err := s.directory.GetVehicle(ctx, vehicleID)
	if errors.Is(err, ctdf.ErrNotFound) {
		return vehicleID, nil
	} else if err != nil {
		return "", ctdf.NewDependencyError("vehicle directory", err)
	}

	return primaryIdentifier(vehicle, vehicleID), nil
}

func primaryIdentifier(vehicle *ctdf.Vehicle, fallback string) string {
	if vehicle == nil || vehicle.PrimaryIdentifier == "" {
		return fallback
	}

	return vehicle.PrimaryIdentifier
}

// loadLiveCodes seeds the vehicle's live set from the booking store once per process.
// Must be called with the vehicle lock held.
func (s *Service) loadLiveCodes(ctx context.Context, vehicleID string, now time.Time) error {
	s.stateMutex.RLock()
	loaded := s.loaded[vehicleID]
	s.stateMutex.RUnlock()

	if loaded {
		return nil
	}

	tickets, err := s.store.LiveTickets(ctx, vehicleID, s.liveSince(now))
	if err != nil {
		return ctdf.NewDependencyError("booking store", err)
	}

	s.stateMutex.Lock()
	defer s.stateMutex.Unlock()

	for _, ticket := range tickets {
		if s.isLiveLocked(*ticket, now) {
			s.remember(*ticket)
		}
	}
	s.loaded[vehicleID] = true

	log.Debug().Str("vehicle", vehicleID).Int("tickets", len(tickets)).Msg("Loaded live ticket codes")

	return nil
}

func (s *Service) liveSince(now time.Time) time.Time {
	if s.lifetime <= 0 {
		return time.Time{}
	}

	return now.Add(-s.lifetime)
}

func (s *Service) vehicleLock(vehicleID string) *sync.Mutex {
	s.vehicleLocksMutex.Lock()
	defer s.vehicleLocksMutex.Unlock()

	lock, ok := s.vehicleLocks[vehicleID]
	if !ok {
		lock = &sync.Mutex{}
		s.vehicleLocks[vehicleID] = lock
	}

	return lock
}

func (s *Service) isLive(vehicleID string, code string, now time.Time) bool {
	s.stateMutex.RLock()
	defer s.stateMutex.RUnlock()

	ticket, ok := s.liveCodes[vehicleID][code]

	return ok && s.isLiveLocked(ticket, now)
}

func (s *Service) isLiveLocked(ticket ctdf.Ticket, now time.Time) bool {
	if s.lifetime <= 0 {
		return true
	}

	return now.Before(ticket.IssuedAt.Add(s.lifetime))
}

// remember must be called with stateMutex held
func (s *Service) remember(ticket ctdf.Ticket) {
	codes, ok := s.liveCodes[ticket.VehicleID]
	if !ok {
		codes = map[string]ctdf.Ticket{}
		s.liveCodes[ticket.VehicleID] = codes
	}
	codes[ticket.Code] = ticket
}

func (s *Service) pruneExpired(vehicleID string, now time.Time) {
	s.stateMutex.Lock()
	defer s.stateMutex.Unlock()

	for code, ticket := range s.liveCodes[vehicleID] {
		if !s.isLiveLocked(ticket, now) {
			delete(s.liveCodes[vehicleID], code)
		}
	}
}
