package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/coldrent/rental-engine/internal/config"
	"github.com/coldrent/rental-engine/internal/domain"
	"github.com/coldrent/rental-engine/internal/repository"
	customError "github.com/coldrent/rental-engine/pkg/errors"
	"github.com/coldrent/rental-engine/pkg/utils"
)

const occupancyCacheTTL = time.Minute

// RentalService orchestrates the rental contract lifecycle: allocation with
// conflict detection, schedule generation, extension, and the two terminal
// transitions. All conflict-sensitive persistence happens atomically inside
// the rental repository; the service validates inputs and collaborators
// before handing over.
type RentalService struct {
	RentalRepo    repository.RentalRepository
	EquipmentRepo repository.EquipmentRepository
	CompanyRepo   repository.CompanyRepository
	redis         *redis.Client
	config        *config.Config
	clock         Clock
}

func NewRentalService(
	rentalRepo repository.RentalRepository,
	equipmentRepo repository.EquipmentRepository,
	companyRepo repository.CompanyRepository,
	redisClient *redis.Client,
	cfg *config.Config,
	clock Clock,
) *RentalService {
	return &RentalService{
		RentalRepo:    rentalRepo,
		EquipmentRepo: equipmentRepo,
		CompanyRepo:   companyRepo,
		redis:         redisClient,
		config:        cfg,
		clock:         clock,
	}
}

// Create allocates an equipment unit to a client over the requested window
// and persists the rental together with its full payment schedule. The
// overlap check runs inside the repository transaction, so two concurrent
// requests for the same unit yield exactly one success.
func (s *RentalService) Create(ctx context.Context, request *domain.CreateRentalRequest) (*domain.Rental, []*domain.Payment, error) {
	request.StartDate = utils.TruncateToDay(request.StartDate)
	request.EndDate = utils.TruncateToDay(request.EndDate)
	if !request.EndDate.After(request.StartDate) {
		return nil, nil, customError.WrapValidation(
			fmt.Sprintf("end date %s must be after start date %s",
				request.EndDate.Format(time.DateOnly), request.StartDate.Format(time.DateOnly)),
			customError.ErrInvalidRentalPeriod,
		)
	}
	if !request.MonthlyRate.IsPositive() {
		return nil, nil, customError.WrapValidation("monthly rate must be positive", customError.ErrInvalidAmount)
	}
	if request.DepositAmount.IsNegative() {
		return nil, nil, customError.WrapValidation("deposit must not be negative", customError.ErrInvalidAmount)
	}

	equipment, err := s.EquipmentRepo.GetByID(ctx, request.EquipmentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, customError.WrapEquipmentNotFound(request.EquipmentID.String())
		}
		return nil, nil, customError.WrapDatabaseError(err)
	}
	if equipment.ProviderID != request.ProviderID {
		return nil, nil, customError.WrapValidation(
			fmt.Sprintf("equipment %s belongs to another provider", equipment.ID),
			customError.ErrEquipmentNotOwned,
		)
	}
	if !equipment.Rentable() {
		return nil, nil, customError.WrapInvalidState(
			fmt.Sprintf("equipment %s is %s", equipment.ID, equipment.Status),
			customError.ErrEquipmentNotRentable,
		)
	}

	if err := s.requireActiveClient(ctx, request.ClientID); err != nil {
		return nil, nil, err
	}

	rental := &domain.Rental{
		ID:            uuid.New(),
		EquipmentID:   request.EquipmentID,
		ClientID:      request.ClientID,
		ProviderID:    request.ProviderID,
		StartDate:     request.StartDate,
		EndDate:       request.EndDate,
		MonthlyRate:   request.MonthlyRate.Round(2),
		DepositAmount: request.DepositAmount.Round(2),
		Frequency:     request.Frequency,
		Status:        domain.RentalStatusActive,
		Notes:         request.Notes,
	}

	payments, err := domain.GenerateSchedule(domain.ScheduleOptions{
		RentalID:           rental.ID,
		StartDate:          rental.StartDate,
		EndDate:            rental.EndDate,
		MonthlyRate:        rental.MonthlyRate,
		DepositAmount:      rental.DepositAmount,
		Frequency:          request.Frequency,
		ProrateFinalPeriod: s.config.Billing.ProrateFinalPeriod,
	})
	if err != nil {
		return nil, nil, customError.WrapValidation(err.Error(), customError.ErrInvalidRentalPeriod)
	}
	rental.TotalAmount = domain.ScheduleTotal(payments)
	rental.Notes = appendNote(rental.Notes, fmt.Sprintf("created with %s billing", request.Frequency))

	if err := s.RentalRepo.CreateWithSchedule(ctx, rental, payments); err != nil {
		return nil, nil, asBusinessError(err)
	}

	s.invalidateOccupancy(ctx, rental.EquipmentID)

	return rental, payments, nil
}

// Extend moves an ACTIVE rental's end date forward. The billing cadence of
// the original schedule continues from the last scheduled payment date, so
// already-billed periods are never billed twice.
func (s *RentalService) Extend(ctx context.Context, rentalID uuid.UUID, newEndDate time.Time) (*domain.Rental, []*domain.Payment, error) {
	newEndDate = utils.TruncateToDay(newEndDate)
	rental, err := s.getRental(ctx, rentalID)
	if err != nil {
		return nil, nil, err
	}
	if rental.Status != domain.RentalStatusActive {
		return nil, nil, customError.WrapInvalidState(
			fmt.Sprintf("rental %s is %s", rental.ID, rental.Status),
			customError.ErrRentalNotActive,
		)
	}
	if !newEndDate.After(rental.EndDate) {
		return nil, nil, customError.WrapValidation(
			fmt.Sprintf("new end date %s must be after current end date %s",
				newEndDate.Format(time.DateOnly), rental.EndDate.Format(time.DateOnly)),
			customError.ErrInvalidRentalPeriod,
		)
	}

	existing, err := s.RentalRepo.GetPayments(ctx, rentalID)
	if err != nil {
		return nil, nil, customError.WrapDatabaseError(err)
	}

	newPayments, err := domain.ExtendSchedule(domain.ExtensionOptions{
		RentalID:           rental.ID,
		LastDueDate:        lastScheduledDate(rental, existing),
		NewEndDate:         newEndDate,
		MonthlyRate:        rental.MonthlyRate,
		Frequency:          rental.Frequency,
		ProrateFinalPeriod: s.config.Billing.ProrateFinalPeriod,
	})
	if err != nil {
		return nil, nil, customError.WrapValidation(err.Error(), customError.ErrInvalidRentalPeriod)
	}

	newTotal := rental.TotalAmount.Add(domain.ScheduleTotal(newPayments))
	if err := s.RentalRepo.ExtendWithSchedule(ctx, rental, newEndDate, newTotal, newPayments); err != nil {
		return nil, nil, asBusinessError(err)
	}

	rental.EndDate = newEndDate
	rental.TotalAmount = newTotal

	s.invalidateOccupancy(ctx, rental.EquipmentID)

	return rental, newPayments, nil
}

// Terminate cancels an ACTIVE rental early: the rental becomes CANCELLED,
// its still-pending payments are cancelled, and the unit is released.
func (s *RentalService) Terminate(ctx context.Context, rentalID uuid.UUID) (*domain.Rental, error) {
	return s.close(ctx, rentalID, domain.RentalStatusCancelled)
}

// Complete closes a rental at its normal end of term.
func (s *RentalService) Complete(ctx context.Context, rentalID uuid.UUID) (*domain.Rental, error) {
	return s.close(ctx, rentalID, domain.RentalStatusCompleted)
}

func (s *RentalService) close(ctx context.Context, rentalID uuid.UUID, status string) (*domain.Rental, error) {
	rental, err := s.getRental(ctx, rentalID)
	if err != nil {
		return nil, err
	}

	if err := s.RentalRepo.Close(ctx, rentalID, status, s.clock.Now()); err != nil {
		return nil, asBusinessError(err)
	}
	rental.Status = status

	s.invalidateOccupancy(ctx, rental.EquipmentID)

	return rental, nil
}

// CompleteExpired closes every ACTIVE rental whose end date has passed.
// Used by the scheduler sweep; returns the number of rentals closed.
func (s *RentalService) CompleteExpired(ctx context.Context) (int, error) {
	expired, err := s.RentalRepo.ListExpired(ctx, s.clock.Now())
	if err != nil {
		return 0, customError.WrapDatabaseError(err)
	}

	closed := 0
	for _, rental := range expired {
		if err := s.RentalRepo.Close(ctx, rental.ID, domain.RentalStatusCompleted, s.clock.Now()); err != nil {
			// A rental closed by a concurrent request is not a sweep failure.
			if errors.Is(err, customError.ErrRentalNotActive) {
				continue
			}
			return closed, asBusinessError(err)
		}
		s.invalidateOccupancy(ctx, rental.EquipmentID)
		closed++
	}

	return closed, nil
}

// GetByID returns a rental.
func (s *RentalService) GetByID(ctx context.Context, rentalID uuid.UUID) (*domain.Rental, error) {
	return s.getRental(ctx, rentalID)
}

// GetPayments returns a rental's payment schedule ordered by due date.
func (s *RentalService) GetPayments(ctx context.Context, rentalID uuid.UUID) ([]*domain.Payment, error) {
	if _, err := s.getRental(ctx, rentalID); err != nil {
		return nil, err
	}

	payments, err := s.RentalRepo.GetPayments(ctx, rentalID)
	if err != nil {
		return nil, customError.WrapDatabaseError(err)
	}

	return payments, nil
}

// SettlePayment records that one scheduled payment of a rental was received.
// Only PENDING payments settle; repeating the call, or settling a cancelled
// payment, is rejected.
func (s *RentalService) SettlePayment(ctx context.Context, rentalID, paymentID uuid.UUID) (*domain.Payment, error) {
	if _, err := s.getRental(ctx, rentalID); err != nil {
		return nil, err
	}

	payment, err := s.RentalRepo.MarkPaymentPaid(ctx, rentalID, paymentID, s.clock.Now())
	if err != nil {
		return nil, asBusinessError(err)
	}

	return payment, nil
}

// IsEquipmentRented answers the occupancy read model: whether the unit has
// an ACTIVE rental whose window contains now. Served from Redis when warm;
// every lifecycle transition invalidates the cached entry.
func (s *RentalService) IsEquipmentRented(ctx context.Context, equipmentID uuid.UUID) (*domain.OccupancyResponse, error) {
	key := occupancyKey(equipmentID)
	if s.redis != nil {
		if raw, err := s.redis.Get(ctx, key).Result(); err == nil {
			var cached domain.OccupancyResponse
			if json.Unmarshal([]byte(raw), &cached) == nil {
				return &cached, nil
			}
		}
	}

	rentals, err := s.RentalRepo.GetActiveByEquipmentID(ctx, equipmentID)
	if err != nil {
		return nil, customError.WrapDatabaseError(err)
	}

	occupancy := &domain.OccupancyResponse{EquipmentID: equipmentID}
	now := s.clock.Now()
	for _, rental := range rentals {
		if !rental.StartDate.After(now) && !rental.EndDate.Before(now) {
			occupancy.Rented = true
			occupancy.RentalID = &rental.ID
			occupancy.ClientID = &rental.ClientID
			break
		}
	}

	if s.redis != nil {
		if raw, err := json.Marshal(occupancy); err == nil {
			s.redis.Set(ctx, key, raw, occupancyCacheTTL)
		}
	}

	return occupancy, nil
}

func (s *RentalService) getRental(ctx context.Context, rentalID uuid.UUID) (*domain.Rental, error) {
	rental, err := s.RentalRepo.GetByID(ctx, rentalID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, customError.WrapRentalNotFound(rentalID.String())
		}
		return nil, customError.WrapDatabaseError(err)
	}
	return rental, nil
}

func (s *RentalService) requireActiveClient(ctx context.Context, clientID uuid.UUID) error {
	client, err := s.CompanyRepo.GetByID(ctx, clientID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return customError.WrapCompanyNotFound(clientID.String())
		}
		return customError.WrapDatabaseError(err)
	}
	if client.Type != domain.CompanyTypeClient || !client.Active {
		return customError.WrapValidation(
			fmt.Sprintf("company %s is not an active client", clientID),
			customError.ErrNotClientCompany,
		)
	}
	return nil
}

func (s *RentalService) invalidateOccupancy(ctx context.Context, equipmentID uuid.UUID) {
	if s.redis == nil {
		return
	}
	s.redis.Del(ctx, occupancyKey(equipmentID))
}

func occupancyKey(equipmentID uuid.UUID) string {
	return "occupancy:" + equipmentID.String()
}

// lastScheduledDate finds the due date the extension continues from: the
// latest non-cancelled charge of the stored schedule, or the contract start
// if none exist.
func lastScheduledDate(rental *domain.Rental, payments []*domain.Payment) time.Time {
	last := rental.StartDate
	for _, p := range payments {
		if p.Type == domain.PaymentTypeDeposit || p.Status == domain.PaymentStatusCancelled {
			continue
		}
		if p.DueDate.After(last) {
			last = p.DueDate
		}
	}
	return last
}

func appendNote(notes, entry string) string {
	if notes == "" {
		return entry
	}
	return notes + "; " + entry
}

// asBusinessError passes through repository-raised business errors and wraps
// everything else as a persistence failure.
func asBusinessError(err error) error {
	if err == nil {
		return nil
	}
	var be *customError.BusinessError
	if errors.As(err, &be) {
		return err
	}
	return customError.WrapDatabaseError(err)
}
