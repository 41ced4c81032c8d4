// Package service реализует бизнес-логику сервиса printnet.
package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/mbilous/printnet-system/internal/model"
	"github.com/mbilous/printnet-system/internal/repository"
)

// ErrInvalidCredentials возвращается при неверной паре email/пароль.
var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrMachineUnavailable возвращается при заказе на неактивный или обслуживаемый автомат.
	ErrMachineUnavailable = errors.New("vending machine is unavailable")
	// ErrInvalidAmount возвращается при некорректной сумме пополнения или платежа.
	ErrInvalidAmount = errors.New("invalid amount")
)

// Границы суммы разового пополнения кошелька.
const (
	TopUpMin = 1.0
	TopUpMax = 1000.0
)

// Repository описывает контракт доступа к данным, используемый сервисом.
type Repository interface {
	Close() error
	CreateUser(ctx context.Context, email string, passwordHash []byte, firstName, lastName string) (string, error)
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)
	GetUserByID(ctx context.Context, id string) (*model.User, error)
	CreateMachine(ctx context.Context, serialNumber, location string) (*model.VendingMachine, error)
	GetMachines(ctx context.Context) ([]model.VendingMachine, error)
	GetMachineByID(ctx context.Context, id string) (*model.VendingMachine, error)
	CreateOrder(ctx context.Context, userID, machineID, modelFileURL string, settings model.PrintSettings, quantity int, costCents int64) (string, error)
	GetOrderByID(ctx context.Context, id string) (*model.Order, error)
	GetOrdersByUser(ctx context.Context, userID string) ([]model.Order, error)
	AppendOrderStatus(ctx context.Context, orderID string, status model.OrderStatusKind, description string) error
	CreateWallet(ctx context.Context, userID string) (*model.Wallet, error)
	GetWalletByUser(ctx context.Context, userID string) (*model.Wallet, error)
	TopUpWallet(ctx context.Context, userID string, amountCents int64) (*model.Wallet, error)
	CreatePayment(ctx context.Context, userID, orderID string, amountCents int64, method string) (*model.Payment, error)
	GetPaymentsByUser(ctx context.Context, userID string) ([]model.Payment, error)
	GetOrdersForDispatch(ctx context.Context, limit int) ([]repository.OrderForDispatch, error)
}

// Service содержит бизнес-логику сервиса printnet.
type Service struct {
	repo   Repository
	logger *zap.Logger
}

// NewService создаёт новый сервис с указанным репозиторием.
func NewService(repo Repository, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		repo:   repo,
		logger: logger,
	}
}

// Close закрывает ресурсы сервиса.
func (s *Service) Close() error {
	if s.repo != nil {
		return s.repo.Close()
	}
	return nil
}

// RegisterUser регистрирует нового пользователя.
func (s *Service) RegisterUser(ctx context.Context, email, password, firstName, lastName string) (*model.User, error) {
	hashed := hashPassword(email, password)
	id, err := s.repo.CreateUser(ctx, email, hashed, firstName, lastName)
	if err != nil {
		return nil, err
	}
	return s.repo.GetUserByID(ctx, id)
}

// AuthenticateUser проверяет email и пароль пользователя и возвращает его профиль.
func (s *Service) AuthenticateUser(ctx context.Context, email, password string) (*model.User, error) {
	u, err := s.repo.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	hashed := hashPassword(email, password)
	if hex.EncodeToString(hashed) != hex.EncodeToString(u.PasswordHash) {
		return nil, ErrInvalidCredentials
	}

	return u, nil
}

func hashPassword(email, password string) []byte {
	sum := sha256.Sum256([]byte(email + ":" + password))
	return sum[:]
}

// GetProfile возвращает профиль пользователя.
func (s *Service) GetProfile(ctx context.Context, userID string) (*model.User, error) {
	return s.repo.GetUserByID(ctx, userID)
}

// CreateMachine регистрирует новый автомат 3D-печати.
func (s *Service) CreateMachine(ctx context.Context, serialNumber, location string) (*model.VendingMachine, error) {
	return s.repo.CreateMachine(ctx, serialNumber, location)
}

// GetMachines возвращает список автоматов платформы.
func (s *Service) GetMachines(ctx context.Context) ([]model.VendingMachine, error) {
	return s.repo.GetMachines(ctx)
}

// GetMachineByID возвращает автомат по идентификатору.
func (s *Service) GetMachineByID(ctx context.Context, id string) (*model.VendingMachine, error) {
	return s.repo.GetMachineByID(ctx, id)
}

// CreateOrder создаёт заказ на печать. Автомат должен существовать, быть активным
// и не требовать обслуживания; стоимость и количество должны быть положительными.
func (s *Service) CreateOrder(ctx context.Context, userID, machineID, modelFileURL string, settings model.PrintSettings, quantity int, cost float64) (*model.Order, error) {
	if quantity < 1 {
		return nil, fmt.Errorf("%w: quantity must be at least 1", ErrInvalidAmount)
	}
	if cost <= 0 {
		return nil, fmt.Errorf("%w: cost must be positive", ErrInvalidAmount)
	}

	machine, err := s.repo.GetMachineByID(ctx, machineID)
	if err != nil {
		return nil, err
	}
	if !machine.Selectable() {
		return nil, ErrMachineUnavailable
	}

	orderID, err := s.repo.CreateOrder(ctx, userID, machineID, modelFileURL, settings, quantity, toCents(cost))
	if err != nil {
		return nil, err
	}

	return s.repo.GetOrderByID(ctx, orderID)
}

// GetOrdersByUser возвращает заказы пользователя.
func (s *Service) GetOrdersByUser(ctx context.Context, userID string) ([]model.Order, error) {
	return s.repo.GetOrdersByUser(ctx, userID)
}

// GetOrderByID возвращает заказ пользователя. Чужие заказы не видны.
func (s *Service) GetOrderByID(ctx context.Context, userID, orderID string) (*model.Order, error) {
	o, err := s.repo.GetOrderByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if o.UserID != userID {
		return nil, repository.ErrOrderNotFound
	}
	return o, nil
}

// CancelOrder добавляет заказу статус "cancelled", если заказ ещё не в конечном состоянии.
func (s *Service) CancelOrder(ctx context.Context, userID, orderID string) error {
	o, err := s.GetOrderByID(ctx, userID, orderID)
	if err != nil {
		return err
	}
	return s.repo.AppendOrderStatus(ctx, o.ID, model.OrderStatusCancelled, "Cancelled by user")
}

// CreateWallet создаёт кошелёк пользователя с нулевым балансом.
func (s *Service) CreateWallet(ctx context.Context, userID string) (*model.Wallet, error) {
	return s.repo.CreateWallet(ctx, userID)
}

// GetWalletByUser возвращает кошелёк пользователя.
func (s *Service) GetWalletByUser(ctx context.Context, userID string) (*model.Wallet, error) {
	return s.repo.GetWalletByUser(ctx, userID)
}

// TopUpWallet пополняет кошелёк пользователя на сумму в пределах [TopUpMin, TopUpMax].
func (s *Service) TopUpWallet(ctx context.Context, userID string, amount float64) (*model.Wallet, error) {
	if amount < TopUpMin || amount > TopUpMax {
		return nil, fmt.Errorf("%w: top-up must be between %.0f and %.0f", ErrInvalidAmount, TopUpMin, TopUpMax)
	}
	return s.repo.TopUpWallet(ctx, userID, toCents(amount))
}

// PayOrder проводит оплату заказа из кошелька пользователя.
func (s *Service) PayOrder(ctx context.Context, userID, orderID string, amount float64, method string) (*model.Payment, error) {
	if amount <= 0 {
		return nil, fmt.Errorf("%w: payment must be positive", ErrInvalidAmount)
	}
	if method != model.PaymentMethodWallet {
		return nil, fmt.Errorf("%w: unsupported payment method %q", ErrInvalidAmount, method)
	}
	return s.repo.CreatePayment(ctx, userID, orderID, toCents(amount), method)
}

// GetPaymentsByUser возвращает платежи пользователя.
func (s *Service) GetPaymentsByUser(ctx context.Context, userID string) ([]model.Payment, error) {
	return s.repo.GetPaymentsByUser(ctx, userID)
}

func toCents(amount float64) int64 {
	return int64(math.Round(amount * 100))
}

// StartDispatch запускает фоновый процесс передачи оплаченных заказов автоматам:
// заказы со статусом "pending" на доступных автоматах переводятся в "processing".
func (s *Service) StartDispatch(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 5 * time.Second
	}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.dispatchBatch(ctx)
			}
		}
	}()
}

func (s *Service) dispatchBatch(ctx context.Context) {
	orders, err := s.repo.GetOrdersForDispatch(ctx, 100)
	if err != nil {
		s.logger.Warn("dispatch batch failed", zap.Error(err))
		return
	}

	for _, o := range orders {
		err := s.repo.AppendOrderStatus(ctx, o.ID, model.OrderStatusProcessing, "Dispatched to machine")
		if err != nil {
			s.logger.Warn("dispatch order failed", zap.Error(err), zap.String("order", o.ID))
			continue
		}
		s.logger.Info("order dispatched", zap.String("order", o.ID), zap.String("machine", o.MachineID))
	}
}
