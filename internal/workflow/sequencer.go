package workflow

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/mbilous/printnet-system/internal/api"
	"github.com/mbilous/printnet-system/internal/model"
)

// ErrNotAuthenticated возвращается при попытке отправить заказ без активной сессии.
var (
	ErrNotAuthenticated = errors.New("no authenticated user")
	// ErrNoEstimate возвращается, если стоимость заказа ещё не рассчитана.
	ErrNoEstimate = errors.New("cost estimate is not calculated")
	// ErrInsufficientFunds возвращается предварительной проверкой баланса — до сетевых вызовов.
	ErrInsufficientFunds = errors.New("insufficient wallet funds")
	// ErrSubmissionInFlight возвращается при повторной отправке, пока предыдущая не завершилась.
	ErrSubmissionInFlight = errors.New("submission already in flight")
	// ErrDismissed возвращается, если мастер был закрыт во время отправки: результат отбрасывается.
	ErrDismissed = errors.New("wizard dismissed")
)

// Gateway описывает операции API, используемые последовательностью отправки заказа.
// *api.Client реализует этот контракт.
type Gateway interface {
	WalletGateway
	CreateOrder(ctx context.Context, req api.CreateOrderRequest) (*api.Order, error)
	CreatePayment(ctx context.Context, req api.CreatePaymentRequest) (*api.Payment, error)
}

// Form содержит данные, собранные мастером к шагу подтверждения.
type Form struct {
	MachineID string
	FileName  string
	FileSize  int64
	Settings  model.PrintSettings

	// Estimate — рассчитанная стоимость заказа; nil, если расчёт не выполнен.
	Estimate *float64
	// Balance — известный баланс кошелька; nil, если баланс не загружался.
	Balance *float64
}

// Result — итог успешной отправки заказа.
type Result struct {
	OrderID string
	Wallet  WalletState
}

// Sequencer выполняет протокол отправки заказа: проверка предусловий,
// создание заказа, ровно один платёж, обновление баланса.
//
// Компенсаций нет: если платёж не прошёл после создания заказа, заказ
// остаётся на сервере неоплаченным, и это состояние отдаётся как есть.
type Sequencer struct {
	gw      Gateway
	session *api.Session
	logger  *zap.Logger
	now     func() time.Time

	mu        sync.Mutex
	inFlight  bool
	dismissed bool
}

// NewSequencer создаёт последовательность отправки с указанным шлюзом API и сессией.
func NewSequencer(gw Gateway, session *api.Session, logger *zap.Logger) *Sequencer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Sequencer{
		gw:      gw,
		session: session,
		logger:  logger,
		now:     time.Now,
	}
}

// Dismiss помечает мастер закрытым: результат незавершённой отправки будет отброшен.
// Сетевые вызовы при этом не отменяются.
func (s *Sequencer) Dismiss() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dismissed = true
}

func (s *Sequencer) begin() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.inFlight {
		return ErrSubmissionInFlight
	}
	s.inFlight = true
	s.dismissed = false
	return nil
}

func (s *Sequencer) finish() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inFlight = false
	return s.dismissed
}

// Submit выполняет протокол отправки заказа для подтверждённой формы.
//
// Порядок фиксированный: предпроверки без сети → создание заказа → один
// платёж методом "wallet" → обновление баланса. Сбой создания заказа
// останавливает протокол до платежа; сбой платежа не отменяет созданный
// заказ.
func (s *Sequencer) Submit(ctx context.Context, form Form) (*Result, error) {
	if err := s.begin(); err != nil {
		return nil, err
	}

	res, err := s.submit(ctx, form)
	if dismissed := s.finish(); dismissed {
		return nil, ErrDismissed
	}
	return res, err
}

func (s *Sequencer) submit(ctx context.Context, form Form) (*Result, error) {
	userID := s.session.UserID()
	if userID == "" {
		return nil, ErrNotAuthenticated
	}

	if form.Estimate == nil {
		return nil, ErrNoEstimate
	}
	estimate := *form.Estimate

	if form.Balance != nil && *form.Balance < estimate {
		return nil, ErrInsufficientFunds
	}

	modelFileURL := fmt.Sprintf("uploads/%s/%d_%s", userID, s.now().UnixMilli(), form.FileName)

	settings := form.Settings
	settings.FileName = form.FileName
	settings.FileSize = form.FileSize

	order, err := s.gw.CreateOrder(ctx, api.CreateOrderRequest{
		MachineID:     form.MachineID,
		Quantity:      settings.Quantity,
		Cost:          estimate,
		ModelFileURL:  modelFileURL,
		PrintSettings: settings,
	})
	if err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}

	_, err = s.gw.CreatePayment(ctx, api.CreatePaymentRequest{
		OrderID: order.ID,
		Amount:  estimate,
		Method:  model.PaymentMethodWallet,
	})
	if err != nil {
		// Заказ уже существует неоплаченным; клиент его не отменяет.
		s.logger.Warn("payment failed after order creation",
			zap.Error(err), zap.String("order", order.ID))
		return nil, fmt.Errorf("create payment: %w", err)
	}

	wallet := ResolveOrCreateWallet(ctx, s.gw, s.logger)

	return &Result{OrderID: order.ID, Wallet: wallet}, nil
}
