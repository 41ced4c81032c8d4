package workflow

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/mbilous/printnet-system/internal/api"
)

// Границы суммы разового пополнения кошелька.
const (
	TopUpMin = 1.0
	TopUpMax = 1000.0
)

// ErrInvalidTopUpAmount возвращается при сумме пополнения вне допустимых границ.
var ErrInvalidTopUpAmount = errors.New("top-up amount out of range")

// TopUpGateway описывает операцию пополнения кошелька.
type TopUpGateway interface {
	TopUpWallet(ctx context.Context, amount float64) (*api.Wallet, error)
}

// TopUp пополняет кошелёк на сумму в пределах [TopUpMin, TopUpMax].
//
// Сумма проверяется до любого сетевого вызова. После успешного пополнения
// вызывается refresh (обновление отображаемого баланса); его сбой — побочный
// и не превращает успешное пополнение в ошибку.
func TopUp(ctx context.Context, gw TopUpGateway, amount float64, refresh func(context.Context) error, logger *zap.Logger) error {
	if logger == nil {
		logger = zap.NewNop()
	}

	if amount < TopUpMin || amount > TopUpMax {
		return fmt.Errorf("%w: %.2f", ErrInvalidTopUpAmount, amount)
	}

	if _, err := gw.TopUpWallet(ctx, amount); err != nil {
		return fmt.Errorf("top up wallet: %w", err)
	}

	if refresh != nil {
		if err := refresh(ctx); err != nil {
			logger.Warn("balance refresh after top-up failed", zap.Error(err))
		}
	}

	return nil
}
