package workflow

import (
	"context"
	"net/http"

	"go.uber.org/zap"

	"github.com/mbilous/printnet-system/internal/api"
)

// WalletGateway описывает операции кошелька, используемые резолвером баланса.
type WalletGateway interface {
	WalletBalance(ctx context.Context) (float64, error)
	CreateWallet(ctx context.Context) (*api.Wallet, error)
}

// WalletState — результат разрешения баланса кошелька.
type WalletState struct {
	Balance float64
	Created bool
}

// ResolveOrCreateWallet возвращает актуальный баланс кошелька текущего пользователя.
//
// Если кошелька ещё нет (404), резолвер создаёт его и считает баланс нулевым.
// Любой сбой, включая неудачное создание, также разрешается в ноль: нулевой
// баланс лишь блокирует заказ, но никогда не пропускает его ошибочно, поэтому
// резолвер не возвращает ошибку вызывающему коду.
func ResolveOrCreateWallet(ctx context.Context, gw WalletGateway, logger *zap.Logger) WalletState {
	if logger == nil {
		logger = zap.NewNop()
	}

	balance, err := gw.WalletBalance(ctx)
	if err == nil {
		return WalletState{Balance: balance}
	}

	if api.StatusOf(err) == http.StatusNotFound {
		if _, createErr := gw.CreateWallet(ctx); createErr != nil {
			logger.Warn("create wallet failed", zap.Error(createErr))
			return WalletState{}
		}
		return WalletState{Created: true}
	}

	logger.Warn("wallet balance lookup failed", zap.Error(err))
	return WalletState{}
}
