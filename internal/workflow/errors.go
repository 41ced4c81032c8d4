package workflow

import (
	"errors"
	"net/http"
	"strings"

	"github.com/mbilous/printnet-system/internal/api"
)

// insufficientFundsMarker — подстрока в сообщении сервера об отказе из-за нехватки средств.
const insufficientFundsMarker = "Недостатньо коштів"

// Тексты, показываемые пользователю вместо сырых ошибок транспорта.
const (
	msgInsufficientPreflight = "Insufficient funds. Please top up your wallet first."
	msgInsufficientServer    = "Insufficient funds in your wallet. Please top up your wallet first."
	msgMachineNotFound       = "Selected machine not found. Please choose another machine."
	msgAuthFailed            = "Authentication failed. Please log in again."
	msgGeneric               = "Failed to create order. Please try again."
)

// UserMessage переводит ошибку отправки заказа в сообщение для пользователя.
//
// Бизнес-отказы сервера классифицируются по коду состояния и сообщению;
// всё остальное сводится к общему сообщению с предложением повторить.
func UserMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInsufficientFunds):
		return msgInsufficientPreflight
	case errors.Is(err, ErrNotAuthenticated):
		return msgAuthFailed
	}

	switch api.StatusOf(err) {
	case http.StatusBadRequest:
		message := api.MessageOf(err)
		if strings.Contains(message, insufficientFundsMarker) {
			return msgInsufficientServer
		}
		if message != "" {
			return message
		}
		return msgGeneric
	case http.StatusNotFound:
		return msgMachineNotFound
	case http.StatusUnauthorized:
		return msgAuthFailed
	}

	return msgGeneric
}
