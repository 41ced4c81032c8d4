package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	custommiddleware "github.com/mbilous/printnet-system/internal/middleware"
)

// SetupRouter настраивает HTTP-маршруты и middleware сервиса printnet.
func (h *Handler) SetupRouter() *chi.Mux {
	r := chi.NewRouter()

	r.Use(custommiddleware.GzipMiddleware)
	r.Use(custommiddleware.Logger(h.logger))

	r.Post("/auth", h.Register)
	r.Post("/auth/login", h.Login)

	r.Group(func(r chi.Router) {
		r.Use(h.authMiddleware.Middleware)

		r.Get("/users/profile", h.GetProfile)

		r.Post("/vending-machines", h.CreateMachine)
		r.Get("/vending-machines", h.GetMachines)
		r.Get("/vending-machines/{id}", h.GetMachine)

		r.Post("/orders", h.CreateOrder)
		r.Get("/orders", h.GetOrders)
		r.Get("/orders/{id}", h.GetOrder)
		r.Delete("/orders/{id}", h.CancelOrder)

		r.Post("/payments", h.CreatePayment)
		r.Get("/payments", h.GetPayments)
		r.Post("/payments/wallet/create", h.CreateWallet)
		r.Get("/payments/wallet/balance", h.GetWalletBalance)
		r.Post("/payments/wallet/top-up", h.TopUpWallet)
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, http.StatusText(http.StatusNotFound))
	})

	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, http.StatusText(http.StatusMethodNotAllowed))
	})

	return r
}

// pathID извлекает URL-параметр id из запроса.
func pathID(r *http.Request) string {
	return chi.URLParam(r, "id")
}
