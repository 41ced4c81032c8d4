// Package handler содержит HTTP-обработчики API сервиса printnet.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/mbilous/printnet-system/internal/middleware"
	"github.com/mbilous/printnet-system/internal/model"
	"github.com/mbilous/printnet-system/internal/repository"
	"github.com/mbilous/printnet-system/internal/service"
)

// MsgInsufficientFunds — текст бизнес-отказа при нехватке средств.
// Клиенты распознают отказ по подстроке «Недостатньо коштів».
const MsgInsufficientFunds = "Недостатньо коштів на балансі гаманця"

// Service определяет контракт бизнес-логики, используемой HTTP-обработчиками.
type Service interface {
	RegisterUser(ctx context.Context, email, password, firstName, lastName string) (*model.User, error)
	AuthenticateUser(ctx context.Context, email, password string) (*model.User, error)
	GetProfile(ctx context.Context, userID string) (*model.User, error)
	CreateMachine(ctx context.Context, serialNumber, location string) (*model.VendingMachine, error)
	GetMachines(ctx context.Context) ([]model.VendingMachine, error)
	GetMachineByID(ctx context.Context, id string) (*model.VendingMachine, error)
	CreateOrder(ctx context.Context, userID, machineID, modelFileURL string, settings model.PrintSettings, quantity int, cost float64) (*model.Order, error)
	GetOrdersByUser(ctx context.Context, userID string) ([]model.Order, error)
	GetOrderByID(ctx context.Context, userID, orderID string) (*model.Order, error)
	CancelOrder(ctx context.Context, userID, orderID string) error
	CreateWallet(ctx context.Context, userID string) (*model.Wallet, error)
	GetWalletByUser(ctx context.Context, userID string) (*model.Wallet, error)
	TopUpWallet(ctx context.Context, userID string, amount float64) (*model.Wallet, error)
	PayOrder(ctx context.Context, userID, orderID string, amount float64, method string) (*model.Payment, error)
	GetPaymentsByUser(ctx context.Context, userID string) ([]model.Payment, error)
}

// Handler реализует HTTP-обработчики API сервиса printnet.
type Handler struct {
	service        Service
	logger         *zap.Logger
	authMiddleware *middleware.AuthMiddleware
}

// NewHandler создаёт новый экземпляр обработчика HTTP-запросов.
func NewHandler(s Service, logger *zap.Logger, auth *middleware.AuthMiddleware) *Handler {
	return &Handler{
		service:        s,
		logger:         logger,
		authMiddleware: auth,
	}
}

// envelope — единый формат ответа API: {data, success, message?}.
type envelope struct {
	Data    any    `json:"data"`
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

func writeData(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(envelope{Data: data, Success: true})
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(envelope{Success: false, Message: message})
}

type userResponse struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
	IsActive  bool   `json:"is_active"`
	CreatedAt string `json:"created_at"`
}

func toUserResponse(u *model.User) userResponse {
	return userResponse{
		ID:        u.ID,
		Email:     u.Email,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		IsActive:  u.IsActive,
		CreatedAt: u.CreatedAt.Format(time.RFC3339),
	}
}

type registerRequest struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

// Register обрабатывает регистрацию нового пользователя.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Email == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "email and password are required")
		return
	}

	user, err := h.service.RegisterUser(r.Context(), req.Email, req.Password, req.FirstName, req.LastName)
	if err != nil {
		if errors.Is(err, repository.ErrUserExists) {
			writeError(w, http.StatusConflict, "user already exists")
			return
		}
		h.logger.Error("register user error", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	writeData(w, http.StatusCreated, toUserResponse(user))
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	AccessToken string       `json:"access_token"`
	User        userResponse `json:"user"`
}

// Login выполняет аутентификацию пользователя и выпускает токен доступа.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Email == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "email and password are required")
		return
	}

	user, err := h.service.AuthenticateUser(r.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			writeError(w, http.StatusUnauthorized, "invalid credentials")
			return
		}
		h.logger.Error("login user error", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	writeData(w, http.StatusOK, loginResponse{
		AccessToken: h.authMiddleware.IssueToken(user.ID),
		User:        toUserResponse(user),
	})
}

// GetProfile возвращает профиль текущего пользователя.
func (h *Handler) GetProfile(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	user, err := h.service.GetProfile(r.Context(), userID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			writeError(w, http.StatusNotFound, "user not found")
			return
		}
		h.logger.Error("get profile error", zap.Error(err), zap.String("userID", userID))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	writeData(w, http.StatusOK, toUserResponse(user))
}

type machineResponse struct {
	ID                  string `json:"id"`
	SerialNumber        string `json:"serial_number"`
	Location            string `json:"location"`
	IsActive            bool   `json:"is_active"`
	MaintenanceRequired bool   `json:"maintenance_required"`
	CreatedAt           string `json:"created_at"`
	UpdatedAt           string `json:"updated_at"`
}

func toMachineResponse(m *model.VendingMachine) machineResponse {
	return machineResponse{
		ID:                  m.ID,
		SerialNumber:        m.SerialNumber,
		Location:            m.Location,
		IsActive:            m.IsActive,
		MaintenanceRequired: m.MaintenanceRequired,
		CreatedAt:           m.CreatedAt.Format(time.RFC3339),
		UpdatedAt:           m.UpdatedAt.Format(time.RFC3339),
	}
}

type createMachineRequest struct {
	SerialNumber string `json:"serial_number"`
	Location     string `json:"location"`
}

// CreateMachine регистрирует новый автомат 3D-печати.
func (h *Handler) CreateMachine(w http.ResponseWriter, r *http.Request) {
	var req createMachineRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.SerialNumber == "" {
		writeError(w, http.StatusBadRequest, "serial_number is required")
		return
	}

	machine, err := h.service.CreateMachine(r.Context(), req.SerialNumber, req.Location)
	if err != nil {
		h.logger.Error("create machine error", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	writeData(w, http.StatusCreated, toMachineResponse(machine))
}

// GetMachines возвращает список автоматов платформы.
func (h *Handler) GetMachines(w http.ResponseWriter, r *http.Request) {
	machines, err := h.service.GetMachines(r.Context())
	if err != nil {
		h.logger.Error("get machines error", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	resp := make([]machineResponse, 0, len(machines))
	for i := range machines {
		resp = append(resp, toMachineResponse(&machines[i]))
	}

	writeData(w, http.StatusOK, resp)
}

// GetMachine возвращает автомат по идентификатору.
func (h *Handler) GetMachine(w http.ResponseWriter, r *http.Request) {
	machine, err := h.service.GetMachineByID(r.Context(), pathID(r))
	if err != nil {
		if errors.Is(err, repository.ErrMachineNotFound) {
			writeError(w, http.StatusNotFound, "vending machine not found")
			return
		}
		h.logger.Error("get machine error", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	writeData(w, http.StatusOK, toMachineResponse(machine))
}

type orderStatusResponse struct {
	ID          string `json:"id"`
	Status      string `json:"status"`
	Description string `json:"description,omitempty"`
	CreatedAt   string `json:"created_at"`
}

type paymentResponse struct {
	ID        string  `json:"id"`
	OrderID   string  `json:"order_id"`
	Amount    float64 `json:"amount"`
	Method    string  `json:"payment_method"`
	Status    string  `json:"status"`
	CreatedAt string  `json:"created_at"`
}

func toPaymentResponse(p *model.Payment) paymentResponse {
	return paymentResponse{
		ID:        p.ID,
		OrderID:   p.OrderID,
		Amount:    p.Amount,
		Method:    p.Method,
		Status:    string(p.Status),
		CreatedAt: p.CreatedAt.Format(time.RFC3339),
	}
}

type orderResponse struct {
	ID            string                `json:"id"`
	UserID        string                `json:"user_id"`
	MachineID     string                `json:"machine_id"`
	ModelFileURL  string                `json:"model_file_url"`
	PrintSettings model.PrintSettings   `json:"print_settings"`
	Quantity      int                   `json:"quantity"`
	Cost          float64               `json:"cost"`
	Statuses      []orderStatusResponse `json:"statuses"`
	Payments      []paymentResponse     `json:"payments"`
	CreatedAt     string                `json:"created_at"`
	UpdatedAt     string                `json:"updated_at"`
}

func toOrderResponse(o *model.Order) orderResponse {
	statuses := make([]orderStatusResponse, 0, len(o.Statuses))
	for _, s := range o.Statuses {
		statuses = append(statuses, orderStatusResponse{
			ID:          s.ID,
			Status:      string(s.Status),
			Description: s.Description,
			CreatedAt:   s.CreatedAt.Format(time.RFC3339),
		})
	}

	payments := make([]paymentResponse, 0, len(o.Payments))
	for i := range o.Payments {
		payments = append(payments, toPaymentResponse(&o.Payments[i]))
	}

	return orderResponse{
		ID:            o.ID,
		UserID:        o.UserID,
		MachineID:     o.MachineID,
		ModelFileURL:  o.ModelFileURL,
		PrintSettings: o.Settings,
		Quantity:      o.Quantity,
		Cost:          o.Cost,
		Statuses:      statuses,
		Payments:      payments,
		CreatedAt:     o.CreatedAt.Format(time.RFC3339),
		UpdatedAt:     o.UpdatedAt.Format(time.RFC3339),
	}
}

type createOrderRequest struct {
	MachineID     string              `json:"machine_id"`
	Quantity      int                 `json:"quantity"`
	Cost          float64             `json:"cost"`
	ModelFileURL  string              `json:"model_file_url"`
	PrintSettings model.PrintSettings `json:"print_settings"`
}

// CreateOrder создаёт заказ на печать для текущего пользователя.
func (h *Handler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req createOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.MachineID == "" || req.ModelFileURL == "" {
		writeError(w, http.StatusBadRequest, "machine_id and model_file_url are required")
		return
	}

	order, err := h.service.CreateOrder(r.Context(), userID, req.MachineID, req.ModelFileURL, req.PrintSettings, req.Quantity, req.Cost)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrMachineNotFound):
			writeError(w, http.StatusNotFound, "vending machine not found")
		case errors.Is(err, service.ErrMachineUnavailable):
			writeError(w, http.StatusBadRequest, "vending machine is unavailable")
		case errors.Is(err, service.ErrInvalidAmount):
			writeError(w, http.StatusBadRequest, err.Error())
		default:
			h.logger.Error("create order error", zap.Error(err), zap.String("userID", userID))
			writeError(w, http.StatusInternalServerError, "internal error")
		}
		return
	}

	writeData(w, http.StatusCreated, toOrderResponse(order))
}

// GetOrders возвращает список заказов текущего пользователя.
func (h *Handler) GetOrders(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	orders, err := h.service.GetOrdersByUser(r.Context(), userID)
	if err != nil {
		h.logger.Error("get orders error", zap.Error(err), zap.String("userID", userID))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	resp := make([]orderResponse, 0, len(orders))
	for i := range orders {
		resp = append(resp, toOrderResponse(&orders[i]))
	}

	writeData(w, http.StatusOK, resp)
}

// GetOrder возвращает заказ текущего пользователя по идентификатору.
func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	order, err := h.service.GetOrderByID(r.Context(), userID, pathID(r))
	if err != nil {
		if errors.Is(err, repository.ErrOrderNotFound) {
			writeError(w, http.StatusNotFound, "order not found")
			return
		}
		h.logger.Error("get order error", zap.Error(err), zap.String("userID", userID))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	writeData(w, http.StatusOK, toOrderResponse(order))
}

// CancelOrder отменяет заказ текущего пользователя.
func (h *Handler) CancelOrder(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	err := h.service.CancelOrder(r.Context(), userID, pathID(r))
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrOrderNotFound):
			writeError(w, http.StatusNotFound, "order not found")
		case errors.Is(err, repository.ErrOrderTerminal):
			writeError(w, http.StatusConflict, "order is already finished")
		default:
			h.logger.Error("cancel order error", zap.Error(err), zap.String("userID", userID))
			writeError(w, http.StatusInternalServerError, "internal error")
		}
		return
	}

	writeData(w, http.StatusOK, nil)
}

type walletResponse struct {
	ID              string  `json:"id"`
	UserID          string  `json:"user_id"`
	Balance         float64 `json:"balance"`
	LastTransaction *string `json:"last_transaction"`
	CreatedAt       string  `json:"created_at"`
	UpdatedAt       string  `json:"updated_at"`
}

func toWalletResponse(wl *model.Wallet) walletResponse {
	var last *string
	if wl.LastTransaction != nil {
		v := wl.LastTransaction.Format(time.RFC3339)
		last = &v
	}
	return walletResponse{
		ID:              wl.ID,
		UserID:          wl.UserID,
		Balance:         wl.Balance,
		LastTransaction: last,
		CreatedAt:       wl.CreatedAt.Format(time.RFC3339),
		UpdatedAt:       wl.UpdatedAt.Format(time.RFC3339),
	}
}

// CreateWallet создаёт кошелёк для текущего пользователя.
func (h *Handler) CreateWallet(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	wallet, err := h.service.CreateWallet(r.Context(), userID)
	if err != nil {
		if errors.Is(err, repository.ErrWalletExists) {
			writeError(w, http.StatusConflict, "wallet already exists")
			return
		}
		h.logger.Error("create wallet error", zap.Error(err), zap.String("userID", userID))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	writeData(w, http.StatusCreated, toWalletResponse(wallet))
}

type balanceResponse struct {
	Balance float64 `json:"balance"`
}

// GetWalletBalance возвращает баланс кошелька текущего пользователя.
// Если кошелёк ещё не создан, отвечает 404: клиент создаёт его сам.
func (h *Handler) GetWalletBalance(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	wallet, err := h.service.GetWalletByUser(r.Context(), userID)
	if err != nil {
		if errors.Is(err, repository.ErrWalletNotFound) {
			writeError(w, http.StatusNotFound, "wallet not found")
			return
		}
		h.logger.Error("get balance error", zap.Error(err), zap.String("userID", userID))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	writeData(w, http.StatusOK, balanceResponse{Balance: wallet.Balance})
}

type topUpRequest struct {
	Amount float64 `json:"amount"`
}

// TopUpWallet пополняет кошелёк текущего пользователя.
func (h *Handler) TopUpWallet(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req topUpRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	wallet, err := h.service.TopUpWallet(r.Context(), userID, req.Amount)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidAmount):
			writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, repository.ErrWalletNotFound):
			writeError(w, http.StatusNotFound, "wallet not found")
		default:
			h.logger.Error("top-up error", zap.Error(err), zap.String("userID", userID))
			writeError(w, http.StatusInternalServerError, "internal error")
		}
		return
	}

	writeData(w, http.StatusOK, toWalletResponse(wallet))
}

type createPaymentRequest struct {
	OrderID string  `json:"order_id"`
	Amount  float64 `json:"amount"`
	Method  string  `json:"payment_method"`
}

// CreatePayment проводит оплату заказа из кошелька текущего пользователя.
func (h *Handler) CreatePayment(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req createPaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.OrderID == "" {
		writeError(w, http.StatusBadRequest, "order_id is required")
		return
	}

	payment, err := h.service.PayOrder(r.Context(), userID, req.OrderID, req.Amount, req.Method)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrInsufficientFunds):
			writeError(w, http.StatusBadRequest, MsgInsufficientFunds)
		case errors.Is(err, repository.ErrOrderTerminal):
			writeError(w, http.StatusConflict, "order is already finished")
		case errors.Is(err, repository.ErrOrderNotFound):
			writeError(w, http.StatusNotFound, "order not found")
		case errors.Is(err, repository.ErrWalletNotFound):
			writeError(w, http.StatusNotFound, "wallet not found")
		case errors.Is(err, service.ErrInvalidAmount):
			writeError(w, http.StatusBadRequest, err.Error())
		default:
			h.logger.Error("create payment error", zap.Error(err), zap.String("userID", userID), zap.String("order", req.OrderID))
			writeError(w, http.StatusInternalServerError, "internal error")
		}
		return
	}

	writeData(w, http.StatusCreated, toPaymentResponse(payment))
}

// GetPayments возвращает платежи текущего пользователя.
func (h *Handler) GetPayments(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	payments, err := h.service.GetPaymentsByUser(r.Context(), userID)
	if err != nil {
		h.logger.Error("get payments error", zap.Error(err), zap.String("userID", userID))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	resp := make([]paymentResponse, 0, len(payments))
	for i := range payments {
		resp = append(resp, toPaymentResponse(&payments[i]))
	}

	writeData(w, http.StatusOK, resp)
}
