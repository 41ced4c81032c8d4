// Package api предоставляет HTTP-клиент платформы printnet.
//
// Клиент прозрачно повторяет запросы при сетевых сбоях (до 3 повторов с
// экспоненциальной задержкой от 2 секунд), бизнес-ошибки сервера не
// повторяются. Ответ 401 сбрасывает сессию независимо от операции.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/go-cleanhttp"
	"github.com/hashicorp/go-retryablehttp"

	"github.com/mbilous/printnet-system/internal/model"
)

// Error описывает ошибку ответа API с кодом состояния и сообщением сервера.
type Error struct {
	StatusCode int
	Message    string
}

func (e *Error) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("api: status %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("api: status %d", e.StatusCode)
}

// StatusOf возвращает HTTP-код ошибки API или 0, если ошибка не от сервера.
func StatusOf(err error) int {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode
	}
	return 0
}

// MessageOf возвращает сообщение сервера из ошибки API.
func MessageOf(err error) string {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Message
	}
	return ""
}

// Client инкапсулирует HTTP-взаимодействие с API printnet.
type Client struct {
	baseURL    string
	session    *Session
	httpClient *retryablehttp.Client
}

// NewClient создаёт клиент API с указанным адресом сервера и сессией.
func NewClient(baseURL string, session *Session) *Client {
	rc := retryablehttp.NewClient()
	rc.HTTPClient = cleanhttp.DefaultPooledClient()
	rc.HTTPClient.Timeout = 10 * time.Second
	rc.RetryMax = 3
	rc.RetryWaitMin = 2 * time.Second
	rc.RetryWaitMax = 16 * time.Second
	rc.Logger = nil
	// Повторяются только сбои соединения: любой HTTP-ответ, включая 5xx,
	// отдаётся вызывающему коду без повторов.
	rc.CheckRetry = func(ctx context.Context, resp *http.Response, err error) (bool, error) {
		if ctx.Err() != nil {
			return false, ctx.Err()
		}
		if err != nil {
			return true, nil
		}
		return false, nil
	}

	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		session:    session,
		httpClient: rc,
	}
}

// Session возвращает сессию, с которой работает клиент.
func (c *Client) Session() *Session {
	return c.session
}

// envelope — формат ответа API: {data, success, message?}.
type envelope struct {
	Data    json.RawMessage `json:"data"`
	Success bool            `json:"success"`
	Message string          `json:"message"`
}

// do выполняет запрос, прикладывая bearer-токен сессии, и декодирует конверт ответа.
func (c *Client) do(ctx context.Context, method, path string, body any, out any) error {
	var reqBody []byte
	if body != nil {
		var err error
		reqBody, err = json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(reqBody))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	if token := c.session.Token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	var env envelope
	if decodeErr := json.NewDecoder(resp.Body).Decode(&env); decodeErr != nil && resp.StatusCode < 400 {
		return fmt.Errorf("decode response: %w", decodeErr)
	}

	if resp.StatusCode == http.StatusUnauthorized {
		// Просроченный или отозванный токен: сессия недействительна для всех операций.
		c.session.Clear()
	}

	if resp.StatusCode >= 400 {
		return &Error{StatusCode: resp.StatusCode, Message: env.Message}
	}

	if out != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return fmt.Errorf("decode data: %w", err)
		}
	}

	return nil
}

// User описывает пользователя в ответах API.
type User struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	IsActive  bool   `json:"is_active"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	AccessToken string `json:"access_token"`
	User        User   `json:"user"`
}

// Login аутентифицирует пользователя и сохраняет токен доступа в сессии.
func (c *Client) Login(ctx context.Context, email, password string) (*User, error) {
	var resp loginResponse
	err := c.do(ctx, http.MethodPost, "/auth/login", loginRequest{Email: email, Password: password}, &resp)
	if err != nil {
		return nil, err
	}

	c.session.Set(resp.AccessToken, resp.User.ID)
	return &resp.User, nil
}

// Profile возвращает профиль текущего пользователя.
func (c *Client) Profile(ctx context.Context) (*User, error) {
	var u User
	if err := c.do(ctx, http.MethodGet, "/users/profile", nil, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

// Machine описывает автомат 3D-печати в ответах API.
type Machine struct {
	ID                  string `json:"id"`
	SerialNumber        string `json:"serial_number"`
	Location            string `json:"location"`
	IsActive            bool   `json:"is_active"`
	MaintenanceRequired bool   `json:"maintenance_required"`
}

// Selectable сообщает, доступен ли автомат для нового заказа.
func (m *Machine) Selectable() bool {
	return m.IsActive && !m.MaintenanceRequired
}

// VendingMachines возвращает список автоматов платформы.
func (c *Client) VendingMachines(ctx context.Context) ([]Machine, error) {
	var machines []Machine
	if err := c.do(ctx, http.MethodGet, "/vending-machines", nil, &machines); err != nil {
		return nil, err
	}
	return machines, nil
}

// CreateOrderRequest описывает запрос создания заказа.
type CreateOrderRequest struct {
	MachineID     string              `json:"machine_id"`
	Quantity      int                 `json:"quantity"`
	Cost          float64             `json:"cost"`
	ModelFileURL  string              `json:"model_file_url"`
	PrintSettings model.PrintSettings `json:"print_settings"`
}

// Order описывает заказ в ответах API.
type Order struct {
	ID           string  `json:"id"`
	UserID       string  `json:"user_id"`
	MachineID    string  `json:"machine_id"`
	ModelFileURL string  `json:"model_file_url"`
	Quantity     int     `json:"quantity"`
	Cost         float64 `json:"cost"`
}

// CreateOrder отправляет запрос на создание заказа.
func (c *Client) CreateOrder(ctx context.Context, req CreateOrderRequest) (*Order, error) {
	var o Order
	if err := c.do(ctx, http.MethodPost, "/orders", req, &o); err != nil {
		return nil, err
	}
	return &o, nil
}

// CreatePaymentRequest описывает запрос оплаты заказа.
type CreatePaymentRequest struct {
	OrderID string  `json:"order_id"`
	Amount  float64 `json:"amount"`
	Method  string  `json:"payment_method"`
}

// Payment описывает платёж в ответах API.
type Payment struct {
	ID      string  `json:"id"`
	OrderID string  `json:"order_id"`
	Amount  float64 `json:"amount"`
	Method  string  `json:"payment_method"`
	Status  string  `json:"status"`
}

// CreatePayment отправляет запрос оплаты заказа.
func (c *Client) CreatePayment(ctx context.Context, req CreatePaymentRequest) (*Payment, error) {
	var p Payment
	if err := c.do(ctx, http.MethodPost, "/payments", req, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// Wallet описывает кошелёк в ответах API.
type Wallet struct {
	ID      string  `json:"id"`
	UserID  string  `json:"user_id"`
	Balance float64 `json:"balance"`
}

// CreateWallet создаёт кошелёк текущего пользователя.
func (c *Client) CreateWallet(ctx context.Context) (*Wallet, error) {
	var w Wallet
	if err := c.do(ctx, http.MethodPost, "/payments/wallet/create", nil, &w); err != nil {
		return nil, err
	}
	return &w, nil
}

// WalletBalance возвращает баланс кошелька текущего пользователя.
// Значение приводится к числу, даже если сервер вернул его строкой.
func (c *Client) WalletBalance(ctx context.Context) (float64, error) {
	var resp struct {
		Balance any `json:"balance"`
	}
	if err := c.do(ctx, http.MethodGet, "/payments/wallet/balance", nil, &resp); err != nil {
		return 0, err
	}
	return coerceNumber(resp.Balance)
}

func coerceNumber(v any) (float64, error) {
	switch val := v.(type) {
	case float64:
		return val, nil
	case string:
		n, err := strconv.ParseFloat(val, 64)
		if err != nil {
			return 0, fmt.Errorf("parse balance %q: %w", val, err)
		}
		return n, nil
	case nil:
		return 0, fmt.Errorf("balance is missing")
	default:
		return 0, fmt.Errorf("unexpected balance type %T", v)
	}
}

type topUpRequest struct {
	Amount float64 `json:"amount"`
}

// TopUpWallet пополняет кошелёк текущего пользователя.
func (c *Client) TopUpWallet(ctx context.Context, amount float64) (*Wallet, error) {
	var w Wallet
	if err := c.do(ctx, http.MethodPost, "/payments/wallet/top-up", topUpRequest{Amount: amount}, &w); err != nil {
		return nil, err
	}
	return &w, nil
}
