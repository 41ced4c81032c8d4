// Package model содержит доменные сущности платформы printnet.
package model

import "time"

// User представляет зарегистрированного пользователя платформы.
type User struct {
	ID           string
	Email        string
	PasswordHash []byte
	FirstName    string
	LastName     string
	IsActive     bool
	CreatedAt    time.Time
}

// OrderStatusKind описывает состояние обработки заказа на печать.
type OrderStatusKind string

const (
	OrderStatusCreated    OrderStatusKind = "created"
	OrderStatusPending    OrderStatusKind = "pending"
	OrderStatusProcessing OrderStatusKind = "processing"
	OrderStatusPrinting   OrderStatusKind = "printing"
	OrderStatusCompleted  OrderStatusKind = "completed"
	OrderStatusFailed     OrderStatusKind = "failed"
	OrderStatusCancelled  OrderStatusKind = "cancelled"
)

// IsTerminal сообщает, является ли статус конечным: после него новые статусы не добавляются.
func (k OrderStatusKind) IsTerminal() bool {
	switch k {
	case OrderStatusCompleted, OrderStatusFailed, OrderStatusCancelled:
		return true
	}
	return false
}

// OrderStatus описывает одну запись в истории статусов заказа.
// История append-only: текущий статус — последняя добавленная запись.
type OrderStatus struct {
	ID          string
	Status      OrderStatusKind
	Description string
	CreatedAt   time.Time
}

// PrintSettings содержит параметры печати, выбранные пользователем.
type PrintSettings struct {
	Material    string  `json:"material"`
	Infill      float64 `json:"infill"`
	LayerHeight float64 `json:"layerHeight"`
	Quantity    int     `json:"quantity"`
	Notes       string  `json:"notes"`
	FileName    string  `json:"fileName"`
	FileSize    int64   `json:"fileSize"`
}

// Order описывает заказ на 3D-печать.
type Order struct {
	ID           string
	UserID       string
	MachineID    string
	ModelFileURL string
	Settings     PrintSettings
	Quantity     int
	Cost         float64
	Statuses     []OrderStatus
	Payments     []Payment
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// CurrentStatus возвращает текущий статус заказа — последний элемент истории.
func (o *Order) CurrentStatus() OrderStatusKind {
	if len(o.Statuses) == 0 {
		return ""
	}
	return o.Statuses[len(o.Statuses)-1].Status
}

// PaymentStatus описывает состояние платежа.
type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "pending"
	PaymentStatusCompleted PaymentStatus = "completed"
	PaymentStatusFailed    PaymentStatus = "failed"
	PaymentStatusCancelled PaymentStatus = "cancelled"
)

// Payment описывает платёж, привязанный к заказу.
type Payment struct {
	ID        string
	OrderID   string
	Amount    float64
	Method    string
	Status    PaymentStatus
	CreatedAt time.Time
}

// PaymentMethodWallet — единственный метод оплаты, используемый потоком оформления заказа.
const PaymentMethodWallet = "wallet"

// Wallet содержит кошелёк пользователя с неотрицательным балансом.
type Wallet struct {
	ID              string
	UserID          string
	Balance         float64
	LastTransaction *time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// VendingMachine описывает автомат 3D-печати.
type VendingMachine struct {
	ID                  string
	SerialNumber        string
	Location            string
	IsActive            bool
	MaintenanceRequired bool
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// Selectable сообщает, доступен ли автомат для оформления нового заказа.
func (m *VendingMachine) Selectable() bool {
	return m.IsActive && !m.MaintenanceRequired
}
