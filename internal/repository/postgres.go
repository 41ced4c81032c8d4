// Package repository содержит реализацию доступа к данным в PostgreSQL.
package repository

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"github.com/sethvargo/go-retry"

	"github.com/mbilous/printnet-system/internal/model"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// ErrUserExists возвращается при попытке создать пользователя с уже существующим email.
var (
	ErrUserExists = errors.New("user already exists")
	// ErrUserNotFound возвращается, если пользователь не найден.
	ErrUserNotFound = errors.New("user not found")
	// ErrMachineNotFound возвращается, если автомат не найден.
	ErrMachineNotFound = errors.New("vending machine not found")
	// ErrOrderNotFound возвращается, если заказ не найден.
	ErrOrderNotFound = errors.New("order not found")
	// ErrWalletExists возвращается при попытке создать второй кошелёк для пользователя.
	ErrWalletExists = errors.New("wallet already exists")
	// ErrWalletNotFound возвращается, если у пользователя ещё нет кошелька.
	ErrWalletNotFound = errors.New("wallet not found")
	// ErrInsufficientFunds возвращается при попытке списания суммы, превышающей баланс кошелька.
	ErrInsufficientFunds = errors.New("insufficient wallet funds")
	// ErrOrderTerminal возвращается при попытке добавить статус заказу в конечном состоянии.
	ErrOrderTerminal = errors.New("order is in terminal status")
)

// PostgresRepository предоставляет доступ к хранилищу данных в PostgreSQL.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository создаёт новый репозиторий и инициализирует схему БД через миграции.
func NewPostgresRepository(dsn string) (*PostgresRepository, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse pool config: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	r := &PostgresRepository{pool: pool}

	if err := r.runMigrations(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return r, nil
}

func (r *PostgresRepository) runMigrations(ctx context.Context) error {
	db := stdlib.OpenDBFromPool(r.pool)
	defer db.Close()

	goose.SetBaseFS(migrationsFS)

	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("set dialect: %w", err)
	}

	if err := goose.UpContext(ctx, db, "migrations"); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	return nil
}

// withRetry повторяет операцию при serialization failure, deadlock и сетевых сбоях.
func (r *PostgresRepository) withRetry(ctx context.Context, fn func() error) error {
	backoff := retry.WithMaxRetries(3, retry.NewExponential(time.Second))

	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		err := fn()
		if err == nil {
			return nil
		}

		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}

		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			if pgErr.Code == pgerrcode.SerializationFailure || pgErr.Code == pgerrcode.DeadlockDetected {
				return retry.RetryableError(err)
			}
			return err
		}

		if isConnectionError(err) {
			return retry.RetryableError(err)
		}

		return err
	})
}

func isConnectionError(err error) bool {
	// Упрощенная проверка на ошибки соединения
	return strings.Contains(err.Error(), "connection refused") ||
		strings.Contains(err.Error(), "broken pipe") ||
		strings.Contains(err.Error(), "connection reset by peer")
}

// Close закрывает пул соединений с БД.
func (r *PostgresRepository) Close() error {
	r.pool.Close()
	return nil
}

// CreateUser создаёт нового пользователя и возвращает его идентификатор.
func (r *PostgresRepository) CreateUser(ctx context.Context, email string, passwordHash []byte, firstName, lastName string) (string, error) {
	id := uuid.New().String()

	_, err := r.pool.Exec(ctx,
		`INSERT INTO users (id, email, password_hash, first_name, last_name) VALUES ($1, $2, $3, $4, $5)`,
		id, email, passwordHash, firstName, lastName,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return "", fmt.Errorf("%w: %s", ErrUserExists, email)
		}
		return "", fmt.Errorf("create user: %w", err)
	}
	return id, nil
}

// GetUserByEmail возвращает пользователя по email.
func (r *PostgresRepository) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT id, email, password_hash, first_name, last_name, is_active, created_at FROM users WHERE email = $1`,
		email,
	)
	return scanUser(row)
}

// GetUserByID возвращает пользователя по идентификатору.
func (r *PostgresRepository) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT id, email, password_hash, first_name, last_name, is_active, created_at FROM users WHERE id = $1`,
		id,
	)
	return scanUser(row)
}

func scanUser(row pgx.Row) (*model.User, error) {
	var u model.User
	err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.FirstName, &u.LastName, &u.IsActive, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	return &u, nil
}

// CreateMachine сохраняет новый автомат 3D-печати.
func (r *PostgresRepository) CreateMachine(ctx context.Context, serialNumber, location string) (*model.VendingMachine, error) {
	id := uuid.New().String()

	row := r.pool.QueryRow(ctx,
		`INSERT INTO vending_machines (id, serial_number, location) VALUES ($1, $2, $3)
		 RETURNING id, serial_number, location, is_active, maintenance_required, created_at, updated_at`,
		id, serialNumber, location,
	)

	var m model.VendingMachine
	err := row.Scan(&m.ID, &m.SerialNumber, &m.Location, &m.IsActive, &m.MaintenanceRequired, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("create machine: %w", err)
	}
	return &m, nil
}

// GetMachines возвращает все автоматы платформы.
func (r *PostgresRepository) GetMachines(ctx context.Context) ([]model.VendingMachine, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, serial_number, location, is_active, maintenance_required, created_at, updated_at
		 FROM vending_machines
		 ORDER BY created_at`,
	)
	if err != nil {
		return nil, fmt.Errorf("select machines: %w", err)
	}
	defer rows.Close()

	var machines []model.VendingMachine
	for rows.Next() {
		var m model.VendingMachine
		if err := rows.Scan(&m.ID, &m.SerialNumber, &m.Location, &m.IsActive, &m.MaintenanceRequired, &m.CreatedAt, &m.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan machine: %w", err)
		}
		machines = append(machines, m)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return machines, nil
}

// GetMachineByID возвращает автомат по идентификатору.
func (r *PostgresRepository) GetMachineByID(ctx context.Context, id string) (*model.VendingMachine, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT id, serial_number, location, is_active, maintenance_required, created_at, updated_at
		 FROM vending_machines WHERE id = $1`,
		id,
	)

	var m model.VendingMachine
	err := row.Scan(&m.ID, &m.SerialNumber, &m.Location, &m.IsActive, &m.MaintenanceRequired, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrMachineNotFound
		}
		return nil, fmt.Errorf("get machine: %w", err)
	}
	return &m, nil
}

// CreateOrder сохраняет заказ вместе с начальным статусом "created" в одной транзакции.
func (r *PostgresRepository) CreateOrder(ctx context.Context, userID, machineID, modelFileURL string, settings model.PrintSettings, quantity int, costCents int64) (string, error) {
	settingsJSON, err := json.Marshal(settings)
	if err != nil {
		return "", fmt.Errorf("marshal settings: %w", err)
	}

	orderID := uuid.New().String()

	err = r.withRetry(ctx, func() error {
		tx, err := r.pool.Begin(ctx)
		if err != nil {
			return fmt.Errorf("begin tx: %w", err)
		}
		defer tx.Rollback(ctx)

		_, err = tx.Exec(ctx,
			`INSERT INTO orders (id, user_id, machine_id, model_file_url, settings, quantity, cost)
			 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			orderID, userID, machineID, modelFileURL, settingsJSON, quantity, costCents,
		)
		if err != nil {
			return fmt.Errorf("insert order: %w", err)
		}

		_, err = tx.Exec(ctx,
			`INSERT INTO order_statuses (id, order_id, status, description) VALUES ($1, $2, $3, $4)`,
			uuid.New().String(), orderID, string(model.OrderStatusCreated), "Order created",
		)
		if err != nil {
			return fmt.Errorf("insert initial status: %w", err)
		}

		if err := tx.Commit(ctx); err != nil {
			return fmt.Errorf("commit tx: %w", err)
		}
		return nil
	})
	if err != nil {
		return "", err
	}

	return orderID, nil
}

// GetOrderByID возвращает заказ с историей статусов и платежами.
func (r *PostgresRepository) GetOrderByID(ctx context.Context, id string) (*model.Order, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT id, user_id, machine_id, model_file_url, settings, quantity, cost, created_at, updated_at
		 FROM orders WHERE id = $1`,
		id,
	)

	o, err := scanOrder(row)
	if err != nil {
		return nil, err
	}

	if err := r.loadOrderStatuses(ctx, o); err != nil {
		return nil, err
	}
	if err := r.loadOrderPayments(ctx, o); err != nil {
		return nil, err
	}

	return o, nil
}

// GetOrdersByUser возвращает заказы пользователя с историями статусов.
func (r *PostgresRepository) GetOrdersByUser(ctx context.Context, userID string) ([]model.Order, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, user_id, machine_id, model_file_url, settings, quantity, cost, created_at, updated_at
		 FROM orders
		 WHERE user_id = $1
		 ORDER BY created_at DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("select orders: %w", err)
	}
	defer rows.Close()

	var orders []model.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, *o)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	for i := range orders {
		if err := r.loadOrderStatuses(ctx, &orders[i]); err != nil {
			return nil, err
		}
		if err := r.loadOrderPayments(ctx, &orders[i]); err != nil {
			return nil, err
		}
	}

	return orders, nil
}

func scanOrder(row pgx.Row) (*model.Order, error) {
	var (
		o            model.Order
		settingsJSON []byte
		costCents    int64
	)
	err := row.Scan(&o.ID, &o.UserID, &o.MachineID, &o.ModelFileURL, &settingsJSON, &o.Quantity, &costCents, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("scan order: %w", err)
	}

	if err := json.Unmarshal(settingsJSON, &o.Settings); err != nil {
		return nil, fmt.Errorf("unmarshal settings: %w", err)
	}
	o.Cost = float64(costCents) / 100

	return &o, nil
}

// loadOrderStatuses загружает историю статусов в порядке вставки.
func (r *PostgresRepository) loadOrderStatuses(ctx context.Context, o *model.Order) error {
	rows, err := r.pool.Query(ctx,
		`SELECT id, status, description, created_at
		 FROM order_statuses
		 WHERE order_id = $1
		 ORDER BY seq`,
		o.ID,
	)
	if err != nil {
		return fmt.Errorf("select statuses: %w", err)
	}
	defer rows.Close()

	o.Statuses = nil
	for rows.Next() {
		var s model.OrderStatus
		var status string
		if err := rows.Scan(&s.ID, &status, &s.Description, &s.CreatedAt); err != nil {
			return fmt.Errorf("scan status: %w", err)
		}
		s.Status = model.OrderStatusKind(status)
		o.Statuses = append(o.Statuses, s)
	}

	if err := rows.Err(); err != nil {
		return fmt.Errorf("rows error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) loadOrderPayments(ctx context.Context, o *model.Order) error {
	rows, err := r.pool.Query(ctx,
		`SELECT id, order_id, amount, method, status, created_at
		 FROM payments
		 WHERE order_id = $1
		 ORDER BY created_at`,
		o.ID,
	)
	if err != nil {
		return fmt.Errorf("select payments: %w", err)
	}
	defer rows.Close()

	o.Payments = nil
	for rows.Next() {
		var (
			p           model.Payment
			amountCents int64
			status      string
		)
		if err := rows.Scan(&p.ID, &p.OrderID, &amountCents, &p.Method, &status, &p.CreatedAt); err != nil {
			return fmt.Errorf("scan payment: %w", err)
		}
		p.Amount = float64(amountCents) / 100
		p.Status = model.PaymentStatus(status)
		o.Payments = append(o.Payments, p)
	}

	if err := rows.Err(); err != nil {
		return fmt.Errorf("rows error: %w", err)
	}
	return nil
}

// AppendOrderStatus добавляет запись в историю статусов заказа.
// История только дополняется: если заказ уже в конечном статусе, возвращается ErrOrderTerminal.
func (r *PostgresRepository) AppendOrderStatus(ctx context.Context, orderID string, status model.OrderStatusKind, description string) error {
	return r.withRetry(ctx, func() error {
		tx, err := r.pool.Begin(ctx)
		if err != nil {
			return fmt.Errorf("begin tx: %w", err)
		}
		defer tx.Rollback(ctx)

		var current string
		err = tx.QueryRow(ctx,
			`SELECT status FROM order_statuses WHERE order_id = $1 ORDER BY seq DESC LIMIT 1`,
			orderID,
		).Scan(&current)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrOrderNotFound
			}
			return fmt.Errorf("select current status: %w", err)
		}

		if model.OrderStatusKind(current).IsTerminal() {
			return ErrOrderTerminal
		}

		_, err = tx.Exec(ctx,
			`INSERT INTO order_statuses (id, order_id, status, description) VALUES ($1, $2, $3, $4)`,
			uuid.New().String(), orderID, string(status), description,
		)
		if err != nil {
			return fmt.Errorf("insert status: %w", err)
		}

		_, err = tx.Exec(ctx, `UPDATE orders SET updated_at = now() WHERE id = $1`, orderID)
		if err != nil {
			return fmt.Errorf("touch order: %w", err)
		}

		return tx.Commit(ctx)
	})
}

// CreateWallet создаёт кошелёк пользователя с нулевым балансом.
func (r *PostgresRepository) CreateWallet(ctx context.Context, userID string) (*model.Wallet, error) {
	id := uuid.New().String()

	row := r.pool.QueryRow(ctx,
		`INSERT INTO wallets (id, user_id) VALUES ($1, $2)
		 RETURNING id, user_id, balance, last_transaction, created_at, updated_at`,
		id, userID,
	)

	w, err := scanWallet(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return nil, ErrWalletExists
		}
		return nil, err
	}
	return w, nil
}

// GetWalletByUser возвращает кошелёк пользователя.
func (r *PostgresRepository) GetWalletByUser(ctx context.Context, userID string) (*model.Wallet, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT id, user_id, balance, last_transaction, created_at, updated_at FROM wallets WHERE user_id = $1`,
		userID,
	)

	w, err := scanWallet(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrWalletNotFound
		}
		return nil, err
	}
	return w, nil
}

func scanWallet(row pgx.Row) (*model.Wallet, error) {
	var (
		w            model.Wallet
		balanceCents int64
	)
	err := row.Scan(&w.ID, &w.UserID, &balanceCents, &w.LastTransaction, &w.CreatedAt, &w.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan wallet: %w", err)
	}
	w.Balance = float64(balanceCents) / 100
	return &w, nil
}

// TopUpWallet увеличивает баланс кошелька. Использует блокировку строки кошелька.
func (r *PostgresRepository) TopUpWallet(ctx context.Context, userID string, amountCents int64) (*model.Wallet, error) {
	var result *model.Wallet

	err := r.withRetry(ctx, func() error {
		tx, err := r.pool.Begin(ctx)
		if err != nil {
			return fmt.Errorf("begin tx: %w", err)
		}
		defer tx.Rollback(ctx)

		var walletID string
		err = tx.QueryRow(ctx, `SELECT id FROM wallets WHERE user_id = $1 FOR UPDATE`, userID).Scan(&walletID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrWalletNotFound
			}
			return fmt.Errorf("lock wallet: %w", err)
		}

		row := tx.QueryRow(ctx,
			`UPDATE wallets SET balance = balance + $2, last_transaction = now(), updated_at = now()
			 WHERE id = $1
			 RETURNING id, user_id, balance, last_transaction, created_at, updated_at`,
			walletID, amountCents,
		)

		w, err := scanWallet(row)
		if err != nil {
			return err
		}
		result = w

		return tx.Commit(ctx)
	})
	if err != nil {
		return nil, err
	}

	return result, nil
}

// CreatePayment проводит оплату заказа из кошелька одной транзакцией:
// проверяет, что заказ не в конечном статусе, блокирует строку кошелька,
// проверяет достаточность средств, списывает сумму, сохраняет платёж и
// добавляет заказу статус "pending". Для заказа в конечном статусе
// возвращается ErrOrderTerminal до любого списания.
func (r *PostgresRepository) CreatePayment(ctx context.Context, userID, orderID string, amountCents int64, method string) (*model.Payment, error) {
	var result *model.Payment

	err := r.withRetry(ctx, func() error {
		tx, err := r.pool.Begin(ctx)
		if err != nil {
			return fmt.Errorf("begin tx: %w", err)
		}
		defer tx.Rollback(ctx)

		var orderUserID string
		err = tx.QueryRow(ctx, `SELECT user_id FROM orders WHERE id = $1`, orderID).Scan(&orderUserID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrOrderNotFound
			}
			return fmt.Errorf("select order: %w", err)
		}
		if orderUserID != userID {
			return ErrOrderNotFound
		}

		// Заказ в конечном статусе не оплачивается: история статусов только дополняется.
		var current string
		err = tx.QueryRow(ctx,
			`SELECT status FROM order_statuses WHERE order_id = $1 ORDER BY seq DESC LIMIT 1`,
			orderID,
		).Scan(&current)
		if err != nil && !errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("select current status: %w", err)
		}
		if model.OrderStatusKind(current).IsTerminal() {
			return ErrOrderTerminal
		}

		// Блокируем строку кошелька для предотвращения параллельных списаний, превышающих баланс.
		var walletID string
		var balanceCents int64
		err = tx.QueryRow(ctx, `SELECT id, balance FROM wallets WHERE user_id = $1 FOR UPDATE`, userID).Scan(&walletID, &balanceCents)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrWalletNotFound
			}
			return fmt.Errorf("lock wallet: %w", err)
		}

		if amountCents > balanceCents {
			return ErrInsufficientFunds
		}

		_, err = tx.Exec(ctx,
			`UPDATE wallets SET balance = balance - $2, last_transaction = now(), updated_at = now() WHERE id = $1`,
			walletID, amountCents,
		)
		if err != nil {
			return fmt.Errorf("debit wallet: %w", err)
		}

		paymentID := uuid.New().String()
		row := tx.QueryRow(ctx,
			`INSERT INTO payments (id, order_id, amount, method, status) VALUES ($1, $2, $3, $4, $5)
			 RETURNING id, order_id, amount, method, status, created_at`,
			paymentID, orderID, amountCents, method, string(model.PaymentStatusCompleted),
		)

		var (
			p      model.Payment
			cents  int64
			status string
		)
		if err := row.Scan(&p.ID, &p.OrderID, &cents, &p.Method, &status, &p.CreatedAt); err != nil {
			return fmt.Errorf("insert payment: %w", err)
		}
		p.Amount = float64(cents) / 100
		p.Status = model.PaymentStatus(status)

		_, err = tx.Exec(ctx,
			`INSERT INTO order_statuses (id, order_id, status, description) VALUES ($1, $2, $3, $4)`,
			uuid.New().String(), orderID, string(model.OrderStatusPending), "Payment received",
		)
		if err != nil {
			return fmt.Errorf("insert status: %w", err)
		}

		if err := tx.Commit(ctx); err != nil {
			return fmt.Errorf("commit tx: %w", err)
		}

		result = &p
		return nil
	})
	if err != nil {
		return nil, err
	}

	return result, nil
}

// GetPaymentsByUser возвращает платежи по всем заказам пользователя.
func (r *PostgresRepository) GetPaymentsByUser(ctx context.Context, userID string) ([]model.Payment, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT p.id, p.order_id, p.amount, p.method, p.status, p.created_at
		 FROM payments p
		 JOIN orders o ON o.id = p.order_id
		 WHERE o.user_id = $1
		 ORDER BY p.created_at DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("select payments: %w", err)
	}
	defer rows.Close()

	var res []model.Payment
	for rows.Next() {
		var (
			p      model.Payment
			cents  int64
			status string
		)
		if err := rows.Scan(&p.ID, &p.OrderID, &cents, &p.Method, &status, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan payment: %w", err)
		}
		p.Amount = float64(cents) / 100
		p.Status = model.PaymentStatus(status)
		res = append(res, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return res, nil
}

// OrderForDispatch описывает оплаченный заказ, ожидающий передачи автомату.
type OrderForDispatch struct {
	ID        string
	MachineID string
}

// GetOrdersForDispatch возвращает заказы с текущим статусом "pending",
// автомат которых активен и не требует обслуживания.
func (r *PostgresRepository) GetOrdersForDispatch(ctx context.Context, limit int) ([]OrderForDispatch, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT o.id, o.machine_id
		 FROM orders o
		 JOIN vending_machines m ON m.id = o.machine_id
		 JOIN LATERAL (
		     SELECT status FROM order_statuses WHERE order_id = o.id ORDER BY seq DESC LIMIT 1
		 ) s ON TRUE
		 WHERE s.status = $1 AND m.is_active AND NOT m.maintenance_required
		 ORDER BY o.created_at
		 LIMIT $2`,
		string(model.OrderStatusPending), limit,
	)
	if err != nil {
		return nil, fmt.Errorf("select orders for dispatch: %w", err)
	}
	defer rows.Close()

	var res []OrderForDispatch
	for rows.Next() {
		var o OrderForDispatch
		if err := rows.Scan(&o.ID, &o.MachineID); err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		res = append(res, o)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return res, nil
}
