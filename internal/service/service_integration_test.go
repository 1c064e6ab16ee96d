package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"bookstore/internal/database"
	"bookstore/internal/domain"
	"bookstore/internal/infrastructure/payment"
	"bookstore/internal/mail"
	"bookstore/internal/repo"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

var testDB *sql.DB

func TestMain(m *testing.M) {
	ctx := context.Background()

	pgc, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("bookstore"),
		tcpostgres.WithUsername("bookstore"),
		tcpostgres.WithPassword("bookstore"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	if err != nil {
		log.Fatalf("start postgres container: %v", err)
	}

	dsn, err := pgc.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		log.Fatalf("container dsn: %v", err)
	}

	testDB, err = database.Open(ctx, dsn)
	if err != nil {
		log.Fatalf("open db: %v", err)
	}
	if err := database.Migrate(ctx, testDB); err != nil {
		log.Fatalf("migrate: %v", err)
	}

	code := m.Run()

	testDB.Close()
	_ = pgc.Terminate(ctx)
	os.Exit(code)
}

// stubGateway answers with scripted per-reference verdicts so tests control
// exactly what the "provider" says.
type stubGateway struct {
	mu       sync.Mutex
	verdicts map[string]payment.Verdict
	initErr  error
}

func newStubGateway() *stubGateway {
	return &stubGateway{verdicts: make(map[string]payment.Verdict)}
}

func (g *stubGateway) script(reference string, v payment.Verdict) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.verdicts[reference] = v
}

func (g *stubGateway) Initialize(ctx context.Context, req payment.InitRequest) (*payment.InitResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.initErr != nil {
		return nil, g.initErr
	}
	return &payment.InitResult{
		AuthorizationURL: "https://checkout.test/" + req.Reference,
		Reference:        req.Reference,
		Raw:              json.RawMessage(`{"status":true}`),
	}, nil
}

func (g *stubGateway) Verify(ctx context.Context, reference string) payment.VerifyResult {
	g.mu.Lock()
	defer g.mu.Unlock()
	return payment.VerifyResult{
		Verdict: g.verdicts[reference],
		Raw:     json.RawMessage(`{"stub":true}`),
	}
}

// syncQueue runs jobs inline, so asynchronous effects are visible as soon as
// the call returns.
type syncQueue struct{}

func (syncQueue) Enqueue(_ string, fn func(ctx context.Context) error) {
	_ = fn(context.Background())
}

type harness struct {
	orders   *OrderService
	payments *PaymentService
	notes    *NotificationService
	gateway  *stubGateway

	bookRepo  repo.BookRepo
	orderRepo repo.OrderRepo
	payRepo   repo.PaymentRepo
	noteRepo  repo.NotificationRepo
}

func newHarness(t *testing.T, staleAfter time.Duration) *harness {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	bookRepo := repo.NewBookRepo(testDB)
	orderRepo := repo.NewOrderRepo(testDB)
	payRepo := repo.NewPaymentRepo(testDB)
	noteRepo := repo.NewNotificationRepo(testDB)

	gateway := newStubGateway()
	registry := payment.NewRegistry()
	registry.Register(domain.ProviderPaystack, gateway)
	registry.Register(domain.ProviderFlutterwave, gateway)

	notes := NewNotificationService(noteRepo, &mail.LogSender{Log: logger}, syncQueue{}, 30*24*time.Hour, logger)
	return &harness{
		orders:    NewOrderService(testDB, orderRepo, bookRepo, notes, logger),
		payments:  NewPaymentService(testDB, payRepo, orderRepo, registry, notes, syncQueue{}, staleAfter, logger),
		notes:     notes,
		gateway:   gateway,
		bookRepo:  bookRepo,
		orderRepo: orderRepo,
		payRepo:   payRepo,
		noteRepo:  noteRepo,
	}
}

func (h *harness) seedBook(t *testing.T, price string, stock int) *domain.Book {
	t.Helper()
	now := time.Now().UTC()
	b := &domain.Book{
		ID:            uuid.New(),
		Title:         fmt.Sprintf("Intro to Algorithms %s", uuid.NewString()[:8]),
		Author:        "T. Cormen",
		Price:         decimal.RequireFromString(price),
		Department:    "Computer Science",
		StockQuantity: stock,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	require.NoError(t, h.bookRepo.Insert(context.Background(), b))
	return b
}

func (h *harness) createOrder(t *testing.T, userID uuid.UUID, book *domain.Book, qty int) *domain.Order {
	t.Helper()
	order, err := h.orders.Create(context.Background(), CreateOrderInput{
		UserID:        userID,
		UserEmail:     "reader@campus.edu",
		PaymentMethod: domain.ProviderPaystack,
		Items:         []CreateOrderItem{{BookID: book.ID, Quantity: qty}},
	})
	require.NoError(t, err)
	return order
}

// initializePayment runs Initialize and hands back the provider reference.
func (h *harness) initializePayment(t *testing.T, userID uuid.UUID, orderID uuid.UUID) string {
	t.Helper()
	res, err := h.payments.Initialize(context.Background(), userID, "reader@campus.edu", orderID, domain.ProviderPaystack, "")
	require.NoError(t, err)
	require.NotEmpty(t, res.AuthorizationURL)
	return res.Reference
}

func (h *harness) countNotifications(t *testing.T, userID uuid.UUID, title string) int {
	t.Helper()
	list, err := h.noteRepo.ListByUser(context.Background(), userID, 100)
	require.NoError(t, err)
	n := 0
	for _, note := range list {
		if note.Title == title {
			n++
		}
	}
	return n
}

func TestOrderLifecycle(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, time.Hour)
	userID := uuid.New()

	book := h.seedBook(t, "1000.00", 5)
	order, err := h.orders.Create(ctx, CreateOrderInput{
		UserID:        userID,
		UserEmail:     "reader@campus.edu",
		PaymentMethod: domain.ProviderPaystack,
		Items:         []CreateOrderItem{{BookID: book.ID, Quantity: 2}},
	})
	require.NoError(t, err)
	h.orders.Created(ctx, order)

	assert.Equal(t, domain.OrderPending, order.Status)
	assert.Equal(t, "ORD", order.OrderNumber[:3])
	assert.True(t, order.TotalPrice.Equal(decimal.RequireFromString("2000.00")),
		"total %s", order.TotalPrice)

	// transaction row exists and is pending before any verdict
	ref := h.initializePayment(t, userID, order.ID)
	txn, err := h.payRepo.FindByReference(ctx, ref)
	require.NoError(t, err)
	require.NotNil(t, txn)
	assert.Equal(t, domain.PaymentPending, txn.Status)
	assert.True(t, txn.Amount.Equal(order.TotalPrice))

	// stock is untouched until completion
	fresh, err := h.bookRepo.FindByID(ctx, book.ID)
	require.NoError(t, err)
	assert.Equal(t, 5, fresh.StockQuantity)

	h.gateway.script(ref, payment.VerdictSuccess)
	status, err := h.payments.Verify(ctx, ref)
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentSuccess, status)

	paid, err := h.orderRepo.FindByID(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderPaid, paid.Status)
	assert.Equal(t, ref, paid.PaymentReference)

	for _, next := range []domain.OrderStatus{domain.OrderProcessing, domain.OrderReady, domain.OrderCompleted} {
		_, err = h.orders.Transition(ctx, order.ID, next)
		require.NoError(t, err, "transition to %s", next)
	}

	// completion decremented stock
	fresh, err = h.bookRepo.FindByID(ctx, book.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, fresh.StockQuantity)
	assert.True(t, fresh.IsAvailable)

	// completed is terminal
	_, err = h.orders.Transition(ctx, order.ID, domain.OrderCancelled)
	assert.True(t, domain.IsState(err))
	_, err = h.orders.Cancel(ctx, userID, order.ID)
	assert.True(t, domain.IsState(err))

	assert.Equal(t, 1, h.countNotifications(t, userID, "Order Created Successfully"))
	assert.Equal(t, 1, h.countNotifications(t, userID, "Payment Successful"))
}

func TestOrderCreateValidation(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, time.Hour)
	userID := uuid.New()
	book := h.seedBook(t, "500.00", 2)

	cases := []struct {
		name  string
		input CreateOrderInput
	}{
		{
			name:  "empty cart",
			input: CreateOrderInput{UserID: userID, PaymentMethod: domain.ProviderPaystack},
		},
		{
			name: "unknown payment method",
			input: CreateOrderInput{
				UserID:        userID,
				PaymentMethod: "stripe",
				Items:         []CreateOrderItem{{BookID: book.ID, Quantity: 1}},
			},
		},
		{
			name: "unknown book",
			input: CreateOrderInput{
				UserID:        userID,
				PaymentMethod: domain.ProviderPaystack,
				Items:         []CreateOrderItem{{BookID: uuid.New(), Quantity: 1}},
			},
		},
		{
			name: "insufficient stock",
			input: CreateOrderInput{
				UserID:        userID,
				PaymentMethod: domain.ProviderPaystack,
				Items:         []CreateOrderItem{{BookID: book.ID, Quantity: 3}},
			},
		},
		{
			name: "non-positive quantity",
			input: CreateOrderInput{
				UserID:        userID,
				PaymentMethod: domain.ProviderPaystack,
				Items:         []CreateOrderItem{{BookID: book.ID, Quantity: 0}},
			},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := h.orders.Create(ctx, tc.input)
			assert.True(t, domain.IsValidation(err), "got %v", err)
		})
	}
}

func TestOrderItemsSnapshotPrice(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, time.Hour)
	userID := uuid.New()

	book := h.seedBook(t, "750.00", 10)
	order := h.createOrder(t, userID, book, 1)

	// raising the book price later must not change the stored order
	_, err := testDB.ExecContext(ctx, `UPDATE books SET price = 999.99 WHERE id = $1`, book.ID)
	require.NoError(t, err)

	stored, err := h.orderRepo.FindByID(ctx, order.ID)
	require.NoError(t, err)
	require.Len(t, stored.Items, 1)
	assert.True(t, stored.Items[0].Price.Equal(decimal.RequireFromString("750.00")))
	assert.True(t, stored.TotalPrice.Equal(decimal.RequireFromString("750.00")))
}

func TestVerifyIsIdempotent(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, time.Hour)
	userID := uuid.New()

	book := h.seedBook(t, "1200.00", 4)
	order := h.createOrder(t, userID, book, 1)
	ref := h.initializePayment(t, userID, order.ID)
	h.gateway.script(ref, payment.VerdictSuccess)

	// webhook, sweep, and a manual retry all racing on the same reference
	var wg sync.WaitGroup
	results := make([]domain.PaymentStatus, 4)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			status, err := h.payments.Verify(ctx, ref)
			assert.NoError(t, err)
			results[i] = status
		}(i)
	}
	wg.Wait()

	for _, status := range results {
		assert.Equal(t, domain.PaymentSuccess, status)
	}

	// and a late replay after the dust settles
	status, err := h.payments.Verify(ctx, ref)
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentSuccess, status)

	// exactly one success notification despite five verifications
	assert.Equal(t, 1, h.countNotifications(t, userID, "Payment Successful"))

	paid, err := h.orderRepo.FindByID(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderPaid, paid.Status)
}

func TestVerifyUnknownVerdictMutatesNothing(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, time.Hour)
	userID := uuid.New()

	book := h.seedBook(t, "300.00", 3)
	order := h.createOrder(t, userID, book, 1)
	ref := h.initializePayment(t, userID, order.ID)
	// no script: the stub answers VerdictUnknown

	status, err := h.payments.Verify(ctx, ref)
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentPending, status)

	txn, err := h.payRepo.FindByReference(ctx, ref)
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentPending, txn.Status)

	stored, err := h.orderRepo.FindByID(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderPending, stored.Status)

	assert.Equal(t, 0, h.countNotifications(t, userID, "Payment Successful"))
	assert.Equal(t, 0, h.countNotifications(t, userID, "Payment Failed"))

	// the provider makes up its mind later
	h.gateway.script(ref, payment.VerdictSuccess)
	status, err = h.payments.Verify(ctx, ref)
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentSuccess, status)
}

func TestVerifyFailureKeepsOrderRetryable(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, time.Hour)
	userID := uuid.New()

	book := h.seedBook(t, "800.00", 2)
	order := h.createOrder(t, userID, book, 1)
	ref := h.initializePayment(t, userID, order.ID)
	h.gateway.script(ref, payment.VerdictFailed)

	status, err := h.payments.Verify(ctx, ref)
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentFailed, status)

	// order is still pending so the customer may start a fresh attempt
	stored, err := h.orderRepo.FindByID(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderPending, stored.Status)

	ref2 := h.initializePayment(t, userID, order.ID)
	assert.NotEqual(t, ref, ref2)

	h.gateway.script(ref2, payment.VerdictSuccess)
	status, err = h.payments.Verify(ctx, ref2)
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentSuccess, status)

	// the failed verdict is terminal for its own row
	status, err = h.payments.Verify(ctx, ref)
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentFailed, status)
}

func TestInitializeGuards(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, time.Hour)
	userID := uuid.New()

	book := h.seedBook(t, "400.00", 2)
	order := h.createOrder(t, userID, book, 1)

	t.Run("unknown provider", func(t *testing.T) {
		_, err := h.payments.Initialize(ctx, userID, "reader@campus.edu", order.ID, "stripe", "")
		assert.True(t, domain.IsValidation(err))
	})

	t.Run("another user's order", func(t *testing.T) {
		_, err := h.payments.Initialize(ctx, uuid.New(), "other@campus.edu", order.ID, domain.ProviderPaystack, "")
		assert.True(t, domain.IsNotFound(err))
	})

	t.Run("order not awaiting payment", func(t *testing.T) {
		cancelled := h.createOrder(t, userID, book, 1)
		_, err := h.orders.Cancel(ctx, userID, cancelled.ID)
		require.NoError(t, err)

		_, err = h.payments.Initialize(ctx, userID, "reader@campus.edu", cancelled.ID, domain.ProviderPaystack, "")
		assert.True(t, domain.IsState(err))
	})
}

func TestSweepReverifiesStalePending(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, time.Hour)
	userID := uuid.New()

	book := h.seedBook(t, "600.00", 2)
	order := h.createOrder(t, userID, book, 1)
	ref := h.initializePayment(t, userID, order.ID)
	h.gateway.script(ref, payment.VerdictSuccess)

	// not stale yet: nothing to sweep
	n, err := h.payments.SweepPending(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	// age the row past the threshold
	_, err = testDB.ExecContext(ctx,
		`UPDATE payment_transactions SET created_at = now() - interval '2 hours' WHERE reference = $1`, ref)
	require.NoError(t, err)

	n, err = h.payments.SweepPending(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	txn, err := h.payRepo.FindByReference(ctx, ref)
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentSuccess, txn.Status)

	// resolved rows never show up again
	n, err = h.payments.SweepPending(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestStockDecrementFloorsAtZero(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, time.Hour)
	userID := uuid.New()

	book := h.seedBook(t, "250.00", 2)
	order := h.createOrder(t, userID, book, 2)
	ref := h.initializePayment(t, userID, order.ID)
	h.gateway.script(ref, payment.VerdictSuccess)
	_, err := h.payments.Verify(ctx, ref)
	require.NoError(t, err)

	// a concurrent sale drains part of the stock before completion
	_, err = testDB.ExecContext(ctx, `UPDATE books SET stock_quantity = 1 WHERE id = $1`, book.ID)
	require.NoError(t, err)

	for _, next := range []domain.OrderStatus{domain.OrderProcessing, domain.OrderReady, domain.OrderCompleted} {
		_, err = h.orders.Transition(ctx, order.ID, next)
		require.NoError(t, err)
	}

	fresh, err := h.bookRepo.FindByID(ctx, book.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, fresh.StockQuantity)
	assert.False(t, fresh.IsAvailable)
}

func TestCancelOwnership(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, time.Hour)
	userID := uuid.New()

	book := h.seedBook(t, "100.00", 5)
	order := h.createOrder(t, userID, book, 1)

	_, err := h.orders.Cancel(ctx, uuid.New(), order.ID)
	assert.True(t, domain.IsNotFound(err))

	cancelled, err := h.orders.Cancel(ctx, userID, order.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderCancelled, cancelled.Status)

	// cancelling twice is a state error
	_, err = h.orders.Cancel(ctx, userID, order.ID)
	assert.True(t, domain.IsState(err))
}

func TestNotificationReadLifecycle(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, time.Hour)
	userID := uuid.New()

	book := h.seedBook(t, "100.00", 5)
	order := h.createOrder(t, userID, book, 1)
	h.orders.Created(ctx, order)

	unread, err := h.notes.UnreadCount(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, 1, unread)

	list, err := h.notes.List(ctx, userID, 10)
	require.NoError(t, err)
	require.Len(t, list, 1)

	// a stranger cannot mark someone else's notification
	err = h.notes.MarkRead(ctx, list[0].ID, uuid.New())
	assert.True(t, domain.IsNotFound(err))

	require.NoError(t, h.notes.MarkRead(ctx, list[0].ID, userID))
	unread, err = h.notes.UnreadCount(ctx, userID)
	require.NoError(t, err)
	assert.Zero(t, unread)

	// reaping only touches read rows past retention
	_, err = testDB.ExecContext(ctx,
		`UPDATE notifications SET created_at = now() - interval '31 days' WHERE user_id = $1`, userID)
	require.NoError(t, err)
	reaped, err := h.notes.Reap(ctx)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, reaped, int64(1))

	list, err = h.notes.List(ctx, userID, 10)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestOrderStatsScoping(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, time.Hour)
	alice, bob := uuid.New(), uuid.New()

	book := h.seedBook(t, "150.00", 20)
	h.createOrder(t, alice, book, 1)
	h.createOrder(t, alice, book, 2)
	h.createOrder(t, bob, book, 1)

	mine, err := h.orders.Stats(ctx, alice, false)
	require.NoError(t, err)
	assert.Equal(t, 2, mine.TotalOrders)
	assert.Equal(t, 2, mine.PendingOrders)

	// staff see across users; at least the three created here
	all, err := h.orders.Stats(ctx, alice, true)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, all.TotalOrders, 3)
}
