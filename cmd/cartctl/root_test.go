package main

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Maharab24/Bottle-Collection/internal/catalog"
	"github.com/Maharab24/Bottle-Collection/internal/domain"
	"github.com/Maharab24/Bottle-Collection/internal/notify"
	"github.com/Maharab24/Bottle-Collection/internal/repository/memory"
	"github.com/Maharab24/Bottle-Collection/internal/store"
)

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func newTestStore() *store.Store {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return store.New(memory.NewSlot("bottleCart"), notify.NewBus(logger), "cli-test", logger)
}

func testCatalog() *catalog.Catalog {
	return catalog.New([]domain.Product{
		{
			ID: "b-001", Name: "Glass Bottle", Category: "Glass",
			Price: decimal.RequireFromString("10.00"), Shipping: decimal.RequireFromString("2.00"), Stock: 20,
		},
		{
			ID: "b-002", Name: "Steel Flask", Category: "Steel",
			Price: decimal.RequireFromString("24.50"), Shipping: decimal.Zero, Stock: 3,
		},
	})
}

func testOpener(st *store.Store) (opener, *int) {
	opened := 0
	return func(context.Context, string) (*env, error) {
		opened++
		return &env{
			store:   st,
			catalog: func(context.Context) *catalog.Catalog { return testCatalog() },
			close:   func() error { return nil },
		}, nil
	}, &opened
}

func execute(ctx context.Context, open opener, out io.Writer, args ...string) error {
	cmd := newRootCmd(open)
	cmd.SetOut(out)
	cmd.SetErr(out)
	cmd.SetArgs(args)
	return cmd.ExecuteContext(ctx)
}

func run(t *testing.T, open opener, args ...string) (string, error) {
	t.Helper()
	var buf bytes.Buffer
	err := execute(context.Background(), open, &buf, args...)
	return buf.String(), err
}

func TestShow_EmptyCart(t *testing.T) {
	open, opened := testOpener(newTestStore())

	out, err := run(t, open, "show")
	require.NoError(t, err)
	assert.Equal(t, "cart is empty\n", out)
	assert.Equal(t, 1, *opened)
}

func TestAdd_MergesAndShowsTotals(t *testing.T) {
	st := newTestStore()
	open, _ := testOpener(st)

	out, err := run(t, open, "add", "b-001")
	require.NoError(t, err)
	assert.Equal(t, "Glass Bottle: quantity 1 (1 lines in cart)\n", out)

	out, err = run(t, open, "add", "b-001", "-q", "2")
	require.NoError(t, err)
	assert.Equal(t, "Glass Bottle: quantity 3 (1 lines in cart)\n", out)

	_, err = run(t, open, "add", "b-002", "--quantity", "1")
	require.NoError(t, err)

	out, err = run(t, open, "show")
	require.NoError(t, err)
	assert.Contains(t, out, "b-001")
	assert.Contains(t, out, "Steel Flask")
	assert.Contains(t, out, "$30.00")
	assert.Regexp(t, `Subtotal\s+\$54\.50`, out)
	assert.Regexp(t, `Shipping\s+\$6\.00`, out)
	assert.Regexp(t, `Total\s+\$60\.50`, out)

	// Catalog order is not cart order: lines stay in insertion order.
	assert.Less(t, strings.Index(out, "b-001"), strings.Index(out, "b-002"))
}

func TestAdd_Rejects(t *testing.T) {
	st := newTestStore()
	open, _ := testOpener(st)

	_, err := run(t, open, "add", "b-999")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown product "b-999"`)

	_, err = run(t, open, "add", "b-001", "-q", "0")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "at least 1")

	_, err = run(t, open, "add")
	require.Error(t, err)

	assert.True(t, st.Read(context.Background()).IsEmpty())
}

func TestSet(t *testing.T) {
	st := newTestStore()
	open, _ := testOpener(st)
	ctx := context.Background()

	_, err := st.MergeAdd(ctx, "b-001", testCatalog().All()[0].Snapshot(), 1)
	require.NoError(t, err)

	out, err := run(t, open, "set", "b-001", "4")
	require.NoError(t, err)
	assert.Regexp(t, `Subtotal\s+\$40\.00`, out)

	line, ok := st.Read(ctx).Find("b-001")
	require.True(t, ok)
	assert.Equal(t, 4, line.Quantity)

	out, err = run(t, open, "set", "b-001", "0")
	require.NoError(t, err)
	assert.Equal(t, "cart is empty\n", out)
}

func TestSet_Rejects(t *testing.T) {
	st := newTestStore()
	open, _ := testOpener(st)

	_, err := run(t, open, "set", "b-001", "2")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not in the cart")

	for _, bad := range []string{"-1", "two", "1.5"} {
		_, err := run(t, open, "set", "b-001", bad)
		require.Error(t, err, bad)
		assert.Contains(t, err.Error(), "non-negative integer")
	}
}

func TestRemove(t *testing.T) {
	st := newTestStore()
	open, _ := testOpener(st)
	ctx := context.Background()

	products := testCatalog().All()
	_, err := st.MergeAdd(ctx, "b-001", products[0].Snapshot(), 1)
	require.NoError(t, err)
	_, err = st.MergeAdd(ctx, "b-002", products[1].Snapshot(), 1)
	require.NoError(t, err)

	out, err := run(t, open, "rm", "b-001")
	require.NoError(t, err)
	assert.NotContains(t, out, "b-001")
	assert.Contains(t, out, "b-002")

	// Removing an absent line leaves the cart as it is.
	_, err = run(t, open, "remove", "b-001")
	require.NoError(t, err)
	assert.Equal(t, 1, st.Read(ctx).DistinctCount())
}

func TestWatch_PrintsCountOnChange(t *testing.T) {
	st := newTestStore()
	open, _ := testOpener(st)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var out syncBuffer
	done := make(chan error, 1)
	go func() { done <- execute(ctx, open, &out, "watch") }()

	require.Eventually(t, func() bool {
		return strings.Contains(out.String(), "lines: 0\n")
	}, 2*time.Second, 10*time.Millisecond)

	_, err := st.MergeAdd(context.Background(), "b-001", testCatalog().All()[0].Snapshot(), 1)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return strings.Contains(out.String(), "lines: 1\n")
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("watch did not stop after cancel")
	}
}
