package ledger

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"stargen/internal/domain"
	"stargen/internal/infra"
)

// fakeRow scans canned values or returns a canned error.
type fakeRow struct {
	value int
	err   error
}

func (r fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	if len(dest) == 1 {
		if p, ok := dest[0].(*int); ok {
			*p = r.value
		}
	}
	return nil
}

// fakeDB routes QueryRow by SQL verb: selects, updates and inserts each
// get their own canned response so a single call chain can be scripted.
type fakeDB struct {
	selectRow fakeRow
	updateRow fakeRow
	insertRow fakeRow

	queries []string
	args    [][]any
}

func (db *fakeDB) QueryRow(ctx context.Context, query string, args ...any) pgx.Row {
	db.queries = append(db.queries, query)
	db.args = append(db.args, args)
	q := strings.ToUpper(strings.TrimSpace(query))
	switch {
	case strings.HasPrefix(q, "SELECT"):
		return db.selectRow
	case strings.HasPrefix(q, "UPDATE"):
		return db.updateRow
	default:
		return db.insertRow
	}
}

func (db *fakeDB) Exec(ctx context.Context, query string, args ...any) (pgconn.CommandTag, error) {
	return pgconn.CommandTag{}, nil
}

func (db *fakeDB) Query(ctx context.Context, query string, args ...any) (pgx.Rows, error) {
	return nil, errors.New("not implemented")
}

var _ infra.SQLExecutor = (*fakeDB)(nil)

func newLedger(db *fakeDB) *TokenLedger {
	return New(db, infra.NewLogger("test"), 100)
}

func TestBalanceReadsExistingRow(t *testing.T) {
	db := &fakeDB{selectRow: fakeRow{value: 75}}
	l := newLedger(db)

	got, err := l.Balance(context.Background(), 42)
	if err != nil {
		t.Fatalf("Balance: %v", err)
	}
	if got != 75 {
		t.Errorf("balance = %d, want 75", got)
	}
}

func TestBalanceGrantsOnFirstUse(t *testing.T) {
	db := &fakeDB{
		selectRow: fakeRow{err: pgx.ErrNoRows},
		insertRow: fakeRow{value: 100},
	}
	l := newLedger(db)

	got, err := l.Balance(context.Background(), 42)
	if err != nil {
		t.Fatalf("Balance: %v", err)
	}
	if got != 100 {
		t.Errorf("balance = %d, want the starting grant", got)
	}
	if len(db.queries) != 2 || !strings.Contains(db.queries[1], "INSERT INTO users") {
		t.Errorf("queries = %v, want select then insert", db.queries)
	}
}

func TestBalanceFailsSoftOnOutage(t *testing.T) {
	db := &fakeDB{selectRow: fakeRow{err: errors.New("connection refused")}}
	l := newLedger(db)

	got, err := l.Balance(context.Background(), 42)
	if !errors.Is(err, domain.ErrLedgerUnavailable) {
		t.Fatalf("expected ErrLedgerUnavailable, got %v", err)
	}
	if got != 100 {
		t.Errorf("balance = %d, outage must fall back to the starting grant", got)
	}
}

func TestDeductUpdatesBalance(t *testing.T) {
	db := &fakeDB{updateRow: fakeRow{value: 80}}
	l := newLedger(db)

	got, err := l.Deduct(context.Background(), 42, 20)
	if err != nil {
		t.Fatalf("Deduct: %v", err)
	}
	if got != 80 {
		t.Errorf("balance = %d, want 80", got)
	}
	if !strings.Contains(db.queries[0], "GREATEST(0, balance + $2)") {
		t.Errorf("query = %q, want zero floor in SQL", db.queries[0])
	}
	if db.args[0][1] != -20 {
		t.Errorf("delta = %v, want -20", db.args[0][1])
	}
}

func TestDeductInsertsOnFirstTouch(t *testing.T) {
	db := &fakeDB{
		updateRow: fakeRow{err: pgx.ErrNoRows},
		insertRow: fakeRow{value: 80},
	}
	l := newLedger(db)

	got, err := l.Deduct(context.Background(), 42, 20)
	if err != nil {
		t.Fatalf("Deduct: %v", err)
	}
	if got != 80 {
		t.Errorf("balance = %d, want grant minus cost", got)
	}
	// The insert carries the starting grant with the delta applied.
	if db.args[1][1] != 80 {
		t.Errorf("insert balance = %v, want 80", db.args[1][1])
	}
}

func TestDeductFirstTouchFloorsAtZero(t *testing.T) {
	db := &fakeDB{
		updateRow: fakeRow{err: pgx.ErrNoRows},
		insertRow: fakeRow{value: 0},
	}
	l := newLedger(db)

	if _, err := l.Deduct(context.Background(), 42, 150); err != nil {
		t.Fatalf("Deduct: %v", err)
	}
	if db.args[1][1] != 0 {
		t.Errorf("insert balance = %v, want floor at zero", db.args[1][1])
	}
}

func TestCreditUpdatesBalance(t *testing.T) {
	db := &fakeDB{updateRow: fakeRow{value: 120}}
	l := newLedger(db)

	got, err := l.Credit(context.Background(), 42, 20)
	if err != nil {
		t.Fatalf("Credit: %v", err)
	}
	if got != 120 {
		t.Errorf("balance = %d, want 120", got)
	}
	if db.args[0][1] != 20 {
		t.Errorf("delta = %v, want 20", db.args[0][1])
	}
}

func TestAdjustFailsSoftOnOutage(t *testing.T) {
	db := &fakeDB{updateRow: fakeRow{err: errors.New("connection refused")}}
	l := newLedger(db)

	got, err := l.Deduct(context.Background(), 42, 20)
	if !errors.Is(err, domain.ErrLedgerUnavailable) {
		t.Fatalf("expected ErrLedgerUnavailable, got %v", err)
	}
	if got != 100 {
		t.Errorf("balance = %d, want fallback to starting grant", got)
	}
}
