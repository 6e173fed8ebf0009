package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"

	"fintrack/internal/core"
)

type Dialect string

const (
	DialectSQLite   Dialect = "sqlite"
	DialectPostgres Dialect = "postgres"
)

// SQLRepository implements Store on SQLite or PostgreSQL. Amounts are
// stored as integer cents and instants as unix milliseconds so both
// dialects share one set of queries.
type SQLRepository struct {
	db      *sql.DB
	dialect Dialect
}

var _ Store = (*SQLRepository)(nil)

func NewSQLiteRepository(dbPath string) (*SQLRepository, error) {
	if dir := filepath.Dir(dbPath); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create db directory: %w", err)
		}
	}

	dsn := sqliteDSN(dbPath)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(DialectSQLite, dsn); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLRepository{db: db, dialect: DialectSQLite}, nil
}

func NewPostgresRepository(ctx context.Context, databaseURL string) (*SQLRepository, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open postgres database: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(DialectPostgres, databaseURL); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLRepository{db: db, dialect: DialectPostgres}, nil
}

func sqliteDSN(path string) string {
	if strings.Contains(path, "?") {
		return path
	}
	return path + "?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"
}

func (r *SQLRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping checks the database connection.
func (r *SQLRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// rebind rewrites ? placeholders to $n for PostgreSQL.
func (r *SQLRepository) rebind(q string) string {
	if r.dialect != DialectPostgres {
		return q
	}
	var b strings.Builder
	n := 0
	for _, c := range q {
		if c == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(c)
	}
	return b.String()
}

func (r *SQLRepository) exec(ctx context.Context, q string, args ...any) (sql.Result, error) {
	return r.db.ExecContext(ctx, r.rebind(q), args...)
}

func (r *SQLRepository) query(ctx context.Context, q string, args ...any) (*sql.Rows, error) {
	return r.db.QueryContext(ctx, r.rebind(q), args...)
}

func (r *SQLRepository) queryRow(ctx context.Context, q string, args ...any) *sql.Row {
	return r.db.QueryRowContext(ctx, r.rebind(q), args...)
}

// mustAffect turns a zero-row update or delete into ErrNotFound.
func mustAffect(res sql.Result, what, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s rows affected: %w", what, err)
	}
	if n == 0 {
		return fmt.Errorf("%s %s: %w", what, id, core.ErrNotFound)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

// where accumulates AND-ed conditions with their arguments.
type where struct {
	conds []string
	args  []any
}

func (w *where) add(cond string, args ...any) {
	w.conds = append(w.conds, cond)
	w.args = append(w.args, args...)
}

func (w *where) String() string {
	if len(w.conds) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(w.conds, " AND ")
}

// ---- expenses

const expenseColumns = `id, owner_id, amount_cents, payee, category, frequency, description, date_ms, due_date_ms, active, goal_id`

func scanExpense(s rowScanner) (core.Expense, error) {
	var (
		e      core.Expense
		dateMs int64
		due    sql.NullInt64
		goal   sql.NullString
	)
	if err := s.Scan(&e.ID, &e.OwnerID, &e.Amount.Cents, &e.Payee, &e.Category, &e.Frequency,
		&e.Description, &dateMs, &due, &e.Active, &goal); err != nil {
		return core.Expense{}, err
	}
	e.Date = fromMillis(dateMs)
	if due.Valid {
		d := fromMillis(due.Int64)
		e.DueDate = &d
	}
	e.GoalID = goal.String
	return e, nil
}

func expenseArgs(e core.Expense) (due sql.NullInt64, goal sql.NullString) {
	if e.DueDate != nil {
		due = sql.NullInt64{Int64: toMillis(*e.DueDate), Valid: true}
	}
	if e.GoalID != "" {
		goal = sql.NullString{String: e.GoalID, Valid: true}
	}
	return due, goal
}

func expenseWhere(f ExpenseFilter) *where {
	w := &where{}
	if f.OwnerID != "" {
		w.add("owner_id = ?", f.OwnerID)
	}
	if f.Category != "" {
		w.add("category = ?", f.Category)
	}
	if f.GoalID != "" {
		w.add("goal_id = ?", f.GoalID)
	}
	if f.ActiveOnly {
		w.add("active = ?", true)
	}
	if f.Range != nil {
		w.add("date_ms >= ? AND date_ms <= ?", toMillis(f.Range.Start), toMillis(f.Range.End))
	}
	if f.DueRange != nil {
		w.add("due_date_ms IS NOT NULL AND due_date_ms >= ? AND due_date_ms <= ?", toMillis(f.DueRange.Start), toMillis(f.DueRange.End))
	}
	return w
}

func (r *SQLRepository) CreateExpense(ctx context.Context, e core.Expense) (core.Expense, error) {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	due, goal := expenseArgs(e)
	_, err := r.exec(ctx, `INSERT INTO expenses (`+expenseColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.OwnerID, e.Amount.Cents, e.Payee, e.Category, e.Frequency, e.Description,
		toMillis(e.Date), due, e.Active, goal)
	if err != nil {
		return core.Expense{}, fmt.Errorf("create expense: %w", err)
	}

	slog.InfoContext(ctx, "Expense saved",
		"id", e.ID,
		"owner_id", e.OwnerID,
		"category", e.Category,
		"amount_cents", e.Amount.Cents)

	return e, nil
}

func (r *SQLRepository) GetExpense(ctx context.Context, id string) (core.Expense, error) {
	e, err := scanExpense(r.queryRow(ctx, `SELECT `+expenseColumns+` FROM expenses WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return core.Expense{}, fmt.Errorf("get expense %s: %w", id, core.ErrNotFound)
	}
	if err != nil {
		return core.Expense{}, fmt.Errorf("get expense: %w", err)
	}
	return e, nil
}

func (r *SQLRepository) UpdateExpense(ctx context.Context, e core.Expense) error {
	due, goal := expenseArgs(e)
	res, err := r.exec(ctx, `UPDATE expenses SET amount_cents = ?, payee = ?, category = ?, frequency = ?,
		description = ?, date_ms = ?, due_date_ms = ?, active = ?, goal_id = ? WHERE id = ? AND owner_id = ?`,
		e.Amount.Cents, e.Payee, e.Category, e.Frequency, e.Description, toMillis(e.Date), due, e.Active, goal,
		e.ID, e.OwnerID)
	if err != nil {
		return fmt.Errorf("update expense: %w", err)
	}
	return mustAffect(res, "update expense", e.ID)
}

func (r *SQLRepository) DeleteExpense(ctx context.Context, id string) error {
	res, err := r.exec(ctx, `DELETE FROM expenses WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete expense: %w", err)
	}
	return mustAffect(res, "delete expense", id)
}

func (r *SQLRepository) ListExpenses(ctx context.Context, f ExpenseFilter) ([]core.Expense, error) {
	w := expenseWhere(f)
	rows, err := r.query(ctx, `SELECT `+expenseColumns+` FROM expenses`+w.String()+` ORDER BY date_ms ASC, id ASC`, w.args...)
	if err != nil {
		return nil, fmt.Errorf("list expenses: %w", err)
	}
	defer rows.Close()

	var out []core.Expense
	for rows.Next() {
		e, err := scanExpense(rows)
		if err != nil {
			return nil, fmt.Errorf("scan expense: %w", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate expenses: %w", err)
	}
	return out, nil
}

func (r *SQLRepository) SumExpenses(ctx context.Context, f ExpenseFilter) (core.Money, error) {
	w := expenseWhere(f)
	var total int64
	err := r.queryRow(ctx, `SELECT CAST(COALESCE(SUM(amount_cents), 0) AS BIGINT) FROM expenses`+w.String(), w.args...).Scan(&total)
	if err != nil {
		return core.Money{}, fmt.Errorf("sum expenses: %w", err)
	}
	return core.Money{Cents: total}, nil
}

func (r *SQLRepository) UnlinkGoal(ctx context.Context, ownerID, goalID string) (int, error) {
	res, err := r.exec(ctx, `UPDATE expenses SET goal_id = NULL WHERE owner_id = ? AND goal_id = ?`, ownerID, goalID)
	if err != nil {
		return 0, fmt.Errorf("unlink goal: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("unlink goal rows affected: %w", err)
	}
	return int(n), nil
}

// ---- budgets

const budgetColumns = `id, owner_id, category, amount_cents, spent_cents, rollover, rollover_amount_cents, date_ms`

func scanBudget(s rowScanner) (core.Budget, error) {
	var (
		b      core.Budget
		dateMs int64
	)
	if err := s.Scan(&b.ID, &b.OwnerID, &b.Category, &b.Amount.Cents, &b.Spent.Cents, &b.Rollover,
		&b.RolloverAmount.Cents, &dateMs); err != nil {
		return core.Budget{}, err
	}
	b.Date = fromMillis(dateMs)
	return b, nil
}

func (r *SQLRepository) CreateBudget(ctx context.Context, b core.Budget) (core.Budget, error) {
	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	_, err := r.exec(ctx, `INSERT INTO budgets (`+budgetColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		b.ID, b.OwnerID, b.Category, b.Amount.Cents, b.Spent.Cents, b.Rollover, b.RolloverAmount.Cents, toMillis(b.Date))
	if err != nil {
		return core.Budget{}, fmt.Errorf("create budget: %w", err)
	}
	return b, nil
}

func (r *SQLRepository) GetBudget(ctx context.Context, id string) (core.Budget, error) {
	b, err := scanBudget(r.queryRow(ctx, `SELECT `+budgetColumns+` FROM budgets WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return core.Budget{}, fmt.Errorf("get budget %s: %w", id, core.ErrNotFound)
	}
	if err != nil {
		return core.Budget{}, fmt.Errorf("get budget: %w", err)
	}
	return b, nil
}

func (r *SQLRepository) UpdateBudget(ctx context.Context, b core.Budget) error {
	res, err := r.exec(ctx, `UPDATE budgets SET category = ?, amount_cents = ?, spent_cents = ?, rollover = ?,
		rollover_amount_cents = ?, date_ms = ? WHERE id = ? AND owner_id = ?`,
		b.Category, b.Amount.Cents, b.Spent.Cents, b.Rollover, b.RolloverAmount.Cents, toMillis(b.Date), b.ID, b.OwnerID)
	if err != nil {
		return fmt.Errorf("update budget: %w", err)
	}
	return mustAffect(res, "update budget", b.ID)
}

func (r *SQLRepository) DeleteBudget(ctx context.Context, id string) error {
	res, err := r.exec(ctx, `DELETE FROM budgets WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete budget: %w", err)
	}
	return mustAffect(res, "delete budget", id)
}

func (r *SQLRepository) ListBudgets(ctx context.Context, f BudgetFilter) ([]core.Budget, error) {
	w := &where{}
	if f.OwnerID != "" {
		w.add("owner_id = ?", f.OwnerID)
	}
	if f.Category != "" {
		w.add("category = ?", f.Category)
	}
	if f.RolloverOnly {
		w.add("rollover = ?", true)
	}
	if f.Range != nil {
		w.add("date_ms >= ? AND date_ms <= ?", toMillis(f.Range.Start), toMillis(f.Range.End))
	}

	rows, err := r.query(ctx, `SELECT `+budgetColumns+` FROM budgets`+w.String()+` ORDER BY date_ms ASC, id ASC`, w.args...)
	if err != nil {
		return nil, fmt.Errorf("list budgets: %w", err)
	}
	defer rows.Close()

	var out []core.Budget
	for rows.Next() {
		b, err := scanBudget(rows)
		if err != nil {
			return nil, fmt.Errorf("scan budget: %w", err)
		}
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate budgets: %w", err)
	}
	return out, nil
}

// ---- goals

const goalColumns = `id, owner_id, name, amount_cents, goal_type, progress_cents, initial_progress_cents, duration_months, date_ms`

func scanGoal(s rowScanner) (core.Goal, error) {
	var (
		g      core.Goal
		typ    string
		dateMs int64
	)
	if err := s.Scan(&g.ID, &g.OwnerID, &g.Name, &g.Amount.Cents, &typ, &g.Progress.Cents,
		&g.InitialProgress.Cents, &g.Duration, &dateMs); err != nil {
		return core.Goal{}, err
	}
	g.Type = core.GoalType(typ)
	g.Date = fromMillis(dateMs)
	return g, nil
}

func (r *SQLRepository) CreateGoal(ctx context.Context, g core.Goal) (core.Goal, error) {
	if g.ID == "" {
		g.ID = uuid.NewString()
	}
	_, err := r.exec(ctx, `INSERT INTO goals (`+goalColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		g.ID, g.OwnerID, g.Name, g.Amount.Cents, string(g.Type), g.Progress.Cents, g.InitialProgress.Cents,
		g.Duration, toMillis(g.Date))
	if err != nil {
		return core.Goal{}, fmt.Errorf("create goal: %w", err)
	}
	return g, nil
}

func (r *SQLRepository) GetGoal(ctx context.Context, id string) (core.Goal, error) {
	g, err := scanGoal(r.queryRow(ctx, `SELECT `+goalColumns+` FROM goals WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return core.Goal{}, fmt.Errorf("get goal %s: %w", id, core.ErrNotFound)
	}
	if err != nil {
		return core.Goal{}, fmt.Errorf("get goal: %w", err)
	}
	return g, nil
}

func (r *SQLRepository) UpdateGoal(ctx context.Context, g core.Goal) error {
	res, err := r.exec(ctx, `UPDATE goals SET name = ?, amount_cents = ?, goal_type = ?, progress_cents = ?,
		initial_progress_cents = ?, duration_months = ?, date_ms = ? WHERE id = ? AND owner_id = ?`,
		g.Name, g.Amount.Cents, string(g.Type), g.Progress.Cents, g.InitialProgress.Cents, g.Duration,
		toMillis(g.Date), g.ID, g.OwnerID)
	if err != nil {
		return fmt.Errorf("update goal: %w", err)
	}
	return mustAffect(res, "update goal", g.ID)
}

func (r *SQLRepository) DeleteGoal(ctx context.Context, id string) error {
	res, err := r.exec(ctx, `DELETE FROM goals WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete goal: %w", err)
	}
	return mustAffect(res, "delete goal", id)
}

func (r *SQLRepository) ListGoals(ctx context.Context, ownerID string, dr *core.DateRange) ([]core.Goal, error) {
	w := &where{}
	w.add("owner_id = ?", ownerID)
	if dr != nil {
		w.add("date_ms >= ? AND date_ms <= ?", toMillis(dr.Start), toMillis(dr.End))
	}

	rows, err := r.query(ctx, `SELECT `+goalColumns+` FROM goals`+w.String()+` ORDER BY date_ms ASC, id ASC`, w.args...)
	if err != nil {
		return nil, fmt.Errorf("list goals: %w", err)
	}
	defer rows.Close()

	var out []core.Goal
	for rows.Next() {
		g, err := scanGoal(rows)
		if err != nil {
			return nil, fmt.Errorf("scan goal: %w", err)
		}
		out = append(out, g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate goals: %w", err)
	}
	return out, nil
}

// ---- income

const incomeColumns = `id, owner_id, amount_cents, source, description, frequency, category, date_ms, active`

func scanIncome(s rowScanner) (core.Income, error) {
	var (
		i      core.Income
		dateMs int64
	)
	if err := s.Scan(&i.ID, &i.OwnerID, &i.Amount.Cents, &i.Source, &i.Description, &i.Frequency,
		&i.Category, &dateMs, &i.Active); err != nil {
		return core.Income{}, err
	}
	i.Date = fromMillis(dateMs)
	return i, nil
}

func (r *SQLRepository) CreateIncome(ctx context.Context, i core.Income) (core.Income, error) {
	if i.ID == "" {
		i.ID = uuid.NewString()
	}
	_, err := r.exec(ctx, `INSERT INTO income (`+incomeColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		i.ID, i.OwnerID, i.Amount.Cents, i.Source, i.Description, i.Frequency, i.Category, toMillis(i.Date), i.Active)
	if err != nil {
		return core.Income{}, fmt.Errorf("create income: %w", err)
	}
	return i, nil
}

func (r *SQLRepository) GetIncome(ctx context.Context, id string) (core.Income, error) {
	i, err := scanIncome(r.queryRow(ctx, `SELECT `+incomeColumns+` FROM income WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return core.Income{}, fmt.Errorf("get income %s: %w", id, core.ErrNotFound)
	}
	if err != nil {
		return core.Income{}, fmt.Errorf("get income: %w", err)
	}
	return i, nil
}

func (r *SQLRepository) UpdateIncome(ctx context.Context, i core.Income) error {
	res, err := r.exec(ctx, `UPDATE income SET amount_cents = ?, source = ?, description = ?, frequency = ?,
		category = ?, date_ms = ?, active = ? WHERE id = ? AND owner_id = ?`,
		i.Amount.Cents, i.Source, i.Description, i.Frequency, i.Category, toMillis(i.Date), i.Active, i.ID, i.OwnerID)
	if err != nil {
		return fmt.Errorf("update income: %w", err)
	}
	return mustAffect(res, "update income", i.ID)
}

func (r *SQLRepository) DeleteIncome(ctx context.Context, id string) error {
	res, err := r.exec(ctx, `DELETE FROM income WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete income: %w", err)
	}
	return mustAffect(res, "delete income", id)
}

func (r *SQLRepository) ListIncome(ctx context.Context, ownerID string, dr *core.DateRange) ([]core.Income, error) {
	w := &where{}
	w.add("owner_id = ?", ownerID)
	if dr != nil {
		w.add("date_ms >= ? AND date_ms <= ?", toMillis(dr.Start), toMillis(dr.End))
	}

	rows, err := r.query(ctx, `SELECT `+incomeColumns+` FROM income`+w.String()+` ORDER BY date_ms ASC, id ASC`, w.args...)
	if err != nil {
		return nil, fmt.Errorf("list income: %w", err)
	}
	defer rows.Close()

	var out []core.Income
	for rows.Next() {
		i, err := scanIncome(rows)
		if err != nil {
			return nil, fmt.Errorf("scan income: %w", err)
		}
		out = append(out, i)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate income: %w", err)
	}
	return out, nil
}
