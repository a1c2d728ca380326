// Пакет repository — слой доступа к данным PostgreSQL.
// Все запросы — чистый SQL через pgx, без ORM. Это основная
// стратегия multiDB; ORM и REST реализуют те же интерфейсы.
package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Ошибки слоя репозиториев.
var (
	// ErrNotFound — запись не найдена.
	ErrNotFound = errors.New("запись не найдена")
	// ErrConflict — конфликт уникальности или состояние записи изменилось.
	ErrConflict = errors.New("конфликт — запись уже существует или изменена")
)

// DBTX — интерфейс для выполнения SQL-запросов.
// Реализуется как *pgxpool.Pool, так и pgx.Tx, что позволяет
// использовать репозитории как внутри, так и вне транзакций.
type DBTX interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// TxRunner позволяет выполнять операции в транзакции.
type TxRunner struct {
	pool *pgxpool.Pool
}

// NewTxRunner создаёт TxRunner для управления транзакциями.
func NewTxRunner(pool *pgxpool.Pool) *TxRunner {
	return &TxRunner{pool: pool}
}

// RunInTx выполняет fn внутри транзакции.
// При ошибке fn — транзакция откатывается.
// При успехе — коммитится.
func (r *TxRunner) RunInTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("ошибка начала транзакции: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // откат после коммита — no-op

	if err := fn(tx); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

// RunSubmissionTx выполняет fn с репозиториями релизов и треков,
// привязанными к одной транзакции (релиз вместе с треками).
func (r *TxRunner) RunSubmissionTx(ctx context.Context, fn func(subs SubmissionRepository, tracks TrackRepository) error) error {
	return r.RunInTx(ctx, func(tx pgx.Tx) error {
		return fn(NewSubmissionRepository(tx), NewTrackRepository(tx))
	})
}

// isUniqueViolation проверяет, является ли ошибка нарушением уникальности PostgreSQL.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505" // unique_violation
	}
	return false
}

// isForeignKeyViolation — ссылка на несуществующую запись.
func isForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23503"
	}
	return false
}

// rowScanner — общий интерфейс pgx.Row и pgx.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// whereBuilder собирает WHERE-условие с позиционными аргументами.
type whereBuilder struct {
	conds []string
	args  []any
}

// add добавляет условие; expr содержит один %d (или %[1]d) для номера аргумента.
func (w *whereBuilder) add(expr string, arg any) {
	w.args = append(w.args, arg)
	w.conds = append(w.conds, fmt.Sprintf(expr, len(w.args)))
}

// raw добавляет условие без аргументов.
func (w *whereBuilder) raw(cond string) {
	w.conds = append(w.conds, cond)
}

// next — номер следующего позиционного аргумента.
func (w *whereBuilder) next() int {
	return len(w.args) + 1
}

func (w *whereBuilder) sql() string {
	if len(w.conds) == 0 {
		return ""
	}
	return "WHERE " + strings.Join(w.conds, " AND ")
}

// LikePattern экранирует спецсимволы LIKE и оборачивает строку в %...%.
// Используется также ORM-стратегией.
func LikePattern(q string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(q) + "%"
}
