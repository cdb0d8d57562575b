package repository

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/ticket-dashboard/internal/domain"
	apperrors "github.com/spec-kit/ticket-dashboard/pkg/util/errorutil"
)

// Querier is the read surface of a pgx pool.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// TicketRepository reads the upstream support ticket table.
type TicketRepository interface {
	Stream(ctx context.Context, filter domain.FilterState, fn func(domain.Ticket) error) error
	List(ctx context.Context, filter domain.FilterState, limit int) ([]domain.Ticket, error)
	GetByID(ctx context.Context, id string) (*domain.Ticket, error)
	Options(ctx context.Context) (*domain.FilterOptions, error)
	KeywordSearch(ctx context.Context, term string, filter domain.FilterState, limit int) ([]domain.Ticket, error)
}

// QueryOptions extends a filter with paging and keyword matching.
type QueryOptions struct {
	Limit int
	Term  string
}

// TicketQuery is a built statement and its bound arguments.
type TicketQuery struct {
	SQL  string
	Args []any
}

const ticketColumns = `ticket_id, COALESCE(customer_id, ''), COALESCE(account_id, ''),
                COALESCE(category, ''), COALESCE(subcategory, ''), COALESCE(priority, ''),
                COALESCE(status, ''), COALESCE(description, ''), COALESCE(geo_id, ''), created_at`

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// BuildTicketQuery turns a filter into a parameterized SELECT. Every user supplied value is
// bound; only the configured table name is spliced in, quoted as an identifier.
func BuildTicketQuery(table string, filter domain.FilterState, opts QueryOptions) TicketQuery {
	clauses := []string{"1=1"}
	args := []any{}

	if filter.HasCategory() {
		args = append(args, filter.Category)
		clauses = append(clauses, fmt.Sprintf("category = $%d", len(args)))
	}
	if filter.HasPriority() {
		args = append(args, domain.PriorityAliases(filter.Priority))
		clauses = append(clauses, fmt.Sprintf("UPPER(priority) = ANY($%d)", len(args)))
	}
	if !filter.Range.Start.IsZero() {
		args = append(args, filter.Range.Start)
		clauses = append(clauses, fmt.Sprintf("created_at >= $%d", len(args)))
	}
	if !filter.Range.End.IsZero() {
		args = append(args, filter.Range.Until())
		clauses = append(clauses, fmt.Sprintf("created_at < $%d", len(args)))
	}
	if term := strings.TrimSpace(opts.Term); term != "" {
		args = append(args, "%"+likeEscaper.Replace(term)+"%")
		p := fmt.Sprintf("$%d", len(args))
		clauses = append(clauses, fmt.Sprintf("(category ILIKE %s OR subcategory ILIKE %s OR description ILIKE %s)", p, p, p))
	}

	query := fmt.Sprintf("SELECT %s FROM %s WHERE %s ORDER BY created_at DESC",
		ticketColumns, quoteTable(table), strings.Join(clauses, " AND "))
	if opts.Limit > 0 {
		args = append(args, opts.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	return TicketQuery{SQL: query, Args: args}
}

func quoteTable(table string) string {
	return pgx.Identifier(strings.Split(table, ".")).Sanitize()
}

type ticketRepository struct {
	db    Querier
	table string
}

// NewTicketRepository instantiates repository.
func NewTicketRepository(db Querier, table string) TicketRepository {
	return &ticketRepository{db: db, table: table}
}

// Stream runs the filtered query and hands each row to fn in created_at DESC order.
// An error from fn stops the scan and is returned as is.
func (r *ticketRepository) Stream(ctx context.Context, filter domain.FilterState, fn func(domain.Ticket) error) error {
	if filter.MatchesNothing() {
		return nil
	}
	q := BuildTicketQuery(r.table, filter, QueryOptions{})
	return r.scan(ctx, q, fn)
}

func (r *ticketRepository) List(ctx context.Context, filter domain.FilterState, limit int) ([]domain.Ticket, error) {
	if filter.MatchesNothing() {
		return []domain.Ticket{}, nil
	}
	q := BuildTicketQuery(r.table, filter, QueryOptions{Limit: limit})
	return r.collect(ctx, q)
}

func (r *ticketRepository) KeywordSearch(ctx context.Context, term string, filter domain.FilterState, limit int) ([]domain.Ticket, error) {
	if filter.MatchesNothing() || strings.TrimSpace(term) == "" {
		return []domain.Ticket{}, nil
	}
	q := BuildTicketQuery(r.table, filter, QueryOptions{Limit: limit, Term: term})
	return r.collect(ctx, q)
}

func (r *ticketRepository) GetByID(ctx context.Context, id string) (*domain.Ticket, error) {
	query := fmt.Sprintf("SELECT %s FROM %s WHERE ticket_id = $1", ticketColumns, quoteTable(r.table))
	ticket, err := scanTicket(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("ticket", map[string]any{"id": id})
		}
		return nil, apperrors.NewDataAccessError(fmt.Errorf("get ticket: %w", err))
	}
	return &ticket, nil
}

func (r *ticketRepository) Options(ctx context.Context) (*domain.FilterOptions, error) {
	table := quoteTable(r.table)
	opts := &domain.FilterOptions{Categories: []string{}, Priorities: []domain.TicketPriority{}}

	rows, err := r.db.Query(ctx, fmt.Sprintf(
		"SELECT DISTINCT category FROM %s WHERE category IS NOT NULL AND category <> '' ORDER BY category", table))
	if err != nil {
		return nil, apperrors.NewDataAccessError(fmt.Errorf("list categories: %w", err))
	}
	categories, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, apperrors.NewDataAccessError(fmt.Errorf("scan categories: %w", err))
	}
	opts.Categories = append(opts.Categories, categories...)

	rows, err = r.db.Query(ctx, fmt.Sprintf(
		"SELECT DISTINCT priority FROM %s WHERE priority IS NOT NULL AND priority <> ''", table))
	if err != nil {
		return nil, apperrors.NewDataAccessError(fmt.Errorf("list priorities: %w", err))
	}
	rawPriorities, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, apperrors.NewDataAccessError(fmt.Errorf("scan priorities: %w", err))
	}
	seen := make(map[domain.TicketPriority]struct{}, len(rawPriorities))
	for _, raw := range rawPriorities {
		p := domain.ParsePriority(raw)
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		opts.Priorities = append(opts.Priorities, p)
	}
	sort.Slice(opts.Priorities, func(i, j int) bool {
		return opts.Priorities[i].Severity() < opts.Priorities[j].Severity()
	})

	var (
		count      int64
		minCreated time.Time
		maxCreated time.Time
	)
	err = r.db.QueryRow(ctx, fmt.Sprintf(
		"SELECT COUNT(*), COALESCE(MIN(created_at), 'epoch'::timestamptz), COALESCE(MAX(created_at), 'epoch'::timestamptz) FROM %s", table),
	).Scan(&count, &minCreated, &maxCreated)
	if err != nil {
		return nil, apperrors.NewDataAccessError(fmt.Errorf("date bounds: %w", err))
	}
	if count > 0 {
		opts.MinDate = &minCreated
		opts.MaxDate = &maxCreated
	}
	return opts, nil
}

func (r *ticketRepository) collect(ctx context.Context, q TicketQuery) ([]domain.Ticket, error) {
	result := []domain.Ticket{}
	err := r.scan(ctx, q, func(t domain.Ticket) error {
		result = append(result, t)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (r *ticketRepository) scan(ctx context.Context, q TicketQuery, fn func(domain.Ticket) error) error {
	rows, err := r.db.Query(ctx, q.SQL, q.Args...)
	if err != nil {
		return apperrors.NewDataAccessError(fmt.Errorf("query tickets: %w", err))
	}
	defer rows.Close()

	for rows.Next() {
		ticket, err := scanTicket(rows)
		if err != nil {
			return apperrors.NewDataAccessError(fmt.Errorf("scan ticket: %w", err))
		}
		if err := fn(ticket); err != nil {
			return err
		}
	}
	if err := rows.Err(); err != nil {
		return apperrors.NewDataAccessError(fmt.Errorf("iterate tickets: %w", err))
	}
	return nil
}

func scanTicket(row pgx.Row) (domain.Ticket, error) {
	var (
		ticket   domain.Ticket
		priority string
	)
	if err := row.Scan(
		&ticket.ID,
		&ticket.CustomerID,
		&ticket.AccountID,
		&ticket.Category,
		&ticket.Subcategory,
		&priority,
		&ticket.Status,
		&ticket.Description,
		&ticket.GeoID,
		&ticket.CreatedAt,
	); err != nil {
		return domain.Ticket{}, err
	}
	ticket.Priority = domain.ParsePriority(priority)
	return ticket, nil
}
