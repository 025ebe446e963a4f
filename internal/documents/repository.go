package documents

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/renattofarid/fertiriego/internal/billing"
	"github.com/renattofarid/fertiriego/internal/money"
	"github.com/renattofarid/fertiriego/internal/platform/db"
)

// Repository defines document data access.
type Repository interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error

	Get(ctx context.Context, id int64) (*billing.Document, error)
	Version(ctx context.Context, id int64) (int64, error)
	List(ctx context.Context, filter ListFilter) ([]ListItem, int, error)
	ListOpenIDs(ctx context.Context, afterID int64, limit int) ([]int64, error)
}

// TxRepository defines operations within a transaction.
type TxRepository interface {
	Create(ctx context.Context, doc *billing.Document, overdue int) error
	Load(ctx context.Context, id int64) (*billing.Document, error)
	// Save writes the whole document subtree when the stored version still
	// equals expected, then bumps doc.Version.
	Save(ctx context.Context, doc *billing.Document, expected int64, overdue int) error
	UpdateDerived(ctx context.Context, doc *billing.Document, overdue int) error
}

// Ensure implementation
var (
	_ Repository   = (*pgRepository)(nil)
	_ TxRepository = (*pgTxRepository)(nil)
)

type pgRepository struct {
	pool *pgxpool.Pool
}

// NewRepository returns the PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &pgRepository{pool: pool}
}

func (r *pgRepository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &pgTxRepository{tx: tx})
	})
}

func (r *pgRepository) Get(ctx context.Context, id int64) (*billing.Document, error) {
	return loadDocument(ctx, r.pool, id, false)
}

func (r *pgRepository) Version(ctx context.Context, id int64) (int64, error) {
	var version int64
	err := r.pool.QueryRow(ctx, `SELECT version FROM documents WHERE id = $1`, id).Scan(&version)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, fmt.Errorf("%w: document %d", ErrDocumentNotFound, id)
	}
	return version, err
}

func (r *pgRepository) List(ctx context.Context, filter ListFilter) ([]ListItem, int, error) {
	var (
		where []string
		args  []any
	)
	add := func(cond string, v any) {
		args = append(args, v)
		where = append(where, fmt.Sprintf(cond, len(args)))
	}
	if filter.Kind != "" {
		add("kind = $%d", filter.Kind)
	}
	if filter.Status != "" {
		add("status = $%d", filter.Status)
	}
	if filter.PaymentType != "" {
		add("payment_type = $%d", filter.PaymentType)
	}
	if filter.OverdueOnly {
		where = append(where, "overdue_installments > 0")
	}
	query := `SELECT id, kind, number, payment_type, status, currency, issued_at, total_amount, pending_amount,
		overdue_installments, version, COUNT(*) OVER() FROM documents`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	args = append(args, filter.Limit, filter.Offset)
	query += fmt.Sprintf(" ORDER BY issued_at DESC, id DESC LIMIT $%d OFFSET $%d", len(args)-1, len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var (
		items []ListItem
		total int
	)
	for rows.Next() {
		var it ListItem
		if err := rows.Scan(&it.ID, &it.Kind, &it.Number, &it.PaymentType, &it.Status, &it.Currency, &it.IssuedAt,
			&it.Total, &it.Pending, &it.OverdueInstallments, &it.Version, &total); err != nil {
			return nil, 0, err
		}
		items = append(items, it)
	}
	return items, total, rows.Err()
}

func (r *pgRepository) ListOpenIDs(ctx context.Context, afterID int64, limit int) ([]int64, error) {
	rows, err := r.pool.Query(ctx, `SELECT id FROM documents WHERE status = 'REGISTERED' AND id > $1 ORDER BY id LIMIT $2`, afterID, limit)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[int64])
}

type pgTxRepository struct {
	tx pgx.Tx
}

func (r *pgTxRepository) Create(ctx context.Context, doc *billing.Document, overdue int) error {
	_, offset := doc.IssuedAt.Zone()
	err := r.tx.QueryRow(ctx, `INSERT INTO documents (kind, number, payment_type, pricing_mode, tax_rate, currency,
		issued_at, issued_utc_offset, subtotal, tax_amount, total_amount, pending_amount, overdue_installments,
		finalized, status, version, created_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, 1, $16, $17, $17)
		RETURNING id`,
		doc.Kind, doc.Number, doc.PaymentType, doc.PricingMode, doc.TaxRate, doc.Currency,
		doc.IssuedAt, offset, doc.Subtotal, doc.TaxAmount, doc.TotalAmount, doc.Pending(), overdue,
		doc.Finalized, doc.Status, doc.CreatedBy, doc.CreatedAt,
	).Scan(&doc.ID)
	if err != nil {
		return fmt.Errorf("documents: insert: %w", err)
	}
	doc.Version = 1
	doc.UpdatedAt = doc.CreatedAt
	return r.insertChildren(ctx, doc)
}

func (r *pgTxRepository) Load(ctx context.Context, id int64) (*billing.Document, error) {
	return loadDocument(ctx, r.tx, id, true)
}

func (r *pgTxRepository) Save(ctx context.Context, doc *billing.Document, expected int64, overdue int) error {
	tag, err := r.tx.Exec(ctx, `UPDATE documents SET number = $3, pricing_mode = $4, subtotal = $5, tax_amount = $6,
		total_amount = $7, pending_amount = $8, overdue_installments = $9, finalized = $10, status = $11,
		cancelled_at = $12, updated_at = $13, version = version + 1
		WHERE id = $1 AND version = $2`,
		doc.ID, expected, doc.Number, doc.PricingMode, doc.Subtotal, doc.TaxAmount,
		doc.TotalAmount, doc.Pending(), overdue, doc.Finalized, doc.Status,
		doc.CancelledAt, doc.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("documents: update: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: document %d is no longer at version %d", billing.ErrStaleVersion, doc.ID, expected)
	}
	doc.Version = expected + 1

	batch := &pgx.Batch{}
	batch.Queue(`DELETE FROM document_lines WHERE document_id = $1`, doc.ID)
	batch.Queue(`DELETE FROM installments WHERE document_id = $1`, doc.ID)
	if err := r.tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("documents: clear children: %w", err)
	}
	return r.insertChildren(ctx, doc)
}

func (r *pgTxRepository) UpdateDerived(ctx context.Context, doc *billing.Document, overdue int) error {
	_, err := r.tx.Exec(ctx, `UPDATE documents SET pending_amount = $2, overdue_installments = $3, status = $4
		WHERE id = $1 AND version = $5`,
		doc.ID, doc.Pending(), overdue, doc.Status, doc.Version)
	return err
}

func (r *pgTxRepository) insertChildren(ctx context.Context, doc *billing.Document) error {
	batch := &pgx.Batch{}
	for i, l := range doc.Lines {
		batch.Queue(`INSERT INTO document_lines (document_id, line_no, product_id, description, quantity, unit_price,
			subtotal, tax, total) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
			doc.ID, i+1, l.ProductID, l.Description, l.Quantity, l.UnitPrice, l.Subtotal, l.Tax, l.Total)
	}
	for _, inst := range doc.Installments {
		batch.Queue(`INSERT INTO installments (document_id, sequence, due_offset_days, amount, status)
			VALUES ($1, $2, $3, $4, $5)`,
			doc.ID, inst.Sequence, inst.DueOffsetDays, inst.Amount, inst.Status)
		for pos, p := range inst.Payments {
			batch.Queue(`INSERT INTO payments (id, document_id, installment_seq, position, paid_at, reference, user_id,
				supersedes, superseded_at, recorded_at) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
				p.ID, doc.ID, inst.Sequence, pos, p.PaidAt, p.Reference, p.UserID, p.Supersedes, p.SupersededAt, p.RecordedAt)
			for _, instrument := range billing.Instruments {
				amount, ok := p.Amounts[instrument]
				if !ok {
					continue
				}
				batch.Queue(`INSERT INTO payment_amounts (payment_id, instrument, amount) VALUES ($1, $2, $3)`,
					p.ID, instrument, amount)
			}
		}
	}
	if batch.Len() == 0 {
		return nil
	}
	if err := r.tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("documents: insert children: %w", err)
	}
	return nil
}

func loadDocument(ctx context.Context, q db.Querier, id int64, forUpdate bool) (*billing.Document, error) {
	query := `SELECT id, kind, number, payment_type, pricing_mode, tax_rate, currency, issued_at, issued_utc_offset,
		subtotal, tax_amount, total_amount, finalized, status, cancelled_at, version, created_by, created_at, updated_at
		FROM documents WHERE id = $1`
	if forUpdate {
		query += " FOR UPDATE"
	}
	var (
		doc    billing.Document
		offset int
	)
	err := q.QueryRow(ctx, query, id).Scan(&doc.ID, &doc.Kind, &doc.Number, &doc.PaymentType, &doc.PricingMode,
		&doc.TaxRate, &doc.Currency, &doc.IssuedAt, &offset, &doc.Subtotal, &doc.TaxAmount, &doc.TotalAmount,
		&doc.Finalized, &doc.Status, &doc.CancelledAt, &doc.Version, &doc.CreatedBy, &doc.CreatedAt, &doc.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: document %d", ErrDocumentNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("documents: load %d: %w", id, err)
	}
	doc.IssuedAt = doc.IssuedAt.In(time.FixedZone("", offset))

	if err := loadLines(ctx, q, &doc); err != nil {
		return nil, err
	}
	if err := loadInstallments(ctx, q, &doc); err != nil {
		return nil, err
	}
	if err := doc.Validate(); err != nil {
		return nil, fmt.Errorf("documents: load %d: %w", id, err)
	}
	return &doc, nil
}

func loadLines(ctx context.Context, q db.Querier, doc *billing.Document) error {
	rows, err := q.Query(ctx, `SELECT product_id, description, quantity, unit_price, subtotal, tax, total
		FROM document_lines WHERE document_id = $1 ORDER BY line_no`, doc.ID)
	if err != nil {
		return fmt.Errorf("documents: load lines: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var l billing.Line
		if err := rows.Scan(&l.ProductID, &l.Description, &l.Quantity, &l.UnitPrice, &l.Subtotal, &l.Tax, &l.Total); err != nil {
			return err
		}
		doc.Lines = append(doc.Lines, l)
	}
	return rows.Err()
}

func loadInstallments(ctx context.Context, q db.Querier, doc *billing.Document) error {
	rows, err := q.Query(ctx, `SELECT sequence, due_offset_days, amount, status
		FROM installments WHERE document_id = $1 ORDER BY sequence`, doc.ID)
	if err != nil {
		return fmt.Errorf("documents: load installments: %w", err)
	}
	for rows.Next() {
		var inst billing.Installment
		if err := rows.Scan(&inst.Sequence, &inst.DueOffsetDays, &inst.Amount, &inst.Status); err != nil {
			rows.Close()
			return err
		}
		doc.Installments = append(doc.Installments, inst)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	amounts, err := loadPaymentAmounts(ctx, q, doc.ID)
	if err != nil {
		return err
	}
	rows, err = q.Query(ctx, `SELECT id, installment_seq, paid_at, reference, user_id, supersedes, superseded_at, recorded_at
		FROM payments WHERE document_id = $1 ORDER BY installment_seq, position`, doc.ID)
	if err != nil {
		return fmt.Errorf("documents: load payments: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var p billing.Payment
		if err := rows.Scan(&p.ID, &p.InstallmentSeq, &p.PaidAt, &p.Reference, &p.UserID, &p.Supersedes, &p.SupersededAt, &p.RecordedAt); err != nil {
			return err
		}
		if p.InstallmentSeq < 1 || p.InstallmentSeq > len(doc.Installments) {
			return fmt.Errorf("documents: payment %s references missing installment %d", p.ID, p.InstallmentSeq)
		}
		p.Amounts = amounts[p.ID]
		inst := &doc.Installments[p.InstallmentSeq-1]
		inst.Payments = append(inst.Payments, p)
	}
	return rows.Err()
}

func loadPaymentAmounts(ctx context.Context, q db.Querier, documentID int64) (map[uuid.UUID]map[billing.Instrument]money.Money, error) {
	rows, err := q.Query(ctx, `SELECT pa.payment_id, pa.instrument, pa.amount
		FROM payment_amounts pa JOIN payments p ON p.id = pa.payment_id
		WHERE p.document_id = $1`, documentID)
	if err != nil {
		return nil, fmt.Errorf("documents: load payment amounts: %w", err)
	}
	defer rows.Close()
	out := make(map[uuid.UUID]map[billing.Instrument]money.Money)
	for rows.Next() {
		var (
			id         uuid.UUID
			instrument billing.Instrument
			amount     money.Money
		)
		if err := rows.Scan(&id, &instrument, &amount); err != nil {
			return nil, err
		}
		if out[id] == nil {
			out[id] = make(map[billing.Instrument]money.Money)
		}
		out[id][instrument] = amount
	}
	return out, rows.Err()
}
