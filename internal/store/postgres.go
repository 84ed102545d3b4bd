package store

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"booking-service/internal/domain"
)

//go:embed schema.sql
var schema string

const (
	slotColumns = `a.id, to_char(a.date, 'YYYY-MM-DD'), to_char(a.start_time, 'HH24:MI'), to_char(a.end_time, 'HH24:MI'), a.is_open`

	bookingColumns = `b.id, b.user_id, b.slot_id, b.service, b.address, to_char(b.date, 'YYYY-MM-DD'),
	        to_char(b.start_time, 'HH24:MI'), to_char(b.end_time, 'HH24:MI'), b.status, b.created_at`

	userColumns = `id, name, email, password_hash, role, created_at`

	isBookedExpr = `EXISTS (SELECT 1 FROM bookings b WHERE b.slot_id = a.id AND b.status = 'BOOKED')`
)

// Postgres is the pgx-backed Store.
type Postgres struct {
	DB *pgxpool.Pool
}

var _ Store = (*Postgres)(nil)

// NewPostgres connects a pool and verifies it with a ping.
func NewPostgres(ctx context.Context, url string) (*Postgres, error) {
	cfg, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return &Postgres{DB: pool}, nil
}

// Migrate creates tables, constraints and indexes that do not exist yet.
func (p *Postgres) Migrate(ctx context.Context) error {
	if _, err := p.DB.Exec(ctx, schema); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

func (p *Postgres) Close() { p.DB.Close() }

func (p *Postgres) Ping(ctx context.Context) error { return p.DB.Ping(ctx) }

// translate maps constraint violations onto domain errors.
func translate(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}
	switch pgErr.Code {
	case pgerrcode.ExclusionViolation:
		return domain.Wrap(domain.ErrSlotOverlap, err)
	case pgerrcode.UniqueViolation:
		switch pgErr.ConstraintName {
		case "idx_bookings_active_slot":
			return domain.Wrap(domain.ErrSlotUnavailable, err)
		case "users_email_key":
			return domain.Wrap(domain.ErrEmailTaken, err)
		}
	case pgerrcode.ForeignKeyViolation:
		if pgErr.ConstraintName == "payments_booking_id_fkey" {
			return domain.Wrap(domain.ErrBookingNotFound, err)
		}
	case pgerrcode.CheckViolation:
		if pgErr.ConstraintName == "availability_interval_check" {
			return domain.Validation("Start time must be before end time.")
		}
	}
	return err
}

func scanSlot(row pgx.Row) (domain.Slot, error) {
	var s domain.Slot
	err := row.Scan(&s.ID, &s.Date, &s.StartTime, &s.EndTime, &s.IsOpen)
	return s, err
}

func (p *Postgres) ListOpenSlots(ctx context.Context, date string) ([]domain.Slot, error) {
	q := `SELECT ` + slotColumns + ` FROM availability a WHERE a.is_open`
	var args []any
	if date != "" {
		q += ` AND a.date = $1::date`
		args = append(args, date)
	}
	q += ` ORDER BY a.date, a.start_time`

	rows, err := p.DB.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []domain.Slot{}
	for rows.Next() {
		s, err := scanSlot(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (p *Postgres) ListSlots(ctx context.Context, from, to string) ([]domain.SlotView, error) {
	q := `SELECT ` + slotColumns + `, ` + isBookedExpr + ` FROM availability a WHERE TRUE`
	var args []any
	if from != "" {
		args = append(args, from)
		q += fmt.Sprintf(` AND a.date >= $%d::date`, len(args))
	}
	if to != "" {
		args = append(args, to)
		q += fmt.Sprintf(` AND a.date <= $%d::date`, len(args))
	}
	q += ` ORDER BY a.date, a.start_time`

	rows, err := p.DB.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []domain.SlotView{}
	for rows.Next() {
		var v domain.SlotView
		if err := rows.Scan(&v.ID, &v.Date, &v.StartTime, &v.EndTime, &v.IsOpen, &v.IsBooked); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func (p *Postgres) GetSlot(ctx context.Context, id int64) (domain.Slot, error) {
	s, err := scanSlot(p.DB.QueryRow(ctx, `SELECT `+slotColumns+` FROM availability a WHERE a.id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Slot{}, domain.ErrSlotNotFound
	}
	return s, err
}

// CreateSlot relies on availability_no_overlap, so the overlap check and the
// insert are one statement.
func (p *Postgres) CreateSlot(ctx context.Context, s *domain.Slot) error {
	q := `INSERT INTO availability (date, start_time, end_time, is_open)
	      VALUES ($1::date, $2::time, $3::time, $4) RETURNING id`
	if err := p.DB.QueryRow(ctx, q, s.Date, s.StartTime, s.EndTime, s.IsOpen).Scan(&s.ID); err != nil {
		return translate(err)
	}
	return nil
}

// UpdateSlot refuses to reopen a slot that still holds an active booking;
// idx_bookings_active_slot would otherwise leave it open but unbookable.
func (p *Postgres) UpdateSlot(ctx context.Context, s *domain.Slot) error {
	tx, err := p.DB.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	booked, err := lockSlot(ctx, tx, s.ID)
	if err != nil {
		return err
	}
	if s.IsOpen && booked {
		return domain.ErrSlotHeld
	}

	q := `UPDATE availability
	      SET date = $1::date, start_time = $2::time, end_time = $3::time, is_open = $4
	      WHERE id = $5`
	if _, err := tx.Exec(ctx, q, s.Date, s.StartTime, s.EndTime, s.IsOpen, s.ID); err != nil {
		return translate(err)
	}
	return tx.Commit(ctx)
}

// lockSlot takes the slot row lock and reports whether an active booking
// points at it. Statements after the lock see bookings committed while waiting.
func lockSlot(ctx context.Context, tx pgx.Tx, id int64) (bool, error) {
	var locked int64
	err := tx.QueryRow(ctx, `SELECT id FROM availability WHERE id = $1 FOR UPDATE`, id).Scan(&locked)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, domain.ErrSlotNotFound
	}
	if err != nil {
		return false, err
	}

	var booked bool
	checkQ := `SELECT EXISTS (SELECT 1 FROM bookings WHERE slot_id = $1 AND status = 'BOOKED')`
	if err := tx.QueryRow(ctx, checkQ, id).Scan(&booked); err != nil {
		return false, err
	}
	return booked, nil
}

// DeleteSlot locks the slot row first so a concurrent booking either commits
// before the check or waits until the row is gone.
func (p *Postgres) DeleteSlot(ctx context.Context, id int64) error {
	tx, err := p.DB.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	booked, err := lockSlot(ctx, tx, id)
	if err != nil {
		return err
	}
	if booked {
		return domain.ErrSlotBooked
	}

	if _, err := tx.Exec(ctx, `DELETE FROM availability WHERE id = $1`, id); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (p *Postgres) SetSlotOpen(ctx context.Context, id int64, open bool) (int64, error) {
	tx, err := p.DB.Begin(ctx)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback(ctx)

	booked, err := lockSlot(ctx, tx, id)
	if errors.Is(err, domain.ErrSlotNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	if open && booked {
		return 0, domain.ErrSlotHeld
	}

	res, err := tx.Exec(ctx, `UPDATE availability SET is_open = $1 WHERE id = $2`, open, id)
	if err != nil {
		return 0, err
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, err
	}
	return res.RowsAffected(), nil
}

// InsertSlots runs the whole batch in one transaction. ON CONFLICT DO NOTHING
// uses availability_no_overlap as arbiter, so exact duplicates and overlapping
// rows are skipped rather than failing the batch.
func (p *Postgres) InsertSlots(ctx context.Context, slots []domain.Slot) (int, error) {
	if len(slots) == 0 {
		return 0, nil
	}
	tx, err := p.DB.Begin(ctx)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback(ctx)

	q := `INSERT INTO availability (date, start_time, end_time, is_open)
	      VALUES ($1::date, $2::time, $3::time, $4)
	      ON CONFLICT DO NOTHING`
	batch := &pgx.Batch{}
	for _, s := range slots {
		batch.Queue(q, s.Date, s.StartTime, s.EndTime, s.IsOpen)
	}

	br := tx.SendBatch(ctx, batch)
	inserted := 0
	for range slots {
		tag, err := br.Exec()
		if err != nil {
			_ = br.Close()
			return 0, translate(err)
		}
		inserted += int(tag.RowsAffected())
	}
	if err := br.Close(); err != nil {
		return 0, err
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, err
	}
	return inserted, nil
}

func (p *Postgres) HasOverlap(ctx context.Context, date, start, end string, excludeID int64) (bool, error) {
	q := `SELECT EXISTS (
	        SELECT 1 FROM availability
	        WHERE date = $1::date AND start_time < $2::time AND end_time > $3::time AND id <> $4
	      )`
	var found bool
	err := p.DB.QueryRow(ctx, q, date, end, start, excludeID).Scan(&found)
	return found, err
}

// BookSlot closes the slot and inserts the booking in one transaction. The
// conditional UPDATE is the admission gate: a second caller blocks on the row
// lock, then sees is_open = false and gets ErrSlotUnavailable.
func (p *Postgres) BookSlot(ctx context.Context, nb domain.NewBooking) (domain.Booking, error) {
	tx, err := p.DB.Begin(ctx)
	if err != nil {
		return domain.Booking{}, err
	}
	defer tx.Rollback(ctx)

	b := domain.Booking{
		UserID:  nb.UserID,
		SlotID:  &nb.SlotID,
		Service: nb.Service,
		Address: nb.Address,
		Status:  domain.StatusBooked,
	}

	closeQ := `UPDATE availability SET is_open = FALSE
	           WHERE id = $1 AND is_open
	           RETURNING to_char(date, 'YYYY-MM-DD'), to_char(start_time, 'HH24:MI'), to_char(end_time, 'HH24:MI')`
	err = tx.QueryRow(ctx, closeQ, nb.SlotID).Scan(&b.Date, &b.StartTime, &b.EndTime)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Booking{}, domain.ErrSlotUnavailable
	}
	if err != nil {
		return domain.Booking{}, err
	}

	insertQ := `INSERT INTO bookings (user_id, slot_id, service, address, date, start_time, end_time, status)
	            VALUES ($1, $2, $3, $4, $5::date, $6::time, $7::time, $8)
	            RETURNING id, created_at`
	err = tx.QueryRow(ctx, insertQ,
		b.UserID, nb.SlotID, b.Service, b.Address, b.Date, b.StartTime, b.EndTime, string(b.Status),
	).Scan(&b.ID, &b.CreatedAt)
	if err != nil {
		return domain.Booking{}, translate(err)
	}

	if err := tx.Commit(ctx); err != nil {
		return domain.Booking{}, err
	}
	return b, nil
}

func scanBooking(row pgx.Row, extra ...any) (domain.Booking, error) {
	var b domain.Booking
	var status string
	dest := []any{&b.ID, &b.UserID, &b.SlotID, &b.Service, &b.Address, &b.Date, &b.StartTime, &b.EndTime, &status, &b.CreatedAt}
	err := row.Scan(append(dest, extra...)...)
	b.Status = domain.BookingStatus(status)
	return b, err
}

func (p *Postgres) GetBooking(ctx context.Context, id int64) (domain.Booking, error) {
	b, err := scanBooking(p.DB.QueryRow(ctx, `SELECT `+bookingColumns+` FROM bookings b WHERE b.id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Booking{}, domain.ErrBookingNotFound
	}
	return b, err
}

func (p *Postgres) CancelBooking(ctx context.Context, id int64) error {
	res, err := p.DB.Exec(ctx, `UPDATE bookings SET status = 'CANCELLED' WHERE id = $1 AND status = 'BOOKED'`, id)
	if err != nil {
		return err
	}
	if res.RowsAffected() > 0 {
		return nil
	}
	if _, err := p.GetBooking(ctx, id); err != nil {
		return err
	}
	return domain.ErrBookingNotActive
}

func (p *Postgres) ListBookingsByUser(ctx context.Context, userID int64) ([]domain.Booking, error) {
	q := `SELECT ` + bookingColumns + ` FROM bookings b WHERE b.user_id = $1 ORDER BY b.date DESC, b.start_time DESC`
	rows, err := p.DB.Query(ctx, q, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []domain.Booking{}
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func (p *Postgres) ListAllBookings(ctx context.Context) ([]domain.BookingView, error) {
	q := `SELECT ` + bookingColumns + `, u.name, u.email
	      FROM bookings b JOIN users u ON u.id = b.user_id
	      ORDER BY b.date DESC, b.start_time DESC`
	rows, err := p.DB.Query(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []domain.BookingView{}
	for rows.Next() {
		var v domain.BookingView
		b, err := scanBooking(rows, &v.UserName, &v.UserEmail)
		if err != nil {
			return nil, err
		}
		v.Booking = b
		out = append(out, v)
	}
	return out, rows.Err()
}

func scanUser(row pgx.Row) (domain.User, error) {
	var u domain.User
	var role string
	err := row.Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &role, &u.CreatedAt)
	u.Role = domain.Role(role)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.User{}, domain.ErrUserNotFound
	}
	return u, err
}

func (p *Postgres) GetUser(ctx context.Context, id int64) (domain.User, error) {
	return scanUser(p.DB.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
}

func (p *Postgres) GetUserByEmail(ctx context.Context, email string) (domain.User, error) {
	return scanUser(p.DB.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email))
}

func (p *Postgres) GetOwnerByName(ctx context.Context, name string) (domain.User, error) {
	q := `SELECT ` + userColumns + ` FROM users WHERE name = $1 AND role = 'OWNER' ORDER BY id LIMIT 1`
	return scanUser(p.DB.QueryRow(ctx, q, name))
}

func (p *Postgres) CreateUser(ctx context.Context, u *domain.User) error {
	q := `INSERT INTO users (name, email, password_hash, role) VALUES ($1, $2, $3, $4) RETURNING id, created_at`
	err := p.DB.QueryRow(ctx, q, u.Name, u.Email, u.PasswordHash, string(u.Role)).Scan(&u.ID, &u.CreatedAt)
	return translate(err)
}

func (p *Postgres) EnsureUser(ctx context.Context, u *domain.User) error {
	q := `INSERT INTO users (name, email, password_hash, role) VALUES ($1, $2, $3, $4)
	      ON CONFLICT (email) DO NOTHING
	      RETURNING id, created_at`
	err := p.DB.QueryRow(ctx, q, u.Name, u.Email, u.PasswordHash, string(u.Role)).Scan(&u.ID, &u.CreatedAt)
	if !errors.Is(err, pgx.ErrNoRows) {
		return translate(err)
	}
	existing, err := p.GetUserByEmail(ctx, u.Email)
	if err != nil {
		return err
	}
	*u = existing
	return nil
}

func (p *Postgres) UpsertOwner(ctx context.Context, u *domain.User) error {
	q := `INSERT INTO users (name, email, password_hash, role) VALUES ($1, $2, $3, 'OWNER')
	      ON CONFLICT (email) DO UPDATE
	      SET name = EXCLUDED.name, password_hash = EXCLUDED.password_hash, role = 'OWNER'
	      RETURNING id, created_at`
	u.Role = domain.RoleOwner
	return p.DB.QueryRow(ctx, q, u.Name, u.Email, u.PasswordHash).Scan(&u.ID, &u.CreatedAt)
}

// CreateReview serializes writers per user with an advisory lock so the
// window check and the insert cannot interleave.
func (p *Postgres) CreateReview(ctx context.Context, r *domain.Review, window time.Duration) error {
	tx, err := p.DB.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, r.UserID); err != nil {
		return err
	}

	q := `INSERT INTO reviews (user_id, rating, comment)
	      SELECT $1, $2, $3
	      WHERE NOT EXISTS (
	        SELECT 1 FROM reviews WHERE user_id = $1 AND created_at > now() - make_interval(secs => $4)
	      )
	      RETURNING id, created_at`
	err = tx.QueryRow(ctx, q, r.UserID, r.Rating, r.Comment, window.Seconds()).Scan(&r.ID, &r.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.ErrReviewTooSoon
	}
	if err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (p *Postgres) ListReviews(ctx context.Context) ([]domain.ReviewView, error) {
	q := `SELECT r.id, r.user_id, r.rating, r.comment, r.created_at, u.name
	      FROM reviews r JOIN users u ON u.id = r.user_id
	      ORDER BY r.created_at DESC`
	rows, err := p.DB.Query(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []domain.ReviewView{}
	for rows.Next() {
		var v domain.ReviewView
		if err := rows.Scan(&v.ID, &v.UserID, &v.Rating, &v.Comment, &v.CreatedAt, &v.Name); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func (p *Postgres) CreatePayment(ctx context.Context, pm *domain.Payment) error {
	q := `INSERT INTO payments (booking_id, amount, currency, status, stripe_payment_intent_id)
	      VALUES ($1, $2, $3, $4, $5) RETURNING id, created_at`
	err := p.DB.QueryRow(ctx, q, pm.BookingID, pm.Amount, pm.Currency, pm.Status, pm.PaymentIntentID).
		Scan(&pm.ID, &pm.CreatedAt)
	return translate(err)
}
