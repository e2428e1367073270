package settlement

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"agent-settlement-platform/pkg/utils"

	"github.com/shopspring/decimal"
)

// PostgresStore persists settlement data via database/sql (pgx stdlib driver).
//
// Assumed schema:
//
//	settlement_profiles (
//	    id BIGINT GENERATED ALWAYS AS IDENTITY PRIMARY KEY,
//	    software VARCHAR(191) NOT NULL,
//	    agent_username VARCHAR(191) NOT NULL,
//	    cycle_days INT NOT NULL DEFAULT 0,
//	    cycle_time_minutes INT NOT NULL DEFAULT 0,
//	    last_settled_at TIMESTAMPTZ NULL,
//	    next_due_at TIMESTAMPTZ NULL,
//	    created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
//	    updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
//	    UNIQUE (software, agent_username)
//	)
//
//	settlement_rates (
//	    id BIGINT GENERATED ALWAYS AS IDENTITY PRIMARY KEY,
//	    software VARCHAR(191) NOT NULL,
//	    agent_username VARCHAR(191) NOT NULL,
//	    card_type VARCHAR(191) NOT NULL,
//	    price NUMERIC(18,4) NOT NULL DEFAULT 0,
//	    updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
//	    UNIQUE (software, agent_username, card_type)
//	)
//
//	settlement_bills (
//	    id BIGINT GENERATED ALWAYS AS IDENTITY PRIMARY KEY,
//	    software VARCHAR(191) NOT NULL,
//	    agent_username VARCHAR(191) NOT NULL,
//	    cycle_start TIMESTAMPTZ NOT NULL,
//	    cycle_end TIMESTAMPTZ NOT NULL,
//	    amount NUMERIC(18,4) NOT NULL DEFAULT 0,
//	    settled BOOLEAN NOT NULL DEFAULT FALSE,
//	    note VARCHAR(255) NULL,
//	    created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
//	    settled_at TIMESTAMPTZ NULL
//	)
//	CREATE UNIQUE INDEX ux_settlement_bills_pending
//	    ON settlement_bills (software, agent_username) WHERE NOT settled;
//
// The partial unique index is the at-most-one-pending-bill guard; a losing
// concurrent insert surfaces as ErrPendingBillExists.
type PostgresStore struct {
	db *sql.DB
}

const pendingBillConstraint = "ux_settlement_bills_pending"

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) LoadProfile(ctx context.Context, software, agentUsername string) (Profile, bool, error) {
	const q = `
SELECT id, software, agent_username, cycle_days, cycle_time_minutes, last_settled_at, next_due_at, created_at, updated_at
FROM settlement_profiles
WHERE software = $1 AND lower(agent_username) = lower($2)
`
	p, err := scanProfile(s.db.QueryRowContext(ctx, q, software, agentUsername))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Profile{}, false, nil
		}
		return Profile{}, false, err
	}
	return p, true, nil
}

func (s *PostgresStore) GetOrCreateProfile(ctx context.Context, software, agentUsername string) (Profile, error) {
	const q = `
INSERT INTO settlement_profiles (software, agent_username)
VALUES ($1, $2)
ON CONFLICT (software, agent_username) DO UPDATE SET updated_at = settlement_profiles.updated_at
RETURNING id, software, agent_username, cycle_days, cycle_time_minutes, last_settled_at, next_due_at, created_at, updated_at
`
	return scanProfile(s.db.QueryRowContext(ctx, q, software, agentUsername))
}

func (s *PostgresStore) UpdateProfileConfig(ctx context.Context, software, agentUsername string, cycleDays, cycleTimeMinutes int, lastSettledAt, nextDueAt *time.Time) error {
	const q = `
UPDATE settlement_profiles
SET cycle_days = $3,
    cycle_time_minutes = $4,
    last_settled_at = $5,
    next_due_at = $6,
    updated_at = now()
WHERE software = $1 AND lower(agent_username) = lower($2)
`
	_, err := s.db.ExecContext(ctx, q, software, agentUsername, cycleDays, NormalizeCycleTime(cycleTimeMinutes), nullTime(lastSettledAt), nullTime(nextDueAt))
	return err
}

func (s *PostgresStore) UpdateProfileTimes(ctx context.Context, software, agentUsername string, lastSettledAt time.Time, nextDueAt *time.Time) error {
	const q = `
UPDATE settlement_profiles
SET last_settled_at = $3,
    next_due_at = $4,
    updated_at = now()
WHERE software = $1 AND lower(agent_username) = lower($2)
`
	_, err := s.db.ExecContext(ctx, q, software, agentUsername, lastSettledAt.UTC(), nullTime(nextDueAt))
	return err
}

func (s *PostgresStore) LoadRates(ctx context.Context, software, agentUsername string) ([]Rate, error) {
	const q = `
SELECT software, agent_username, card_type, price
FROM settlement_rates
WHERE software = $1 AND lower(agent_username) = lower($2)
ORDER BY lower(card_type)
`
	rows, err := s.db.QueryContext(ctx, q, software, agentUsername)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Rate
	for rows.Next() {
		var r Rate
		if err := rows.Scan(&r.Software, &r.AgentUsername, &r.CardType, &r.Price); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *PostgresStore) ReplaceRates(ctx context.Context, software, agentUsername string, rates []Rate) error {
	return utils.WithTx(ctx, s.db, &sql.TxOptions{}, func(ctx context.Context, tx *sql.Tx) error {
		const del = `DELETE FROM settlement_rates WHERE software = $1 AND lower(agent_username) = lower($2)`
		if _, err := tx.ExecContext(ctx, del, software, agentUsername); err != nil {
			return err
		}

		const ins = `
INSERT INTO settlement_rates (software, agent_username, card_type, price)
VALUES ($1, $2, $3, $4)
`
		for _, r := range rates {
			if _, err := tx.ExecContext(ctx, ins, software, agentUsername, r.CardType, r.Price); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *PostgresStore) FindPendingBill(ctx context.Context, software, agentUsername string) (Bill, bool, error) {
	const q = `
SELECT id, software, agent_username, cycle_start, cycle_end, amount, settled, COALESCE(note, ''), created_at, settled_at
FROM settlement_bills
WHERE software = $1 AND lower(agent_username) = lower($2) AND NOT settled
LIMIT 1
`
	b, err := scanBill(s.db.QueryRowContext(ctx, q, software, agentUsername))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Bill{}, false, nil
		}
		return Bill{}, false, err
	}
	return b, true, nil
}

func (s *PostgresStore) InsertPendingBill(ctx context.Context, bill Bill) (Bill, error) {
	const q = `
INSERT INTO settlement_bills (software, agent_username, cycle_start, cycle_end, amount, settled, created_at)
VALUES ($1, $2, $3, $4, $5, FALSE, now())
RETURNING id, software, agent_username, cycle_start, cycle_end, amount, settled, COALESCE(note, ''), created_at, settled_at
`
	b, err := scanBill(s.db.QueryRowContext(ctx, q,
		bill.Software,
		bill.AgentUsername,
		bill.CycleStart.UTC(),
		bill.CycleEnd.UTC(),
		bill.Amount,
	))
	if err != nil {
		if utils.IsUniqueViolation(err, pendingBillConstraint) {
			return Bill{}, ErrPendingBillExists
		}
		return Bill{}, err
	}
	return b, nil
}

func (s *PostgresStore) ListBills(ctx context.Context, software, agentUsername string, limit int) ([]Bill, error) {
	if limit <= 0 {
		limit = 50
	}
	const q = `
SELECT id, software, agent_username, cycle_start, cycle_end, amount, settled, COALESCE(note, ''), created_at, settled_at
FROM settlement_bills
WHERE software = $1 AND lower(agent_username) = lower($2)
ORDER BY settled ASC, cycle_end DESC
LIMIT $3
`
	rows, err := s.db.QueryContext(ctx, q, software, agentUsername, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Bill
	for rows.Next() {
		b, err := scanBill(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func (s *PostgresStore) GetBill(ctx context.Context, software, agentUsername string, billID int64) (Bill, error) {
	const q = `
SELECT id, software, agent_username, cycle_start, cycle_end, amount, settled, COALESCE(note, ''), created_at, settled_at
FROM settlement_bills
WHERE id = $3 AND software = $1 AND lower(agent_username) = lower($2)
`
	b, err := scanBill(s.db.QueryRowContext(ctx, q, software, agentUsername, billID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Bill{}, ErrBillNotFound
		}
		return Bill{}, err
	}
	return b, nil
}

func (s *PostgresStore) CompleteBill(ctx context.Context, software, agentUsername string, billID int64, amount decimal.Decimal, note string, settledAt time.Time, nextDueAt *time.Time) (Bill, error) {
	var out Bill
	err := utils.WithTx(ctx, s.db, &sql.TxOptions{}, func(ctx context.Context, tx *sql.Tx) error {
		// Optimistic settled check: only a pending row transitions.
		const upd = `
UPDATE settlement_bills
SET amount = $4, note = NULLIF($5, ''), settled = TRUE, settled_at = $6
WHERE id = $3 AND software = $1 AND lower(agent_username) = lower($2) AND NOT settled
RETURNING id, software, agent_username, cycle_start, cycle_end, amount, settled, COALESCE(note, ''), created_at, settled_at
`
		b, err := scanBill(tx.QueryRowContext(ctx, upd, software, agentUsername, billID, amount, note, settledAt.UTC()))
		if err != nil {
			if !errors.Is(err, sql.ErrNoRows) {
				return err
			}
			// Distinguish missing from already settled.
			const sel = `
SELECT id, software, agent_username, cycle_start, cycle_end, amount, settled, COALESCE(note, ''), created_at, settled_at
FROM settlement_bills
WHERE id = $3 AND software = $1 AND lower(agent_username) = lower($2)
`
			existing, selErr := scanBill(tx.QueryRowContext(ctx, sel, software, agentUsername, billID))
			if selErr != nil {
				if errors.Is(selErr, sql.ErrNoRows) {
					return ErrBillNotFound
				}
				return selErr
			}
			out = existing
			return ErrAlreadySettled
		}

		const prof = `
UPDATE settlement_profiles
SET last_settled_at = $3,
    next_due_at = $4,
    updated_at = now()
WHERE software = $1 AND lower(agent_username) = lower($2)
`
		if _, err := tx.ExecContext(ctx, prof, software, agentUsername, b.CycleEnd.UTC(), nullTime(nextDueAt)); err != nil {
			return err
		}
		out = b
		return nil
	})
	if err != nil && !errors.Is(err, ErrAlreadySettled) {
		return Bill{}, err
	}
	return out, err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProfile(row rowScanner) (Profile, error) {
	var p Profile
	var last, next sql.NullTime
	if err := row.Scan(&p.ID, &p.Software, &p.AgentUsername, &p.CycleDays, &p.CycleTimeMinutes, &last, &next, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return Profile{}, err
	}
	if last.Valid {
		t := last.Time.UTC()
		p.LastSettledAt = &t
	}
	if next.Valid {
		t := next.Time.UTC()
		p.NextDueAt = &t
	}
	p.CycleTimeMinutes = NormalizeCycleTime(p.CycleTimeMinutes)
	return p, nil
}

func scanBill(row rowScanner) (Bill, error) {
	var b Bill
	var settledAt sql.NullTime
	if err := row.Scan(&b.ID, &b.Software, &b.AgentUsername, &b.CycleStart, &b.CycleEnd, &b.Amount, &b.Settled, &b.Note, &b.CreatedAt, &settledAt); err != nil {
		return Bill{}, err
	}
	if settledAt.Valid {
		t := settledAt.Time.UTC()
		b.SettledAt = &t
	}
	b.CycleStart = b.CycleStart.UTC()
	b.CycleEnd = b.CycleEnd.UTC()
	return b, nil
}

func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC()
}
