package postgres

// Schema is the logical layout of the reservation core. Tests and local
// tooling apply it directly; deployments run it as a migration.
//
// idempotency_claims.order_id carries no foreign key: the claim row is
// written before the order it points at, so a losing concurrent writer can
// discover the winner's order id.
const Schema = `
CREATE TABLE IF NOT EXISTS seat_states (
	showtime_id TEXT NOT NULL,
	seat_id TEXT NOT NULL,
	state TEXT NOT NULL CHECK (state IN ('available', 'held', 'purchased')),
	hold_expires_at TIMESTAMPTZ,
	order_id UUID,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (showtime_id, seat_id)
);

CREATE TABLE IF NOT EXISTS holds (
	id UUID PRIMARY KEY,
	showtime_id TEXT NOT NULL,
	user_id TEXT NOT NULL,
	seat_ids TEXT[] NOT NULL,
	idempotency_key TEXT UNIQUE,
	status TEXT NOT NULL CHECK (status IN ('active', 'expired', 'converted')),
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	expires_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS holds_status_expires_at_idx ON holds (status, expires_at);

CREATE TABLE IF NOT EXISTS orders (
	id UUID PRIMARY KEY,
	user_id TEXT NOT NULL,
	showtime_id TEXT NOT NULL,
	status TEXT NOT NULL CHECK (status IN ('pending_payment', 'paid', 'canceled', 'refunded')),
	subtotal_cents BIGINT NOT NULL,
	service_fee_cents BIGINT NOT NULL,
	tax_cents BIGINT NOT NULL,
	total_cents BIGINT NOT NULL,
	currency TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS order_items (
	order_id UUID NOT NULL REFERENCES orders (id),
	seat_id TEXT NOT NULL,
	tier TEXT NOT NULL,
	price_cents BIGINT NOT NULL,
	tax_cents BIGINT NOT NULL,
	PRIMARY KEY (order_id, seat_id)
);

CREATE TABLE IF NOT EXISTS idempotency_claims (
	key TEXT PRIMARY KEY,
	order_id UUID NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
`
