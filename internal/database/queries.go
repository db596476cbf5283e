package database

// Table queries
const (
	GetTableSQL = `
		SELECT id, number, zone, capacity, display_name, state, waitstaff_id, assignment_kind,
			   observations, occupied_since, reserved_until, active, created_at, updated_at
		FROM floor_tables WHERE id = $1`

	GetTableForUpdateSQL = GetTableSQL + ` FOR UPDATE`

	ListTablesSQL = `
		SELECT id, number, zone, capacity, display_name, state, waitstaff_id, assignment_kind,
			   observations, occupied_since, reserved_until, active, created_at, updated_at
		FROM floor_tables
		WHERE active
		ORDER BY zone, number`

	UpdateTableStateSQL = `
		UPDATE floor_tables
		SET state = $1, occupied_since = $2, reserved_until = $3, updated_at = NOW()
		WHERE id = $4`

	AppendTableObservationsSQL = `
		UPDATE floor_tables
		SET observations = CASE WHEN observations = '' THEN $1
			ELSE observations || E'\n' || $1 END,
			updated_at = NOW()
		WHERE id = $2`

	UpdateTableAssignmentSQL = `
		UPDATE floor_tables
		SET waitstaff_id = $1, assignment_kind = $2, updated_at = NOW()
		WHERE id = $3`

	InsertOccupancySQL = `
		INSERT INTO occupancy_log (table_id, started_at, ended_at, duration_seconds)
		VALUES ($1, $2, $3, $4)`

	ListExpiredReservationsSQL = `
		SELECT id FROM floor_tables
		WHERE state = 'reserved' AND reserved_until IS NOT NULL AND reserved_until <= NOW()`
)

// Session queries
const (
	// Serializes the lookup-then-insert sequence per table; the class key
	// separates these locks from any other advisory use of the database.
	AdvisoryLockTableSQL = `SELECT pg_advisory_xact_lock(4201, $1)`

	GetOpenSessionForUpdateSQL = `
		SELECT id, table_id, party_size, waitstaff_id, customer_id, status, total,
			   observations, opened_at, closed_at
		FROM order_sessions
		WHERE table_id = $1 AND status = 'open'
		FOR UPDATE`

	InsertSessionSQL = `
		INSERT INTO order_sessions (table_id, party_size, waitstaff_id, customer_id, status, total, observations)
		VALUES ($1, $2, $3, $4, 'open', 0, $5)
		RETURNING id, opened_at`

	AttachSessionSQL = `
		UPDATE order_sessions
		SET party_size = GREATEST(party_size, $1),
			customer_id = COALESCE(customer_id, $2)
		WHERE id = $3`

	GetSessionForUpdateSQL = `
		SELECT id, table_id, party_size, waitstaff_id, customer_id, status, total,
			   observations, opened_at, closed_at
		FROM order_sessions
		WHERE id = $1
		FOR UPDATE`

	CancelSessionSQL = `
		UPDATE order_sessions
		SET status = 'cancelled', closed_at = NOW(),
			observations = CASE WHEN observations = '' THEN $1
				ELSE observations || E'\n' || $1 END
		WHERE id = $2`

	SumSessionLinesSQL = `
		SELECT COALESCE(SUM(quantity * unit_price), 0)
		FROM session_lines WHERE session_id = $1`

	SetSessionTotalSQL = `
		UPDATE order_sessions SET total = $1 WHERE id = $2`
)

// Line queries
const (
	FindMergeCandidatesSQL = `
		SELECT id, session_id, product_id, product_name, category, quantity, unit_price,
			   observations, dispatched_qty, dispatched_at, created_at
		FROM session_lines
		WHERE session_id = $1 AND product_id = $2 AND dispatched_qty = 0
		ORDER BY id
		FOR UPDATE`

	InsertLineSQL = `
		INSERT INTO session_lines (session_id, product_id, product_name, category, quantity, unit_price, observations)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id`

	BumpLineQuantitySQL = `
		UPDATE session_lines SET quantity = quantity + $1 WHERE id = $2`

	GetLineForUpdateSQL = `
		SELECT id, session_id, product_id, product_name, category, quantity, unit_price,
			   observations, dispatched_qty, dispatched_at, created_at
		FROM session_lines
		WHERE id = $1
		FOR UPDATE`

	DeleteLineSQL = `
		DELETE FROM session_lines WHERE id = $1`

	ListSessionLinesSQL = `
		SELECT id, session_id, product_id, product_name, category, quantity, unit_price,
			   observations, dispatched_qty, dispatched_at, created_at
		FROM session_lines
		WHERE session_id = $1
		ORDER BY id`
)

// Dispatch queries
const (
	ListPendingLinesForUpdateSQL = `
		SELECT id, session_id, product_id, product_name, category, quantity, unit_price,
			   observations, dispatched_qty, dispatched_at, created_at
		FROM session_lines
		WHERE session_id = $1 AND dispatched_qty < quantity
		ORDER BY id
		FOR UPDATE`

	MarkLineDispatchedSQL = `
		UPDATE session_lines SET dispatched_qty = quantity, dispatched_at = $1 WHERE id = $2`

	InsertDispatchEventSQL = `
		INSERT INTO dispatch_events (session_id, cash_register_id, line_count, dispatched_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id`
)

// Query facade queries
const (
	GetOpenSessionIDSQL = `
		SELECT id FROM order_sessions WHERE table_id = $1 AND status = 'open'`

	GetSessionHeaderSQL = `
		SELECT s.id, s.table_id, s.party_size, s.waitstaff_id, s.customer_id, s.status,
			   s.total, s.observations, s.opened_at, s.closed_at, t.number
		FROM order_sessions s
		JOIN floor_tables t ON t.id = s.table_id
		WHERE s.id = $1`

	ListActiveSessionsSQL = `
		SELECT s.id, s.table_id, s.party_size, s.waitstaff_id, s.customer_id, s.status,
			   s.total, s.observations, s.opened_at, s.closed_at, t.number
		FROM order_sessions s
		JOIN floor_tables t ON t.id = s.table_id
		WHERE s.status = 'open'
		ORDER BY s.opened_at`
)
