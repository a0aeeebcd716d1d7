package repository

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"auction-house/internal/auctionerrors"
	model "auction-house/internal/models"
	"auction-house/utils"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"
)

// foreign key violation
const pqErrForeignKey = "23503"

// PostgresRepo is a Postgres-backed implementation of AuctionStore.
// Monetary columns are NUMERIC and scanned as strings; per-auction
// mutual exclusion is a conditional UPDATE on (version, status).
type PostgresRepo struct {
	db *sql.DB
}

// NewPostgresRepo wraps an open database handle
func NewPostgresRepo(db *sql.DB) *PostgresRepo {
	return &PostgresRepo{db: db}
}

// OpenDB connects to Postgres with a few retries and runs migrations
func OpenDB(dsn string) (*sql.DB, error) {
	var db *sql.DB
	var err error
	for i := 0; i < 5; i++ {
		db, err = sql.Open("postgres", dsn)
		if err == nil {
			if err = db.Ping(); err == nil {
				break
			}
		}
		utils.Info("waiting for database", map[string]any{"attempt": i + 1})
		time.Sleep(2 * time.Second)
	}
	if err != nil {
		return nil, fmt.Errorf("could not reach database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := runMigrations(db); err != nil {
		return nil, err
	}
	return db, nil
}

// runMigrations creates tables and indexes idempotently
func runMigrations(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id         VARCHAR(64)   PRIMARY KEY,
			username   VARCHAR(255)  NOT NULL,
			balance    NUMERIC(20,2) NOT NULL DEFAULT 0 CHECK (balance >= 0)
		)`,
		`CREATE TABLE IF NOT EXISTS auctions (
			id            VARCHAR(64)   PRIMARY KEY,
			product       VARCHAR(255)  NOT NULL,
			duration      INT           NOT NULL,
			start_price   NUMERIC(20,2) NOT NULL,
			current_price NUMERIC(20,2) NOT NULL,
			end_time      TIMESTAMPTZ   NOT NULL,
			winner        VARCHAR(64)   NOT NULL DEFAULT '',
			status        VARCHAR(10)   NOT NULL DEFAULT 'active',
			version       BIGINT        NOT NULL DEFAULT 0,
			created_at    TIMESTAMPTZ   NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS bids (
			id         VARCHAR(64)   PRIMARY KEY,
			auction_id VARCHAR(64)   NOT NULL REFERENCES auctions(id),
			user_id    VARCHAR(64)   NOT NULL,
			amount     NUMERIC(20,2) NOT NULL,
			created_at TIMESTAMPTZ   NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_auctions_status_end_time
			ON auctions(status, end_time)`,
		`CREATE INDEX IF NOT EXISTS idx_bids_auction_id
			ON bids(auction_id)`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}
	utils.Info("migrations completed", nil)
	return nil
}

// parseNumeric converts a NUMERIC column scanned as string to float64
func parseNumeric(s string) (float64, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("invalid numeric value %q: %w", s, err)
	}
	f, _ := d.Float64()
	return f, nil
}

// CreateUser stores a new user record
func (r *PostgresRepo) CreateUser(user model.User) error {
	_, err := r.db.Exec(
		`INSERT INTO users (id, username, balance) VALUES ($1, $2, $3)`,
		user.UserID, user.Username, decimal.NewFromFloat(user.Balance).String(),
	)
	if err != nil {
		return fmt.Errorf("create user %s: %w", user.UserID, err)
	}
	return nil
}

// GetUser returns the user with the given ID
func (r *PostgresRepo) GetUser(userID string) (model.User, error) {
	var user model.User
	var balance string
	err := r.db.QueryRow(
		`SELECT id, username, balance FROM users WHERE id = $1`,
		userID,
	).Scan(&user.UserID, &user.Username, &balance)
	if errors.Is(err, sql.ErrNoRows) {
		return model.User{}, fmt.Errorf("get user %s: %w", userID, auctionerrors.ErrUserNotFound)
	}
	if err != nil {
		return model.User{}, fmt.Errorf("get user %s: %w", userID, err)
	}

	if user.Balance, err = parseNumeric(balance); err != nil {
		return model.User{}, fmt.Errorf("get user %s: %w", userID, err)
	}
	return user, nil
}

// CreditBalance adds amount to the user's balance and returns the updated user
func (r *PostgresRepo) CreditBalance(userID string, amount float64) (model.User, error) {
	var user model.User
	var balance string
	err := r.db.QueryRow(
		`UPDATE users SET balance = balance + $1 WHERE id = $2
		 RETURNING id, username, balance`,
		decimal.NewFromFloat(amount).String(), userID,
	).Scan(&user.UserID, &user.Username, &balance)
	if errors.Is(err, sql.ErrNoRows) {
		return model.User{}, fmt.Errorf("credit balance for user %s: %w", userID, auctionerrors.ErrUserNotFound)
	}
	if err != nil {
		return model.User{}, fmt.Errorf("credit balance for user %s: %w", userID, err)
	}

	if user.Balance, err = parseNumeric(balance); err != nil {
		return model.User{}, fmt.Errorf("credit balance for user %s: %w", userID, err)
	}
	return user, nil
}

// CreateAuction stores a new auction record
func (r *PostgresRepo) CreateAuction(auction model.Auction) error {
	_, err := r.db.Exec(
		`INSERT INTO auctions (id, product, duration, start_price, current_price,
			end_time, winner, status, version, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		auction.AuctionID, auction.Product, auction.Duration,
		decimal.NewFromFloat(auction.StartPrice).String(),
		decimal.NewFromFloat(auction.CurrentPrice).String(),
		auction.EndTime, auction.Winner, auction.Status, auction.Version, auction.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("create auction %s: %w", auction.AuctionID, err)
	}
	return nil
}

const auctionColumns = `id, product, duration, start_price, current_price,
	end_time, winner, status, version, created_at`

// scanAuction reads one auction row, converting NUMERIC columns
func scanAuction(row interface{ Scan(dest ...any) error }) (model.Auction, error) {
	var a model.Auction
	var startPrice, currentPrice string
	err := row.Scan(&a.AuctionID, &a.Product, &a.Duration, &startPrice, &currentPrice,
		&a.EndTime, &a.Winner, &a.Status, &a.Version, &a.CreatedAt)
	if err != nil {
		return model.Auction{}, err
	}
	if a.StartPrice, err = parseNumeric(startPrice); err != nil {
		return model.Auction{}, err
	}
	if a.CurrentPrice, err = parseNumeric(currentPrice); err != nil {
		return model.Auction{}, err
	}
	return a, nil
}

// GetAuction returns the auction with the given ID
func (r *PostgresRepo) GetAuction(auctionID string) (model.Auction, error) {
	row := r.db.QueryRow(`SELECT `+auctionColumns+` FROM auctions WHERE id = $1`, auctionID)
	auction, err := scanAuction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Auction{}, fmt.Errorf("get auction %s: %w", auctionID, auctionerrors.ErrAuctionNotFound)
	}
	if err != nil {
		return model.Auction{}, fmt.Errorf("get auction %s: %w", auctionID, err)
	}
	return auction, nil
}

// ListAuctions returns all auctions ordered by creation time
func (r *PostgresRepo) ListAuctions() ([]model.Auction, error) {
	rows, err := r.db.Query(`SELECT ` + auctionColumns + ` FROM auctions ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("list auctions: %w", err)
	}
	defer rows.Close()

	var auctions []model.Auction
	for rows.Next() {
		auction, err := scanAuction(rows)
		if err != nil {
			return nil, fmt.Errorf("list auctions: %w", err)
		}
		auctions = append(auctions, auction)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list auctions: %w", err)
	}
	return auctions, nil
}

// UpdateAuctionOnBid applies an accepted bid's price and winner through a
// conditional UPDATE on (version, status). Zero rows means the auction is
// missing, already ended, or was modified concurrently; a follow-up read
// tells the cases apart.
func (r *PostgresRepo) UpdateAuctionOnBid(auctionID string, expectedVersion int64, price float64, winner string) (model.Auction, error) {
	row := r.db.QueryRow(
		`UPDATE auctions
		 SET current_price = $1, winner = $2, version = version + 1
		 WHERE id = $3 AND version = $4 AND status = $5
		 RETURNING `+auctionColumns,
		decimal.NewFromFloat(price).String(), winner,
		auctionID, expectedVersion, model.StatusActive,
	)
	auction, err := scanAuction(row)
	if err == nil {
		return auction, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return model.Auction{}, fmt.Errorf("update auction %s: %w", auctionID, err)
	}

	current, err := r.GetAuction(auctionID)
	if err != nil {
		return model.Auction{}, err
	}
	if !current.Active() {
		return model.Auction{}, fmt.Errorf("update auction %s: %w", auctionID, auctionerrors.ErrAuctionClosed)
	}
	return model.Auction{}, fmt.Errorf("update auction %s: %w", auctionID, auctionerrors.ErrVersionConflict)
}

// ExpireDue transitions all due active auctions to ended and returns them
func (r *PostgresRepo) ExpireDue(now time.Time) ([]model.Auction, error) {
	rows, err := r.db.Query(
		`UPDATE auctions
		 SET status = $1, version = version + 1
		 WHERE status = $2 AND end_time <= $3
		 RETURNING `+auctionColumns,
		model.StatusEnded, model.StatusActive, now,
	)
	if err != nil {
		return nil, fmt.Errorf("expire due auctions: %w", err)
	}
	defer rows.Close()

	var closed []model.Auction
	for rows.Next() {
		auction, err := scanAuction(rows)
		if err != nil {
			return nil, fmt.Errorf("expire due auctions: %w", err)
		}
		closed = append(closed, auction)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("expire due auctions: %w", err)
	}
	return closed, nil
}

// RecordBid appends a bid to the auction's bid log
func (r *PostgresRepo) RecordBid(bid model.Bid) error {
	_, err := r.db.Exec(
		`INSERT INTO bids (id, auction_id, user_id, amount, created_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		bid.BidID, bid.AuctionID, bid.UserID,
		decimal.NewFromFloat(bid.Amount).String(), bid.CreatedAt,
	)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == pqErrForeignKey {
			return fmt.Errorf("record bid for auction %s: %w", bid.AuctionID, auctionerrors.ErrAuctionNotFound)
		}
		return fmt.Errorf("record bid for auction %s: %w", bid.AuctionID, err)
	}
	return nil
}

// GetBidsByAuction returns all bids for an auction
func (r *PostgresRepo) GetBidsByAuction(auctionID string) ([]model.Bid, error) {
	rows, err := r.db.Query(
		`SELECT id, auction_id, user_id, amount, created_at
		 FROM bids WHERE auction_id = $1 ORDER BY created_at, id`,
		auctionID,
	)
	if err != nil {
		return nil, fmt.Errorf("get bids for auction %s: %w", auctionID, err)
	}
	defer rows.Close()

	var bids []model.Bid
	for rows.Next() {
		var b model.Bid
		var amount string
		if err := rows.Scan(&b.BidID, &b.AuctionID, &b.UserID, &amount, &b.CreatedAt); err != nil {
			return nil, fmt.Errorf("get bids for auction %s: %w", auctionID, err)
		}
		if b.Amount, err = parseNumeric(amount); err != nil {
			return nil, fmt.Errorf("get bids for auction %s: %w", auctionID, err)
		}
		bids = append(bids, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("get bids for auction %s: %w", auctionID, err)
	}
	if len(bids) == 0 {
		return nil, fmt.Errorf("get bids for auction %s: %w", auctionID, auctionerrors.ErrNoBids)
	}
	return bids, nil
}

// GetWinningBid returns the highest bid for an auction
func (r *PostgresRepo) GetWinningBid(auctionID string) (model.Bid, error) {
	var b model.Bid
	var amount string
	err := r.db.QueryRow(
		`SELECT id, auction_id, user_id, amount, created_at
		 FROM bids WHERE auction_id = $1
		 ORDER BY amount DESC, created_at ASC LIMIT 1`,
		auctionID,
	).Scan(&b.BidID, &b.AuctionID, &b.UserID, &amount, &b.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Bid{}, fmt.Errorf("get winning bid for auction %s: %w", auctionID, auctionerrors.ErrNoBids)
	}
	if err != nil {
		return model.Bid{}, fmt.Errorf("get winning bid for auction %s: %w", auctionID, err)
	}
	if b.Amount, err = parseNumeric(amount); err != nil {
		return model.Bid{}, fmt.Errorf("get winning bid for auction %s: %w", auctionID, err)
	}
	return b, nil
}
