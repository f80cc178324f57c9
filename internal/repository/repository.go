package repository

import (
	"context"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
)

func Connect(conn string) (*sqlx.DB, error) {
	db, err := sqlx.Open("mysql", conn)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second*2)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		return nil, err
	}
	return db, nil
}

// Airdrops owns the airdrop ledger and the beneficiary records.
// Entry status is mutated here and nowhere else.
type Airdrops struct {
	db *sqlx.DB
}

func NewAirdrops(db *sqlx.DB) Airdrops {
	return Airdrops{db: db}
}
