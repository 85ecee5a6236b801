package storage

import (
	"context"
	"database/sql"
)

// DBTX is satisfied by both *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(context.Context, string, ...interface{}) (sql.Result, error)
	QueryContext(context.Context, string, ...interface{}) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...interface{}) *sql.Row
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

type Queries struct {
	db DBTX
}

func (q *Queries) WithTx(tx *sql.Tx) *Queries {
	return &Queries{db: tx}
}

// ReservationRow mirrors one row of the reservations table.
type ReservationRow struct {
	ID             string
	Date           string
	CustomerName   string
	Type           string
	UnitPrice      int64
	NumberOfPeople int64
	TennisCourt    int64
	BanquetHall    int64
	Other          int64
	TotalAmount    int64
	Rooms          string
}

const reservationColumns = `id, date, customer_name, type, unit_price, number_of_people,
       tennis_court, banquet_hall, other, total_amount, rooms`

func scanReservation(sc interface{ Scan(...any) error }) (ReservationRow, error) {
	var i ReservationRow
	err := sc.Scan(
		&i.ID,
		&i.Date,
		&i.CustomerName,
		&i.Type,
		&i.UnitPrice,
		&i.NumberOfPeople,
		&i.TennisCourt,
		&i.BanquetHall,
		&i.Other,
		&i.TotalAmount,
		&i.Rooms,
	)
	return i, err
}

const listReservations = `SELECT ` + reservationColumns + `
FROM reservations
ORDER BY rowid`

func (q *Queries) ListReservations(ctx context.Context) ([]ReservationRow, error) {
	rows, err := q.db.QueryContext(ctx, listReservations)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []ReservationRow
	for rows.Next() {
		i, err := scanReservation(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const getReservation = `SELECT ` + reservationColumns + `
FROM reservations
WHERE id = ?`

func (q *Queries) GetReservation(ctx context.Context, id string) (ReservationRow, error) {
	row := q.db.QueryRowContext(ctx, getReservation, id)
	return scanReservation(row)
}

type ReservationParams struct {
	ID             string
	Date           string
	CustomerName   string
	Type           string
	UnitPrice      int64
	NumberOfPeople int64
	TennisCourt    int64
	BanquetHall    int64
	Other          int64
	TotalAmount    int64
	Rooms          string
}

const createReservation = `INSERT INTO reservations (
    id, date, customer_name, type, unit_price, number_of_people,
    tennis_court, banquet_hall, other, total_amount, rooms
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

func (q *Queries) CreateReservation(ctx context.Context, arg ReservationParams) error {
	_, err := q.db.ExecContext(ctx, createReservation,
		arg.ID,
		arg.Date,
		arg.CustomerName,
		arg.Type,
		arg.UnitPrice,
		arg.NumberOfPeople,
		arg.TennisCourt,
		arg.BanquetHall,
		arg.Other,
		arg.TotalAmount,
		arg.Rooms,
	)
	return err
}

const updateReservation = `UPDATE reservations
SET date = ?, customer_name = ?, type = ?, unit_price = ?, number_of_people = ?,
    tennis_court = ?, banquet_hall = ?, other = ?, total_amount = ?, rooms = ?,
    updated_at = CURRENT_TIMESTAMP
WHERE id = ?`

func (q *Queries) UpdateReservation(ctx context.Context, arg ReservationParams) (int64, error) {
	result, err := q.db.ExecContext(ctx, updateReservation,
		arg.Date,
		arg.CustomerName,
		arg.Type,
		arg.UnitPrice,
		arg.NumberOfPeople,
		arg.TennisCourt,
		arg.BanquetHall,
		arg.Other,
		arg.TotalAmount,
		arg.Rooms,
		arg.ID,
	)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const deleteReservation = `DELETE FROM reservations WHERE id = ?`

func (q *Queries) DeleteReservation(ctx context.Context, id string) (int64, error) {
	result, err := q.db.ExecContext(ctx, deleteReservation, id)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const deleteAllReservations = `DELETE FROM reservations`

func (q *Queries) DeleteAllReservations(ctx context.Context) error {
	_, err := q.db.ExecContext(ctx, deleteAllReservations)
	return err
}

const countReservations = `SELECT COUNT(*) FROM reservations`

func (q *Queries) CountReservations(ctx context.Context) (int64, error) {
	row := q.db.QueryRowContext(ctx, countReservations)
	var count int64
	err := row.Scan(&count)
	return count, err
}
