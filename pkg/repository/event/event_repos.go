package event

import (
	"context"
	"errors"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/jackc/pgx/v5"

	"github.com/mpapenbr/fpv-racedash/pkg/repository"
)

type Event struct {
	ID          uuid.UUID
	Key         string
	Name        string
	RecordStamp time.Time
}

var ErrNotFound = errors.New("event not found")

const selector = `select id, event_key, name, record_stamp from event`

// Create stores a new event. A new id is generated if none is set.
func Create(ctx context.Context, conn repository.Querier, e *Event) error {
	if e.ID.IsNil() {
		id, err := uuid.NewV7()
		if err != nil {
			return err
		}
		e.ID = id
	}
	row := conn.QueryRow(ctx, `
	insert into event (id, event_key, name) values ($1,$2,$3)
	returning record_stamp
	`, e.ID, e.Key, e.Name)
	return row.Scan(&e.RecordStamp)
}

func LoadByKey(ctx context.Context, conn repository.Querier, key string) (*Event, error) {
	return readData(conn.QueryRow(ctx, selector+" where event_key=$1", key))
}

func LoadByID(ctx context.Context, conn repository.Querier, id uuid.UUID) (*Event, error) {
	return readData(conn.QueryRow(ctx, selector+" where id=$1", id))
}

func LoadAll(ctx context.Context, conn repository.Querier) ([]*Event, error) {
	rows, err := conn.Query(ctx, selector+" order by record_stamp desc")
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (*Event, error) {
		return pgx.RowToAddrOfStructByPos[Event](row)
	})
}

// DeleteByID removes the event and all of its records. Returns the number
// of deleted events.
func DeleteByID(ctx context.Context, conn repository.Querier, id uuid.UUID) (int, error) {
	cmdTag, err := conn.Exec(ctx, "delete from event where id=$1", id)
	if err != nil {
		return 0, err
	}
	return int(cmdTag.RowsAffected()), nil
}

func readData(row pgx.Row) (*Event, error) {
	var e Event
	if err := row.Scan(&e.ID, &e.Key, &e.Name, &e.RecordStamp); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &e, nil
}
