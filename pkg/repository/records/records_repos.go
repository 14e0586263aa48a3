// Package records persists the records of an event.
package records

import (
	"context"
	"fmt"

	"github.com/gofrs/uuid/v5"
	"github.com/jackc/pgx/v5"

	"github.com/mpapenbr/fpv-racedash/pkg/model"
	"github.com/mpapenbr/fpv-racedash/pkg/repository"
)

var tables = []string{
	"kv", "lap", "detection", "pilot_channel", "race", "round", "channel", "pilot",
}

// Load reads all records of an event.
//
//nolint:funlen // one query per table
func Load(ctx context.Context, conn repository.Querier, eventID uuid.UUID) (model.Records, error) {
	var ret model.Records
	var err error
	if ret.Pilots, err = collect(ctx, conn,
		`select id, name, source_id from pilot where event_id=$1 order by id`, eventID,
		func(row pgx.CollectableRow) (model.Pilot, error) {
			var p model.Pilot
			err := row.Scan(&p.ID, &p.Name, &p.SourceID)
			return p, err
		}); err != nil {
		return ret, fmt.Errorf("load pilots: %w", err)
	}
	if ret.Channels, err = collect(ctx, conn,
		`select id, short_band, number, color from channel where event_id=$1 order by id`,
		eventID,
		func(row pgx.CollectableRow) (model.Channel, error) {
			var c model.Channel
			err := row.Scan(&c.ID, &c.ShortBand, &c.Number, &c.Color)
			return c, err
		}); err != nil {
		return ret, fmt.Errorf("load channels: %w", err)
	}
	if ret.Rounds, err = collect(ctx, conn,
		`select id, name, round_number, event_type from round where event_id=$1 order by id`,
		eventID,
		func(row pgx.CollectableRow) (model.Round, error) {
			var r model.Round
			err := row.Scan(&r.ID, &r.Name, &r.Number, &r.EventType)
			return r, err
		}); err != nil {
		return ret, fmt.Errorf("load rounds: %w", err)
	}
	if ret.Races, err = loadRaces(ctx, conn, eventID); err != nil {
		return ret, fmt.Errorf("load races: %w", err)
	}
	if ret.Detections, err = collect(ctx, conn,
		`select id, race_id, pilot_id, is_holeshot, valid, time_ms
		from detection where event_id=$1 order by id`, eventID,
		func(row pgx.CollectableRow) (model.Detection, error) {
			var d model.Detection
			err := row.Scan(&d.ID, &d.Race, &d.Pilot, &d.IsHoleshot, &d.Valid, &d.Time)
			return d, err
		}); err != nil {
		return ret, fmt.Errorf("load detections: %w", err)
	}
	if ret.Laps, err = collect(ctx, conn,
		`select id, race_id, detection_id, lap_number, length_seconds, start_time, end_time
		from lap where event_id=$1 order by id`, eventID,
		func(row pgx.CollectableRow) (model.Lap, error) {
			var l model.Lap
			err := row.Scan(&l.ID, &l.Race, &l.Detection, &l.LapNumber,
				&l.LengthSeconds, &l.StartTime, &l.EndTime)
			return l, err
		}); err != nil {
		return ret, fmt.Errorf("load laps: %w", err)
	}
	if ret.KV, err = collect(ctx, conn,
		`select namespace, key, value from kv where event_id=$1 order by namespace, key`,
		eventID,
		func(row pgx.CollectableRow) (model.KVEntry, error) {
			var e model.KVEntry
			err := row.Scan(&e.Namespace, &e.Key, &e.Value)
			return e, err
		}); err != nil {
		return ret, fmt.Errorf("load kv: %w", err)
	}
	return ret, nil
}

//nolint:whitespace // editor/linter issue
func collect[T any](
	ctx context.Context,
	conn repository.Querier,
	sql string,
	eventID uuid.UUID,
	fn pgx.RowToFunc[T],
) ([]T, error) {
	rows, err := conn.Query(ctx, sql, eventID)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, fn)
}

func loadRaces(ctx context.Context, conn repository.Querier, eventID uuid.UUID) ([]model.Race, error) {
	races, err := collect(ctx, conn,
		`select id, round_id, race_order, source_id, start_ts, end_ts, target_laps, valid
		from race where event_id=$1 order by race_order, id`, eventID,
		func(row pgx.CollectableRow) (model.Race, error) {
			var r model.Race
			err := row.Scan(&r.ID, &r.Round, &r.RaceOrder, &r.SourceID,
				&r.Start, &r.End, &r.TargetLaps, &r.Valid)
			r.PilotChannels = []model.PilotChannel{}
			return r, err
		})
	if err != nil {
		return nil, err
	}
	type pcRow struct {
		raceID string
		pc     model.PilotChannel
	}
	pcs, err := collect(ctx, conn,
		`select race_id, id, pilot_id, channel_id from pilot_channel
		where event_id=$1 order by race_id, slot`, eventID,
		func(row pgx.CollectableRow) (pcRow, error) {
			var r pcRow
			err := row.Scan(&r.raceID, &r.pc.ID, &r.pc.PilotID, &r.pc.ChannelID)
			return r, err
		})
	if err != nil {
		return nil, err
	}
	idx := make(map[string]int, len(races))
	for i := range races {
		idx[races[i].ID] = i
	}
	for _, r := range pcs {
		if i, ok := idx[r.raceID]; ok {
			races[i].PilotChannels = append(races[i].PilotChannels, r.pc)
		}
	}
	return races, nil
}

// Replace deletes all records of the event and stores r. Callers should
// run this within a transaction.
//
//nolint:funlen // one statement per table
func Replace(ctx context.Context, conn repository.Querier, eventID uuid.UUID, r model.Records) error {
	b := &pgx.Batch{}
	for _, t := range tables {
		b.Queue(fmt.Sprintf("delete from %s where event_id=$1", t), eventID)
	}
	for _, p := range r.Pilots {
		b.Queue(`insert into pilot (event_id, id, name, source_id) values ($1,$2,$3,$4)`,
			eventID, p.ID, p.Name, p.SourceID)
	}
	for _, c := range r.Channels {
		b.Queue(`insert into channel (event_id, id, short_band, number, color)
			values ($1,$2,$3,$4,$5)`,
			eventID, c.ID, c.ShortBand, c.Number, c.Color)
	}
	for _, rd := range r.Rounds {
		b.Queue(`insert into round (event_id, id, name, round_number, event_type)
			values ($1,$2,$3,$4,$5)`,
			eventID, rd.ID, rd.Name, rd.Number, string(rd.EventType))
	}
	for _, race := range r.Races {
		b.Queue(`insert into race (event_id, id, round_id, race_order, source_id,
			start_ts, end_ts, target_laps, valid) values ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
			eventID, race.ID, race.Round, race.RaceOrder, race.SourceID,
			race.Start, race.End, race.TargetLaps, race.Valid)
		for slot, pc := range race.PilotChannels {
			b.Queue(`insert into pilot_channel (event_id, id, race_id, slot, pilot_id, channel_id)
				values ($1,$2,$3,$4,$5,$6)`,
				eventID, pc.ID, race.ID, slot, pc.PilotID, pc.ChannelID)
		}
	}
	for _, d := range r.Detections {
		b.Queue(`insert into detection (event_id, id, race_id, pilot_id, is_holeshot, valid, time_ms)
			values ($1,$2,$3,$4,$5,$6,$7)`,
			eventID, d.ID, d.Race, d.Pilot, d.IsHoleshot, d.Valid, d.Time)
	}
	for _, l := range r.Laps {
		b.Queue(`insert into lap (event_id, id, race_id, detection_id, lap_number,
			length_seconds, start_time, end_time) values ($1,$2,$3,$4,$5,$6,$7,$8)`,
			eventID, l.ID, l.Race, l.Detection, l.LapNumber,
			l.LengthSeconds, l.StartTime, l.EndTime)
	}
	for _, e := range r.KV {
		b.Queue(`insert into kv (event_id, namespace, key, value) values ($1,$2,$3,$4)`,
			eventID, e.Namespace, e.Key, e.Value)
	}
	return conn.SendBatch(ctx, b).Close()
}

// PutKV inserts or updates a single configuration entry.
//
//nolint:whitespace // editor/linter issue
func PutKV(
	ctx context.Context,
	conn repository.Querier,
	eventID uuid.UUID,
	e model.KVEntry,
) error {
	_, err := conn.Exec(ctx, `
	insert into kv (event_id, namespace, key, value) values ($1,$2,$3,$4)
	on conflict (event_id, namespace, key) do update set value=excluded.value
	`, eventID, e.Namespace, e.Key, e.Value)
	return err
}
