package score

import (
	"context"
	"fmt"
	"time"

	"github.com/doug-martin/goqu/v9"
	"github.com/google/uuid"

	"github.com/koustreak/racedb/internal/errs"
	"github.com/koustreak/racedb/internal/pool"
	"github.com/koustreak/racedb/internal/schema"
)

// RaceResult is one player's finish on a map.
type RaceResult struct {
	Map         string
	Name        string
	Time        float64
	Checkpoints [schema.NumCheckpoints]float64
	Server      string
	GameID      string
	DDNet7      bool
	Timestamp   time.Time
}

// TeamResult is a team's finish on a map. Every member gets a row sharing
// one team id.
type TeamResult struct {
	Map       string
	Names     []string
	Time      float64
	GameID    string
	DDNet7    bool
	Timestamp time.Time
}

// Rank is a player's position on a map's leaderboard.
type Rank struct {
	Rank int
	Name string
	Time float64
}

// SaveRace records a finish. On the player's first finish of a map the
// map's points are added to the player's total. A finish kept in the
// write backup awards no points.
func (st *Store) SaveRace(ctx context.Context, r RaceResult) error {
	if r.Map == "" || r.Name == "" {
		return errs.New(errs.ErrKindInvalidInput, "race result needs map and name")
	}
	if r.Timestamp.IsZero() {
		r.Timestamp = st.now()
	}

	rec := goqu.Record{
		"map":       r.Map,
		"name":      r.Name,
		"timestamp": r.Timestamp,
		"time":      r.Time,
		"server":    r.Server,
		"game_id":   r.GameID,
		"ddnet7":    r.DDNet7,
	}
	for i, cp := range r.Checkpoints {
		rec[schema.CheckpointColumn(i+1)] = cp
	}
	insert := func(s session) error {
		_, err := s.exec(ctx, s.sql.Insert(s.table(schema.TableRace)).Rows(rec).Prepared(true))
		return err
	}

	return st.write(ctx, func(s session) error {
		finished, err := s.hasFinished(ctx, r.Map, r.Name)
		if err != nil {
			return err
		}
		if err := insert(s); err != nil {
			return err
		}
		if finished {
			return nil
		}
		points, err := s.mapPoints(ctx, r.Map)
		if err != nil || points == 0 {
			return err
		}
		return s.addPoints(ctx, r.Name, points)
	}, insert)
}

// SaveTeamRace records a team finish and returns the new team id.
func (st *Store) SaveTeamRace(ctx context.Context, r TeamResult) (uuid.UUID, error) {
	if r.Map == "" || len(r.Names) == 0 {
		return uuid.Nil, errs.New(errs.ErrKindInvalidInput, "team result needs map and members")
	}
	if r.Timestamp.IsZero() {
		r.Timestamp = st.now()
	}
	id := uuid.New()

	rows := make([]interface{}, 0, len(r.Names))
	for _, name := range r.Names {
		rows = append(rows, goqu.Record{
			"map":       r.Map,
			"name":      name,
			"timestamp": r.Timestamp,
			"time":      r.Time,
			"id":        id[:],
			"game_id":   r.GameID,
			"ddnet7":    r.DDNet7,
		})
	}

	insert := func(s session) error {
		_, err := s.exec(ctx, s.sql.Insert(s.table(schema.TableTeamrace)).Rows(rows...).Prepared(true))
		return err
	}
	err := st.write(ctx, insert, insert)
	if err != nil {
		return uuid.Nil, err
	}
	return id, nil
}

// TopRanks returns the best time of each player on mapName, fastest first.
// Equal times share a rank.
func (st *Store) TopRanks(ctx context.Context, mapName string, limit int) ([]Rank, error) {
	if limit <= 0 {
		return nil, errs.New(errs.ErrKindInvalidInput, fmt.Sprintf("invalid limit %d", limit))
	}

	var ranks []Rank
	err := st.with(ctx, pool.Read, func(s session) error {
		q := s.sql.From(s.table(schema.TableRace)).
			Select(goqu.C("name"), goqu.MIN("time").As("best")).
			Where(goqu.C("map").Eq(mapName)).
			GroupBy(goqu.C("name")).
			Order(goqu.C("best").Asc(), goqu.C("name").Asc()).
			Limit(uint(limit)).
			Prepared(true)

		rows, err := s.query(ctx, q)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			var r Rank
			if err := rows.Scan(&r.Name, &r.Time); err != nil {
				return err
			}
			r.Rank = len(ranks) + 1
			if n := len(ranks); n > 0 && ranks[n-1].Time == r.Time {
				r.Rank = ranks[n-1].Rank
			}
			ranks = append(ranks, r)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return ranks, nil
}

func (s session) hasFinished(ctx context.Context, mapName, name string) (bool, error) {
	q := s.sql.From(s.table(schema.TableRace)).
		Select(goqu.COUNT(goqu.Star())).
		Where(goqu.C("map").Eq(mapName), goqu.C("name").Eq(name)).
		Prepared(true)

	var n int64
	if err := s.queryRow(ctx, q).Scan(&n); err != nil {
		return false, err
	}
	return n > 0, nil
}
