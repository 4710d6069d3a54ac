package score

import (
	"context"
	"time"

	"github.com/doug-martin/goqu/v9"

	"github.com/koustreak/racedb/internal/errs"
	"github.com/koustreak/racedb/internal/pool"
	"github.com/koustreak/racedb/internal/schema"
)

// MapInfo is a map's metadata.
type MapInfo struct {
	Map      string
	Server   string
	Mapper   string
	Points   int
	Stars    int
	Released time.Time
}

// AddMap inserts or replaces a map's metadata.
func (st *Store) AddMap(ctx context.Context, m MapInfo) error {
	if m.Map == "" {
		return errs.New(errs.ErrKindInvalidInput, "map info needs a map name")
	}
	if m.Released.IsZero() {
		m.Released = st.now()
	}

	return st.with(ctx, pool.Write, func(s session) error {
		del := s.sql.Delete(s.table(schema.TableMaps)).
			Where(goqu.C("map").Eq(m.Map)).
			Prepared(true)
		if _, err := s.exec(ctx, del); err != nil {
			return err
		}
		ins := s.sql.Insert(s.table(schema.TableMaps)).Rows(goqu.Record{
			"map":       m.Map,
			"server":    m.Server,
			"mapper":    m.Mapper,
			"points":    m.Points,
			"stars":     m.Stars,
			"timestamp": m.Released,
		}).Prepared(true)
		_, err := s.exec(ctx, ins)
		return err
	})
}

// MapInfo returns the metadata of mapName, or an ErrKindNotFound error.
func (st *Store) MapInfo(ctx context.Context, mapName string) (*MapInfo, error) {
	var m *MapInfo
	err := st.with(ctx, pool.Read, func(s session) error {
		q := s.sql.From(s.table(schema.TableMaps)).
			Select("server", "mapper", "points", "stars", "timestamp").
			Where(goqu.C("map").Eq(mapName)).
			Prepared(true)

		info := MapInfo{Map: mapName}
		if err := s.queryRow(ctx, q).Scan(&info.Server, &info.Mapper, &info.Points, &info.Stars, &info.Released); err != nil {
			return err
		}
		m = &info
		return nil
	})
	return m, err
}

// Points returns the player's total points. A player without finishes has 0.
func (st *Store) Points(ctx context.Context, name string) (int, error) {
	var points int
	err := st.with(ctx, pool.Read, func(s session) error {
		q := s.sql.From(s.table(schema.TablePoints)).
			Select("points").
			Where(goqu.C("name").Eq(name)).
			Prepared(true)

		err := s.queryRow(ctx, q).Scan(&points)
		if errs.IsNotFound(err) {
			points = 0
			return nil
		}
		return err
	})
	return points, err
}

func (s session) mapPoints(ctx context.Context, mapName string) (int, error) {
	q := s.sql.From(s.table(schema.TableMaps)).
		Select("points").
		Where(goqu.C("map").Eq(mapName)).
		Prepared(true)

	var points int
	err := s.queryRow(ctx, q).Scan(&points)
	if errs.IsNotFound(err) {
		return 0, nil
	}
	return points, err
}

// addPoints adds n to the player's total, creating the row on first use.
func (s session) addPoints(ctx context.Context, name string, n int) error {
	upd := s.sql.Update(s.table(schema.TablePoints)).
		Set(goqu.Record{"points": goqu.L("? + ?", goqu.C("points"), n)}).
		Where(goqu.C("name").Eq(name)).
		Prepared(true)
	affected, err := s.exec(ctx, upd)
	if err != nil || affected > 0 {
		return err
	}

	ins := s.sql.Insert(s.table(schema.TablePoints)).
		Rows(goqu.Record{"name": name, "points": n}).
		Prepared(true)
	_, err = s.exec(ctx, ins)
	return err
}
