package score

import (
	"context"
	"strings"
	"time"

	"github.com/doug-martin/goqu/v9"
	"github.com/google/uuid"

	"github.com/koustreak/racedb/internal/errs"
	"github.com/koustreak/racedb/internal/pool"
	"github.com/koustreak/racedb/internal/schema"
)

// SavedGame is a team's saved state, identified by map and code.
type SavedGame struct {
	Map       string
	Code      string
	Data      string
	Server    string
	DDNet7    bool
	SaveID    uuid.UUID
	Timestamp time.Time
}

// SaveGame stores g under its map and code and returns the save id. A code
// already used on the map is rejected with ErrKindInvalidInput. While the
// write database is down the save is kept in the write backup.
func (st *Store) SaveGame(ctx context.Context, g SavedGame) (uuid.UUID, error) {
	if g.Map == "" || g.Code == "" {
		return uuid.Nil, errs.New(errs.ErrKindInvalidInput, "saved game needs map and code")
	}
	if g.Timestamp.IsZero() {
		g.Timestamp = st.now()
	}
	if g.SaveID == uuid.Nil {
		g.SaveID = uuid.New()
	}

	save := func(s session) error {
		_, err := s.loadGame(ctx, g.Map, g.Code)
		switch {
		case err == nil:
			return errs.New(errs.ErrKindInvalidInput, "save code already in use on this map")
		case !errs.IsNotFound(err):
			return err
		}

		ins := s.sql.Insert(s.table(schema.TableSaves)).Rows(goqu.Record{
			"savegame":  g.Data,
			"map":       g.Map,
			"code":      g.Code,
			"timestamp": g.Timestamp,
			"server":    g.Server,
			"ddnet7":    g.DDNet7,
			"save_id":   g.SaveID.String(),
		}).Prepared(true)
		_, err = s.exec(ctx, ins)
		return err
	}
	if err := st.write(ctx, save, save); err != nil {
		return uuid.Nil, err
	}
	return g.SaveID, nil
}

// LoadGame returns the game saved under code on mapName, or an
// ErrKindNotFound error.
func (st *Store) LoadGame(ctx context.Context, mapName, code string) (*SavedGame, error) {
	var g *SavedGame
	err := st.with(ctx, pool.Read, func(s session) error {
		var err error
		g, err = s.loadGame(ctx, mapName, code)
		return err
	})
	return g, err
}

func (s session) loadGame(ctx context.Context, mapName, code string) (*SavedGame, error) {
	q := s.sql.From(s.table(schema.TableSaves)).
		Select("savegame", "server", "ddnet7", "save_id", "timestamp").
		Where(goqu.C("map").Eq(mapName), goqu.C("code").Eq(code)).
		Prepared(true)

	g := SavedGame{Map: mapName, Code: code}
	var saveID string
	if err := s.queryRow(ctx, q).Scan(&g.Data, &g.Server, &g.DDNet7, &saveID, &g.Timestamp); err != nil {
		return nil, err
	}
	// CHAR columns come back blank-padded on PostgreSQL.
	g.Server = strings.TrimRight(g.Server, " ")
	id, err := uuid.Parse(saveID)
	if err != nil {
		return nil, errs.Wrap(errs.ErrKindQueryFailed, "stored save id is malformed", err)
	}
	g.SaveID = id
	return &g, nil
}

// DeleteGame removes a loaded save so its code can be reused.
func (st *Store) DeleteGame(ctx context.Context, mapName, code string) error {
	return st.with(ctx, pool.Write, func(s session) error {
		del := s.sql.Delete(s.table(schema.TableSaves)).
			Where(goqu.C("map").Eq(mapName), goqu.C("code").Eq(code)).
			Prepared(true)
		n, err := s.exec(ctx, del)
		if err != nil {
			return err
		}
		if n == 0 {
			return errs.New(errs.ErrKindNotFound, "no save with this code on the map")
		}
		return nil
	})
}
