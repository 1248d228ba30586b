package storage

import (
	"encoding/json"

	"github.com/tidwall/buntdb"
)

// Storable is anything that can be kept in the bunt database under its own
// key as a JSON document.
type Storable interface {
	Key() string
}

type DB struct {
	*buntdb.DB
}

func NewBunt(file string) *DB {
	db, err := buntdb.Open(file)
	if err != nil {
		panic(err)
	}
	return &DB{DB: db}
}

func (db *DB) Get(s Storable) error {
	return db.View(func(tx *buntdb.Tx) error {
		val, err := tx.Get(s.Key())
		if err != nil {
			return err
		}
		return json.Unmarshal([]byte(val), s)
	})
}

func (db *DB) Set(s Storable) error {
	raw, err := json.Marshal(s)
	if err != nil {
		return err
	}
	return db.Update(func(tx *buntdb.Tx) error {
		_, _, err := tx.Set(s.Key(), string(raw), nil)
		return err
	})
}

func (db *DB) Delete(key string, s Storable) error {
	return db.Update(func(tx *buntdb.Tx) error {
		_, err := tx.Delete(key)
		return err
	})
}
