package client

import (
	"encoding/json"

	"github.com/pkg/errors"
	bolt "go.etcd.io/bbolt"

	"github.com/trezcool/darasa/core/user"
)

var (
	cacheBucket     = []byte("session")
	cacheTokenKey   = []byte("token")
	cacheProfileKey = []byte("profile")
)

// Cache is the on-disk session cache: the token and last known profile
// survive process restarts. Values are written whole; a profile is never
// patched in place.
type Cache struct {
	db *bolt.DB
}

func OpenCache(path string) (*Cache, error) {
	db, err := bolt.Open(path, 0o600, nil)
	if err != nil {
		return nil, errors.Wrap(err, "opening cache db")
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(cacheBucket)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "creating cache bucket")
	}
	return &Cache{db: db}, nil
}

func (c *Cache) Token() string {
	var token string
	_ = c.db.View(func(tx *bolt.Tx) error {
		token = string(tx.Bucket(cacheBucket).Get(cacheTokenKey))
		return nil
	})
	return token
}

func (c *Cache) SetToken(token string) error {
	err := c.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(cacheBucket).Put(cacheTokenKey, []byte(token))
	})
	return errors.Wrap(err, "writing token")
}

func (c *Cache) Profile() (user.Profile, bool) {
	var profile user.Profile
	var found bool
	_ = c.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(cacheBucket).Get(cacheProfileKey)
		if data == nil {
			return nil
		}
		if err := json.Unmarshal(data, &profile); err == nil {
			found = true
		}
		return nil
	})
	return profile, found
}

func (c *Cache) SetProfile(profile user.Profile) error {
	data, err := json.Marshal(profile)
	if err != nil {
		return errors.Wrap(err, "encoding profile")
	}
	err = c.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(cacheBucket).Put(cacheProfileKey, data)
	})
	return errors.Wrap(err, "writing profile")
}

func (c *Cache) Clear() error {
	err := c.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(cacheBucket)
		if err := b.Delete(cacheTokenKey); err != nil {
			return err
		}
		return b.Delete(cacheProfileKey)
	})
	return errors.Wrap(err, "clearing cache")
}

func (c *Cache) Close() error {
	return c.db.Close()
}
