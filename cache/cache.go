// Package cache memoizes the result of processing a dataset file, keyed explicitly by the file path and
// every parameter that affects the result.
//
// Usage:
//
//	key := cache.Key{Path: "data/train.json", Postfix: "sliding", DocStride: 64, MaxSenLen: 384, MaxQueryLength: 64}
//	records, err := cache.Lookup(store, key, func() ([]squad.Record, error) {
//		return process("data/train.json")
//	})
//
// A cache entry that is missing, unreadable or corrupt is a miss: the value is recomputed and stored
// again. Failures writing the cache are logged and otherwise ignored: the cache never fails the caller.
package cache

import (
	"bytes"
	"encoding/gob"
	"fmt"

	"github.com/gomlx/bertdata/internal/files"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// ErrNotFound is returned by Store.Get when there is no entry for the key.
var ErrNotFound = errors.New("cache entry not found")

// Key identifies a cache entry.
type Key struct {
	// Path of the dataset file processed.
	Path string

	// Postfix distinguishes different processing of the same file (e.g.: "sliding" and "no_sliding").
	Postfix string

	DocStride, MaxSenLen, MaxQueryLength int
}

// String returns "<path without extension>_<postfix>_<doc_stride>_<max_sen_len>_<max_query_length>".
// It's used to name the entries, so it must differ for keys that differ.
func (k Key) String() string {
	return fmt.Sprintf("%s_%s_%d_%d_%d", files.TrimExt(k.Path), k.Postfix, k.DocStride, k.MaxSenLen, k.MaxQueryLength)
}

// Store persists encoded cache entries.
//
// Implementations must be safe to call from multiple goroutines.
type Store interface {
	// Get returns the entry for the key, or ErrNotFound.
	Get(key Key) ([]byte, error)

	// Put stores the entry for the key, replacing any previous one.
	Put(key Key, data []byte) error
}

// NopStore never finds anything and discards what is stored: it disables caching.
type NopStore struct{}

// Get implements Store.
func (NopStore) Get(Key) ([]byte, error) { return nil, ErrNotFound }

// Put implements Store.
func (NopStore) Put(Key, []byte) error { return nil }

const (
	envelopeMagic   = "bertdata-cache"
	envelopeVersion = 1
)

// envelope wraps the gob-encoded value with enough information to reject entries written by something
// else, by an older version, or for another key (e.g.: a file moved around).
type envelope struct {
	Magic   string
	Version int
	Key     Key
	Payload []byte
}

// Encode serializes value as a cache entry for key.
func Encode[T any](key Key, value T) ([]byte, error) {
	var payload bytes.Buffer
	if err := gob.NewEncoder(&payload).Encode(value); err != nil {
		return nil, errors.Wrapf(err, "failed to encode cache value for %s", key)
	}
	var buf bytes.Buffer
	env := envelope{Magic: envelopeMagic, Version: envelopeVersion, Key: key, Payload: payload.Bytes()}
	if err := gob.NewEncoder(&buf).Encode(&env); err != nil {
		return nil, errors.Wrapf(err, "failed to encode cache entry for %s", key)
	}
	return buf.Bytes(), nil
}

// Decode parses a cache entry created by Encode, checking it was created for key.
func Decode[T any](key Key, data []byte) (value T, err error) {
	var env envelope
	if err = gob.NewDecoder(bytes.NewReader(data)).Decode(&env); err != nil {
		err = errors.Wrap(err, "failed to decode cache entry")
		return
	}
	if env.Magic != envelopeMagic || env.Version != envelopeVersion {
		err = errors.Errorf("invalid cache entry: magic=%q, version=%d", env.Magic, env.Version)
		return
	}
	if env.Key != key {
		err = errors.Errorf("cache entry is for %s, not %s", env.Key, key)
		return
	}
	if err = gob.NewDecoder(bytes.NewReader(env.Payload)).Decode(&value); err != nil {
		err = errors.Wrapf(err, "failed to decode cache value for %s", key)
	}
	return
}

// Lookup returns the value cached in store for key, or calls compute and caches its result.
//
// Only errors from compute are returned.
func Lookup[T any](store Store, key Key, compute func() (T, error)) (T, error) {
	if store == nil {
		store = NopStore{}
	}
	data, err := store.Get(key)
	switch {
	case err == nil:
		value, err := Decode[T](key, data)
		if err == nil {
			klog.Infof("cache: %s found, loaded from cache", key)
			return value, nil
		}
		klog.Warningf("cache: %s is corrupt, processing again: %+v", key, err)
	case errors.Is(err, ErrNotFound):
		klog.Infof("cache: %s not found, processing and caching", key)
	default:
		klog.Warningf("cache: failed to read %s, processing again: %+v", key, err)
	}

	value, err := compute()
	if err != nil {
		var zero T
		return zero, err
	}
	data, err = Encode(key, value)
	if err != nil {
		klog.Warningf("cache: %+v", err)
		return value, nil
	}
	if err = store.Put(key, data); err != nil {
		klog.Warningf("cache: failed to write %s: %+v", key, err)
	}
	return value, nil
}
