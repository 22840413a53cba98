// Copyright (c) 2024 The illium developers
// Use of this source code is governed by an MIT
// license that can be found in the LICENSE file.

package mock

import (
	"context"
	"testing"

	datastore "github.com/ipfs/go-datastore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMapDatastorePutGetDelete(t *testing.T) {
	ds := NewMapDatastore()
	ctx := context.Background()
	key := datastore.NewKey("/tip")

	require.NoError(t, ds.Put(ctx, key, []byte("hash-bytes")))

	got, err := ds.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, []byte("hash-bytes"), got)

	require.NoError(t, ds.Delete(ctx, key))
	_, err = ds.Get(ctx, key)
	assert.Error(t, err)
}

func TestMapDatastoreTransactionCommit(t *testing.T) {
	ds := NewMapDatastore()
	ctx := context.Background()

	txn, err := ds.NewTransaction(ctx, false)
	require.NoError(t, err)

	key := datastore.NewKey("/staged")
	require.NoError(t, txn.Put(ctx, key, []byte("v")))

	// Not visible until commit.
	_, err = ds.Get(ctx, key)
	assert.Error(t, err)

	require.NoError(t, txn.Commit(ctx))
	got, err := ds.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), got)
}

func TestMapDatastoreReadOnlyTransactionRejectsWrites(t *testing.T) {
	ds := NewMapDatastore()
	ctx := context.Background()

	txn, err := ds.NewTransaction(ctx, true)
	require.NoError(t, err)

	err = txn.Put(ctx, datastore.NewKey("/x"), []byte("y"))
	assert.Error(t, err)
}
