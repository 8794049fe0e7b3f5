// Package testutil provides testing utilities for romper.
//
// This package is intended for use in tests only.
//
// # Seeding
//
//	rng := testutil.NewRNG(seed)
//	samples := testutil.SeedBucket(t, db, model.Bucket("A0", 1), 100, 200, 300)
//	payload := rng.Payload()
//
// # Invariants
//
//	testutil.AssertBucketInvariants(t, samples)
//	testutil.AssertStoreInvariants(t, db)
package testutil
