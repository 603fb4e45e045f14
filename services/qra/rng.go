// Copyright (C) 2026 Cornerline Software Ltd.
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package qra

import (
	"hash/fnv"
	"math/rand/v2"
)

// Sampling protocol.
//
// Every random draw in a run is taken from a PCG stream derived purely from
// (master seed, trial index, risk id, purpose). Two purposes exist per
// (trial, risk) cell: one stream for the occurrence gate and an independent
// one for the magnitude sample. The derivation is counter-based, which buys
// three guarantees the platform's audit requirements depend on:
//
//  1. Bit-identical results for any worker count: no stream is shared
//     between trials, so sharding the trial loop cannot reorder draws.
//  2. Changing a risk's probability alone never perturbs the magnitude
//     sequence used when the risk does occur, and never perturbs any other
//     risk's draws.
//  3. Streams are keyed by risk id rather than register position, so adding
//     or removing one entry (e.g. a probability-0 risk) leaves every other
//     risk's draws unchanged.

// Stream purposes. Distinct salts keep the occurrence and magnitude streams
// statistically independent.
const (
	purposeOccurrence uint64 = 0xA24BAED4963EE407
	purposeMagnitude  uint64 = 0x9FB21C651E98DF25
)

// splitmix64 is the finalizer from the SplitMix64 generator. It disperses
// low-entropy trial counters across the full 64-bit state space before they
// seed a PCG stream.
func splitmix64(x uint64) uint64 {
	x += 0x9E3779B97F4A7C15
	x = (x ^ (x >> 30)) * 0xBF58476D1CE4E5B9
	x = (x ^ (x >> 27)) * 0x94D049BB133111EB
	return x ^ (x >> 31)
}

// riskStreamKey hashes a register id into the 64-bit key that selects the
// risk's stream family. FNV-1a keeps the key stable across runs and across
// register reorderings.
func riskStreamKey(riskID string) uint64 {
	h := fnv.New64a()
	h.Write([]byte(riskID))
	return h.Sum64()
}

// deriveStream returns the deterministic PCG stream for one
// (trial, risk, purpose) triple under the given master seed.
func deriveStream(seed uint64, trial int, riskKey, purpose uint64) *rand.Rand {
	return rand.New(rand.NewPCG(
		splitmix64(seed^purpose),
		splitmix64(uint64(trial))^riskKey^purpose,
	))
}

// occurrenceStream returns the Bernoulli-gate stream for one trial cell.
func occurrenceStream(seed uint64, trial int, riskKey uint64) *rand.Rand {
	return deriveStream(seed, trial, riskKey, purposeOccurrence)
}

// magnitudeStream returns the magnitude-sampling stream for one trial cell.
func magnitudeStream(seed uint64, trial int, riskKey uint64) *rand.Rand {
	return deriveStream(seed, trial, riskKey, purposeMagnitude)
}

// freshSeed draws a non-deterministic seed for runs that did not supply
// one. The drawn value is recorded in the result metadata so the run stays
// replayable.
func freshSeed() int64 {
	return int64(rand.Uint64())
}
