// Copyright (C) 2026 Cornerline Software Ltd.
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package qra

import (
	"math"
	"slices"
)

// SummaryStats is the aggregated view of one run's iteration totals.
type SummaryStats struct {
	P10             float64
	P50             float64
	P90             float64
	Mean            float64
	StdDev          float64
	TargetValue     float64
	PercentileTable []PercentileEntry
	Distribution    []HistogramBucket
}

// summarize turns the iteration-total vector into the percentile table,
// moments and histogram reported on the result.
//
// Percentiles use sorted-rank linear interpolation (rank = p/100 * (n-1)),
// the same rule for P10/P50/P90, the target value and every table entry, so
// the figures are mutually consistent. StdDev is Bessel-corrected. The
// histogram covers [min(totals), max(totals)] with a width rounded to a
// "nice" number relative to the data range.
//
// totals must be non-empty; the engine guarantees this (iterations > 0).
func summarize(totals []float64, targetPercentile float64, table []float64, bucketTarget int) SummaryStats {
	sorted := make([]float64, len(totals))
	copy(sorted, totals)
	slices.Sort(sorted)

	mean, stdDev := moments(totals)

	entries := make([]PercentileEntry, len(table))
	for i, p := range table {
		entries[i] = PercentileEntry{Percentile: p, Value: percentile(sorted, p)}
	}

	return SummaryStats{
		P10:             percentile(sorted, 10),
		P50:             percentile(sorted, 50),
		P90:             percentile(sorted, 90),
		Mean:            mean,
		StdDev:          stdDev,
		TargetValue:     percentile(sorted, targetPercentile),
		PercentileTable: entries,
		Distribution:    histogram(sorted, bucketTarget),
	}
}

// percentile returns the value at p (0-100) of an ascending-sorted slice
// using linear interpolation between the two nearest ranks.
func percentile(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 1 {
		return sorted[0]
	}
	rank := p / 100 * float64(n-1)
	lo := int(math.Floor(rank))
	hi := int(math.Ceil(rank))
	if lo < 0 {
		return sorted[0]
	}
	if hi >= n {
		return sorted[n-1]
	}
	if lo == hi {
		return sorted[lo]
	}
	frac := rank - float64(lo)
	return sorted[lo] + frac*(sorted[hi]-sorted[lo])
}

// moments returns the sample mean and the Bessel-corrected sample standard
// deviation. The variance pass subtracts the mean first to stay stable over
// large sample counts with large magnitudes.
func moments(values []float64) (mean, stdDev float64) {
	n := float64(len(values))
	var sum float64
	for _, v := range values {
		sum += v
	}
	mean = sum / n

	if len(values) < 2 {
		return mean, 0
	}
	var ss float64
	for _, v := range values {
		d := v - mean
		ss += d * d
	}
	return mean, math.Sqrt(ss / (n - 1))
}

// sampleVariance is the Bessel-corrected variance, shared with the
// sensitivity analyzer so both report in the same units.
func sampleVariance(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}
	n := float64(len(values))
	var sum float64
	for _, v := range values {
		sum += v
	}
	mean := sum / n
	var ss float64
	for _, v := range values {
		d := v - mean
		ss += d * d
	}
	return ss / (n - 1)
}

// histogram buckets the sorted totals. The width is the data range divided
// by the target count, rounded up to a nice number (1, 2, 2.5 or 5 times a
// power of ten), anchored at min(totals) so no value falls outside the
// first or last bucket.
func histogram(sorted []float64, bucketTarget int) []HistogramBucket {
	min := sorted[0]
	max := sorted[len(sorted)-1]

	if min == max {
		return []HistogramBucket{{BucketStart: min, BucketEnd: max, Count: len(sorted)}}
	}

	width := niceWidth((max - min) / float64(bucketTarget))
	count := int(math.Ceil((max - min) / width))
	if count < 1 {
		count = 1
	}

	buckets := make([]HistogramBucket, count)
	for i := range buckets {
		buckets[i].BucketStart = min + float64(i)*width
		buckets[i].BucketEnd = min + float64(i+1)*width
	}
	// Close the last bucket on the true maximum.
	buckets[count-1].BucketEnd = math.Max(buckets[count-1].BucketEnd, max)

	for _, v := range sorted {
		idx := int((v - min) / width)
		if idx >= count {
			idx = count - 1
		}
		buckets[idx].Count++
	}
	return buckets
}

// niceWidth rounds w up to 1, 2, 2.5 or 5 times a power of ten.
func niceWidth(w float64) float64 {
	if w <= 0 {
		return 1
	}
	exp := math.Floor(math.Log10(w))
	base := math.Pow(10, exp)
	frac := w / base
	var nice float64
	switch {
	case frac <= 1:
		nice = 1
	case frac <= 2:
		nice = 2
	case frac <= 2.5:
		nice = 2.5
	case frac <= 5:
		nice = 5
	default:
		nice = 10
	}
	return nice * base
}
