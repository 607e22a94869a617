// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package magcal

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

const (
	// A calibrated unit vector component counts towards a direction bin
	// when its magnitude exceeds this threshold (≈ sin 22.5°).
	binThreshold  = 0.38
	directionBins = 26

	// Relative norm spread at which sphericity drops to zero.
	sphericityCVBad = 0.1

	confFloor = 0.05
)

// Quality summarises how well a transform flattens the fitting samples onto
// the target sphere and how much of the sphere the samples cover.
type Quality struct {
	NormMean    float64 `json:"norm_mean"`
	NormStdDev  float64 `json:"norm_stddev"`
	MaxRelError float64 `json:"max_rel_error"`
	Coverage    float64 `json:"coverage"`   // fraction of the 26 direction bins hit
	Confidence  float64 `json:"confidence"` // 0..1
}

// Evaluate applies t to the samples and scores the result against field.
func Evaluate(samples FrozenSamples, t Transform, field float64) Quality {
	n := samples.Len()
	if n == 0 || !(field > 0) {
		return Quality{Confidence: confFloor}
	}

	norms := make([]float64, 0, n)
	hit := make(map[[3]int8]struct{}, directionBins)
	var maxRel float64
	samples.Each(func(raw Vec3) {
		c := t.Apply(raw)
		norm := c.Norm()
		norms = append(norms, norm)
		if rel := math.Abs(norm-field) / field; rel > maxRel {
			maxRel = rel
		}
		if norm > 0 {
			hit[directionBin(c, norm)] = struct{}{}
		}
	})

	mean, sd := meanStd(norms)
	q := Quality{
		NormMean:    mean,
		NormStdDev:  sd,
		MaxRelError: maxRel,
		Coverage:    float64(len(hit)) / directionBins,
	}

	sphericity := confFloor
	if mean > 0 {
		sphericity = clamp01(1.0 - (sd/mean)/sphericityCVBad)
	}
	q.Confidence = clamp01(0.55*q.Coverage + 0.45*sphericity)
	if q.Confidence < confFloor {
		q.Confidence = confFloor
	}
	return q
}

func directionBin(c Vec3, norm float64) [3]int8 {
	var bin [3]int8
	for i := range c {
		u := c[i] / norm
		switch {
		case u > binThreshold:
			bin[i] = 1
		case u < -binThreshold:
			bin[i] = -1
		}
	}
	return bin
}

// meanStd returns the mean and the sample (n−1) standard deviation of xs.
func meanStd(xs []float64) (mean float64, sd float64) {
	switch len(xs) {
	case 0:
		return 0, 0
	case 1:
		return xs[0], 0
	}
	return stat.MeanStdDev(xs, nil)
}

func clamp01(x float64) float64 {
	if x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}
