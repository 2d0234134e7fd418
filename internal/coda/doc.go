// Package coda is the root of the coda-wave calibration core.
//
// Subpackages, leaves first:
//
//   - model: data contracts (bands, shared parameters, waveforms, picks,
//     measurements).
//   - geo: ellipsoidal event-station distance.
//   - timeseries: the mutable envelope time-series used by every stage.
//   - synthetic: the closed-form coda amplitude model and the synthetic
//     envelope generator.
//   - waveform: noise-window extraction and peak location.
//   - picker: the consensus coda end-time picker.
//   - fit: distance-curve fitting (optimizer with grid-search fallback) and
//     per-envelope straight-line fits.
//   - velocity: peak group-velocity measurements per waveform.
//   - shape: per-waveform decay (beta, gamma) measurements.
//   - autopick: automatic coda start/end picks.
//   - calibration: the end-to-end run that refines a band parameter map.
//   - scenario: deterministic synthetic datasets for exercising the pipeline.
//   - diagplot: PNG diagnostics of fitted curves and envelopes.
//
// Dependency rule: a package may import only packages listed above it.
// Nothing below calibration holds state between calls; the band parameter
// map handed to the fit operations is owned by a single writer.
package coda
