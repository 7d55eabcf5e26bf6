// Package pwa provides the core amplitude-analysis engine: kinematics
// conversion, computation-graph intensities, likelihood estimation,
// numerical minimization and event generation.
//
// # Reading Guide
//
// Start with these three files to understand the evaluation pipeline:
//   - kinematics.go: Event -> DataPoint conversion and the subsystem table
//   - graph.go: the node-arena computation graph behind every Intensity
//   - estimator.go + optimizer.go: negative log-likelihood and the fit driver
//
// # Architecture
//
// Everything is a synchronous, call-and-return pipeline. A Kinematics owns a
// deduplicated SubSystem table and converts raw events into named invariant
// variables. An Intensity is compiled once from a ModelDescription into a
// Graph whose parameter leaves are mutable in place; re-evaluating after a
// parameter update never rebuilds the graph. A MinLogLH turns per-event
// intensities into a scalar objective, and a Minimizer drives gonum's
// Nelder-Mead over the free parameters, producing a FitResult.
//
// Event generation lives in phsp.go and generate.go: a Raubold-Lynch n-body
// phase-space generator behind the PhaseSpaceGenerator interface, plus flat,
// model-weighted (accept-reject) and importance-sampled sampling entry
// points. All randomness flows through the UniformGenerator interface so a
// run is reproducible from a single seed.
//
// # Key Interfaces
//
// The extension points are small interfaces:
//   - Kinematics: Convert, VariableNames, PhspVolume, Transition
//   - Intensity: Evaluate, UpdateParametersFrom, Parameters, Print
//   - Estimator: Evaluate
//   - PhaseSpaceGenerator: Generate, MaxWeight
//   - UniformGenerator: Float64
package pwa
