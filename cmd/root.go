package cmd

import (
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/pwafit/pwafit/pwa"
	"github.com/pwafit/pwafit/pwa/data"
)

var (
	// Shared flags
	logLevel      string // Log verbosity level
	modelPath     string // YAML model description (kinematics + intensity)
	particlesPath string // YAML particle-properties table
	seed          int64  // Master seed for all random draws

	// generate flags
	sampleSize int    // Number of events to generate
	outPath    string // Output CSV path
	flat       bool   // Flat phase space instead of model-weighted

	// fit flags
	dataPath      string // Input data sample (CSV)
	phspPath      string // Optional phase-space sample for normalization
	phspSize      int    // Size of the generated normalization sample
	maxIterations int    // Minimizer iteration budget
	tolerance     float64
)

// rootCmd is the base command for the CLI
var rootCmd = &cobra.Command{
	Use:   "pwafit",
	Short: "Amplitude-analysis engine: intensity fits and event generation",
}

// setupLogging parses the --log flag; invalid levels are fatal.
func setupLogging() {
	level, err := logrus.ParseLevel(logLevel)
	if err != nil {
		logrus.Fatalf("Invalid log level: %s", logLevel)
	}
	logrus.SetLevel(level)
}

// buildModel loads the particle table and model description and compiles
// kinematics + intensity from them.
func buildModel() (*pwa.HelicityKinematics, *pwa.GraphIntensity) {
	table, err := pwa.LoadParticleTable(particlesPath)
	if err != nil {
		logrus.Fatalf("%v", err)
	}
	md, err := pwa.LoadModelDescription(modelPath)
	if err != nil {
		logrus.Fatalf("%v", err)
	}
	kin, err := pwa.NewKinematicsFromModel(md, table)
	if err != nil {
		logrus.Fatalf("%v", err)
	}
	intensity, err := pwa.BuildIntensity(md, kin)
	if err != nil {
		logrus.Fatalf("%v", err)
	}
	return kin, intensity
}

// generateCmd produces a phase-space or model-weighted event sample.
var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate a phase-space or model-weighted event sample",
	Run: func(cmd *cobra.Command, args []string) {
		setupLogging()
		kin, intensity := buildModel()

		gen, err := pwa.NewRauboldLynchGenerator(kin.Transition())
		if err != nil {
			logrus.Fatalf("%v", err)
		}
		rng := pwa.NewPartitionedRNG(seed)
		eg := pwa.NewEventGenerator(kin, gen, rng.ForSubsystem(pwa.SubsystemPhaseSpace), pwa.GeneratorConfig{})

		var events pwa.EventList
		if flat {
			events, err = eg.GeneratePhsp(sampleSize)
		} else {
			events, err = eg.Generate(sampleSize, intensity)
		}
		if err != nil {
			logrus.Fatalf("%v", err)
		}
		if err := data.WriteEvents(outPath, events); err != nil {
			logrus.Fatalf("%v", err)
		}
		logrus.Infof("Wrote %d events to %s", len(events), outPath)
	},
}

// fitCmd runs an intensity fit against a data sample.
var fitCmd = &cobra.Command{
	Use:   "fit",
	Short: "Fit the model's free parameters to a data sample",
	Run: func(cmd *cobra.Command, args []string) {
		setupLogging()
		kin, intensity := buildModel()

		events, err := data.ReadEvents(dataPath)
		if err != nil {
			logrus.Fatalf("%v", err)
		}
		dataSet, err := pwa.ConvertEventsToDataSet(events, kin)
		if err != nil {
			logrus.Fatalf("%v", err)
		}

		var phspEvents pwa.EventList
		if phspPath != "" {
			phspEvents, err = data.ReadEvents(phspPath)
			if err != nil {
				logrus.Fatalf("%v", err)
			}
		} else {
			gen, err := pwa.NewRauboldLynchGenerator(kin.Transition())
			if err != nil {
				logrus.Fatalf("%v", err)
			}
			rng := pwa.NewPartitionedRNG(seed)
			eg := pwa.NewEventGenerator(kin, gen, rng.ForSubsystem(pwa.SubsystemPhaseSpace), pwa.GeneratorConfig{})
			phspEvents, err = eg.GeneratePhsp(phspSize)
			if err != nil {
				logrus.Fatalf("%v", err)
			}
		}
		phspSet, err := pwa.ConvertEventsToDataSet(phspEvents, kin)
		if err != nil {
			logrus.Fatalf("%v", err)
		}

		est, err := pwa.NewNormalizedMinLogLH(intensity, dataSet, phspSet, kin.PhspVolume())
		if err != nil {
			logrus.Fatalf("%v", err)
		}
		minimizer := pwa.NewMinimizer(pwa.NewFitConfig(maxIterations, tolerance))
		result, err := minimizer.Optimize(est, intensity.Parameters())
		if err != nil {
			logrus.Fatalf("%v", err)
		}
		result.Print()
	},
}

// Execute runs the CLI root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// init sets up CLI flags and subcommands
func init() {
	for _, c := range []*cobra.Command{generateCmd, fitCmd} {
		c.Flags().StringVar(&logLevel, "log", "info", "Log level (trace, debug, info, warn, error, fatal, panic)")
		c.Flags().StringVar(&modelPath, "model", "", "YAML model description with kinematics and intensity sections")
		c.Flags().StringVar(&particlesPath, "particles", "", "YAML particle-properties table")
		c.Flags().Int64Var(&seed, "seed", 42, "Master seed for all random draws")
	}

	generateCmd.Flags().IntVar(&sampleSize, "n", 1000, "Number of events to generate")
	generateCmd.Flags().StringVar(&outPath, "out", "events.csv", "Output CSV path")
	generateCmd.Flags().BoolVar(&flat, "flat", false, "Generate flat phase space instead of model-weighted events")

	fitCmd.Flags().StringVar(&dataPath, "data", "", "Data sample to fit (CSV)")
	fitCmd.Flags().StringVar(&phspPath, "phsp", "", "Phase-space sample for normalization (CSV); generated when omitted")
	fitCmd.Flags().IntVar(&phspSize, "phsp-size", 10000, "Size of the generated normalization sample")
	fitCmd.Flags().IntVar(&maxIterations, "max-iterations", 0, "Minimizer iteration budget (0 = default)")
	fitCmd.Flags().Float64Var(&tolerance, "tolerance", 0, "Objective-change tolerance (0 = default)")

	rootCmd.AddCommand(generateCmd)
	rootCmd.AddCommand(fitCmd)
}
