package dispatch

import (
	"errors"
	"io"
	"strings"

	"github.com/spf13/pflag"

	"github.com/ThatCatDev/tanrenai/estimator/internal/environment"
	"github.com/ThatCatDev/tanrenai/estimator/internal/training"
)

// ParseTrainingConfig resolves the training configuration from env defaults
// and args. It returns the arguments it did not recognize.
func ParseTrainingConfig(env *environment.Environment, args []string) (training.Config, []string, error) {
	return parseTrainingConfig(env, args, io.Discard)
}

func parseTrainingConfig(env *environment.Environment, args []string, out io.Writer) (training.Config, []string, error) {
	var cfg training.Config

	trainDir, err := env.Channel("train")
	if err != nil {
		return cfg, nil, err
	}
	validationDir, err := env.Channel("validation")
	if err != nil {
		return cfg, nil, err
	}

	fs := pflag.NewFlagSet(string(ModeTrain), pflag.ContinueOnError)
	fs.SetOutput(out)
	fs.SortFlags = false
	fs.ParseErrorsWhitelist = pflag.ParseErrorsWhitelist{UnknownFlags: true}

	fs.IntVar(&cfg.MaxDepth, "max-depth", training.DefaultMaxDepth, "maximum tree depth")
	fs.IntVar(&cfg.NJobs, "n-jobs", env.NumCPUs, "number of parallel jobs")
	fs.IntVar(&cfg.NEstimators, "n-estimators", training.DefaultNEstimators, "number of estimators")
	fs.StringVar(&cfg.Train, "train", trainDir, "training data directory")
	fs.StringVar(&cfg.Validation, "validation", validationDir, "validation data directory")
	fs.StringVar(&cfg.ModelDir, "model-dir", env.ModelDir, "model output directory")
	fs.StringVar(&cfg.OutputDir, "output-dir", env.OutputDir, "output directory")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return cfg, nil, err
		}
		return cfg, nil, &UsageError{Msg: "invalid training arguments", Err: err}
	}

	return cfg, ignoredArgs(fs, args), nil
}

// ignoredArgs lists the flags pflag skipped plus leftover positionals.
// pflag drops unknown flags silently, so they are recovered from args.
func ignoredArgs(fs *pflag.FlagSet, args []string) []string {
	var ignored []string
	for i := 0; i < len(args); i++ {
		a := args[i]
		if a == "--" {
			break
		}
		if !strings.HasPrefix(a, "-") || a == "-" {
			continue
		}
		name, _, hasValue := strings.Cut(strings.TrimLeft(a, "-"), "=")
		if strings.HasPrefix(a, "--") {
			if fs.Lookup(name) == nil {
				ignored = append(ignored, a)
			} else if !hasValue {
				i++ // every known flag takes a value
			}
			continue
		}
		// Shorthand group; none are defined, so all of it is unknown.
		ignored = append(ignored, a)
	}
	return append(ignored, fs.Args()...)
}
