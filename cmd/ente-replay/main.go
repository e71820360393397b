package main

import (
	"flag"
	"log/slog"
	"os"

	"github.com/sagernet/sing-ente/congestion_ente"
	"github.com/sagernet/sing-ente/replay"

	"github.com/MatusOllah/slogcolor"
	"github.com/fatih/color"
)

var (
	configPath = flag.String("c", "", "scenario file")
	verbose    = flag.Bool("v", false, "log every strategy decision")
)

func newLogger(level slog.Level) *slog.Logger {
	return slog.New(slogcolor.NewHandler(os.Stderr, &slogcolor.Options{
		Level:         level,
		TimeFormat:    "15:04:05.000",
		SrcFileMode:   slogcolor.ShortFile,
		SrcFileLength: 16,
		MsgPrefix:     color.HiWhiteString("|"),
		MsgColor:      color.New(color.FgHiWhite),
		MsgLength:     24,
	}))
}

func main() {
	flag.Parse()
	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	logger := newLogger(level)
	slog.SetDefault(logger)

	if *configPath == "" {
		flag.Usage()
		os.Exit(2)
	}
	scenario, err := replay.Load(*configPath)
	if err != nil {
		logger.Error("load scenario", "error", err)
		os.Exit(1)
	}
	logger.Info("replay", "strategy", scenario.Strategy, "version", congestion_ente.Version, "steps", len(scenario.Steps))
	records, err := replay.Run(scenario, replay.Options{Logger: NewSlogLogger(logger)})
	if err != nil {
		logger.Error("run scenario", "error", err)
		os.Exit(1)
	}
	for _, record := range records {
		attrs := []any{
			"step", record.Step,
			"cwnd", record.CongestionWindow,
			"ssthresh", record.SlowStartThreshold,
			"phase", record.Phase.String(),
		}
		if record.HasInfo {
			attrs = append(attrs,
				"class", record.Classification.String(),
				"entropy", record.Entropy,
				"samples", record.Samples,
			)
		}
		logger.Info(string(record.Action), attrs...)
	}
}
