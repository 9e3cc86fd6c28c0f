package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/knadh/koanf/v2"
	"github.com/rs/zerolog/log"

	"github.com/cascadeio/cascade/internal/logger"
	"github.com/cascadeio/cascade/pipeline"
	"github.com/cascadeio/cascade/server"
	"github.com/cascadeio/cascade/sources"
	"github.com/cascadeio/cascade/stream"
)

var (
	buildString = "unknown"
	ko          = koanf.New(".")
)

func main() {
	initFlags(ko)

	if ko.Bool("version") {
		fmt.Println(buildString)
		os.Exit(0)
	}

	logger.SetDevelopment(ko.Bool("debug"))
	mainLogger := logger.GetLogger("main")
	mainLogger.Info().Str("build", buildString).Msg("starting cascade")

	cfg, err := pipeline.LoadConfig(ko)
	if err != nil {
		mainLogger.Fatal().Err(err).Msg("invalid pipeline config")
	}

	source, err := buildSource(ko)
	if err != nil {
		mainLogger.Fatal().Err(err).Msg("invalid source config")
	}

	operators, err := buildOperators(cfg)
	if err != nil {
		mainLogger.Fatal().Err(err).Msg("failed to build operators")
	}

	p, err := pipeline.New(cfg, source, stream.NewLogSink(), operators...)
	if err != nil {
		mainLogger.Fatal().Err(err).Msg("failed to assemble pipeline")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	admin := server.New(net.JoinHostPort("", ko.String("port")), cfg.CheckpointDir)
	go func() {
		if err := admin.Run(ctx); err != nil {
			mainLogger.Err(err).Msg("admin server stopped")
		}
	}()

	if err := p.Run(ctx); err != nil {
		mainLogger.Err(err).Msg("pipeline failed")
		p.Close()
		os.Exit(1)
	}

	if err := p.Close(); err != nil {
		mainLogger.Err(err).Msg("error closing pipeline")
	}
	mainLogger.Info().Msg("shut down cleanly")
}

// buildSource picks the event source from config. A configured Kafka
// section wins; otherwise an in-memory source is used, which is only
// useful for local experiments.
func buildSource(ko *koanf.Koanf) (sources.Source, error) {
	if !ko.Exists("source.kafka") {
		log.Warn().Msg("no kafka source configured; using an empty in-memory source")
		return sources.NewMemorySource(), nil
	}

	var kafkaCfg sources.KafkaConfig
	if err := ko.Unmarshal("source.kafka", &kafkaCfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal kafka config: %w", err)
	}
	return sources.NewKafkaSource(kafkaCfg)
}

// buildOperators assembles the operator chain from the "operators" config
// list. Each entry names a kind and the parameters that kind needs; the
// operator id is its position in the list, which must stay stable across
// restarts for recovery to find its state.
func buildOperators(cfg pipeline.Config) ([]stream.Operator, error) {
	opCfg := cfg.OperatorConfig()

	kinds := ko.Strings("operators")
	if len(kinds) == 0 {
		kinds = []string{"aggregate"}
	}

	operators := make([]stream.Operator, 0, len(kinds))
	for i, kind := range kinds {
		id := int64(i)
		var (
			op  stream.Operator
			err error
		)
		switch kind {
		case "aggregate":
			op, err = stream.NewAggregateOperator(id, opCfg)
		case "join":
			left := ko.String(fmt.Sprintf("operator.%d.left", i))
			right := ko.String(fmt.Sprintf("operator.%d.right", i))
			op, err = stream.NewJoinOperator(id, opCfg, left, right)
		case "session_window":
			gap := ko.Duration(fmt.Sprintf("operator.%d.gap", i))
			op, err = stream.NewSessionWindowOperator(id, opCfg, gap)
		default:
			return nil, errors.New("unknown operator kind " + kind)
		}
		if err != nil {
			return nil, fmt.Errorf("failed to build operator %d (%s): %w", id, kind, err)
		}
		operators = append(operators, op)
	}
	return operators, nil
}
