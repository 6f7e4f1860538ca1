package main

import (
	"os"

	"github.com/bitrise-io/go-steputils/v2/export"
	"github.com/bitrise-io/go-steputils/v2/stepconf"
	"github.com/bitrise-io/go-utils/v2/command"
	"github.com/bitrise-io/go-utils/v2/env"
	"github.com/bitrise-io/go-utils/v2/log"
	"github.com/bitrise-io/go-utils/v2/retryhttp"

	"github.com/bitrise-steplib/steps-diawi-upload/diawi"
	"github.com/bitrise-steplib/steps-diawi-upload/step"
)

func main() {
	os.Exit(run())
}

func run() int {
	logger := log.NewLogger()
	uploader := createStep(logger)

	config, err := uploader.ProcessConfig()
	if err != nil {
		logger.Errorf("Process config: %s", err)
		return 1
	}

	result, err := uploader.Run(config)
	if err != nil {
		logger.Errorf("Run: %s", err)
		return 1
	}

	if err := uploader.ExportOutputs(result); err != nil {
		logger.Errorf("Export outputs: %s", err)
		return 1
	}

	return 0
}

func createStep(logger log.Logger) step.DiawiUploader {
	envRepository := env.NewRepository()
	inputParser := stepconf.NewInputParser(envRepository)
	client := diawi.NewClient(retryhttp.NewClient(logger), logger)
	exporter := export.NewExporter(command.NewFactory(envRepository))

	return step.NewDiawiUploader(inputParser, logger, client, exporter)
}
