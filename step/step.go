package step

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"sort"
	"strings"

	"github.com/bitrise-io/go-steputils/input"
	"github.com/bitrise-io/go-steputils/v2/export"
	"github.com/bitrise-io/go-steputils/v2/stepconf"
	"github.com/bitrise-io/go-utils/filedownloader"
	"github.com/bitrise-io/go-utils/v2/log"
	"github.com/bmatcuk/doublestar/v4"
	"github.com/docker/go-units"

	"github.com/bitrise-steplib/steps-diawi-upload/diawi"
)

const (
	diawiURLOutputKey = "DIAWI_URL"

	manualUploadURL = "https://www.diawi.com"
	dashboardURL    = "https://dashboard.diawi.com"
)

// Input ...
type Input struct {
	AppPath                   string          `env:"app_path,required"`
	Token                     stepconf.Secret `env:"token,required"`
	Password                  stepconf.Secret `env:"password"`
	Comment                   string          `env:"comment"`
	CallbackURL               string          `env:"callback_url"`
	CallbackEmails            string          `env:"callback_emails"`
	FindByUDID                bool            `env:"find_by_udid,opt[yes,no]"`
	WallOfApps                bool            `env:"wall_of_apps,opt[yes,no]"`
	InstallationNotifications bool            `env:"installation_notifications,opt[yes,no]"`
	VerboseLog                bool            `env:"verbose_log,opt[yes,no]"`
}

// Config ...
type Config struct {
	AppPath       string
	Token         stepconf.Secret
	UploadOptions diawi.UploadOptions
}

// Result is everything later pipeline steps need from a finished upload.
type Result struct {
	InstallPageURL string
}

type appUploader interface {
	Upload(appPath string, token stepconf.Secret, options diawi.UploadOptions) (string, error)
	WaitForProcessing(token stepconf.Secret, job string) (string, error)
}

// DiawiUploader ...
type DiawiUploader struct {
	inputParser stepconf.InputParser
	logger      log.Logger
	uploader    appUploader
	exporter    export.Exporter
}

// NewDiawiUploader ...
func NewDiawiUploader(inputParser stepconf.InputParser, logger log.Logger, uploader appUploader, exporter export.Exporter) DiawiUploader {
	return DiawiUploader{
		inputParser: inputParser,
		logger:      logger,
		uploader:    uploader,
		exporter:    exporter,
	}
}

// ProcessConfig ...
func (s DiawiUploader) ProcessConfig() (Config, error) {
	var inputs Input
	if err := s.inputParser.Parse(&inputs); err != nil {
		return Config{}, err
	}
	stepconf.Print(inputs)
	s.logger.Println()
	s.logger.EnableDebugLog(inputs.VerboseLog)

	appPath, err := s.resolveAppPath(inputs.AppPath)
	if err != nil {
		return Config{}, fmt.Errorf("resolve app path: %w", err)
	}
	if info, err := os.Stat(appPath); err == nil {
		s.logger.Printf("App to upload: %s (%s)", appPath, units.HumanSize(float64(info.Size())))
	}

	return Config{
		AppPath:       appPath,
		Token:         inputs.Token,
		UploadOptions: uploadOptions(inputs),
	}, nil
}

// Run uploads the app and waits until Diawi finishes processing it.
//
// Outcomes Diawi itself reports (rejected upload, failed or unrecognized
// processing state, status checks running out) are soft failures: they are
// logged as warnings together with a manual upload fallback and an empty
// Result is returned, leaving it to the caller whether the build should go
// on. Only transport-level failures are returned as errors.
func (s DiawiUploader) Run(config Config) (Result, error) {
	s.logger.Println()
	s.logger.Infof("Uploading %s to Diawi", config.AppPath)

	job, err := s.uploader.Upload(config.AppPath, config.Token, config.UploadOptions)
	if err != nil {
		var rejectedErr *diawi.UploadRejectedError
		if errors.As(err, &rejectedErr) {
			s.warnWithManualUploadFallback(rejectedErr.Error(), config.AppPath)
			return Result{}, nil
		}
		return Result{}, fmt.Errorf("upload %s: %w", config.AppPath, err)
	}
	s.logger.Donef("Upload finished, job: %s", job)

	s.logger.Println()
	s.logger.Infof("Waiting for Diawi to process the app")

	link, err := s.uploader.WaitForProcessing(config.Token, job)
	if err != nil {
		var timeoutErr *diawi.TimeoutError
		if errors.As(err, &timeoutErr) {
			s.logger.Warnf("The app was still being processed when the last status check ran, the upload itself most likely succeeded.")
			s.logger.Warnf("Check the job on the Diawi dashboard: %s", dashboardURL)
			s.logger.Warnf("If the upload is not there, please upload %s manually at %s", config.AppPath, manualUploadURL)
			return Result{}, nil
		}

		var failedErr *diawi.ProcessingFailedError
		var unknownErr *diawi.UnknownStatusError
		if errors.As(err, &failedErr) || errors.As(err, &unknownErr) {
			s.warnWithManualUploadFallback(err.Error(), config.AppPath)
			return Result{}, nil
		}

		return Result{}, fmt.Errorf("check status of job %s: %w", job, err)
	}

	s.logger.Println()
	s.logger.Donef("App is ready, install it from %s", link)

	return Result{InstallPageURL: link}, nil
}

// ExportOutputs ...
func (s DiawiUploader) ExportOutputs(result Result) error {
	if result.InstallPageURL == "" {
		return nil
	}
	if err := s.exporter.ExportOutput(diawiURLOutputKey, result.InstallPageURL); err != nil {
		return fmt.Errorf("export %s: %w", diawiURLOutputKey, err)
	}
	return nil
}

func (s DiawiUploader) warnWithManualUploadFallback(message, appPath string) {
	s.logger.Warnf(message)
	s.logger.Warnf("Please upload %s manually at %s", appPath, manualUploadURL)
}

// The app path input is either a local path, a file:// path, a glob pattern
// or a remote URL. Remote apps are downloaded to a temp location first.
func (s DiawiUploader) resolveAppPath(pth string) (string, error) {
	if strings.HasPrefix(pth, "http://") || strings.HasPrefix(pth, "https://") {
		s.logger.Printf("Remote app path, downloading it")
		provider := input.NewFileProvider(filedownloader.New(http.DefaultClient))
		return provider.LocalPath(pth)
	}

	pth = strings.TrimPrefix(pth, "file://")

	if strings.ContainsAny(pth, "*?[{") {
		matches, err := doublestar.FilepathGlob(pth)
		if err != nil {
			return "", err
		}
		if len(matches) == 0 {
			return "", fmt.Errorf("no file matches pattern %s", pth)
		}
		sort.Strings(matches)
		if len(matches) > 1 {
			s.logger.Warnf("%d files match pattern %s, using %s", len(matches), pth, matches[0])
		}
		return matches[0], nil
	}

	if _, err := os.Stat(pth); err != nil {
		return "", err
	}
	return pth, nil
}

func uploadOptions(inputs Input) diawi.UploadOptions {
	options := diawi.UploadOptions{
		Password:       string(inputs.Password),
		Comment:        inputs.Comment,
		CallbackURL:    inputs.CallbackURL,
		CallbackEmails: inputs.CallbackEmails,
	}
	// The step declares defaults for the flags, so unlike the string fields
	// they are always sent.
	options.FindByUDID = &inputs.FindByUDID
	options.WallOfApps = &inputs.WallOfApps
	options.InstallationNotifications = &inputs.InstallationNotifications
	return options
}
