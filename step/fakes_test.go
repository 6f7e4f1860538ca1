package step

import (
	"fmt"

	"github.com/bitrise-io/go-steputils/v2/stepconf"
	"github.com/bitrise-io/go-utils/v2/command"
	"github.com/stretchr/testify/mock"

	"github.com/bitrise-steplib/steps-diawi-upload/diawi"
)

type mockUploader struct {
	mock.Mock
}

func (m *mockUploader) Upload(appPath string, token stepconf.Secret, options diawi.UploadOptions) (string, error) {
	args := m.Called(appPath, token, options)
	return args.String(0), args.Error(1)
}

func (m *mockUploader) WaitForProcessing(token stepconf.Secret, job string) (string, error) {
	args := m.Called(token, job)
	return args.String(0), args.Error(1)
}

type MockLogger struct {
	mock.Mock
}

func (m *MockLogger) Infof(format string, v ...interface{})  { m.Called(format, v) }
func (m *MockLogger) Warnf(format string, v ...interface{})  { m.Called(format, v) }
func (m *MockLogger) Printf(format string, v ...interface{}) { m.Called(format, v) }
func (m *MockLogger) Donef(format string, v ...interface{})  { m.Called(format, v) }
func (m *MockLogger) Debugf(format string, v ...interface{}) { m.Called(format, v) }
func (m *MockLogger) Errorf(format string, v ...interface{}) { m.Called(format, v) }

func (m *MockLogger) TInfof(format string, v ...interface{})  { m.Called(format, v) }
func (m *MockLogger) TWarnf(format string, v ...interface{})  { m.Called(format, v) }
func (m *MockLogger) TPrintf(format string, v ...interface{}) { m.Called(format, v) }
func (m *MockLogger) TDonef(format string, v ...interface{})  { m.Called(format, v) }
func (m *MockLogger) TDebugf(format string, v ...interface{}) { m.Called(format, v) }
func (m *MockLogger) TErrorf(format string, v ...interface{}) { m.Called(format, v) }

func (m *MockLogger) Println()                   { m.Called() }
func (m *MockLogger) EnableDebugLog(enable bool) { m.Called(enable) }

type fakeEnvRepo struct {
	envVars map[string]string
}

func (repo fakeEnvRepo) Get(key string) string {
	return repo.envVars[key]
}

func (repo fakeEnvRepo) Set(key, value string) error {
	repo.envVars[key] = value
	return nil
}

func (repo fakeEnvRepo) Unset(key string) error {
	repo.envVars[key] = ""
	return nil
}

func (repo fakeEnvRepo) List() []string {
	envs := []string{}
	for k, v := range repo.envVars {
		envs = append(envs, fmt.Sprintf("%s=%s", k, v))
	}
	return envs
}

type fakeCommandFactory struct {
	commands [][]string
}

func (f *fakeCommandFactory) Create(name string, args []string, opts *command.Opts) command.Command {
	f.commands = append(f.commands, append([]string{name}, args...))
	return fakeCommand{}
}

type fakeCommand struct{}

func (c fakeCommand) PrintableCommandArgs() string                       { return "" }
func (c fakeCommand) Run() error                                         { return nil }
func (c fakeCommand) RunAndReturnExitCode() (int, error)                 { return 0, nil }
func (c fakeCommand) RunAndReturnTrimmedOutput() (string, error)         { return "", nil }
func (c fakeCommand) RunAndReturnTrimmedCombinedOutput() (string, error) { return "", nil }
func (c fakeCommand) Start() error                                       { return nil }
func (c fakeCommand) Wait() error                                        { return nil }
