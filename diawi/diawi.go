package diawi

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"os"
	"path/filepath"
	"time"

	"github.com/bitrise-io/go-steputils/v2/stepconf"
	"github.com/bitrise-io/go-utils/v2/log"
	"github.com/hashicorp/go-retryablehttp"
)

const (
	uploadURL      = "https://upload.diawi.com/"
	statusURL      = "https://upload.diawi.com/status"
	installBaseURL = "https://i.diawi.com/"
)

// Diawi normally finishes processing within 5 seconds and flags jobs
// still pending after ~10 seconds as anomalous, so 5 checks 2 seconds
// apart cover the expected window.
const (
	defaultPollInterval    = 2 * time.Second
	defaultMaxStatusChecks = 5
)

// UploadOptions are the optional fields of an upload request.
// Zero-value fields are left out of the request entirely; the three
// flags are tri-state because Diawi distinguishes "not sent" from "off".
type UploadOptions struct {
	Password                  string
	Comment                   string
	CallbackURL               string
	CallbackEmails            string
	FindByUDID                *bool
	WallOfApps                *bool
	InstallationNotifications *bool
}

func (o UploadOptions) formFields() map[string]string {
	fields := map[string]string{}
	if o.Password != "" {
		fields["password"] = o.Password
	}
	if o.Comment != "" {
		fields["comment"] = o.Comment
	}
	if o.CallbackURL != "" {
		fields["callback_url"] = o.CallbackURL
	}
	if o.CallbackEmails != "" {
		fields["callback_emails"] = o.CallbackEmails
	}
	if o.FindByUDID != nil {
		fields["find_by_udid"] = flagField(*o.FindByUDID)
	}
	if o.WallOfApps != nil {
		fields["wall_of_apps"] = flagField(*o.WallOfApps)
	}
	if o.InstallationNotifications != nil {
		fields["installation_notifications"] = flagField(*o.InstallationNotifications)
	}
	return fields
}

// Diawi expects flags as 1/0, not true/false.
func flagField(value bool) string {
	if value {
		return "1"
	}
	return "0"
}

// Client uploads app binaries to Diawi and tracks their processing jobs.
type Client struct {
	httpClient      *retryablehttp.Client
	logger          log.Logger
	uploadURL       string
	statusURL       string
	pollInterval    time.Duration
	maxStatusChecks int
}

// NewClient ...
func NewClient(httpClient *retryablehttp.Client, logger log.Logger) Client {
	return Client{
		httpClient:      httpClient,
		logger:          logger,
		uploadURL:       uploadURL,
		statusURL:       statusURL,
		pollInterval:    defaultPollInterval,
		maxStatusChecks: defaultMaxStatusChecks,
	}
}

type uploadResponse struct {
	Job     string `json:"job"`
	Message string `json:"message"`
}

// Upload sends the binary at appPath to Diawi in a single multipart request
// and returns the identifier of the processing job Diawi assigned to it.
// A response without a job identifier is an *UploadRejectedError.
func (c Client) Upload(appPath string, token stepconf.Secret, options UploadOptions) (string, error) {
	body, contentType, err := createUploadBody(appPath, token, options)
	if err != nil {
		return "", fmt.Errorf("create upload request body: %w", err)
	}

	req, err := retryablehttp.NewRequest(http.MethodPost, c.uploadURL, body)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer func(body io.ReadCloser) {
		err := body.Close()
		if err != nil {
			c.logger.Printf(err.Error())
		}
	}(resp.Body)

	var response uploadResponse
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		c.logger.Debugf("Failed to decode upload response: %s", err)
		return "", &UploadRejectedError{Message: fmt.Sprintf("unexpected response (HTTP %d)", resp.StatusCode)}
	}
	if response.Job == "" {
		return "", &UploadRejectedError{Message: response.Message}
	}

	return response.Job, nil
}

func createUploadBody(appPath string, token stepconf.Secret, options UploadOptions) ([]byte, string, error) {
	buffer := &bytes.Buffer{}
	writer := multipart.NewWriter(buffer)

	if err := writer.WriteField("token", string(token)); err != nil {
		return nil, "", err
	}
	for field, value := range options.formFields() {
		if err := writer.WriteField(field, value); err != nil {
			return nil, "", err
		}
	}

	header := textproto.MIMEHeader{}
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename="%s"`, filepath.Base(appPath)))
	header.Set("Content-Type", "application/octet-stream")
	part, err := writer.CreatePart(header)
	if err != nil {
		return nil, "", err
	}

	file, err := os.Open(appPath)
	if err != nil {
		return nil, "", err
	}
	defer file.Close() //nolint:errcheck

	if _, err := io.Copy(part, file); err != nil {
		return nil, "", err
	}
	if err := writer.Close(); err != nil {
		return nil, "", err
	}

	return buffer.Bytes(), writer.FormDataContentType(), nil
}
