package diawi

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/bitrise-io/go-steputils/v2/stepconf"
	"github.com/hashicorp/go-retryablehttp"
)

const (
	statusDone       = 2000
	statusInProgress = 2001
	statusFailed     = 4000
)

type statusResponse struct {
	Status  int    `json:"status"`
	Hash    string `json:"hash"`
	Message string `json:"message"`
}

// WaitForProcessing polls the status of the given job until Diawi reports a
// terminal state or the status check budget runs out, and returns the public
// install page link of the processed app.
//
// The first status query is issued immediately, later ones after a fixed wait.
// A job that is still in progress after the last allowed check is a
// *TimeoutError; the upload itself has most likely succeeded in that case,
// only its status is unknown. A failed job is a *ProcessingFailedError and an
// unrecognized (or undecodable) status is an *UnknownStatusError, neither of
// which triggers further queries.
func (c Client) WaitForProcessing(token stepconf.Secret, job string) (string, error) {
	attempt := 0
	for {
		response, err := c.checkStatus(token, job)
		if err != nil {
			return "", err
		}

		switch response.Status {
		case statusDone:
			return installBaseURL + response.Hash, nil
		case statusInProgress:
			c.logger.Printf("Diawi is still processing the app...")
			attempt++
			if attempt == c.maxStatusChecks {
				return "", &TimeoutError{StatusChecks: attempt}
			}
			time.Sleep(c.pollInterval)
		case statusFailed:
			return "", &ProcessingFailedError{Message: response.Message}
		default:
			return "", &UnknownStatusError{Status: response.Status}
		}
	}
}

// The status endpoint is an idempotent read, re-querying after a transient
// hiccup is safe. Transport errors are returned as-is, they are not a job
// state.
func (c Client) checkStatus(token stepconf.Secret, job string) (statusResponse, error) {
	query := url.Values{}
	query.Set("token", string(token))
	query.Set("job", job)

	req, err := retryablehttp.NewRequest(http.MethodGet, fmt.Sprintf("%s?%s", c.statusURL, query.Encode()), nil)
	if err != nil {
		return statusResponse{}, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return statusResponse{}, err
	}
	defer func(body io.ReadCloser) {
		err := body.Close()
		if err != nil {
			c.logger.Printf(err.Error())
		}
	}(resp.Body)

	var response statusResponse
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		// An undecodable body gets the same treatment as an unrecognized
		// status code.
		c.logger.Debugf("Failed to decode status response: %s", err)
		return statusResponse{}, nil
	}

	return response, nil
}
