/*
Copyright 2024 Blnk Finance Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package notification

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/jarcoal/httpmock"
	"github.com/jerry-enebeli/claimpay/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const slackURL = "https://hooks.slack.com/services/T000/B000/XXXX"

func mockSlackConfig() {
	cnf := &config.Configuration{ProjectName: "ClaimPay"}
	cnf.Notification.Slack.WebhookUrl = slackURL
	config.MockConfig(cnf)
}

func TestBuildSlackMessage(t *testing.T) {
	at := time.Date(2024, 3, 5, 14, 30, 0, 0, time.UTC)
	msg := buildSlackMessage("ClaimPay", errors.New("rollback failed"), at)

	require.Len(t, msg.Blocks, 3)
	assert.Equal(t, "Error From ClaimPay 🐞", msg.Blocks[0].Text.Text)
	assert.Equal(t, "*Error:*\nrollback failed", msg.Blocks[1].Fields[0].Text)
	assert.Equal(t, "*Time:*\n"+at.Format(time.RFC822), msg.Blocks[2].Fields[0].Text)
}

func TestSlackNotification(t *testing.T) {
	httpmock.Activate()
	defer httpmock.DeactivateAndReset()
	mockSlackConfig()

	var body string
	httpmock.RegisterResponder(http.MethodPost, slackURL, func(req *http.Request) (*http.Response, error) {
		b, err := io.ReadAll(req.Body)
		if err != nil {
			return nil, err
		}
		body = string(b)
		return httpmock.NewStringResponse(http.StatusOK, `{"ok":true}`), nil
	})

	SlackNotification(errors.New("rollback failed for auth_123"))

	assert.Equal(t, 1, httpmock.GetTotalCallCount())
	var msg slackMessage
	require.NoError(t, json.Unmarshal([]byte(body), &msg))
	assert.True(t, strings.Contains(msg.Blocks[1].Fields[0].Text, "rollback failed for auth_123"))
}

func TestNotifyErrorWithoutSlack(t *testing.T) {
	httpmock.Activate()
	defer httpmock.DeactivateAndReset()
	config.MockConfig(&config.Configuration{})

	NotifyError(errors.New("boom"))
	time.Sleep(50 * time.Millisecond)

	assert.Equal(t, 0, httpmock.GetTotalCallCount())
}

func TestNotifyErrorSendsToSlack(t *testing.T) {
	httpmock.Activate()
	defer httpmock.DeactivateAndReset()
	mockSlackConfig()

	httpmock.RegisterResponder(http.MethodPost, slackURL, httpmock.NewStringResponder(http.StatusOK, `{"ok":true}`))

	NotifyError(errors.New("boom"))

	assert.Eventually(t, func() bool {
		return httpmock.GetCallCountInfo()["POST "+slackURL] == 1
	}, time.Second, 10*time.Millisecond)
}
