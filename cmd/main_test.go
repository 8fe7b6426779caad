package main

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jerry-enebeli/claimpay/config"
)

func TestNewCLIRegistersCommands(t *testing.T) {
	cli := NewCLI()

	var names []string
	for _, c := range cli.cmd.Commands() {
		names = append(names, c.Name())
	}
	assert.ElementsMatch(t, []string{"authorize", "health", "workers", "migrate", "config"}, names)

	flag := cli.cmd.PersistentFlags().Lookup("config")
	require.NotNil(t, flag)
	assert.Equal(t, "./claimpay.json", flag.DefValue)
}

func TestSetupSkippedForConfigOnlyCommands(t *testing.T) {
	cli := NewCLI()
	for _, name := range []string{"config", "migrate", "workers"} {
		c, _, err := cli.cmd.Find([]string{name})
		require.NoError(t, err)
		assert.Equal(t, "true", c.Annotations["skip_setup"], name)
	}

	c, _, err := cli.cmd.Find([]string{"authorize"})
	require.NoError(t, err)
	assert.Empty(t, c.Annotations["skip_setup"])
}

func TestReadAuthorizationRequest(t *testing.T) {
	path := filepath.Join(t.TempDir(), "request.json")
	body := `{
		"claim_key": {"insurance_type": 1, "origin": 10, "branch": 531, "claim_number": 7},
		"operator_id": "op-42",
		"payment_type": 1,
		"principal": "1500.00",
		"correction": "0",
		"beneficiary": "Maria da Silva",
		"currency": "BRL"
	}`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	req, err := readAuthorizationRequest(path)
	require.NoError(t, err)
	assert.Equal(t, "op-42", req.OperatorID)
	assert.Equal(t, 1, req.PaymentType)
	assert.True(t, req.Principal.Equal(decimal.NewFromInt(1500)))
	assert.Equal(t, "BRL", req.Currency)
}

func TestReadAuthorizationRequestInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "request.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))

	_, err := readAuthorizationRequest(path)
	assert.ErrorContains(t, err, "invalid authorization request")

	_, err = readAuthorizationRequest(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}

func TestRedisClientOpt(t *testing.T) {
	opt, err := redisClientOpt(&config.Configuration{Redis: config.RedisConfig{Dns: "redis://:secret@localhost:6380/2"}})
	require.NoError(t, err)
	assert.Equal(t, "localhost:6380", opt.Addr)
	assert.Equal(t, "secret", opt.Password)
	assert.Equal(t, 2, opt.DB)
}

func TestMonitoringHandlerServesMetrics(t *testing.T) {
	h := monitoringHandler(asynq.RedisClientOpt{Addr: "localhost:6379"})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}
