package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/pelletier/go-toml/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gemdesk/internal/access"
	"gemdesk/internal/config"
	"gemdesk/internal/progress"
	"gemdesk/internal/records"
	"gemdesk/internal/testsupport"
)

type cliTestEnv struct {
	cfg        *config.Config
	configPath string
}

func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	t.Chdir(t.TempDir())

	cfg := testsupport.NewConfig(t)
	configPath := filepath.Join(testsupport.BaseDir(cfg), "config.toml")
	writeTestConfig(t, configPath, cfg)
	return &cliTestEnv{cfg: cfg, configPath: configPath}
}

func writeTestConfig(t *testing.T, path string, cfg *config.Config) {
	t.Helper()
	data, err := toml.Marshal(cfg)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0o644))
}

func runCLI(t *testing.T, args []string, configPath string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	if configPath != "" {
		args = append([]string{"--config", configPath}, args...)
	}
	cmd.SetArgs(args)
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func TestConfigInitAndValidate(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"config", "validate"}, env.configPath)
	require.NoError(t, err)
	assert.Contains(t, out, "Configuration valid")

	target := filepath.Join(t.TempDir(), "config.toml")
	out, _, err = runCLI(t, []string{"config", "init", "--path", target}, "")
	require.NoError(t, err)
	assert.Contains(t, out, "Wrote sample configuration")
	assert.FileExists(t, target)

	_, _, err = runCLI(t, []string{"config", "init", "--path", target}, "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")
}

func TestEnqueueProcessAndProgress(t *testing.T) {
	env := setupCLITestEnv(t)

	src := filepath.Join(t.TempDir(), "batch.xlsx")
	testsupport.WriteWorkbook(t, src, [][]any{
		{"Contract ID", "Ministry", "Contract Date", "Total", "Service", "Product", "Brand"},
		{"C-1", "Health", "01-03-2024", "100", "Cleaning", "Soap", "Acme"},
	})

	out, _, err := runCLI(t, []string{"enqueue", "contracts", src}, env.configPath)
	require.NoError(t, err)
	assert.Contains(t, out, "Queued")

	out, _, err = runCLI(t, []string{"process", "contracts"}, env.configPath)
	require.NoError(t, err)
	assert.Contains(t, out, "contracts: processed")
	assert.Contains(t, out, "batch.xlsx")

	out, _, err = runCLI(t, []string{"progress", "contracts", "--json"}, env.configPath)
	require.NoError(t, err)
	var doc progress.Document
	require.NoError(t, json.Unmarshal([]byte(out), &doc))
	assert.Equal(t, progress.StatusCompleted, doc["batch.xlsx"].Status)
	assert.Equal(t, 1, doc["batch.xlsx"].Inserted)

	out, _, err = runCLI(t, []string{"brands", "list"}, env.configPath)
	require.NoError(t, err)
	assert.Contains(t, out, "ACME", "processing contracts refreshes the brand directory")

	out, _, err = runCLI(t, []string{"process", "contracts"}, env.configPath)
	require.NoError(t, err)
	assert.Contains(t, out, "no pending files")

	out, _, err = runCLI(t, []string{"retry", "contracts"}, env.configPath)
	require.NoError(t, err)
	assert.Contains(t, out, "no failed files")
}

func TestBrandsSync(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"brands", "list"}, env.configPath)
	require.NoError(t, err)
	assert.Contains(t, out, "No brands")

	repo := testsupport.MustOpenStore(t, env.cfg)
	require.NoError(t, repo.AddContract(context.Background(), records.Contract{ContractID: "C-1", Items: []records.Item{
		{Service: "Cleaning", Brand: "Acme®"},
		{Service: "Repair", Brand: "globex"},
	}}))
	require.NoError(t, repo.Close())

	out, _, err = runCLI(t, []string{"brands", "sync", "--json"}, env.configPath)
	require.NoError(t, err)
	assert.JSONEq(t, `{"found":2,"inserted":2}`, out)

	out, _, err = runCLI(t, []string{"brands", "sync"}, env.configPath)
	require.NoError(t, err)
	assert.Contains(t, out, "Brands found: 2, added: 0")

	out, _, err = runCLI(t, []string{"brands", "list", "glo"}, env.configPath)
	require.NoError(t, err)
	assert.Contains(t, out, "GLOBEX")
	assert.NotContains(t, out, "ACME")
}

func TestUnknownPipelineRejected(t *testing.T) {
	env := setupCLITestEnv(t)

	_, _, err := runCLI(t, []string{"process", "invoices"}, env.configPath)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown pipeline")
}

func TestLockCommandReportsAndClearsStaleMarker(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"lock", "sellers"}, env.configPath)
	require.NoError(t, err)
	assert.Contains(t, out, "sellers")

	marker := filepath.Join(env.cfg.Paths.SellersDir, ".lock")
	require.NoError(t, os.MkdirAll(filepath.Dir(marker), 0o755))
	require.NoError(t, os.WriteFile(marker, []byte("999999"), 0o644))

	out, _, err = runCLI(t, []string{"lock", "sellers", "--clear-stale"}, env.configPath)
	require.NoError(t, err)
	assert.Contains(t, out, "stale lock cleared")
	assert.NoFileExists(t, marker)
}

func TestTokenCommandMintsParsableToken(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{
		"token", "--json",
		"--subject", "buyer@example.com",
		"--subscription-until", "2099-01-01",
		"--brands", "Acme,Globex",
	}, env.configPath)
	require.NoError(t, err)

	var payload struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &payload))

	issuer, err := access.NewIssuer(env.cfg.Auth.JWTSecret, time.Hour)
	require.NoError(t, err)
	claims, err := issuer.Parse(strings.TrimSpace(payload.Token))
	require.NoError(t, err)
	assert.Equal(t, "buyer@example.com", claims.Subject)
	assert.Equal(t, access.RoleUser, claims.Role)
	assert.True(t, claims.Entitlement.Verified)
	assert.Equal(t, []string{"Acme", "Globex"}, claims.Entitlement.Brands)
	require.NoError(t, claims.Entitlement.Authorize(time.Now()))
}

func TestTokenCommandRequiresBothRangeEnds(t *testing.T) {
	env := setupCLITestEnv(t)

	_, _, err := runCLI(t, []string{"token", "--date-start", "2024-01-01"}, env.configPath)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "together")
}

func TestDoctorPassesAfterPipelinesPrepared(t *testing.T) {
	env := setupCLITestEnv(t)

	for _, name := range config.Pipelines() {
		_, _, err := runCLI(t, []string{"process", name}, env.configPath)
		require.NoError(t, err)
	}

	out, _, err := runCLI(t, []string{"doctor"}, env.configPath)
	require.NoError(t, err, out)
	assert.Contains(t, out, "Database")
	assert.Contains(t, out, "Disabled")
}
