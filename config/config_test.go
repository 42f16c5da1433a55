package config

import (
	"os"
	"path/filepath"
	"testing"

	"gridflow/types"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	cfg, err := Load("", nil)
	require.NoError(t, err)
	assert.Equal(t, "newton", cfg.PowerFlow.Method)
	assert.Equal(t, types.Tolerance, cfg.PowerFlow.Tolerance)
	assert.Equal(t, types.MaxIterationsOPF, cfg.OPF.MaxIterations)
	assert.Equal(t, "info", cfg.Log.Level)

	m, opts, err := cfg.PowerFlowOptions(nil, nil)
	require.NoError(t, err)
	assert.Equal(t, types.NewtonRaphson, m)
	assert.Equal(t, 0, opts.MaxIterations)
	o, err := cfg.OPFOptions(nil, nil)
	require.NoError(t, err)
	assert.Equal(t, types.FormulationAC, o.Formulation)

	log, err := cfg.Logger()
	require.NoError(t, err)
	require.NotNil(t, log)
}

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "gridflow.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadFile(t *testing.T) {
	path := writeFile(t, `
powerflow:
  method: gauss-seidel
  max_iterations: 500
  warm_start: true
opf:
  formulation: dc
  tolerance: 1.0e-7
log:
  level: debug
  development: true
debug:
  enabled: true
  json: out.json
`)
	cfg, err := Load(path, nil)
	require.NoError(t, err)
	assert.Equal(t, "gauss-seidel", cfg.PowerFlow.Method)
	assert.Equal(t, 500, cfg.PowerFlow.MaxIterations)
	assert.True(t, cfg.PowerFlow.WarmStart)
	assert.Equal(t, 1e-7, cfg.OPF.Tolerance)
	assert.True(t, cfg.Debug.Enabled)
	assert.Equal(t, "out.json", cfg.Debug.JSON)
	assert.Equal(t, "", cfg.Debug.HTML)

	m, opts, err := cfg.PowerFlowOptions(nil, nil)
	require.NoError(t, err)
	assert.Equal(t, types.GaussSeidel, m)
	assert.True(t, opts.WarmStart)
	o, err := cfg.OPFOptions(nil, nil)
	require.NoError(t, err)
	assert.Equal(t, types.FormulationDC, o.Formulation)
}

// TestPrecedence 命令行 > 环境变量 > 配置文件
func TestPrecedence(t *testing.T) {
	path := writeFile(t, "powerflow:\n  method: gauss-seidel\nopf:\n  formulation: dc\n")
	t.Setenv("GRIDFLOW_POWERFLOW_METHOD", "dc")
	t.Setenv("GRIDFLOW_LOG_LEVEL", "warn")

	cfg, err := Load(path, nil)
	require.NoError(t, err)
	assert.Equal(t, "dc", cfg.PowerFlow.Method)
	assert.Equal(t, "warn", cfg.Log.Level)
	assert.Equal(t, "dc", cfg.OPF.Formulation)

	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	Flags(fs)
	require.NoError(t, fs.Parse([]string{"--method", "newton", "--opf-max-iter", "20"}))
	cfg, err = Load(path, fs)
	require.NoError(t, err)
	assert.Equal(t, "newton", cfg.PowerFlow.Method)
	assert.Equal(t, 20, cfg.OPF.MaxIterations)
	assert.Equal(t, "dc", cfg.OPF.Formulation, "未设置的参数不覆盖配置文件")
}

func TestValidate(t *testing.T) {
	path := writeFile(t, "powerflow:\n  method: simplex\n  max_iterations: -1\nlog:\n  level: loud\n")
	_, err := Load(path, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "simplex")
	assert.Contains(t, err.Error(), "迭代次数不能为负")

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"), nil)
	require.Error(t, err)
}
