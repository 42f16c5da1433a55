package config

import (
	"errors"
	"fmt"
	"strings"

	"gridflow/types"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// EnvPrefix 环境变量前缀，如 GRIDFLOW_POWERFLOW_METHOD
const EnvPrefix = "GRIDFLOW"

// Config 运行配置
type Config struct {
	PowerFlow PowerFlow `mapstructure:"powerflow"`
	OPF       OPF       `mapstructure:"opf"`
	Log       Log       `mapstructure:"log"`
	Debug     Debug     `mapstructure:"debug"`
}

// PowerFlow 潮流参数
type PowerFlow struct {
	Method        string  `mapstructure:"method"`
	Tolerance     float64 `mapstructure:"tolerance"`
	MaxIterations int     `mapstructure:"max_iterations"` // 0 按算法取默认值
	WarmStart     bool    `mapstructure:"warm_start"`
}

// OPF 最优潮流参数
type OPF struct {
	Formulation   string  `mapstructure:"formulation"`
	Tolerance     float64 `mapstructure:"tolerance"`
	MaxIterations int     `mapstructure:"max_iterations"`
}

// Log 日志
type Log struct {
	Level       string `mapstructure:"level"`
	Development bool   `mapstructure:"development"`
}

// Debug 调试输出，路径为空不输出
type Debug struct {
	Enabled bool   `mapstructure:"enabled"`
	JSON    string `mapstructure:"json"`
	HTML    string `mapstructure:"html"`
	PNG     string `mapstructure:"png"`
}

// flag 名称 -> 配置键
var flagKeys = map[string]string{
	"method":       "powerflow.method",
	"tol":          "powerflow.tolerance",
	"max-iter":     "powerflow.max_iterations",
	"warm":         "powerflow.warm_start",
	"opf":          "opf.formulation",
	"opf-tol":      "opf.tolerance",
	"opf-max-iter": "opf.max_iterations",
	"log-level":    "log.level",
	"log-dev":      "log.development",
	"debug":        "debug.enabled",
	"debug-json":   "debug.json",
	"debug-html":   "debug.html",
	"debug-png":    "debug.png",
}

// Flags 注册命令行参数
func Flags(fs *pflag.FlagSet) {
	fs.String("method", "newton", "潮流算法: newton | gauss-seidel | dc")
	fs.Float64("tol", types.Tolerance, "潮流收敛容差(标幺)")
	fs.Int("max-iter", 0, "潮流最大迭代次数，0 按算法取默认值")
	fs.Bool("warm", false, "以算例电压作为初值")
	fs.String("opf", "ac", "最优潮流模型: ac | dc")
	fs.Float64("opf-tol", types.OPFTolerance, "最优潮流收敛容差")
	fs.Int("opf-max-iter", types.MaxIterationsOPF, "内点法最大迭代次数")
	fs.String("log-level", "info", "日志级别")
	fs.Bool("log-dev", false, "开发模式日志")
	fs.Bool("debug", false, "记录迭代历史")
	fs.String("debug-json", "", "迭代历史 JSON 输出路径")
	fs.String("debug-html", "", "迭代曲线 HTML 输出路径")
	fs.String("debug-png", "", "收敛曲线 PNG 输出路径")
}

func defaults(v *viper.Viper) {
	v.SetDefault("powerflow.method", "newton")
	v.SetDefault("powerflow.tolerance", types.Tolerance)
	v.SetDefault("powerflow.max_iterations", 0)
	v.SetDefault("powerflow.warm_start", false)
	v.SetDefault("opf.formulation", "ac")
	v.SetDefault("opf.tolerance", types.OPFTolerance)
	v.SetDefault("opf.max_iterations", types.MaxIterationsOPF)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.development", false)
	v.SetDefault("debug.enabled", false)
	v.SetDefault("debug.json", "")
	v.SetDefault("debug.html", "")
	v.SetDefault("debug.png", "")
}

// Load 读取配置，优先级: 命令行 > 环境变量 > 配置文件 > 默认值
// path 为空时不读文件，fs 可为 nil。
func Load(path string, fs *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	defaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("读取配置 %s: %w", path, err)
		}
	}
	if fs != nil {
		for name, key := range flagKeys {
			if f := fs.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, err
				}
			}
		}
	}
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("解析配置: %w", err)
	}
	return cfg, cfg.Validate()
}

// Validate 检查枚举与数值
func (c *Config) Validate() error {
	var errs []error
	if _, err := types.ParseMethod(c.PowerFlow.Method); err != nil {
		errs = append(errs, err)
	}
	if _, err := types.ParseFormulation(c.OPF.Formulation); err != nil {
		errs = append(errs, err)
	}
	if c.PowerFlow.Tolerance < 0 || c.OPF.Tolerance < 0 {
		errs = append(errs, errors.New("容差不能为负"))
	}
	if c.PowerFlow.MaxIterations < 0 || c.OPF.MaxIterations < 0 {
		errs = append(errs, errors.New("迭代次数不能为负"))
	}
	if _, err := zap.ParseAtomicLevel(c.Log.Level); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Logger 构建日志
func (c *Config) Logger() (*zap.Logger, error) {
	zc := zap.NewProductionConfig()
	if c.Log.Development {
		zc = zap.NewDevelopmentConfig()
	}
	level, err := zap.ParseAtomicLevel(c.Log.Level)
	if err != nil {
		return nil, err
	}
	zc.Level = level
	return zc.Build()
}

// PowerFlowOptions 潮流算法与参数
func (c *Config) PowerFlowOptions(log *zap.Logger, debug types.Debug) (types.Method, types.Options, error) {
	m, err := types.ParseMethod(c.PowerFlow.Method)
	if err != nil {
		return 0, types.Options{}, err
	}
	return m, types.Options{
		Tolerance:     c.PowerFlow.Tolerance,
		MaxIterations: c.PowerFlow.MaxIterations,
		WarmStart:     c.PowerFlow.WarmStart,
		Logger:        log,
		Debug:         debug,
	}, nil
}

// OPFOptions 最优潮流参数
func (c *Config) OPFOptions(log *zap.Logger, debug types.Debug) (types.OPFOptions, error) {
	f, err := types.ParseFormulation(c.OPF.Formulation)
	if err != nil {
		return types.OPFOptions{}, err
	}
	return types.OPFOptions{
		Formulation:   f,
		Tolerance:     c.OPF.Tolerance,
		MaxIterations: c.OPF.MaxIterations,
		Logger:        log,
		Debug:         debug,
	}, nil
}
