package di

import (
	"fmt"
	"io"
	"reflect"
	"strings"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"

	"katydid-validator-di/pkg/container"
	"katydid-validator-di/pkg/logger"
	"katydid-validator-di/pkg/validator"
)

// EnvPrefix 环境变量前缀，如 KATYDID_VALIDATOR_CACHE=none
const EnvPrefix = "KATYDID"

// translatorDisabled 关闭翻译的字符串写法
const translatorDisabled = "disabled"

// Settings 配置文件的顶层结构
type Settings struct {
	Parameters Parameters    `mapstructure:"parameters"`
	Validator  Config        `mapstructure:"validator"`
	Logger     logger.Config `mapstructure:"logger"`
}

// Parameters 全局参数
type Parameters struct {
	// TempDir 临时目录，默认文件缓存位于 <TempDir>/cache
	TempDir string `mapstructure:"tempDir"`
}

// Config validator 配置块
type Config struct {
	Mapping            MappingConfig         `mapstructure:"mapping"`
	Constraints        []ConstraintConfig    `mapstructure:"constraints"`
	Loaders            []container.Statement `mapstructure:"loaders"`
	ObjectInitializers []container.Statement `mapstructure:"objectInitializers"`
	// Cache 映射缓存：空或 filesystem 使用文件缓存，none 使用进程内缓存，
	// 其它内置后端按名称创建，否则按容器类型构造
	Cache       container.Statement `mapstructure:"cache"`
	Translation TranslationConfig   `mapstructure:"translation"`
}

// MappingConfig 映射来源
type MappingConfig struct {
	// Annotations 是否启用结构体标签映射，未配置时启用
	Annotations *bool    `mapstructure:"annotations"`
	TagName     string   `mapstructure:"tagName"`
	XML         []string `mapstructure:"xml"`
	YAML        []string `mapstructure:"yaml"`
	Methods     []string `mapstructure:"methods"`
}

// AnnotationsEnabled 标签映射是否启用
func (m MappingConfig) AnnotationsEnabled() bool {
	return m.Annotations == nil || *m.Annotations
}

// ConstraintConfig 声明一个约束
// Expression 非空时为表达式约束，忽略 ValidatedBy
type ConstraintConfig struct {
	Tag         string `mapstructure:"tag"`
	ValidatedBy string `mapstructure:"validatedBy"`
	Expression  string `mapstructure:"expression"`
	EvenIfNull  bool   `mapstructure:"evenIfNull"`
}

// Constraint 转换为约束
func (c ConstraintConfig) Constraint() (validator.Constraint, error) {
	if c.Tag == "" {
		return nil, fmt.Errorf("%w: constraint without tag", ErrInvalidConfig)
	}
	if c.Expression != "" {
		if err := validator.CheckExpression(c.Tag, c.Expression); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
		}
		return validator.NewExpression(c.Tag, c.Expression), nil
	}
	if c.ValidatedBy == "" {
		return nil, fmt.Errorf("%w: constraint %q has neither validatedBy nor expression", ErrInvalidConfig, c.Tag)
	}
	basic := validator.NewConstraint(c.Tag, c.ValidatedBy)
	basic.EvenIfNull = c.EvenIfNull
	return basic, nil
}

// TranslationConfig 翻译设置
type TranslationConfig struct {
	Translator TranslatorSpec `mapstructure:"translator"`
	Domain     string         `mapstructure:"domain"`
}

// TranslatorSpec 翻译器选择
//   - 未配置：使用容器中注册的 ut.Translator（如果有）
//   - false 或 "disabled"：不使用翻译
//   - 字符串或 {type, args}：已登记的容器类型，否则视为语言代码
type TranslatorSpec struct {
	Disabled  bool
	Statement container.Statement
}

// IsZero 是否未配置
func (s TranslatorSpec) IsZero() bool {
	return !s.Disabled && s.Statement.IsZero()
}

var (
	statementType      = reflect.TypeOf(container.Statement{})
	translatorSpecType = reflect.TypeOf(TranslatorSpec{})
)

// DecodeHook 把配置中的简写转换为 Statement / TranslatorSpec
func DecodeHook() mapstructure.DecodeHookFunc {
	return mapstructure.ComposeDecodeHookFunc(
		mapstructure.DecodeHookFuncType(statementHook),
		mapstructure.DecodeHookFuncType(translatorHook),
		mapstructure.StringToSliceHookFunc(","),
	)
}

func statementHook(from reflect.Type, to reflect.Type, data any) (any, error) {
	if to != statementType || from.Kind() != reflect.String {
		return data, nil
	}
	return container.NewStatement(strings.TrimSpace(data.(string)), nil), nil
}

func translatorHook(from reflect.Type, to reflect.Type, data any) (any, error) {
	if to != translatorSpecType {
		return data, nil
	}

	switch from.Kind() {
	case reflect.Bool:
		if data.(bool) {
			return TranslatorSpec{}, nil
		}
		return TranslatorSpec{Disabled: true}, nil
	case reflect.String:
		s := strings.TrimSpace(data.(string))
		switch strings.ToLower(s) {
		case "", "true":
			return TranslatorSpec{}, nil
		case "false", translatorDisabled:
			return TranslatorSpec{Disabled: true}, nil
		}
		return TranslatorSpec{Statement: container.NewStatement(s, nil)}, nil
	case reflect.Map:
		var stmt container.Statement
		if err := mapstructure.Decode(data, &stmt); err != nil {
			return nil, err
		}
		return TranslatorSpec{Statement: stmt}, nil
	}

	return data, nil
}

// envKeys 配置文件中可能缺省、但允许由环境变量设置的键
// AutomaticEnv 只覆盖 viper 已知的键，这些键需要显式绑定
var envKeys = []string{
	"parameters.tempDir",
	"validator.cache",
	"validator.translation.translator",
	"validator.translation.domain",
	"logger.filename",
}

// newViper 创建带默认值与环境变量绑定的 viper 实例
func newViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for _, key := range envKeys {
		_ = v.BindEnv(key)
	}

	v.SetDefault("validator.mapping.tagName", validator.DefaultTagName)
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "json")
	return v
}

// LoadConfig 从文件读取配置，格式由扩展名决定
func LoadConfig(path string) (*Settings, error) {
	v := newViper()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	return decodeSettings(v)
}

// LoadConfigFromReader 从 reader 读取配置，format 如 yaml、json
func LoadConfigFromReader(r io.Reader, format string) (*Settings, error) {
	v := newViper()
	v.SetConfigType(format)
	if err := v.ReadConfig(r); err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return decodeSettings(v)
}

func decodeSettings(v *viper.Viper) (*Settings, error) {
	var settings Settings
	if err := v.Unmarshal(&settings, viper.DecodeHook(DecodeHook())); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return &settings, nil
}
