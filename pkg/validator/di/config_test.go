package di

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"katydid-validator-di/pkg/container"
	kvalidator "katydid-validator-di/pkg/validator"
)

const sampleConfig = `
parameters:
  tempDir: /tmp/app
validator:
  mapping:
    annotations: false
    xml:
      - /etc/app/validator.xml
    methods: [MappingRules]
  constraints:
    - tag: adult
      expression: gte=18
    - tag: dummy
      validatedBy: katydid-validator-di/pkg/validator/di.DummyValidator
      evenIfNull: true
  loaders:
    - some/pkg.Loader
    - type: some/pkg.Other
      args:
        size: 3
  objectInitializers:
    - some/pkg.Initializer
  cache: none
  translation:
    translator: false
    domain: validators
logger:
  level: debug
`

func loadYAML(t *testing.T, doc string) *Settings {
	t.Helper()
	settings, err := LoadConfigFromReader(strings.NewReader(doc), "yaml")
	require.NoError(t, err)
	return settings
}

// TestLoadConfig 测试完整配置解析
func TestLoadConfig(t *testing.T) {
	settings := loadYAML(t, sampleConfig)

	assert.Equal(t, "/tmp/app", settings.Parameters.TempDir)
	assert.Equal(t, "debug", settings.Logger.Level)
	assert.Equal(t, "json", settings.Logger.Format)

	cfg := settings.Validator
	assert.False(t, cfg.Mapping.AnnotationsEnabled())
	assert.Equal(t, kvalidator.DefaultTagName, cfg.Mapping.TagName)
	assert.Equal(t, []string{"/etc/app/validator.xml"}, cfg.Mapping.XML)
	assert.Equal(t, []string{"MappingRules"}, cfg.Mapping.Methods)

	require.Len(t, cfg.Constraints, 2)
	assert.Equal(t, ConstraintConfig{Tag: "adult", Expression: "gte=18"}, cfg.Constraints[0])
	assert.Equal(t, dummyValidatorName, cfg.Constraints[1].ValidatedBy)
	assert.True(t, cfg.Constraints[1].EvenIfNull)

	require.Len(t, cfg.Loaders, 2)
	assert.Equal(t, container.NewStatement("some/pkg.Loader", nil), cfg.Loaders[0])
	assert.Equal(t, "some/pkg.Other", cfg.Loaders[1].Type)
	assert.EqualValues(t, 3, cfg.Loaders[1].Args["size"])

	require.Len(t, cfg.ObjectInitializers, 1)
	assert.Equal(t, "some/pkg.Initializer", cfg.ObjectInitializers[0].Type)

	assert.Equal(t, "none", cfg.Cache.Type)
	assert.True(t, cfg.Translation.Translator.Disabled)
	assert.Equal(t, "validators", cfg.Translation.Domain)
}

// TestLoadConfig_Defaults 测试空配置
func TestLoadConfig_Defaults(t *testing.T) {
	settings := loadYAML(t, "validator: {}\n")

	cfg := settings.Validator
	assert.True(t, cfg.Mapping.AnnotationsEnabled())
	assert.True(t, cfg.Cache.IsZero())
	assert.True(t, cfg.Translation.Translator.IsZero())
	assert.Equal(t, "info", settings.Logger.Level)
}

// TestLoadConfig_Translator 测试翻译器的各种写法
func TestLoadConfig_Translator(t *testing.T) {
	tests := []struct {
		name     string
		value    string
		disabled bool
		typ      string
	}{
		{"false", "false", true, ""},
		{"disabled", "disabled", true, ""},
		{"true", "true", false, ""},
		{"语言代码", "zh", false, "zh"},
		{"类型名", "github.com/go-playground/universal-translator.Translator", false, translatorTypeName},
		{"构造描述", "{type: some/pkg.Translator, args: {locale: en}}", false, "some/pkg.Translator"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			settings := loadYAML(t, "validator:\n  translation:\n    translator: "+tt.value+"\n")
			spec := settings.Validator.Translation.Translator
			assert.Equal(t, tt.disabled, spec.Disabled)
			assert.Equal(t, tt.typ, spec.Statement.Type)
		})
	}
}

// TestLoadConfig_Env 测试环境变量覆盖
func TestLoadConfig_Env(t *testing.T) {
	t.Setenv("KATYDID_VALIDATOR_CACHE", "lru")
	t.Setenv("KATYDID_PARAMETERS_TEMPDIR", "/var/tmp")

	settings := loadYAML(t, sampleConfig)
	assert.Equal(t, "lru", settings.Validator.Cache.Type)
	assert.Equal(t, "/var/tmp", settings.Parameters.TempDir)
}

// TestLoadConfig_EnvWithoutKeys 环境变量设置配置文件中缺省的键
func TestLoadConfig_EnvWithoutKeys(t *testing.T) {
	t.Setenv("KATYDID_VALIDATOR_CACHE", "none")
	t.Setenv("KATYDID_VALIDATOR_TRANSLATION_TRANSLATOR", "disabled")
	t.Setenv("KATYDID_PARAMETERS_TEMPDIR", "/var/tmp")

	settings := loadYAML(t, "validator: {}\n")
	assert.Equal(t, "none", settings.Validator.Cache.Type)
	assert.True(t, settings.Validator.Translation.Translator.Disabled)
	assert.Equal(t, "/var/tmp", settings.Parameters.TempDir)
	assert.Empty(t, settings.Validator.Translation.Domain)
}

// TestLoadConfig_File 测试从文件读取
func TestLoadConfig_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleConfig), 0o644))

	settings, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "validators", settings.Validator.Translation.Domain)

	_, err = LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

// TestBootstrap 测试按整份配置注册
func TestBootstrap(t *testing.T) {
	settings := loadYAML(t, `
parameters:
  tempDir: /tmp/app
validator:
  constraints:
    - tag: adult
      expression: gte=18
  translation:
    translator: en
`)

	c := container.New()
	nop := zap.NewNop()
	_, err := Bootstrap(c, settings, WithLogger(nop), WithFilesystem(afero.NewMemMapFs()))
	require.NoError(t, err)

	registered, err := c.LookupByType(container.TypeNameFor[zap.Logger]())
	require.NoError(t, err)
	assert.Same(t, nop, registered)

	v, err := Validator(c)
	require.NoError(t, err)
	assert.NoError(t, v.Var(21, "adult"))

	err = v.Var(12, "adult")
	require.Error(t, err)
	assert.Equal(t, "en", v.Translator().Locale())

	_, err = Bootstrap(container.New(), nil)
	assert.ErrorIs(t, err, ErrInvalidConfig)
}
