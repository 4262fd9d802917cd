package di

import (
	"fmt"
	"path/filepath"

	ut "github.com/go-playground/universal-translator"
	"github.com/mitchellh/mapstructure"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/afero"
	"go.uber.org/dig"
	"go.uber.org/zap"

	"katydid-validator-di/pkg/container"
	"katydid-validator-di/pkg/logger"
	"katydid-validator-di/pkg/validator"
	"katydid-validator-di/pkg/validator/cache"
)

const (
	// BuilderServiceName 构建器在容器中的名称，不参与按类型自动装配
	BuilderServiceName = "validator.validatorBuilder"

	// DefaultCacheNamespace 默认文件缓存的命名空间
	DefaultCacheNamespace = cache.DefaultNamespace

	// cacheDir 默认文件缓存位于 tempDir 下的子目录
	cacheDir = "cache"
)

var (
	translatorTypeName = container.TypeNameFor[ut.Translator]()
	validatorTypeName  = container.TypeNameFor[validator.Validator]()
)

// builderParams 按名称注入构建器
type builderParams struct {
	dig.In

	Builder *validator.Builder `name:"validator.validatorBuilder"`
}

// Option 扩展选项
type Option func(*Extension)

// WithLogger 设置日志器
func WithLogger(l *zap.Logger) Option {
	return func(e *Extension) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithFilesystem 设置映射文件与文件缓存使用的文件系统
func WithFilesystem(fs afero.Fs) Option {
	return func(e *Extension) {
		if fs != nil {
			e.fs = fs
		}
	}
}

// WithMetrics 为映射缓存注册 prometheus 计数
func WithMetrics(reg prometheus.Registerer) Option {
	return func(e *Extension) {
		e.registerer = reg
	}
}

// WithTypes 登记需要加载映射的类型
func WithTypes(types ...any) Option {
	return func(e *Extension) {
		e.types = append(e.types, types...)
	}
}

// Extension 把 validator 配置块转换为容器中的构建器与验证器
type Extension struct {
	logger     *zap.Logger
	fs         afero.Fs
	registerer prometheus.Registerer
	types      []any
}

// NewExtension 创建扩展
func NewExtension(opts ...Option) *Extension {
	e := &Extension{
		logger: zap.NewNop(),
		fs:     afero.NewOsFs(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Register 向容器注册：
//   - 名为 BuilderServiceName 的 *validator.Builder（不参与自动装配）
//   - 由构建器生成的 *validator.Validator
//
// 构建器在注册时立即配置，应在翻译器、加载器等服务注册之后调用
func (e *Extension) Register(c *container.Container, cfg Config, params Parameters) error {
	if err := c.RegisterType(validator.NewExpressionValidator); err != nil {
		return err
	}

	b, err := e.NewBuilder(c, cfg, params)
	if err != nil {
		return err
	}

	if err := c.Supply(b, container.WithName(BuilderServiceName), container.NotAutowired()); err != nil {
		return fmt.Errorf("register validator builder: %w", err)
	}

	if err := c.Provide(func(p builderParams) (*validator.Validator, error) {
		return p.Builder.GetValidator()
	}); err != nil {
		return fmt.Errorf("register validator: %w", err)
	}

	e.logger.Debug("validator extension registered",
		zap.String("builder", BuilderServiceName),
		zap.Int("loaders", len(cfg.Loaders)),
		zap.Int("constraints", len(cfg.Constraints)))
	return nil
}

// NewBuilder 按配置创建构建器
// 先装配工厂、缓存、加载器与对象初始化器，再装配翻译与映射
func (e *Extension) NewBuilder(c *container.Container, cfg Config, params Parameters) (*validator.Builder, error) {
	b := validator.NewBuilder().
		SetLogger(e.logger).
		SetFilesystem(e.fs).
		SetConstraintValidatorFactory(NewContainerValidatorFactory(c))

	mappingCache, err := e.mappingCache(c, cfg.Cache, params)
	if err != nil {
		return nil, err
	}
	b.SetMappingCache(mappingCache)

	if err := setupLoaders(c, b, cfg.Loaders); err != nil {
		return nil, err
	}
	if err := setupObjectInitializers(c, b, cfg.ObjectInitializers); err != nil {
		return nil, err
	}

	if err := setupTranslator(c, b, cfg.Translation); err != nil {
		return nil, err
	}
	setupMapping(b, cfg.Mapping)

	for _, cc := range cfg.Constraints {
		constraint, err := cc.Constraint()
		if err != nil {
			return nil, err
		}
		b.AddConstraints(constraint)
	}
	b.RegisterTypes(e.types...)

	return b, nil
}

// mappingCache 选择映射缓存
//   - 空或 filesystem：<tempDir>/cache 下的文件缓存
//   - none：进程内缓存
//   - 其它内置后端：按名称创建，args 写入 cache.Options
//   - 其它：容器中已登记的类型
func (e *Extension) mappingCache(c *container.Container, stmt container.Statement, params Parameters) (cache.Cache, error) {
	backend := stmt.Type
	if backend == "" {
		backend = cache.BackendFilesystem
	}

	if !cache.IsBackend(backend) {
		instance, err := c.ConstructStatement(stmt)
		if err != nil {
			return nil, err
		}
		custom, ok := instance.(cache.Cache)
		if !ok {
			return nil, &validator.UnexpectedTypeError{Value: instance, Expected: "cache.Cache"}
		}
		return e.instrument(custom, backend)
	}

	opts := cache.Options{Fs: e.fs}
	if len(stmt.Args) > 0 {
		if err := decodeArgs(stmt.Args, &opts); err != nil {
			return nil, fmt.Errorf("%w: cache args: %v", ErrInvalidConfig, err)
		}
	}
	if backend == cache.BackendFilesystem {
		if opts.Directory == "" {
			if params.TempDir == "" {
				return nil, ErrMissingTempDir
			}
			opts.Directory = filepath.Join(params.TempDir, cacheDir)
		}
		if opts.Namespace == "" {
			opts.Namespace = DefaultCacheNamespace
		}
	}

	built, err := cache.Open(backend, opts)
	if err != nil {
		return nil, err
	}
	return e.instrument(built, backend)
}

func (e *Extension) instrument(c cache.Cache, backend string) (cache.Cache, error) {
	if e.registerer == nil {
		return c, nil
	}
	metrics, err := cache.NewMetrics(e.registerer)
	if err != nil {
		return nil, fmt.Errorf("register cache metrics: %w", err)
	}
	return cache.Instrument(c, backend, metrics), nil
}

func setupLoaders(c *container.Container, b *validator.Builder, statements []container.Statement) error {
	for _, stmt := range statements {
		instance, err := c.ConstructStatement(stmt)
		if err != nil {
			return err
		}
		loader, ok := instance.(validator.Loader)
		if !ok {
			return &validator.UnexpectedTypeError{Value: instance, Expected: "validator.Loader"}
		}
		b.AddLoader(loader)
	}
	return nil
}

func setupObjectInitializers(c *container.Container, b *validator.Builder, statements []container.Statement) error {
	for _, stmt := range statements {
		instance, err := c.ConstructStatement(stmt)
		if err != nil {
			return err
		}
		initializer, ok := instance.(validator.ObjectInitializer)
		if !ok {
			return &validator.UnexpectedTypeError{Value: instance, Expected: "validator.ObjectInitializer"}
		}
		b.AddObjectInitializer(initializer)
	}
	return nil
}

// setupTranslator 关闭翻译时既不设置翻译器也不设置翻译域
func setupTranslator(c *container.Container, b *validator.Builder, cfg TranslationConfig) error {
	if cfg.Translator.Disabled {
		return nil
	}

	if cfg.Domain != "" {
		b.SetTranslationDomain(cfg.Domain)
	}

	if stmt := cfg.Translator.Statement; !stmt.IsZero() {
		trans, err := resolveTranslator(c, stmt)
		if err != nil {
			return err
		}
		b.SetTranslator(trans)
		return nil
	}

	instance, err := c.LookupByType(translatorTypeName)
	if err != nil {
		return err
	}
	if trans, ok := instance.(ut.Translator); ok {
		b.SetTranslator(trans)
	}
	return nil
}

// resolveTranslator 已登记的类型由容器构造，否则按语言代码创建
func resolveTranslator(c *container.Container, stmt container.Statement) (ut.Translator, error) {
	if !c.KnowsType(stmt.Type) {
		return validator.NewTranslator(stmt.Type)
	}

	instance, err := c.ConstructStatement(stmt)
	if err != nil {
		return nil, err
	}
	trans, ok := instance.(ut.Translator)
	if !ok {
		return nil, &validator.UnexpectedTypeError{Value: instance, Expected: translatorTypeName}
	}
	return trans, nil
}

func setupMapping(b *validator.Builder, cfg MappingConfig) {
	b.EnableAnnotationMapping(cfg.AnnotationsEnabled())
	if cfg.TagName != "" {
		b.SetTagName(cfg.TagName)
	}
	b.AddXMLMappings(cfg.XML...)
	b.AddYAMLMappings(cfg.YAML...)
	b.AddMethodMappings(cfg.Methods...)
}

func decodeArgs(args map[string]any, out any) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook:       mapstructure.StringToTimeDurationHookFunc(),
		WeaklyTypedInput: true,
		Result:           out,
	})
	if err != nil {
		return err
	}
	return decoder.Decode(args)
}

// ============================================================================
// 容器访问
// ============================================================================

// Builder 从容器取出构建器
func Builder(c *container.Container) (*validator.Builder, error) {
	var b *validator.Builder
	err := c.Invoke(func(p builderParams) {
		b = p.Builder
	})
	return b, err
}

// Validator 从容器取出验证器
func Validator(c *container.Container) (*validator.Validator, error) {
	instance, err := c.LookupByType(validatorTypeName)
	if err != nil {
		return nil, err
	}
	v, ok := instance.(*validator.Validator)
	if !ok {
		return nil, fmt.Errorf("%w: validator is not registered", ErrInvalidConfig)
	}
	return v, nil
}

// Bootstrap 按整份配置注册日志器与验证器
// 未通过 WithLogger 指定日志器时按 settings.Logger 创建，并以 *zap.Logger 注册到容器
func Bootstrap(c *container.Container, settings *Settings, opts ...Option) (*Extension, error) {
	if settings == nil {
		return nil, fmt.Errorf("%w: nil settings", ErrInvalidConfig)
	}

	e := NewExtension(append([]Option{WithLogger(logger.New(settings.Logger))}, opts...)...)
	if err := c.Supply(e.logger); err != nil {
		return nil, fmt.Errorf("register logger: %w", err)
	}
	if err := e.Register(c, settings.Validator, settings.Parameters); err != nil {
		return nil, err
	}
	return e, nil
}
