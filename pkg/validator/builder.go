package validator

import (
	"context"
	"fmt"
	"reflect"
	"strings"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/spf13/afero"
	"go.uber.org/zap"

	"katydid-validator-di/pkg/validator/cache"
)

const (
	// DefaultTagName 结构体标签映射默认使用的标签名
	DefaultTagName = "validate"

	// disabledTagName 关闭标签映射时使用的标签名，不会出现在任何结构体上
	disabledTagName = "-katydid-disabled-"

	// metadataKeyPrefix 映射元数据的缓存键前缀
	metadataKeyPrefix = "metadata."
)

// Builder 验证器构建器
// 各 Set/Add 方法对应一项配置，GetValidator 时统一生效
type Builder struct {
	factory           ValidatorFactory
	annotationMapping bool
	tagName           string
	xmlMappings       []string
	yamlMappings      []string
	methodMappings    []string
	loaders           []Loader
	initializers      []ObjectInitializer
	mappingCache      cache.Cache
	translator        ut.Translator
	translationDomain string
	constraints       []Constraint
	types             []any
	fs                afero.Fs
	logger            *zap.Logger
}

// NewBuilder 创建构建器
// 默认启用标签映射，使用默认工厂与本地文件系统
func NewBuilder() *Builder {
	return &Builder{
		annotationMapping: true,
		tagName:           DefaultTagName,
		fs:                afero.NewOsFs(),
		logger:            zap.NewNop(),
	}
}

// SetConstraintValidatorFactory 设置约束验证器工厂
func (b *Builder) SetConstraintValidatorFactory(factory ValidatorFactory) *Builder {
	b.factory = factory
	return b
}

// EnableAnnotationMapping 启用或关闭结构体标签映射
func (b *Builder) EnableAnnotationMapping(enabled bool) *Builder {
	b.annotationMapping = enabled
	return b
}

// SetTagName 设置结构体标签名
func (b *Builder) SetTagName(name string) *Builder {
	if name != "" {
		b.tagName = name
	}
	return b
}

// AddXMLMappings 添加 XML 映射文件
func (b *Builder) AddXMLMappings(paths ...string) *Builder {
	b.xmlMappings = append(b.xmlMappings, paths...)
	return b
}

// AddYAMLMappings 添加 YAML 映射文件
func (b *Builder) AddYAMLMappings(paths ...string) *Builder {
	b.yamlMappings = append(b.yamlMappings, paths...)
	return b
}

// AddMethodMappings 添加映射方法名
func (b *Builder) AddMethodMappings(methods ...string) *Builder {
	b.methodMappings = append(b.methodMappings, methods...)
	return b
}

// AddLoader 添加自定义映射加载器，排在文件与方法加载器之后
func (b *Builder) AddLoader(loader Loader) *Builder {
	if loader != nil {
		b.loaders = append(b.loaders, loader)
	}
	return b
}

// AddObjectInitializer 添加对象初始化器
func (b *Builder) AddObjectInitializer(initializer ObjectInitializer) *Builder {
	if initializer != nil {
		b.initializers = append(b.initializers, initializer)
	}
	return b
}

// SetMappingCache 设置映射元数据缓存
func (b *Builder) SetMappingCache(c cache.Cache) *Builder {
	b.mappingCache = c
	return b
}

// SetTranslator 设置翻译器
func (b *Builder) SetTranslator(trans ut.Translator) *Builder {
	b.translator = trans
	return b
}

// SetTranslationDomain 设置翻译域
func (b *Builder) SetTranslationDomain(domain string) *Builder {
	b.translationDomain = domain
	return b
}

// AddConstraints 添加约束，每个约束的标签会绑定到工厂解析出的验证器
func (b *Builder) AddConstraints(constraints ...Constraint) *Builder {
	for _, c := range constraints {
		if c != nil {
			b.constraints = append(b.constraints, c)
		}
	}
	return b
}

// RegisterTypes 登记需要加载映射的类型（传入零值或指针）
func (b *Builder) RegisterTypes(types ...any) *Builder {
	b.types = append(b.types, types...)
	return b
}

// SetFilesystem 设置映射文件所在的文件系统
func (b *Builder) SetFilesystem(fs afero.Fs) *Builder {
	if fs != nil {
		b.fs = fs
	}
	return b
}

// SetLogger 设置日志器
func (b *Builder) SetLogger(logger *zap.Logger) *Builder {
	if logger != nil {
		b.logger = logger
	}
	return b
}

// ============================================================================
// 只读访问
// ============================================================================

// ConstraintValidatorFactory 当前工厂
func (b *Builder) ConstraintValidatorFactory() ValidatorFactory { return b.factory }

// AnnotationMapping 是否启用标签映射
func (b *Builder) AnnotationMapping() bool { return b.annotationMapping }

// TagName 标签名
func (b *Builder) TagName() string { return b.tagName }

// XMLMappings XML 映射文件
func (b *Builder) XMLMappings() []string { return b.xmlMappings }

// YAMLMappings YAML 映射文件
func (b *Builder) YAMLMappings() []string { return b.yamlMappings }

// MethodMappings 映射方法名
func (b *Builder) MethodMappings() []string { return b.methodMappings }

// Loaders 自定义加载器
func (b *Builder) Loaders() []Loader { return b.loaders }

// ObjectInitializers 对象初始化器
func (b *Builder) ObjectInitializers() []ObjectInitializer { return b.initializers }

// MappingCache 映射缓存
func (b *Builder) MappingCache() cache.Cache { return b.mappingCache }

// Translator 翻译器
func (b *Builder) Translator() ut.Translator { return b.translator }

// TranslationDomain 翻译域
func (b *Builder) TranslationDomain() string { return b.translationDomain }

// Constraints 已添加的约束
func (b *Builder) Constraints() []Constraint { return b.constraints }

// ============================================================================
// 构建
// ============================================================================

// GetValidator 构建验证器
func (b *Builder) GetValidator() (*Validator, error) {
	engine := validator.New()
	engine.RegisterTagNameFunc(jsonTagName)
	if b.annotationMapping {
		engine.SetTagName(b.tagName)
	} else {
		engine.SetTagName(disabledTagName)
	}

	factory := b.factory
	if factory == nil {
		factory = NewConstraintValidatorFactory()
	}

	for _, c := range b.constraints {
		if expr, ok := c.(*Expression); ok {
			if err := CheckExpression(expr.Name, expr.Expr); err != nil {
				return nil, err
			}
		}
		if err := engine.RegisterValidation(c.Tag(), bridge(factory, c), callEvenIfNull(c)); err != nil {
			return nil, fmt.Errorf("register constraint %q: %w", c.Tag(), err)
		}
	}

	if err := b.registerMappings(engine); err != nil {
		return nil, err
	}

	var messages ut.Translator
	if b.translator != nil {
		var err error
		if messages, err = registerDefaultTranslations(engine, b.translator); err != nil {
			return nil, fmt.Errorf("register translations for %q: %w", b.translator.Locale(), err)
		}
		b.logger.Debug("translator configured",
			zap.String("locale", b.translator.Locale()),
			zap.String("domain", b.translationDomain))
	}

	b.logger.Debug("validator built",
		zap.Int("constraints", len(b.constraints)),
		zap.Int("types", len(b.types)),
		zap.Bool("annotation_mapping", b.annotationMapping))

	return &Validator{
		engine:       engine,
		initializers: append([]ObjectInitializer(nil), b.initializers...),
		translator:   b.translator,
		messages:     messages,
		domain:       b.translationDomain,
	}, nil
}

// loaderChain 按 XML、YAML、方法、自定义的顺序组装加载器
func (b *Builder) loaderChain() *LoaderChain {
	loaders := make([]Loader, 0, len(b.xmlMappings)+len(b.yamlMappings)+len(b.methodMappings)+len(b.loaders))
	for _, path := range b.xmlMappings {
		loaders = append(loaders, NewXMLFileLoader(b.fs, path))
	}
	for _, path := range b.yamlMappings {
		loaders = append(loaders, NewYAMLFileLoader(b.fs, path))
	}
	for _, method := range b.methodMappings {
		loaders = append(loaders, NewMethodLoader(method))
	}
	loaders = append(loaders, b.loaders...)
	return NewLoaderChain(loaders...)
}

// registerMappings 为每个登记的类型加载映射并注册到引擎
func (b *Builder) registerMappings(engine *validator.Validate) error {
	if len(b.types) == 0 {
		return nil
	}

	chain := b.loaderChain()
	if len(chain.Loaders()) == 0 {
		return nil
	}

	ctx := context.Background()
	for _, obj := range b.types {
		typ := reflect.TypeOf(obj)
		if typ == nil {
			continue
		}
		meta, err := b.loadMetadata(ctx, chain, typ)
		if err != nil {
			return err
		}
		if len(meta.Rules) == 0 {
			continue
		}
		engine.RegisterStructValidationMapRules(meta.Rules, reflect.New(meta.Type()).Elem().Interface())
	}
	return nil
}

// loadMetadata 优先读缓存，未命中时执行加载器并回写缓存
// 缓存读写失败只记录日志
func (b *Builder) loadMetadata(ctx context.Context, loader Loader, typ reflect.Type) (*TypeMetadata, error) {
	meta := NewTypeMetadata(typ)
	key := metadataKeyPrefix + meta.TypeName

	if b.mappingCache != nil {
		data, ok, err := b.mappingCache.Get(ctx, key)
		switch {
		case err != nil:
			b.logger.Warn("mapping cache read failed", zap.String("type", meta.TypeName), zap.Error(err))
		case ok:
			cached := NewTypeMetadata(typ)
			if err := json.Unmarshal(data, cached); err == nil {
				return cached, nil
			}
			b.logger.Warn("mapping cache entry corrupted", zap.String("type", meta.TypeName))
		}
	}

	if _, err := loader.LoadTypeMetadata(meta); err != nil {
		return nil, fmt.Errorf("load mapping for %s: %w", meta.TypeName, err)
	}

	if b.mappingCache != nil {
		data, err := json.Marshal(meta)
		if err == nil {
			err = b.mappingCache.Set(ctx, key, data)
		}
		if err != nil {
			b.logger.Warn("mapping cache write failed", zap.String("type", meta.TypeName), zap.Error(err))
		}
	}

	return meta, nil
}

// bridge 把约束绑定为 go-playground 的验证函数
// 工厂解析失败时终止整个验证
func bridge(factory ValidatorFactory, c Constraint) validator.Func {
	return func(fl validator.FieldLevel) bool {
		handle, err := factory.GetInstance(c)
		if err != nil {
			Abort(err)
		}
		return handle.Validate(fl, c)
	}
}

// jsonTagName 使用 json 标签作为错误中的字段名
func jsonTagName(fld reflect.StructField) string {
	name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
	if name == "-" || name == "" {
		return fld.Name
	}
	return name
}
