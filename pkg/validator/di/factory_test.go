package di

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"katydid-validator-di/pkg/container"
	kvalidator "katydid-validator-di/pkg/validator"
)

// Dependency DummyValidator 的依赖
type Dependency struct {
	Name string
}

// DummyValidator 需要注入依赖的验证器
type DummyValidator struct {
	Dependency *Dependency
}

// NewDummyValidator 创建 DummyValidator
func NewDummyValidator(dep *Dependency) *DummyValidator {
	return &DummyValidator{Dependency: dep}
}

// Validate 值不能等于依赖的名称
func (v *DummyValidator) Validate(fl validator.FieldLevel, _ kvalidator.Constraint) bool {
	return fl.Field().String() != v.Dependency.Name
}

// DummyConstraint 由 DummyValidator 执行的约束
type DummyConstraint struct{}

// Tag 实现 Constraint
func (DummyConstraint) Tag() string { return "dummy" }

// ValidatedBy 实现 Constraint
func (DummyConstraint) ValidatedBy() string { return dummyValidatorName }

// notAValidator 不具备验证能力的服务
type notAValidator struct{}

var (
	dummyValidatorName = container.TypeNameFor[DummyValidator]()
	notAValidatorName  = container.TypeNameFor[notAValidator]()
)

// countingLocator 统计容器调用次数
type countingLocator struct {
	next       Locator
	lookups    atomic.Int32
	knows      atomic.Int32
	constructs atomic.Int32
	names      sync.Map
}

func (l *countingLocator) LookupByType(typeName string) (any, error) {
	l.lookups.Add(1)
	l.names.Store(typeName, true)
	return l.next.LookupByType(typeName)
}

func (l *countingLocator) KnowsType(typeName string) bool {
	l.knows.Add(1)
	return l.next.KnowsType(typeName)
}

func (l *countingLocator) Construct(typeName string) (any, error) {
	l.constructs.Add(1)
	return l.next.Construct(typeName)
}

func (l *countingLocator) asked(typeName string) bool {
	_, ok := l.names.Load(typeName)
	return ok
}

func newCounting(c *container.Container) *countingLocator {
	return &countingLocator{next: c}
}

// TestContainerValidatorFactory_Registered 容器中已注册的实例
func TestContainerValidatorFactory_Registered(t *testing.T) {
	c := container.New()
	dep := &Dependency{Name: "db"}
	registered := NewDummyValidator(dep)
	require.NoError(t, c.Supply(registered))
	require.NoError(t, c.RegisterType(NewDummyValidator))

	locator := newCounting(c)
	factory := NewContainerValidatorFactory(locator)

	first, err := factory.GetInstance(DummyConstraint{})
	require.NoError(t, err)
	assert.Same(t, registered, first)

	second, err := factory.GetInstance(DummyConstraint{})
	require.NoError(t, err)
	assert.Same(t, registered, second)

	assert.EqualValues(t, 1, locator.lookups.Load())
	assert.EqualValues(t, 0, locator.constructs.Load())
	assert.Equal(t, 1, factory.Len())
}

// TestContainerValidatorFactory_Construct 未注册但已登记的类型
func TestContainerValidatorFactory_Construct(t *testing.T) {
	c := container.New()
	dep := &Dependency{Name: "db"}
	require.NoError(t, c.Supply(dep))
	require.NoError(t, c.RegisterType(NewDummyValidator))

	locator := newCounting(c)
	factory := NewContainerValidatorFactory(locator)

	first, err := factory.GetInstance(DummyConstraint{})
	require.NoError(t, err)
	require.IsType(t, &DummyValidator{}, first)
	assert.Same(t, dep, first.(*DummyValidator).Dependency)

	for i := 0; i < 5; i++ {
		again, err := factory.GetInstance(DummyConstraint{})
		require.NoError(t, err)
		assert.Same(t, first, again)
	}

	assert.EqualValues(t, 1, locator.constructs.Load())
	assert.EqualValues(t, 1, locator.lookups.Load())
}

// TestContainerValidatorFactory_Unknown 既未注册也未登记的类型
func TestContainerValidatorFactory_Unknown(t *testing.T) {
	c := container.New()
	locator := newCounting(c)
	factory := NewContainerValidatorFactory(locator)

	_, err := factory.GetInstance(kvalidator.NewConstraint("ghost", "nonexistent.Type"))

	var configErr *kvalidator.ConfigurationError
	require.True(t, errors.As(err, &configErr))
	assert.Equal(t, "nonexistent.Type", configErr.ValidatorName)
	assert.Equal(t, "*validator.Basic", configErr.ConstraintType)
	assert.Contains(t, err.Error(), `"nonexistent.Type"`)
	assert.Contains(t, err.Error(), `"*validator.Basic"`)
	assert.EqualValues(t, 0, locator.constructs.Load())
	assert.Equal(t, 0, factory.Len())

	// 失败不缓存：登记类型后可以解析
	require.NoError(t, c.Supply(&Dependency{}))
	require.NoError(t, c.RegisterType(NewDummyValidator))
	handle, err := factory.GetInstance(DummyConstraint{})
	require.NoError(t, err)
	assert.IsType(t, &DummyValidator{}, handle)
}

// TestContainerValidatorFactory_UnexpectedType 解析结果不是验证器
func TestContainerValidatorFactory_UnexpectedType(t *testing.T) {
	constraint := kvalidator.NewConstraint("broken", notAValidatorName)

	t.Run("来自注册", func(t *testing.T) {
		c := container.New()
		require.NoError(t, c.Supply(&notAValidator{}))
		factory := NewContainerValidatorFactory(c)

		_, err := factory.GetInstance(constraint)
		var unexpected *kvalidator.UnexpectedTypeError
		require.True(t, errors.As(err, &unexpected))
		assert.Equal(t, "ConstraintValidator", unexpected.Expected)
		assert.IsType(t, &notAValidator{}, unexpected.Value)
		assert.ErrorIs(t, err, kvalidator.ErrValidator)
		assert.Equal(t, 0, factory.Len())
	})

	t.Run("来自构造", func(t *testing.T) {
		c := container.New()
		require.NoError(t, c.RegisterType(func() *notAValidator { return &notAValidator{} }))
		locator := newCounting(c)
		factory := NewContainerValidatorFactory(locator)

		_, err := factory.GetInstance(constraint)
		var unexpected *kvalidator.UnexpectedTypeError
		require.True(t, errors.As(err, &unexpected))
		assert.Equal(t, 0, factory.Len())

		// 未缓存，再次调用会重新构造
		_, err = factory.GetInstance(constraint)
		assert.Error(t, err)
		assert.EqualValues(t, 2, locator.constructs.Load())
	})
}

// TestContainerValidatorFactory_Expression 表达式逻辑名替换
func TestContainerValidatorFactory_Expression(t *testing.T) {
	c := container.New()
	require.NoError(t, c.RegisterType(kvalidator.NewExpressionValidator))
	locator := newCounting(c)
	factory := NewContainerValidatorFactory(locator)

	handle, err := factory.GetInstance(kvalidator.NewExpression("adult", "gte=18"))
	require.NoError(t, err)
	assert.IsType(t, &kvalidator.ExpressionValidator{}, handle)

	assert.True(t, locator.asked(kvalidator.ExpressionValidatorName))
	assert.False(t, locator.asked(kvalidator.ExpressionSentinel))

	again, err := factory.GetInstance(kvalidator.NewConstraint("other", kvalidator.ExpressionSentinel))
	require.NoError(t, err)
	assert.Same(t, handle, again)
}

// TestContainerValidatorFactory_Errors 容器错误原样返回
func TestContainerValidatorFactory_Errors(t *testing.T) {
	t.Run("多个注册", func(t *testing.T) {
		c := container.New()
		require.NoError(t, c.Supply(NewDummyValidator(&Dependency{}), container.WithName("a")))
		require.NoError(t, c.Supply(NewDummyValidator(&Dependency{}), container.WithName("b")))

		_, err := NewContainerValidatorFactory(c).GetInstance(DummyConstraint{})
		assert.ErrorIs(t, err, container.ErrAmbiguousService)
	})

	t.Run("构造失败", func(t *testing.T) {
		c := container.New()
		boom := errors.New("boom")
		require.NoError(t, c.RegisterType(func() (*DummyValidator, error) { return nil, boom }))

		factory := NewContainerValidatorFactory(c)
		_, err := factory.GetInstance(DummyConstraint{})
		assert.Same(t, boom, err)
		assert.Equal(t, 0, factory.Len())
	})

	t.Run("nil约束", func(t *testing.T) {
		_, err := NewContainerValidatorFactory(container.New()).GetInstance(nil)
		assert.ErrorIs(t, err, kvalidator.ErrNilConstraint)
	})
}

// TestContainerValidatorFactory_Concurrent 并发首次解析只构造一次
func TestContainerValidatorFactory_Concurrent(t *testing.T) {
	c := container.New()
	require.NoError(t, c.Supply(&Dependency{}))
	require.NoError(t, c.RegisterType(NewDummyValidator))
	locator := newCounting(c)
	factory := NewContainerValidatorFactory(locator)

	const workers = 32
	results := make([]kvalidator.ConstraintValidator, workers)
	var wg sync.WaitGroup
	start := make(chan struct{})
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			handle, err := factory.GetInstance(DummyConstraint{})
			if err == nil {
				results[i] = handle
			}
		}(i)
	}
	close(start)
	wg.Wait()

	for i := 1; i < workers; i++ {
		require.NotNil(t, results[i])
		assert.Same(t, results[0], results[i])
	}
	assert.EqualValues(t, 1, locator.constructs.Load())
}

// TestContainerValidatorFactory_Validation 通过工厂执行验证
func TestContainerValidatorFactory_Validation(t *testing.T) {
	c := container.New()
	require.NoError(t, c.Supply(&Dependency{Name: "forbidden"}))
	require.NoError(t, c.RegisterType(NewDummyValidator))

	v, err := kvalidator.NewBuilder().
		SetConstraintValidatorFactory(NewContainerValidatorFactory(c)).
		AddConstraints(DummyConstraint{}).
		GetValidator()
	require.NoError(t, err)

	assert.NoError(t, v.Var("allowed", "dummy"))

	var violations *kvalidator.Violations
	require.True(t, errors.As(v.Var("forbidden", "dummy"), &violations))
	assert.Equal(t, "dummy", violations.Errors[0].Tag)
}
