package validator

import (
	"errors"
	"strings"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testUser struct {
	Name  string `json:"name" validate:"required"`
	Email string `json:"email"`
	Age   int    `json:"age"`
}

// MappingRules 方法映射
func (testUser) MappingRules() map[string]string {
	return map[string]string{"Age": "gte=18"}
}

// BrokenRules 签名不符合要求
func (testUser) BrokenRules() []string {
	return nil
}

func upperValidator() ConstraintValidator {
	return ValidatorFunc(func(fl validator.FieldLevel, _ Constraint) bool {
		s := fl.Field().String()
		return strings.ToUpper(s) == s
	})
}

func mustValidator(t *testing.T, b *Builder) *Validator {
	t.Helper()
	v, err := b.GetValidator()
	require.NoError(t, err)
	return v
}

func requireViolations(t *testing.T, err error) *Violations {
	t.Helper()
	var violations *Violations
	require.True(t, errors.As(err, &violations), "expected *Violations, got %v", err)
	return violations
}

// TestValidator_Struct 测试结构体验证
func TestValidator_Struct(t *testing.T) {
	v := mustValidator(t, NewBuilder())

	t.Run("通过", func(t *testing.T) {
		assert.NoError(t, v.Struct(&testUser{Name: "alice"}))
	})

	t.Run("违规", func(t *testing.T) {
		violations := requireViolations(t, v.Struct(testUser{}))
		require.Len(t, violations.Errors, 1)

		fe := violations.Errors[0]
		assert.Equal(t, "Name", fe.FieldName)
		assert.Equal(t, "name", fe.JsonName)
		assert.Equal(t, "required", fe.Tag)
		assert.Equal(t, "testUser.name", fe.Namespace)
		assert.Empty(t, fe.Message)
		assert.Equal(t, "field 'name' validation failed on tag 'required'", violations.Error())
	})

	t.Run("nil目标", func(t *testing.T) {
		assert.ErrorIs(t, v.Struct(nil), ErrNilTarget)
		assert.ErrorIs(t, v.Struct((*testUser)(nil)), ErrNilTarget)
	})

	t.Run("非结构体", func(t *testing.T) {
		var invalid *validator.InvalidValidationError
		assert.True(t, errors.As(v.Struct(42), &invalid))
	})
}

// TestViolations 测试违规集合
func TestViolations(t *testing.T) {
	violations := &Violations{}
	assert.False(t, violations.HasErrors())
	assert.Equal(t, "validation passed: no errors", violations.Error())

	violations.Add(nil)
	violations.Add(&FieldError{JsonName: "name", Tag: "required", Namespace: "User.name"})
	violations.Add(&FieldError{JsonName: "email", Tag: "email", Message: "email is invalid", Namespace: "User.email"})

	assert.True(t, violations.HasErrors())
	assert.Len(t, violations.ByTag("required"), 1)
	assert.Len(t, violations.ByNamespace("User.email"), 1)
	assert.Empty(t, violations.ByTag("min"))
	assert.Equal(t, "field 'name' validation failed on tag 'required'; field 'email': email is invalid", violations.Error())

	data, err := violations.ToJSON()
	require.NoError(t, err)
	assert.Contains(t, string(data), `"json_name":"email"`)
	assert.Contains(t, string(data), `"message":"email is invalid"`)
}

// TestBuilder_Constraints 测试约束与工厂的桥接
func TestBuilder_Constraints(t *testing.T) {
	t.Run("自定义验证器", func(t *testing.T) {
		factory := NewConstraintValidatorFactory().Register("test.Upper", upperValidator)
		v := mustValidator(t, NewBuilder().
			SetConstraintValidatorFactory(factory).
			AddConstraints(NewConstraint("upper", "test.Upper")))

		assert.NoError(t, v.Var("ABC", "upper"))
		violations := requireViolations(t, v.Var("abc", "upper"))
		assert.Equal(t, "upper", violations.Errors[0].Tag)
	})

	t.Run("未知验证器终止验证", func(t *testing.T) {
		v := mustValidator(t, NewBuilder().AddConstraints(NewConstraint("ghost", "missing.Validator")))

		err := v.Var("x", "ghost")
		var configErr *ConfigurationError
		require.True(t, errors.As(err, &configErr))
		assert.Equal(t, "missing.Validator", configErr.ValidatorName)
		assert.Equal(t, "*validator.Basic", configErr.ConstraintType)
		assert.ErrorIs(t, err, ErrValidator)
		assert.Contains(t, err.Error(), `constraint validator "missing.Validator" does not exist or is not enabled`)
	})

	t.Run("表达式约束", func(t *testing.T) {
		v := mustValidator(t, NewBuilder().AddConstraints(
			NewExpression("adult", "gte=18"),
			NewExpression("within", ""),
		))

		assert.NoError(t, v.Var(20, "adult"))
		requireViolations(t, v.Var(17, "adult"))

		assert.NoError(t, v.Var(2, "within=lte=3"))
		requireViolations(t, v.Var(5, "within=lte=3"))
	})

	t.Run("表达式验证器拒绝其它约束", func(t *testing.T) {
		v := mustValidator(t, NewBuilder().AddConstraints(NewConstraint("expr", ExpressionSentinel)))

		var unexpected *UnexpectedTypeError
		require.True(t, errors.As(v.Var("x", "expr"), &unexpected))
		assert.Equal(t, "*validator.Expression", unexpected.Expected)
	})

	t.Run("非法表达式", func(t *testing.T) {
		_, err := NewBuilder().AddConstraints(NewExpression("adult", "notarule=1")).GetValidator()

		var exprErr *ExpressionError
		require.True(t, errors.As(err, &exprErr))
		assert.Equal(t, "adult", exprErr.Tag)
		assert.Equal(t, "notarule=1", exprErr.Expr)
		assert.ErrorIs(t, err, ErrInvalidExpression)
		assert.NoError(t, CheckExpression("adult", "gte=18,lte=130"))
	})

	t.Run("表达式执行失败终止验证", func(t *testing.T) {
		v := mustValidator(t, NewBuilder().AddConstraints(
			NewExpression("adult", "gte=abc"),
			NewExpression("within", ""),
		))

		var err error
		require.NotPanics(t, func() { err = v.Var(20, "adult") })
		assert.ErrorIs(t, err, ErrInvalidExpression)

		require.NotPanics(t, func() { err = v.Var(20, "within=notarule") })
		var exprErr *ExpressionError
		require.True(t, errors.As(err, &exprErr))
		assert.Equal(t, "within", exprErr.Tag)
		assert.Equal(t, "notarule", exprErr.Expr)
	})

	t.Run("空值约束", func(t *testing.T) {
		calls := 0
		factory := NewConstraintValidatorFactory().Register("test.Counter", func() ConstraintValidator {
			return ValidatorFunc(func(validator.FieldLevel, Constraint) bool {
				calls++
				return true
			})
		})
		c := NewConstraint("counted", "test.Counter")
		c.EvenIfNull = true

		v := mustValidator(t, NewBuilder().SetConstraintValidatorFactory(factory).AddConstraints(c))
		var ptr *string
		require.NoError(t, v.Var(ptr, "counted"))
		assert.Equal(t, 1, calls)
	})
}

// TestConstraintValidatorFactory 测试默认工厂
func TestConstraintValidatorFactory(t *testing.T) {
	built := 0
	factory := NewConstraintValidatorFactory().Register("test.Upper", func() ConstraintValidator {
		built++
		return upperValidator()
	})

	first, err := factory.GetInstance(NewConstraint("upper", "test.Upper"))
	require.NoError(t, err)
	second, err := factory.GetInstance(NewConstraint("other", "test.Upper"))
	require.NoError(t, err)
	assert.Equal(t, 1, built)
	assert.NotNil(t, first)
	assert.NotNil(t, second)

	expr, err := factory.GetInstance(NewExpression("adult", "gte=18"))
	require.NoError(t, err)
	assert.IsType(t, &ExpressionValidator{}, expr)

	_, err = factory.GetInstance(nil)
	assert.ErrorIs(t, err, ErrNilConstraint)

	assert.Equal(t, ExpressionValidatorName, ResolveValidatorName(NewExpression("x", "")))
	assert.Equal(t, "katydid-validator-di/pkg/validator.ExpressionValidator", ExpressionValidatorName)
}

// TestValidator_Initializers 测试对象初始化器
func TestValidator_Initializers(t *testing.T) {
	var seen []any
	v := mustValidator(t, NewBuilder().
		AddObjectInitializer(ObjectInitializerFunc(func(obj any) {
			seen = append(seen, obj)
			if u, ok := obj.(*testUser); ok && u.Name == "" {
				u.Name = "anonymous"
			}
		})).
		AddObjectInitializer(nil))

	user := &testUser{}
	require.NoError(t, v.Struct(user))
	assert.Equal(t, "anonymous", user.Name)
	assert.Len(t, seen, 1)

	// nil 目标不会触发初始化器
	assert.ErrorIs(t, v.Struct(nil), ErrNilTarget)
	assert.Len(t, seen, 1)
}

// TestBuilder_AnnotationMapping 测试标签映射开关
func TestBuilder_AnnotationMapping(t *testing.T) {
	t.Run("关闭", func(t *testing.T) {
		b := NewBuilder().EnableAnnotationMapping(false)
		assert.False(t, b.AnnotationMapping())
		v := mustValidator(t, b)
		assert.NoError(t, v.Struct(testUser{}))
	})

	t.Run("自定义标签名", func(t *testing.T) {
		type tagged struct {
			Code string `json:"code" rules:"required"`
		}
		b := NewBuilder().SetTagName("rules")
		assert.Equal(t, "rules", b.TagName())
		v := mustValidator(t, b)

		violations := requireViolations(t, v.Struct(tagged{}))
		assert.Equal(t, "code", violations.Errors[0].JsonName)
	})

	t.Run("空标签名保持默认", func(t *testing.T) {
		assert.Equal(t, DefaultTagName, NewBuilder().SetTagName("").TagName())
	})
}

// TestAbort 测试终止验证
func TestAbort(t *testing.T) {
	boom := errors.New("boom")
	factory := NewConstraintValidatorFactory().
		Register("test.Abort", func() ConstraintValidator {
			return ValidatorFunc(func(validator.FieldLevel, Constraint) bool {
				Abort(boom)
				return true
			})
		}).
		Register("test.Panic", func() ConstraintValidator {
			return ValidatorFunc(func(validator.FieldLevel, Constraint) bool {
				panic("unrelated")
			})
		})

	v := mustValidator(t, NewBuilder().
		SetConstraintValidatorFactory(factory).
		AddConstraints(NewConstraint("abort", "test.Abort"), NewConstraint("explode", "test.Panic")))

	assert.Same(t, boom, v.Var("x", "abort"))

	// 终止后验证器仍可继续使用
	assert.Same(t, boom, v.Var("y", "abort"))

	assert.PanicsWithValue(t, "unrelated", func() {
		_ = v.Var("x", "explode")
	})
}
