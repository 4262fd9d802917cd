package validator

import (
	"fmt"

	"github.com/go-playground/validator/v10"

	"katydid-validator-di/pkg/typename"
)

// ExpressionSentinel 表达式约束使用的逻辑名
// 它不是可构造的类型名，工厂需要替换为 ExpressionValidatorName
const ExpressionSentinel = "validator.expression"

// ExpressionValidatorName 内置表达式验证器的类型名
var ExpressionValidatorName = typename.For[ExpressionValidator]()

// Expression 表达式约束
// Expr 为 go-playground 规则表达式（如 "gte=18,lte=130"）；为空时使用标签参数
type Expression struct {
	Name string `mapstructure:"tag"`
	Expr string `mapstructure:"expression"`
}

// NewExpression 创建表达式约束
func NewExpression(tag, expr string) *Expression {
	return &Expression{Name: tag, Expr: expr}
}

// Tag 实现 Constraint
func (e *Expression) Tag() string {
	return e.Name
}

// ValidatedBy 实现 Constraint
func (e *Expression) ValidatedBy() string {
	return ExpressionSentinel
}

// ExpressionValidator 表达式约束的验证器
type ExpressionValidator struct {
	engine *validator.Validate
}

var _ ConstraintValidator = (*ExpressionValidator)(nil)

// NewExpressionValidator 创建表达式验证器
func NewExpressionValidator() *ExpressionValidator {
	return &ExpressionValidator{engine: validator.New()}
}

// Validate 实现 ConstraintValidator
// 规则无法执行时以 *ExpressionError 终止验证
func (v *ExpressionValidator) Validate(fl validator.FieldLevel, constraint Constraint) bool {
	expr, ok := constraint.(*Expression)
	if !ok {
		Abort(&UnexpectedTypeError{Value: constraint, Expected: fmt.Sprintf("%T", (*Expression)(nil))})
	}

	rule := expr.Expr
	if rule == "" {
		rule = fl.Param()
	}
	if rule == "" {
		return true
	}

	valid, err := v.eval(fl.Field().Interface(), rule)
	if err != nil {
		Abort(&ExpressionError{Tag: expr.Name, Expr: rule, Reason: err.Error()})
	}
	return valid
}

// eval 执行规则，引擎对未知规则或非法参数的 panic 转换为错误
func (v *ExpressionValidator) eval(value any, rule string) (valid bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%v", r)
		}
	}()
	return v.engine.Var(value, rule) == nil, nil
}

// CheckExpression 检查规则能否被引擎解析
// 只检查规则本身，参数与字段类型不匹配要到执行时才能发现
func CheckExpression(tag, expr string) error {
	if expr == "" {
		return nil
	}
	if _, err := NewExpressionValidator().eval(nil, expr); err != nil {
		return &ExpressionError{Tag: tag, Expr: expr, Reason: err.Error()}
	}
	return nil
}
