package validator

import (
	"errors"
	"fmt"
)

var (
	// ErrValidator 验证器配置或解析失败的根错误
	ErrValidator = errors.New("validator error")

	// ErrNilConstraint 约束为nil
	ErrNilConstraint = errors.New("constraint cannot be nil")

	// ErrNilTarget 验证目标为nil
	ErrNilTarget = errors.New("validation target cannot be nil")

	// ErrUnknownLocale 不支持的翻译语言
	ErrUnknownLocale = errors.New("unknown translation locale")

	// ErrInvalidMapping 映射文件格式错误
	ErrInvalidMapping = errors.New("invalid constraint mapping")

	// ErrInvalidExpression 表达式约束的规则无法解析或执行
	ErrInvalidExpression = errors.New("invalid constraint expression")
)

// ConfigurationError 约束声明的验证器类型既未注册也无法构造
type ConfigurationError struct {
	// ValidatorName 解析失败的验证器类型名
	ValidatorName string
	// ConstraintType 声明该验证器的约束类型
	ConstraintType string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf(`constraint validator %q does not exist or is not enabled. Check the "ValidatedBy" method in your constraint type %q`,
		e.ValidatorName, e.ConstraintType)
}

// Is 使 errors.Is(err, ErrValidator) 成立
func (e *ConfigurationError) Is(target error) bool {
	return target == ErrValidator
}

// ExpressionError 表达式约束的规则无效
type ExpressionError struct {
	Tag    string
	Expr   string
	Reason string
}

func (e *ExpressionError) Error() string {
	return fmt.Sprintf("constraint %q: invalid expression %q: %s", e.Tag, e.Expr, e.Reason)
}

// Is 使 errors.Is 对 ErrInvalidExpression 与 ErrValidator 成立
func (e *ExpressionError) Is(target error) bool {
	return target == ErrInvalidExpression || target == ErrValidator
}

// UnexpectedTypeError 解析得到的值不是期望的类型
type UnexpectedTypeError struct {
	// Value 实际得到的值
	Value any
	// Expected 期望的类型或能力
	Expected string
}

func (e *UnexpectedTypeError) Error() string {
	return fmt.Sprintf("expected argument of type %q, %q given", e.Expected, fmt.Sprintf("%T", e.Value))
}

// Is 使 errors.Is(err, ErrValidator) 成立
func (e *UnexpectedTypeError) Is(target error) bool {
	return target == ErrValidator
}

// abortion 在 go-playground 的回调中终止验证
type abortion struct {
	err error
}

// Abort 终止当前验证，err 将作为 Validator.Struct / Validator.Var 的返回值
// 只能在约束验证器的 Validate 中调用
func Abort(err error) {
	panic(&abortion{err: err})
}

// recoverAbort 把 Abort 触发的 panic 转换为错误，其它 panic 继续上抛
func recoverAbort(errp *error) {
	if r := recover(); r != nil {
		if a, ok := r.(*abortion); ok {
			*errp = a.err
			return
		}
		panic(r)
	}
}
