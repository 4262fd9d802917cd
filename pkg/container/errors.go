package container

import "errors"

var (
	// ErrAmbiguousService 同一类型存在多个可自动装配的注册
	ErrAmbiguousService = errors.New("container: multiple services registered for type")

	// ErrUnknownType 类型未在容器的类型注册表中登记
	ErrUnknownType = errors.New("container: type is not known")

	// ErrInvalidConstructor 构造函数签名不合法
	ErrInvalidConstructor = errors.New("container: invalid constructor")

	// ErrNilValue 注册的实例为nil
	ErrNilValue = errors.New("container: value cannot be nil")
)
