package container

import (
	"reflect"

	"katydid-validator-di/pkg/typename"
)

// errorType error 接口的反射类型
var errorType = reflect.TypeOf((*error)(nil)).Elem()

// TypeName 容器使用的类型名，见 typename.Of
func TypeName(t reflect.Type) string {
	return typename.Of(t)
}

// TypeNameOf 值的动态类型名
func TypeNameOf(v any) string {
	return typename.Value(v)
}

// TypeNameFor 类型参数 T 的名称
func TypeNameFor[T any]() string {
	return typename.For[T]()
}
