// Package typename 为类型生成稳定的字符串名称
// 容器以此名称登记与查找服务，验证约束以此名称声明其验证器
package typename

import "reflect"

// Of 返回类型的完整名称（包路径.类型名）
// 指针会被剥离，*T 与 T 得到相同的名称
// 未命名类型（切片、map、函数等）返回 reflect 的字符串表示
func Of(t reflect.Type) string {
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t == nil {
		return ""
	}
	if t.Name() == "" || t.PkgPath() == "" {
		return t.String()
	}
	return t.PkgPath() + "." + t.Name()
}

// Value 返回值的动态类型名称，nil 返回空串
func Value(v any) string {
	if v == nil {
		return ""
	}
	return Of(reflect.TypeOf(v))
}

// For 返回类型参数 T 的名称，T 可以是接口
func For[T any]() string {
	return Of(reflect.TypeOf((*T)(nil)).Elem())
}
