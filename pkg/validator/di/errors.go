package di

import "errors"

var (
	// ErrInvalidConfig 配置无法解析或取值非法
	ErrInvalidConfig = errors.New("invalid validator config")

	// ErrMissingTempDir 默认文件缓存需要 parameters.tempDir
	ErrMissingTempDir = errors.New("parameters.tempDir is required by the filesystem mapping cache")
)
