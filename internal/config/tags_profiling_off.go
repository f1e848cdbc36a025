//go:build !profiling

package config

const profilingBuildDefault = false
