//go:build profiling

package config

const profilingBuildDefault = true
