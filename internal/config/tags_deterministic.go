//go:build deterministic

package config

const deterministicBuildDefault = true
