package main

import "github.com/sentinel/discovery-engine/internal/version"

func versionInfo() string { return version.Info() }
