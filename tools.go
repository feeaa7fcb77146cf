//go:build tools
// +build tools

package tools

import (
	// go install golang.org/x/tools/cmd/cover
	_ "golang.org/x/tools/cmd/cover"
)
