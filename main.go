package main

import (
	"context"
	"os"

	"github.com/JiscSD/ammolib/app"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

func main() {
	err := app.Run(os.Args[1:], os.Stdout, os.Stderr)
	switch {
	case err == nil:
	case errors.Cause(err) == context.Canceled:
		logrus.WithError(err).Debug("Context cancelled")
	default:
		logrus.Fatal(err)
	}
}
