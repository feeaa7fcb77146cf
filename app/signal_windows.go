//go:build windows
// +build windows

package app

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/JiscSD/ammolib/distributor"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

func interrupt(cancel <-chan struct{}, logger logrus.FieldLogger, binder *distributor.Binder) error {
	c := make(chan os.Signal, 1)
	signal.Notify(c, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(c)
	select {
	case sig := <-c:
		return fmt.Errorf("received signal %s", sig)
	case <-cancel:
		return errors.New("canceled")
	}
}
