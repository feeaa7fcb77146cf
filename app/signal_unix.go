//go:build !windows
// +build !windows

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

// interrupt waits for a termination signal. SIGUSR1 probes the distributor
// right away and SIGUSR2 logs whether it is connected.
func interrupt(cancel <-chan struct{}, logger logrus.FieldLogger, binder *distributor.Binder) error {
	c := make(chan os.Signal, 1)
	signal.Notify(c, syscall.SIGINT, syscall.SIGTERM, syscall.SIGUSR1, syscall.SIGUSR2)
	defer signal.Stop(c)
	for {
		select {
		case sig := <-c:
			switch sig {
			case syscall.SIGUSR1:
				binder.Probe()
				continue
			case syscall.SIGUSR2:
				logger.WithField("connected", binder.Connected()).Info("Distributor status")
				continue
			default:
				return fmt.Errorf("received signal %s", sig)
			}
		case <-cancel:
			return errors.New("canceled")
		}
	}
}
