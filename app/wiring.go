package app

import (
	"context"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/JiscSD/ammolib/command"
	"github.com/JiscSD/ammolib/distributor"
	"github.com/JiscSD/ammolib/provider"
	"github.com/JiscSD/ammolib/s3"
	"github.com/JiscSD/ammolib/version"

	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/sns"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"
)

type logrusProxy struct {
	logger logrus.FieldLogger
}

func (l logrusProxy) Log(args ...interface{}) {
	l.logger.WithField("client", "aws").Debug(args...)
}

// awsSession returns a session using NewSessionWithOptions meaning that it
// relies on the SDK defaults but also the user config files and environment.
//
// AWS_S3_FORCE_PATH_STYLE is not looked up by the SDK; it is read here so
// local S3 emulators can be used without more configuration surface.
func awsSession(logger logrus.FieldLogger, profile, endpoint string) (*session.Session, error) {
	options := session.Options{}
	if profile != "" {
		options.Profile = profile
	}
	if endpoint != "" {
		options.Config.WithEndpoint(endpoint)
	}
	if res, ok := os.LookupEnv("AWS_S3_FORCE_PATH_STYLE"); ok {
		enabled, _ := strconv.ParseBool(res)
		options.Config.WithS3ForcePathStyle(enabled)
	}
	if logrus.GetLevel() == logrus.DebugLevel {
		options.Config.WithCredentialsChainVerboseErrors(true)
	}
	options.Config.WithLogger(logrusProxy{logger: logger})
	return session.NewSessionWithOptions(options)
}

// openStore opens the SQLite content providers with the configured blob
// backend.
func openStore(ctx context.Context, logger logrus.FieldLogger, config *Config) (*provider.SQLiteResolver, error) {
	var blobs provider.BlobStore
	switch config.Store.BlobBackend {
	case BlobBackendS3:
		sess, err := awsSession(logger, config.AWS.S3Profile, config.AWS.S3Endpoint)
		if err != nil {
			return nil, err
		}
		blobs = provider.NewS3BlobStore(s3.New(sess), config.Store.BlobBucket, config.Store.BlobPrefix, afero.NewOsFs())
	default:
		dir := config.Store.BlobDir
		if dir == "" {
			dir = filepath.Join(filepath.Dir(config.Store.Path), provider.DefaultBlobDir)
		}
		blobs = provider.NewFSBlobStore(afero.NewOsFs(), dir)
	}
	return provider.NewSQLiteResolver(ctx, config.Store.Path,
		provider.WithLogger(logger.WithField("component", "store")),
		provider.WithBlobStore(blobs))
}

func distributorClient(logger logrus.FieldLogger, config *Config) (*distributor.Client, error) {
	const (
		dialTimeout      = 5 * time.Second
		handshakeTimeout = 5 * time.Second
	)
	httpClient := &http.Client{
		Timeout: config.Distributor.Timeout,
		Transport: &http.Transport{
			DialContext:         (&net.Dialer{Timeout: dialTimeout}).DialContext,
			TLSHandshakeTimeout: handshakeTimeout,
		},
	}
	return distributor.NewClient(config.Distributor.URL,
		distributor.WithHTTPClient(httpClient),
		distributor.WithUserAgent("ammolib/"+version.VERSION),
		distributor.WithClientLogger(logger.WithField("component", "distributor")),
		distributor.WithBreaker(config.Distributor.BreakerFailures, config.Distributor.BreakerTimeout))
}

// commandPublisher returns nil when no topic is configured.
func commandPublisher(logger logrus.FieldLogger, config *Config) (*command.Publisher, error) {
	if config.Command.TopicARN == "" {
		return nil, nil
	}
	sess, err := awsSession(logger, config.AWS.SNSProfile, config.AWS.SNSEndpoint)
	if err != nil {
		return nil, errors.Wrap(err, "cannot create SNS session")
	}
	return command.NewPublisher(logger.WithField("component", "publisher"), sns.New(sess), config.Command.TopicARN), nil
}
