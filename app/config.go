package app

import (
	"io/ioutil"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

const defaultConfig = `# AmmoLib

################################## LOGGING ####################################

[logging]

#
# Logging verbosity level.
# Supported values: "DEBUG", "INFO", "WARN", "ERROR", "FATAL" or "PANIC".
#
level = "WARN"

################################## STORE ######################################

[store]

#
# Path of the SQLite database backing the content providers.
#
path = "ammolib.db"

#
# Where out-of-band data is kept. Supported values: "fs" or "s3".
#
blob_backend = "fs"

#
# Directory used by the "fs" backend. Defaults to a directory next to the
# database.
#
blob_dir = ""

#
# Bucket and key prefix used by the "s3" backend.
#
blob_bucket = ""
blob_prefix = ""

################################ DISTRIBUTOR ##################################

[distributor]

#
# Base URL of the distributor service.
#
url = "http://localhost:8080/"

#
# How requests find the distributor:
#
#   transport="bind"
#   The distributor is probed in the background and requests follow its
#   availability, falling back to commands while it is away.
#
#   transport="peek"
#   The distributor is looked up once when a builder is created.
#
#   transport="command"
#   Requests are always sent as commands.
#
transport = "bind"

timeout = "10s"
probe_interval = "30s"

#
# The circuit breaker opens after breaker_failures consecutive failures and
# stays open for breaker_timeout.
#
breaker_failures = 3
breaker_timeout = "30s"

################################## COMMAND ####################################

[command]

#
# AWS SNS topic ARN commands are published to, e.g.
# "arn:aws:sns:us-east-2:444455556666:ammo".
#
topic_arn = ""

#
# AWS SQS queue URL commands are received from, e.g.
# "https://queue.amazonaws.com/80398EXAMPLE/ammo".
#
queue_url = ""

#
# Name of the table used to remember relayed requests (DynamoDB).
#
repository_table = "ammolib_commands"

################################## AWS ########################################

[aws]

s3_profile = ""
s3_endpoint = ""

dynamodb_profile = ""
dynamodb_endpoint = ""

sqs_profile = ""
sqs_endpoint = ""

sns_profile = ""
sns_endpoint = ""

################################## METRICS ####################################

[metrics]

#
# Listen address of the HTTP server (health, metrics and profiling).
#
addr = ":6060"
`

const (
	TransportBind    = "bind"
	TransportPeek    = "peek"
	TransportCommand = "command"

	BlobBackendFS = "fs"
	BlobBackendS3 = "s3"
)

type Config struct {
	v *viper.Viper

	Logging struct {
		Level string `mapstructure:"level"`
	} `mapstructure:"logging"`

	Store struct {
		Path        string `mapstructure:"path"`
		BlobBackend string `mapstructure:"blob_backend"`
		BlobDir     string `mapstructure:"blob_dir"`
		BlobBucket  string `mapstructure:"blob_bucket"`
		BlobPrefix  string `mapstructure:"blob_prefix"`
	} `mapstructure:"store"`

	Distributor struct {
		URL             string        `mapstructure:"url"`
		Transport       string        `mapstructure:"transport"`
		Timeout         time.Duration `mapstructure:"timeout"`
		ProbeInterval   time.Duration `mapstructure:"probe_interval"`
		BreakerFailures uint32        `mapstructure:"breaker_failures"`
		BreakerTimeout  time.Duration `mapstructure:"breaker_timeout"`
	} `mapstructure:"distributor"`

	Command struct {
		TopicARN        string `mapstructure:"topic_arn"`
		QueueURL        string `mapstructure:"queue_url"`
		RepositoryTable string `mapstructure:"repository_table"`
	} `mapstructure:"command"`

	AWS struct {
		S3Profile        string `mapstructure:"s3_profile"`
		S3Endpoint       string `mapstructure:"s3_endpoint"`
		DynamoDBProfile  string `mapstructure:"dynamodb_profile"`
		DynamoDBEndpoint string `mapstructure:"dynamodb_endpoint"`
		SQSProfile       string `mapstructure:"sqs_profile"`
		SQSEndpoint      string `mapstructure:"sqs_endpoint"`
		SNSProfile       string `mapstructure:"sns_profile"`
		SNSEndpoint      string `mapstructure:"sns_endpoint"`
	} `mapstructure:"aws"`

	Metrics struct {
		Addr string `mapstructure:"addr"`
	} `mapstructure:"metrics"`
}

func (c Config) Validate() error {
	switch c.Distributor.Transport {
	case TransportBind, TransportPeek:
	case TransportCommand:
		if c.Command.TopicARN == "" {
			return errors.New("distributor.transport is \"command\" but command.topic_arn is empty")
		}
	default:
		return errors.Errorf("unknown distributor.transport %q", c.Distributor.Transport)
	}
	switch c.Store.BlobBackend {
	case BlobBackendFS:
	case BlobBackendS3:
		if c.Store.BlobBucket == "" {
			return errors.New("store.blob_backend is \"s3\" but store.blob_bucket is empty")
		}
	default:
		return errors.Errorf("unknown store.blob_backend %q", c.Store.BlobBackend)
	}
	if c.Store.Path == "" {
		return errors.New("store.path is empty")
	}
	if c.Distributor.ProbeInterval <= 0 {
		return errors.New("distributor.probe_interval must be positive")
	}
	return nil
}

func (c Config) String() string {
	tmpfile, err := ioutil.TempFile("", "config.*.toml")
	if err != nil {
		return err.Error()
	}
	defer os.Remove(tmpfile.Name())
	defer tmpfile.Close()
	if err := c.v.WriteConfigAs(tmpfile.Name()); err != nil {
		return err.Error()
	}
	blob, err := ioutil.ReadAll(tmpfile)
	if err != nil {
		return err.Error()
	}
	return string(blob)
}

func loadConfig(c *Config, configFile, envFile string) error {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !os.IsNotExist(errors.Cause(err)) {
			return errors.Wrapf(err, "cannot load %s", envFile)
		}
	}

	v := viper.New()

	v.SetEnvPrefix("AMMOLIB")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetConfigName("ammolib")
	v.SetConfigType("toml")
	v.AddConfigPath("$HOME/.config/")
	v.AddConfigPath("/etc/ammo/")

	if configFile != "" {
		v.SetConfigFile(configFile)
	}

	// Read our default configuration.
	if err := v.ReadConfig(strings.NewReader(defaultConfig)); err != nil {
		panic(err) // Not in the user path.
	}

	// Include configuration file provided by the user.
	if err := v.MergeInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return err
		}
	}

	if err := v.Unmarshal(c); err != nil {
		return errors.Wrap(err, "configuration unmarshaling failed")
	}

	if err := c.Validate(); err != nil {
		return errors.Wrap(err, "config did not pass validation")
	}

	c.v = v

	return nil
}
