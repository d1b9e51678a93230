package main

import (
	"github.com/ilyakaznacheev/cleanenv"
)

type ServiceConfig struct {
	Environment string `env:"SENTRY_ENVIRONMENT" env-default:"development"`
	SentryDSN   string `env:"SENTRY_DSN"`
	Port        string `env:"PORT" env-default:"8080"`

	BucketURL string `env:"VMTRACE_BUCKET_URL" env-default:"file://localhost/tmp/vmtrace"`

	KafkaBrokers        []string `env:"VMTRACE_KAFKA_BROKERS" env-default:"localhost:9092"`
	CallTreesKafkaTopic string   `env:"VMTRACE_CALL_TREES_KAFKA_TOPIC" env-default:"vmtrace-call-trees"`

	Workers int `env:"VMTRACE_WORKERS" env-default:"4"`

	LogLevel string `env:"LOG_LEVEL" env-default:"info"`
}

func readServiceConfig() (ServiceConfig, error) {
	var c ServiceConfig
	err := cleanenv.ReadEnv(&c)
	return c, err
}
