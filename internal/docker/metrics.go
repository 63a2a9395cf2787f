package docker

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	callErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dcm_docker_call_errors_total",
		Help: "Total number of failed Docker API calls",
	})

	reconnects = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dcm_docker_connects_total",
		Help: "Total number of (re)connects to the Docker daemon",
	})
)
