// Command exporter publishes container metadata for the assistant-core
// compose stack as a Prometheus metric. Grafana joins it against the
// gateway's own metrics to label panels with service names and states.
//
// It runs as its own module so the main build never pulls the Docker SDK.
package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/client"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var containerInfo = prometheus.NewGaugeVec(
	prometheus.GaugeOpts{
		Name: "compose_container_info",
		Help: "One series per container in the stack, value fixed at 1.",
	},
	[]string{"id", "name", "image", "service", "state"},
)

func init() {
	prometheus.MustRegister(containerInfo)
}

// refresh rebuilds the gauge from the current container list. The vector is
// reset first so containers that left the stack drop out of the scrape.
func refresh(ctx context.Context, cli *client.Client) error {
	containers, err := cli.ContainerList(ctx, container.ListOptions{All: true})
	if err != nil {
		return err
	}
	containerInfo.Reset()
	for _, c := range containers {
		id := c.ID
		if len(id) > 12 {
			id = id[:12]
		}
		name := ""
		if len(c.Names) > 0 {
			name = strings.TrimPrefix(c.Names[0], "/")
		}
		service := c.Labels["com.docker.compose.service"]
		if service == "" {
			service = name
		}
		containerInfo.WithLabelValues(id, name, c.Image, service, c.State).Set(1)
	}
	return nil
}

func main() {
	addr := flag.String("addr", ":8000", "listen address for /metrics")
	interval := flag.Duration("interval", 15*time.Second, "container list refresh interval")
	flag.Parse()

	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		log.Fatalf("docker client: %v", err)
	}
	defer cli.Close()

	go func() {
		ctx := context.Background()
		for {
			if err := refresh(ctx, cli); err != nil {
				log.Printf("refresh containers: %v", err)
			}
			time.Sleep(*interval)
		}
	}()

	http.Handle("/metrics", promhttp.Handler())
	log.Printf("container exporter listening on %s", *addr)
	log.Fatal(http.ListenAndServe(*addr, nil))
}
