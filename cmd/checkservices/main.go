// Command checkservices probes the configured relay and a running mail
// service, prints a report and exits 1 when anything is unhealthy.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"time"

	"go.uber.org/zap"

	"mailservice/config"
	"mailservice/internal/model"
	"mailservice/internal/relay"
	pkgconfig "mailservice/pkg/config"
)

type result struct {
	name    string
	healthy bool
	message string
}

func main() {
	configPath := flag.String("config", pkgconfig.GetEnv("CONFIG_FILE", "config.yaml"), "config file or layered config directory")
	serviceURL := flag.String("url", "http://localhost:8000", "base URL of the running mail service")
	timeout := flag.Duration("timeout", 5*time.Second, "per-check timeout")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	ctx := context.Background()
	results := []result{
		checkRelay(ctx, cfg, *timeout),
		checkService(ctx, *serviceURL, *timeout),
	}

	allHealthy := true
	for _, r := range results {
		status := "HEALTHY"
		if !r.healthy {
			status = "UNHEALTHY"
			allHealthy = false
		}
		fmt.Printf("%-8s %-9s %s\n", r.name, status, r.message)
	}

	if !allHealthy {
		fmt.Println("Some services are not healthy. Please check the configuration.")
		os.Exit(1)
	}
	fmt.Println("All services are healthy.")
}

func checkRelay(ctx context.Context, cfg *config.Config, timeout time.Duration) result {
	res := result{name: "relay"}

	r, err := relay.FromConfig(ctx, cfg, zap.NewNop())
	if err != nil {
		res.message = err.Error()
		return res
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := r.Check(ctx); err != nil {
		res.message = fmt.Sprintf("%s relay check failed (%s): %v", r.Name(), relay.Classify(err), err)
		return res
	}
	res.healthy = true
	res.message = fmt.Sprintf("%s relay accepted the connection", r.Name())
	return res
}

func checkService(ctx context.Context, baseURL string, timeout time.Duration) result {
	res := result{name: "service"}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+"/api/v1/health", nil)
	if err != nil {
		res.message = err.Error()
		return res
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		res.message = fmt.Sprintf("service is not accessible: %v", err)
		return res
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		res.message = fmt.Sprintf("service returned status code %d", resp.StatusCode)
		return res
	}

	var hc model.HealthCheck
	if err := json.NewDecoder(resp.Body).Decode(&hc); err != nil {
		res.message = fmt.Sprintf("unreadable health response: %v", err)
		return res
	}
	res.healthy = hc.Status == model.HealthHealthy
	res.message = fmt.Sprintf("service is running, status %s, version %s", hc.Status, hc.Version)
	return res
}
