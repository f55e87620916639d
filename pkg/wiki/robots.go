package wiki

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/benjaminestes/robots"
)

// checkRobots verifies once, before any API traffic, that robots.txt does
// not disallow the API path for our user agent. Unreachable or malformed
// robots.txt means allowed.
func checkRobots(apiURL, agent string) error {
	if !robotsAllowed(apiURL, agent) {
		return fmt.Errorf("robots.txt disallows %s for %q", apiURL, agent)
	}
	return nil
}

func robotsAllowed(apiURL, agent string) (allowed bool) {
	allowed = true
	defer func() {
		if r := recover(); r != nil {
			slog.Warn("panic in robots.txt parsing, assuming allowed", slog.String("url", apiURL), slog.Any("panic", r))
		}
	}()

	robotsURL, err := robots.Locate(apiURL)
	if err != nil {
		return true
	}

	resp, err := http.Get(robotsURL)
	if err != nil {
		slog.Warn("failed to fetch robots.txt", slog.String("url", robotsURL), slog.Any("err", err))
		return true
	}
	defer resp.Body.Close()

	r, err := robots.From(resp.StatusCode, resp.Body)
	if err != nil || r == nil {
		return true
	}

	return r.Test(agent, apiURL)
}
