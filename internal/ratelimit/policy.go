package ratelimit

import (
	"strings"
	"time"
)

// Unlimited is the sentinel for endpoints without a request cap.
const Unlimited = -1

type Config struct {
	Window      time.Duration
	MaxRequests int
}

// PlanLimits maps plan -> endpoint -> window config. Plans or endpoints
// absent from the table fail open: the limiter never blocks traffic it
// has no policy for.
var PlanLimits = map[string]map[string]Config{
	"FREE": {
		"/api/upload":    {Window: time.Hour, MaxRequests: 3},
		"/api/compose":   {Window: time.Hour, MaxRequests: 5},
		"/api/analytics": {Window: time.Hour, MaxRequests: 10},
	},
	"PREMIUM": {
		"/api/upload":    {Window: time.Hour, MaxRequests: 50},
		"/api/compose":   {Window: time.Hour, MaxRequests: 100},
		"/api/analytics": {Window: time.Hour, MaxRequests: 200},
	},
	"ULTIMATE": {
		"/api/upload":    {Window: time.Hour, MaxRequests: Unlimited},
		"/api/compose":   {Window: time.Hour, MaxRequests: Unlimited},
		"/api/analytics": {Window: time.Hour, MaxRequests: Unlimited},
	},
}

// EndpointFromPath collapses request paths onto their policy keys.
func EndpointFromPath(path string) string {
	switch {
	case strings.HasPrefix(path, "/api/capsules"):
		return "/api/capsules"
	case strings.HasPrefix(path, "/api/upload"):
		return "/api/upload"
	case strings.HasPrefix(path, "/api/compose"):
		return "/api/compose"
	case strings.HasPrefix(path, "/api/analytics"):
		return "/api/analytics"
	}
	return path
}
