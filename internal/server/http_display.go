package server

import "fmt"

// displayServerInfo shows server configuration information
func (s *Server) displayServerInfo() {
	s.displayEndpoints()
	s.displayAuthInfo()
	s.displayRequestLimitInfo()
	s.displayRateLimitInfo()
}

// displayEndpoints shows available API endpoints
func (s *Server) displayEndpoints() {
	fmt.Fprintln(s.out, "Available endpoints:")
	fmt.Fprintln(s.out, "  GET  /health    - Health check")
	fmt.Fprintln(s.out, "  GET  /stats     - Server statistics")
	fmt.Fprintln(s.out, "  POST /score     - Score precomputed match data (requires API key)")
	fmt.Fprintln(s.out, "  POST /validate  - Cross-check analyzer outputs (requires API key)")
	if s.deps.Analyses != nil {
		fmt.Fprintln(s.out, "  POST /analyze   - Analyze a CV against a job description (requires API key)")
	} else {
		fmt.Fprintln(s.out, "  POST /analyze   - UNAVAILABLE (no AI API key configured)")
	}
	fmt.Fprintln(s.out, "  GET  /history   - Score history of a company (requires API key)")
}

// displayAuthInfo shows authentication configuration
func (s *Server) displayAuthInfo() {
	if n := s.apiKeyCount(); n > 0 {
		fmt.Fprintf(s.out, "API authentication: ENABLED (%d keys configured)\n", n)
		fmt.Fprintln(s.out, "Include 'X-API-Key: <your-key>' header in requests")
		if s.keyWatcher != nil {
			fmt.Fprintln(s.out, "  - Keys are rotated from Vault")
		}
	} else {
		fmt.Fprintln(s.out, "API authentication: DISABLED (no API keys configured)")
		fmt.Fprintln(s.out, "WARNING: API endpoints are publicly accessible!")
	}
}

// displayRequestLimitInfo shows request size limit configuration
func (s *Server) displayRequestLimitInfo() {
	if s.MaxRequestSize > 0 {
		fmt.Fprintf(s.out, "Request size limit: %d bytes (%.1f MB)\n", s.MaxRequestSize, float64(s.MaxRequestSize)/(1024*1024))
	} else {
		fmt.Fprintln(s.out, "Request size limit: DISABLED")
		fmt.Fprintln(s.out, "WARNING: No request size limits configured!")
	}
}

// displayRateLimitInfo shows rate limiting configuration
func (s *Server) displayRateLimitInfo() {
	if s.RateLimiter != nil {
		fmt.Fprintf(s.out, "Rate limiting: ENABLED (%d requests/min, burst: %d)\n",
			s.RateLimit.RequestsPerMin, s.RateLimit.BurstCapacity)
		if s.RateLimit.ByAPIKey {
			fmt.Fprintln(s.out, "  - Per API key rate limiting enabled")
		}
		if s.RateLimit.ByIP {
			fmt.Fprintln(s.out, "  - Per IP address rate limiting enabled")
		}
	} else {
		fmt.Fprintln(s.out, "Rate limiting: DISABLED")
		fmt.Fprintln(s.out, "WARNING: No rate limiting configured!")
	}
}
