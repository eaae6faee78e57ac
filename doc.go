// Package formguard implements the security decision engine protecting
// public form-submission endpoints: per-client rate limiting, browser
// origin validation, IP reputation with graduated escalation, payload
// injection heuristics, one-time CSRF tokens, and security response
// headers.
//
// All mutable state lives in a shared namespaced TTL cache (see the
// cache package), so any number of service replicas behave as one:
// the process holds nothing beyond compiled pattern tables and the
// static private-network list.
//
// The typical integration uses the Service facade directly from the
// framework's request path, or the provided middleware:
//
//	store := memory.New()
//	svc, err := formguard.New(formguard.Config{
//		AllowedOrigins: []string{"https://forms.example.com"},
//	}, store)
//	if err != nil {
//		log.Fatal(err)
//	}
//	handler := svc.Middleware(mux)
//
// Submission handlers then call CheckSubmission with the parsed form
// data and the presented CSRF token.
package formguard
