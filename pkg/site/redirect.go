package site

import (
	"net"
	"net/http"
	"strconv"
	"strings"
)

// DefaultTLSPort is left out of redirect targets.
const DefaultTLSPort = 443

// RedirectURL returns the https equivalent of r, sent to httpsPort.
func RedirectURL(r *http.Request, httpsPort int) (string, bool) {
	host := r.Host
	if host == "" {
		return "", false
	}
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	} else {
		host = strings.TrimSuffix(strings.TrimPrefix(host, "["), "]")
	}
	if host == "" {
		return "", false
	}

	if httpsPort != DefaultTLSPort {
		host = net.JoinHostPort(host, strconv.Itoa(httpsPort))
	} else if strings.Contains(host, ":") {
		host = "[" + host + "]"
	}

	return "https://" + host + r.URL.RequestURI(), true
}

// Redirect answers every request with a 301 to the https site.
func Redirect(httpsPort int, m *Metrics) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		target, ok := RedirectURL(r, httpsPort)
		if !ok {
			http.Error(w, "Bad Request: missing host", http.StatusBadRequest)
			return
		}
		if m != nil {
			m.Redirects.Inc()
		}
		w.Header().Set("Location", target)
		w.WriteHeader(http.StatusMovedPermanently)
	})
}
