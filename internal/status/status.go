// Package status turns transport outcomes into short human-readable
// descriptions used in quote error messages.
package status

import (
	"fmt"
	"strings"
)

// Transport-level tokens reported alongside (or instead of) an HTTP status.
const (
	TokenTimeout     = "timeout"
	TokenParserError = "parsererror"
	TokenError       = "error"
	TokenAbort       = "abort"
	TokenNetwork     = "network error"
)

var descriptions = map[int]string{
	// 3xx
	300: "Multiple Choices — several resources match",
	301: "Moved Permanently — URL moved permanently",
	302: "Found — temporary redirect",
	303: "See Other — redirect with GET",
	304: "Not Modified — use cached copy",
	307: "Temporary Redirect — temporary redirect (same method)",
	308: "Permanent Redirect — permanent redirect (same method)",
	// 4xx
	400: "Bad Request — malformed request",
	401: "Unauthorized — authentication required",
	402: "Payment Required — payment related",
	403: "Forbidden — access denied",
	404: "Not Found — resource does not exist",
	405: "Method Not Allowed — wrong HTTP method",
	406: "Not Acceptable — format not supported",
	407: "Proxy Auth Required — proxy authentication",
	408: "Request Timeout — request took too long",
	409: "Conflict — data conflict",
	410: "Gone — resource removed",
	411: "Length Required — Content-Length header required",
	412: "Precondition Failed — If-* check failed",
	413: "Payload Too Large — body too large",
	414: "URI Too Long — URL too long",
	415: "Unsupported Media Type — content type not supported",
	416: "Range Not Satisfiable — invalid range request",
	417: "Expectation Failed — Expect header failed",
	421: "Misdirected Request — wrong target server",
	422: "Unprocessable Entity — validation failed",
	423: "Locked — resource locked",
	424: "Failed Dependency — dependency failed",
	425: "Too Early — request too early",
	426: "Upgrade Required — protocol upgrade required",
	428: "Precondition Required — precondition needed",
	429: "Too Many Requests — rate limiting",
	431: "Header Fields Too Large — headers too large",
	451: "Unavailable For Legal Reasons — blocked for legal reasons",
	// 5xx
	500: "Internal Server Error — server side error",
	501: "Not Implemented — endpoint not available",
	502: "Bad Gateway — gateway or proxy error",
	503: "Service Unavailable — server busy or in maintenance",
	504: "Gateway Timeout — timeout at server or gateway",
	505: "HTTP Version Not Supported — version not supported",
	507: "Insufficient Storage — server out of space",
	508: "Loop Detected — loop on server",
	510: "Not Extended — extension required",
	511: "Network Auth Required — network login required",
}

// Describe returns the one-line description of an HTTP status code.
func Describe(code int) string {
	if d, ok := descriptions[code]; ok {
		return d
	}
	return fmt.Sprintf("HTTP %d — Server error", code)
}

// Classify maps an HTTP status (0 when no response was received) and a
// transport token to a short description.
func Classify(code int, token string) string {
	token = strings.ToLower(strings.TrimSpace(token))
	switch {
	case token == TokenTimeout:
		return "Request Timeout"
	case code == 200 && IsParserError(token):
		return "Parser Error (200)"
	case code == 200:
		return "XHR Error (200)"
	case code > 0:
		return Describe(code)
	}
	if token == "" {
		token = "unknown"
	}
	return "Error: " + token
}

// Label is the bracketed status prefix used in error messages. It is empty
// when no response was received.
func Label(code int) string {
	switch {
	case code == 200:
		return "[XHR ERROR 200]"
	case code > 0:
		return fmt.Sprintf("[HTTP %d]", code)
	}
	return ""
}

// IsParserError reports whether token denotes an undecodable response body.
func IsParserError(token string) bool {
	switch strings.ToLower(strings.TrimSpace(token)) {
	case TokenParserError, "parser error":
		return true
	}
	return false
}
