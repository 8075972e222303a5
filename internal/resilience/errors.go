package resilience

// IsTransientHTTPStatus reports whether an engine response status may
// succeed on a later attempt: 408, 429 and any 5xx (including 529 overloaded).
func IsTransientHTTPStatus(statusCode int) bool {
	switch {
	case statusCode == 408, statusCode == 429:
		return true
	case statusCode >= 500 && statusCode <= 599:
		return true
	default:
		return false
	}
}
