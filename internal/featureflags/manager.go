// Package featureflags gates optional portal features from configuration.
package featureflags

import (
	"fmt"
	"hash/fnv"
	"maps"
	"strconv"
	"strings"
)

// Flags the portal checks.
const (
	// GoogleLogin enables POST /api/auth/google.
	GoogleLogin = "google_login"
	// RealtimeStatus enables the /ws status push channel.
	RealtimeStatus = "realtime_status"
	// PaymentWebhook accepts gateway notifications; with it off only the
	// browser confirmation settles payments.
	PaymentWebhook = "payment_webhook"
	// ImageUpload enables profile and university image uploads.
	ImageUpload = "image_upload"
)

var defaults = map[string]string{
	GoogleLogin:    "on",
	RealtimeStatus: "on",
	PaymentWebhook: "on",
	ImageUpload:    "on",
}

// rule is a parsed flag value: a percentage of users, where 0 is off and
// 100 is everyone.
type rule struct {
	percent int
}

// parseRule accepts on/true/1, off/false/0 and N%. Anything else is off.
func parseRule(value string) rule {
	switch value {
	case "on", "true", "1":
		return rule{100}
	case "off", "false", "0":
		return rule{0}
	}
	raw, ok := strings.CutSuffix(value, "%")
	if !ok {
		return rule{0}
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return rule{0}
	}
	return rule{min(max(n, 0), 100)}
}

// Manager evaluates flags from a list such as
// "google_login=on,realtime_status=25%,image_upload=off".
type Manager struct {
	raw   map[string]string
	rules map[string]rule
}

// NewManager parses a FEATURE_FLAGS string over the defaults. Malformed pairs and empty
// values are ignored.
func NewManager(flags string) *Manager {
	raw := maps.Clone(defaults)
	for _, pair := range strings.Split(flags, ",") {
		key, value, ok := strings.Cut(pair, "=")
		key, value = normalize(key), normalize(value)
		if ok && key != "" && value != "" {
			raw[key] = value
		}
	}

	rules := make(map[string]rule, len(raw))
	for k, v := range raw {
		rules[k] = parseRule(v)
	}
	return &Manager{raw: raw, rules: rules}
}

// Enabled reports whether name is on for userID. Partial rollouts bucket
// users deterministically and never include an anonymous caller.
func (m *Manager) Enabled(name string, userID uint) bool {
	if m == nil {
		return false
	}
	name = normalize(name)
	r, ok := m.rules[name]
	switch {
	case !ok || r.percent == 0:
		return false
	case r.percent == 100:
		return true
	case userID == 0:
		return false
	}
	return bucket(name, userID) < r.percent
}

// Raw returns a copy of the configured values.
func (m *Manager) Raw() map[string]string {
	return maps.Clone(m.raw)
}

// Snapshot evaluates every flag for one user.
func (m *Manager) Snapshot(userID uint) map[string]bool {
	out := make(map[string]bool, len(m.rules))
	for name := range m.rules {
		out[name] = m.Enabled(name, userID)
	}
	return out
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func bucket(name string, userID uint) int {
	h := fnv.New32a()
	_, _ = fmt.Fprintf(h, "%s:%d", name, userID)
	return int(h.Sum32() % 100)
}
