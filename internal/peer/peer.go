// Package peer provides a scriptable stand-in for a worker peer. It
// answers link requests according to reply rules loaded from YAML,
// which makes it useful for local development and integration tests.
package peer

import (
	"context"
	"os"
	"strings"
	"time"

	"github.com/caesium-cloud/hera/internal/protocol"
	"github.com/caesium-cloud/hera/pkg/log"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Rule describes how to answer one request kind. Message may contain
// the placeholder {id}, replaced with the command id.
type Rule struct {
	Status  string        `yaml:"status"`
	Message string        `yaml:"message"`
	Delay   time.Duration `yaml:"delay"`
	Silent  bool          `yaml:"silent"`
}

// Rules maps request kinds (execute, cancel, generate, update) to
// replies. Kinds without a rule use Default.
type Rules struct {
	Default Rule            `yaml:"default"`
	Kinds   map[string]Rule `yaml:"kinds"`
}

// DefaultRules acknowledges every request immediately.
func DefaultRules() *Rules {
	return &Rules{
		Default: Rule{Status: "ok", Message: "{id}"},
		Kinds:   map[string]Rule{},
	}
}

// LoadRules reads reply rules from a YAML file. An empty path yields
// DefaultRules.
func LoadRules(path string) (*Rules, error) {
	if path == "" {
		return DefaultRules(), nil
	}

	buf, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read reply rules")
	}
	return ParseRules(buf)
}

func ParseRules(buf []byte) (*Rules, error) {
	rules := DefaultRules()
	if err := yaml.Unmarshal(buf, rules); err != nil {
		return nil, errors.Wrap(err, "parse reply rules")
	}

	for kind, rule := range rules.Kinds {
		if _, err := parseStatus(rule.Status); err != nil {
			return nil, errors.Wrapf(err, "rule %q", kind)
		}
	}
	if _, err := parseStatus(rules.Default.Status); err != nil {
		return nil, errors.Wrap(err, "default rule")
	}
	return rules, nil
}

func (r *Rules) lookup(kind protocol.Kind) Rule {
	if rule, ok := r.Kinds[kind.String()]; ok {
		return rule
	}
	return r.Default
}

func parseStatus(s string) (protocol.ResponseStatus, error) {
	switch strings.ToLower(s) {
	case "", "ok":
		return protocol.StatusOK, nil
	case "error":
		return protocol.StatusError, nil
	default:
		return 0, errors.Errorf("unknown status %q", s)
	}
}

// Handler answers requests per its rules.
type Handler struct {
	rules *Rules
}

func NewHandler(rules *Rules) *Handler {
	if rules == nil {
		rules = DefaultRules()
	}
	return &Handler{rules: rules}
}

func (h *Handler) Handle(ctx context.Context, env *protocol.Envelope) *protocol.Response {
	cmd, err := protocol.UnmarshalCommand(env.Payload)
	if err != nil {
		return &protocol.Response{Status: protocol.StatusError, Message: err.Error()}
	}

	rule := h.rules.lookup(env.Kind)
	log.Info("peer received request", "kind", env.Kind, "id", cmd.ID, "execute_kind", cmd.Kind, "delay", rule.Delay)

	if rule.Delay > 0 {
		select {
		case <-time.After(rule.Delay):
		case <-ctx.Done():
			return nil
		}
	}
	if rule.Silent {
		return nil
	}

	status, _ := parseStatus(rule.Status)
	return &protocol.Response{
		Status:  status,
		Message: strings.ReplaceAll(rule.Message, "{id}", cmd.ID),
	}
}
