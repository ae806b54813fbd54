package plan

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Package plan loads request plans (YAML/JSON) executed by the batch runner.

// Request kinds map onto the helper's three verbs.
const (
	KindGet  = "get"
	KindForm = "form"
	KindJSON = "json"
)

// Request is a single plan entry.
type Request struct {
	ID      string            `json:"id" yaml:"id"`
	Kind    string            `json:"kind" yaml:"kind"`
	URL     string            `json:"url" yaml:"url"`
	Params  map[string]string `json:"params" yaml:"params"`
	Body    string            `json:"body" yaml:"body"`
	DelayMs int               `json:"delay_ms" yaml:"delay_ms"`
}

type planFile struct {
	Requests []Request `json:"requests" yaml:"requests"`
}

// Plan is an ordered, validated set of requests with unique ids.
type Plan struct {
	requests []Request
	idx      map[string]Request
}

// Load reads and validates a plan file.
func Load(path string) (*Plan, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("plan file path is empty")
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open plan file: %w", err)
	}
	defer file.Close()

	raw, err := io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("read plan file: %w", err)
	}

	pf, err := parsePlan(raw, filepath.Ext(path))
	if err != nil {
		return nil, err
	}
	return New(pf.Requests)
}

// New validates reqs and builds a Plan preserving their order.
func New(reqs []Request) (*Plan, error) {
	if len(reqs) == 0 {
		return nil, errors.New("plan contains no requests")
	}

	p := &Plan{
		requests: make([]Request, len(reqs)),
		idx:      make(map[string]Request, len(reqs)),
	}
	for i := range reqs {
		r := sanitizeRequest(reqs[i])
		if err := validateRequest(r); err != nil {
			return nil, fmt.Errorf("requests[%d]: %w", i, err)
		}
		if _, exists := p.idx[r.ID]; exists {
			return nil, fmt.Errorf("duplicate request id %q", r.ID)
		}
		p.requests[i] = r
		p.idx[r.ID] = r
	}
	return p, nil
}

func parsePlan(data []byte, ext string) (planFile, error) {
	ext = strings.ToLower(strings.TrimSpace(ext))

	decoders := []struct {
		name string
		ext  string
		fn   unmarshalFn
	}{
		{name: "yaml", ext: ".yaml", fn: yaml.Unmarshal},
		{name: "yaml", ext: ".yml", fn: yaml.Unmarshal},
		{name: "json", ext: ".json", fn: json.Unmarshal},
	}

	errs := []error{errors.New("plan file format not recognized (expected YAML or JSON)")}
	for _, d := range decoders {
		if ext != "" && ext != d.ext {
			continue
		}
		pf, err := unmarshalPlan(d.name, data, d.fn)
		if err == nil {
			return pf, nil
		}
		// A known extension selects a single decoder; report its error.
		if ext != "" {
			return planFile{}, err
		}
		errs = append(errs, err)
	}

	return planFile{}, errors.Join(errs...)
}

type unmarshalFn func([]byte, any) error

func unmarshalPlan(name string, data []byte, fn unmarshalFn) (planFile, error) {
	var pf planFile
	if err := fn(data, &pf); err != nil {
		return planFile{}, fmt.Errorf("decode %s plan: %w", name, err)
	}
	return pf, nil
}

func sanitizeRequest(r Request) Request {
	r.ID = strings.TrimSpace(r.ID)
	r.Kind = strings.ToLower(strings.TrimSpace(r.Kind))
	r.URL = strings.TrimSpace(r.URL)
	if r.Kind == "" {
		r.Kind = KindGet
	}
	if r.DelayMs < 0 {
		r.DelayMs = 0
	}
	return r
}

func validateRequest(r Request) error {
	if r.ID == "" {
		return errors.New("id is required")
	}
	if r.URL == "" {
		return fmt.Errorf("url is required for request %q", r.ID)
	}
	switch r.Kind {
	case KindGet, KindForm:
		if r.Body != "" {
			return fmt.Errorf("body is only allowed for json requests (request %q)", r.ID)
		}
	case KindJSON:
		if len(r.Params) > 0 {
			return fmt.Errorf("params are not allowed for json requests (request %q)", r.ID)
		}
	default:
		return fmt.Errorf("unsupported kind %q for request %q", r.Kind, r.ID)
	}
	return nil
}

// All returns a copy of the requests in plan order.
func (p *Plan) All() []Request {
	if p == nil {
		return nil
	}
	out := make([]Request, len(p.requests))
	copy(out, p.requests)
	return out
}

// ByID returns the request with the given id.
func (p *Plan) ByID(id string) (Request, bool) {
	if p == nil {
		return Request{}, false
	}
	r, ok := p.idx[strings.TrimSpace(id)]
	return r, ok
}

// Delay returns the pause taken after this request before the next one.
func (r Request) Delay() time.Duration {
	return time.Duration(r.DelayMs) * time.Millisecond
}
