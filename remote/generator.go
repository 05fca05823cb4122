package remote

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/hupe1980/turnmesh/core"
	"github.com/hupe1980/turnmesh/generator"
)

// GeneratorOptions configures a remote response producer.
type GeneratorOptions struct {
	Client *Client
	// Bootstrap is the JSON state sent when the producer has none.
	Bootstrap        json.RawMessage
	BootstrapVersion int
}

// Generator is a response producer served by a remote service. The service
// receives the turn, the annotations and the producer's state, and answers
// with
//
//	{"priority": "can_start", "text": "...", "needs_follow_up": false,
//	 "end_session": false, "entity": "...", "state": {...}}
//
// A missing priority means the service has nothing to say.
type Generator struct {
	name   string
	url    string
	client *Client
	opts   GeneratorOptions
}

var _ generator.Generator = (*Generator)(nil)

// NewGenerator creates a remote response producer.
func NewGenerator(name, url string, optFns ...func(o *GeneratorOptions)) *Generator {
	opts := GeneratorOptions{
		Bootstrap:        json.RawMessage(`{}`),
		BootstrapVersion: 1,
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	client := opts.Client
	if client == nil {
		client = NewClient()
	}

	return &Generator{name: name, url: url, client: client, opts: opts}
}

// Name implements generator.Generator.
func (g *Generator) Name() string { return g.name }

// BootstrapState implements generator.Generator.
func (g *Generator) BootstrapState() (core.State, error) {
	return core.State{
		Producer: g.name,
		Version:  g.opts.BootstrapVersion,
		Data:     append(json.RawMessage(nil), g.opts.Bootstrap...),
	}, nil
}

// Respond implements generator.Generator.
func (g *Generator) Respond(ctx context.Context, req *generator.Request) (*core.Candidate, error) {
	body, err := generatorBody(req)
	if err != nil {
		return nil, fmt.Errorf("producer %s: %w", g.name, err)
	}

	resp, err := g.client.Call(ctx, g.url, body)
	if err != nil {
		return nil, err
	}

	return g.parse(resp, req.State)
}

func (g *Generator) parse(resp []byte, current core.State) (*core.Candidate, error) {
	c := &core.Candidate{Producer: g.name}

	if p := gjson.GetBytes(resp, "priority"); p.Exists() {
		level, err := core.ParsePriority(p.String())
		if err != nil {
			return nil, fmt.Errorf("producer %s: %w", g.name, err)
		}
		c.Priority = level
	}

	c.Text = gjson.GetBytes(resp, "text").String()
	c.NeedsFollowUp = gjson.GetBytes(resp, "needs_follow_up").Bool()
	c.EndSession = gjson.GetBytes(resp, "end_session").Bool()
	c.Entity = gjson.GetBytes(resp, "entity").String()

	if st := gjson.GetBytes(resp, "state"); st.Exists() {
		version := current.Version
		if v := gjson.GetBytes(resp, "state_version"); v.Exists() {
			version = int(v.Int())
		}
		c.State = &core.State{Producer: g.name, Version: version, Data: json.RawMessage(st.Raw)}
	}

	return c, nil
}

func generatorBody(req *generator.Request) ([]byte, error) {
	body := []byte(`{"annotations":{}}`)

	var err error
	if t := req.Turn; t != nil {
		fields := []struct {
			path string
			v    any
		}{
			{"utterance", t.Utterance},
			{"session_id", t.SessionID},
			{"turn_index", t.Index},
			{"previous_responder", t.PreviousResponder},
		}
		for _, f := range fields {
			if body, err = sjson.SetBytes(body, f.path, f.v); err != nil {
				return nil, err
			}
		}

		for _, name := range t.Annotations.Names() {
			v, ok := t.Annotations.Value(name)
			if !ok {
				continue
			}
			if body, err = sjson.SetBytes(body, "annotations."+escapeKey(name), v); err != nil {
				return nil, fmt.Errorf("encode annotation %s: %w", name, err)
			}
		}
	}

	if len(req.State.Data) > 0 {
		if body, err = sjson.SetRawBytes(body, "state", req.State.Data); err != nil {
			return nil, err
		}
		if body, err = sjson.SetBytes(body, "state_version", req.State.Version); err != nil {
			return nil, err
		}
	}

	return body, nil
}
