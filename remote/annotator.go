package remote

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/hupe1980/turnmesh/core"
)

// AnnotatorOptions configures a remote annotator task.
type AnnotatorOptions struct {
	Client       *Client
	Dependencies []string
	Timeout      time.Duration
	// ResultPath is the gjson path of the annotation in the response.
	// Empty means the whole body.
	ResultPath string
	Default    core.DefaultFunc
}

// NewAnnotator returns a task that posts the current turn and its
// dependency values to url and extracts the annotation from the response.
//
// Request body:
//
//	{"utterance": "...", "session_id": "...", "turn_index": 0, "inputs": {"dep": ...}}
func NewAnnotator(name, url string, optFns ...func(o *AnnotatorOptions)) core.Task {
	opts := AnnotatorOptions{
		Timeout: 2 * time.Second,
		Default: core.Static(nil),
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	client := opts.Client
	if client == nil {
		client = NewClient()
	}

	return core.Task{
		Name:         name,
		Dependencies: opts.Dependencies,
		Timeout:      opts.Timeout,
		Default:      opts.Default,
		Run: func(ctx context.Context, in core.Inputs) (any, error) {
			body, err := annotatorBody(core.TurnFromContext(ctx), in)
			if err != nil {
				return nil, fmt.Errorf("annotator %s: %w", name, err)
			}

			resp, err := client.Call(ctx, url, body)
			if err != nil {
				return nil, err
			}

			if opts.ResultPath == "" {
				return gjson.ParseBytes(resp).Value(), nil
			}

			res := gjson.GetBytes(resp, opts.ResultPath)
			if !res.Exists() {
				return nil, fmt.Errorf("annotator %s: no value at %q", name, opts.ResultPath)
			}

			return res.Value(), nil
		},
	}
}

func annotatorBody(t *core.Turn, in core.Inputs) ([]byte, error) {
	body := []byte(`{"inputs":{}}`)

	var err error
	if t != nil {
		if body, err = sjson.SetBytes(body, "utterance", t.Utterance); err != nil {
			return nil, err
		}
		if body, err = sjson.SetBytes(body, "session_id", t.SessionID); err != nil {
			return nil, err
		}
		if body, err = sjson.SetBytes(body, "turn_index", t.Index); err != nil {
			return nil, err
		}
	}

	names := make([]string, 0, len(in))
	for name := range in {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if body, err = sjson.SetBytes(body, "inputs."+escapeKey(name), in[name]); err != nil {
			return nil, fmt.Errorf("encode input %s: %w", name, err)
		}
	}

	return body, nil
}

var keyEscaper = strings.NewReplacer(`.`, `\.`, `*`, `\*`, `?`, `\?`, `|`, `\|`, `#`, `\#`, `@`, `\@`)

// escapeKey makes a task name safe to use as one sjson path component.
func escapeKey(k string) string { return keyEscaper.Replace(k) }
