package hydrate

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
)

type poolSettings struct {
	Name     string        `mapstructure:"name" validate:"required"`
	Size     int           `mapstructure:"size" validate:"gte=1"`
	Timeout  time.Duration `mapstructure:"timeout"`
	Replicas []string      `mapstructure:"replicas"`
	Tags     []string      `mapstructure:"tags"`
}

func TestDecoderCases(t *testing.T) {
	cases := []struct {
		name      string
		input     map[string]any
		options   []DecoderOption[poolSettings]
		expect    poolSettings
		expectErr string
	}{
		{
			name:   "plain",
			input:  map[string]any{"name": "primary", "size": 4, "timeout": "2s"},
			expect: poolSettings{Name: "primary", Size: 4, Timeout: 2 * time.Second},
		},
		{
			name:      "strict types",
			input:     map[string]any{"name": "primary", "size": "4"},
			expectErr: "decode",
		},
		{
			name:    "weak types",
			input:   map[string]any{"name": "primary", "size": "4"},
			options: []DecoderOption[poolSettings]{WithWeaklyTypedInput[poolSettings]()},
			expect:  poolSettings{Name: "primary", Size: 4},
		},
		{
			name:      "unused keys rejected",
			input:     map[string]any{"name": "primary", "size": 1, "shards": 3},
			options:   []DecoderOption[poolSettings]{WithErrorUnused[poolSettings]()},
			expectErr: "shards",
		},
		{
			name:      "validation",
			input:     map[string]any{"size": 0},
			options:   []DecoderOption[poolSettings]{WithValidator[poolSettings](validator.New())},
			expectErr: "validate",
		},
		{
			name:  "replica pre-hook",
			input: map[string]any{"name": "primary", "size": 1, "replicas": "a, b"},
			options: []DecoderOption[poolSettings]{
				WithPreHook[poolSettings](splitReplicasPreHook),
			},
			expect: poolSettings{Name: "primary", Size: 1, Replicas: []string{"a", "b"}},
		},
		{
			name:  "tag post-hook",
			input: map[string]any{"name": "primary", "size": 1},
			options: []DecoderOption[poolSettings]{
				WithPostHook[poolSettings](ensureTagPostHook),
			},
			expect: poolSettings{Name: "primary", Size: 1, Tags: []string{"settings@global"}},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			decoder := NewDecoder[poolSettings](tc.options...)
			result, err := decoder.Decode(Context{Source: "settings", Scope: "global"}, tc.input)
			if tc.expectErr != "" {
				if err == nil {
					t.Fatalf("expected error %q, got nil", tc.expectErr)
				}
				if !strings.Contains(err.Error(), tc.expectErr) {
					t.Fatalf("expected error containing %q, got %v", tc.expectErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected decode error: %v", err)
			}
			if !reflect.DeepEqual(tc.expect, result) {
				t.Fatalf("decoded mismatch:\nwant: %#v\n got: %#v", tc.expect, result)
			}
		})
	}
}

func TestDecoderDoesNotMutatePayload(t *testing.T) {
	input := map[string]any{
		"name":     "primary",
		"size":     1,
		"replicas": "a,b",
	}
	decoder := NewDecoder[poolSettings](WithPreHook[poolSettings](splitReplicasPreHook))
	if _, err := decoder.Decode(Context{Source: "settings"}, input); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if input["replicas"] != "a,b" {
		t.Fatalf("expected payload untouched, got %#v", input["replicas"])
	}
}

func TestDecoderCustomAndNil(t *testing.T) {
	boom := errors.New("boom")
	decoder := NewDecoder[poolSettings](WithCustomDecoder[poolSettings](func(Context, map[string]any) (poolSettings, error) {
		return poolSettings{}, boom
	}))
	if _, err := decoder.Decode(Context{Source: "settings"}, map[string]any{}); !errors.Is(err, boom) {
		t.Fatalf("expected custom decoder error, got %v", err)
	}
	if _, err := decoder.Decode(Context{Source: "settings"}, nil); err == nil {
		t.Fatalf("expected nil payload error")
	}
}

func splitReplicasPreHook(_ Context, payload map[string]any) (map[string]any, error) {
	value, ok := payload["replicas"].(string)
	if !ok {
		return payload, nil
	}
	if value == "" {
		return nil, fmt.Errorf("empty replicas")
	}
	var replicas []any
	for _, part := range strings.Split(value, ",") {
		replicas = append(replicas, strings.TrimSpace(part))
	}
	payload["replicas"] = replicas
	return payload, nil
}

func ensureTagPostHook(ctx Context, settings *poolSettings) error {
	if len(settings.Tags) == 0 {
		settings.Tags = []string{ctx.label()}
	}
	return nil
}
