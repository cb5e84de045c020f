// Package inputfile loads the credentials file and the self-monitoring object list.
package inputfile

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"strings"

	"github.com/dreschagin/vrops-selfmon/internal/domain/entity"
)

type credentialsFile struct {
	Host     string                     `json:"vrops_ip"`
	Auth     []string                   `json:"auth"`
	Payloads map[string]json.RawMessage `json:"payloads"`
}

// LoadCredentials reads {"vrops_ip": ..., "auth": [user, pass], "payloads": {...}}.
func LoadCredentials(path string) (*entity.Credentials, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read credentials file: %w", err)
	}
	return ParseCredentials(raw)
}

func ParseCredentials(raw []byte) (*entity.Credentials, error) {
	var file credentialsFile
	if err := json.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("failed to parse credentials: %w", err)
	}
	if len(file.Auth) != 2 {
		return nil, fmt.Errorf("credentials auth must be [username, password], got %d values", len(file.Auth))
	}

	params := url.Values{}
	for key, value := range file.Payloads {
		values, err := payloadValues(value)
		if err != nil {
			return nil, fmt.Errorf("invalid payload %q: %w", key, err)
		}
		for _, v := range values {
			params.Add(key, v)
		}
	}

	creds, err := entity.NewCredentials(file.Host, file.Auth[0], file.Auth[1], params)
	if err != nil {
		return nil, fmt.Errorf("invalid credentials: %w", err)
	}
	return creds, nil
}

// payloadValues accepts a scalar or an array of scalars.
func payloadValues(raw json.RawMessage) ([]string, error) {
	decoder := json.NewDecoder(bytes.NewReader(raw))
	decoder.UseNumber()

	var value any
	if err := decoder.Decode(&value); err != nil {
		return nil, err
	}

	if list, ok := value.([]any); ok {
		out := make([]string, 0, len(list))
		for _, item := range list {
			s, err := scalarString(item)
			if err != nil {
				return nil, err
			}
			out = append(out, s)
		}
		return out, nil
	}

	s, err := scalarString(value)
	if err != nil {
		return nil, err
	}
	return []string{s}, nil
}

func scalarString(v any) (string, error) {
	switch val := v.(type) {
	case string:
		return val, nil
	case json.Number:
		return val.String(), nil
	case bool:
		if val {
			return "true", nil
		}
		return "false", nil
	case nil:
		return "", errors.New("null value")
	default:
		return "", fmt.Errorf("unsupported value type %T", v)
	}
}

// LoadObjectList reads {"<service>": {"<kpi>": <any>, ...}} keeping service order from the file.
// A JSON array of KPI names is accepted in place of the object.
func LoadObjectList(path string) (*entity.PayloadSpec, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read object list: %w", err)
	}
	return ParseObjectList(raw)
}

func ParseObjectList(raw []byte) (*entity.PayloadSpec, error) {
	decoder := json.NewDecoder(bytes.NewReader(raw))

	if err := expectDelim(decoder, '{'); err != nil {
		return nil, fmt.Errorf("failed to parse object list: %w", err)
	}

	spec := entity.NewPayloadSpec()
	for decoder.More() {
		token, err := decoder.Token()
		if err != nil {
			return nil, fmt.Errorf("failed to parse object list: %w", err)
		}
		service, _ := token.(string)

		var value json.RawMessage
		if err := decoder.Decode(&value); err != nil {
			return nil, fmt.Errorf("failed to parse service %q: %w", service, err)
		}

		kpis, err := kpiNames(value)
		if err != nil {
			return nil, fmt.Errorf("invalid service %q: %w", service, err)
		}
		if err := spec.AddService(service, kpis); err != nil {
			return nil, err
		}
	}

	if err := expectDelim(decoder, '}'); err != nil {
		return nil, fmt.Errorf("failed to parse object list: %w", err)
	}
	if _, err := decoder.Token(); !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse object list: trailing data")
	}
	if spec.Len() == 0 {
		return nil, fmt.Errorf("object list has no services")
	}

	return spec, nil
}

func kpiNames(raw json.RawMessage) ([]string, error) {
	trimmed := bytes.TrimSpace(raw)
	switch {
	case len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")):
		return nil, nil
	case trimmed[0] == '[':
		var names []string
		if err := json.Unmarshal(trimmed, &names); err != nil {
			return nil, err
		}
		return trimNames(names), nil
	case trimmed[0] == '{':
		decoder := json.NewDecoder(bytes.NewReader(trimmed))
		if err := expectDelim(decoder, '{'); err != nil {
			return nil, err
		}
		var names []string
		for decoder.More() {
			token, err := decoder.Token()
			if err != nil {
				return nil, err
			}
			name, _ := token.(string)
			names = append(names, name)

			var skip json.RawMessage
			if err := decoder.Decode(&skip); err != nil {
				return nil, err
			}
		}
		return trimNames(names), nil
	default:
		return nil, fmt.Errorf("expected object or array of KPI names")
	}
}

func trimNames(names []string) []string {
	out := names[:0]
	for _, n := range names {
		if n = strings.TrimSpace(n); n != "" {
			out = append(out, n)
		}
	}
	return out
}

func expectDelim(decoder *json.Decoder, want json.Delim) error {
	token, err := decoder.Token()
	if err != nil {
		return err
	}
	if delim, ok := token.(json.Delim); !ok || delim != want {
		return fmt.Errorf("expected %q, got %v", want, token)
	}
	return nil
}
