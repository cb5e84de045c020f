package vrops

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/dreschagin/vrops-selfmon/internal/application/dto"
	"github.com/dreschagin/vrops-selfmon/internal/domain/entity"
	"github.com/dreschagin/vrops-selfmon/pkg/logger"
)

func newTestClient(insecure bool) *Client {
	return NewClient(Config{Scheme: "https", Timeout: 5 * time.Second, InsecureSkipVerify: insecure}, logger.New("error"))
}

func hostOf(t *testing.T, server *httptest.Server) string {
	t.Helper()
	u, err := url.Parse(server.URL)
	if err != nil {
		t.Fatalf("parse server url: %v", err)
	}
	return u.Host
}

func newSession(t *testing.T, host string) *entity.Session {
	t.Helper()
	creds, err := entity.NewCredentials(host, "admin", "secret", nil)
	if err != nil {
		t.Fatalf("NewCredentials() error = %v", err)
	}
	session, err := entity.NewSession(creds)
	if err != nil {
		t.Fatalf("NewSession() error = %v", err)
	}
	if err := session.Authenticate("tok-1"); err != nil {
		t.Fatalf("Authenticate() error = %v", err)
	}
	return session
}

func TestClient_AcquireToken(t *testing.T) {
	server := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != acquirePath {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if r.Header.Get("Accept") != "application/json" || r.Header.Get("Content-Type") != "application/json" {
			t.Errorf("missing json headers: %v", r.Header)
		}

		var body dto.AcquireTokenRequest
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode body: %v", err)
		}
		if body.Username != "admin" || body.Password != `pa"ss` {
			t.Errorf("unexpected credentials: %+v", body)
		}

		_, _ = w.Write([]byte(`{"token":"tok-1","validity":1700000000000}`))
	}))
	defer server.Close()

	env := newTestClient(true).AcquireToken(context.Background(), hostOf(t, server), dto.AcquireTokenRequest{
		Username: "admin",
		Password: `pa"ss`,
	})
	if !env.OK() || env.Data.Token != "tok-1" {
		t.Fatalf("unexpected envelope: %+v", env)
	}
}

func TestClient_AuthenticationHeaders(t *testing.T) {
	var gotAuth, gotBasicUser, gotQuery, gotPath string
	var gotBody []byte

	server := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == releasePath:
			gotAuth = r.Header.Get("Authorization")
			w.WriteHeader(http.StatusOK)
		case r.URL.Path == clusterStatePath:
			gotBasicUser, _, _ = r.BasicAuth()
			_, _ = w.Write([]byte(`{"cluster_online_state_snapshot":"ONLINE"}`))
		case r.URL.Path == resourceQuery:
			gotBody, _ = io.ReadAll(r.Body)
			_, _ = w.Write([]byte(`{"pageInfo":{"totalCount":0},"resourceList":[]}`))
		default:
			gotPath = r.URL.Path
			gotQuery = r.URL.RawQuery
			_, _ = w.Write([]byte(`{"values":[]}`))
		}
	}))
	defer server.Close()

	client := newTestClient(true)
	session := newSession(t, hostOf(t, server))
	ctx := context.Background()

	if env := client.ReleaseToken(ctx, session); env.StatusCode != http.StatusOK {
		t.Fatalf("expected release 200, got %+v", env)
	}
	if gotAuth != "vRealizeOpsToken tok-1" {
		t.Fatalf("unexpected authorization header: %q", gotAuth)
	}

	if env := client.ClusterState(ctx, session); env.Data.Snapshot != "ONLINE" {
		t.Fatalf("unexpected cluster state: %+v", env)
	}
	if gotBasicUser != "admin" {
		t.Fatalf("expected basic auth user admin, got %q", gotBasicUser)
	}

	client.QueryResources(ctx, session, dto.ResourceQueryRequest{ResourceKind: []string{"Service A"}})
	if string(gotBody) != `{"resourceKind":["Service A"]}` {
		t.Fatalf("unexpected query body: %s", gotBody)
	}

	client.ResourceStats(ctx, session, "id-1", url.Values{"rollUpType": {"AVG"}})
	if gotPath != "/suite-api/api/resources/id-1/stats" || gotQuery != "rollUpType=AVG" {
		t.Fatalf("unexpected stats request: %s?%s", gotPath, gotQuery)
	}
}

func TestClient_EnvelopeRules(t *testing.T) {
	tests := []struct {
		name        string
		httpStatus  int
		body        string
		wantStatus  int
		wantMessage string
	}{
		{"parsed body without declared status", http.StatusOK, `{"cluster_online_state_snapshot":"ONLINE"}`, 200, ""},
		{"declared status wins", http.StatusOK, `{"httpStatusCode":404,"message":"not found"}`, 404, "not found"},
		{"declared status on error response", http.StatusUnauthorized, `{"httpStatusCode":401,"message":"Invalid username or password"}`, 401, "Invalid username or password"},
		{"non-2xx without declared status", http.StatusInternalServerError, `{"message":"boom"}`, 500, "boom"},
		{"unparseable body keeps http status", http.StatusBadGateway, `<html>bad gateway</html>`, 502, "failed to parse response body"},
		{"unparseable success body is a protocol failure", http.StatusOK, `<html>maintenance</html>`, 502, "HTTP 200: failed to parse response body"},
		{"empty success body is a protocol failure", http.StatusNoContent, ``, 502, "HTTP 204: empty response body"},
		{"empty error body keeps http status", http.StatusInternalServerError, ``, 500, "empty response body"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.httpStatus)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			env := newTestClient(true).ClusterState(context.Background(), newSession(t, hostOf(t, server)))
			if env.StatusCode != tt.wantStatus {
				t.Fatalf("expected status %d, got %d", tt.wantStatus, env.StatusCode)
			}
			if !strings.Contains(env.Message, tt.wantMessage) {
				t.Fatalf("expected message containing %q, got %q", tt.wantMessage, env.Message)
			}
			if env.Transport {
				t.Fatal("did not expect transport flag")
			}
		})
	}
}

func TestClient_ReleaseIgnoresSuccessBody(t *testing.T) {
	server := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`released`))
	}))
	defer server.Close()

	env := newTestClient(true).ReleaseToken(context.Background(), newSession(t, hostOf(t, server)))
	if env.StatusCode != http.StatusOK || env.Message != "" {
		t.Fatalf("expected plain 200 for release, got %+v", env)
	}
}

func TestClient_TransportErrors(t *testing.T) {
	t.Run("connection refused", func(t *testing.T) {
		server := httptest.NewTLSServer(http.NotFoundHandler())
		host := hostOf(t, server)
		server.Close()

		env := newTestClient(true).AcquireToken(context.Background(), host, dto.AcquireTokenRequest{})
		if env.StatusCode != TransportFailureStatus || !env.Transport {
			t.Fatalf("expected synthetic 503, got %+v", env)
		}
		if !strings.HasPrefix(env.Message, "ConnectionError: ") {
			t.Fatalf("unexpected message: %q", env.Message)
		}
	})

	t.Run("certificate verification", func(t *testing.T) {
		server := httptest.NewTLSServer(http.NotFoundHandler())
		defer server.Close()

		env := newTestClient(false).AcquireToken(context.Background(), hostOf(t, server), dto.AcquireTokenRequest{})
		if env.StatusCode != TransportFailureStatus || !strings.HasPrefix(env.Message, "SSLError: ") {
			t.Fatalf("expected SSLError envelope, got %+v", env)
		}
	})

	t.Run("timeout", func(t *testing.T) {
		release := make(chan struct{})
		server := httptest.NewTLSServer(http.HandlerFunc(func(_ http.ResponseWriter, _ *http.Request) {
			<-release
		}))
		defer server.Close()
		defer close(release)

		client := NewClient(Config{Timeout: 50 * time.Millisecond, InsecureSkipVerify: true}, logger.New("error"))
		env := client.AcquireToken(context.Background(), hostOf(t, server), dto.AcquireTokenRequest{})
		if env.StatusCode != TransportFailureStatus || !strings.HasPrefix(env.Message, "Timeout: ") {
			t.Fatalf("expected Timeout envelope, got %+v", env)
		}
	})
}

func TestClient_RateLimiterHonoursContext(t *testing.T) {
	client := NewClient(Config{InsecureSkipVerify: true, RequestsPerSecond: 0.001, Burst: 1}, logger.New("error"))
	// drain the single burst token
	client.limiter.Allow()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	env := client.AcquireToken(ctx, "127.0.0.1:1", dto.AcquireTokenRequest{})
	if !env.Transport || env.StatusCode != TransportFailureStatus {
		t.Fatalf("expected transport failure, got %+v", env)
	}
}
